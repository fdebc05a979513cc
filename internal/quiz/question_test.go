package quiz

import (
	"errors"
	"strings"
	"testing"
)

func TestLoadBankOrdersVisibleQuestions(t *testing.T) {
	bank, err := LoadBank("testdata/questions.json")
	if err != nil {
		t.Fatalf("LoadBank: %v", err)
	}
	if bank.Len() != 3 || bank.Hidden() != 1 {
		t.Fatalf("Len=%d Hidden=%d", bank.Len(), bank.Hidden())
	}
	var ids []float64
	for i := 0; i < bank.Len(); i++ {
		q, _ := bank.At(i)
		if q.Text == "Hidden question" {
			t.Fatal("hidden question must not be part of the bank")
		}
		ids = append(ids, q.ID)
	}
	if ids[0] != 1 || ids[1] != 2.5 || ids[2] != 3 {
		t.Fatalf("order = %v", ids)
	}
	if _, ok := bank.At(3); ok {
		t.Fatal("At past the end must fail")
	}

	first, _ := bank.At(0)
	if len(first.Intro) != 2 || first.Image != "static/merlion.jpg" {
		t.Fatalf("unexpected first question: %+v", first)
	}
	last, _ := bank.At(2)
	if len(last.Explanations) != 1 {
		t.Fatalf("explanations = %v", last.Explanations)
	}
}

func TestParseBankValidation(t *testing.T) {
	for _, tc := range []struct {
		name, json, want string
	}{
		{"two options", `[{"question":"q","options":["a","b"],"answer":"a"}]`, "exactly 3 options"},
		{"answer mismatch", `[{"question":"q","options":["a","b","c"],"answer":"d"}]`, "must match"},
		{"duplicate option", `[{"question":"q","options":["a","a","c"],"answer":"a"}]`, "listed twice"},
		{"empty option", `[{"question":"q","options":["a"," ","c"],"answer":"a"}]`, "option 2 is empty"},
		{"hidden still validated", `[{"question":"ok","options":["a","b","c"],"answer":"a"},{"visible":false,"options":[],"answer":"x"}]`, "question 2"},
		{"bad json", `{`, "decode questions"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseBank([]byte(tc.json))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}

	if _, err := ParseBank([]byte(`[{"visible":false,"options":["a","b","c"],"answer":"a"}]`)); !errors.Is(err, ErrEmptyBank) {
		t.Fatalf("err = %v, want ErrEmptyBank", err)
	}
}

func TestParseBankFormats(t *testing.T) {
	bank, err := ParseBank([]byte(`[
		{"question":"no id","options":["a","b","c"],"answer":"a"},
		{"id":1,"image_url":"https://x/y.png","intro":"one\ntwo","question":"q","options":["a","b","c"],"answer":"b","explanation":"legacy"},
		{"id":0.5,"photo":true,"question":"Take a selfie"}
	]`))
	if err != nil {
		t.Fatalf("ParseBank: %v", err)
	}
	photo, _ := bank.At(0)
	if !photo.Photo || len(photo.Options) != 0 {
		t.Fatalf("photo task = %+v", photo)
	}
	q, _ := bank.At(1)
	if q.Image != "https://x/y.png" || len(q.Intro) != 2 || q.Explanations[0] != "legacy" {
		t.Fatalf("aliases not applied: %+v", q)
	}
	if noID, _ := bank.At(2); noID.Text != "no id" {
		t.Fatalf("questions without id must come last, got %q", noID.Text)
	}
}

func TestExplanationSteps(t *testing.T) {
	q := Question{
		ExplanationImages: []string{"a.jpg", "", "c.jpg"},
		Explanations:      []string{"first", "second"},
	}
	steps := q.ExplanationSteps()
	want := []Explanation{{"a.jpg", "first"}, {"", "second"}, {"c.jpg", ""}}
	if len(steps) != len(want) {
		t.Fatalf("steps = %+v", steps)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Fatalf("step %d = %+v, want %+v", i, steps[i], want[i])
		}
	}
}
