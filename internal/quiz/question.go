package quiz

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// OptionCount is the number of answer options every question carries.
const OptionCount = 3

// Lines decodes either a JSON string or an array of strings.
type Lines []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *Lines) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = splitLines(s)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

func splitLines(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// rawQuestion mirrors the content file; Question is its normalized form.
type rawQuestion struct {
	ID                *float64 `json:"id"`
	Visible           *bool    `json:"visible"`
	Image             string   `json:"image"`
	ImageURL          string   `json:"image_url"`
	Intro             Lines    `json:"intro"`
	Question          string   `json:"question"`
	Options           []string `json:"options"`
	Answer            string   `json:"answer"`
	Hint              string   `json:"hint"`
	HintImage         string   `json:"hint_image"`
	Photo             bool     `json:"photo"`
	ExplanationImages []string `json:"explanation_images"`
	Explanations      Lines    `json:"explanations"`
	Explanation       string   `json:"explanation"`
}

// Question is one entry of the question bank.
type Question struct {
	ID      float64
	HasID   bool
	Visible bool
	Image   string
	Intro   []string
	Text    string
	Options []string
	Answer  string
	Hint    string
	// HintImage is shown together with the hint text.
	HintImage         string
	Photo             bool
	ExplanationImages []string
	Explanations      []string
}

// HasHint reports whether asking for a hint shows anything.
func (q Question) HasHint() bool {
	return strings.TrimSpace(q.Hint) != "" || q.HintImage != ""
}

// AnswerIndex returns the position of the correct option, or -1.
func (q Question) AnswerIndex() int {
	for i, opt := range q.Options {
		if opt == q.Answer {
			return i
		}
	}
	return -1
}

// OptionIndex returns the position of the option equal to text, or -1.
func (q Question) OptionIndex(text string) int {
	for i, opt := range q.Options {
		if opt == text {
			return i
		}
	}
	return -1
}

// Explanation is one step of the explanation sent after an answer.
type Explanation struct {
	Image string
	Text  string
}

// ExplanationSteps pairs explanation images and texts by index. The shorter
// list is padded with empty values.
func (q Question) ExplanationSteps() []Explanation {
	n := max(len(q.ExplanationImages), len(q.Explanations))
	steps := make([]Explanation, 0, n)
	for i := 0; i < n; i++ {
		var step Explanation
		if i < len(q.ExplanationImages) {
			step.Image = strings.TrimSpace(q.ExplanationImages[i])
		}
		if i < len(q.Explanations) {
			step.Text = strings.TrimSpace(q.Explanations[i])
		}
		if step.Image != "" || step.Text != "" {
			steps = append(steps, step)
		}
	}
	return steps
}

func (r rawQuestion) normalize() Question {
	q := Question{
		Visible:           r.Visible == nil || *r.Visible,
		Image:             strings.TrimSpace(r.Image),
		Intro:             r.Intro,
		Text:              strings.TrimSpace(r.Question),
		Options:           r.Options,
		Answer:            r.Answer,
		Hint:              strings.TrimSpace(r.Hint),
		HintImage:         strings.TrimSpace(r.HintImage),
		Photo:             r.Photo,
		ExplanationImages: r.ExplanationImages,
		Explanations:      r.Explanations,
	}
	if r.ID != nil {
		q.ID, q.HasID = *r.ID, true
	}
	if q.Image == "" {
		q.Image = strings.TrimSpace(r.ImageURL)
	}
	if e := strings.TrimSpace(r.Explanation); e != "" && len(q.Explanations) == 0 {
		q.Explanations = []string{e}
	}
	return q
}

// validate checks the option/answer invariant. Photo tasks may leave both
// options and answer out.
func (q Question) validate() error {
	if q.Photo && len(q.Options) == 0 && q.Answer == "" {
		return nil
	}
	if len(q.Options) != OptionCount {
		return fmt.Errorf("must have exactly %d options, got %d", OptionCount, len(q.Options))
	}
	seen := make(map[string]struct{}, len(q.Options))
	for i, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("option %d is empty", i+1)
		}
		if _, dup := seen[opt]; dup {
			return fmt.Errorf("option %q is listed twice", opt)
		}
		seen[opt] = struct{}{}
	}
	if q.AnswerIndex() < 0 {
		return fmt.Errorf("answer %q must match one of the options", q.Answer)
	}
	return nil
}

// Bank is an immutable, ordered set of visible questions.
type Bank struct {
	questions []Question
	hidden    int
	source    string
	loadedAt  time.Time
}

// ErrEmptyBank is returned when a question file holds no visible questions.
var ErrEmptyBank = errors.New("quiz: no visible questions")

// NewBank validates questions and keeps the visible ones ordered by id.
// Questions without an id follow in file order.
func NewBank(questions []Question) (*Bank, error) {
	b := &Bank{loadedAt: time.Now()}
	for i, q := range questions {
		if err := q.validate(); err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		if !q.Visible {
			b.hidden++
			continue
		}
		b.questions = append(b.questions, q)
	}
	sort.SliceStable(b.questions, func(i, j int) bool {
		a, c := b.questions[i], b.questions[j]
		if a.HasID != c.HasID {
			return a.HasID
		}
		return a.HasID && a.ID < c.ID
	})
	if len(b.questions) == 0 {
		return nil, ErrEmptyBank
	}
	return b, nil
}

// ParseBank decodes a JSON array of questions.
func ParseBank(data []byte) (*Bank, error) {
	var raw []rawQuestion
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("quiz: decode questions: %w", err)
	}
	questions := make([]Question, len(raw))
	for i, r := range raw {
		questions[i] = r.normalize()
	}
	return NewBank(questions)
}

// LoadBank reads and parses the question file at path.
func LoadBank(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("quiz: read questions: %w", err)
	}
	b, err := ParseBank(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	b.source = path
	return b, nil
}

// Len returns the number of visible questions.
func (b *Bank) Len() int {
	if b == nil {
		return 0
	}
	return len(b.questions)
}

// Hidden returns how many questions were skipped as invisible.
func (b *Bank) Hidden() int { return b.hidden }

// Source is the file the bank was loaded from, if any.
func (b *Bank) Source() string { return b.source }

// LoadedAt is when the bank was built.
func (b *Bank) LoadedAt() time.Time { return b.loadedAt }

// At returns the question at position i.
func (b *Bank) At(i int) (Question, bool) {
	if b == nil || i < 0 || i >= len(b.questions) {
		return Question{}, false
	}
	return b.questions[i], true
}
