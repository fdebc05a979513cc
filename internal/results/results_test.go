package results

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/quizbot/core/database"
	"github.com/m3rciful/quizbot/core/dispatch"
	"github.com/m3rciful/quizbot/internal/quiz"
)

func sampleResult() *quiz.Result {
	started := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return &quiz.Result{
		RunID:          "run-1",
		ChatID:         42,
		Team:           "Foxes",
		Score:          2,
		Total:          3,
		ElapsedSeconds: 180,
		PenaltySeconds: 60,
		TotalSeconds:   240,
		HintsUsed:      1,
		StartedAt:      started,
		FinishedAt:     started.Add(3 * time.Minute),
		Answers: []quiz.AnswerRecord{
			{QuestionID: 1, Position: 0, Selected: "Merlion", Correct: true},
		},
	}
}

type recordSink struct {
	name string
	err  error
	mu   sync.Mutex
	got  []*quiz.Result
}

func (s *recordSink) Name() string { return s.name }

func (s *recordSink) Deliver(_ context.Context, r *quiz.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, r)
	return s.err
}

func TestPublisherFansOut(t *testing.T) {
	disp := dispatch.NewDispatcher(dispatch.Options{Workers: 2})
	ok := &recordSink{name: "ok"}
	bad := &recordSink{name: "bad", err: errors.New("boom")}
	pub := NewPublisher(disp, ok, nil, bad)

	if got := strings.Join(pub.Sinks(), ","); got != "ok,bad" {
		t.Fatalf("Sinks = %s", got)
	}
	if err := pub.Publish(context.Background(), sampleResult()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	disp.Close()

	if len(ok.got) != 1 || len(bad.got) != 1 {
		t.Fatalf("deliveries ok=%d bad=%d", len(ok.got), len(bad.got))
	}
	if disp.ErrorCount() != 1 {
		t.Fatalf("ErrorCount = %d, want 1", disp.ErrorCount())
	}
}

func TestPublisherAfterClose(t *testing.T) {
	disp := dispatch.NewDispatcher(dispatch.Options{})
	disp.Close()
	pub := NewPublisher(disp, &recordSink{name: "ok"})
	if err := pub.Publish(context.Background(), sampleResult()); !errors.Is(err, dispatch.ErrQueueClosed) {
		t.Fatalf("Publish after close = %v", err)
	}
}

func TestWebhookAuth(t *testing.T) {
	cases := []struct {
		name  string
		cfg   WebhookConfig
		check func(r *http.Request) bool
	}{
		{"none", WebhookConfig{}, func(r *http.Request) bool { return r.Header.Get("Authorization") == "" }},
		{"bearer", WebhookConfig{Auth: "Bearer", Token: "s3cret"}, func(r *http.Request) bool {
			return r.Header.Get("Authorization") == "Bearer s3cret"
		}},
		{"basic", WebhookConfig{Auth: "basic", User: "quiz", Password: "pw"}, func(r *http.Request) bool {
			u, p, ok := r.BasicAuth()
			return ok && u == "quiz" && p == "pw"
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got quiz.Result
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || !tc.check(r) {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			}))
			defer srv.Close()

			cfg := tc.cfg
			cfg.URL = srv.URL
			if err := cfg.Normalize(); err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if err := NewWebhookSink(cfg, srv.Client()).Deliver(context.Background(), sampleResult()); err != nil {
				t.Fatalf("Deliver: %v", err)
			}
			if got.Team != "Foxes" || got.Score != 2 || len(got.Answers) != 1 {
				t.Fatalf("payload = %+v", got)
			}
		})
	}
}

func TestWebhookDigestAuth(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Digest ") {
			w.Header().Set("WWW-Authenticate", `Digest realm="quiz", nonce="dcd98b7102dd2f0e", qop="auth", algorithm=MD5`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(auth, `username="admin"`) || !strings.Contains(string(body), `"team":"Foxes"`) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := WebhookConfig{URL: srv.URL, Auth: "digest", User: "admin", Password: "pw"}
	if err := cfg.Normalize(); err != nil {
		t.Fatal(err)
	}
	if err := NewWebhookSink(cfg, &http.Client{}).Deliver(context.Background(), sampleResult()); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want challenge and signed request", calls)
	}
}

func TestWebhookStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookSink(WebhookConfig{URL: srv.URL, Auth: AuthNone}, srv.Client()).Deliver(context.Background(), sampleResult())
	var coder dispatch.StatusCoder
	if !errors.As(err, &coder) || coder.StatusCode() != http.StatusBadGateway {
		t.Fatalf("err = %v, want status 502", err)
	}
}

func TestWebhookConfigNormalize(t *testing.T) {
	cases := []struct {
		cfg     WebhookConfig
		wantErr bool
	}{
		{WebhookConfig{}, false},
		{WebhookConfig{URL: "http://x", Auth: "bearer"}, true},
		{WebhookConfig{URL: "http://x", Auth: "digest"}, true},
		{WebhookConfig{URL: "http://x", Auth: "oauth"}, true},
		{WebhookConfig{URL: "http://x", Auth: " Digest ", User: "u"}, false},
	}
	for _, tc := range cases {
		cfg := tc.cfg
		if err := cfg.Normalize(); (err != nil) != tc.wantErr {
			t.Fatalf("Normalize(%+v) err = %v", tc.cfg, err)
		}
	}
}

func TestSheetsAppend(t *testing.T) {
	var body struct {
		Values [][]any `json:"values"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v4/spreadsheets/sheet-1/values/Results!A1:append" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("valueInputOption") != "USER_ENTERED" || r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"updates":{"updatedRows":1}}`))
	}))
	defer srv.Close()

	cfg := SheetsConfig{SpreadsheetID: "sheet-1", Token: "tok", Endpoint: srv.URL + "/"}
	if err := cfg.Normalize(); err != nil {
		t.Fatal(err)
	}
	if err := NewSheetsSink(cfg, srv.Client()).Deliver(context.Background(), sampleResult()); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(body.Values) != 1 {
		t.Fatalf("rows = %v", body.Values)
	}
	row := body.Values[0]
	if row[1] != "Foxes" || row[4] != "3:00" || row[6] != "4:00" || row[9] != "run-1" {
		t.Fatalf("row = %v", row)
	}
}

func TestSheetsConfigRequiresToken(t *testing.T) {
	cfg := SheetsConfig{SpreadsheetID: "sheet-1"}
	if err := cfg.Normalize(); err == nil {
		t.Fatal("expected missing token error")
	}
	if cfg.Endpoint != DefaultSheetsEndpoint || cfg.Range != "Results!A1" {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestDatabaseSinkSQLite(t *testing.T) {
	cfg := database.Config{
		Driver:        database.DriverSQLite,
		Path:          filepath.Join(t.TempDir(), "results.db"),
		MigrationsDir: filepath.Join("..", "..", "migrations"),
	}
	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()
	if err := database.RunMigrations(cfg, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := NewDatabaseSink(db).Deliver(context.Background(), sampleResult()); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	var row struct {
		Team    string `db:"team"`
		Score   int    `db:"score"`
		Total   int    `db:"total_seconds"`
		Answers string `db:"answers"`
	}
	if err := db.Get(&row, "SELECT team, score, total_seconds, answers FROM quiz_results WHERE run_id = ?", "run-1"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if row.Team != "Foxes" || row.Score != 2 || row.Total != 240 || !strings.Contains(row.Answers, "Merlion") {
		t.Fatalf("row = %+v", row)
	}

	if err := NewDatabaseSink(db).Deliver(context.Background(), sampleResult()); err == nil {
		t.Fatal("duplicate run id must fail")
	}
}

type fakeSender struct {
	sent []string
	to   []string
	fail int64
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	if to.Recipient() == "13" && f.fail == 13 {
		return nil, errors.New("forbidden")
	}
	f.to = append(f.to, to.Recipient())
	f.sent = append(f.sent, what.(string))
	return &tele.Message{}, nil
}

func TestNotifySink(t *testing.T) {
	if NewNotifySink(&fakeSender{}, nil) != nil {
		t.Fatal("no chats must disable the sink")
	}

	s := &fakeSender{fail: 13}
	err := NewNotifySink(s, []int64{7, 13, 9}).Deliver(context.Background(), sampleResult())
	if err == nil || !strings.Contains(err.Error(), "chat 13") {
		t.Fatalf("err = %v", err)
	}
	if strings.Join(s.to, ",") != "7,9" {
		t.Fatalf("recipients = %v", s.to)
	}
	if !strings.Contains(s.sent[0], "<b>Foxes</b>") || !strings.Contains(s.sent[0], "<b>2/3</b>") || !strings.Contains(s.sent[0], "<b>4:00</b>") {
		t.Fatalf("summary = %q", s.sent[0])
	}
}
