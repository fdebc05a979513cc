package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	coreconfig "github.com/m3rciful/quizbot/core/config"
	"github.com/m3rciful/quizbot/core/dispatch"
	tg "github.com/m3rciful/quizbot/core/telegram"
	"github.com/m3rciful/quizbot/internal/quiz"
	"github.com/m3rciful/quizbot/internal/results"
)

const (
	player = int64(42)
	admin  = int64(7)
	notify = int64(900)
)

type apiCall struct {
	Method string
	Params map[string]string
	Upload bool
}

// fakeAPI is a minimal Bot API that accepts every call.
type fakeAPI struct {
	mu    sync.Mutex
	calls []apiCall
	srv   *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}
	api.srv = httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(api.srv.Close)
	return api
}

func (a *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	call := apiCall{Method: r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:], Params: map[string]string{}}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			for k, v := range r.MultipartForm.Value {
				call.Params[k] = v[0]
			}
			call.Upload = len(r.MultipartForm.File) > 0
		}
	} else {
		var raw map[string]any
		_ = json.NewDecoder(r.Body).Decode(&raw)
		for k, v := range raw {
			call.Params[k] = fmt.Sprint(v)
		}
	}
	a.mu.Lock()
	a.calls = append(a.calls, call)
	a.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
}

// take returns and clears the recorded calls.
func (a *fakeAPI) take() []apiCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.calls
	a.calls = nil
	return out
}

type recordSink struct {
	mu  sync.Mutex
	got []*quiz.Result
}

func (s *recordSink) Name() string { return "record" }

func (s *recordSink) Deliver(_ context.Context, r *quiz.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, r)
	return nil
}

type harness struct {
	api  *fakeAPI
	srv  *tg.Server
	disp *dispatch.Dispatcher
	sink *recordSink
	bank string
	seq  int
	h    *Handlers
}

const testBank = `[
  {"id": 1, "image": "static/fountain.jpg", "question": "Snap the fountain.", "photo": true, "hint": "Near the mall."},
  {"id": 2, "question": "Which city is the capital of Italy?", "options": ["Paris", "Rome", "Oslo"], "answer": "Rome",
   "explanation_images": ["https://example.com/rome.jpg"], "explanations": ["Rome has been the capital since 1871."]}
]`

func newHarness(t *testing.T, tune ...func(*coreconfig.Config)) *harness {
	t.Helper()
	api := newFakeAPI(t)
	dir := t.TempDir()
	bankPath := filepath.Join(dir, "questions.json")
	if err := os.WriteFile(bankPath, []byte(testBank), 0o644); err != nil {
		t.Fatal(err)
	}
	bank, err := quiz.LoadBank(bankPath)
	if err != nil {
		t.Fatalf("LoadBank: %v", err)
	}

	cfg := &coreconfig.Config{Telegram: coreconfig.TelegramConfig{Token: "123:test", APIURL: api.srv.URL, AdminID: admin}}
	for _, fn := range tune {
		fn(cfg)
	}
	if err := coreconfig.Normalize(cfg); err != nil {
		t.Fatal(err)
	}
	tb, err := tg.NewBot(cfg, true)
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	tb.Me.Username = "quiz_bot"

	disp := dispatch.NewDispatcher(dispatch.Options{Workers: 1})
	sink := &recordSink{}
	h := New(Options{
		Engine:        quiz.NewEngine(bank, quiz.Options{HintPenalty: quiz.DefaultHintPenalty}),
		Publisher:     results.NewPublisher(disp, sink),
		QuestionsPath: bankPath,
		AssetsDir:     dir,
		PublicURL:     "https://quiz.example.com",
		AdminChats:    []int64{notify},
	})
	h.Attach(tb)
	reg := tg.NewRegistry()
	if err := h.Register(reg); err != nil {
		t.Fatal(err)
	}
	tg.Compose(tb, tg.DefaultMiddlewares(cfg, Fallbacks{}.RateLimited()), Routes(reg, cfg.Telegram.AdminID, Fallbacks{}))

	return &harness{
		api:  api,
		srv:  tg.NewServer(tb, tg.ServerOptions{WebhookPath: cfg.Webhook.Path}),
		disp: disp,
		sink: sink,
		bank: bankPath,
		h:    h,
	}
}

func (hs *harness) post(t *testing.T, update map[string]any) {
	t.Helper()
	hs.seq++
	update["update_id"] = hs.seq
	body, _ := json.Marshal(update)
	rec := httptest.NewRecorder()
	hs.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram", strings.NewReader(string(body))))
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook status = %d", rec.Code)
	}
}

func message(from int64, text string) map[string]any {
	return map[string]any{"message": map[string]any{
		"message_id": 1,
		"date":       0,
		"chat":       map[string]any{"id": from, "type": "private"},
		"from":       map[string]any{"id": from, "first_name": "T"},
		"text":       text,
	}}
}

func photo(from int64, fileID string) map[string]any {
	return map[string]any{"message": map[string]any{
		"message_id": 2,
		"date":       0,
		"chat":       map[string]any{"id": from, "type": "private"},
		"from":       map[string]any{"id": from, "first_name": "T"},
		"photo": []map[string]any{
			{"file_id": "small", "file_unique_id": "s", "width": 90, "height": 90},
			{"file_id": fileID, "file_unique_id": "b", "width": 800, "height": 800},
		},
	}}
}

func tap(from int64, unique, data string) map[string]any {
	return map[string]any{"callback_query": map[string]any{
		"id":   "cb",
		"from": map[string]any{"id": from, "first_name": "T"},
		"message": map[string]any{
			"message_id": 3,
			"date":       0,
			"chat":       map[string]any{"id": from, "type": "private"},
		},
		"data": "\f" + unique + "|" + data,
	}}
}

func find(calls []apiCall, method, key, substr string) (apiCall, bool) {
	for _, c := range calls {
		if c.Method == method && strings.Contains(c.Params[key], substr) {
			return c, true
		}
	}
	return apiCall{}, false
}

func TestQuizRunOverWebhook(t *testing.T) {
	hs := newHarness(t)

	hs.post(t, message(player, "START"))
	if _, ok := find(hs.api.take(), "sendMessage", "text", "send your team name"); !ok {
		t.Fatal("missing team name prompt")
	}

	hs.post(t, message(player, "Night Owls"))
	calls := hs.api.take()
	if _, ok := find(calls, "sendMessage", "text", "<b>Night Owls</b>"); !ok {
		t.Fatalf("missing welcome: %+v", calls)
	}
	task, ok := find(calls, "sendPhoto", "photo", "https://quiz.example.com/static/fountain.jpg")
	if !ok || !strings.Contains(task.Params["caption"], "Question 1/2") {
		t.Fatalf("photo task not sent with a public asset link: %+v", calls)
	}
	if kb := task.Params["reply_markup"]; !strings.Contains(kb, "next|0") || !strings.Contains(kb, "hint|0") {
		t.Fatalf("photo task keyboard = %s", task.Params["reply_markup"])
	}

	hs.post(t, message(player, "hint"))
	hs.post(t, message(player, "HINT"))
	calls = hs.api.take()
	if _, ok := find(calls, "sendMessage", "text", "+60s time penalty"); !ok {
		t.Fatalf("first hint must announce the penalty: %+v", calls)
	}

	hs.post(t, photo(player, "big-1"))
	calls = hs.api.take()
	if _, ok := find(calls, "sendMessage", "text", "+1 point"); !ok {
		t.Fatalf("missing upload ack: %+v", calls)
	}
	fwd, ok := find(calls, "sendPhoto", "chat_id", "900")
	if !ok || fwd.Params["photo"] != "big-1" || strings.Contains(fwd.Params["caption"], "extra upload") {
		t.Fatalf("upload not forwarded to admins: %+v", calls)
	}

	hs.post(t, photo(player, "big-2"))
	if fwd, ok := find(hs.api.take(), "sendPhoto", "chat_id", "900"); !ok || !strings.Contains(fwd.Params["caption"], "extra upload") {
		t.Fatal("second upload must be forwarded without credit")
	}

	hs.post(t, tap(player, "next", "0"))
	calls = hs.api.take()
	if _, ok := find(calls, "sendMessage", "text", "Question 2/2"); !ok {
		t.Fatalf("missing second question: %+v", calls)
	}
	if _, ok := find(calls, "answerCallbackQuery", "callback_query_id", "cb"); !ok {
		t.Fatal("callback must be answered")
	}

	hs.post(t, tap(player, "next", "0"))
	if ack, ok := find(hs.api.take(), "answerCallbackQuery", "text", "no longer active"); !ok {
		t.Fatalf("stale tap must get a toast, got %+v", ack)
	}

	hs.post(t, tap(player, "answer", "1:0"))
	calls = hs.api.take()
	if _, ok := find(calls, "sendMessage", "text", "The correct answer is: <b>Rome</b>"); !ok {
		t.Fatalf("missing wrong-answer reply: %+v", calls)
	}
	if _, ok := find(calls, "sendPhoto", "caption", "since 1871"); !ok {
		t.Fatalf("explanation image and text must be paired: %+v", calls)
	}

	hs.post(t, message(player, "NEXT"))
	calls = hs.api.take()
	if _, ok := find(calls, "sendMessage", "text", "you scored <b>1</b> out of <b>2</b>"); !ok {
		t.Fatalf("missing summary: %+v", calls)
	}

	hs.disp.Close()
	if len(hs.sink.got) != 1 || hs.sink.got[0].Team != "Night Owls" || hs.sink.got[0].PenaltySeconds != 60 {
		t.Fatalf("published results = %+v", hs.sink.got)
	}
}

func TestPhotoBurstIsNotRateLimited(t *testing.T) {
	hs := newHarness(t, func(cfg *coreconfig.Config) {
		cfg.RateLimit = coreconfig.RateLimitConfig{IntervalMS: 60_000, ExcludeUpdates: []string{coreconfig.UpdateCallback}}
	})

	hs.post(t, message(player, "/start Foxes"))
	hs.api.take()

	for i := 1; i <= 3; i++ {
		hs.post(t, photo(player, fmt.Sprintf("burst-%d", i)))
	}
	calls := hs.api.take()
	for i := 1; i <= 3; i++ {
		want := fmt.Sprintf("burst-%d", i)
		if _, ok := find(calls, "sendPhoto", "photo", want); !ok {
			t.Fatalf("%s not forwarded to admins: %+v", want, calls)
		}
	}
	acks := 0
	for _, c := range calls {
		if c.Method == "sendMessage" && c.Params["chat_id"] == "42" {
			acks++
		}
	}
	if acks != 3 {
		t.Fatalf("acknowledgements = %d, want 3: %+v", acks, calls)
	}

	hs.post(t, message(player, "STATUS"))
	if calls := hs.api.take(); len(calls) != 0 {
		t.Fatalf("text messages stay rate limited: %+v", calls)
	}
}

func TestMalformedCallbackIsIgnored(t *testing.T) {
	hs := newHarness(t)
	hs.post(t, message(player, "/start Foxes"))
	hs.api.take()

	hs.post(t, tap(player, "answer", "oops"))
	hs.post(t, tap(player, "unknown", "1"))
	calls := hs.api.take()
	if _, ok := find(calls, "sendMessage", "text", ""); ok {
		t.Fatalf("malformed callbacks must not send messages: %+v", calls)
	}
	if _, ok := find(calls, "answerCallbackQuery", "text", "no longer active"); !ok {
		t.Fatalf("unknown callback toast missing: %+v", calls)
	}
}

func TestAdminCommands(t *testing.T) {
	hs := newHarness(t)

	hs.post(t, message(player, "/reload"))
	if _, ok := find(hs.api.take(), "sendMessage", "text", "admins only"); !ok {
		t.Fatal("non-admin must be rejected")
	}

	hs.post(t, message(player, "/start Foxes"))
	hs.api.take()
	hs.post(t, message(admin, "/sessions"))
	if _, ok := find(hs.api.take(), "sendMessage", "text", "<b>Foxes</b> · 1/2"); !ok {
		t.Fatal("sessions must list the running quiz")
	}

	if err := os.WriteFile(hs.bank, []byte(`[{"id":1,"question":"Q?","options":["a","b","c"],"answer":"b"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	hs.post(t, message(admin, "/reload"))
	if _, ok := find(hs.api.take(), "sendMessage", "text", "Reloaded 1 questions"); !ok {
		t.Fatal("reload not confirmed")
	}
	if got := hs.h.opts.Engine.Bank().Len(); got != 1 {
		t.Fatalf("bank len = %d after reload", got)
	}

	hs.post(t, message(admin, "/qr Night Owls"))
	qr, ok := find(hs.api.take(), "sendPhoto", "caption", "https://t.me/quiz_bot?start=Night_Owls")
	if !ok || !qr.Upload {
		t.Fatalf("qr code not uploaded: %+v", qr)
	}

	hs.post(t, message(player, "/start Night_Owls"))
	if _, ok := find(hs.api.take(), "sendMessage", "text", "<b>Night Owls</b>"); !ok {
		t.Fatal("deep link payload must restore the team name")
	}
}

func TestStartLink(t *testing.T) {
	cases := map[string]string{
		"":              "https://t.me/quiz_bot",
		"Night Owls":    "https://t.me/quiz_bot?start=Night_Owls",
		"  Café  Crew ": "https://t.me/quiz_bot?start=Caf_Crew",
	}
	for team, want := range cases {
		if got := StartLink("quiz_bot", team); got != want {
			t.Fatalf("StartLink(%q) = %s, want %s", team, got, want)
		}
	}
}

func TestAssetResolution(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("jpg"), 0o644); err != nil {
		t.Fatal(err)
	}
	h := New(Options{AssetsDir: dir, PublicURL: "https://quiz.example.com/"})

	if f, ok := h.asset("https://cdn.example.com/x.png"); !ok || f.FileURL != "https://cdn.example.com/x.png" {
		t.Fatalf("remote = %+v", f)
	}
	if f, ok := h.asset("static/a.jpg"); !ok || !f.OnDisk() {
		t.Fatalf("local = %+v", f)
	}
	if f, ok := h.asset("static/../../etc/b.jpg"); !ok || f.FileURL != "https://quiz.example.com/etc/b.jpg" {
		t.Fatalf("fallback = %+v", f)
	}
	if _, ok := New(Options{}).asset("static/missing.jpg"); ok {
		t.Fatal("no local file and no base URL must not resolve")
	}

	seen := New(Options{AssetsDir: dir})
	seen.UseBaseURL(func() string { return "https://seen.example.com/" })
	if f, ok := seen.asset("static/missing.jpg"); !ok || f.FileURL != "https://seen.example.com/static/missing.jpg" {
		t.Fatalf("request base fallback = %+v", f)
	}
}

func TestTaskImageUsesRequestBaseWithoutPublicURL(t *testing.T) {
	hs := newHarness(t)
	hs.h.opts.PublicURL = ""
	hs.h.UseBaseURL(hs.srv.BaseURL)

	hs.post(t, message(player, "/start Foxes"))
	calls := hs.api.take()
	task, ok := find(calls, "sendPhoto", "photo", "http://example.com/static/fountain.jpg")
	if !ok || !strings.Contains(task.Params["caption"], "Question 1/2") {
		t.Fatalf("photo task must link the asset under the request base: %+v", calls)
	}
}
