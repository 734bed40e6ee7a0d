package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lojasmm/plotbot/internal/bot"
	"github.com/lojasmm/plotbot/internal/flow"
	"github.com/lojasmm/plotbot/internal/plotapi"
	"github.com/lojasmm/plotbot/internal/session"
	"github.com/lojasmm/plotbot/internal/store"
)

func qaAPI(w http.ResponseWriter, r *http.Request) {
	switch r.URL.RequestURI() {
	case "/menu":
		w.Write([]byte(`["Math","Physics"]`))
	case "/questions/Math":
		w.Write([]byte(`["What is pi?"]`))
	case "/answer?question=What%20is%20pi%3F":
		w.Write([]byte(`{"question":"What is pi?","answer":"3.14159"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Not Found"}`))
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return newRouterFor(t, qaAPI)
}

func newRouterFor(t *testing.T, upstream http.HandlerFunc) http.Handler {
	t.Helper()
	api := httptest.NewServer(upstream)
	t.Cleanup(api.Close)

	s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "web.db"))
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	c := flow.NewController(plotapi.NewClient(api.URL, 5*time.Second))
	r := chi.NewRouter()
	NewHandler(bot.NewHandler(c, s, session.NewLocker())).Routes(r)
	return r
}

type browser struct {
	t      *testing.T
	h      http.Handler
	cookie *http.Cookie
}

func (b *browser) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	rec := httptest.NewRecorder()
	b.h.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			b.cookie = c
		}
	}
	return rec
}

func (b *browser) selectOption(version, index string) *httptest.ResponseRecorder {
	return b.do(http.MethodPost, "/chat/select", url.Values{"version": {version}, "index": {index}})
}

func (b *browser) transcript() transcriptResponse {
	b.t.Helper()
	rec := b.do(http.MethodGet, "/chat/transcript", nil)
	var resp transcriptResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		b.t.Fatalf("decoding transcript: %v", err)
	}
	return resp
}

func TestHandler_FirstVisitLoadsMenu(t *testing.T) {
	b := &browser{t: t, h: newTestRouter(t)}

	rec := b.do(http.MethodGet, "/chat", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if b.cookie == nil {
		t.Fatal("no session cookie issued")
	}
	body := rec.Body.String()
	for _, want := range []string{flow.MenuTitle, ">Math</button>", ">Physics</button>", `name="version" value="1"`} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, flow.BackLabel) {
		t.Error("main menu has a back button")
	}
}

func TestHandler_SelectFollowsOption(t *testing.T) {
	b := &browser{t: t, h: newTestRouter(t)}
	b.do(http.MethodGet, "/chat", nil)

	rec := b.selectOption("1", "0")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/chat" {
		t.Fatalf("select = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	body := b.do(http.MethodGet, "/chat", nil).Body.String()
	for _, want := range []string{"Questions for: Math", ">What is pi?</button>", flow.BackLabel} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}

	b.selectOption("2", "0")
	tr := b.transcript()
	want := []string{
		"<strong>Question:</strong> What is pi?",
		"<strong>Answer:</strong> 3.14159",
		flow.CompletionText,
	}
	if len(tr.Entries) != len(want) {
		t.Fatalf("entries = %+v", tr.Entries)
	}
	for i, e := range tr.Entries {
		if e.Content != want[i] || e.Role != flow.RoleBot {
			t.Errorf("entry %d = %+v, want %q", i, e, want[i])
		}
	}
	if tr.Menu == nil || tr.Menu.Title != flow.MenuTitle || tr.Menu.Version != 3 {
		t.Fatalf("menu = %+v", tr.Menu)
	}
}

func TestHandler_StaleClickIsIgnored(t *testing.T) {
	b := &browser{t: t, h: newTestRouter(t)}
	b.do(http.MethodGet, "/chat", nil)
	b.selectOption("1", "0")

	rec := b.selectOption("1", "1")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("stale select status = %d", rec.Code)
	}
	tr := b.transcript()
	if tr.Menu == nil || tr.Menu.Title != "Questions for: Math" || tr.Menu.Version != 2 {
		t.Fatalf("menu after stale click = %+v", tr.Menu)
	}
}

func TestHandler_Restart(t *testing.T) {
	b := &browser{t: t, h: newTestRouter(t)}
	b.do(http.MethodGet, "/chat", nil)
	b.selectOption("1", "0")

	if rec := b.do(http.MethodPost, "/chat/restart", nil); rec.Code != http.StatusSeeOther {
		t.Fatalf("restart status = %d", rec.Code)
	}
	if tr := b.transcript(); tr.Menu == nil || tr.Menu.Title != flow.MenuTitle {
		t.Fatalf("menu after restart = %+v", tr.Menu)
	}
}

func TestHandler_ClientDisconnectDoesNotPolluteTranscript(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The browser goes away while the answer is being fetched.
	h := newRouterFor(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/answer") {
			cancel()
			time.Sleep(50 * time.Millisecond)
		}
		qaAPI(w, r)
	})
	b := &browser{t: t, h: h}
	b.do(http.MethodGet, "/chat", nil)
	b.selectOption("1", "0")

	req := httptest.NewRequest(http.MethodPost, "/chat/select", strings.NewReader(url.Values{"version": {"2"}, "index": {"0"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(b.cookie)
	h.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))

	tr := b.transcript()
	for _, e := range tr.Entries {
		if strings.HasPrefix(e.Content, "Error ") {
			t.Errorf("error entry after disconnect: %q", e.Content)
		}
	}
	if len(tr.Entries) != 3 || tr.Entries[1].Content != "<strong>Answer:</strong> 3.14159" {
		t.Fatalf("entries = %+v", tr.Entries)
	}
	if tr.Menu == nil || tr.Menu.Title != flow.MenuTitle {
		t.Fatalf("menu = %+v", tr.Menu)
	}
}

func TestHandler_BadForm(t *testing.T) {
	b := &browser{t: t, h: newTestRouter(t)}
	for _, form := range []url.Values{
		{"version": {"x"}, "index": {"0"}},
		{"version": {"1"}, "index": {"y"}},
	} {
		if rec := b.do(http.MethodPost, "/chat/select", form); rec.Code != http.StatusBadRequest {
			t.Errorf("form %v status = %d", form, rec.Code)
		}
	}
}

func TestHandler_ForgedCookieGetsNewSession(t *testing.T) {
	b := &browser{t: t, h: newTestRouter(t), cookie: &http.Cookie{Name: cookieName, Value: "../../etc"}}
	b.do(http.MethodGet, "/chat", nil)
	if b.cookie.Value == "../../etc" {
		t.Fatal("forged cookie was accepted")
	}
}

func TestHandler_RootRedirects(t *testing.T) {
	b := &browser{t: t, h: newTestRouter(t)}
	rec := b.do(http.MethodGet, "/", nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/chat" {
		t.Fatalf("root = %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

type fakeProber struct {
	err error
}

func (p fakeProber) Status(context.Context) (*plotapi.StatusResponse, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &plotapi.StatusResponse{Status: "running"}, nil
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		target string
		prober fakeProber
		code   int
		body   string
	}{
		{"shallow", "/health", fakeProber{err: errors.New("unused")}, http.StatusOK, "ok"},
		{"deep ok", "/health?deep=1", fakeProber{}, http.StatusOK, `"upstream":"running"`},
		{"deep down", "/health?deep=1", fakeProber{err: errors.New("refused")}, http.StatusServiceUnavailable, `"status":"degraded"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Health(tt.prober)(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			if rec.Code != tt.code || !strings.Contains(rec.Body.String(), tt.body) {
				t.Fatalf("got %d %q", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
}
