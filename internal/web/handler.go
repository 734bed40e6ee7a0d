package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/lojasmm/plotbot/internal/bot"
	"github.com/lojasmm/plotbot/internal/flow"
	"github.com/lojasmm/plotbot/internal/store"
)

//go:embed page.html
var pageFS embed.FS

var pageTmpl = template.Must(template.ParseFS(pageFS, "page.html"))

const cookieName = "plotbot_session"

// Dispatcher is the conversation API the widget drives.
type Dispatcher interface {
	Start(ctx context.Context, chat string, out flow.Renderer) error
	Choose(ctx context.Context, chat string, out flow.Renderer, version uint64, index int) error
	State(ctx context.Context, chat string) (*store.Record, []store.Entry, error)
}

type pageEntry struct {
	Role    flow.Role
	Content template.HTML
}

type pageData struct {
	Entries []pageEntry
	Menu    *flow.Menu
}

type transcriptResponse struct {
	Chat    string        `json:"chat"`
	Entries []store.Entry `json:"entries"`
	Menu    *flow.Menu    `json:"menu"`
}

// Handler serves the chat widget. Every visitor is one chat, identified by a
// session cookie.
type Handler struct {
	conv Dispatcher
}

func NewHandler(conv Dispatcher) *Handler {
	return &Handler{conv: conv}
}

// Routes mounts the widget on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/chat", http.StatusFound)
	})
	r.Route("/chat", func(r chi.Router) {
		r.Get("/", h.HandlePage)
		r.Post("/select", h.HandleSelect)
		r.Post("/restart", h.HandleRestart)
		r.Get("/transcript", h.HandleTranscript)
	})
}

// ChatKey namespaces a browser session id among the other channels' chats.
func ChatKey(id string) string { return "web:" + id }

// HandlePage renders the transcript and the current options. A chat that has
// never been started loads the main menu first.
func (h *Handler) HandlePage(w http.ResponseWriter, r *http.Request) {
	chat := h.chat(w, r)

	rec, entries, err := h.conv.State(r.Context(), chat)
	if err != nil {
		h.fail(w, chat, "loading state", err)
		return
	}
	if rec == nil {
		if err := h.conv.Start(flowContext(r), chat, discard{}); err != nil {
			h.fail(w, chat, "starting chat", err)
			return
		}
		if rec, entries, err = h.conv.State(r.Context(), chat); err != nil {
			h.fail(w, chat, "loading state", err)
			return
		}
	}

	data := pageData{Entries: make([]pageEntry, len(entries))}
	for i, e := range entries {
		// entries hold markup built from escaped values
		data.Entries[i] = pageEntry{Role: e.Role, Content: template.HTML(e.Content)}
	}
	if rec != nil {
		data.Menu = rec.Menu
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTmpl.Execute(w, data); err != nil {
		log.Error().Err(err).Str("chat", chat).Msg("web: rendering page failed")
	}
}

// HandleSelect applies a button click. Clicks on a replaced menu are ignored
// and the page shows the current state.
func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	version, err := strconv.ParseUint(r.FormValue("version"), 10, 64)
	if err != nil {
		http.Error(w, "invalid version", http.StatusBadRequest)
		return
	}
	index, err := strconv.Atoi(r.FormValue("index"))
	if err != nil {
		http.Error(w, "invalid index", http.StatusBadRequest)
		return
	}

	chat := h.chat(w, r)
	err = h.conv.Choose(flowContext(r), chat, discard{}, version, index)
	switch {
	case errors.Is(err, bot.ErrStaleMenu), errors.Is(err, bot.ErrUnknownOption):
		log.Info().Err(err).Str("chat", chat).Uint64("version", version).Int("index", index).Msg("web: ignoring stale click")
	case err != nil:
		h.fail(w, chat, "applying choice", err)
		return
	}
	http.Redirect(w, r, "/chat", http.StatusSeeOther)
}

func (h *Handler) HandleRestart(w http.ResponseWriter, r *http.Request) {
	chat := h.chat(w, r)
	if err := h.conv.Start(flowContext(r), chat, discard{}); err != nil {
		h.fail(w, chat, "restarting chat", err)
		return
	}
	http.Redirect(w, r, "/chat", http.StatusSeeOther)
}

func (h *Handler) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	chat := h.chat(w, r)
	rec, entries, err := h.conv.State(r.Context(), chat)
	if err != nil {
		h.fail(w, chat, "loading state", err)
		return
	}

	resp := transcriptResponse{Chat: chat, Entries: entries}
	if resp.Entries == nil {
		resp.Entries = []store.Entry{}
	}
	if rec != nil {
		resp.Menu = rec.Menu
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// chat returns the visitor's chat key, issuing a new session cookie when the
// request has none or a forged one.
func (h *Handler) chat(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(cookieName); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return ChatKey(id.String())
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return ChatKey(id)
}

// flowContext keeps the request's values but not its cancellation, so a
// reload mid-flow cannot cut the API calls short.
func flowContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (h *Handler) fail(w http.ResponseWriter, chat, what string, err error) {
	log.Error().Err(err).Str("chat", chat).Msg("web: " + what)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

// discard is the widget's renderer. The dispatcher persists everything the
// flow shows, and the page is rendered from that state.
type discard struct{}

func (discard) AppendMessage(context.Context, flow.Role, string) error { return nil }
func (discard) RenderOptions(context.Context, flow.Menu) error { return nil }
