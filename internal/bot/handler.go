package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lojasmm/plotbot/internal/flow"
	"github.com/lojasmm/plotbot/internal/session"
	"github.com/lojasmm/plotbot/internal/store"
)

var (
	// ErrStaleMenu is returned when a click refers to a menu that has since
	// been replaced, or when no menu is on screen.
	ErrStaleMenu = errors.New("bot: option belongs to a replaced menu")
	// ErrUnknownOption is returned when the index is outside the current menu.
	ErrUnknownOption = errors.New("bot: no such option")
)

// Handler connects chat channels to the flow controller. It loads and saves
// each chat's record, records the transcript, and serializes work per chat.
type Handler struct {
	flow  *flow.Controller
	store store.Store
	locks *session.Locker
	now   func() time.Time
}

func NewHandler(c *flow.Controller, s store.Store, locks *session.Locker) *Handler {
	return &Handler{flow: c, store: s, locks: locks, now: time.Now}
}

// Start opens the main menu for chat.
func (h *Handler) Start(ctx context.Context, chat string, out flow.Renderer) error {
	return h.locks.Do(ctx, chat, func() error {
		rec, err := h.load(ctx, chat)
		if err != nil {
			return err
		}
		return h.enter(ctx, rec, out, flow.MainMenu())
	})
}

// Say records free text typed by the user and answers with the main menu.
func (h *Handler) Say(ctx context.Context, chat string, out flow.Renderer, text string) error {
	return h.locks.Do(ctx, chat, func() error {
		rec, err := h.load(ctx, chat)
		if err != nil {
			return err
		}
		if err := h.append(ctx, chat, flow.RoleUser, html.EscapeString(text)); err != nil {
			return err
		}
		return h.enter(ctx, rec, out, flow.MainMenu())
	})
}

// Choose applies a click on option index of the menu with the given version.
func (h *Handler) Choose(ctx context.Context, chat string, out flow.Renderer, version uint64, index int) error {
	return h.locks.Do(ctx, chat, func() error {
		rec, err := h.load(ctx, chat)
		if err != nil {
			return err
		}
		if err := validChoice(rec, version, index); err != nil {
			return err
		}

		opt := rec.Menu.Options[index]
		log.Debug().Str("chat", chat).Str("option", opt.Label).Stringer("next", opt.Next).Msg("bot: option chosen")
		return h.enter(ctx, rec, out, opt.Next)
	})
}

// Check reports whether a click would be accepted by Choose right now,
// without running the flow. The menu can still be replaced before Choose.
func (h *Handler) Check(ctx context.Context, chat string, version uint64, index int) error {
	rec, err := h.load(ctx, chat)
	if err != nil {
		return err
	}
	return validChoice(rec, version, index)
}

func validChoice(rec *store.Record, version uint64, index int) error {
	if rec.Menu == nil || rec.Menu.Version != version {
		return ErrStaleMenu
	}
	if index < 0 || index >= len(rec.Menu.Options) {
		return ErrUnknownOption
	}
	return nil
}

// State returns the chat's record and transcript. The record is nil for a
// chat that has never been started.
func (h *Handler) State(ctx context.Context, chat string) (*store.Record, []store.Entry, error) {
	rec, err := h.store.GetRecord(ctx, chat)
	if err != nil {
		return nil, nil, fmt.Errorf("loading record: %w", err)
	}
	entries, err := h.store.Transcript(ctx, chat)
	if err != nil {
		return nil, nil, fmt.Errorf("loading transcript: %w", err)
	}
	return rec, entries, nil
}

func (h *Handler) load(ctx context.Context, chat string) (*store.Record, error) {
	rec, err := h.store.GetRecord(ctx, chat)
	if err != nil {
		return nil, fmt.Errorf("loading record for %s: %w", chat, err)
	}
	if rec == nil {
		rec = &store.Record{Chat: chat}
	}
	return rec, nil
}

// enter runs the flow from st and persists the resulting record even when the
// channel failed halfway, so menu versions never go backwards.
func (h *Handler) enter(ctx context.Context, rec *store.Record, out flow.Renderer, st flow.Stage) error {
	rr := &recorder{h: h, rec: rec, out: out}
	sess, flowErr := h.flow.Enter(ctx, rr, rec.Session, st)

	rec.Session = sess
	rec.UpdatedAt = h.now()
	if err := h.store.SaveRecord(ctx, *rec); err != nil {
		return fmt.Errorf("saving record for %s: %w", rec.Chat, err)
	}
	return flowErr
}

func (h *Handler) append(ctx context.Context, chat string, role flow.Role, content string) error {
	if err := h.store.AppendEntry(ctx, chat, store.Entry{Role: role, Content: content, At: h.now()}); err != nil {
		return fmt.Errorf("appending entry for %s: %w", chat, err)
	}
	return nil
}

// recorder persists everything the controller shows before handing it to the
// channel renderer.
type recorder struct {
	h   *Handler
	rec *store.Record
	out flow.Renderer
}

func (r *recorder) AppendMessage(ctx context.Context, role flow.Role, content string) error {
	if err := r.h.append(ctx, r.rec.Chat, role, content); err != nil {
		return err
	}
	return r.out.AppendMessage(ctx, role, content)
}

func (r *recorder) RenderOptions(ctx context.Context, menu flow.Menu) error {
	r.rec.MenuVersion++
	menu.Version = r.rec.MenuVersion
	r.rec.Menu = &menu
	return r.out.RenderOptions(ctx, menu)
}
