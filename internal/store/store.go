package store

import (
	"context"
	"strings"
	"time"

	"github.com/lojasmm/plotbot/internal/flow"
)

// Entry is one transcript bubble.
type Entry struct {
	Role    flow.Role `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Record is the persisted conversation state of one chat: the flow session and
// the option set currently on screen. MenuVersion only ever grows, so a
// button rendered for an older menu can be told apart from the current one.
type Record struct {
	Chat        string       `json:"chat"`
	Session     flow.Session `json:"session"`
	Menu        *flow.Menu   `json:"menu,omitempty"`
	MenuVersion uint64       `json:"menu_version"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Store persists transcripts and session records keyed by chat. Transcripts
// are append-only.
type Store interface {
	AppendEntry(ctx context.Context, chat string, e Entry) error
	Transcript(ctx context.Context, chat string) ([]Entry, error)
	GetRecord(ctx context.Context, chat string) (*Record, error)
	SaveRecord(ctx context.Context, rec Record) error
	Close() error
}

// keyReplacer strips characters that are not valid in Firebase paths so chat
// keys stay portable between backends.
var keyReplacer = strings.NewReplacer(".", "_", "$", "_", "#", "_", "[", "_", "]", "_", "/", "_")

func sanitizeKey(chat string) string {
	return keyReplacer.Replace(chat)
}
