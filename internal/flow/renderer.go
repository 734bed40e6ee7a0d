package flow

import (
	"context"

	"github.com/lojasmm/plotbot/internal/plotapi"
)

// Role tags a transcript entry.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Option is one button. Label is the raw text shown to the user, Encoded its
// URL-component form.
type Option struct {
	Label   string `json:"label"`
	Encoded string `json:"encoded"`
	Next    Stage  `json:"next"`
	Back    bool   `json:"back,omitempty"`
}

// Menu is the option panel. It is replaced wholesale on every navigation step.
// Version is assigned by whoever persists the menu; the controller leaves it 0.
type Menu struct {
	Title   string   `json:"title"`
	Options []Option `json:"options"`
	Version uint64   `json:"version"`
}

// HasBack reports whether the menu ends with a back-to-main-menu button.
func (m Menu) HasBack() bool {
	return len(m.Options) > 0 && m.Options[len(m.Options)-1].Back
}

// Renderer is the presentation capability the controller drives. Content
// passed to AppendMessage is trusted markup.
type Renderer interface {
	AppendMessage(ctx context.Context, role Role, content string) error
	RenderOptions(ctx context.Context, menu Menu) error
}

func newOption(label string, next Stage) Option {
	return Option{Label: label, Encoded: plotapi.EncodeComponent(label), Next: next}
}

func backOption() Option {
	return Option{
		Label:   BackLabel,
		Encoded: plotapi.EncodeComponent(BackLabel),
		Next:    MainMenu(),
		Back:    true,
	}
}
