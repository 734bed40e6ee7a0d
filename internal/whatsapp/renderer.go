package whatsapp

import (
	"context"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/lojasmm/plotbot/internal/bot"
	"github.com/lojasmm/plotbot/internal/flow"
)

// Renderer delivers the flow to one WhatsApp number.
type Renderer struct {
	wa *Client
	to string
}

func NewRenderer(wa *Client, to string) *Renderer {
	return &Renderer{wa: wa, to: to}
}

// AppendMessage sends bot entries as text. User entries are what the person
// typed or tapped themselves, so they are not echoed back.
func (r *Renderer) AppendMessage(ctx context.Context, role flow.Role, content string) error {
	if role != flow.RoleBot {
		return nil
	}
	return r.wa.SendText(ctx, r.to, toWhatsAppText(content))
}

// RenderOptions uses reply buttons when the menu fits in them and list
// messages otherwise, splitting menus longer than one list can hold.
func (r *Renderer) RenderOptions(ctx context.Context, menu flow.Menu) error {
	if len(menu.Options) == 0 {
		return r.wa.SendText(ctx, r.to, menu.Title)
	}
	if fitsButtons(menu.Options) {
		return r.wa.SendInteractiveButtons(ctx, r.to, menu.Title, buildButtons(menu))
	}
	for _, sections := range buildLists(menu) {
		if err := r.wa.SendList(ctx, r.to, menu.Title, "Options", sections); err != nil {
			return err
		}
	}
	return nil
}

func fitsButtons(opts []flow.Option) bool {
	if len(opts) > maxReplyButtons {
		return false
	}
	for _, o := range opts {
		if utf8.RuneCountInString(o.Label) > maxButtonTitle {
			return false
		}
	}
	return true
}

func buildButtons(menu flow.Menu) []Button {
	buttons := make([]Button, len(menu.Options))
	for i, o := range menu.Options {
		buttons[i] = Button{
			Type:  "reply",
			Reply: Reply{ID: bot.EncodeChoice(menu.Version, i), Title: o.Label},
		}
	}
	return buttons
}

// buildLists returns one section list per list message. Row ids keep the
// option's index in the whole menu.
func buildLists(menu flow.Menu) [][]Section {
	var lists [][]Section
	for start := 0; start < len(menu.Options); start += maxListRows {
		end := min(start+maxListRows, len(menu.Options))
		rows := make([]SectionRow, 0, end-start)
		for i := start; i < end; i++ {
			label := menu.Options[i].Label
			row := SectionRow{ID: bot.EncodeChoice(menu.Version, i), Title: truncate(label, maxRowTitle)}
			if row.Title != label {
				row.Description = truncate(label, maxRowDescription)
			}
			rows = append(rows, row)
		}
		lists = append(lists, []Section{{Title: truncate(menu.Title, maxSectionTitle), Rows: rows}})
	}
	return lists
}

// toWhatsAppText turns transcript markup into WhatsApp formatting: bold stays
// bold, other tags are dropped, entities are decoded.
func toWhatsAppText(markup string) string {
	var text strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(markup))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			// a string reader only ends with io.EOF
			return strings.TrimSpace(text.String())
		case html.TextToken:
			text.Write(tokenizer.Text())
		case html.StartTagToken, html.EndTagToken:
			if name, _ := tokenizer.TagName(); isBold(string(name)) {
				text.WriteByte('*')
			}
		}
	}
}

func isBold(tag string) bool {
	return tag == "strong" || tag == "b"
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}
