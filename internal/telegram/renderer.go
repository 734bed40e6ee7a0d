package telegram

import (
	"context"
	"html"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	plotbot "github.com/lojasmm/plotbot/internal/bot"
	"github.com/lojasmm/plotbot/internal/flow"
)

// Sender is the part of *bot.Bot the renderer needs.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Renderer delivers the flow to one Telegram chat. Transcript markup is sent
// as-is under the HTML parse mode.
type Renderer struct {
	b      Sender
	chatID int64
}

func NewRenderer(b Sender, chatID int64) *Renderer {
	return &Renderer{b: b, chatID: chatID}
}

func (r *Renderer) AppendMessage(ctx context.Context, role flow.Role, content string) error {
	if role != flow.RoleBot {
		return nil
	}
	_, err := r.b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    r.chatID,
		Text:      content,
		ParseMode: models.ParseModeHTML,
	})
	return err
}

func (r *Renderer) RenderOptions(ctx context.Context, menu flow.Menu) error {
	params := &bot.SendMessageParams{
		ChatID:    r.chatID,
		Text:      html.EscapeString(menu.Title),
		ParseMode: models.ParseModeHTML,
	}
	if len(menu.Options) > 0 {
		params.ReplyMarkup = keyboard(menu)
	}
	_, err := r.b.SendMessage(ctx, params)
	return err
}

// keyboard lays out one option per row; labels are too long for a grid.
func keyboard(menu flow.Menu) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, len(menu.Options))
	for i, o := range menu.Options {
		rows[i] = []models.InlineKeyboardButton{{
			Text:         o.Label,
			CallbackData: plotbot.EncodeChoice(menu.Version, i),
		}}
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}
