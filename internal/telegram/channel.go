package telegram

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	plotbot "github.com/lojasmm/plotbot/internal/bot"
	"github.com/lojasmm/plotbot/internal/flow"
)

const expiredText = "This menu has expired"

// Dispatcher is the conversation API the channel drives.
type Dispatcher interface {
	Start(ctx context.Context, chat string, out flow.Renderer) error
	Say(ctx context.Context, chat string, out flow.Renderer, text string) error
	Choose(ctx context.Context, chat string, out flow.Renderer, version uint64, index int) error
	Check(ctx context.Context, chat string, version uint64, index int) error
}

// API is the subset of *bot.Bot used to answer updates.
type API interface {
	Sender
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

type Channel struct {
	conv Dispatcher
}

func NewChannel(conv Dispatcher) *Channel {
	return &Channel{conv: conv}
}

// ChatKey namespaces a Telegram chat id among the other channels' chats.
func ChatKey(chatID int64) string { return "tg:" + strconv.FormatInt(chatID, 10) }

// Handle is registered as the bot's default handler.
func (c *Channel) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	c.handleUpdate(ctx, b, update)
}

func (c *Channel) handleUpdate(ctx context.Context, api API, update *models.Update) {
	switch {
	case update.CallbackQuery != nil:
		c.handleCallback(ctx, api, update.CallbackQuery)
	case update.Message != nil && update.Message.Text != "":
		c.handleText(ctx, api, update.Message)
	}
}

func (c *Channel) handleText(ctx context.Context, api API, msg *models.Message) {
	chat := ChatKey(msg.Chat.ID)
	out := NewRenderer(api, msg.Chat.ID)

	var err error
	if msg.Text == "/start" {
		err = c.conv.Start(ctx, chat, out)
	} else {
		err = c.conv.Say(ctx, chat, out, msg.Text)
	}
	if err != nil {
		log.Error().Err(err).Str("chat", chat).Msg("telegram: handling message failed")
	}
}

// handleCallback acknowledges the press before running the flow, which can
// take several API round trips. Presses on a replaced menu get a notice
// instead.
func (c *Channel) handleCallback(ctx context.Context, api API, q *models.CallbackQuery) {
	chatID := callbackChatID(q)
	chat := ChatKey(chatID)
	logger := log.With().Str("chat", chat).Str("data", q.Data).Logger()

	answer := &bot.AnswerCallbackQueryParams{CallbackQueryID: q.ID}

	version, index, err := plotbot.ParseChoice(q.Data)
	if err == nil {
		err = c.conv.Check(ctx, chat, version, index)
	}
	if err != nil {
		if isExpired(err) {
			logger.Info().Err(err).Msg("telegram: ignoring click on an old menu")
			answer.Text = expiredText
		} else {
			logger.Error().Err(err).Msg("telegram: checking click failed")
		}
		c.answer(ctx, api, answer, logger)
		return
	}

	c.answer(ctx, api, answer, logger)

	err = c.conv.Choose(ctx, chat, NewRenderer(api, chatID), version, index)
	switch {
	case isExpired(err):
		logger.Info().Err(err).Msg("telegram: menu replaced before click was applied")
	case err != nil:
		logger.Error().Err(err).Msg("telegram: choose failed")
	}
}

func (c *Channel) answer(ctx context.Context, api API, params *bot.AnswerCallbackQueryParams, logger zerolog.Logger) {
	if _, err := api.AnswerCallbackQuery(ctx, params); err != nil {
		logger.Warn().Err(err).Msg("telegram: answering callback failed")
	}
}

func isExpired(err error) bool {
	return errors.Is(err, plotbot.ErrStaleMenu) || errors.Is(err, plotbot.ErrUnknownOption) || errors.Is(err, plotbot.ErrBadChoice)
}

// callbackChatID finds the chat a button was pressed in. Messages too old for
// the Bot API to return still carry their chat.
func callbackChatID(q *models.CallbackQuery) int64 {
	switch {
	case q.Message.Message != nil:
		return q.Message.Message.Chat.ID
	case q.Message.InaccessibleMessage != nil:
		return q.Message.InaccessibleMessage.Chat.ID
	}
	return q.From.ID
}
