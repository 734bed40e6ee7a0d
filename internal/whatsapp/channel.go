package whatsapp

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/lojasmm/plotbot/internal/bot"
	"github.com/lojasmm/plotbot/internal/flow"
)

// Dispatcher is the conversation API the channel drives.
type Dispatcher interface {
	Say(ctx context.Context, chat string, out flow.Renderer, text string) error
	Choose(ctx context.Context, chat string, out flow.Renderer, version uint64, index int) error
}

// Channel routes WhatsApp messages into the conversation dispatcher.
type Channel struct {
	wa   *Client
	conv Dispatcher
}

func NewChannel(wa *Client, conv Dispatcher) *Channel {
	return &Channel{wa: wa, conv: conv}
}

// ChatKey namespaces a phone number among the other channels' chats.
func ChatKey(phone string) string { return "wa:" + phone }

// HandleMessage is the webhook's MessageHandler. Taps on our buttons choose
// an option; anything else is treated as free text and reopens the main menu.
func (c *Channel) HandleMessage(ctx context.Context, msg Incoming) {
	chat := ChatKey(msg.From)
	out := NewRenderer(c.wa, msg.From)
	logger := log.With().Str("chat", chat).Str("message_id", msg.ID).Logger()

	if msg.ReplyID != "" {
		version, index, err := bot.ParseChoice(msg.ReplyID)
		if err == nil {
			err = c.conv.Choose(ctx, chat, out, version, index)
			switch {
			case errors.Is(err, bot.ErrStaleMenu), errors.Is(err, bot.ErrUnknownOption):
				logger.Info().Err(err).Msg("whatsapp: ignoring reply to an old menu")
				return
			case err != nil:
				logger.Error().Err(err).Msg("whatsapp: choose failed")
			}
			return
		}
		logger.Warn().Err(err).Str("reply_id", msg.ReplyID).Msg("whatsapp: unrecognized reply id")
	}

	if err := c.conv.Say(ctx, chat, out, msg.Text); err != nil {
		logger.Error().Err(err).Msg("whatsapp: handling text failed")
	}
}
