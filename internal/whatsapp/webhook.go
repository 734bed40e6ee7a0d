package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Incoming is one user message. ReplyID is set when the user tapped a button
// or list row we sent.
type Incoming struct {
	From    string
	ID      string
	Text    string
	ReplyID string
}

// MessageHandler is called for each incoming message.
type MessageHandler func(ctx context.Context, msg Incoming)

type WebhookHandler struct {
	verifyToken string
	onMessage   MessageHandler
}

func NewWebhookHandler(verifyToken string, onMessage MessageHandler) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: verifyToken,
		onMessage:   onMessage,
	}
}

// HandleVerify answers Meta's subscription challenge.
// Reference: https://developers.facebook.com/docs/whatsapp/cloud-api/get-started#webhook-verification
func (h *WebhookHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(q.Get("hub.challenge")))
		return
	}

	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleIncoming processes webhook notifications. Meta retries on anything but
// 200, so malformed payloads are logged and acknowledged.
func (h *WebhookHandler) HandleIncoming(w http.ResponseWriter, r *http.Request) {
	var payload WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Warn().Err(err).Msg("webhook: failed to decode payload")
		w.WriteHeader(http.StatusOK)
		return
	}

	// Messages are handled inline; the flow must survive Meta dropping the
	// connection, so the request's cancellation is detached.
	ctx := context.WithoutCancel(r.Context())
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if in, ok := toIncoming(msg); ok {
					h.onMessage(ctx, in)
				}
			}
		}
	}

	w.WriteHeader(http.StatusOK)
}

func toIncoming(msg Message) (Incoming, bool) {
	in := Incoming{From: msg.From, ID: msg.ID}
	switch msg.Type {
	case "text":
		if msg.Text == nil {
			return in, false
		}
		in.Text = msg.Text.Body
	case "interactive":
		if msg.Interactive == nil {
			return in, false
		}
		var reply *Reply
		switch msg.Interactive.Type {
		case "button_reply":
			reply = msg.Interactive.ButtonReply
		case "list_reply":
			reply = msg.Interactive.ListReply
		}
		if reply == nil {
			return in, false
		}
		in.Text = reply.Title
		in.ReplyID = reply.ID
	default:
		return in, false
	}
	return in, true
}
