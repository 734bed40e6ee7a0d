package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultAPIURL = "https://graph.facebook.com/v21.0"

type Client struct {
	apiURL        string
	phoneNumberID string
	accessToken   string
	http          *http.Client
}

type ClientOption func(*Client)

// WithAPIURL points the client at another Graph API root.
func WithAPIURL(u string) ClientOption {
	return func(c *Client) { c.apiURL = u }
}

func NewClient(phoneNumberID, accessToken string, opts ...ClientOption) *Client {
	c := &Client{
		apiURL:        defaultAPIURL,
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		http:          &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SendText(ctx context.Context, to, body string) error {
	msg := SendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &SendText{Body: body},
	}
	return c.send(ctx, msg)
}

// SendInteractiveButtons sends up to 3 reply buttons.
func (c *Client) SendInteractiveButtons(ctx context.Context, to, body string, buttons []Button) error {
	msg := SendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive: &Interactive{
			Type:   "button",
			Body:   InteractiveBody{Text: body},
			Action: InteractiveAction{Buttons: buttons},
		},
	}
	return c.send(ctx, msg)
}

// SendList sends a list message; all sections together hold at most 10 rows.
func (c *Client) SendList(ctx context.Context, to, body, buttonText string, sections []Section) error {
	msg := SendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive: &Interactive{
			Type: "list",
			Body: InteractiveBody{Text: body},
			Action: InteractiveAction{
				Button:   buttonText,
				Sections: sections,
			},
		},
	}
	return c.send(ctx, msg)
}

func (c *Client) send(ctx context.Context, msg SendMessageRequest) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.apiURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp API status %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
