package plotapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 1 << 20

// Client talks to the Q&A API. Every method issues exactly one GET.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Menu returns the list of subjects.
// GET /menu
func (c *Client) Menu(ctx context.Context) ([]string, error) {
	var subjects []string
	if err := c.get(ctx, "/menu", &subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}

// Questions returns the questions filed under subject.
// GET /questions/{subject}
func (c *Client) Questions(ctx context.Context, subject string) ([]string, error) {
	var questions []string
	if err := c.get(ctx, "/questions/"+EncodeComponent(subject), &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// Answer returns the answer text for question.
// GET /answer?question={question}
func (c *Client) Answer(ctx context.Context, question string) (string, error) {
	path := "/answer?question=" + EncodeComponent(question)
	var resp AnswerResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return "", err
	}
	if len(bytes.TrimSpace(resp.Answer)) == 0 {
		return "", &Error{
			Kind:   KindDecode,
			URL:    c.baseURL + path,
			Status: http.StatusOK,
			Err:    errors.New("response has no answer field"),
		}
	}
	return rawText(resp.Answer), nil
}

// Status fetches the API's root status document.
// GET /
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var status StatusResponse
	if err := c.get(ctx, "/", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// get performs one GET and decodes the body into out. The response is
// accepted only when the status is 200 and the body carries no error/detail.
func (c *Client) get(ctx context.Context, path string, out any) error {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &Error{Kind: KindTransport, URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &Error{Kind: KindTransport, URL: url, Status: resp.StatusCode, Err: fmt.Errorf("reading body: %w", err)}
	}

	var payload errorPayload
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '{' {
		// A body that is not an error object simply leaves payload empty.
		_ = json.Unmarshal(trimmed, &payload)
	}
	detail, failed := payloadDetail(payload)

	if resp.StatusCode != http.StatusOK {
		return &Error{Kind: KindStatus, URL: url, Status: resp.StatusCode, Detail: detail}
	}
	if failed {
		return &Error{Kind: KindPayload, URL: url, Status: resp.StatusCode, Detail: detail}
	}
	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return &Error{Kind: KindDecode, URL: url, Status: resp.StatusCode, Err: errors.New("response body is null")}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindDecode, URL: url, Status: resp.StatusCode, Err: err}
	}
	return nil
}
