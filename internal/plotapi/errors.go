package plotapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind classifies why a call to the Q&A API was rejected.
type Kind string

const (
	KindTransport Kind = "transport" // request never produced a response
	KindStatus    Kind = "status"    // response status was not 200
	KindPayload   Kind = "payload"   // 200 with an error/detail field
	KindDecode    Kind = "decode"    // body was not the expected JSON
)

// GenericReason is shown when the API gives no detail of its own.
const GenericReason = "API Error"

// Error is the single error type returned by Client. Both transport failures
// and application-level error payloads end up here.
type Error struct {
	Kind   Kind
	URL    string
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTransport:
		return fmt.Sprintf("plotapi: GET %s: %v", e.URL, e.Err)
	case KindDecode:
		return fmt.Sprintf("plotapi: GET %s: decoding response: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("plotapi: GET %s status %d: %s", e.URL, e.Status, e.Reason())
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Reason is the user-facing failure text: the detail the API provided, or
// GenericReason.
func (e *Error) Reason() string {
	if e.Detail != "" {
		return e.Detail
	}
	return GenericReason
}

// payloadDetail extracts the user-facing text from an error payload and
// reports whether the payload marks the call as failed. Only detail is shown;
// an error field without detail fails the call with GenericReason.
func payloadDetail(p errorPayload) (string, bool) {
	detail := rawText(p.Detail)
	return detail, detail != "" || rawText(p.Error) != ""
}

// rawText renders a JSON value as display text: strings are unquoted, null and
// empty values become "", anything else is kept as compact JSON.
func rawText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("false")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
