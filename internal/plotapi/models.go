package plotapi

import "encoding/json"

// AnswerResponse is returned by GET /answer.
type AnswerResponse struct {
	Question string          `json:"question"`
	Answer   json.RawMessage `json:"answer"`
}

// StatusResponse is returned by GET / on the Q&A API.
type StatusResponse struct {
	Status    string   `json:"status"`
	Endpoints []string `json:"endpoints"`
}

// errorPayload is the shape the API uses to report failures, with or without
// a non-200 status. FastAPI validation errors put an array in detail, so both
// fields stay raw until they are turned into text.
type errorPayload struct {
	Error  json.RawMessage `json:"error"`
	Detail json.RawMessage `json:"detail"`
}
