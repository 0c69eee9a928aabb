// Package dispatcher maps natural-language queries to exactly one registry
// operation using the text-generation client, and serves those queries over
// COMMS request/reply.
package dispatcher

// QueryRequest is the JSON envelope for incoming COMMS queries.
type QueryRequest struct {
	ID      string         `json:"id"`
	Query   string         `json:"query"`
	UserID  string         `json:"user_id,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// QueryResponse is the JSON envelope for COMMS query responses. Ok reports
// whether the request could be dispatched at all; Result carries the
// dispatch outcome, which may itself be unsuccessful.
type QueryResponse struct {
	ID     string       `json:"id"`
	Ok     bool         `json:"ok"`
	Result *Result      `json:"result,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail holds structured error information.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}
