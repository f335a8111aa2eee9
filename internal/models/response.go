package models

import "encoding/json"

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the single terminal message of an execution unit. Exactly one of Results
// (on success, possibly empty) or Error (on failure) is meaningful.
type Response struct {
	Status  string            `json:"status"`
	Results []json.RawMessage `json:"results,omitempty"`
	Error   string            `json:"error,omitempty"`
	Kind    string            `json:"kind,omitempty"`
}

// Success builds a success response. A nil slice is sent as [].
func Success(results []json.RawMessage) *Response {
	if results == nil {
		results = []json.RawMessage{}
	}
	return &Response{Status: StatusSuccess, Results: results}
}

// Failure builds an error response carrying the error kind.
func Failure(kind, message string) *Response {
	return &Response{Status: StatusError, Error: message, Kind: kind}
}

// MarshalJSON always emits results on success, including an empty list.
func (r Response) MarshalJSON() ([]byte, error) {
	type plain Response
	if r.Status != StatusSuccess {
		return json.Marshal(plain(r))
	}
	results := r.Results
	if results == nil {
		results = []json.RawMessage{}
	}
	return json.Marshal(struct {
		Status  string            `json:"status"`
		Results []json.RawMessage `json:"results"`
	}{r.Status, results})
}
