// Package worker is the isolation boundary: every query runs in its own execution unit that
// reads exactly one request and writes exactly one response.
package worker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hyperjump/recall/internal/models"
)

// ReadRequest decodes the single request message from r.
func ReadRequest(r io.Reader) (*models.Request, error) {
	var req models.Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &req, nil
}

// WriteMessage encodes v as one line of JSON.
func WriteMessage(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// ParseResponse decodes the terminal message from a unit's complete output. Anything after
// the first message is an error: a unit sends exactly one.
func ParseResponse(data []byte) (*models.Response, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errNoMessage
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	var resp models.Response
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("malformed worker message: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("malformed worker message: more than one message")
	}
	switch resp.Status {
	case models.StatusSuccess:
		if resp.Results == nil {
			resp.Results = []json.RawMessage{}
		}
	case models.StatusError:
	default:
		return nil, fmt.Errorf("malformed worker message: unknown status %q", resp.Status)
	}
	return &resp, nil
}

var errNoMessage = errors.New("worker exited without a result")
