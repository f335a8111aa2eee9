// Package models defines the messages exchanged across the isolation boundary.
package models

import (
	"fmt"

	"github.com/hyperjump/recall/pkg/utils"
)

// Request is the single input message of an execution unit.
type Request struct {
	Collection      string    `json:"collection"`
	QueryVector     []float32 `json:"queryVector"`
	K               int       `json:"k"`
	EfSearch        *int      `json:"efSearch,omitempty"`
	VectorStorePath string    `json:"vectorStorePath"`
}

// Validate rejects requests that cannot be served without reading any file.
func (r *Request) Validate() error {
	if r.Collection == "" {
		return fmt.Errorf("collection cannot be empty")
	}
	if len(r.QueryVector) == 0 {
		return fmt.Errorf("queryVector cannot be empty")
	}
	if !utils.AllFinite(r.QueryVector) {
		return fmt.Errorf("queryVector contains NaN or infinite values")
	}
	if r.K <= 0 {
		return fmt.Errorf("k must be positive, got %d", r.K)
	}
	if r.EfSearch != nil && *r.EfSearch < 0 {
		return fmt.Errorf("efSearch cannot be negative, got %d", *r.EfSearch)
	}
	if r.VectorStorePath == "" {
		return fmt.Errorf("vectorStorePath cannot be empty")
	}
	return nil
}

// EfSearchOr returns the requested efSearch, or def when absent or zero.
func (r *Request) EfSearchOr(def int) int {
	if r.EfSearch == nil || *r.EfSearch == 0 {
		return def
	}
	return *r.EfSearch
}
