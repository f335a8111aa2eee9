// Package search runs one retrieval query: load the collection, search it, resolve labels.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hyperjump/recall/internal/errs"
	"github.com/hyperjump/recall/internal/models"
	"github.com/hyperjump/recall/internal/storage"
	"github.com/hyperjump/recall/internal/vector"
	"go.uber.org/zap"
)

// DefaultK is the number of records returned when a caller does not ask for a count.
const DefaultK = 3

// Engine executes requests. It holds no per-query state and is safe for concurrent use.
type Engine struct {
	defaultEfSearch int
	logger          *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithDefaultEfSearch sets the efSearch used when a request carries none.
func WithDefaultEfSearch(ef int) Option {
	return func(e *Engine) {
		if ef > 0 {
			e.defaultEfSearch = ef
		}
	}
}

// NewEngine creates an engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{defaultEfSearch: vector.DefaultEfSearch, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run validates req, then loads, searches and resolves in that order. Every failure is an
// *errs.Error. A successful result is never nil.
func (e *Engine) Run(ctx context.Context, req *models.Request) ([]json.RawMessage, error) {
	const op = "search.run"
	if err := req.Validate(); err != nil {
		return nil, errs.New(errs.KindInvalidRequest, op, req.Collection, err)
	}
	start := time.Now()

	col, err := storage.Open(req.VectorStorePath, req.Collection, len(req.QueryVector))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.New(errs.KindTimeout, op, req.Collection, err)
	}
	loaded := time.Since(start)

	neighbors, err := Execute(ctx, col.Index, req.QueryVector, req.K, req.EfSearchOr(e.defaultEfSearch))
	if err != nil {
		var ee *errs.Error
		if errors.As(err, &ee) {
			ee.Collection = req.Collection
		}
		return nil, err
	}

	records, dropped := Resolve(neighbors, col.Labels)
	if dropped > 0 {
		e.logger.Warn("Dropped unresolved labels",
			zap.String("collection", req.Collection),
			zap.Int("dropped", dropped))
	}
	e.logger.Debug("Query complete",
		zap.String("collection", req.Collection),
		zap.String("kind", col.Header.Kind.String()),
		zap.Int("vectors", col.Index.Len()),
		zap.Int("k", req.K),
		zap.Int("results", len(records)),
		zap.Duration("load", loaded),
		zap.Duration("duration", time.Since(start)))
	return records, nil
}
