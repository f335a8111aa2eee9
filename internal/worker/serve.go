package worker

import (
	"context"
	"fmt"
	"io"

	"github.com/hyperjump/recall/internal/errs"
	"github.com/hyperjump/recall/internal/models"
	"github.com/hyperjump/recall/internal/search"
	"go.uber.org/zap"
)

// Serve is the body of an execution unit. It reads one request from r, runs it, and writes
// one response to w. Faults in the pipeline, panics included, become error responses.
// The returned error is non-nil only when the response itself could not be written.
func Serve(ctx context.Context, r io.Reader, w io.Writer, engine *search.Engine, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = search.NewEngine(search.WithLogger(logger))
	}
	resp := handle(ctx, r, engine, logger)
	if err := WriteMessage(w, resp); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

func handle(ctx context.Context, r io.Reader, engine *search.Engine, logger *zap.Logger) (resp *models.Response) {
	collection := ""
	defer func() {
		if p := recover(); p != nil {
			logger.Error("Worker panicked", zap.String("collection", collection), zap.Any("panic", p))
			resp = models.Failure(string(errs.KindInternal), fmt.Sprintf("worker panicked: %v", p))
		}
	}()

	req, err := ReadRequest(r)
	if err != nil {
		return models.Failure(string(errs.KindInvalidRequest), err.Error())
	}
	collection = req.Collection

	records, err := engine.Run(ctx, req)
	if err != nil {
		kind := errs.KindOf(err)
		logger.Debug("Query failed", zap.String("collection", collection), zap.String("kind", string(kind)), zap.Error(err))
		return models.Failure(string(kind), err.Error())
	}
	return models.Success(records)
}
