package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/recall/internal/errs"
	"github.com/hyperjump/recall/internal/metrics"
	"github.com/hyperjump/recall/internal/models"
	"github.com/hyperjump/recall/internal/search"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Client is the caller side of the boundary. It fills request defaults, bounds the number of
// units running at once, enforces the per-query deadline and turns error messages back into
// *errs.Error values.
type Client struct {
	runner    Runner
	sem       *semaphore.Weighted
	timeout   time.Duration
	storePath string
	defaultK  int
	maxK      int
	defaultEf int
	logger    *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-query deadline. Zero leaves only the caller's context.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithMaxConcurrent bounds how many units may run at once.
func WithMaxConcurrent(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithStorePath sets the store directory used when a request names none.
func WithStorePath(path string) ClientOption {
	return func(c *Client) { c.storePath = path }
}

// WithDefaults sets the k used when a request has none, the largest k accepted (larger
// values are clamped, 0 means unlimited) and the efSearch used when a request has none.
func WithDefaults(defaultK, maxK, efSearch int) ClientOption {
	return func(c *Client) {
		if defaultK > 0 {
			c.defaultK = defaultK
		}
		c.maxK = maxK
		c.defaultEf = efSearch
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient returns a client dispatching to runner.
func NewClient(runner Runner, opts ...ClientOption) *Client {
	c := &Client{
		runner:   runner,
		sem:      semaphore.NewWeighted(4),
		defaultK: search.DefaultK,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs one query in its own unit and returns the resolved records, nearest first.
// The returned slice is never nil on success.
func (c *Client) Search(ctx context.Context, req models.Request) ([]json.RawMessage, error) {
	const op = "worker.search"
	start := time.Now()
	queryID := uuid.NewString()
	logger := c.logger.With(zap.String("query_id", queryID), zap.String("collection", req.Collection))

	c.applyDefaults(&req, logger)
	if err := req.Validate(); err != nil {
		e := errs.New(errs.KindInvalidRequest, op, req.Collection, err)
		c.finish(logger, start, nil, e)
		return nil, e
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		e := deadlineError(op, req.Collection, err)
		c.finish(logger, start, nil, e)
		return nil, e
	}
	defer c.sem.Release(1)

	metrics.WorkersInFlight.Inc()
	resp, err := c.runner.Run(ctx, &req)
	metrics.WorkersInFlight.Dec()
	if err != nil {
		c.finish(logger, start, nil, err)
		return nil, err
	}

	if resp.Status != models.StatusSuccess {
		e := errs.New(errs.ParseKind(resp.Kind), op, req.Collection, errors.New(resp.Error))
		c.finish(logger, start, nil, e)
		return nil, e
	}
	results := resp.Results
	if results == nil {
		results = []json.RawMessage{}
	}
	c.finish(logger, start, results, nil)
	return results, nil
}

func (c *Client) applyDefaults(req *models.Request, logger *zap.Logger) {
	if req.K == 0 {
		req.K = c.defaultK
	}
	if c.maxK > 0 && req.K > c.maxK {
		logger.Debug("Clamping k", zap.Int("requested", req.K), zap.Int("max", c.maxK))
		req.K = c.maxK
	}
	if req.EfSearch == nil && c.defaultEf > 0 {
		ef := c.defaultEf
		req.EfSearch = &ef
	}
	if req.VectorStorePath == "" {
		req.VectorStorePath = c.storePath
	}
}

func (c *Client) finish(logger *zap.Logger, start time.Time, results []json.RawMessage, err error) {
	elapsed := time.Since(start)
	if err != nil {
		kind := errs.KindOf(err)
		metrics.ObserveQuery(models.StatusError, string(kind), elapsed, 0)
		logger.Warn("Query failed", zap.String("kind", string(kind)), zap.Duration("duration", elapsed), zap.Error(err))
		return
	}
	metrics.ObserveQuery(models.StatusSuccess, "", elapsed, len(results))
	logger.Debug("Query succeeded", zap.Int("results", len(results)), zap.Duration("duration", elapsed))
}

// CollectionResult is the outcome of one collection in a fan-out.
type CollectionResult struct {
	Collection string
	Results    []json.RawMessage
	Err        error
}

// SearchMany queries every collection with the same vector, each in its own unit. A failure
// in one collection is reported in its entry and does not affect the others. Entries are in
// the order of collections.
func (c *Client) SearchMany(ctx context.Context, collections []string, queryVector []float32, k int) []CollectionResult {
	out := make([]CollectionResult, len(collections))
	var g errgroup.Group
	for i, name := range collections {
		i, name := i, name
		out[i].Collection = name
		g.Go(func() error {
			vec := make([]float32, len(queryVector))
			copy(vec, queryVector)
			results, err := c.Search(ctx, models.Request{Collection: name, QueryVector: vec, K: k})
			out[i].Results = results
			out[i].Err = err
			return nil
		})
	}
	_ = g.Wait()
	return out
}
