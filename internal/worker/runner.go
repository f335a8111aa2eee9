package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/recall/internal/errs"
	"github.com/hyperjump/recall/internal/models"
	"github.com/hyperjump/recall/internal/search"
	"go.uber.org/zap"
)

// Runner executes one request in a fresh execution unit and returns its terminal message.
// An error means no usable message arrived; it is an *errs.Error of kind KindTimeout or
// KindInternal.
type Runner interface {
	Run(ctx context.Context, req *models.Request) (*models.Response, error)
}

// deadlineError classifies a context failure at the boundary.
func deadlineError(op, collection string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.New(errs.KindTimeout, op, collection, fmt.Errorf("no result before deadline"))
	}
	return errs.New(errs.KindInternal, op, collection, err)
}

// ProcessRunner runs each request in a child process. By default the child is the current
// executable with the "worker" subcommand.
type ProcessRunner struct {
	Command string
	Args    []string
	Env     []string
	// WaitDelay bounds how long to wait for the child's pipes after it is killed.
	WaitDelay time.Duration
	Logger    *zap.Logger
}

// NewProcessRunner returns a runner that re-executes the current binary as "<self> worker args...".
func NewProcessRunner(logger *zap.Logger, args ...string) (*ProcessRunner, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	return &ProcessRunner{
		Command: self,
		Args:    append([]string{"worker"}, args...),
		Logger:  logger,
	}, nil
}

const stderrTail = 2048

// Run starts the child, sends req on stdin and waits for its single message on stdout.
// A complete message is honored even if the child then exited non-zero or was killed.
func (p *ProcessRunner) Run(ctx context.Context, req *models.Request) (*models.Response, error) {
	const op = "worker.process"
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var in bytes.Buffer
	if err := WriteMessage(&in, req); err != nil {
		return nil, errs.New(errs.KindInternal, op, req.Collection, err)
	}

	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	if p.Env != nil {
		cmd.Env = append(os.Environ(), p.Env...)
	}
	cmd.WaitDelay = p.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = time.Second
	}
	var stdout bytes.Buffer
	stderr := &tailBuffer{max: stderrTail}
	cmd.Stdin = &in
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	runErr := cmd.Run()
	resp, err := ParseResponse(stdout.Bytes())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, deadlineError(op, req.Collection, ctxErr)
		}
		cause := err
		if runErr != nil {
			cause = fmt.Errorf("%w (%v)", err, runErr)
		}
		if tail := strings.TrimSpace(stderr.String()); tail != "" {
			cause = fmt.Errorf("%w; stderr: %s", cause, tail)
		}
		return nil, errs.New(errs.KindInternal, op, req.Collection, cause)
	}
	if runErr != nil {
		logger.Warn("Worker exited with error after responding",
			zap.String("collection", req.Collection), zap.Error(runErr))
	}
	return resp, nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// LocalRunner runs each request on its own goroutine. The request and response still cross
// an encoded boundary, so the unit shares no memory with the caller. On deadline the
// goroutine is abandoned; it finishes in the background and its result is discarded.
type LocalRunner struct {
	Engine *search.Engine
	Logger *zap.Logger
}

// NewLocalRunner returns an in-process runner.
func NewLocalRunner(engine *search.Engine, logger *zap.Logger) *LocalRunner {
	return &LocalRunner{Engine: engine, Logger: logger}
}

func (l *LocalRunner) Run(ctx context.Context, req *models.Request) (*models.Response, error) {
	const op = "worker.local"
	var in bytes.Buffer
	if err := WriteMessage(&in, req); err != nil {
		return nil, errs.New(errs.KindInternal, op, req.Collection, err)
	}

	type outcome struct {
		data []byte
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		var out bytes.Buffer
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("worker panicked: %v", p)}
			}
		}()
		err := Serve(ctx, &in, &out, l.Engine, l.Logger)
		done <- outcome{data: out.Bytes(), err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, deadlineError(op, req.Collection, ctx.Err())
	case o := <-done:
		if o.err != nil {
			return nil, errs.New(errs.KindInternal, op, req.Collection, o.err)
		}
		resp, err := ParseResponse(o.data)
		if err != nil {
			return nil, errs.New(errs.KindInternal, op, req.Collection, err)
		}
		return resp, nil
	}
}
