package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/zombor/soa-tracker/internal/clock"
	"github.com/zombor/soa-tracker/internal/scanning"
)

const (
	DefaultTimeout  = 120 * time.Second
	DefaultWorkers  = 4
	DefaultMaxPages = 10
)

// Method names the strategy that produced an outcome
type Method string

const (
	MethodVision Method = "vision"
	MethodAIText Method = "ai_text"
	MethodTable  Method = "table"
	MethodRegex  Method = "regex_fallback"
	MethodFailed Method = "failed"
)

// Outcome is the result of extracting one document.
// Success outcomes carry a non-failed Method; failures carry Error.
type Outcome struct {
	Items   []scanning.LineItem `json:"items"`
	Success bool                `json:"success"`
	Error   string              `json:"error,omitempty"`
	Method  Method              `json:"method"`
	// Err is the underlying failure, for Classify
	Err error `json:"-"`
}

// TimedOut reports whether the outcome failed on the time budget
func (o Outcome) TimedOut() bool {
	return errors.Is(o.Err, ErrTimeout)
}

// Strategy is one extraction technique in the fallback chain.
// Returning no items and no error passes the document to the next strategy.
type Strategy interface {
	Method() Method
	Attempt(ctx context.Context, job *Job) ([]scanning.LineItem, error)
}

// Pipeline runs strategies in order for each document, bounded by a timeout and a worker pool
type Pipeline struct {
	strategies []Strategy
	timeout    time.Duration
	workers    *semaphore.Weighted
	clock      clock.Clock
	logger     *slog.Logger
	rasterizer scanning.Rasterizer
	maxPages   int
	tempDir    string
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithTimeout sets the per-document time budget
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithWorkers bounds how many documents are extracted at once
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = semaphore.NewWeighted(int64(n))
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRasterizer sets the PDF renderer used by the image based strategies
func WithRasterizer(r scanning.Rasterizer, maxPages int) Option {
	return func(p *Pipeline) {
		p.rasterizer = r
		p.maxPages = maxPages
	}
}

// WithTempDir sets where documents are staged (default os.TempDir)
func WithTempDir(dir string) Option {
	return func(p *Pipeline) { p.tempDir = dir }
}

// New creates a Pipeline trying strategies in the given order
func New(strategies []Strategy, opts ...Option) *Pipeline {
	p := &Pipeline{
		strategies: strategies,
		timeout:    DefaultTimeout,
		workers:    semaphore.NewWeighted(DefaultWorkers),
		clock:      clock.Real{},
		logger:     slog.Default(),
		maxPages:   DefaultMaxPages,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extract runs the fallback chain over doc. It never returns later than the timeout;
// a strategy still running at that point finishes in the background, its result is dropped
// and its worker goes back to the pool.
func (p *Pipeline) Extract(ctx context.Context, doc scanning.Document) Outcome {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	path, err := p.stage(doc)
	if err != nil {
		return failure(fmt.Errorf("staging document: %w", err))
	}
	release := sync.OnceFunc(func() { p.remove(path) })
	defer release()

	if err := p.workers.Acquire(ctx, 1); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			p.logger.Warn("No extraction worker available", "document", doc.Name, "timeout", p.timeout)
			return failure(ErrNoWorker)
		}
		return p.interrupted(ctx, doc)
	}
	free := sync.OnceFunc(func() { p.workers.Release(1) })

	job := NewJob(doc, path, p.clock.Now())
	job.Logger = p.logger
	job.rasterizer = p.rasterizer
	job.maxPages = p.maxPages

	done := make(chan Outcome, 1)
	go func() {
		defer free()
		defer release()
		done <- p.run(ctx, job)
	}()

	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		free()
		return p.interrupted(ctx, doc)
	}
}

func (p *Pipeline) interrupted(ctx context.Context, doc scanning.Document) Outcome {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		p.logger.Warn("Extraction timed out", "document", doc.Name, "timeout", p.timeout)
		return failure(ErrTimeout)
	}
	return failure(fmt.Errorf("extraction canceled: %w", ctx.Err()))
}

func (p *Pipeline) run(ctx context.Context, job *Job) Outcome {
	var last error
	for _, s := range p.strategies {
		items, err := s.Attempt(ctx, job)
		if err != nil {
			var halt *haltError
			if errors.As(err, &halt) {
				p.logger.Warn("Extraction halted", "document", job.Document.Name, "method", s.Method(), "error", halt.err)
				return failure(halt.err)
			}
			if ctx.Err() != nil {
				return failure(ErrTimeout)
			}
			p.logger.Warn("Extraction stage failed", "document", job.Document.Name, "method", s.Method(), "error", err)
			last = err
			continue
		}
		if len(items) == 0 {
			continue
		}

		p.logger.Info("Extracted line items", "document", job.Document.Name, "method", s.Method(), "items", len(items))
		return Outcome{
			Items:   scanning.EnsureDates(items, job.Today),
			Success: true,
			Method:  s.Method(),
		}
	}

	if last == nil {
		last = ErrNoAmounts
	}
	return failure(last)
}

func failure(err error) Outcome {
	return Outcome{Success: false, Method: MethodFailed, Error: err.Error(), Err: err}
}

func (p *Pipeline) stage(doc scanning.Document) (string, error) {
	f, err := os.CreateTemp(p.tempDir, "receipt-*"+doc.Extension())
	if err != nil {
		return "", err
	}
	if _, err := f.Write(doc.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (p *Pipeline) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Warn("Failed to remove staged document", "path", path, "error", err)
	}
}
