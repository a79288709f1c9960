package batch

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/zombor/soa-tracker/internal/clock"
	"github.com/zombor/soa-tracker/internal/scanning"
)

// DefaultWindow is how long a burst stays open after its first document
const DefaultWindow = 2500 * time.Millisecond

// ErrClosed is returned by Enqueue after Close
var ErrClosed = errors.New("collector closed")

// Origin identifies where the results of a batch are reported
type Origin string

// Item is one document of a burst
type Item struct {
	Document scanning.Document
	// Triggered marks a document that was explicitly asked to be extracted
	Triggered bool
}

// Batch is the documents of one burst, in arrival order
type Batch struct {
	ID        string
	Origin    Origin
	Items     []Item
	CreatedAt time.Time
}

// Qualified reports whether any document in the burst carried the trigger.
// One trigger qualifies the whole burst, whichever document it arrived on.
func (b *Batch) Qualified() bool {
	for _, e := range b.Items {
		if e.Triggered {
			return true
		}
	}
	return false
}

// Handler receives each sealed batch. It runs on its own goroutine, outside the registry lock.
type Handler func(ctx context.Context, b *Batch)

type openBatch struct {
	batch *Batch
	timer clock.Timer
}

// Collector groups documents sharing a burst id into one Batch. The first document of a burst
// arms a one-shot timer; when it fires the batch is removed from the registry and handed to the handler.
type Collector struct {
	clock   clock.Clock
	window  time.Duration
	handler Handler
	ctx     context.Context
	logger  *slog.Logger

	mu     sync.Mutex
	open   map[string]*openBatch
	closed bool

	inflight sync.WaitGroup
}

// CollectorOption configures a Collector
type CollectorOption func(*Collector)

// WithContext sets the context passed to the handler
func WithContext(ctx context.Context) CollectorOption {
	return func(c *Collector) { c.ctx = ctx }
}

func WithLogger(l *slog.Logger) CollectorOption {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCollector creates a Collector sealing bursts window after their first document
func NewCollector(clk clock.Clock, window time.Duration, handler Handler, opts ...CollectorOption) *Collector {
	if clk == nil {
		clk = clock.Real{}
	}
	if window <= 0 {
		window = DefaultWindow
	}
	c := &Collector{
		clock:   clk,
		window:  window,
		handler: handler,
		ctx:     context.Background(),
		logger:  slog.Default(),
		open:    make(map[string]*openBatch),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enqueue adds a document to its burst. A burst id not currently open starts a new batch,
// including one whose previous batch has already been sealed. Later documents never re-arm the timer.
func (c *Collector) Enqueue(burstID string, entry Item, origin Origin) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if ob, ok := c.open[burstID]; ok {
		ob.batch.Items = append(ob.batch.Items, entry)
		return nil
	}

	ob := &openBatch{batch: &Batch{
		ID:        burstID,
		Origin:    origin,
		Items:     []Item{entry},
		CreatedAt: c.clock.Now(),
	}}
	c.inflight.Add(1)
	ob.timer = c.clock.AfterFunc(c.window, func() { c.seal(burstID, ob) })
	c.open[burstID] = ob

	c.logger.Debug("Opened burst", "burst_id", burstID, "origin", origin)
	return nil
}

// Pending returns the number of bursts still collecting documents
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.open)
}

// Wait blocks until every opened burst has been sealed and its handler has returned
func (c *Collector) Wait() {
	c.inflight.Wait()
}

// Close stops accepting documents and seals every open burst immediately
func (c *Collector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true

	var due []*openBatch
	for _, ob := range c.open {
		if ob.timer.Stop() {
			due = append(due, ob)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		return due[i].batch.CreatedAt.Before(due[j].batch.CreatedAt)
	})
	for _, ob := range due {
		c.seal(ob.batch.ID, ob)
	}
}

func (c *Collector) seal(burstID string, ob *openBatch) {
	c.mu.Lock()
	current, ok := c.open[burstID]
	if !ok || current != ob {
		c.mu.Unlock()
		return
	}
	delete(c.open, burstID)
	c.mu.Unlock()

	b := ob.batch
	if len(b.Items) == 0 {
		c.inflight.Done()
		return
	}

	c.logger.Info("Sealed burst", "burst_id", burstID, "documents", len(b.Items), "qualified", b.Qualified())
	go func() {
		defer c.inflight.Done()
		c.handler(c.ctx, b)
	}()
}
