// Package outbox carries persistence requests from the in-memory session to
// the store without ever blocking the caller.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Billy-Davies-2/basket-tracker/internal/dal"
	"github.com/Billy-Davies-2/basket-tracker/internal/logger"
)

// Op is the store operation a command performs
type Op string

const (
	OpAdd    Op = "add"
	OpPut    Op = "put"
	OpDelete Op = "delete"
)

// Command is one persistence request. Record is JSON-encoded for add and put.
type Command struct {
	Op         Op
	Collection dal.Collection
	ID         string
	Record     any

	// set only on flush barriers
	flushed chan struct{}
}

// ErrUnknownOp rejects a command whose Op is not add, put or delete
var ErrUnknownOp = errors.New("unknown outbox op")

// ErrClosed is returned by Flush on a queue that is shutting down and did not
// drain before ctx ended
var ErrClosed = errors.New("outbox closed")

// Sink accepts commands. Enqueue must return immediately.
type Sink interface {
	Enqueue(cmd Command)
}

// Flusher is a Sink that can wait for everything enqueued before the call
type Flusher interface {
	Sink
	Flush(ctx context.Context) error
}

const (
	defaultBuffer  = 256
	defaultRetries = 3
	defaultBackoff = 200 * time.Millisecond
	defaultTimeout = 5 * time.Second
)

// Options tune a Queue; zero values pick defaults
type Options struct {
	Buffer       int
	Retries      int
	Backoff      time.Duration
	StoreTimeout time.Duration
}

// Stats counts what the queue has done so far
type Stats struct {
	Applied int64 `json:"applied"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
}

// Queue applies commands to a dal.Store in enqueue order on a single worker
type Queue struct {
	store   dal.Store
	opts    Options
	ch      chan Command
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	applied atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// New starts a queue writing to store
func New(store dal.Store, opts Options) *Queue {
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	if opts.Retries <= 0 {
		opts.Retries = defaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultTimeout
	}
	q := &Queue{
		store: store,
		opts:  opts,
		ch:    make(chan Command, opts.Buffer),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue hands cmd to the worker. A full buffer or closed queue drops the
// command with a warning.
func (q *Queue) Enqueue(cmd Command) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.dropped.Add(1)
		logger.Warn("outbox closed, dropping command", "op", cmd.Op, "collection", cmd.Collection, "id", cmd.ID)
		return
	}
	select {
	case q.ch <- cmd:
	default:
		q.dropped.Add(1)
		logger.Warn("outbox full, dropping command", "op", cmd.Op, "collection", cmd.Collection, "id", cmd.ID)
	}
}

// Close stops accepting commands and waits for the backlog to drain or ctx to end
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush blocks until every command enqueued before the call has been applied
// or given up on. Unlike Enqueue it waits for buffer space.
func (q *Queue) Flush(ctx context.Context) error {
	barrier := make(chan struct{})

	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		select {
		case <-q.done:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrClosed, ctx.Err())
		}
	}
	select {
	case q.ch <- Command{flushed: barrier}:
	case <-ctx.Done():
		q.mu.RUnlock()
		return ctx.Err()
	}
	q.mu.RUnlock()

	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the running counters
func (q *Queue) Stats() Stats {
	return Stats{
		Applied: q.applied.Load(),
		Failed:  q.failed.Load(),
		Dropped: q.dropped.Load(),
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for cmd := range q.ch {
		if cmd.flushed != nil {
			close(cmd.flushed)
			continue
		}
		if err := q.applyWithRetry(cmd); err != nil {
			q.failed.Add(1)
			logger.Warn("persistence failed",
				"op", cmd.Op,
				"collection", cmd.Collection,
				"id", cmd.ID,
				"error", err,
			)
			continue
		}
		q.applied.Add(1)
	}
}

func (q *Queue) applyWithRetry(cmd Command) error {
	var lastErr error
	for attempt := 1; attempt <= q.opts.Retries; attempt++ {
		err := q.apply(cmd)
		if err == nil {
			return nil
		}
		// an add that already landed on an earlier attempt counts as done
		if attempt > 1 && cmd.Op == OpAdd && errors.Is(err, dal.ErrExists) {
			return nil
		}
		if permanent(err) {
			return err
		}
		lastErr = err
		if attempt < q.opts.Retries {
			logger.Debug("outbox retry", "op", cmd.Op, "id", cmd.ID, "attempt", attempt, "error", err)
			time.Sleep(time.Duration(attempt) * q.opts.Backoff)
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", q.opts.Retries, lastErr)
}

func (q *Queue) apply(cmd Command) error {
	ctx, cancel := context.WithTimeout(context.Background(), q.opts.StoreTimeout)
	defer cancel()

	switch cmd.Op {
	case OpDelete:
		return q.store.Delete(ctx, cmd.Collection, cmd.ID)
	case OpAdd, OpPut:
		data, err := json.Marshal(cmd.Record)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		if cmd.Op == OpAdd {
			return q.store.Add(ctx, cmd.Collection, cmd.ID, data)
		}
		return q.store.Put(ctx, cmd.Collection, cmd.ID, data)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOp, cmd.Op)
	}
}

func permanent(err error) bool {
	return errors.Is(err, dal.ErrExists) || errors.Is(err, dal.ErrUnknownCollection) ||
		errors.Is(err, ErrUnknownOp)
}

// Discard drops every command
type Discard struct{}

func (Discard) Enqueue(Command) {}

// Recorder keeps every command in memory
type Recorder struct {
	mu   sync.Mutex
	cmds []Command
}

func (r *Recorder) Enqueue(cmd Command) {
	r.mu.Lock()
	r.cmds = append(r.cmds, cmd)
	r.mu.Unlock()
}

// Commands returns a copy of what has been enqueued so far
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, len(r.cmds))
	copy(out, r.cmds)
	return out
}
