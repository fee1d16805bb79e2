package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
)

// Common errors returned by the ActionQueue
var (
	ErrQueueClosed    = errors.New("action queue is closed")
	ErrActionPanicked = errors.New("action panicked")
)

// Work is the body of an action. The context is cancelled only after the
// queue has been stopped and drained.
type Work func(ctx context.Context) error

// Action is a named unit of work waiting in or running on the queue.
type Action struct {
	ID         uuid.UUID
	Label      string
	Work       Work
	EnqueuedAt time.Time
}

// ActionQueue executes actions one at a time in FIFO order on a dedicated
// goroutine. The queue is unbounded.
type ActionQueue struct {
	mu      sync.Mutex
	pending []*Action
	closed  bool
	started bool

	// wake signals the worker that pending may have grown or the queue closed
	wake chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *slog.Logger

	// errorHandler is called when an action returns an error or panics
	errorHandler func(action *Action, err error)
}

// NewActionQueue creates a queue. Actions may be enqueued before Start;
// they run once the worker is started.
func NewActionQueue(logger *slog.Logger) *ActionQueue {
	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With("component", "action_queue")

	return &ActionQueue{
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
		errorHandler: func(action *Action, err error) {
			logger.Error("action failed",
				"action_id", action.ID,
				"action", action.Label,
				"error", err)
		},
	}
}

// SetErrorHandler replaces the default error handler, which only logs.
func (q *ActionQueue) SetErrorHandler(handler func(action *Action, err error)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.errorHandler = handler
}

// Enqueue appends an action. It never blocks and never runs work on the
// calling goroutine.
func (q *ActionQueue) Enqueue(label string, work Work) error {
	if work == nil {
		return fmt.Errorf("action %q has no work", label)
	}

	action := &Action{
		ID:         uuid.New(),
		Label:      label,
		Work:       work,
		EnqueuedAt: time.Now(),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.pending = append(q.pending, action)
	queueLen := len(q.pending)
	q.mu.Unlock()

	q.signal()

	q.logger.Debug("action enqueued",
		"action_id", action.ID,
		"action", label,
		"queue_len", queueLen)
	return nil
}

// Start launches the worker. Calling it more than once has no effect.
func (q *ActionQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true

	q.wg.Add(1)
	go q.worker()
}

// Stop refuses new actions, lets the worker finish everything already
// queued, and waits for it to exit.
func (q *ActionQueue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	started := q.started
	dropped := len(q.pending)
	q.mu.Unlock()

	q.signal()
	if started {
		q.wg.Wait()
	} else if dropped > 0 {
		q.logger.Warn("queue stopped before start, actions dropped", "dropped", dropped)
	}
	q.cancel()
	q.logger.Debug("action queue stopped")
}

// Drain blocks until every action enqueued before the call has finished.
func (q *ActionQueue) Drain(ctx context.Context) error {
	done := make(chan struct{})
	if err := q.Enqueue("drain", func(context.Context) error {
		close(done)
		return nil
	}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of actions waiting to run.
func (q *ActionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *ActionQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *ActionQueue) worker() {
	defer q.wg.Done()

	q.logger.Debug("starting worker")
	for {
		action, ok := q.next()
		if !ok {
			q.logger.Debug("stopping worker")
			return
		}
		q.run(action)
	}
}

// next pops the oldest action, waiting for one if necessary. It reports
// false once the queue is closed and empty.
func (q *ActionQueue) next() (*Action, bool) {
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			action := q.pending[0]
			q.pending[0] = nil
			q.pending = q.pending[1:]
			q.mu.Unlock()
			return action, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, false
		}
		<-q.wake
	}
}

func (q *ActionQueue) run(action *Action) {
	log := q.logger.With("action_id", action.ID, "action", action.Label)
	log.Debug("running action", "waited", time.Since(action.EnqueuedAt))
	start := time.Now()

	var err error
	var pc panics.Catcher
	pc.Try(func() { err = action.Work(q.ctx) })
	if r := pc.Recovered(); r != nil {
		log.Error("action panicked", "panic", r.Value, "stack", string(r.Stack))
		err = fmt.Errorf("%w: %w", ErrActionPanicked, r.AsError())
	}

	if err != nil {
		q.mu.Lock()
		handler := q.errorHandler
		q.mu.Unlock()
		if handler != nil {
			handler(action, err)
		}
		return
	}

	log.Debug("action finished", "duration", time.Since(start))
}
