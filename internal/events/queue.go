package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

type queued struct {
	name    string
	payload any
}

// Queue posts events to a Bus from a single dispatch goroutine.
//
// Post never blocks, so producers may post while holding their own locks;
// handlers run in post order and may call back into the producer.
type Queue struct {
	bus    *Bus
	logger *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []queued
	closed  bool
	idle    bool
	done    chan struct{}
}

// NewQueue starts a dispatch goroutine for bus.
func NewQueue(bus *Bus, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		bus:    bus,
		logger: logger,
		done:   make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Post enqueues an event. Posting after Close is dropped.
func (q *Queue) Post(name string, payload any) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.pending = append(q.pending, queued{name: name, payload: payload})
	q.idle = false
	q.cond.Broadcast()
}

// Flush blocks until every event posted before the call has been handled.
// It must not be called from a handler.
func (q *Queue) Flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for !q.idle && !q.closed {
		q.cond.Wait()
	}
}

// Close drains pending events and stops the dispatch goroutine.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.idle = true
			q.cond.Broadcast()
			q.cond.Wait()
		}
		if len(q.pending) == 0 && q.closed {
			q.idle = true
			q.cond.Broadcast()
			q.mu.Unlock()
			return
		}
		ev := q.pending[0]
		q.pending[0] = queued{}
		q.pending = q.pending[1:]
		q.mu.Unlock()

		if err := q.bus.Emit(context.Background(), ev.name, ev.payload); err != nil {
			if errors.Is(err, ErrPropagationStopped) {
				q.logger.Debug("event vetoed", "event", ev.name)
				continue
			}
			q.logger.Warn("event handler failed", "event", ev.name, "error", err)
		}
	}
}
