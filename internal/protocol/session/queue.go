package session

import (
	"context"
	"fmt"
	"sync"
)

// OverflowPolicy decides what Enqueue does when a bounded queue is full.
type OverflowPolicy string

const (
	// OverflowUnbounded never limits the queue; producers never wait.
	OverflowUnbounded OverflowPolicy = "unbounded"
	// OverflowBlock makes producers wait for space or queue close.
	OverflowBlock OverflowPolicy = "block"
	// OverflowReject fails the enqueue with ErrQueueFull.
	OverflowReject OverflowPolicy = "reject"
)

// QueueConfig bounds the write queue. MaxPending <= 0 means unbounded
// whatever the policy.
type QueueConfig struct {
	MaxPending int
	Overflow   OverflowPolicy
}

func (c QueueConfig) Validate() error {
	switch c.Overflow {
	case "", OverflowUnbounded, OverflowBlock, OverflowReject:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOverflowPolicy, c.Overflow)
	}
	if c.MaxPending < 0 {
		return fmt.Errorf("%w: negative max pending", ErrInvalidConfig)
	}
	return nil
}

func (c QueueConfig) bounded() bool {
	return c.MaxPending > 0 && c.Overflow != "" && c.Overflow != OverflowUnbounded
}

const queueCompactThreshold = 64

// WriteQueue is an ordered multi-producer, single-consumer queue of write
// requests. Items leave in the order they were enqueued.
type WriteQueue struct {
	mu       sync.Mutex
	notEmpty sync.Cond
	notFull  sync.Cond
	cfg      QueueConfig
	elts     []WriteRequest
	pos      int
	closed   bool
}

func NewWriteQueue(cfg QueueConfig) *WriteQueue {
	q := &WriteQueue{cfg: cfg, elts: make([]WriteRequest, 0, 32)}
	q.notEmpty.L = &q.mu
	q.notFull.L = &q.mu
	return q
}

// Enqueue appends req at the tail. Producers only wait when the queue is
// bounded with OverflowBlock.
func (q *WriteQueue) Enqueue(req WriteRequest) error {
	return q.EnqueueContext(context.Background(), req)
}

// EnqueueContext is Enqueue with a context that limits how long a blocked
// producer waits for space.
func (q *WriteQueue) EnqueueContext(ctx context.Context, req WriteRequest) error {
	if req == nil {
		return ErrNilRequest
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrConnectionClosing
	}
	if q.cfg.bounded() && q.lenLocked() >= q.cfg.MaxPending {
		if q.cfg.Overflow == OverflowReject {
			return ErrQueueFull
		}
		if err := q.waitForSpaceLocked(ctx); err != nil {
			return err
		}
	}
	q.elts = append(q.elts, req)
	q.notEmpty.Signal()
	return nil
}

func (q *WriteQueue) waitForSpaceLocked(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.notFull.Broadcast()
		q.mu.Unlock()
	})
	defer stop()
	for !q.closed && q.lenLocked() >= q.cfg.MaxPending {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.notFull.Wait()
	}
	if q.closed {
		return ErrConnectionClosing
	}
	return nil
}

// Dequeue removes and returns the head, waiting while the queue is empty and
// open. It returns false once the queue is closed and fully drained.
func (q *WriteQueue) Dequeue() (WriteRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.lenLocked() == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if q.lenLocked() == 0 {
		return nil, false
	}
	req := q.elts[q.pos]
	q.elts[q.pos] = nil
	q.pos++
	switch {
	case q.pos == len(q.elts):
		q.elts, q.pos = q.elts[:0], 0
	case q.pos >= queueCompactThreshold && q.pos*2 >= len(q.elts):
		n := copy(q.elts, q.elts[q.pos:])
		clear(q.elts[n:])
		q.elts, q.pos = q.elts[:n], 0
	}
	q.notFull.Signal()
	return req, true
}

// CloseForDrain stops accepting requests. Pending requests can still be
// dequeued; a Dequeue on an empty closed queue returns false at once.
func (q *WriteQueue) CloseForDrain() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Discard drops every pending request and returns how many were dropped.
func (q *WriteQueue) Discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.lenLocked()
	clear(q.elts)
	q.elts, q.pos = q.elts[:0], 0
	q.notFull.Broadcast()
	return n
}

func (q *WriteQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

func (q *WriteQueue) lenLocked() int {
	return len(q.elts) - q.pos
}
