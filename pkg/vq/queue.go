package vq

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrChannelFull is returned by Submit when the ring has no free slots.
	ErrChannelFull = errors.New("descriptor ring full")
	// ErrChannelUnavailable is returned once the queue has been closed.
	ErrChannelUnavailable = errors.New("descriptor ring unavailable")
	// ErrTimeout is returned by a bounded Wait.
	ErrTimeout = errors.New("timed out waiting for chain completion")
)

// Queue is a capacity-bounded ring of descriptor chains connecting the
// guest agent to the host agent. Submission is decoupled from
// completion: the guest enqueues a chain and kicks the peer, the host
// later dequeues it, fills the IN segments and releases it back.
type Queue struct {
	mu       sync.Mutex
	capacity int
	pending  []*Chain
	inflight int
	kick     chan struct{}
	stop     chan struct{}
	closed   bool
}

// New creates a queue holding at most capacity in-flight chains.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 128
	}
	return &Queue{
		capacity: capacity,
		kick:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Receipt identifies one submitted chain. The submitter blocks on Wait
// until the peer completes that specific chain; racing submitters never
// observe each other's completions.
type Receipt struct {
	chain *Chain
	queue *Queue
}

// Submit enqueues a chain for the peer. It fails with ErrChannelFull
// when capacity is exhausted and ErrChannelUnavailable after Close.
// Submissions from one goroutine stay ordered on the ring; chains from
// different goroutines may interleave.
func (q *Queue) Submit(c *Chain) (*Receipt, error) {
	if len(c.segments) == 0 {
		return nil, errors.New("refusing to submit an empty chain")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrChannelUnavailable
	}
	if q.inflight >= q.capacity {
		return nil, ErrChannelFull
	}
	c.done = make(chan struct{})
	q.pending = append(q.pending, c)
	q.inflight++
	return &Receipt{chain: c, queue: q}, nil
}

// Notify kicks the peer. Idempotent and cheap; a pending kick absorbs
// later ones.
func (q *Queue) Notify() {
	select {
	case q.kick <- struct{}{}:
	default:
	}
}

// Kick returns the channel the host side blocks on between polls.
func (q *Queue) Kick() <-chan struct{} {
	return q.kick
}

// Done returns a channel closed when the queue shuts down.
func (q *Queue) Done() <-chan struct{} {
	return q.stop
}

// PollForWork dequeues the next pending chain without blocking,
// returning nil when none is pending.
func (q *Queue) PollForWork() *Chain {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	c := q.pending[0]
	q.pending = q.pending[1:]
	return c
}

// Complete releases a chain back to its submitter after the host agent
// has filled the IN segments.
func (q *Queue) Complete(c *Chain) {
	q.mu.Lock()
	q.inflight--
	q.mu.Unlock()
	close(c.done)
}

// Depth reports the number of chains submitted but not yet completed.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inflight
}

// Close shuts the queue down. In-flight and future waiters fail with
// ErrChannelUnavailable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.stop)
}

// Wait blocks until the receipt's chain has been completed by the peer.
// timeout == 0 waits forever.
func (r *Receipt) Wait(timeout time.Duration) (*Chain, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case <-r.chain.done:
		return r.chain, nil
	case <-r.queue.stop:
		return nil, ErrChannelUnavailable
	case <-expired:
		return nil, ErrTimeout
	}
}
