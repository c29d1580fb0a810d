package audio

import (
	"context"
	"fmt"
	"sync"

	list "github.com/bahlo/generic-list-go"
)

// OverflowPolicy decides what Push does when a bounded queue is full.
type OverflowPolicy int

const (
	// DropOldest discards the head to make room. The capture loop never
	// waits on a slow consumer.
	DropOldest OverflowPolicy = iota
	// DropNewest discards the buffer being pushed.
	DropNewest
	// Block makes the producer wait for room.
	Block
)

func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "drop-oldest"
	case DropNewest:
		return "drop-newest"
	case Block:
		return "block"
	default:
		return fmt.Sprintf("OverflowPolicy(%d)", int(p))
	}
}

// ParseOverflowPolicy parses the config spelling of a policy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "", "drop-oldest":
		return DropOldest, nil
	case "drop-newest":
		return DropNewest, nil
	case "block":
		return Block, nil
	}
	return 0, fmt.Errorf("unknown overflow policy %q", s)
}

// FrameQueue is a FIFO of captured buffers shared between the capture loop
// and its consumers. Each buffer is handed out to exactly one caller of Pop.
type FrameQueue struct {
	capacity int
	policy   OverflowPolicy

	mu      sync.Mutex
	items   *list.List[[]int16]
	changed chan struct{} // closed and replaced on every state change
	closed  bool
	dropped uint64
}

// NewFrameQueue returns a queue holding at most capacity buffers. A capacity
// of zero makes the queue unbounded.
func NewFrameQueue(capacity int, policy OverflowPolicy) *FrameQueue {
	if capacity < 0 {
		capacity = 0
	}
	return &FrameQueue{
		capacity: capacity,
		policy:   policy,
		items:    list.New[[]int16](),
		changed:  make(chan struct{}),
	}
}

func (q *FrameQueue) notifyLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}

// Push appends buf at the tail. Ownership of buf passes to the queue.
// It only blocks for a full queue under the Block policy.
func (q *FrameQueue) Push(ctx context.Context, buf []int16) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrQueueClosed
		}

		if q.capacity == 0 || q.items.Len() < q.capacity {
			q.items.PushBack(buf)
			q.notifyLocked()
			q.mu.Unlock()
			return nil
		}

		switch q.policy {
		case DropOldest:
			q.items.Remove(q.items.Front())
			q.items.PushBack(buf)
			q.dropped++
			q.notifyLocked()
			q.mu.Unlock()
			return nil
		case DropNewest:
			q.dropped++
			q.mu.Unlock()
			return nil
		}

		changed := q.changed
		q.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pop removes and returns the head, waiting until a buffer is available.
// Once the queue is closed, remaining buffers are still delivered and
// ErrQueueClosed is returned after the last one.
func (q *FrameQueue) Pop(ctx context.Context) ([]int16, error) {
	for {
		q.mu.Lock()
		if front := q.items.Front(); front != nil {
			buf := q.items.Remove(front)
			q.notifyLocked()
			q.mu.Unlock()
			return buf, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}

		changed := q.changed
		q.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// TryPop removes the head without waiting.
func (q *FrameQueue) TryPop() ([]int16, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	front := q.items.Front()
	if front == nil {
		return nil, false
	}
	buf := q.items.Remove(front)
	q.notifyLocked()
	return buf, true
}

// Len returns the number of queued buffers.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Dropped returns how many buffers were discarded by the overflow policy.
func (q *FrameQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close stops accepting buffers and wakes every waiter.
func (q *FrameQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notifyLocked()
}
