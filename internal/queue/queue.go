package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/tinytelemetry/udplog/internal/model"
)

// ErrClosed is returned by Pop once the queue has been closed.
var ErrClosed = errors.New("queue: closed")

// Policy decides what Push does when every slot is taken.
type Policy int

const (
	// Block waits for a free slot, back-pressuring the caller.
	Block Policy = iota
	// DropOnFull discards the line immediately and counts the drop.
	DropOnFull
)

func (p Policy) String() string {
	if p == DropOnFull {
		return "drop-on-full"
	}
	return "block"
}

// Queue is a bounded FIFO of log lines shared by many producers and a
// single consumer.
type Queue struct {
	lines     chan model.LogLine
	policy    Policy
	onDrop    func()
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a queue holding up to capacity lines. onDrop is called once for
// every line discarded under DropOnFull; it may be nil.
func New(capacity int, policy Policy, onDrop func()) *Queue {
	if capacity <= 0 {
		capacity = model.DefaultQueueDepth
	}
	if onDrop == nil {
		onDrop = func() {}
	}
	return &Queue{
		lines:  make(chan model.LogLine, capacity),
		policy: policy,
		onDrop: onDrop,
		done:   make(chan struct{}),
	}
}

// Push enqueues line and reports whether it was accepted.
func (q *Queue) Push(line model.LogLine) bool {
	select {
	case <-q.done:
		return false
	default:
	}

	if q.policy == DropOnFull {
		select {
		case q.lines <- line:
			return true
		default:
			q.onDrop()
			return false
		}
	}

	select {
	case q.lines <- line:
		return true
	case <-q.done:
		return false
	}
}

// Enqueue is Push under the name the capture bridge expects.
func (q *Queue) Enqueue(line model.LogLine) bool { return q.Push(line) }

// Pop blocks until a line is available, the queue is closed, or ctx ends.
func (q *Queue) Pop(ctx context.Context) (model.LogLine, error) {
	select {
	case line := <-q.lines:
		return line, nil
	case <-q.done:
		return model.LogLine{}, ErrClosed
	case <-ctx.Done():
		return model.LogLine{}, ctx.Err()
	}
}

// Close releases blocked producers and the consumer. Lines still queued are
// abandoned. Close is idempotent.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
		for {
			select {
			case <-q.lines:
			default:
				return
			}
		}
	})
}

// Len returns the number of queued lines.
func (q *Queue) Len() int { return len(q.lines) }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return cap(q.lines) }

// Policy returns the overflow policy.
func (q *Queue) Policy() Policy { return q.policy }
