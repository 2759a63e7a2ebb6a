package bridge

import "encoding/json"

// Queue holds messages submitted before the endpoint is known, in FIFO order.
// It is owned by the session goroutine and is not safe for concurrent use.
type Queue struct {
	items    []json.RawMessage
	head     int
	capacity int
	reject   bool
}

// NewQueue creates a queue; capacity 0 means unbounded.
func NewQueue(capacity int, overflow string) *Queue {
	return &Queue{capacity: capacity, reject: overflow == OverflowReject}
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	return len(q.items) - q.head
}

// Blocked reports whether the producer must wait: the queue is at capacity
// under the block policy.
func (q *Queue) Blocked() bool {
	return !q.reject && q.atCapacity()
}

// Push appends message, or returns ErrQueueFull when at capacity.
func (q *Queue) Push(message json.RawMessage) error {
	if q.atCapacity() {
		return ErrQueueFull
	}
	q.items = append(q.items, message)
	return nil
}

// Pop removes and returns the oldest message.
func (q *Queue) Pop() (json.RawMessage, bool) {
	if q.Len() == 0 {
		return nil, false
	}
	ret := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return ret, true
}

func (q *Queue) atCapacity() bool {
	return q.capacity > 0 && q.Len() >= q.capacity
}
