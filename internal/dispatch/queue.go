package dispatch

import "sync"

// retryQueue holds messages that arrived while no device was connected.
// It is bounded: when full, the oldest message is dropped to admit the
// newest. Contents do not survive a restart.
type retryQueue struct {
	mu    sync.Mutex
	items []Message
	max   int
}

func newRetryQueue(max int) *retryQueue {
	if max <= 0 {
		max = 1
	}
	return &retryQueue{max: max}
}

// push appends a message, dropping the oldest when at capacity.
// Returns true when an old message was evicted.
func (q *retryQueue) push(msg Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := false
	if len(q.items) >= q.max {
		q.items = q.items[1:]
		evicted = true
	}
	q.items = append(q.items, msg)
	return evicted
}

// drain removes and returns all queued messages in arrival order.
func (q *retryQueue) drain() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}

// len reports the number of queued messages.
func (q *retryQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
