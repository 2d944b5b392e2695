package engine

import (
	"sync"

	"github.com/ef-ds/deque"
)

// FifoQueue is a bounded FIFO queue for inbound messages, decoupling message
// receipt from message processing. Push never blocks; it reports false once
// the queue is at capacity so the caller can drop and account the message.
type FifoQueue struct {
	mu          sync.Mutex
	queue       deque.Deque
	maxCapacity int
}

// NewFifoQueue creates a FifoQueue with the given maximum capacity.
func NewFifoQueue(maxCapacity int) *FifoQueue {
	return &FifoQueue{
		maxCapacity: maxCapacity,
	}
}

// Push appends the element to the queue, unless the queue is full.
func (q *FifoQueue) Push(element interface{}) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.queue.Len() >= q.maxCapacity {
		return false
	}
	q.queue.PushBack(element)
	return true
}

// Pop removes and returns the oldest element of the queue.
func (q *FifoQueue) Pop() (interface{}, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queue.PopFront()
}

// Len returns the number of queued elements.
func (q *FifoQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queue.Len()
}
