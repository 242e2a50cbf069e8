package store

import (
	"context"
	"sync"
)

type task func(ctx context.Context)

// queue is an unbounded FIFO drained by a single worker, so pushing never
// blocks a caller that holds the store lock. outstanding counts tasks pushed
// but not yet finished.
type queue struct {
	mu          sync.Mutex
	cond        *sync.Cond
	items       []task
	outstanding int
	closed      bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue) push(t task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, t)
	q.outstanding++
	q.cond.Broadcast()
	return true
}

// pop blocks until a task is available. It returns false once the queue is
// closed and drained.
func (q *queue) pop() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	t := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return t, true
}

// done marks a popped task finished.
func (q *queue) done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.outstanding--
	q.cond.Broadcast()
}

// wait blocks until every pushed task has finished.
func (q *queue) wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.outstanding > 0 {
		q.cond.Wait()
	}
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
