package session

import (
	"context"
	"sync"
)

// queue is an unbounded FIFO of operations run one at a time by drain.
// post never blocks, so callbacks from any goroutine can feed it.
type queue struct {
	mu   sync.Mutex
	ops  []func()
	wake chan struct{}
}

func newQueue() *queue {
	return &queue{wake: make(chan struct{}, 1)}
}

func (q *queue) post(op func()) {
	q.mu.Lock()
	q.ops = append(q.ops, op)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue) take() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	ops := q.ops
	q.ops = nil
	return ops
}

// drain runs posted operations in order until ctx is done.
func (q *queue) drain(ctx context.Context) {
	for {
		for _, op := range q.take() {
			if ctx.Err() != nil {
				return
			}
			op()
		}
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}
	}
}
