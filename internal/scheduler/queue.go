package scheduler

import (
	"sync"

	"github.com/oichkatz/csopesy/internal/process"
)

// readyQueue is the single FIFO ready queue shared by every core,
// guarded by a mutex/condition-variable pair per §5: only the queue's
// own methods ever hold the lock, instruction execution never does.
type readyQueue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	items     []*process.Process
	stopped   bool
}

func newReadyQueue() *readyQueue {
	q := &readyQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends p to the tail. RR preemption and plain admission both
// go through here, so a preempted process always lands behind every
// process already waiting (§5).
func (q *readyQueue) Enqueue(p *process.Process) {
	q.mu.Lock()
	q.items = append(q.items, p)
	q.mu.Unlock()
	q.cond.Signal()
}

// Dequeue blocks until the queue is non-empty or Stop has been called,
// returning (nil, false) only in the latter case with the queue
// drained.
func (q *readyQueue) Dequeue() (*process.Process, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.stopped {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	p := q.items[0]
	q.items = q.items[1:]
	return p, true
}

// Len reports the current queue depth, used by the report generator.
func (q *readyQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stop flips the should_stop flag and wakes every waiter so cores can
// observe it at the ready-queue wait boundary (§5).
func (q *readyQueue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
