// Package timer keeps one-shot callbacks ordered by deadline on the kernel's
// monotonic clock.
package timer

import (
	"container/heap"
	"sync"
	"time"
)

// Callback is invoked once when its deadline has elapsed.
type Callback func()

type entry struct {
	deadline time.Duration
	seq      uint64 // insertion order, breaks deadline ties
	fn       Callback
}

// queue implements heap.Interface ordered by (deadline, seq).
type queue []*entry

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].deadline != q[j].deadline {
		return q[i].deadline < q[j].deadline
	}
	return q[i].seq < q[j].seq
}

func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

// Push adds an entry. Called by heap.Push — do not call directly.
func (q *queue) Push(x any) {
	*q = append(*q, x.(*entry))
}

// Pop removes the earliest entry. Called by heap.Pop — do not call directly.
func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// Timer is a deadline-ordered queue of one-shot callbacks.
// It is safe for concurrent use from interrupt and thread context.
type Timer struct {
	mu    sync.Mutex
	queue queue
	seq   uint64
}

// New creates an empty Timer.
func New() *Timer {
	return &Timer{}
}

// Add registers fn to fire no earlier than deadline.
func (t *Timer) Add(deadline time.Duration, fn Callback) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	t.seq++
	heap.Push(&t.queue, &entry{deadline: deadline, seq: t.seq, fn: fn})
	t.mu.Unlock()
}

// Tick fires every callback whose deadline is <= now, in deadline order
// (insertion order among equal deadlines), and returns how many fired.
//
// Due entries are removed under the lock and invoked after it is released,
// so a callback may call Add or wake a thread without deadlocking.
func (t *Timer) Tick(now time.Duration) int {
	t.mu.Lock()
	var due []*entry
	for t.queue.Len() > 0 && t.queue[0].deadline <= now {
		due = append(due, heap.Pop(&t.queue).(*entry))
	}
	t.mu.Unlock()

	for _, e := range due {
		e.fn()
	}
	return len(due)
}

// Len returns the number of pending entries.
func (t *Timer) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.queue.Len()
}
