package scheduler

import (
	"container/list"

	"github.com/me/tickos/pkg/model"
)

// RoundRobin is a FIFO ready queue with a fixed per-turn quantum.
type RoundRobin struct {
	quantum int
	queue   *list.List
	index   map[model.Tid]*list.Element
	budget  map[model.Tid]int // ticks left in the current turn
}

// NewRoundRobin creates a round-robin policy. A quantum below one is treated as one.
func NewRoundRobin(quantum int) *RoundRobin {
	if quantum < 1 {
		quantum = 1
	}
	return &RoundRobin{
		quantum: quantum,
		queue:   list.New(),
		index:   make(map[model.Tid]*list.Element),
		budget:  make(map[model.Tid]int),
	}
}

// Quantum returns the configured number of ticks per turn.
func (r *RoundRobin) Quantum() int { return r.quantum }

// Enqueue appends tid to the tail. Enqueueing a tid that is already queued is a no-op.
func (r *RoundRobin) Enqueue(tid model.Tid) {
	if _, ok := r.index[tid]; ok {
		return
	}
	r.index[tid] = r.queue.PushBack(tid)
}

// Dequeue removes the head and starts a fresh turn for it.
func (r *RoundRobin) Dequeue() (model.Tid, bool) {
	front := r.queue.Front()
	if front == nil {
		return 0, false
	}
	tid := r.queue.Remove(front).(model.Tid)
	delete(r.index, tid)
	r.budget[tid] = r.quantum
	return tid, true
}

// Tick decrements the remaining quantum of tid. When it reaches zero the
// quantum is reset for the next turn and Tick reports true.
func (r *RoundRobin) Tick(tid model.Tid) bool {
	left, ok := r.budget[tid]
	if !ok {
		left = r.quantum
	}
	left--
	if left <= 0 {
		r.budget[tid] = r.quantum
		return true
	}
	r.budget[tid] = left
	return false
}

// Remove drops tid from the queue and its quantum accounting.
func (r *RoundRobin) Remove(tid model.Tid) {
	if e, ok := r.index[tid]; ok {
		r.queue.Remove(e)
		delete(r.index, tid)
	}
	delete(r.budget, tid)
}

// Len returns the number of queued tids.
func (r *RoundRobin) Len() int { return r.queue.Len() }
