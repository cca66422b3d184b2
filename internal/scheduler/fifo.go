package scheduler

import "github.com/me/tickos/pkg/model"

// FIFO runs each thread until it yields, sleeps, or exits. It never preempts.
type FIFO struct {
	rr *RoundRobin
}

// NewFIFO creates a run-to-completion policy.
func NewFIFO() *FIFO {
	return &FIFO{rr: NewRoundRobin(1)}
}

func (f *FIFO) Enqueue(tid model.Tid)      { f.rr.Enqueue(tid) }
func (f *FIFO) Dequeue() (model.Tid, bool) { return f.rr.Dequeue() }
func (f *FIFO) Tick(model.Tid) bool        { return false }
func (f *FIFO) Remove(tid model.Tid)       { f.rr.Remove(tid) }
func (f *FIFO) Len() int                   { return f.rr.Len() }
