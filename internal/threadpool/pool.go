// Package threadpool is the bounded registry of thread control blocks.
// It is the only place thread state changes; the scheduler policy only
// ever sees tids.
//
// ThreadPool is not safe for concurrent use. The processor serializes
// every call under its own lock.
package threadpool

import (
	"fmt"
	"log/slog"

	"github.com/me/tickos/internal/scheduler"
	"github.com/me/tickos/internal/thread"
	"github.com/me/tickos/pkg/model"
)

// DefaultCapacity is the number of slots in a kernel thread pool.
const DefaultCapacity = 100

type slot struct {
	thread *thread.Thread
	state  model.ThreadState
	sleep  uint64 // identifies the current sleep; zero when never slept
}

// ThreadPool owns the tid space and per-thread state.
type ThreadPool struct {
	slots     []*slot // nil entries are free
	next      int     // next-fit allocation cursor
	live      int
	sleepSeq  uint64 // pool-wide, so a reused tid never repeats a sleep id
	scheduler scheduler.Scheduler
	logger    *slog.Logger
}

// New creates a pool with capacity slots ordered by sched.
func New(capacity int, sched scheduler.Scheduler, logger *slog.Logger) *ThreadPool {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &ThreadPool{
		slots:     make([]*slot, capacity),
		scheduler: sched,
		logger:    logger.With("component", "threadpool"),
	}
}

// Add registers t in a free slot as Ready and enqueues it.
// It returns model.ErrPoolExhausted when every slot is occupied.
func (p *ThreadPool) Add(t *thread.Thread) (model.Tid, error) {
	n := len(p.slots)
	for i := 0; i < n; i++ {
		idx := (p.next + i) % n
		if p.slots[idx] != nil {
			continue
		}
		tid := model.Tid(idx)
		t.SetTid(tid)
		p.slots[idx] = &slot{thread: t, state: model.ThreadStateReady}
		p.next = (idx + 1) % n
		p.live++
		p.scheduler.Enqueue(tid)
		p.logger.Debug("thread added", "tid", tid, "name", t.Name())
		return tid, nil
	}
	return model.IdleTid, fmt.Errorf("add %s: %w (capacity %d)", t.Name(), model.ErrPoolExhausted, n)
}

// Acquire dequeues the next ready tid and marks it Running.
func (p *ThreadPool) Acquire() (model.Tid, bool) {
	for {
		tid, ok := p.scheduler.Dequeue()
		if !ok {
			return model.IdleTid, false
		}
		s := p.lookup(tid)
		if s == nil || s.state != model.ThreadStateReady {
			// Ready-set membership mirrors state; anything else is stale.
			p.logger.Warn("dropping stale ready tid", "tid", tid)
			continue
		}
		s.state = model.ThreadStateRunning
		return tid, true
	}
}

// Retrieve returns the live thread registered under tid.
func (p *ThreadPool) Retrieve(tid model.Tid) (*thread.Thread, bool) {
	s := p.lookup(tid)
	if s == nil {
		return nil, false
	}
	return s.thread, true
}

// State returns the state of tid. Reclaimed or unknown tids report false.
func (p *ThreadPool) State(tid model.Tid) (model.ThreadState, bool) {
	s := p.lookup(tid)
	if s == nil {
		return "", false
	}
	return s.state, true
}

// Tick charges one tick to a Running tid. When its quantum is exhausted the
// thread becomes Ready again, is requeued, and Tick reports true.
func (p *ThreadPool) Tick(tid model.Tid) bool {
	s := p.lookup(tid)
	if s == nil || s.state != model.ThreadStateRunning {
		return false
	}
	if !p.scheduler.Tick(tid) {
		return false
	}
	p.transition(tid, s, model.ThreadStateReady)
	p.scheduler.Enqueue(tid)
	return true
}

// Yield returns a Running tid to the tail of the ready set.
// It is a no-op for any other state.
func (p *ThreadPool) Yield(tid model.Tid) bool {
	s := p.lookup(tid)
	if s == nil || s.state != model.ThreadStateRunning {
		return false
	}
	p.transition(tid, s, model.ThreadStateReady)
	p.scheduler.Enqueue(tid)
	return true
}

// Exit marks a Running or Ready tid Exited and reclaims its slot. It
// returns the exited thread, or false if tid was not live or was sleeping.
func (p *ThreadPool) Exit(tid model.Tid, code model.ExitCode) (*thread.Thread, bool) {
	s := p.lookup(tid)
	if s == nil || !p.transition(tid, s, model.ThreadStateExited) {
		p.logger.Debug("exit ignored", "tid", tid)
		return nil, false
	}
	p.scheduler.Remove(tid)
	p.slots[int(tid)] = nil
	p.live--
	p.logger.Debug("thread exited", "tid", tid, "code", code)
	return s.thread, true
}

// SleepRemove moves a Running or Ready tid to Sleeping and out of the ready
// set. The slot stays occupied so the thread can be woken later. The
// returned id names this sleep for WakeSleeper.
func (p *ThreadPool) SleepRemove(tid model.Tid) (uint64, bool) {
	s := p.lookup(tid)
	if s == nil || !p.transition(tid, s, model.ThreadStateSleeping) {
		return 0, false
	}
	p.scheduler.Remove(tid)
	p.sleepSeq++
	s.sleep = p.sleepSeq
	return s.sleep, true
}

// WakeSleeper wakes tid only if it is still in the sleep named by id. A
// wakeup left over from an earlier sleep, or from a thread that has since
// exited and had its tid reused, is a no-op.
func (p *ThreadPool) WakeSleeper(tid model.Tid, id uint64) bool {
	s := p.lookup(tid)
	if s == nil || s.sleep != id {
		return false
	}
	return p.WakeUp(tid)
}

// WakeUp makes a Sleeping tid Ready and enqueues it. Waking any other
// state is a no-op.
func (p *ThreadPool) WakeUp(tid model.Tid) bool {
	s := p.lookup(tid)
	if s == nil || s.state != model.ThreadStateSleeping {
		return false
	}
	p.transition(tid, s, model.ThreadStateReady)
	p.scheduler.Enqueue(tid)
	return true
}

// Threads returns a snapshot of every live thread in tid order.
func (p *ThreadPool) Threads() []model.ThreadInfo {
	out := make([]model.ThreadInfo, 0, p.live)
	for _, s := range p.slots {
		if s != nil {
			out = append(out, s.thread.Info(s.state))
		}
	}
	return out
}

// Len returns the number of occupied slots.
func (p *ThreadPool) Len() int { return p.live }

// Capacity returns the total number of slots.
func (p *ThreadPool) Capacity() int { return len(p.slots) }

// ReadyLen returns the size of the scheduler's ready set.
func (p *ThreadPool) ReadyLen() int { return p.scheduler.Len() }

func (p *ThreadPool) lookup(tid model.Tid) *slot {
	if tid < 0 || int(tid) >= len(p.slots) {
		return nil
	}
	return p.slots[int(tid)]
}

func (p *ThreadPool) transition(tid model.Tid, s *slot, next model.ThreadState) bool {
	if !s.state.CanTransitionTo(next) {
		err := &model.InvalidTransitionError{Entity: "Thread", ID: tid.String(), From: s.state.String(), To: next.String()}
		p.logger.Debug("transition rejected", "error", err)
		return false
	}
	s.state = next
	return true
}
