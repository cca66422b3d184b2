// Package processor drives the single simulated CPU: it owns the idle
// thread, the thread pool, and the notion of the running thread.
//
// Switching happens only at well-defined points. Tick never switches; it
// records that a reschedule is due, and the running thread gives up the
// processor at its next PreemptPoint (or any other kernel entry that
// switches). The run loop is the only place that picks the next thread.
package processor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/me/tickos/internal/hal"
	"github.com/me/tickos/internal/thread"
	"github.com/me/tickos/internal/threadpool"
	"github.com/me/tickos/pkg/model"
)

// Context owner labels for contexts that are not pool threads.
const (
	ownerIdle = int(model.IdleTid)
	ownerBoot = -2
)

// ExitFunc observes a thread that has exited. It runs on the exiting
// thread before the processor switches away and must not block.
type ExitFunc func(t *thread.Thread, code model.ExitCode)

// Processor is the scheduling authority for one CPU.
type Processor struct {
	mu      sync.Mutex
	pool    *threadpool.ThreadPool
	idle    *thread.Thread
	current *thread.Thread // nil while idle or inside the run loop
	onExit  ExitFunc

	boot     *hal.Context
	switcher hal.Switcher
	irq      *hal.IRQ
	resched  atomic.Bool
	runCtx   context.Context

	logger *slog.Logger
}

// New creates an uninitialized processor. Init must be called before use.
func New(switcher hal.Switcher, logger *slog.Logger) *Processor {
	if switcher == nil {
		switcher = hal.GoroutineSwitcher{}
	}
	return &Processor{
		boot:     hal.NewContext(ownerBoot, nil),
		switcher: switcher,
		irq:      hal.NewIRQ(),
		runCtx:   context.Background(),
		logger:   logger.With("component", "processor"),
	}
}

// Init binds the idle thread and the pool. It must be called exactly once.
func (p *Processor) Init(idle *thread.Thread, pool *threadpool.ThreadPool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		panic("processor: Init called twice")
	}
	idle.Bind(hal.NewContext(ownerIdle, func() { idle.Start() }))
	p.idle = idle
	p.pool = pool
}

// OnExit installs the exit observer.
func (p *Processor) OnExit(fn ExitFunc) {
	p.mu.Lock()
	p.onExit = fn
	p.mu.Unlock()
}

func (p *Processor) mustInit() {
	p.mu.Lock()
	ok := p.pool != nil
	p.mu.Unlock()
	if !ok {
		panic("processor: used before Init")
	}
}

// AddThread registers t with the pool and makes it runnable.
func (p *Processor) AddThread(t *thread.Thread) (model.Tid, error) {
	p.mustInit()

	p.mu.Lock()
	tid, err := p.pool.Add(t)
	if err == nil {
		t.Bind(hal.NewContext(int(tid), func() { p.Exit(t.Start()) }))
	}
	p.mu.Unlock()
	if err != nil {
		return model.IdleTid, err
	}

	p.irq.Raise()
	p.logger.Info("thread added", "tid", tid, "name", t.Name(), "mode", t.Mode())
	return tid, nil
}

// IdleMain is the idle thread's entry point. Its single argument is the
// processor it idles.
func IdleMain(args []any) {
	p := args[0].(*Processor)
	for {
		// Wait-for-interrupt; every interrupt sends the processor back to
		// the run loop to look for ready work.
		p.irq.Wait(p.runCtx)
		p.switcher.Switch(p.idle.Context(), p.boot)
	}
}

// Tick is the timer interrupt. It charges one tick to the running thread
// and reports whether a reschedule is now due; the switch itself is
// deferred to the thread's next safe point. While idle it raises the
// interrupt line so the idle thread returns to the run loop.
func (p *Processor) Tick() bool {
	p.mustInit()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		p.irq.Raise()
		return false
	}
	if !p.pool.Tick(p.current.Tid()) {
		return false
	}
	p.resched.Store(true)
	p.logger.Debug("quantum exhausted", "tid", p.current.Tid())
	return true
}

// Run is the scheduling loop of the boot context. It picks the next ready
// thread, or idle if there is none, and switches to it, forever. It
// returns only when ctx is done, which halts the processor.
func (p *Processor) Run(ctx context.Context) error {
	p.mustInit()

	p.mu.Lock()
	p.runCtx = ctx
	p.mu.Unlock()
	stop := context.AfterFunc(ctx, p.irq.Raise)
	defer stop()

	p.logger.Info("scheduler loop started")
	for {
		if err := ctx.Err(); err != nil {
			p.logger.Info("processor halted")
			return err
		}
		next := p.pick()
		p.switcher.Switch(p.boot, next.Context())
	}
}

func (p *Processor) pick() *thread.Thread {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.resched.Store(false)
	if tid, ok := p.pool.Acquire(); ok {
		t, _ := p.pool.Retrieve(tid)
		p.current = t
		p.logger.Debug("switch", "tid", tid, "name", t.Name())
		return t
	}
	p.current = nil
	return p.idle
}

// Exit terminates the running thread with code and switches away from it.
// It does not return when called from a running thread.
func (p *Processor) Exit(code model.ExitCode) {
	p.mustInit()

	p.mu.Lock()
	cur := p.current
	if cur == nil {
		p.mu.Unlock()
		p.logger.Error("exit outside thread context", "code", code)
		return
	}
	t, ok := p.pool.Exit(cur.Tid(), code)
	p.current = nil
	hook := p.onExit
	p.mu.Unlock()

	if ok {
		p.logger.Info("thread exited", "tid", cur.Tid(), "name", cur.Name(), "code", code)
		if hook != nil {
			hook(t, code)
		}
	}
	p.switcher.Exit(p.boot)
}

// YieldNow ends the running thread's turn: it goes back to the tail of the
// ready set and the processor switches to the next thread.
func (p *Processor) YieldNow() {
	p.mustInit()

	p.mu.Lock()
	cur := p.current
	if cur == nil {
		p.mu.Unlock()
		return
	}
	p.pool.Yield(cur.Tid())
	p.current = nil
	p.mu.Unlock()

	p.switcher.Switch(cur.Context(), p.boot)
}

// PreemptPoint is a safe point. If a tick has exhausted the running
// thread's quantum, the thread switches away here.
func (p *Processor) PreemptPoint() {
	if !p.resched.Load() {
		return
	}
	p.mustInit()

	p.mu.Lock()
	cur := p.current
	if cur == nil || !p.resched.Load() {
		p.mu.Unlock()
		return
	}
	p.resched.Store(false)
	p.pool.Yield(cur.Tid()) // no-op when Tick already requeued it
	p.current = nil
	p.mu.Unlock()

	p.logger.Debug("preempted", "tid", cur.Tid())
	p.switcher.Switch(cur.Context(), p.boot)
}

// Sleep moves the running thread to Sleeping, calls arm so the caller can
// register a wakeup, and switches away. It returns once the thread has
// been woken and selected again. It reports false when called outside
// thread context.
//
// The wake function given to arm ends this sleep only; once the thread
// has been woken by other means, or has exited, it is a no-op. The thread
// is Sleeping before arm runs, so a wakeup that fires before the switch
// completes is not lost.
func (p *Processor) Sleep(arm func(tid model.Tid, wake func() bool)) bool {
	p.mustInit()

	p.mu.Lock()
	cur := p.current
	if cur == nil {
		p.mu.Unlock()
		return false
	}
	tid := cur.Tid()
	id, _ := p.pool.SleepRemove(tid)
	p.current = nil
	p.mu.Unlock()

	if arm != nil {
		arm(tid, func() bool { return p.wakeSleeper(tid, id) })
	}
	p.switcher.Switch(cur.Context(), p.boot)
	return true
}

// WakeUp makes a sleeping thread eligible to run again. It does not switch.
func (p *Processor) WakeUp(tid model.Tid) bool {
	p.mustInit()

	p.mu.Lock()
	ok := p.pool.WakeUp(tid)
	p.mu.Unlock()
	if ok {
		p.irq.Raise()
		p.logger.Debug("thread woken", "tid", tid)
	}
	return ok
}

func (p *Processor) wakeSleeper(tid model.Tid, id uint64) bool {
	p.mu.Lock()
	ok := p.pool.WakeSleeper(tid, id)
	p.mu.Unlock()
	if ok {
		p.irq.Raise()
		p.logger.Debug("sleep ended", "tid", tid)
	}
	return ok
}

// CurrentTid returns the running thread's tid, or model.IdleTid.
func (p *Processor) CurrentTid() model.Tid {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return model.IdleTid
	}
	return p.current.Tid()
}

// State returns the state of a live thread.
func (p *Processor) State(tid model.Tid) (model.ThreadState, bool) {
	p.mustInit()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pool.State(tid)
}

// Snapshot returns a consistent view of the scheduler.
func (p *Processor) Snapshot() model.ProcessorSnapshot {
	p.mustInit()

	p.mu.Lock()
	defer p.mu.Unlock()
	current := model.IdleTid
	if p.current != nil {
		current = p.current.Tid()
	}
	return model.ProcessorSnapshot{
		Current:  current,
		Ready:    p.pool.ReadyLen(),
		Capacity: p.pool.Capacity(),
		Threads:  p.pool.Threads(),
	}
}
