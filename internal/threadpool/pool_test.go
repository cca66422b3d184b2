package threadpool

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/me/tickos/internal/scheduler"
	"github.com/me/tickos/internal/thread"
	"github.com/me/tickos/pkg/model"
)

func testPool(t *testing.T, capacity, quantum int) *ThreadPool {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(capacity, scheduler.NewRoundRobin(quantum), logger)
}

func kthread(name string) *thread.Thread {
	return thread.NewKernel(name, func([]any) {})
}

func mustAdd(t *testing.T, p *ThreadPool, name string) model.Tid {
	t.Helper()
	tid, err := p.Add(kthread(name))
	if err != nil {
		t.Fatalf("Add(%s): %v", name, err)
	}
	return tid
}

func wantState(t *testing.T, p *ThreadPool, tid model.Tid, want model.ThreadState) {
	t.Helper()
	got, ok := p.State(tid)
	if !ok {
		t.Fatalf("State(%d): not live, want %s", tid, want)
	}
	if got != want {
		t.Fatalf("State(%d) = %s, want %s", tid, got, want)
	}
}

func TestAdd_ReadyAndEnqueued(t *testing.T) {
	p := testPool(t, 4, 1)
	tid := mustAdd(t, p, "a")

	wantState(t, p, tid, model.ThreadStateReady)
	if p.ReadyLen() != 1 {
		t.Errorf("ReadyLen() = %d, want 1", p.ReadyLen())
	}
	th, ok := p.Retrieve(tid)
	if !ok || th.Tid() != tid {
		t.Errorf("Retrieve(%d) = %v, %v, want thread with matching tid", tid, th, ok)
	}
}

func TestAdd_PoolExhausted(t *testing.T) {
	p := testPool(t, DefaultCapacity, 1)
	for i := 0; i < DefaultCapacity; i++ {
		mustAdd(t, p, "t")
	}
	_, err := p.Add(kthread("overflow"))
	if !errors.Is(err, model.ErrPoolExhausted) {
		t.Fatalf("Add() on full pool = %v, want ErrPoolExhausted", err)
	}
	if p.Len() != DefaultCapacity {
		t.Errorf("Len() = %d, want %d", p.Len(), DefaultCapacity)
	}
}

func TestAcquire_OnlyReadyBecomesRunning(t *testing.T) {
	p := testPool(t, 4, 1)
	a := mustAdd(t, p, "a")
	b := mustAdd(t, p, "b")

	got, ok := p.Acquire()
	if !ok || got != a {
		t.Fatalf("Acquire() = %d, %v, want %d, true", got, ok, a)
	}
	wantState(t, p, a, model.ThreadStateRunning)

	// b goes to sleep while still queued: it must never be acquired.
	if _, ok := p.SleepRemove(b); !ok {
		t.Fatal("SleepRemove(b) = false, want true")
	}
	if got, ok := p.Acquire(); ok {
		t.Fatalf("Acquire() = %d, want none (only a sleeping thread is left)", got)
	}
}

func TestAcquire_EmptyReturnsNone(t *testing.T) {
	p := testPool(t, 4, 1)
	if _, ok := p.Acquire(); ok {
		t.Error("Acquire() on empty pool ok = true, want false")
	}
}

func TestTick_PreemptsAtQuantum(t *testing.T) {
	p := testPool(t, 4, 2)
	a := mustAdd(t, p, "a")
	b := mustAdd(t, p, "b")
	p.Acquire()

	if p.Tick(a) {
		t.Fatal("Tick() #1 = true, want false with quantum 2")
	}
	if !p.Tick(a) {
		t.Fatal("Tick() #2 = false, want true")
	}
	wantState(t, p, a, model.ThreadStateReady)

	// a was requeued behind b.
	if got, _ := p.Acquire(); got != b {
		t.Errorf("Acquire() = %d, want %d", got, b)
	}
	if got, _ := p.Acquire(); got != a {
		t.Errorf("Acquire() = %d, want %d", got, a)
	}
}

func TestTick_IgnoresNonRunning(t *testing.T) {
	p := testPool(t, 4, 1)
	a := mustAdd(t, p, "a")
	if p.Tick(a) {
		t.Error("Tick() on Ready thread = true, want false")
	}
	if p.Tick(77) {
		t.Error("Tick() on unknown tid = true, want false")
	}
	if p.ReadyLen() != 1 {
		t.Errorf("ReadyLen() = %d, want 1", p.ReadyLen())
	}
}

func TestYield(t *testing.T) {
	p := testPool(t, 4, 5)
	a := mustAdd(t, p, "a")
	b := mustAdd(t, p, "b")
	p.Acquire()

	if !p.Yield(a) {
		t.Fatal("Yield(a) = false, want true")
	}
	if p.Yield(a) {
		t.Error("second Yield(a) = true, want false (already Ready)")
	}
	if p.ReadyLen() != 2 {
		t.Errorf("ReadyLen() = %d, want 2", p.ReadyLen())
	}
	if got, _ := p.Acquire(); got != b {
		t.Errorf("Acquire() after yield = %d, want %d", got, b)
	}
}

func TestExit_ReclaimsSlot(t *testing.T) {
	p := testPool(t, 2, 1)
	a := mustAdd(t, p, "a")
	mustAdd(t, p, "b")
	p.Acquire()

	th, ok := p.Exit(a, 3)
	if !ok || th.Name() != "a" {
		t.Fatalf("Exit(a) = %v, %v, want thread a, true", th, ok)
	}
	if _, live := p.State(a); live {
		t.Error("State(a) live after exit, want reclaimed")
	}
	if _, again := p.Exit(a, 3); again {
		t.Error("second Exit(a) = true, want no-op")
	}

	// The exited tid is never handed out by Acquire.
	for {
		tid, ok := p.Acquire()
		if !ok {
			break
		}
		if tid == a {
			t.Fatalf("Acquire() returned exited tid %d", a)
		}
	}

	// The slot can be reused.
	if _, err := p.Add(kthread("c")); err != nil {
		t.Errorf("Add() after exit: %v", err)
	}
}

func TestExit_ReadyThreadLeavesReadySet(t *testing.T) {
	p := testPool(t, 4, 1)
	a := mustAdd(t, p, "a")
	if _, ok := p.Exit(a, 0); !ok {
		t.Fatal("Exit(ready) = false, want true")
	}
	if p.ReadyLen() != 0 {
		t.Errorf("ReadyLen() = %d, want 0", p.ReadyLen())
	}
}

func TestExit_SleepingIsNoop(t *testing.T) {
	p := testPool(t, 4, 1)
	a := mustAdd(t, p, "a")
	p.SleepRemove(a)
	if _, ok := p.Exit(a, 0); ok {
		t.Error("Exit(sleeping) = true, want no-op")
	}
	wantState(t, p, a, model.ThreadStateSleeping)
}

func TestSleepAndWake(t *testing.T) {
	p := testPool(t, 4, 1)
	a := mustAdd(t, p, "a")
	p.Acquire()

	if _, ok := p.SleepRemove(a); !ok {
		t.Fatal("SleepRemove(running) = false, want true")
	}
	wantState(t, p, a, model.ThreadStateSleeping)
	if p.ReadyLen() != 0 {
		t.Errorf("ReadyLen() = %d, want 0", p.ReadyLen())
	}

	if !p.WakeUp(a) {
		t.Fatal("WakeUp(sleeping) = false, want true")
	}
	wantState(t, p, a, model.ThreadStateReady)
	if p.WakeUp(a) {
		t.Error("WakeUp(ready) = true, want no-op")
	}
	if p.ReadyLen() != 1 {
		t.Errorf("ReadyLen() = %d, want 1 (no duplicate enqueue)", p.ReadyLen())
	}
}

func TestWakeUp_ExitedIsNoop(t *testing.T) {
	p := testPool(t, 4, 1)
	a := mustAdd(t, p, "a")
	p.Exit(a, 0)
	if p.WakeUp(a) {
		t.Error("WakeUp(exited) = true, want false")
	}
	if p.ReadyLen() != 0 {
		t.Errorf("ReadyLen() = %d, want 0", p.ReadyLen())
	}
}

func TestAdd_NextFitDelaysReuse(t *testing.T) {
	p := testPool(t, 3, 1)
	a := mustAdd(t, p, "a")
	p.Exit(a, 0)
	b := mustAdd(t, p, "b")
	if b == a {
		t.Errorf("Add() reused tid %d immediately, want next free slot", a)
	}
}

func TestThreads_Snapshot(t *testing.T) {
	p := testPool(t, 4, 1)
	mustAdd(t, p, "a")
	b := mustAdd(t, p, "b")
	p.SleepRemove(b)

	infos := p.Threads()
	if len(infos) != 2 {
		t.Fatalf("Threads() len = %d, want 2", len(infos))
	}
	if infos[1].Name != "b" || infos[1].State != model.ThreadStateSleeping {
		t.Errorf("Threads()[1] = %+v, want b SLEEPING", infos[1])
	}
}

func TestWakeSleeper_OnlyCurrentSleep(t *testing.T) {
	p := testPool(t, 1, 1)
	a := mustAdd(t, p, "a")
	p.Acquire()

	first, _ := p.SleepRemove(a)
	if !p.WakeUp(a) {
		t.Fatal("WakeUp(sleeping) = false, want true")
	}
	p.Acquire()
	second, ok := p.SleepRemove(a)
	if !ok || second == first {
		t.Fatalf("SleepRemove() = (%d, %v), want a new sleep id after %d", second, ok, first)
	}

	if p.WakeSleeper(a, first) {
		t.Error("WakeSleeper(earlier sleep) = true, want no-op")
	}
	wantState(t, p, a, model.ThreadStateSleeping)
	if !p.WakeSleeper(a, second) {
		t.Error("WakeSleeper(current sleep) = false, want true")
	}
	wantState(t, p, a, model.ThreadStateReady)
}

func TestWakeSleeper_ReusedTid(t *testing.T) {
	p := testPool(t, 1, 1)
	a := mustAdd(t, p, "a")
	p.Acquire()
	old, _ := p.SleepRemove(a)
	p.WakeUp(a)
	p.Acquire()
	p.Exit(a, 0)

	b := mustAdd(t, p, "b")
	if b != a {
		t.Fatalf("single-slot pool reused tid %d, want %d", b, a)
	}
	p.Acquire()
	p.SleepRemove(b)
	if p.WakeSleeper(b, old) {
		t.Error("WakeSleeper(id from exited thread) = true, want no-op")
	}
	wantState(t, p, b, model.ThreadStateSleeping)
}
