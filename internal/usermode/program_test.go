package usermode

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/me/tickos/pkg/model"
)

// fakeSys records system calls made by a program.
type fakeSys struct {
	lines   []string
	yields  int
	sleeps  []time.Duration
	spawned []string
	woken   []model.Tid
	safe    int
	now     time.Duration
}

func (f *fakeSys) Print(line string)         { f.lines = append(f.lines, line) }
func (f *fakeSys) Yield()                    { f.yields++ }
func (f *fakeSys) Sleep(d time.Duration)     { f.sleeps = append(f.sleeps, d) }
func (f *fakeSys) Tid() model.Tid            { return 5 }
func (f *fakeSys) Now() time.Duration        { return f.now }
func (f *fakeSys) PreemptPoint()             { f.safe++ }
func (f *fakeSys) WakeUp(tid model.Tid) bool { f.woken = append(f.woken, tid); return true }

func (f *fakeSys) Spawn(path string) (model.Tid, error) {
	f.spawned = append(f.spawned, path)
	if path == "bin/missing" {
		return model.IdleTid, fmt.Errorf("lookup %s: %w", path, model.ErrCommandNotFound)
	}
	return model.Tid(len(f.spawned) + 10), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func load(t *testing.T, src string, sys Syscalls) *Program {
	t.Helper()
	p, err := Load("bin/test", []byte(src), sys, testLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return p
}

func TestLoad_BadImage(t *testing.T) {
	_, err := Load("bin/broken", []byte("function ( {"), &fakeSys{}, testLogger())
	if !errors.Is(err, model.ErrBadImage) {
		t.Errorf("Load() = %v, want ErrBadImage", err)
	}
}

func TestRun_NormalCompletion(t *testing.T) {
	sys := &fakeSys{now: 42 * time.Millisecond}
	p := load(t, `print("hello", 1 + 1); print("tid", gettid(), "at", now());`, sys)

	if code := p.Run(); code != ExitOK {
		t.Errorf("Run() = %d, want %d", code, ExitOK)
	}
	want := []string{"hello 2", "tid 5 at 42"}
	if len(sys.lines) != 2 || sys.lines[0] != want[0] || sys.lines[1] != want[1] {
		t.Errorf("lines = %q, want %q", sys.lines, want)
	}
	if sys.safe == 0 {
		t.Error("no preemption safe points reached")
	}
	if p.Name() != "bin/test" {
		t.Errorf("Name() = %q, want bin/test", p.Name())
	}
}

func TestRun_ExitStopsProgram(t *testing.T) {
	sys := &fakeSys{}
	p := load(t, `print("before"); exit(9); print("after");`, sys)

	if code := p.Run(); code != 9 {
		t.Errorf("Run() = %d, want 9", code)
	}
	if len(sys.lines) != 1 || sys.lines[0] != "before" {
		t.Errorf("lines = %q, want [before]", sys.lines)
	}
}

func TestRun_UncaughtException(t *testing.T) {
	p := load(t, `throw new Error("boom");`, &fakeSys{})
	if code := p.Run(); code != ExitException {
		t.Errorf("Run() = %d, want %d", code, ExitException)
	}
}

func TestRun_SchedulingCalls(t *testing.T) {
	sys := &fakeSys{}
	p := load(t, `
		yield();
		sleep(50);
		var ok = spawn("bin/counter");
		var bad = spawn("bin/missing");
		wake(3);
		print(ok, bad);
	`, sys)

	p.Run()
	if sys.yields != 1 {
		t.Errorf("yields = %d, want 1", sys.yields)
	}
	if len(sys.sleeps) != 1 || sys.sleeps[0] != 50*time.Millisecond {
		t.Errorf("sleeps = %v, want [50ms]", sys.sleeps)
	}
	if len(sys.lines) != 1 || sys.lines[0] != "11 -1" {
		t.Errorf("lines = %q, want [\"11 -1\"]", sys.lines)
	}
	if len(sys.woken) != 1 || sys.woken[0] != 3 {
		t.Errorf("woken = %v, want [3]", sys.woken)
	}
}

func TestRun_FreshVMPerRun(t *testing.T) {
	sys := &fakeSys{}
	p := load(t, `var n = (typeof n === "undefined") ? 1 : n + 1; print(n);`, sys)
	p.Run()
	p.Run()
	if len(sys.lines) != 2 || sys.lines[0] != "1" || sys.lines[1] != "1" {
		t.Errorf("lines = %q, want [1 1]", sys.lines)
	}
}

func TestRun_SleepArgumentSaturates(t *testing.T) {
	sys := &fakeSys{}
	p := load(t, `sleep(1e13); sleep(-5); sleep(1e30);`, sys)
	p.Run()

	want := []time.Duration{math.MaxInt64, 0, math.MaxInt64}
	if len(sys.sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", sys.sleeps, want)
	}
	for i := range want {
		if sys.sleeps[i] != want[i] {
			t.Errorf("sleeps[%d] = %v, want %v", i, sys.sleeps[i], want[i])
		}
	}
}
