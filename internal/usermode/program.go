// Package usermode builds user-mode contexts from program images.
//
// A program image is JavaScript source. Loading compiles it once; each run
// gets a fresh VM whose only way out is the system call surface installed
// below. Every system call is a preemption safe point.
package usermode

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/me/tickos/pkg/model"
)

// Syscalls is the kernel surface available to a running program. All
// methods are called on the program's own thread.
type Syscalls interface {
	Print(line string)
	Yield()
	Sleep(d time.Duration)
	Spawn(path string) (model.Tid, error)
	Tid() model.Tid
	Now() time.Duration
	WakeUp(tid model.Tid) bool
	PreemptPoint()
}

// Exit codes for programs that do not call exit().
const (
	ExitOK        model.ExitCode = 0
	ExitException model.ExitCode = 1
)

// exitRequest is the interrupt value used by the exit() system call.
type exitRequest struct {
	code model.ExitCode
}

// Program is a compiled program image bound to a system call surface.
type Program struct {
	name   string
	prog   *goja.Program
	sys    Syscalls
	logger *slog.Logger
}

// Load compiles data as the program called name. Images that do not
// compile are rejected with model.ErrBadImage.
func Load(name string, data []byte, sys Syscalls, logger *slog.Logger) (*Program, error) {
	prog, err := goja.Compile(name, string(data), false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", name, model.ErrBadImage, err)
	}
	return &Program{
		name:   name,
		prog:   prog,
		sys:    sys,
		logger: logger.With("component", "usermode", "program", name),
	}, nil
}

// Name returns the path the program was loaded from.
func (p *Program) Name() string { return p.name }

// Run executes the program to completion and returns its exit code.
func (p *Program) Run() model.ExitCode {
	vm := goja.New()
	if err := p.install(vm); err != nil {
		p.logger.Error("install syscalls", "error", err)
		return ExitException
	}

	_, err := vm.RunProgram(p.prog)
	if err == nil {
		return ExitOK
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if req, ok := interrupted.Value().(exitRequest); ok {
			return req.code
		}
	}
	p.logger.Warn("uncaught exception", "error", err)
	return ExitException
}

func (p *Program) install(vm *goja.Runtime) error {
	calls := map[string]func(goja.FunctionCall) goja.Value{
		"print": func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				parts[i] = a.String()
			}
			p.sys.Print(strings.Join(parts, " "))
			p.sys.PreemptPoint()
			return goja.Undefined()
		},
		"yield": func(goja.FunctionCall) goja.Value {
			p.sys.Yield()
			return goja.Undefined()
		},
		"sleep": func(call goja.FunctionCall) goja.Value {
			p.sys.Sleep(sleepDuration(call.Argument(0).ToInteger()))
			return goja.Undefined()
		},
		"exit": func(call goja.FunctionCall) goja.Value {
			vm.Interrupt(exitRequest{code: model.ExitCode(call.Argument(0).ToInteger())})
			return goja.Undefined()
		},
		"spawn": func(call goja.FunctionCall) goja.Value {
			tid, err := p.sys.Spawn(call.Argument(0).String())
			p.sys.PreemptPoint()
			if err != nil {
				return vm.ToValue(-1)
			}
			return vm.ToValue(int(tid))
		},
		"gettid": func(goja.FunctionCall) goja.Value {
			p.sys.PreemptPoint()
			return vm.ToValue(int(p.sys.Tid()))
		},
		"now": func(goja.FunctionCall) goja.Value {
			p.sys.PreemptPoint()
			return vm.ToValue(p.sys.Now().Milliseconds())
		},
		"wake": func(call goja.FunctionCall) goja.Value {
			ok := p.sys.WakeUp(model.Tid(call.Argument(0).ToInteger()))
			p.sys.PreemptPoint()
			return vm.ToValue(ok)
		},
	}
	for name, fn := range calls {
		if err := vm.Set(name, fn); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	return nil
}

// maxSleepMillis is the longest sleep a time.Duration can hold.
const maxSleepMillis = math.MaxInt64 / int64(time.Millisecond)

func sleepDuration(ms int64) time.Duration {
	switch {
	case ms <= 0:
		return 0
	case ms > maxSleepMillis:
		return math.MaxInt64
	}
	return time.Duration(ms) * time.Millisecond
}
