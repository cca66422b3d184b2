// Package thread defines the execution contexts scheduled by the processor.
package thread

import (
	"github.com/me/tickos/internal/hal"
	"github.com/me/tickos/pkg/model"
)

// Entry is a kernel thread entry point. It receives the initial arguments.
type Entry func(args []any)

// Image is a user-mode context constructed from a program image.
type Image interface {
	Name() string
	// Run executes the program until it finishes and returns its exit code.
	Run() model.ExitCode
}

// Thread is one execution context: either a kernel entry point with its
// initial arguments, or a user image. The tid is assigned on registration.
type Thread struct {
	tid   model.Tid
	name  string
	mode  model.Mode
	entry Entry
	args  []any
	image Image
	host  *model.Tid
	ctx   *hal.Context
}

// NewKernel creates a kernel thread that starts at entry.
func NewKernel(name string, entry Entry) *Thread {
	return &Thread{
		tid:   model.IdleTid,
		name:  name,
		mode:  model.ModeKernel,
		entry: entry,
	}
}

// NewUser creates a user thread from a constructed image. host, when set,
// is the thread that requested the spawn.
func NewUser(img Image, host *model.Tid) *Thread {
	t := &Thread{
		tid:   model.IdleTid,
		name:  img.Name(),
		mode:  model.ModeUser,
		image: img,
	}
	if host != nil {
		h := *host
		t.host = &h
	}
	return t
}

// AppendInitialArguments adds arguments passed to a kernel entry point.
func (t *Thread) AppendInitialArguments(args ...any) {
	t.args = append(t.args, args...)
}

// Tid returns the identifier assigned by the pool.
func (t *Thread) Tid() model.Tid { return t.tid }

// SetTid records the identifier assigned by the pool.
func (t *Thread) SetTid(tid model.Tid) { t.tid = tid }

func (t *Thread) Name() string     { return t.name }
func (t *Thread) Mode() model.Mode { return t.mode }

// Host returns the originating thread, if any.
func (t *Thread) Host() *model.Tid { return t.host }

// Context returns the switch context bound with Bind.
func (t *Thread) Context() *hal.Context { return t.ctx }

// Bind attaches the switch context the processor created for this thread.
func (t *Thread) Bind(ctx *hal.Context) { t.ctx = ctx }

// Start runs the thread body to completion and returns its exit code.
// Kernel entries that return exit with code 0.
func (t *Thread) Start() model.ExitCode {
	if t.image != nil {
		return t.image.Run()
	}
	if t.entry != nil {
		t.entry(t.args)
	}
	return 0
}

// Info returns a read-only view of the thread in the given state.
func (t *Thread) Info(state model.ThreadState) model.ThreadInfo {
	return model.ThreadInfo{
		Tid:   t.tid,
		Name:  t.name,
		Mode:  t.mode,
		State: state,
		Host:  t.host,
	}
}
