// Package hal is the host stand-in for the machine layer: context switching,
// the timer interrupt line, the monotonic clock, and the console.
//
// Every execution context is a goroutine. Only the goroutine holding the
// baton runs kernel or thread code; all others are parked on their wake
// channel. Switching hands the baton to the target and parks the caller.
package hal

import (
	"runtime"
	"sync"
)

// Context is the saved state of one execution context.
type Context struct {
	owner int
	entry func()
	wake  chan struct{}
	once  sync.Once
}

// NewContext creates a context that runs entry the first time it is
// switched to. owner is an opaque label (the processor uses the tid).
func NewContext(owner int, entry func()) *Context {
	return &Context{
		owner: owner,
		entry: entry,
		wake:  make(chan struct{}, 1),
	}
}

// Owner returns the label given to NewContext.
func (c *Context) Owner() int { return c.owner }

func (c *Context) start() {
	if c.entry == nil {
		return
	}
	go func() {
		<-c.wake
		c.entry()
	}()
}

// Switcher is the context switch primitive.
type Switcher interface {
	// Switch resumes to and parks the caller, which must be running on
	// from, until something switches back to from.
	Switch(from, to *Context)

	// Exit resumes to and terminates the calling goroutine. It does not return.
	Exit(to *Context)
}

// GoroutineSwitcher switches contexts by passing the baton between goroutines.
type GoroutineSwitcher struct{}

// Switch implements Switcher.
func (GoroutineSwitcher) Switch(from, to *Context) {
	resume(to)
	<-from.wake
}

// Exit implements Switcher.
func (GoroutineSwitcher) Exit(to *Context) {
	resume(to)
	runtime.Goexit()
}

func resume(to *Context) {
	to.once.Do(to.start)
	to.wake <- struct{}{}
}
