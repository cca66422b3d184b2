package model

// ThreadState represents the lifecycle state of a Thread.
type ThreadState string

const (
	ThreadStateReady    ThreadState = "READY"
	ThreadStateRunning  ThreadState = "RUNNING"
	ThreadStateSleeping ThreadState = "SLEEPING"
	ThreadStateExited   ThreadState = "EXITED"
)

// String returns the string representation of the thread state.
func (s ThreadState) String() string {
	return string(s)
}

// IsTerminal returns true if the thread can never run again.
func (s ThreadState) IsTerminal() bool {
	return s == ThreadStateExited
}

// ValidThreadTransitions defines the allowed state transitions for Threads.
var ValidThreadTransitions = map[ThreadState][]ThreadState{
	ThreadStateReady:    {ThreadStateRunning, ThreadStateSleeping, ThreadStateExited},
	ThreadStateRunning:  {ThreadStateReady, ThreadStateSleeping, ThreadStateExited},
	ThreadStateSleeping: {ThreadStateReady},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s ThreadState) CanTransitionTo(next ThreadState) bool {
	for _, allowed := range ValidThreadTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Mode is the privilege mode a Thread executes in.
type Mode string

const (
	ModeKernel Mode = "kernel"
	ModeUser   Mode = "user"
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	return string(m)
}
