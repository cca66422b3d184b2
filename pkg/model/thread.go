package model

import (
	"strconv"
	"time"
)

// Tid identifies a live thread. It is assigned by the thread pool when the
// thread is registered and may be reused once the owning slot is reclaimed.
type Tid int

// IdleTid is reported by CurrentTid while the idle thread holds the processor.
const IdleTid Tid = -1

// String returns the decimal form of the tid, or "idle".
func (t Tid) String() string {
	if t == IdleTid {
		return "idle"
	}
	return strconv.Itoa(int(t))
}

// ExitCode is the status a thread reports when it exits.
type ExitCode int

// ThreadInfo is a read-only view of one pool slot.
type ThreadInfo struct {
	Tid   Tid         `json:"tid"`
	Name  string      `json:"name"`
	Mode  Mode        `json:"mode"`
	State ThreadState `json:"state"`
	Host  *Tid        `json:"host,omitempty"`
}

// ProcessorSnapshot is a consistent view of scheduler state.
type ProcessorSnapshot struct {
	Current  Tid          `json:"current"`
	Ready    int          `json:"ready"`
	Capacity int          `json:"capacity"`
	Threads  []ThreadInfo `json:"threads"`
}

// ExitRecord describes a thread that has exited.
type ExitRecord struct {
	Tid  Tid       `json:"tid"`
	Name string    `json:"name"`
	Host *Tid      `json:"host,omitempty"`
	Code ExitCode  `json:"code"`
	At   time.Time `json:"at"`
}

// ImageInfo describes a stored program image.
type ImageInfo struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	SHA256    string    `json:"sha256"`
	CreatedAt time.Time `json:"created_at"`
}
