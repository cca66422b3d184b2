package process

import (
	"context"
	"time"

	"github.com/me/tickos/pkg/model"
)

// userSyscalls is the system call surface handed to user programs. Each
// method runs on the calling program's thread.
type userSyscalls struct {
	k *Kernel
}

func (s userSyscalls) Print(line string)         { s.k.console.WriteLineString(line) }
func (s userSyscalls) Yield()                    { s.k.YieldNow() }
func (s userSyscalls) Sleep(d time.Duration)     { s.k.Sleep(d) }
func (s userSyscalls) Tid() model.Tid            { return s.k.CurrentTid() }
func (s userSyscalls) Now() time.Duration        { return s.k.Now() }
func (s userSyscalls) WakeUp(tid model.Tid) bool { return s.k.WakeUp(tid) }
func (s userSyscalls) PreemptPoint()             { s.k.PreemptPoint() }

// Spawn executes path with the calling thread as host.
func (s userSyscalls) Spawn(path string) (model.Tid, error) {
	host := s.k.CurrentTid()
	return s.k.Execute(context.Background(), path, &host)
}
