package thread

import (
	"testing"

	"github.com/me/tickos/pkg/model"
)

type stubImage struct {
	name string
	code model.ExitCode
	runs int
}

func (s *stubImage) Name() string { return s.name }

func (s *stubImage) Run() model.ExitCode {
	s.runs++
	return s.code
}

func TestNewKernel_ArgumentsReachEntry(t *testing.T) {
	var got []any
	th := NewKernel("worker", func(args []any) { got = args })
	th.AppendInitialArguments("cpu", 0)
	th.AppendInitialArguments(7)

	if th.Mode() != model.ModeKernel {
		t.Errorf("Mode() = %v, want kernel", th.Mode())
	}
	if code := th.Start(); code != 0 {
		t.Errorf("Start() = %d, want 0", code)
	}
	if len(got) != 3 || got[0] != "cpu" || got[2] != 7 {
		t.Errorf("entry args = %v, want [cpu 0 7]", got)
	}
}

func TestNewUser_HostIsCopied(t *testing.T) {
	img := &stubImage{name: "bin/counter", code: 3}
	host := model.Tid(4)
	th := NewUser(img, &host)
	host = 9

	if th.Host() == nil || *th.Host() != 4 {
		t.Fatalf("Host() = %v, want 4", th.Host())
	}
	if th.Name() != "bin/counter" || th.Mode() != model.ModeUser {
		t.Errorf("Name/Mode = %q/%v, want bin/counter/user", th.Name(), th.Mode())
	}
	if code := th.Start(); code != 3 || img.runs != 1 {
		t.Errorf("Start() = %d (runs %d), want 3 (runs 1)", code, img.runs)
	}
}

func TestNewUser_NoHost(t *testing.T) {
	th := NewUser(&stubImage{name: "bin/init"}, nil)
	if th.Host() != nil {
		t.Errorf("Host() = %v, want nil", th.Host())
	}
	if th.Tid() != model.IdleTid {
		t.Errorf("Tid() before registration = %v, want unassigned", th.Tid())
	}
	th.SetTid(12)
	info := th.Info(model.ThreadStateReady)
	if info.Tid != 12 || info.State != model.ThreadStateReady {
		t.Errorf("Info() = %+v, want tid 12 READY", info)
	}
}
