// Package process is the kernel's process-level API. A Kernel binds the
// processor, the timer, the image source and the console; it is created
// once at boot and handed to everything that schedules work.
package process

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/me/tickos/internal/config"
	"github.com/me/tickos/internal/fs"
	"github.com/me/tickos/internal/hal"
	"github.com/me/tickos/internal/logging"
	"github.com/me/tickos/internal/processor"
	"github.com/me/tickos/internal/scheduler"
	"github.com/me/tickos/internal/thread"
	"github.com/me/tickos/internal/threadpool"
	"github.com/me/tickos/internal/timer"
	"github.com/me/tickos/internal/usermode"
	"github.com/me/tickos/pkg/model"
)

// Console messages.
const (
	BannerSetup     = "++++ setup process!   ++++"
	MsgNotFound     = "command not found!"
	exitHistorySize = 64
)

// ExitHook observes every thread exit. It runs on the exiting thread and
// must not block.
type ExitHook func(model.ExitRecord)

// Kernel is the process-level API of one booted kernel.
type Kernel struct {
	cfg      config.KernelConfig
	fs       fs.FileSystem
	clock    hal.Clock
	console  *hal.Console
	switcher hal.Switcher
	registry *scheduler.Registry
	exitHook ExitHook
	logger   *slog.Logger
	bootID   string
	bootedAt time.Time

	cpu   *processor.Processor
	timer *timer.Timer

	exitMu sync.Mutex
	exits  []model.ExitRecord
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithFS sets the image source. Defaults to the embedded images.
func WithFS(src fs.FileSystem) Option { return func(k *Kernel) { k.fs = src } }

// WithClock sets the monotonic clock. Defaults to the host clock.
func WithClock(c hal.Clock) Option { return func(k *Kernel) { k.clock = c } }

// WithConsole sets the console. Defaults to stdout.
func WithConsole(c *hal.Console) Option { return func(k *Kernel) { k.console = c } }

// WithSwitcher sets the context switch primitive.
func WithSwitcher(s hal.Switcher) Option { return func(k *Kernel) { k.switcher = s } }

// WithRegistry sets the scheduling policy registry.
func WithRegistry(r *scheduler.Registry) Option { return func(k *Kernel) { k.registry = r } }

// WithExitHook installs an observer for thread exits.
func WithExitHook(h ExitHook) Option { return func(k *Kernel) { k.exitHook = h } }

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option { return func(k *Kernel) { k.logger = l } }

// New creates a kernel. Init must be called before anything else.
func New(cfg config.KernelConfig, opts ...Option) *Kernel {
	k := &Kernel{
		cfg:      cfg,
		switcher: hal.GoroutineSwitcher{},
		bootID:   uuid.NewString(),
		timer:    timer.New(),
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.logger == nil {
		k.logger = logging.NewLogger(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	}
	k.logger = logging.ForBoot(k.logger, k.bootID)
	if k.fs == nil {
		k.fs = fs.Embedded()
	}
	if k.clock == nil {
		k.clock = hal.NewMonotonic()
	}
	if k.console == nil {
		k.console = hal.NewConsole(os.Stdout)
	}
	if k.registry == nil {
		k.registry = scheduler.NewRegistry(k.logger)
	}
	return k
}

// Init builds the scheduler, the thread pool and the idle thread, binds
// them into the processor, and executes the boot programs. It must be
// called exactly once. A boot program that cannot be started is logged
// and skipped.
func (k *Kernel) Init(ctx context.Context) error {
	if k.cpu != nil {
		panic("process: Init called twice")
	}
	if err := k.cfg.Validate(k.registry.Has); err != nil {
		return fmt.Errorf("invalid kernel config: %w", err)
	}
	sc := k.cfg.Scheduler
	sched, err := k.registry.New(sc.Policy, sc.Quantum)
	if err != nil {
		return err
	}
	pool := threadpool.New(sc.PoolCapacity, sched, k.logger)

	cpu := processor.New(k.switcher, k.logger)
	idle := thread.NewKernel("idle", processor.IdleMain)
	idle.AppendInitialArguments(cpu)
	cpu.Init(idle, pool)
	cpu.OnExit(k.recordExit)
	k.cpu = cpu
	k.bootedAt = time.Now()

	for _, path := range k.cfg.Boot.Programs {
		if _, err := k.Execute(ctx, path, nil); err != nil {
			k.logger.Warn("boot program not started", "path", path, "error", err)
		}
	}

	k.console.WriteLineString(BannerSetup)
	k.logger.Info("kernel initialized",
		"policy", sc.Policy, "quantum", sc.Quantum, "capacity", sc.PoolCapacity)
	return nil
}

func (k *Kernel) mustInit() {
	if k.cpu == nil {
		panic("process: kernel used before Init")
	}
}

// Execute loads the program at path and registers it as a user thread.
// host, when set, is recorded as the thread that requested it. A path that
// cannot be resolved prints a diagnostic on the console and returns an
// error wrapping model.ErrCommandNotFound; pool exhaustion returns an
// error wrapping model.ErrPoolExhausted. No thread is created on error.
func (k *Kernel) Execute(ctx context.Context, path string, host *model.Tid) (model.Tid, error) {
	k.mustInit()

	node, err := k.fs.Lookup(ctx, path)
	if err != nil {
		k.console.WriteLineString(MsgNotFound)
		k.logger.Warn("lookup failed", "path", path, "error", err)
		if errors.Is(err, iofs.ErrNotExist) {
			return model.IdleTid, fmt.Errorf("%s: %w", path, model.ErrCommandNotFound)
		}
		return model.IdleTid, fmt.Errorf("%s: %w: %w", path, model.ErrCommandNotFound, err)
	}
	data, err := node.ReadAll(ctx)
	if err != nil {
		return model.IdleTid, fmt.Errorf("read %s: %w", path, err)
	}
	prog, err := usermode.Load(fs.CleanPath(path), data, userSyscalls{k}, k.logger)
	if err != nil {
		return model.IdleTid, err
	}

	tid, err := k.cpu.AddThread(thread.NewUser(prog, host))
	if err != nil {
		k.logger.Warn("execute failed", "path", path, "error", err)
		return model.IdleTid, err
	}
	return tid, nil
}

// Spawn registers a kernel thread that starts at entry with args.
func (k *Kernel) Spawn(name string, entry thread.Entry, args ...any) (model.Tid, error) {
	k.mustInit()
	t := thread.NewKernel(name, entry)
	t.AppendInitialArguments(args...)
	return k.cpu.AddThread(t)
}

// Tick is the timer interrupt handler: it charges the running thread one
// tick, then fires every timer whose deadline is at or before now.
func (k *Kernel) Tick(now time.Duration) {
	k.mustInit()
	k.cpu.Tick()
	if n := k.timer.Tick(now); n > 0 {
		k.logger.Debug("timers fired", "count", n, "now", now)
	}
}

// Run is the boot context's scheduling loop. It returns only when ctx is
// done.
func (k *Kernel) Run(ctx context.Context) error {
	k.mustInit()
	return k.cpu.Run(ctx)
}

// Exit terminates the calling thread.
func (k *Kernel) Exit(code model.ExitCode) {
	k.mustInit()
	k.cpu.Exit(code)
}

// YieldNow ends the calling thread's turn.
func (k *Kernel) YieldNow() {
	k.mustInit()
	k.cpu.YieldNow()
}

// PreemptPoint switches away from the calling thread if its quantum ran out.
func (k *Kernel) PreemptPoint() {
	k.mustInit()
	k.cpu.PreemptPoint()
}

// WakeUp makes a sleeping thread ready. Other tids are left alone.
func (k *Kernel) WakeUp(tid model.Tid) bool {
	k.mustInit()
	return k.cpu.WakeUp(tid)
}

// CurrentTid returns the running thread, or model.IdleTid.
func (k *Kernel) CurrentTid() model.Tid {
	k.mustInit()
	return k.cpu.CurrentTid()
}

// Sleep suspends the calling thread for at least d. It resumes once the
// deadline has passed and the scheduler selects it again.
func (k *Kernel) Sleep(d time.Duration) {
	k.mustInit()
	ok := k.cpu.Sleep(func(_ model.Tid, wake func() bool) {
		k.AddTimer(d, func() { wake() })
	})
	if !ok {
		k.logger.Error("sleep outside thread context", "duration", d)
	}
}

// AddTimer runs fn once, no earlier than interval from now. Deadlines past
// the end of the clock's range saturate and never fire.
func (k *Kernel) AddTimer(interval time.Duration, fn func()) {
	k.mustInit()
	now := k.clock.Now()
	deadline := now + interval
	if interval > 0 && interval > math.MaxInt64-now {
		deadline = math.MaxInt64
	}
	k.timer.Add(deadline, fn)
}

// Now returns the time since boot on the kernel clock.
func (k *Kernel) Now() time.Duration { return k.clock.Now() }

// PendingTimers returns the number of timers not yet fired.
func (k *Kernel) PendingTimers() int { return k.timer.Len() }

// BootID identifies this boot in logs and in the kstat API.
func (k *Kernel) BootID() string { return k.bootID }

// BootedAt returns the wall-clock time Init completed.
func (k *Kernel) BootedAt() time.Time { return k.bootedAt }

// Snapshot returns a consistent view of the scheduler.
func (k *Kernel) Snapshot() model.ProcessorSnapshot {
	k.mustInit()
	return k.cpu.Snapshot()
}

// Thread returns the view of one live thread.
func (k *Kernel) Thread(tid model.Tid) (model.ThreadInfo, bool) {
	for _, info := range k.Snapshot().Threads {
		if info.Tid == tid {
			return info, true
		}
	}
	return model.ThreadInfo{}, false
}

// Exits returns the most recent exit records, oldest first.
func (k *Kernel) Exits() []model.ExitRecord {
	k.exitMu.Lock()
	defer k.exitMu.Unlock()
	out := make([]model.ExitRecord, len(k.exits))
	copy(out, k.exits)
	return out
}

func (k *Kernel) recordExit(t *thread.Thread, code model.ExitCode) {
	rec := model.ExitRecord{
		Tid:  t.Tid(),
		Name: t.Name(),
		Host: t.Host(),
		Code: code,
		At:   time.Now().UTC(),
	}
	k.exitMu.Lock()
	k.exits = append(k.exits, rec)
	if len(k.exits) > exitHistorySize {
		k.exits = k.exits[len(k.exits)-exitHistorySize:]
	}
	k.exitMu.Unlock()

	if k.exitHook != nil {
		k.exitHook(rec)
	}
}
