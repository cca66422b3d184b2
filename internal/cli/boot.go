package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/me/tickos/internal/config"
	"github.com/me/tickos/internal/fs"
	"github.com/me/tickos/internal/hal"
	"github.com/me/tickos/internal/logging"
	"github.com/me/tickos/internal/process"
	"github.com/me/tickos/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newBootCmd() *cobra.Command {
	var (
		configPath   string
		imagesDir    string
		dbPath       string
		kstatAddr    string
		policy       string
		quantum      int
		ticks        uint64
		tickInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "boot [program...]",
		Short: "Boot the kernel and run until interrupted",
		Long: "Boot the kernel, execute the boot programs (bin/init unless given), and " +
			"drive the timer interrupt until Ctrl-C or --ticks interrupts have fired.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultKernelConfig()
			if configPath != "" {
				var err error
				if cfg, err = config.Load(configPath); err != nil {
					return err
				}
			}

			flags := cmd.Flags()
			if flags.Changed("images-dir") {
				cfg.Images.Source, cfg.Images.Dir = config.SourceDir, imagesDir
			}
			if flags.Changed("db") {
				cfg.Images.Source, cfg.Images.DB = config.SourceSQLite, dbPath
			}
			if flags.Changed("kstat") {
				cfg.Kstat.Addr = kstatAddr
			}
			if flags.Changed("policy") {
				cfg.Scheduler.Policy = policy
			}
			if flags.Changed("quantum") {
				cfg.Scheduler.Quantum = quantum
			}
			if flags.Changed("tick-interval") {
				cfg.Clock.TickInterval = tickInterval
			}
			if len(args) > 0 {
				cfg.Boot.Programs = args
			}

			root := cmd.Root().PersistentFlags()
			if configPath != "" && !root.Changed("log-level") && !root.Changed("debug") {
				logger = logging.NewLogger(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBoot(ctx, cfg, ticks, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML kernel config file")
	cmd.Flags().StringVar(&imagesDir, "images-dir", "", "Load programs from this host directory")
	cmd.Flags().StringVar(&dbPath, "db", "", "Load programs from this SQLite image store")
	cmd.Flags().StringVar(&kstatAddr, "kstat", "", "Serve the kstat API on this address (e.g. :7070)")
	cmd.Flags().StringVar(&policy, "policy", "round-robin", "Scheduling policy (round-robin, fifo)")
	cmd.Flags().IntVar(&quantum, "quantum", 1, "Round-robin quantum in ticks")
	cmd.Flags().Uint64Var(&ticks, "ticks", 0, "Halt after this many timer interrupts (0 = run until interrupted)")
	cmd.Flags().DurationVar(&tickInterval, "tick-interval", 10*time.Millisecond, "Timer interrupt period")
	return cmd
}

// runBoot boots a kernel from cfg and runs the processor, the timer
// interrupt source and the optional kstat server until ctx is done or the
// tick budget is spent.
func runBoot(ctx context.Context, cfg config.KernelConfig, ticks uint64, out io.Writer) error {
	src, closeSrc, err := openImageSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	k := process.New(cfg,
		process.WithFS(src),
		process.WithConsole(hal.NewConsole(out)),
		process.WithLogger(logger),
	)
	if err := k.Init(ctx); err != nil {
		return err
	}

	ctx, halt := context.WithCancel(ctx)
	defer halt()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return k.Run(gctx) })
	g.Go(func() error {
		err := hal.RunTicker(gctx, k, hal.TickerConfig{Interval: cfg.Clock.TickInterval, Ticks: ticks}, k.Tick)
		if err == nil {
			logger.Info("tick budget spent, halting", "ticks", ticks)
			halt()
		}
		return err
	})
	if cfg.Kstat.Addr != "" {
		srv := server.New(k, logger, server.WithVersion(Version), server.WithPolicy(cfg.Scheduler.Policy))
		g.Go(func() error { return srv.ListenAndServe(gctx, cfg.Kstat.Addr) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openImageSource builds the configured image source. The embedded images
// are always searched last.
func openImageSource(ctx context.Context, cfg config.KernelConfig) (fs.FileSystem, func(), error) {
	noop := func() {}
	img := cfg.Images
	switch strings.ToLower(img.Source) {
	case "", config.SourceEmbedded:
		return fs.Embedded(), noop, nil
	case config.SourceDir:
		return fs.Chain{fs.Dir(img.Dir), fs.Embedded()}, noop, nil
	case config.SourceSQLite:
		st, err := openImageStore(ctx, img.DB)
		if err != nil {
			return nil, nil, err
		}
		return fs.Chain{st, fs.Embedded()}, func() { st.Close() }, nil
	case config.SourceS3:
		s3fs, err := fs.NewS3FSFromConfig(ctx, fs.S3Config{
			Bucket:   img.S3.Bucket,
			Prefix:   img.S3.Prefix,
			Region:   img.S3.Region,
			Endpoint: img.S3.Endpoint,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return fs.Chain{s3fs, fs.Embedded()}, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown image source %q", img.Source)
	}
}

func openImageStore(ctx context.Context, path string) (*fs.SQLiteStore, error) {
	st, err := fs.NewSQLiteStore(path, logger)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate image store: %w", err)
	}
	return st, nil
}
