package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/me/tickos/internal/logging"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X github.com/me/tickos/internal/cli.Version=...".
var Version = "dev"

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the kstat URL, checking TICKOS_SERVER first.
func defaultServer() string {
	if s := os.Getenv("TICKOS_SERVER"); s != "" {
		return s
	}
	return "http://localhost:7070"
}

// NewRootCmd creates the root cobra command for the tickos CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tickos",
		Short: "tickos: a host-simulated kernel scheduling core",
		Long: "tickos boots a single-processor kernel in user space: round-robin threads, " +
			"a timer interrupt, sleeping and waking, and JavaScript user programs.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "kstat URL (or TICKOS_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newBootCmd(),
		newImageCmd(),
		newPsCmd(),
		newExecCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tickos version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tickos %s\n", Version)
		},
	}
}
