// Package cli implements the ghrun command-line entrypoint: a root
// command plus `run` and `validate` subcommands, grounded on the
// teacher's NewRootCmd persistent-flag/PersistentPreRun shape
// (internal/cli/root.go) but wired directly to this module's
// scheduler instead of an HTTP client, since ghrun has no server of
// its own to talk to — the in-process run is the only mode.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/me/ghrun/internal/config"
	"github.com/me/ghrun/internal/logging"
)

var (
	opts   = config.Default()
	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the ghrun CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ghrun",
		Short: "ghrun runs GitHub Actions-style workflows locally",
		Long: `ghrun validates and executes GitHub Actions-style workflow YAML
files against a local Docker daemon or a plain-process emulation
runtime, without any dependency on github.com.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewLogger(logging.ParseLevel(opts.LogLevel), opts.LogFormat)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.LogFormat, "log-format", opts.LogFormat, "Log format (text, json)")

	root.AddCommand(newRunCmd(), newValidateCmd())
	return root
}
