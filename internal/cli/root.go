// Package cli implements the vuload command line.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/vuload/internal/logging"
)

var version = "0.1.0"

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "vuload",
		Short:   "A closed-loop HTTP load generator",
		Version: version,
		Long: `vuload drives an HTTP endpoint with a fixed number of virtual users for a
fixed duration. Every VU sends its next request as soon as the previous one
completes, evaluates named checks against each response, and the run ends
with a latency and pass/fail report.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "console", "Log format: console, json")
	root.PersistentFlags().Bool("no-color", false, "Disable colored output")

	root.AddCommand(newRunCmd())
	root.AddCommand(newTargetCmd())
	root.AddCommand(newValidateCmd())

	return root
}

// Execute runs the root command with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// newLogger builds the logger from the persistent flags. Logs go to the
// command's stderr.
func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	cfg := logging.DefaultConfig()
	cfg.Level, _ = cmd.Flags().GetString("log-level")
	cfg.Format, _ = cmd.Flags().GetString("log-format")
	cfg.Output = cmd.ErrOrStderr()
	return logging.New(cfg)
}
