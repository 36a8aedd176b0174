package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/vuload/internal/target"
)

func newTargetCmd() *cobra.Command {
	var cfg target.Config

	cmd := &cobra.Command{
		Use:   "target",
		Short: "Serve a demo id-generator endpoint to load",
		Long: `Serve GET /id?biztag=<tag>, returning {"ret":0,"msg":"succ","biztag":...,"id":N}
with a per-tag increasing id. Useful as a local target for vuload run.`,
		Example: `  vuload target --addr :8080 --latency 10ms
  vuload run --url "http://127.0.0.1:8080/id?biztag=test" --expect-status 200 --expect-body succ`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Target listening on %s (GET /id?biztag=<tag>)\n", cfg.Addr)
			return target.NewServer(cfg, logger).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&cfg.Addr, "addr", ":8080", "Address to listen on")
	cmd.Flags().DurationVar(&cfg.Latency, "latency", 0, "Delay added to every response")
	cmd.Flags().DurationVar(&cfg.Jitter, "jitter", 0, "Random extra delay in [0, jitter)")

	return cmd
}
