package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/vuload/internal/output"
	"github.com/wesleyorama2/vuload/perf/config"
)

func newValidateCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				return fmt.Errorf("--config is required")
			}

			tc, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}
			config.ApplyDefaults(tc)
			if err := tc.Validate(); err != nil {
				return err
			}
			rc, err := tc.ToRunConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			noColor, _ := cmd.Flags().GetBool("no-color")
			thresholds := 0
			if tc.Thresholds != nil {
				thresholds = len(tc.Thresholds.HTTPReqDuration) + len(tc.Thresholds.HTTPReqFailed) +
					len(tc.Thresholds.Checks) + len(tc.Thresholds.Iterations)
			}

			fmt.Fprintf(out, "%s %s is valid\n", output.SuccessIcon(noColor), configFile)
			fmt.Fprintf(out, "  %s %s, %d VUs for %s (grace %s)\n",
				rc.Request.Method, rc.Request.URL, rc.VUs, rc.Duration, rc.GracePeriod)
			fmt.Fprintf(out, "  %d checks, %d thresholds\n", len(rc.Checks), thresholds)
			for _, c := range rc.Checks {
				fmt.Fprintf(out, "    - %s\n", c.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	return cmd
}
