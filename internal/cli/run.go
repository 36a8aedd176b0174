package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/vuload/internal/output"
	"github.com/wesleyorama2/vuload/internal/report"
	"github.com/wesleyorama2/vuload/perf"
	"github.com/wesleyorama2/vuload/perf/config"
	"github.com/wesleyorama2/vuload/perf/metrics"
	"github.com/wesleyorama2/vuload/perf/threshold"
)

// CLI defaults for quick runs without a config file.
const (
	defaultVUs      = 10
	defaultDuration = 30 * time.Second
)

// errThresholdsFailed makes the process exit non-zero after a complete run.
var errThresholdsFailed = errors.New("one or more thresholds failed")

type runOptions struct {
	configFile string

	url          string
	method       string
	headers      []string
	body         string
	vus          int
	duration     time.Duration
	gracePeriod  time.Duration
	timeout      time.Duration
	expectStatus int
	expectBody   string
	maxConns     int

	jsonOutput     bool
	htmlOutput     bool
	outputPath     string
	quiet          bool
	updateInterval time.Duration

	cpuProfile       string
	memProfile       string
	goroutineProfile string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a load test",
		Long: `Run a load test from a configuration file or from command line flags.

Flags override values from the configuration file.`,
		Example: `  # Run from a configuration file
  vuload run -c examples/idgen.yaml

  # Quick run: 50 VUs for 1 minute with two checks
  vuload run --url "http://127.0.0.1:8080/id?biztag=test" \
    --vus 50 --duration 1m --expect-status 200 --expect-body succ

  # Write an HTML report
  vuload run -c examples/idgen.yaml --output report.html`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runLoad(ctx, cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	f.StringVar(&opts.url, "url", "", "URL to load (alternative to --config)")
	f.StringVarP(&opts.method, "method", "X", "GET", "HTTP method")
	f.StringArrayVarP(&opts.headers, "header", "H", nil, "Request header 'Key: Value' (repeatable)")
	f.StringVarP(&opts.body, "body", "d", "", "Request body")
	f.IntVar(&opts.vus, "vus", defaultVUs, "Number of virtual users")
	f.DurationVar(&opts.duration, "duration", defaultDuration, "How long VUs keep iterating")
	f.DurationVar(&opts.gracePeriod, "grace-period", perf.DefaultGracePeriod, "How long in-flight iterations may finish after the duration")
	f.DurationVarP(&opts.timeout, "timeout", "t", config.DefaultTimeout, "Request timeout")
	f.IntVar(&opts.expectStatus, "expect-status", 0, "Add a check that the status equals this code")
	f.StringVar(&opts.expectBody, "expect-body", "", "Add a check that the body contains this string")
	f.IntVar(&opts.maxConns, "max-conns", 0, "Maximum connections per host (default: one per VU)")
	f.BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	f.BoolVar(&opts.htmlOutput, "html", false, "Generate HTML report")
	f.StringVarP(&opts.outputPath, "output", "o", "", "Output file for the report (.json or .html)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Disable live progress output, show only PASSED/FAILED")
	f.DurationVar(&opts.updateInterval, "update-interval", time.Second, "Live progress refresh interval")
	f.StringVar(&opts.cpuProfile, "cpuprofile", "", "Write a CPU profile of the run to file")
	f.StringVar(&opts.memProfile, "memprofile", "", "Write a heap profile after the run to file")
	f.StringVar(&opts.goroutineProfile, "goroutineprofile", "", "Write a goroutine profile after the run to file")

	return cmd
}

// buildTestConfig loads the configuration file, or starts from the quick
// run defaults, and applies flag overrides. Defaults are applied last so
// the connection cap follows the final VU count.
func buildTestConfig(cmd *cobra.Command, opts *runOptions) (*config.TestConfig, error) {
	var tc *config.TestConfig
	flags := cmd.Flags()

	switch {
	case opts.configFile != "":
		loaded, err := config.LoadConfig(opts.configFile)
		if err != nil {
			return nil, err
		}
		tc = loaded
	case opts.url != "":
		tc = &config.TestConfig{
			Name:     "CLI Run",
			VUs:      opts.vus,
			Duration: config.Duration(opts.duration),
		}
	default:
		return nil, errors.New("either --config or --url is required")
	}

	if flags.Changed("url") {
		tc.Request.URL = opts.url
	}
	if flags.Changed("method") {
		tc.Request.Method = opts.method
	}
	if flags.Changed("body") {
		tc.Request.Body = opts.body
	}
	if flags.Changed("vus") {
		tc.VUs = opts.vus
	}
	if flags.Changed("duration") {
		tc.Duration = config.Duration(opts.duration)
	}
	if flags.Changed("grace-period") {
		tc.GracePeriod = config.Duration(opts.gracePeriod)
	}
	if flags.Changed("timeout") || tc.Settings.Timeout == 0 {
		tc.Settings.Timeout = config.Duration(opts.timeout)
	}
	if flags.Changed("max-conns") {
		tc.Settings.MaxConnsPerHost = opts.maxConns
	}

	if len(opts.headers) > 0 {
		headers, err := parseHeaders(opts.headers)
		if err != nil {
			return nil, err
		}
		if tc.Request.Headers == nil {
			tc.Request.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			tc.Request.Headers[k] = v
		}
	}

	if opts.expectStatus > 0 {
		tc.Checks = append(tc.Checks, config.CheckConfig{
			Type:  config.CheckStatus,
			Value: strconv.Itoa(opts.expectStatus),
		})
	}
	if opts.expectBody != "" {
		tc.Checks = append(tc.Checks, config.CheckConfig{
			Type:  config.CheckBody,
			Value: opts.expectBody,
		})
	}

	config.ApplyDefaults(tc)
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return tc, nil
}

// parseHeaders parses "Key: Value" pairs.
func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("invalid header format %q (expected 'Key: Value')", h)
		}
		headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return headers, nil
}

func runLoad(ctx context.Context, cmd *cobra.Command, opts *runOptions) error {
	tc, err := buildTestConfig(cmd, opts)
	if err != nil {
		return err
	}
	rc, err := tc.ToRunConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	noColor, _ := cmd.Flags().GetBool("no-color")
	stdout := cmd.OutOrStdout()

	// JSON on stdout replaces the console report.
	jsonToStdout := opts.jsonOutput && opts.outputPath == ""

	console := output.NewConsole(output.ConsoleConfig{
		Name:     tc.Name,
		Duration: rc.Duration,
		VUs:      rc.VUs,
		Writer:   stdout,
		Quiet:    opts.quiet || jsonToStdout,
		NoColor:  noColor,
	})

	controller := perf.NewRunController(
		perf.WithLogger(logger),
		perf.WithBucketInterval(time.Second),
	)

	prof := &profiler{
		cpuPath:       opts.cpuProfile,
		memPath:       opts.memProfile,
		goroutinePath: opts.goroutineProfile,
		logger:        logger,
	}
	if err := prof.start(); err != nil {
		return err
	}

	console.PrintHeader(fmt.Sprintf("%s %s", tc.Request.Method, tc.Request.URL))

	snap, err := execute(ctx, controller, rc, console, opts.updateInterval)
	if perr := prof.stop(); perr != nil {
		logger.Warn("profiling failed", zap.Error(perr))
	}
	if err != nil {
		return err
	}

	results := threshold.Evaluate(tc.Thresholds, snap)
	if !jsonToStdout {
		console.PrintSummary(snap, results)
	}

	result := report.NewResult(snap, results, tc.Request.Method, tc.Request.URL)
	if err := writeReports(stdout, result, opts, logger); err != nil {
		return err
	}

	if !result.Passed {
		return errThresholdsFailed
	}
	return nil
}

// execute runs the controller and the progress loop side by side.
func execute(ctx context.Context, controller *perf.RunController, rc *perf.RunConfig, console *output.Console, interval time.Duration) (*metrics.RunSnapshot, error) {
	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	var snap *metrics.RunSnapshot
	g.Go(func() error {
		defer close(done)
		var err error
		snap, err = controller.Run(gctx, rc)
		return err
	})

	g.Go(func() error {
		if interval <= 0 {
			return nil
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return nil
			case <-ticker.C:
				stats := output.StatsFromSnapshot(controller.Live(), controller.Progress(), rc.Duration, rc.VUs)
				stats.ActiveVUs = controller.ActiveVUs()
				console.Update(stats)
			}
		}
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

func writeReports(stdout io.Writer, result *report.Result, opts *runOptions, logger *zap.Logger) error {
	path := opts.outputPath
	lower := strings.ToLower(path)

	isHTML := opts.htmlOutput || strings.HasSuffix(lower, ".html")
	isJSON := opts.jsonOutput || strings.HasSuffix(lower, ".json")

	switch {
	case isJSON && path == "":
		return report.WriteJSON(stdout, result)
	case isJSON:
		if err := report.GenerateJSON(result, path); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Results written to: %s\n", path)
	case isHTML:
		if path == "" {
			path = report.DefaultPath(result.Name, "html")
		}
		if err := report.GenerateHTML(result, path); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Report: %s\n", path)
	case path != "":
		// No recognised extension: write both.
		if err := report.GenerateHTML(result, path+".html"); err != nil {
			return err
		}
		if err := report.GenerateJSON(result, path+".json"); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Report: %s.html, %s.json\n", path, path)
	default:
		return nil
	}

	logger.Debug("report written", zap.String("path", path))
	return nil
}
