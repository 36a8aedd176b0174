// Package output renders live progress and the final summary of a load run
// on the console.
package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/wesleyorama2/vuload/perf/metrics"
	"github.com/wesleyorama2/vuload/perf/threshold"
)

// ANSI escape codes for cursor control
const (
	cursorUp  = "\033[%dA" // Move cursor up N lines
	clearLine = "\033[2K"  // Clear entire line

	// Box drawing characters
	boxHorizontal  = "━"
	boxVertical    = "│"
	boxTopLeft     = "┌"
	boxTopRight    = "┐"
	boxBottomLeft  = "└"
	boxBottomRight = "┘"

	// Progress bar characters
	progressFilled = "█"
	progressEmpty  = "░"
)

// LiveStats contains real-time statistics for display.
type LiveStats struct {
	Progress  float64       // 0.0 to 1.0
	Elapsed   time.Duration // Time elapsed since run start
	Remaining time.Duration // Time left until the stop signal

	ActiveVUs int
	TargetVUs int

	CurrentRPS float64
	Iterations int64
	Errors     int64
	ErrorRate  float64
	CheckRate  float64

	LatencyP95 time.Duration
	LatencyAvg time.Duration

	Phase string
}

// StatsFromSnapshot builds LiveStats from a live snapshot. A nil snapshot
// yields an "initializing" placeholder.
func StatsFromSnapshot(snap *metrics.RunSnapshot, progress float64, duration time.Duration, targetVUs int) *LiveStats {
	if snap == nil {
		return &LiveStats{
			Progress:  progress,
			TargetVUs: targetVUs,
			Remaining: duration,
			Phase:     "initializing",
		}
	}

	remaining := duration - snap.Elapsed
	if remaining < 0 {
		remaining = 0
	}

	rps := snap.CurrentRate
	if rps == 0 {
		rps = snap.IterationRate
	}

	return &LiveStats{
		Progress:   progress,
		Elapsed:    snap.Elapsed,
		Remaining:  remaining,
		ActiveVUs:  snap.ActiveVUs,
		TargetVUs:  targetVUs,
		CurrentRPS: rps,
		Iterations: snap.TotalIterations,
		Errors:     snap.ErrorCount,
		ErrorRate:  snap.ErrorRate,
		CheckRate:  snap.CheckRate(),
		LatencyP95: snap.Latency.P95,
		LatencyAvg: snap.Latency.Mean,
		Phase:      string(snap.Phase),
	}
}

// Console manages console output during and after a run.
type Console struct {
	name     string
	duration time.Duration
	vus      int
	writer   io.Writer
	isTTY    bool
	noColor  bool
	quiet    bool
	colors   *ColorScheme

	mu          sync.Mutex
	linesOutput int // Number of lines in the live display
}

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	Name     string
	Duration time.Duration
	VUs      int
	Writer   io.Writer
	Quiet    bool
	NoColor  bool
	ForceTTY bool
}

// NewConsole creates a new console output handler.
func NewConsole(config ConsoleConfig) *Console {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}

	isTTY := config.ForceTTY || IsTerminal(config.Writer)
	noColor := config.NoColor || !isTTY || !SupportsColors()

	colors := DefaultColorScheme()
	if noColor {
		colors = NoColorScheme()
	}

	return &Console{
		name:     config.Name,
		duration: config.Duration,
		vus:      config.VUs,
		writer:   config.Writer,
		isTTY:    isTTY,
		noColor:  noColor,
		quiet:    config.Quiet,
		colors:   colors,
	}
}

// IsTTY returns whether the output is a terminal.
func (c *Console) IsTTY() bool {
	return c.isTTY
}

// PrintHeader prints the run header.
func (c *Console) PrintHeader(target string) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	line := c.colors.Value.Sprint(strings.Repeat(boxHorizontal, 56))
	c.writeln(line)
	c.writeln(c.colors.Title.Sprintf("%s - Running", c.displayName()))
	c.writeln(line)
	c.writeln(fmt.Sprintf("Target:   %s", target))
	c.writeln(fmt.Sprintf("VUs:      %d for %s", c.vus, formatDuration(c.duration)))
	c.writeln("")
}

// Update refreshes the live display. On a terminal it redraws a progress
// box in place; otherwise it prints a single status line.
func (c *Console) Update(stats *LiveStats) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isTTY {
		c.writeln(c.statusLine(stats))
		return
	}

	c.clearLive()
	lines := c.renderLiveStats(stats)
	c.linesOutput = len(lines)
	for _, line := range lines {
		c.writeln(line)
	}
}

// statusLine is the one-line update used when output is piped.
func (c *Console) statusLine(stats *LiveStats) string {
	return fmt.Sprintf("[%s] %s %.0f%% | VUs: %d/%d | Iters: %d | RPS: %.1f | Errors: %d (%.1f%%) | P95: %s",
		formatDuration(stats.Elapsed),
		stats.Phase,
		stats.Progress*100,
		stats.ActiveVUs,
		stats.TargetVUs,
		stats.Iterations,
		stats.CurrentRPS,
		stats.Errors,
		stats.ErrorRate*100,
		formatDurationShort(stats.LatencyP95))
}

// clearLive erases the previously drawn live box. Callers hold mu.
func (c *Console) clearLive() {
	if c.linesOutput == 0 {
		return
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	for i := 0; i < c.linesOutput; i++ {
		c.write(clearLine + "\n")
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	c.linesOutput = 0
}

func (c *Console) renderLiveStats(stats *LiveStats) []string {
	var lines []string

	timeInfo := fmt.Sprintf("%s / %s", formatDuration(stats.Elapsed), formatDuration(stats.Elapsed+stats.Remaining))
	lines = append(lines, fmt.Sprintf("Progress: %s %s | %s",
		c.colors.Good.Sprint(renderProgressBar(stats.Progress, 40)),
		c.colors.Title.Sprintf("%.0f%%", stats.Progress*100),
		c.colors.Dim.Sprint(timeInfo)))
	lines = append(lines, fmt.Sprintf("Phase:    %s", c.colors.Accent.Sprint(stats.Phase)))
	lines = append(lines, "")

	boxWidth := 55
	lines = append(lines, c.colors.Dim.Sprint(boxTopLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxTopRight))

	vusStr := fmt.Sprintf("VUs:     %s / %d", c.colors.Value.Sprint(stats.ActiveVUs), stats.TargetVUs)
	itersStr := fmt.Sprintf("Iterations:  %s", c.colors.Value.Sprint(formatNumber(stats.Iterations)))
	lines = append(lines, c.formatBoxRow(vusStr, itersStr, boxWidth))

	errColor := c.colors.rateColor(stats.ErrorRate)
	rpsStr := fmt.Sprintf("RPS:     %s", c.colors.Good.Sprintf("%.1f", stats.CurrentRPS))
	errStr := fmt.Sprintf("Errors:      %s (%s)",
		errColor.Sprint(stats.Errors),
		errColor.Sprintf("%.1f%%", stats.ErrorRate*100))
	lines = append(lines, c.formatBoxRow(rpsStr, errStr, boxWidth))

	p95Str := fmt.Sprintf("P95:     %s", c.colors.Value.Sprint(formatDurationShort(stats.LatencyP95)))
	checkStr := fmt.Sprintf("Checks:      %s",
		c.colors.rateColor(1-stats.CheckRate).Sprintf("%.1f%%", stats.CheckRate*100))
	lines = append(lines, c.formatBoxRow(p95Str, checkStr, boxWidth))

	lines = append(lines, c.colors.Dim.Sprint(boxBottomLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxBottomRight))
	return lines
}

// formatBoxRow formats a row inside the stats box with two columns.
func (c *Console) formatBoxRow(left, right string, boxWidth int) string {
	colWidth := (boxWidth - 4) / 2 // 2 borders + 2 padding

	leftPadding := colWidth - visibleLen(left)
	if leftPadding < 0 {
		leftPadding = 0
	}
	rightPadding := colWidth - visibleLen(right)
	if rightPadding < 0 {
		rightPadding = 0
	}

	border := c.colors.Dim.Sprint(boxVertical)
	return fmt.Sprintf("%s %s%s%s %s%s %s",
		border,
		left, strings.Repeat(" ", leftPadding),
		border,
		right, strings.Repeat(" ", rightPadding),
		border)
}

// PrintSummary prints the final report: checks, latency, errors and
// threshold results.
func (c *Console) PrintSummary(snap *metrics.RunSnapshot, thresholds []threshold.Result) {
	passed := threshold.Passed(thresholds)

	if c.quiet {
		if passed {
			c.writeln(c.colors.Good.Sprint("PASSED"))
		} else {
			c.writeln(c.colors.Bad.Sprint("FAILED"))
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isTTY {
		c.clearLive()
	}

	status, statusColor := "Completed ✓", c.colors.Good
	if !passed {
		status, statusColor = "Failed ✗", c.colors.Bad
	}

	line := c.colors.Value.Sprint(strings.Repeat(boxHorizontal, 56))
	c.writeln("")
	c.writeln(line)
	c.writeln(fmt.Sprintf("%s - %s", c.colors.Title.Sprint(c.displayName()), statusColor.Sprint(status)))
	c.writeln(line)
	c.writeln("")

	if snap.ForcedTermination {
		c.writeln(fmt.Sprintf("%s %s", WarningIcon(c.noColor),
			c.colors.Warn.Sprintf("grace period elapsed: in-flight requests were aborted (%d VUs did not stop)", snap.StuckVUs)))
		c.writeln("")
	}

	c.writeln(fmt.Sprintf("Duration:      %s", c.colors.Value.Sprint(formatDuration(snap.Elapsed))))
	c.writeln(fmt.Sprintf("VUs:           %s (peak in flight %d)", c.colors.Value.Sprint(snap.VUs), snap.PeakInFlight))
	c.writeln(fmt.Sprintf("Iterations:    %s (%.1f/s)", c.colors.Value.Sprint(formatNumber(snap.TotalIterations)), snap.IterationRate))
	c.writeln(fmt.Sprintf("Data received: %s", c.colors.Value.Sprint(formatBytes(snap.BytesReceived))))

	failColor := c.colors.rateColor(snap.FailedRate())
	c.writeln(fmt.Sprintf("Failed:        %s", failColor.Sprintf("%.2f%% (%d transport, %d http)",
		snap.FailedRate()*100, snap.ErrorCount, snap.HTTPFailures)))
	c.writeln("")

	if len(snap.Checks) > 0 {
		c.writeln(c.colors.Title.Sprint("Checks:"))
		for _, check := range snap.Checks {
			icon := SuccessIcon(c.noColor)
			if check.Fails > 0 {
				icon = ErrorIcon(c.noColor)
			}
			c.writeln(fmt.Sprintf("  %s %s", icon, check.Name))
			if check.Fails > 0 {
				c.writeln(c.colors.Dim.Sprintf("    ↳ %.0f%% — ✓ %d / ✗ %d", check.PassRate()*100, check.Passes, check.Fails))
			}
		}
		c.writeln(fmt.Sprintf("  %s %s", c.colors.Label.Sprint("checks passed:"),
			c.colors.rateColor(1-snap.CheckRate()).Sprintf("%.2f%% (%d of %d)",
				snap.CheckRate()*100, snap.TotalChecksPassed, snap.TotalChecksPassed+snap.TotalChecksFailed)))
		if snap.CheckErrors > 0 {
			c.writeln(c.colors.Warn.Sprintf("  %d check evaluations panicked", snap.CheckErrors))
		}
		c.writeln("")
	}

	if snap.Latency.Count > 0 {
		l := snap.Latency
		c.writeln(c.colors.Title.Sprint("Latency Distribution:"))
		c.writeln(fmt.Sprintf("  Min:       %s", formatDurationShort(l.Min)))
		c.writeln(fmt.Sprintf("  Avg:       %s", formatDurationShort(l.Mean)))
		c.writeln(fmt.Sprintf("  P50:       %s", formatDurationShort(l.P50)))
		c.writeln(fmt.Sprintf("  P90:       %s", formatDurationShort(l.P90)))
		c.writeln(fmt.Sprintf("  P95:       %s", formatDurationShort(l.P95)))
		c.writeln(fmt.Sprintf("  P99:       %s", formatDurationShort(l.P99)))
		c.writeln(fmt.Sprintf("  Max:       %s", formatDurationShort(l.Max)))
		c.writeln("")
	}

	if len(snap.ErrorKinds) > 0 {
		c.writeln(c.colors.Title.Sprint("Errors:"))
		for _, kind := range sortedKeys(snap.ErrorKinds) {
			c.writeln(fmt.Sprintf("  %-10s %s", kind, c.colors.Bad.Sprint(snap.ErrorKinds[kind])))
		}
		c.writeln("")
	}

	if len(snap.StatusCodes) > 0 {
		c.writeln(c.colors.Title.Sprint("Status Codes:"))
		codes := make([]int, 0, len(snap.StatusCodes))
		for code := range snap.StatusCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			c.writeln(fmt.Sprintf("  %d  %s", code, c.statusColor(code).Sprint(snap.StatusCodes[code])))
		}
		c.writeln("")
	}

	if len(thresholds) > 0 {
		c.writeln(c.colors.Title.Sprint("Thresholds:"))
		for _, t := range thresholds {
			icon := SuccessIcon(c.noColor)
			if !t.Passed {
				icon = ErrorIcon(c.noColor)
			}
			c.writeln(fmt.Sprintf("  %s %s %s (actual: %s)", icon, t.Metric, t.Expression, t.Value))
		}
		c.writeln("")
	}

	if snap.DroppedOutcomes > 0 {
		c.writeln(c.colors.Dim.Sprintf("%d outcomes arrived after finalize and were dropped", snap.DroppedOutcomes))
	}
}

func (c *Console) statusColor(code int) *color.Color {
	switch {
	case code >= 500:
		return c.colors.Bad
	case code >= 400:
		return c.colors.Warn
	default:
		return c.colors.Good
	}
}

func (c *Console) displayName() string {
	if c.name == "" {
		return "Load Test"
	}
	return c.name
}

func (c *Console) write(s string) {
	fmt.Fprint(c.writer, s)
}

func (c *Console) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

func renderProgressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	filled := int(progress * float64(width))
	return "[" + strings.Repeat(progressFilled, filled) + strings.Repeat(progressEmpty, width-filled) + "]"
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %02dm %02ds", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

// formatDurationShort formats a latency.
func formatDurationShort(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return "0ms"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < 10*time.Millisecond:
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	str := fmt.Sprintf("%d", n)
	if n < 0 || len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// visibleLen is the printed width of s, ignoring ANSI escape sequences.
func visibleLen(s string) int {
	n := 0
	inEscape := false
	for _, r := range s {
		if r == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
			continue
		}
		n++
	}
	return n
}
