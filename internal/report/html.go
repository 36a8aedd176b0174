package report

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/wesleyorama2/vuload/perf/metrics"
)

const (
	chartWidth  = 640
	chartHeight = 160
)

// reportData is the template input.
type reportData struct {
	*Result
	Snap        *metrics.RunSnapshot
	StatusCodes []statusRow
	ErrorKinds  []kindRow
	RPSChart    chart
	P95Chart    chart
}

type statusRow struct {
	Code  int
	Count int64
}

type kindRow struct {
	Kind  string
	Count int64
}

// chart is a polyline over the time series, scaled to the SVG viewport.
type chart struct {
	Points string
	Max    string
}

// GenerateHTML writes r as an HTML page to path.
func GenerateHTML(r *Result, path string) error {
	html, err := GenerateHTMLString(r)
	if err != nil {
		return fmt.Errorf("failed to generate HTML: %w", err)
	}
	return writeFile(path, []byte(html))
}

// GenerateHTMLString renders r as a self-contained HTML page.
func GenerateHTMLString(r *Result) (string, error) {
	if r == nil || r.Metrics == nil {
		return "", fmt.Errorf("result cannot be nil")
	}

	tmpl, err := template.New("report").Funcs(templateFuncs()).Parse(htmlTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	snap := r.Metrics
	data := reportData{
		Result:      r,
		Snap:        snap,
		StatusCodes: statusRows(snap.StatusCodes),
		ErrorKinds:  kindRows(snap.ErrorKinds),
		RPSChart: buildChart(snap.TimeSeries, func(b *metrics.TimeBucket) float64 { return b.IntervalRPS },
			func(v float64) string { return fmt.Sprintf("%.1f/s", v) }),
		P95Chart: buildChart(snap.TimeSeries, func(b *metrics.TimeBucket) float64 { return float64(b.LatencyP95) },
			func(v float64) string { return formatLatency(time.Duration(v)) }),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

func statusRows(m map[int]int64) []statusRow {
	rows := make([]statusRow, 0, len(m))
	for code, n := range m {
		rows = append(rows, statusRow{Code: code, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Code < rows[j].Code })
	return rows
}

func kindRows(m map[string]int64) []kindRow {
	rows := make([]kindRow, 0, len(m))
	for kind, n := range m {
		rows = append(rows, kindRow{Kind: kind, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Kind < rows[j].Kind })
	return rows
}

// buildChart maps the series onto the chart viewport. Fewer than two
// buckets produce an empty chart.
func buildChart(series []*metrics.TimeBucket, value func(*metrics.TimeBucket) float64, label func(float64) string) chart {
	if len(series) < 2 {
		return chart{}
	}

	max := 0.0
	for _, b := range series {
		if v := value(b); v > max {
			max = v
		}
	}
	if max == 0 {
		max = 1
	}

	var sb strings.Builder
	step := float64(chartWidth) / float64(len(series)-1)
	for i, b := range series {
		x := step * float64(i)
		y := float64(chartHeight) - value(b)/max*float64(chartHeight)
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
	}
	return chart{Points: sb.String(), Max: label(max)}
}

// templateFuncs returns the template helper functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDuration": formatDuration,
		"formatNumber":   formatNumber,
		"formatLatency":  formatLatency,
		"formatBytes":    formatBytes,
		"percent":        func(f float64) string { return fmt.Sprintf("%.2f%%", f*100) },
		"chartWidth":     func() int { return chartWidth },
		"chartHeight":    func() int { return chartHeight },
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// formatNumber formats a large number with commas.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	if n < 1000 {
		return str
	}

	var sb strings.Builder
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

// formatLatency formats a latency duration in a human-readable way.
func formatLatency(d time.Duration) string {
	switch {
	case d == 0:
		return "0"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < 10*time.Millisecond:
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000)
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < 10*time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// formatBytes formats bytes in a human-readable way.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
