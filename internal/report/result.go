// Package report writes the result of a load run as JSON or as a
// self-contained HTML page.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wesleyorama2/vuload/perf/metrics"
	"github.com/wesleyorama2/vuload/perf/threshold"
)

// Result is everything a report renders.
type Result struct {
	Name        string    `json:"name"`
	RunID       string    `json:"runId"`
	Method      string    `json:"method"`
	Target      string    `json:"target"`
	Passed      bool      `json:"passed"`
	GeneratedAt time.Time `json:"generatedAt"`

	Metrics    *metrics.RunSnapshot `json:"metrics"`
	Thresholds []threshold.Result   `json:"thresholds,omitempty"`
}

// NewResult assembles a Result from a finished run. The run passes when
// every threshold passes.
func NewResult(snap *metrics.RunSnapshot, thresholds []threshold.Result, method, target string) *Result {
	r := &Result{
		Method:      method,
		Target:      target,
		Passed:      threshold.Passed(thresholds),
		GeneratedAt: time.Now(),
		Metrics:     snap,
		Thresholds:  thresholds,
	}
	if snap != nil {
		r.Name = snap.Name
		r.RunID = snap.RunID
	}
	if r.Name == "" {
		r.Name = "Load Test"
	}
	return r
}

// DefaultPath builds a timestamped report file name from the run name,
// e.g. "vuload-report-idgen-20240102-150405.html".
func DefaultPath(name, ext string) string {
	safeName := strings.ToLower(strings.TrimSpace(name))
	safeName = strings.NewReplacer(" ", "-", "/", "-", "\\", "-").Replace(safeName)
	if safeName == "" {
		safeName = "run"
	}

	timestamp := time.Now().Format("20060102-150405")
	return fmt.Sprintf("vuload-report-%s-%s.%s", safeName, timestamp, strings.TrimPrefix(ext, "."))
}

// writeFile creates parent directories as needed.
func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
