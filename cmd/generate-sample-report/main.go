// Command generate-sample-report renders the HTML and JSON reports for a
// synthetic run, for previewing report changes without a live target.
package main

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/wesleyorama2/vuload/internal/report"
	"github.com/wesleyorama2/vuload/perf/metrics"
	"github.com/wesleyorama2/vuload/perf/threshold"
)

func main() {
	outputPath := "sample-report.html"
	if len(os.Args) > 1 {
		outputPath = os.Args[1]
	}

	snap := createSampleSnapshot(time.Now())
	thresholds := &threshold.Config{
		HTTPReqDuration: []string{"p95 < 500ms", "avg < 100ms"},
		HTTPReqFailed:   []string{"rate < 0.01"},
		Checks:          []string{"rate > 0.99"},
	}
	result := report.NewResult(snap, threshold.Evaluate(thresholds, snap), "GET", "http://127.0.0.1:8080/id?biztag=test")

	if err := report.GenerateHTML(result, outputPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	jsonPath := strings.TrimSuffix(outputPath, ".html") + ".json"
	if err := report.GenerateJSON(result, jsonPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Sample report generated: %s, %s\n", outputPath, jsonPath)
}

// createSampleSnapshot builds a one-minute, 1000 VU run with a short
// latency spike in the middle.
func createSampleSnapshot(end time.Time) *metrics.RunSnapshot {
	const (
		vus     = 1000
		seconds = 60
	)
	start := end.Add(-seconds * time.Second)

	var series []*metrics.TimeBucket
	var total, errs int64
	for i := 1; i <= seconds; i++ {
		p95 := 40 * time.Millisecond
		rps := 24000.0
		if i >= 25 && i <= 32 {
			spike := math.Sin(float64(i-25) / 7 * math.Pi)
			p95 += time.Duration(spike * float64(180*time.Millisecond))
			rps -= spike * 9000
		}

		interval := int64(rps)
		intervalErrs := interval / 2000
		total += interval
		errs += intervalErrs

		series = append(series, &metrics.TimeBucket{
			Timestamp:          start.Add(time.Duration(i) * time.Second),
			TotalIterations:    total,
			TotalErrors:        errs,
			TotalBytes:         total * 52,
			IntervalIterations: interval,
			IntervalRPS:        rps,
			IntervalErrorRate:  float64(intervalErrs) / float64(interval),
			LatencyP50:         p95 / 3,
			LatencyP95:         p95,
			LatencyP99:         p95 * 2,
			ActiveVUs:          vus,
			Phase:              metrics.PhaseRunning,
		})
	}
	series[len(series)-1].Phase = metrics.PhaseStopped

	ok := total - errs
	bodyFails := ok / 1500

	return &metrics.RunSnapshot{
		RunID:             "3f2b8c1e-5d4a-4c8e-9b7f-0a1d2e3f4a5b",
		Name:              "idgen stress",
		Phase:             metrics.PhaseStopped,
		StartTime:         start,
		EndTime:           end,
		Elapsed:           seconds * time.Second,
		TotalIterations:   total,
		TotalChecksPassed: ok + ok - bodyFails,
		TotalChecksFailed: errs*2 + bodyFails,
		Checks: []metrics.CheckStats{
			{Name: "Status is 200", Passes: ok, Fails: errs},
			{Name: `Response contains "succ"`, Passes: ok - bodyFails, Fails: errs + bodyFails},
		},
		Latency: metrics.LatencyStats{
			Count:  ok,
			Min:    900 * time.Microsecond,
			Max:    1200 * time.Millisecond,
			Mean:   18 * time.Millisecond,
			StdDev: 22 * time.Millisecond,
			P50:    14 * time.Millisecond,
			P90:    33 * time.Millisecond,
			P95:    47 * time.Millisecond,
			P99:    160 * time.Millisecond,
		},
		ErrorCount:    errs,
		ErrorRate:     float64(errs) / float64(total),
		ErrorKinds:    map[string]int64{"timeout": errs * 3 / 4, "refused": errs - errs*3/4},
		StatusCodes:   map[int]int64{200: ok},
		BytesReceived: total * 52,
		IterationRate: float64(total) / seconds,
		VUs:           vus,
		PeakInFlight:  vus,
		TimeSeries:    series,
	}
}
