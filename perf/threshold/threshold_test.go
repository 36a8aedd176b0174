package threshold

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/vuload/perf/metrics"
)

func testSnapshot() *metrics.RunSnapshot {
	return &metrics.RunSnapshot{
		TotalIterations:   1000,
		TotalChecksPassed: 1990,
		TotalChecksFailed: 10,
		ErrorCount:        5,
		HTTPFailures:      5,
		IterationRate:     50,
		Latency: metrics.LatencyStats{
			Min:  2 * time.Millisecond,
			Max:  900 * time.Millisecond,
			Mean: 40 * time.Millisecond,
			P50:  30 * time.Millisecond,
			P90:  120 * time.Millisecond,
			P95:  300 * time.Millisecond,
			P99:  700 * time.Millisecond,
		},
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		metric  string
		expr    string
		wantErr bool
	}{
		{MetricHTTPReqDuration, "p95 < 500ms", false},
		{MetricHTTPReqDuration, "avg<=1s", false},
		{MetricHTTPReqDuration, "med != 0s", false},
		{MetricHTTPReqDuration, "p95 < fast", true},
		{MetricHTTPReqDuration, "rate < 0.1", true},
		{MetricHTTPReqFailed, "rate < 0.01", false},
		{MetricHTTPReqFailed, "count < 1", true},
		{MetricChecks, "rate > 0.99", false},
		{MetricIterations, "count > 100", false},
		{MetricIterations, "rate >= 50", false},
		{MetricIterations, "count ~ 100", true},
		{MetricIterations, "", true},
		{"unknown", "rate > 1", true},
	}

	for _, tt := range tests {
		t.Run(tt.metric+"/"+tt.expr, func(t *testing.T) {
			err := Parse(tt.metric, tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	cfg := &Config{
		HTTPReqDuration: []string{"p95 < 500ms", "p99 < 500ms", "med <= 30ms"},
		HTTPReqFailed:   []string{"rate < 0.02"},
		Checks:          []string{"rate > 0.99"},
		Iterations:      []string{"count >= 1000", "rate > 100"},
	}

	results := Evaluate(cfg, testSnapshot())
	require.Len(t, results, 7)

	want := []bool{true, false, true, true, true, true, false}
	for i, r := range results {
		assert.Equal(t, want[i], r.Passed, "%s %s: %s", r.Metric, r.Expression, r.Message)
	}

	assert.Equal(t, MetricHTTPReqDuration, results[0].Metric)
	assert.Equal(t, "300ms", results[0].Value)
	assert.Contains(t, results[1].Message, "p99 is 700ms")
	assert.Equal(t, "0.0100", results[3].Value)
	assert.Equal(t, "0.9950", results[4].Value)
	assert.Equal(t, "1000", results[5].Value)

	assert.False(t, Passed(results))
	assert.True(t, Passed(results[:1]))
}

func TestEvaluate_InvalidExpressionFails(t *testing.T) {
	results := Evaluate(&Config{Checks: []string{"p95 < 1s"}}, testSnapshot())
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
	assert.NotEmpty(t, results[0].Message)
}

func TestEvaluate_Nil(t *testing.T) {
	assert.Nil(t, Evaluate(nil, testSnapshot()))
	assert.True(t, Passed(nil))
	assert.True(t, (*Config)(nil).IsEmpty())
	assert.False(t, (&Config{Checks: []string{"rate > 0"}}).IsEmpty())
}

func TestValidate(t *testing.T) {
	errs := Validate(&Config{
		HTTPReqDuration: []string{"p95 < 500ms", "p95 < soon"},
		Iterations:      []string{"avg > 1"},
	})

	assert.Len(t, errs, 2)
	assert.Contains(t, errs, "http_req_duration[1]")
	assert.Contains(t, errs, "iterations[0]")
}
