// Package threshold evaluates pass/fail criteria against a finished run.
//
// Thresholds are expressions of the form "<aggregate> <op> <value>", grouped
// by the metric they apply to:
//
//	http_req_duration: p95 < 500ms, avg < 200ms, max <= 2s
//	http_req_failed:   rate < 0.01
//	checks:            rate > 0.99
//	iterations:        count > 1000, rate >= 50
package threshold

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wesleyorama2/vuload/perf/metrics"
)

// Metric names.
const (
	MetricHTTPReqDuration = "http_req_duration"
	MetricHTTPReqFailed   = "http_req_failed"
	MetricChecks          = "checks"
	MetricIterations      = "iterations"
)

// Config holds threshold expressions per metric.
type Config struct {
	// HTTPReqDuration thresholds for request duration
	// e.g., ["p95 < 500ms", "avg < 200ms"]
	HTTPReqDuration []string `json:"http_req_duration,omitempty" yaml:"http_req_duration,omitempty"`

	// HTTPReqFailed thresholds for the fraction of failed requests
	// e.g., ["rate < 0.01"]
	HTTPReqFailed []string `json:"http_req_failed,omitempty" yaml:"http_req_failed,omitempty"`

	// Checks thresholds for the fraction of passed checks
	// e.g., ["rate > 0.99"]
	Checks []string `json:"checks,omitempty" yaml:"checks,omitempty"`

	// Iterations thresholds for iteration count/rate
	// e.g., ["count > 1000", "rate > 100"]
	Iterations []string `json:"iterations,omitempty" yaml:"iterations,omitempty"`
}

// IsEmpty reports whether no threshold is configured.
func (c *Config) IsEmpty() bool {
	return c == nil || len(c.HTTPReqDuration)+len(c.HTTPReqFailed)+len(c.Checks)+len(c.Iterations) == 0
}

// Result contains the result of a threshold evaluation.
type Result struct {
	Metric     string `json:"metric"`
	Expression string `json:"expression"`
	Passed     bool   `json:"passed"`
	Value      string `json:"value"`
	Message    string `json:"message,omitempty"`
}

var exprPattern = regexp.MustCompile(`^(\w+)\s*(<=|>=|==|!=|<|>)\s*(.+)$`)

// aggregates allowed per metric
var aggregates = map[string][]string{
	MetricHTTPReqDuration: {"min", "max", "avg", "med", "p50", "p90", "p95", "p99"},
	MetricHTTPReqFailed:   {"rate"},
	MetricChecks:          {"rate"},
	MetricIterations:      {"count", "rate"},
}

// expression is a parsed threshold.
type expression struct {
	aggregate string
	op        string
	value     float64
	raw       string
}

// Parse validates expr for the given metric.
func Parse(metric, expr string) error {
	_, err := parse(metric, expr)
	return err
}

func parse(metric, expr string) (*expression, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("threshold expression cannot be empty")
	}

	allowed, ok := aggregates[metric]
	if !ok {
		return nil, fmt.Errorf("unknown metric: %s", metric)
	}

	matches := exprPattern.FindStringSubmatch(expr)
	if len(matches) != 4 {
		return nil, fmt.Errorf("invalid expression format: %s", expr)
	}

	e := &expression{aggregate: matches[1], op: matches[2], raw: strings.TrimSpace(matches[3])}

	valid := false
	for _, a := range allowed {
		if a == e.aggregate {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("%s only supports %s, got: %s", metric, strings.Join(allowed, ", "), e.aggregate)
	}

	if metric == MetricHTTPReqDuration {
		d, err := time.ParseDuration(e.raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse threshold value: %w", err)
		}
		e.value = float64(d)
	} else {
		v, err := strconv.ParseFloat(e.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse threshold value: %w", err)
		}
		e.value = v
	}

	return e, nil
}

// Validate parses every expression and returns one error per invalid entry,
// keyed by "metric[index]".
func Validate(c *Config) map[string]error {
	errs := make(map[string]error)
	if c == nil {
		return errs
	}
	for _, group := range c.groups() {
		for i, expr := range group.exprs {
			if err := Parse(group.metric, expr); err != nil {
				errs[fmt.Sprintf("%s[%d]", group.metric, i)] = err
			}
		}
	}
	return errs
}

type group struct {
	metric string
	exprs  []string
}

func (c *Config) groups() []group {
	return []group{
		{MetricHTTPReqDuration, c.HTTPReqDuration},
		{MetricHTTPReqFailed, c.HTTPReqFailed},
		{MetricChecks, c.Checks},
		{MetricIterations, c.Iterations},
	}
}

// Evaluate evaluates all configured thresholds against snap.
func Evaluate(c *Config, snap *metrics.RunSnapshot) []Result {
	if c == nil || snap == nil {
		return nil
	}

	var results []Result
	for _, group := range c.groups() {
		for _, expr := range group.exprs {
			results = append(results, evaluate(group.metric, expr, snap))
		}
	}
	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

func evaluate(metric, expr string, snap *metrics.RunSnapshot) Result {
	result := Result{
		Metric:     metric,
		Expression: expr,
	}

	e, err := parse(metric, expr)
	if err != nil {
		result.Message = err.Error()
		return result
	}

	var actual float64
	switch metric {
	case MetricHTTPReqDuration:
		d := latencyValue(e.aggregate, &snap.Latency)
		actual = float64(d)
		result.Value = d.String()
	case MetricHTTPReqFailed:
		actual = snap.FailedRate()
		result.Value = fmt.Sprintf("%.4f", actual)
	case MetricChecks:
		actual = snap.CheckRate()
		result.Value = fmt.Sprintf("%.4f", actual)
	case MetricIterations:
		if e.aggregate == "count" {
			actual = float64(snap.TotalIterations)
			result.Value = strconv.FormatInt(snap.TotalIterations, 10)
		} else {
			actual = snap.IterationRate
			result.Value = fmt.Sprintf("%.2f", actual)
		}
	}

	result.Passed = compareValues(actual, e.op, e.value)
	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %s, threshold: %s %s", e.aggregate, result.Value, e.op, e.raw)
	}

	return result
}

func latencyValue(aggregate string, l *metrics.LatencyStats) time.Duration {
	switch aggregate {
	case "min":
		return l.Min
	case "max":
		return l.Max
	case "avg":
		return l.Mean
	case "med", "p50":
		return l.P50
	case "p90":
		return l.P90
	case "p95":
		return l.P95
	case "p99":
		return l.P99
	}
	return 0
}

// compareValues compares two values using the given operator.
func compareValues(actual float64, op string, threshold float64) bool {
	switch op {
	case "<":
		return actual < threshold
	case "<=":
		return actual <= threshold
	case ">":
		return actual > threshold
	case ">=":
		return actual >= threshold
	case "==":
		return actual == threshold
	case "!=":
		return actual != threshold
	default:
		return false
	}
}
