package metrics

import "time"

// IterationOutcome is the result of a single VU loop iteration.
//
// Outcomes are consumed by Aggregator.Record and never retained, so the
// Checks slice may be a buffer the producer reuses for its next iteration.
type IterationOutcome struct {
	VUID    int
	Start   time.Time
	Elapsed time.Duration

	// StatusCode is zero when Err is set
	StatusCode int
	Err        error
	ErrKind    string

	// Checks holds one result per declared check, in declaration order
	Checks      []bool
	CheckErrors int

	BytesReceived int64
}

// Failed reports whether the iteration ended without a response.
func (o *IterationOutcome) Failed() bool {
	return o.Err != nil
}

// CheckResults returns the check results keyed by check name. names must be
// in the same order the checks were declared.
func (o *IterationOutcome) CheckResults(names []string) map[string]bool {
	results := make(map[string]bool, len(names))
	for i, name := range names {
		results[name] = i < len(o.Checks) && o.Checks[i]
	}
	return results
}
