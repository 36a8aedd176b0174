package perf

import (
	"context"
	"errors"
	"time"

	"github.com/wesleyorama2/vuload/perf/metrics"
)

// IterationRunner performs one request and check pass for a single VU.
//
// A runner owns its check-result buffer, so it must not be shared between
// VUs. The buffer is handed to the aggregator, which copies the results
// out before Record returns.
type IterationRunner struct {
	executor  Executor
	request   *RequestDescriptor
	evaluator *Evaluator
	results   []bool
}

// NewIterationRunner creates a runner for a single VU.
func NewIterationRunner(executor Executor, request *RequestDescriptor, evaluator *Evaluator) *IterationRunner {
	return &IterationRunner{
		executor:  executor,
		request:   request,
		evaluator: evaluator,
		results:   make([]bool, evaluator.Len()),
	}
}

// RunOnce executes the request and evaluates every check.
//
// It never panics and never returns an error: transport failures are
// reported through the outcome with every check marked failed. Elapsed
// covers the request only; check evaluation is not timed.
func (r *IterationRunner) RunOnce(ctx context.Context, vuID int) (outcome metrics.IterationOutcome) {
	start := time.Now()
	outcome = metrics.IterationOutcome{
		VUID:   vuID,
		Start:  start,
		Checks: r.results,
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.evaluator.Fail(r.results)
			outcome.Elapsed = time.Since(start)
			outcome.StatusCode = 0
			outcome.Err = &TransportError{Kind: ErrKindOther, Err: errors.New("executor panicked")}
			outcome.ErrKind = ErrKindOther
		}
	}()

	resp, err := r.executor.Execute(ctx, r.request)
	outcome.Elapsed = time.Since(start)

	if err == nil && resp == nil {
		err = errors.New("executor returned no response")
	}
	if err != nil {
		te := newTransportError(err)
		r.evaluator.Fail(r.results)
		outcome.Err = te
		outcome.ErrKind = te.Kind
		return outcome
	}

	if resp.Duration > 0 {
		outcome.Elapsed = resp.Duration
	}
	outcome.StatusCode = resp.StatusCode
	outcome.BytesReceived = resp.BytesReceived
	if outcome.BytesReceived == 0 {
		outcome.BytesReceived = int64(len(resp.Body))
	}
	outcome.CheckErrors = r.evaluator.Evaluate(resp, r.results)

	return outcome
}
