package perf

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Predicate inspects a response and reports whether it is acceptable.
// Predicates must not mutate the response and must not depend on other
// checks.
type Predicate func(r *Response) bool

// Check is a named predicate evaluated against every response.
type Check struct {
	Name      string
	Predicate Predicate
}

// CheckNames returns the names of checks in declaration order.
func CheckNames(checks []Check) []string {
	names := make([]string, len(checks))
	for i, c := range checks {
		names[i] = c.Name
	}
	return names
}

// Evaluator runs a fixed list of checks in declaration order.
type Evaluator struct {
	checks []Check
	logger *zap.Logger
}

// NewEvaluator creates an evaluator. A nil logger discards check errors.
//
// Check errors can occur on every iteration, so the logger is wrapped in a
// sampler: the first 10 entries per second are written, then every 100th.
func NewEvaluator(checks []Check, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewSamplerWithOptions(core, time.Second, 10, 100)
	}))
	return &Evaluator{
		checks: checks,
		logger: logger,
	}
}

// Len returns the number of checks.
func (e *Evaluator) Len() int {
	return len(e.checks)
}

// Evaluate runs every check against resp and writes the results into dst,
// which must have room for Len() results. It returns the number of checks
// that panicked; those are recorded as failed and never stop the
// remaining checks from running.
func (e *Evaluator) Evaluate(resp *Response, dst []bool) int {
	errs := 0
	for i := range e.checks {
		ok, err := e.run(&e.checks[i], resp)
		if err != nil {
			errs++
			e.logger.Warn("check failed with error",
				zap.String("check", err.Check),
				zap.Any("recovered", err.Recovered))
		}
		dst[i] = ok
	}
	return errs
}

// Fail marks every check as failed, for iterations without a response.
func (e *Evaluator) Fail(dst []bool) {
	for i := range e.checks {
		dst[i] = false
	}
}

func (e *Evaluator) run(c *Check, resp *Response) (ok bool, cerr *CheckError) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			cerr = &CheckError{Check: c.Name, Recovered: r}
		}
	}()

	if c.Predicate == nil {
		return false, nil
	}
	return c.Predicate(resp), nil
}
