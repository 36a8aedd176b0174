package perf

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wesleyorama2/vuload/perf/metrics"
)

// Default run timings.
const (
	DefaultGracePeriod = 30 * time.Second
	DefaultAbortWait   = 250 * time.Millisecond
)

// RunConfig describes a single load run. It is copied when the run starts,
// so later changes by the caller have no effect on a running test.
type RunConfig struct {
	// Name of the run, used in reports
	Name string

	// VUs is the fixed number of virtual users
	VUs int

	// Duration is how long VUs keep starting new iterations
	Duration time.Duration

	// GracePeriod is how long in-flight iterations may take to finish after
	// Duration has elapsed. Zero means DefaultGracePeriod.
	GracePeriod time.Duration

	// AbortWait bounds the wait for VUs to unwind after a forced abort.
	// Zero means DefaultAbortWait.
	AbortWait time.Duration

	Request RequestDescriptor
	Checks  []Check

	// HTTP configures the transport of the default executor
	HTTP HTTPClientConfig
}

// ApplyDefaults fills zero-valued timings and transport settings.
func (c *RunConfig) ApplyDefaults() {
	if c.GracePeriod == 0 {
		c.GracePeriod = DefaultGracePeriod
	}
	if c.AbortWait == 0 {
		c.AbortWait = DefaultAbortWait
	}

	d := DefaultHTTPClientConfig()
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = d.Timeout
	}
	if c.HTTP.MaxIdleConns == 0 {
		c.HTTP.MaxIdleConns = d.MaxIdleConns
	}
	if c.HTTP.MaxIdleConnsPerHost == 0 {
		c.HTTP.MaxIdleConnsPerHost = d.MaxIdleConnsPerHost
	}
	if c.HTTP.MaxConnsPerHost == 0 {
		// One connection per VU; more VUs than connections would queue
		// inside the transport.
		c.HTTP.MaxConnsPerHost = c.VUs
	}
	if c.HTTP.IdleConnTimeout == 0 {
		c.HTTP.IdleConnTimeout = d.IdleConnTimeout
	}
	if c.HTTP.MaxBodyBytes == 0 {
		c.HTTP.MaxBodyBytes = d.MaxBodyBytes
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = d.UserAgent
	}
}

// Validate checks the configuration and returns a *ValidationErrors
// describing every problem, or nil.
func (c *RunConfig) Validate() error {
	errs := &ValidationErrors{}

	if c.VUs < 1 {
		errs.Add("vus", fmt.Sprintf("must be at least 1, got %d", c.VUs))
	}
	if c.Duration <= 0 {
		errs.Add("duration", fmt.Sprintf("must be positive, got %s", c.Duration))
	}
	if c.GracePeriod < 0 {
		errs.Add("gracePeriod", "must not be negative")
	}
	if c.AbortWait < 0 {
		errs.Add("abortWait", "must not be negative")
	}

	if c.Request.URL == "" {
		errs.Add("request.url", "url is required")
	} else if u, err := url.Parse(c.Request.URL); err != nil {
		errs.Add("request.url", fmt.Sprintf("invalid url: %v", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs.Add("request.url", fmt.Sprintf("scheme must be http or https, got %q", u.Scheme))
	} else if u.Host == "" {
		errs.Add("request.url", "host is required")
	}
	if c.Request.Timeout < 0 {
		errs.Add("request.timeout", "must not be negative")
	}

	seen := make(map[string]bool, len(c.Checks))
	for i, check := range c.Checks {
		field := fmt.Sprintf("checks[%d]", i)
		if check.Name == "" {
			errs.Add(field+".name", "name is required")
		} else if seen[check.Name] {
			errs.Add(field+".name", fmt.Sprintf("duplicate check name %q", check.Name))
		}
		seen[check.Name] = true
		if check.Predicate == nil {
			errs.Add(field+".predicate", "predicate is required")
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func (c *RunConfig) clone() *RunConfig {
	cp := *c
	cp.Request = c.Request.clone()
	cp.Checks = append([]Check(nil), c.Checks...)
	return &cp
}

// RunState is the lifecycle state of a RunController.
type RunState int32

const (
	// StatePending indicates the run has not started.
	StatePending RunState = iota
	// StateRunning indicates VUs are iterating.
	StateRunning
	// StateDraining indicates VUs have been told to stop and are finishing
	// their current iteration.
	StateDraining
	// StateStopped indicates the run has completed and the snapshot is final.
	StateStopped
)

func (s RunState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Phase returns the metrics phase matching the state.
func (s RunState) Phase() metrics.Phase {
	return metrics.Phase(s.String())
}

// Option configures a RunController.
type Option func(*RunController)

// WithLogger sets the logger for lifecycle events and check errors.
func WithLogger(logger *zap.Logger) Option {
	return func(c *RunController) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithExecutor replaces the default HTTP executor.
func WithExecutor(executor Executor) Option {
	return func(c *RunController) {
		c.executor = executor
	}
}

// WithBucketInterval sets the time-series sampling interval. Zero disables
// time-series collection.
func WithBucketInterval(interval time.Duration) Option {
	return func(c *RunController) {
		c.bucketInterval = interval
	}
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(c *RunController) {
		c.runID = id
	}
}

// RunController drives a single run through Pending, Running, Draining
// and Stopped.
//
// A controller runs once. State, Progress, ActiveVUs and Live may be
// called from other goroutines while Run is executing.
type RunController struct {
	logger         *zap.Logger
	executor       Executor
	bucketInterval time.Duration
	runID          string

	state   atomic.Int32
	claimed atomic.Bool

	// Set once the run starts
	started   atomic.Int64 // unix nanos
	duration  atomic.Int64
	scheduler atomic.Pointer[VUScheduler]
	agg       atomic.Pointer[metrics.Aggregator]

	mu    sync.Mutex
	final *metrics.RunSnapshot
}

// NewRunController creates a controller.
func NewRunController(opts ...Option) *RunController {
	c := &RunController{
		logger:         zap.NewNop(),
		bucketInterval: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.runID == "" {
		c.runID = uuid.NewString()
	}
	return c
}

// RunID returns the id attached to snapshots and log entries.
func (c *RunController) RunID() string {
	return c.runID
}

// State returns the current lifecycle state.
func (c *RunController) State() RunState {
	return RunState(c.state.Load())
}

// transition moves from one state to another, rejecting anything else.
func (c *RunController) transition(from, to RunState) bool {
	if !c.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	if agg := c.agg.Load(); agg != nil {
		agg.SetPhase(to.Phase())
	}
	return true
}

// Elapsed returns the time since the run started.
func (c *RunController) Elapsed() time.Duration {
	started := c.started.Load()
	if started == 0 {
		return 0
	}
	return time.Since(time.Unix(0, started))
}

// Progress returns the fraction of the configured duration that has
// elapsed, between 0 and 1.
func (c *RunController) Progress() float64 {
	switch c.State() {
	case StatePending:
		return 0
	case StateDraining, StateStopped:
		return 1
	}

	d := time.Duration(c.duration.Load())
	if d <= 0 {
		return 0
	}
	p := float64(c.Elapsed()) / float64(d)
	if p > 1 {
		p = 1
	}
	return p
}

// ActiveVUs returns the number of VU goroutines still running.
func (c *RunController) ActiveVUs() int {
	if s := c.scheduler.Load(); s != nil {
		return s.ActiveVUs()
	}
	return 0
}

// Live returns a point-in-time snapshot, or nil before the run starts.
// After the run stops it returns the final snapshot.
func (c *RunController) Live() *metrics.RunSnapshot {
	c.mu.Lock()
	final := c.final
	c.mu.Unlock()
	if final != nil {
		return final
	}

	agg := c.agg.Load()
	if agg == nil {
		return nil
	}
	snap := agg.Live()
	if snap.Phase == metrics.PhaseStopped {
		return snap
	}
	if s := c.scheduler.Load(); s != nil {
		snap.PeakInFlight = s.PeakInFlight()
	}
	return snap
}

// Run executes the load run described by cfg and returns the final
// snapshot.
//
// Configuration problems are reported as *ValidationErrors before any VU
// starts. Cancelling ctx ends the run early but still drains VUs and
// returns a snapshot. Run returns within Duration + GracePeriod +
// AbortWait.
func (c *RunController) Run(ctx context.Context, cfg *RunConfig) (*metrics.RunSnapshot, error) {
	if !c.claimed.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}
	if cfg == nil {
		c.claimed.Store(false)
		errs := &ValidationErrors{}
		errs.Add("config", "run configuration is required")
		return nil, errs
	}

	rc := cfg.clone()
	rc.ApplyDefaults()
	if err := rc.Validate(); err != nil {
		c.claimed.Store(false)
		return nil, err
	}

	logger := c.logger.With(zap.String("run_id", c.runID))

	executor := c.executor
	if executor == nil {
		httpExec := NewHTTPExecutor(rc.HTTP)
		defer httpExec.CloseIdleConnections()
		executor = httpExec
	}

	agg := metrics.NewAggregator(CheckNames(rc.Checks), metrics.Config{
		VUs:              rc.VUs,
		RunID:            c.runID,
		Name:             rc.Name,
		BucketInterval:   c.bucketInterval,
		MaxBuckets:       3600,
		HistogramMin:     1,
		HistogramMax:     3600000000,
		HistogramSigFigs: 3,
		ActiveVUs:        c.ActiveVUs,
	})
	c.agg.Store(agg)

	evaluator := NewEvaluator(rc.Checks, logger)
	scheduler := NewVUScheduler(rc.VUs, executor, &rc.Request, evaluator, agg)
	c.scheduler.Store(scheduler)

	// The loop context stops VUs from starting new iterations. The request
	// context is detached from ctx so that only the grace-period abort can
	// interrupt a request mid-flight.
	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	reqCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	defer abort()

	c.duration.Store(int64(rc.Duration))
	c.started.Store(time.Now().UnixNano())
	if !c.transition(StatePending, StateRunning) {
		return nil, ErrAlreadyRun
	}

	logger.Info("run started",
		zap.String("name", rc.Name),
		zap.Int("vus", rc.VUs),
		zap.Duration("duration", rc.Duration),
		zap.Duration("grace_period", rc.GracePeriod),
		zap.String("url", rc.Request.URL),
		zap.Int("checks", len(rc.Checks)),
		zap.Stringer("state", StateRunning))

	done := scheduler.Start(loopCtx, reqCtx)

	timer := time.NewTimer(rc.Duration)
	defer timer.Stop()

	reason := "duration elapsed"
	select {
	case <-timer.C:
	case <-ctx.Done():
		reason = "cancelled"
	case <-done:
		reason = "all vus exited"
	}

	c.transition(StateRunning, StateDraining)
	stopLoop()
	logger.Info("run draining",
		zap.String("reason", reason),
		zap.Int("active_vus", scheduler.ActiveVUs()),
		zap.Stringer("state", StateDraining))

	forced := false
	stuck := scheduler.Wait(rc.GracePeriod)
	if stuck > 0 {
		forced = true
		logger.Warn("grace period elapsed, aborting in-flight requests",
			zap.Int("active_vus", stuck),
			zap.Duration("grace_period", rc.GracePeriod))
		abort()
		stuck = scheduler.Wait(rc.AbortWait)
		if stuck > 0 {
			logger.Warn("vus did not stop after abort", zap.Int("stuck_vus", stuck))
		}
	}

	// The aggregator keeps its own copy; annotate ours
	final := *agg.Finalize()
	snap := &final
	snap.PeakInFlight = scheduler.PeakInFlight()
	snap.ActiveVUs = scheduler.ActiveVUs()
	snap.ForcedTermination = forced
	snap.StuckVUs = stuck

	c.mu.Lock()
	c.final = snap
	c.mu.Unlock()
	c.transition(StateDraining, StateStopped)

	logger.Info("run stopped",
		zap.Int64("iterations", snap.TotalIterations),
		zap.Int64("errors", snap.ErrorCount),
		zap.Duration("elapsed", snap.Elapsed),
		zap.Bool("forced_termination", forced),
		zap.Stringer("state", StateStopped))

	return snap, nil
}
