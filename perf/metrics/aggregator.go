package metrics

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Aggregator merges iteration outcomes from all VUs into run-wide
// statistics.
//
// Outcomes are recorded into a fixed set of shards selected by VU id, so
// Record only contends with the few VUs that share a shard. Shards are
// merged when Live or Finalize is called. Every aggregated quantity is
// additive, so the result does not depend on the order of Record calls.
//
// # Thread Safety
//
// Record, Live and SetPhase are safe for concurrent use. Finalize seals
// the aggregator; any Record that has not acquired its shard lock by then
// is dropped and counted in DroppedOutcomes.
type Aggregator struct {
	names  []string
	config Config
	shards []*shard

	startTime time.Time

	sealed  atomic.Bool
	dropped atomic.Int64

	phaseMu sync.RWMutex
	phase   Phase

	// Time-bucketed metrics store, nil when sampling is disabled
	bucketStore   *TimeBucketStore
	samplerCancel context.CancelFunc
	samplerWg     sync.WaitGroup

	finalOnce sync.Once
	final     *RunSnapshot
}

// NewAggregator creates an aggregator for the given check names. The names
// must be in declaration order; outcome check results are matched by index.
//
// When config.BucketInterval is positive a background sampler emits a
// TimeBucket every interval until Finalize is called.
func NewAggregator(names []string, config Config) *Aggregator {
	config.applyDefaults()

	n := config.Shards
	if n <= 0 {
		n = shardCount(config.VUs)
	}

	a := &Aggregator{
		names:     append([]string(nil), names...),
		config:    config,
		shards:    make([]*shard, n),
		startTime: time.Now(),
		phase:     PhasePending,
	}
	for i := range a.shards {
		a.shards[i] = newShard(len(names), config)
	}

	if config.BucketInterval > 0 {
		a.bucketStore = NewTimeBucketStore(config.MaxBuckets)
		ctx, cancel := context.WithCancel(context.Background())
		a.samplerCancel = cancel
		a.samplerWg.Add(1)
		go a.runSampler(ctx)
	}

	return a
}

// shardCount returns min(vus, 4*GOMAXPROCS).
func shardCount(vus int) int {
	n := 4 * runtime.GOMAXPROCS(0)
	if vus < n {
		n = vus
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Shards returns the number of shards in use.
func (a *Aggregator) Shards() int {
	return len(a.shards)
}

// CheckNames returns the check names in declaration order.
func (a *Aggregator) CheckNames() []string {
	return append([]string(nil), a.names...)
}

// Record folds a single outcome into the aggregate.
//
// The outcome's Checks slice is read before Record returns and never
// retained.
func (a *Aggregator) Record(o IterationOutcome) {
	idx := o.VUID % len(a.shards)
	if idx < 0 {
		idx += len(a.shards)
	}
	s := a.shards[idx]

	s.mu.Lock()
	// Checked under the shard lock: Finalize seals before it locks any
	// shard, so nothing recorded here can be missed by the final merge.
	if a.sealed.Load() {
		s.mu.Unlock()
		a.dropped.Add(1)
		return
	}
	s.record(&o)
	s.mu.Unlock()
}

// SetPhase updates the phase reported in snapshots and time buckets.
func (a *Aggregator) SetPhase(phase Phase) {
	a.phaseMu.Lock()
	a.phase = phase
	a.phaseMu.Unlock()
}

// Phase returns the current phase.
func (a *Aggregator) Phase() Phase {
	a.phaseMu.RLock()
	defer a.phaseMu.RUnlock()
	return a.phase
}

// Live returns a point-in-time snapshot without sealing the aggregator.
func (a *Aggregator) Live() *RunSnapshot {
	if a.sealed.Load() {
		if final := a.finalSnapshot(); final != nil {
			return final
		}
	}

	snap := a.buildSnapshot(a.collect(), time.Now())
	if a.bucketStore != nil {
		if latest := a.bucketStore.GetLatestBucket(); latest != nil {
			snap.CurrentRate = latest.IntervalRPS
		}
	}
	return snap
}

// Finalize seals the aggregator and returns the final snapshot. It is
// idempotent: later calls return the same snapshot.
func (a *Aggregator) Finalize() *RunSnapshot {
	a.finalOnce.Do(func() {
		a.sealed.Store(true)

		if a.samplerCancel != nil {
			a.samplerCancel()
			a.samplerWg.Wait()
		}

		a.SetPhase(PhaseStopped)
		t := a.collect()
		now := time.Now()

		snap := a.buildSnapshot(t, now)
		if a.bucketStore != nil {
			a.emitBucket(t)
			snap.TimeSeries = a.bucketStore.GetBuckets()
		}
		snap.DroppedOutcomes = a.dropped.Load()

		a.phaseMu.Lock()
		a.final = snap
		a.phaseMu.Unlock()
	})
	return a.finalSnapshot()
}

// Dropped returns the number of outcomes rejected after Finalize.
func (a *Aggregator) Dropped() int64 {
	return a.dropped.Load()
}

func (a *Aggregator) finalSnapshot() *RunSnapshot {
	a.phaseMu.RLock()
	defer a.phaseMu.RUnlock()
	return a.final
}

// collect merges every shard into a fresh totals value.
func (a *Aggregator) collect() *totals {
	t := newTotals(len(a.names), a.config)
	for _, s := range a.shards {
		s.mu.Lock()
		s.mergeInto(t)
		s.mu.Unlock()
	}
	return t
}

func (a *Aggregator) buildSnapshot(t *totals, now time.Time) *RunSnapshot {
	elapsed := now.Sub(a.startTime)

	checks := make([]CheckStats, len(a.names))
	var passed, failed int64
	for i, name := range a.names {
		checks[i] = CheckStats{Name: name, Passes: t.passes[i], Fails: t.fails[i]}
		passed += t.passes[i]
		failed += t.fails[i]
	}

	errorRate := 0.0
	if t.iterations > 0 {
		errorRate = float64(t.errors) / float64(t.iterations)
	}

	rate := 0.0
	if elapsed > 0 {
		rate = float64(t.iterations) / elapsed.Seconds()
	}

	snap := &RunSnapshot{
		RunID:             a.config.RunID,
		Name:              a.config.Name,
		Phase:             a.Phase(),
		StartTime:         a.startTime,
		EndTime:           now,
		Elapsed:           elapsed,
		TotalIterations:   t.iterations,
		TotalChecksPassed: passed,
		TotalChecksFailed: failed,
		Checks:            checks,
		Latency:           t.latencyStats(),
		ErrorCount:        t.errors,
		ErrorRate:         errorRate,
		HTTPFailures:      t.httpFailures,
		ErrorKinds:        t.errorKinds,
		StatusCodes:       t.statusCodes,
		CheckErrors:       t.checkErrors,
		BytesReceived:     t.bytes,
		IterationRate:     rate,
		VUs:               a.config.VUs,
		DroppedOutcomes:   a.dropped.Load(),
	}
	if a.config.ActiveVUs != nil {
		snap.ActiveVUs = a.config.ActiveVUs()
	}
	return snap
}

// runSampler runs the background time-bucket emitter.
func (a *Aggregator) runSampler(ctx context.Context) {
	defer a.samplerWg.Done()

	ticker := time.NewTicker(a.config.BucketInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.emitBucket(a.collect())
		}
	}
}

// emitBucket appends a time-series bucket built from the merged totals.
func (a *Aggregator) emitBucket(t *totals) {
	activeVUs := 0
	if a.config.ActiveVUs != nil {
		activeVUs = a.config.ActiveVUs()
	}
	lat := t.latencyStats()
	a.bucketStore.CreateBucket(t.iterations, t.errors, t.bytes, lat, activeVUs, a.Phase())
}
