package metrics

import "time"

// Phase mirrors the lifecycle state of a run.
type Phase string

const (
	// PhasePending is the phase before any VU has started
	PhasePending Phase = "pending"

	// PhaseRunning is the phase while VUs iterate
	PhaseRunning Phase = "running"

	// PhaseDraining is the phase between the stop signal and the last VU exiting
	PhaseDraining Phase = "draining"

	// PhaseStopped indicates the run has completed
	PhaseStopped Phase = "stopped"
)

// LatencyStats contains latency statistics.
//
// Count, Min, Max and Mean are exact. StdDev and the percentiles are
// derived from an HDR histogram and are approximate.
type LatencyStats struct {
	// Count is the number of latency observations
	Count int64 `json:"count"`

	// Min is the minimum latency observed
	Min time.Duration `json:"min"`

	// Max is the maximum latency observed
	Max time.Duration `json:"max"`

	// Mean is the average latency
	Mean time.Duration `json:"mean"`

	// StdDev is the standard deviation of latencies
	StdDev time.Duration `json:"stdDev"`

	// P50 is the 50th percentile (median) latency
	P50 time.Duration `json:"p50"`

	// P90 is the 90th percentile latency
	P90 time.Duration `json:"p90"`

	// P95 is the 95th percentile latency
	P95 time.Duration `json:"p95"`

	// P99 is the 99th percentile latency
	P99 time.Duration `json:"p99"`
}

// CheckStats holds the pass and fail counts of a single named check.
type CheckStats struct {
	Name   string `json:"name"`
	Passes int64  `json:"passes"`
	Fails  int64  `json:"fails"`
}

// PassRate returns the fraction of evaluations that passed.
func (c CheckStats) PassRate() float64 {
	total := c.Passes + c.Fails
	if total == 0 {
		return 0
	}
	return float64(c.Passes) / float64(total)
}

// TimeBucket represents metrics for one sampling interval.
//
// Each bucket carries both cumulative totals and interval deltas.
type TimeBucket struct {
	// Timestamp when this bucket was created
	Timestamp time.Time `json:"timestamp"`

	// Cumulative counters (total since run start)
	TotalIterations int64 `json:"totalIterations"`
	TotalErrors     int64 `json:"totalErrors"`
	TotalBytes      int64 `json:"totalBytes"`

	// Interval metrics
	IntervalIterations int64   `json:"intervalIterations"`
	IntervalRPS        float64 `json:"intervalRPS"`
	IntervalErrorRate  float64 `json:"intervalErrorRate"`

	// Latency percentiles at this point in time
	LatencyP50 time.Duration `json:"latencyP50"`
	LatencyP95 time.Duration `json:"latencyP95"`
	LatencyP99 time.Duration `json:"latencyP99"`

	ActiveVUs int   `json:"activeVUs"`
	Phase     Phase `json:"phase"`
}

// RunSnapshot is the aggregate result of a run.
//
// A snapshot returned by Finalize is never modified by the aggregator
// again. Snapshots returned by Live are independent copies.
type RunSnapshot struct {
	RunID     string        `json:"runId,omitempty"`
	Name      string        `json:"name,omitempty"`
	Phase     Phase         `json:"phase"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Elapsed   time.Duration `json:"elapsed"`

	// TotalIterations counts every recorded outcome, successful or not
	TotalIterations int64 `json:"totalIterations"`

	TotalChecksPassed int64        `json:"totalChecksPassed"`
	TotalChecksFailed int64        `json:"totalChecksFailed"`
	Checks            []CheckStats `json:"checks"`

	// Latency covers only iterations that received a response
	Latency LatencyStats `json:"latency"`

	// ErrorCount is the number of iterations that ended in a transport error
	ErrorCount int64   `json:"errorCount"`
	ErrorRate  float64 `json:"errorRate"`

	// HTTPFailures is the number of responses with a status of 400 or above
	HTTPFailures int64 `json:"httpFailures"`

	ErrorKinds    map[string]int64 `json:"errorKinds,omitempty"`
	StatusCodes   map[int]int64    `json:"statusCodes,omitempty"`
	CheckErrors   int64            `json:"checkErrors"`
	BytesReceived int64            `json:"bytesReceived"`

	IterationRate float64 `json:"iterationRate"`
	CurrentRate   float64 `json:"currentRate,omitempty"`

	VUs          int `json:"vus"`
	ActiveVUs    int `json:"activeVUs"`
	PeakInFlight int `json:"peakInFlight"`

	// ForcedTermination is set when VUs had to be aborted after the grace period
	ForcedTermination bool  `json:"forcedTermination"`
	StuckVUs          int   `json:"stuckVUs"`
	DroppedOutcomes   int64 `json:"droppedOutcomes"`

	TimeSeries []*TimeBucket `json:"timeSeries,omitempty"`
}

// PassCount returns the number of passes recorded for the named check.
func (s *RunSnapshot) PassCount(name string) int64 {
	for _, c := range s.Checks {
		if c.Name == name {
			return c.Passes
		}
	}
	return 0
}

// FailCount returns the number of failures recorded for the named check.
func (s *RunSnapshot) FailCount(name string) int64 {
	for _, c := range s.Checks {
		if c.Name == name {
			return c.Fails
		}
	}
	return 0
}

// CheckRate returns the fraction of all check evaluations that passed.
func (s *RunSnapshot) CheckRate() float64 {
	total := s.TotalChecksPassed + s.TotalChecksFailed
	if total == 0 {
		return 0
	}
	return float64(s.TotalChecksPassed) / float64(total)
}

// FailedRate returns the fraction of iterations that either failed at the
// transport level or received an HTTP status of 400 or above.
func (s *RunSnapshot) FailedRate() float64 {
	if s.TotalIterations == 0 {
		return 0
	}
	return float64(s.ErrorCount+s.HTTPFailures) / float64(s.TotalIterations)
}

// Config contains configuration for the aggregator.
type Config struct {
	// VUs is the number of virtual users feeding the aggregator. It sizes
	// the shard set.
	VUs int

	// Shards overrides the shard count. Zero means min(VUs, 4*GOMAXPROCS).
	Shards int

	// RunID and Name are copied into every snapshot
	RunID string
	Name  string

	// BucketInterval is the interval for time-series buckets. Zero disables
	// the sampler.
	BucketInterval time.Duration

	// MaxBuckets is the maximum number of buckets to retain (default: 3600)
	MaxBuckets int

	// HistogramMin is the minimum recordable value in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds (default: 3600000000 = 1 hour)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int

	// ActiveVUs reports the number of running VUs for time buckets and
	// live snapshots. Optional.
	ActiveVUs func() int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		VUs:              1,
		BucketInterval:   time.Second,
		MaxBuckets:       3600,
		HistogramMin:     1,
		HistogramMax:     3600000000, // 1 hour in microseconds
		HistogramSigFigs: 3,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.VUs < 1 {
		c.VUs = d.VUs
	}
	if c.MaxBuckets <= 0 {
		c.MaxBuckets = d.MaxBuckets
	}
	if c.HistogramMin <= 0 {
		c.HistogramMin = d.HistogramMin
	}
	if c.HistogramMax <= c.HistogramMin {
		c.HistogramMax = d.HistogramMax
	}
	if c.HistogramSigFigs <= 0 || c.HistogramSigFigs > 5 {
		c.HistogramSigFigs = d.HistogramSigFigs
	}
}
