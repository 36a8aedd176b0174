package metrics

import (
	"math"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// shard accumulates outcomes for the subset of VUs mapped onto it.
//
// HDR histogram RecordValue is NOT thread-safe, so every field is guarded
// by mu.
type shard struct {
	mu sync.Mutex

	iterations   int64
	errors       int64
	httpFailures int64
	checkErrors  int64
	bytes        int64

	// Exact latency bounds in nanoseconds, outside the histogram
	latencyCount int64
	latencySum   int64
	latencyMin   int64
	latencyMax   int64
	hist         *hdrhistogram.Histogram

	passes []int64
	fails  []int64

	errorKinds  map[string]int64
	statusCodes map[int]int64

	histMin int64
	histMax int64
}

func newShard(checks int, cfg Config) *shard {
	return &shard{
		latencyMin:  math.MaxInt64,
		hist:        hdrhistogram.New(cfg.HistogramMin, cfg.HistogramMax, cfg.HistogramSigFigs),
		passes:      make([]int64, checks),
		fails:       make([]int64, checks),
		errorKinds:  make(map[string]int64),
		statusCodes: make(map[int]int64),
		histMin:     cfg.HistogramMin,
		histMax:     cfg.HistogramMax,
	}
}

// record folds o into the shard. Caller must hold mu.
func (s *shard) record(o *IterationOutcome) {
	s.iterations++
	s.bytes += o.BytesReceived
	s.checkErrors += int64(o.CheckErrors)

	for i := range s.passes {
		// A missing result counts as a failure
		if i < len(o.Checks) && o.Checks[i] {
			s.passes[i]++
		} else {
			s.fails[i]++
		}
	}

	if o.Err != nil {
		s.errors++
		kind := o.ErrKind
		if kind == "" {
			kind = "other"
		}
		s.errorKinds[kind]++
		return
	}

	s.statusCodes[o.StatusCode]++
	if o.StatusCode >= 400 {
		s.httpFailures++
	}

	// Latency is only meaningful for iterations that got a response
	ns := int64(o.Elapsed)
	if ns < 0 {
		ns = 0
	}
	s.latencyCount++
	s.latencySum += ns
	if ns < s.latencyMin {
		s.latencyMin = ns
	}
	if ns > s.latencyMax {
		s.latencyMax = ns
	}

	// Convert to microseconds for HDR histogram and clamp to valid range
	micros := o.Elapsed.Microseconds()
	if micros < s.histMin {
		micros = s.histMin
	}
	if micros > s.histMax {
		micros = s.histMax
	}
	_ = s.hist.RecordValue(micros)
}

// totals is the merged view of every shard.
type totals struct {
	iterations   int64
	errors       int64
	httpFailures int64
	checkErrors  int64
	bytes        int64

	latencyCount int64
	latencySum   int64
	latencyMin   int64
	latencyMax   int64
	hist         *hdrhistogram.Histogram

	passes []int64
	fails  []int64

	errorKinds  map[string]int64
	statusCodes map[int]int64
}

func newTotals(checks int, cfg Config) *totals {
	return &totals{
		latencyMin:  math.MaxInt64,
		hist:        hdrhistogram.New(cfg.HistogramMin, cfg.HistogramMax, cfg.HistogramSigFigs),
		passes:      make([]int64, checks),
		fails:       make([]int64, checks),
		errorKinds:  make(map[string]int64),
		statusCodes: make(map[int]int64),
	}
}

// mergeInto adds the shard's counters to t. Caller must hold mu.
func (s *shard) mergeInto(t *totals) {
	t.iterations += s.iterations
	t.errors += s.errors
	t.httpFailures += s.httpFailures
	t.checkErrors += s.checkErrors
	t.bytes += s.bytes

	t.latencyCount += s.latencyCount
	t.latencySum += s.latencySum
	if s.latencyMin < t.latencyMin {
		t.latencyMin = s.latencyMin
	}
	if s.latencyMax > t.latencyMax {
		t.latencyMax = s.latencyMax
	}
	t.hist.Merge(s.hist)

	for i := range s.passes {
		t.passes[i] += s.passes[i]
		t.fails[i] += s.fails[i]
	}
	for k, v := range s.errorKinds {
		t.errorKinds[k] += v
	}
	for k, v := range s.statusCodes {
		t.statusCodes[k] += v
	}
}

func (t *totals) latencyStats() LatencyStats {
	if t.latencyCount == 0 {
		return LatencyStats{}
	}
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	return LatencyStats{
		Count:  t.latencyCount,
		Min:    time.Duration(t.latencyMin),
		Max:    time.Duration(t.latencyMax),
		Mean:   time.Duration(t.latencySum / t.latencyCount),
		StdDev: time.Duration(t.hist.StdDev() * float64(time.Microsecond)),
		P50:    us(t.hist.ValueAtQuantile(50)),
		P90:    us(t.hist.ValueAtQuantile(90)),
		P95:    us(t.hist.ValueAtQuantile(95)),
		P99:    us(t.hist.ValueAtQuantile(99)),
	}
}
