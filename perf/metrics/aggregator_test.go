package metrics

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testChecks = []string{"Status is 200", `Response contains "succ"`}

func newTestAggregator(vus int) *Aggregator {
	cfg := DefaultConfig()
	cfg.VUs = vus
	cfg.BucketInterval = 0
	return NewAggregator(testChecks, cfg)
}

func okOutcome(vu int, elapsed time.Duration) IterationOutcome {
	return IterationOutcome{
		VUID:          vu,
		Start:         time.Now(),
		Elapsed:       elapsed,
		StatusCode:    200,
		Checks:        []bool{true, true},
		BytesReceived: 100,
	}
}

func errOutcome(vu int) IterationOutcome {
	return IterationOutcome{
		VUID:    vu,
		Start:   time.Now(),
		Elapsed: time.Millisecond,
		Err:     errors.New("connection refused"),
		ErrKind: "refused",
		Checks:  []bool{false, false},
	}
}

func TestNewAggregator(t *testing.T) {
	agg := newTestAggregator(1)
	snap := agg.Live()

	assert.Equal(t, 1, agg.Shards())
	assert.Equal(t, int64(0), snap.TotalIterations)
	assert.Equal(t, PhasePending, snap.Phase)
	require.Len(t, snap.Checks, 2)
	assert.Equal(t, "Status is 200", snap.Checks[0].Name)
}

func TestShardCount(t *testing.T) {
	assert.Equal(t, 1, shardCount(0))
	assert.Equal(t, 1, shardCount(1))
	assert.Equal(t, 3, shardCount(3))
	assert.LessOrEqual(t, shardCount(1_000_000), 4*1024)
}

func TestAggregator_Record(t *testing.T) {
	agg := newTestAggregator(4)

	agg.Record(okOutcome(1, 10*time.Millisecond))
	agg.Record(okOutcome(2, 20*time.Millisecond))
	agg.Record(errOutcome(3))

	failedCheck := okOutcome(4, 30*time.Millisecond)
	failedCheck.StatusCode = 500
	failedCheck.Checks = []bool{false, true}
	agg.Record(failedCheck)

	snap := agg.Finalize()

	assert.Equal(t, int64(4), snap.TotalIterations)
	assert.Equal(t, int64(1), snap.ErrorCount)
	assert.Equal(t, int64(1), snap.HTTPFailures)
	assert.InDelta(t, 0.25, snap.ErrorRate, 0.0001)
	assert.InDelta(t, 0.5, snap.FailedRate(), 0.0001)
	assert.Equal(t, int64(2), snap.PassCount("Status is 200"))
	assert.Equal(t, int64(2), snap.FailCount("Status is 200"))
	assert.Equal(t, int64(3), snap.PassCount(`Response contains "succ"`))
	assert.Equal(t, int64(5), snap.TotalChecksPassed)
	assert.Equal(t, int64(3), snap.TotalChecksFailed)
	assert.Equal(t, int64(1), snap.ErrorKinds["refused"])
	assert.Equal(t, int64(2), snap.StatusCodes[200])
	assert.Equal(t, int64(1), snap.StatusCodes[500])
	assert.Equal(t, int64(300), snap.BytesReceived)

	// The transport error has no latency
	assert.Equal(t, int64(3), snap.Latency.Count)
	assert.Equal(t, 10*time.Millisecond, snap.Latency.Min)
	assert.Equal(t, 30*time.Millisecond, snap.Latency.Max)
	assert.Equal(t, 20*time.Millisecond, snap.Latency.Mean)
}

func TestAggregator_ChecksSumToIterations(t *testing.T) {
	agg := newTestAggregator(8)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		o := okOutcome(i%8+1, time.Duration(rng.Intn(50)+1)*time.Millisecond)
		o.Checks = []bool{rng.Intn(2) == 0, rng.Intn(3) == 0}
		if i%11 == 0 {
			o = errOutcome(i%8 + 1)
		}
		agg.Record(o)
	}

	snap := agg.Finalize()
	for _, c := range snap.Checks {
		assert.Equal(t, snap.TotalIterations, c.Passes+c.Fails, "check %q", c.Name)
	}
}

func TestAggregator_ShortChecksSliceCountsAsFailure(t *testing.T) {
	agg := newTestAggregator(1)

	o := okOutcome(1, time.Millisecond)
	o.Checks = []bool{true}
	agg.Record(o)

	snap := agg.Finalize()
	assert.Equal(t, int64(1), snap.PassCount("Status is 200"))
	assert.Equal(t, int64(1), snap.FailCount(`Response contains "succ"`))
}

func TestAggregator_RecordIsCommutative(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	outcomes := make([]IterationOutcome, 0, 1000)
	for i := 0; i < 1000; i++ {
		vu := rng.Intn(16) + 1
		switch rng.Intn(4) {
		case 0:
			outcomes = append(outcomes, errOutcome(vu))
		default:
			o := okOutcome(vu, time.Duration(rng.Intn(5000)+1)*time.Microsecond)
			o.Checks = []bool{rng.Intn(2) == 0, rng.Intn(2) == 0}
			o.StatusCode = []int{200, 201, 404, 500}[rng.Intn(4)]
			outcomes = append(outcomes, o)
		}
	}

	feed := func(list []IterationOutcome) *RunSnapshot {
		agg := newTestAggregator(16)
		for _, o := range list {
			agg.Record(o)
		}
		return agg.Finalize()
	}

	first := feed(outcomes)

	shuffled := append([]IterationOutcome(nil), outcomes...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	second := feed(shuffled)

	assert.Equal(t, first.TotalIterations, second.TotalIterations)
	assert.Equal(t, first.Checks, second.Checks)
	assert.Equal(t, first.ErrorCount, second.ErrorCount)
	assert.Equal(t, first.ErrorKinds, second.ErrorKinds)
	assert.Equal(t, first.StatusCodes, second.StatusCodes)
	assert.Equal(t, first.Latency, second.Latency)
	assert.Equal(t, first.BytesReceived, second.BytesReceived)
}

func TestAggregator_ConcurrentRecord(t *testing.T) {
	const vus = 32
	const perVU = 200

	agg := newTestAggregator(vus)

	var wg sync.WaitGroup
	for vu := 1; vu <= vus; vu++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			// Reuse one buffer per VU, like the iteration runner does
			buf := []bool{true, false}
			for i := 0; i < perVU; i++ {
				o := okOutcome(id, time.Millisecond)
				o.Checks = buf
				agg.Record(o)
			}
		}(vu)
	}
	wg.Wait()

	snap := agg.Finalize()
	assert.Equal(t, int64(vus*perVU), snap.TotalIterations)
	assert.Equal(t, int64(vus*perVU), snap.PassCount("Status is 200"))
	assert.Equal(t, int64(vus*perVU), snap.FailCount(`Response contains "succ"`))
	assert.Equal(t, int64(0), snap.DroppedOutcomes)
}

func TestAggregator_FinalizeSeals(t *testing.T) {
	agg := newTestAggregator(2)
	agg.Record(okOutcome(1, time.Millisecond))

	snap := agg.Finalize()
	require.Equal(t, int64(1), snap.TotalIterations)
	assert.Equal(t, PhaseStopped, snap.Phase)

	agg.Record(okOutcome(2, time.Millisecond))
	agg.Record(okOutcome(1, time.Millisecond))

	assert.Equal(t, int64(2), agg.Dropped())
	assert.Equal(t, int64(1), snap.TotalIterations, "finalized snapshot must not change")

	again := agg.Finalize()
	assert.Same(t, snap, again)
	assert.Same(t, snap, agg.Live())
}

func TestAggregator_FinalizeDuringRecord(t *testing.T) {
	agg := newTestAggregator(8)

	var wg sync.WaitGroup
	for vu := 1; vu <= 8; vu++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				agg.Record(okOutcome(id, time.Microsecond*50))
			}
		}(vu)
	}

	time.Sleep(time.Millisecond)
	snap := agg.Finalize()
	wg.Wait()

	// Everything sent was either counted in the snapshot or dropped
	assert.Equal(t, int64(8*2000), snap.TotalIterations+agg.Dropped())
}

func TestAggregator_LatencyPercentiles(t *testing.T) {
	agg := newTestAggregator(1)

	for i := 1; i <= 100; i++ {
		agg.Record(okOutcome(1, time.Duration(i)*time.Millisecond))
	}

	lat := agg.Finalize().Latency

	// HDR histogram binning makes percentiles approximate
	assert.InDelta(t, float64(50*time.Millisecond), float64(lat.P50), float64(time.Millisecond))
	assert.InDelta(t, float64(95*time.Millisecond), float64(lat.P95), float64(time.Millisecond))
	assert.InDelta(t, float64(99*time.Millisecond), float64(lat.P99), float64(time.Millisecond))
	assert.Equal(t, time.Millisecond, lat.Min)
	assert.Equal(t, 100*time.Millisecond, lat.Max)
	assert.True(t, lat.StdDev > 0)
}

func TestAggregator_LiveDoesNotSeal(t *testing.T) {
	agg := newTestAggregator(1)
	agg.SetPhase(PhaseRunning)
	agg.Record(okOutcome(1, time.Millisecond))

	live := agg.Live()
	assert.Equal(t, int64(1), live.TotalIterations)
	assert.Equal(t, PhaseRunning, live.Phase)

	agg.Record(okOutcome(1, time.Millisecond))
	assert.Equal(t, int64(2), agg.Finalize().TotalIterations)
}

func TestAggregator_TimeSeries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VUs = 2
	cfg.BucketInterval = 20 * time.Millisecond
	cfg.ActiveVUs = func() int { return 2 }
	agg := NewAggregator(testChecks, cfg)
	agg.SetPhase(PhaseRunning)

	for i := 0; i < 10; i++ {
		agg.Record(okOutcome(i%2+1, time.Millisecond))
		time.Sleep(5 * time.Millisecond)
	}

	snap := agg.Finalize()
	require.NotEmpty(t, snap.TimeSeries)

	last := snap.TimeSeries[len(snap.TimeSeries)-1]
	assert.Equal(t, int64(10), last.TotalIterations)
	assert.Equal(t, PhaseStopped, last.Phase)
	assert.Equal(t, 2, last.ActiveVUs)

	var sum int64
	for _, b := range snap.TimeSeries {
		sum += b.IntervalIterations
	}
	assert.Equal(t, int64(10), sum)
}

func TestIterationOutcome_CheckResults(t *testing.T) {
	o := IterationOutcome{Checks: []bool{true, false}}
	results := o.CheckResults(append(testChecks, "extra"))

	assert.Equal(t, map[string]bool{
		"Status is 200":            true,
		`Response contains "succ"`: false,
		"extra":                    false,
	}, results)
}
