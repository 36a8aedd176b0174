package perf_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wesleyorama2/vuload/perf"
	"github.com/wesleyorama2/vuload/perf/metrics"
)

// createIDServer mimics the id generator endpoint: 200 with "succ" after a
// fixed latency.
func createIDServer(latency time.Duration) *httptest.Server {
	var next atomic.Int64
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(latency)
		id := next.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ret":0,"msg":"succ","id":` + strconv.FormatInt(id, 10) + `}`))
	}))
}

func idConfig(url string, vus int, duration time.Duration) *perf.RunConfig {
	return &perf.RunConfig{
		Name:     "idgen",
		VUs:      vus,
		Duration: duration,
		Request:  perf.RequestDescriptor{Method: "GET", URL: url + "/id?biztag=test"},
		Checks:   []perf.Check{statusIs(200), bodyContains("succ")},
	}
}

func TestRunController_SingleVU(t *testing.T) {
	server := createIDServer(10 * time.Millisecond)
	defer server.Close()

	ctrl := perf.NewRunController(perf.WithLogger(zaptest.NewLogger(t)))
	snap, err := ctrl.Run(context.Background(), idConfig(server.URL, 1, 200*time.Millisecond))
	require.NoError(t, err)
	require.NotNil(t, snap)

	// Each iteration takes at least 10ms, so at most 20 can start in 200ms
	assert.GreaterOrEqual(t, snap.TotalIterations, int64(12))
	assert.LessOrEqual(t, snap.TotalIterations, int64(21))

	assert.Equal(t, snap.TotalIterations, snap.PassCount("Status is 200"))
	assert.Equal(t, snap.TotalIterations, snap.PassCount(`Response contains "succ"`))
	assert.Equal(t, int64(0), snap.ErrorCount)
	assert.Equal(t, int64(0), snap.TotalChecksFailed)
	assert.False(t, snap.ForcedTermination)
	assert.Equal(t, 1, snap.PeakInFlight)
	assert.Equal(t, perf.StateStopped, ctrl.State())
	assert.Equal(t, metrics.PhaseStopped, snap.Phase)
	assert.Equal(t, ctrl.RunID(), snap.RunID)
	assert.Equal(t, "idgen", snap.Name)
	assert.GreaterOrEqual(t, snap.Latency.Min, 10*time.Millisecond)
}

func TestRunController_ConnectionRefused(t *testing.T) {
	ctrl := perf.NewRunController()
	snap, err := ctrl.Run(context.Background(), idConfig(closedServerURL(t), 2, 150*time.Millisecond))
	require.NoError(t, err)

	assert.Greater(t, snap.TotalIterations, int64(0))
	assert.Equal(t, snap.TotalIterations, snap.ErrorCount)
	assert.InDelta(t, 1.0, snap.ErrorRate, 0.0001)
	assert.Equal(t, int64(0), snap.TotalChecksPassed)
	for _, c := range snap.Checks {
		assert.Equal(t, snap.TotalIterations, c.Fails, "check %q", c.Name)
	}
	assert.Equal(t, snap.TotalIterations, snap.ErrorKinds[perf.ErrKindRefused])
	assert.Equal(t, int64(0), snap.Latency.Count)
}

func TestRunController_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name  string
		cfg   *perf.RunConfig
		field string
	}{
		{"zero vus", idConfig("http://127.0.0.1:1", 0, time.Second), "vus"},
		{"zero duration", idConfig("http://127.0.0.1:1", 1, 0), "duration"},
		{"negative duration", idConfig("http://127.0.0.1:1", 1, -time.Second), "duration"},
		{"empty request", &perf.RunConfig{VUs: 1, Duration: time.Second}, "request.url"},
		{"bad scheme", idConfig("ftp://127.0.0.1:1", 1, time.Second), "request.url"},
		{"nil config", nil, "config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := perf.NewRunController()
			snap, err := ctrl.Run(context.Background(), tt.cfg)

			require.Error(t, err)
			assert.Nil(t, snap)

			var cfgErr *perf.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "expected *ConfigurationError, got %T", err)
			assert.Equal(t, tt.field, cfgErr.Field)

			var verrs *perf.ValidationErrors
			assert.True(t, errors.As(err, &verrs))

			assert.Equal(t, perf.StatePending, ctrl.State())
			assert.Nil(t, ctrl.Live())
		})
	}
}

func TestRunConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := &perf.RunConfig{
		VUs:         0,
		Duration:    0,
		GracePeriod: -time.Second,
		Checks: []perf.Check{
			{Name: "dup", Predicate: func(*perf.Response) bool { return true }},
			{Name: "dup"},
		},
	}

	err := cfg.Validate()
	var verrs *perf.ValidationErrors
	require.True(t, errors.As(err, &verrs))

	fields := make([]string, 0, len(verrs.Errors))
	for _, e := range verrs.Errors {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{
		"vus", "duration", "gracePeriod", "request.url",
		"checks[1].name", "checks[1].predicate",
	}, fields)
	assert.Contains(t, err.Error(), "invalid run configuration")
}

func TestRunController_NeverRespondingTarget(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	cfg := idConfig(server.URL, 3, 100*time.Millisecond)
	cfg.GracePeriod = 200 * time.Millisecond
	cfg.AbortWait = 500 * time.Millisecond

	ctrl := perf.NewRunController(perf.WithLogger(zaptest.NewLogger(t)))
	start := time.Now()
	snap, err := ctrl.Run(context.Background(), cfg)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.True(t, snap.ForcedTermination)
	assert.Equal(t, 0, snap.StuckVUs)
	assert.Equal(t, perf.StateStopped, ctrl.State())
	assert.Less(t, elapsed, cfg.Duration+cfg.GracePeriod+cfg.AbortWait+500*time.Millisecond)
	assert.GreaterOrEqual(t, elapsed, cfg.Duration+cfg.GracePeriod)
	assert.LessOrEqual(t, snap.PeakInFlight, 3)
}

func TestRunController_StuckExecutor(t *testing.T) {
	// An executor that ignores cancellation entirely
	block := make(chan struct{})
	defer close(block)
	exec := executorFunc(func(ctx context.Context, req *perf.RequestDescriptor) (*perf.Response, error) {
		<-block
		return &perf.Response{StatusCode: 200}, nil
	})

	cfg := idConfig("http://127.0.0.1:1", 2, 50*time.Millisecond)
	cfg.GracePeriod = 50 * time.Millisecond
	cfg.AbortWait = 50 * time.Millisecond

	ctrl := perf.NewRunController(perf.WithExecutor(exec))
	start := time.Now()
	snap, err := ctrl.Run(context.Background(), cfg)

	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, snap.ForcedTermination)
	assert.Equal(t, 2, snap.StuckVUs)
	assert.Equal(t, int64(0), snap.TotalIterations)
}

type executorFunc func(ctx context.Context, req *perf.RequestDescriptor) (*perf.Response, error)

func (f executorFunc) Execute(ctx context.Context, req *perf.RequestDescriptor) (*perf.Response, error) {
	return f(ctx, req)
}

func TestRunController_PeakInFlightBounded(t *testing.T) {
	server := createIDServer(2 * time.Millisecond)
	defer server.Close()

	ctrl := perf.NewRunController()
	snap, err := ctrl.Run(context.Background(), idConfig(server.URL, 8, 200*time.Millisecond))
	require.NoError(t, err)

	assert.LessOrEqual(t, snap.PeakInFlight, 8)
	assert.Greater(t, snap.PeakInFlight, 0)
	assert.Equal(t, 8, snap.VUs)
	for _, c := range snap.Checks {
		assert.Equal(t, snap.TotalIterations, c.Passes+c.Fails)
	}
}

func TestRunController_MixedResults(t *testing.T) {
	var count atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if count.Add(1)%3 == 0 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"ret":1,"msg":"fail"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ret":0,"msg":"succ"}`))
	}))
	defer server.Close()

	ctrl := perf.NewRunController()
	snap, err := ctrl.Run(context.Background(), idConfig(server.URL, 4, 150*time.Millisecond))
	require.NoError(t, err)

	require.Greater(t, snap.TotalIterations, int64(0))
	for _, c := range snap.Checks {
		assert.Equal(t, snap.TotalIterations, c.Passes+c.Fails, "check %q", c.Name)
		assert.Greater(t, c.Fails, int64(0))
	}
	assert.Equal(t, snap.StatusCodes[500], snap.HTTPFailures)
	assert.Equal(t, snap.TotalIterations, snap.StatusCodes[200]+snap.StatusCodes[500])
}

func TestRunController_ParentCancellation(t *testing.T) {
	server := createIDServer(time.Millisecond)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	ctrl := perf.NewRunController()
	start := time.Now()
	snap, err := ctrl.Run(ctx, idConfig(server.URL, 2, time.Minute))

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Greater(t, snap.TotalIterations, int64(0))
	assert.False(t, snap.ForcedTermination)
	assert.Equal(t, int64(0), snap.ErrorCount, "in-flight requests must finish after cancellation")
}

func TestRunController_RunsOnce(t *testing.T) {
	server := createIDServer(time.Millisecond)
	defer server.Close()

	ctrl := perf.NewRunController()
	_, err := ctrl.Run(context.Background(), idConfig(server.URL, 1, 20*time.Millisecond))
	require.NoError(t, err)

	_, err = ctrl.Run(context.Background(), idConfig(server.URL, 1, 20*time.Millisecond))
	assert.ErrorIs(t, err, perf.ErrAlreadyRun)
}

func TestRunController_LiveProgress(t *testing.T) {
	server := createIDServer(2 * time.Millisecond)
	defer server.Close()

	ctrl := perf.NewRunController(perf.WithBucketInterval(20 * time.Millisecond))
	assert.Equal(t, 0.0, ctrl.Progress())

	done := make(chan *metrics.RunSnapshot)
	go func() {
		snap, _ := ctrl.Run(context.Background(), idConfig(server.URL, 2, 300*time.Millisecond))
		done <- snap
	}()

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, perf.StateRunning, ctrl.State())
	assert.Greater(t, ctrl.Progress(), 0.0)
	assert.Less(t, ctrl.Progress(), 1.0)
	assert.Equal(t, 2, ctrl.ActiveVUs())

	live := ctrl.Live()
	require.NotNil(t, live)
	assert.Equal(t, metrics.PhaseRunning, live.Phase)
	assert.Greater(t, live.TotalIterations, int64(0))

	snap := <-done
	require.NotNil(t, snap)
	assert.Equal(t, 1.0, ctrl.Progress())
	assert.Same(t, snap, ctrl.Live())
	assert.NotEmpty(t, snap.TimeSeries)
	assert.GreaterOrEqual(t, snap.TotalIterations, live.TotalIterations)
}

func TestRunState_String(t *testing.T) {
	assert.Equal(t, "pending", perf.StatePending.String())
	assert.Equal(t, "running", perf.StateRunning.String())
	assert.Equal(t, "draining", perf.StateDraining.String())
	assert.Equal(t, "stopped", perf.StateStopped.String())
	assert.Equal(t, metrics.PhaseDraining, perf.StateDraining.Phase())
}
