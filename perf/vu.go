package perf

import (
	"context"
	"sync/atomic"

	"github.com/wesleyorama2/vuload/perf/metrics"
)

// Recorder receives iteration outcomes. Record is called concurrently from
// every VU and must not retain the outcome's Checks slice.
type Recorder interface {
	Record(outcome metrics.IterationOutcome)
}

// VUState represents the lifecycle state of a Virtual User.
type VUState int32

const (
	// VUStateIdle indicates the VU has been created but not started.
	VUStateIdle VUState = iota
	// VUStateRunning indicates the VU is looping over iterations.
	VUStateRunning
	// VUStateStopped indicates the VU goroutine has exited.
	VUStateStopped
)

func (s VUState) String() string {
	switch s {
	case VUStateIdle:
		return "idle"
	case VUStateRunning:
		return "running"
	case VUStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// gauge tracks a current value and its high-water mark.
type gauge struct {
	current atomic.Int64
	peak    atomic.Int64
}

func (g *gauge) inc() {
	v := g.current.Add(1)
	for {
		p := g.peak.Load()
		if v <= p || g.peak.CompareAndSwap(p, v) {
			return
		}
	}
}

func (g *gauge) dec() {
	g.current.Add(-1)
}

// VirtualUser is a single closed-loop worker: it issues the next request as
// soon as the previous one has been recorded.
type VirtualUser struct {
	// Unique identifier for this VU, 1..N within a run
	ID int

	runner   *IterationRunner
	recorder Recorder
	inFlight *gauge

	state     atomic.Int32
	iteration atomic.Int64
}

// NewVirtualUser creates a new Virtual User.
func NewVirtualUser(id int, runner *IterationRunner, recorder Recorder) *VirtualUser {
	return &VirtualUser{
		ID:       id,
		runner:   runner,
		recorder: recorder,
		inFlight: &gauge{},
	}
}

// GetState returns the current VU state.
func (vu *VirtualUser) GetState() VUState {
	return VUState(vu.state.Load())
}

// GetIteration returns the number of iterations started.
func (vu *VirtualUser) GetIteration() int64 {
	return vu.iteration.Load()
}

// Run loops until loopCtx is cancelled. Each iteration's request runs under
// reqCtx, so cancelling loopCtx lets the current iteration finish while
// cancelling reqCtx aborts it.
func (vu *VirtualUser) Run(loopCtx, reqCtx context.Context) {
	if !vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateRunning)) {
		return
	}
	defer vu.state.Store(int32(VUStateStopped))

	for {
		// Check if the run is draining
		select {
		case <-loopCtx.Done():
			return
		default:
		}

		vu.iteration.Add(1)
		vu.inFlight.inc()
		outcome := vu.runner.RunOnce(reqCtx, vu.ID)
		vu.recorder.Record(outcome)
		vu.inFlight.dec()

		// A forced abort ends the VU even if the loop context is still live
		if reqCtx.Err() != nil {
			return
		}
	}
}
