package perf

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// VUScheduler launches a fixed set of Virtual Users and tracks them until
// they exit.
//
// The scheduler never starts more than its configured number of VUs, so
// concurrently running iterations are bounded by that number.
type VUScheduler struct {
	vus []*VirtualUser

	active   atomic.Int32
	inFlight *gauge

	startOnce sync.Once
	wg        sync.WaitGroup
	done      chan struct{}
}

// NewVUScheduler creates n VUs with ids 1..n. Each VU gets its own
// IterationRunner sharing the executor, request and evaluator.
func NewVUScheduler(n int, executor Executor, request *RequestDescriptor, evaluator *Evaluator, recorder Recorder) *VUScheduler {
	s := &VUScheduler{
		vus:      make([]*VirtualUser, n),
		inFlight: &gauge{},
		done:     make(chan struct{}),
	}

	for i := range s.vus {
		vu := NewVirtualUser(i+1, NewIterationRunner(executor, request, evaluator), recorder)
		vu.inFlight = s.inFlight
		s.vus[i] = vu
	}

	return s
}

// Start spawns one goroutine per VU. The returned channel is closed once
// every VU has exited. Calling Start again returns the same channel
// without spawning anything.
func (s *VUScheduler) Start(loopCtx, reqCtx context.Context) <-chan struct{} {
	s.startOnce.Do(func() {
		s.active.Store(int32(len(s.vus)))
		s.wg.Add(len(s.vus))

		for _, vu := range s.vus {
			go func(vu *VirtualUser) {
				defer s.wg.Done()
				defer s.active.Add(-1)
				vu.Run(loopCtx, reqCtx)
			}(vu)
		}

		go func() {
			s.wg.Wait()
			close(s.done)
		}()
	})
	return s.done
}

// Done returns a channel closed when every started VU has exited.
func (s *VUScheduler) Done() <-chan struct{} {
	return s.done
}

// Wait waits for all VUs to stop with a timeout.
//
// Returns the number of VUs that did not stop within the timeout.
func (s *VUScheduler) Wait(timeout time.Duration) int {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.done:
		return 0
	case <-timer.C:
		return s.ActiveVUs()
	}
}

// VUs returns the number of VUs managed by the scheduler.
func (s *VUScheduler) VUs() int {
	return len(s.vus)
}

// GetVU returns a VU by ID, or nil if not found.
func (s *VUScheduler) GetVU(id int) *VirtualUser {
	if id < 1 || id > len(s.vus) {
		return nil
	}
	return s.vus[id-1]
}

// ActiveVUs returns the number of VU goroutines that have not exited.
func (s *VUScheduler) ActiveVUs() int {
	return int(s.active.Load())
}

// InFlight returns the number of iterations currently executing.
func (s *VUScheduler) InFlight() int {
	return int(s.inFlight.current.Load())
}

// PeakInFlight returns the highest number of simultaneously executing
// iterations observed.
func (s *VUScheduler) PeakInFlight() int {
	return int(s.inFlight.peak.Load())
}

// Iterations returns the number of iterations started across all VUs.
func (s *VUScheduler) Iterations() int64 {
	var total int64
	for _, vu := range s.vus {
		total += vu.GetIteration()
	}
	return total
}
