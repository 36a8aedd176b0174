// Package perf provides a closed-loop HTTP load generator.
//
// A run drives one endpoint with a fixed number of virtual users (VUs) for
// a fixed duration. Every VU issues a request, evaluates a list of named
// checks against the response, records the outcome and immediately starts
// the next iteration. Subpackages provide the supporting pieces:
//
//   - perf/metrics: Sharded aggregation of iteration outcomes with HDR histograms
//   - perf/config: YAML/JSON test configuration and declarative checks
//   - perf/threshold: Pass/fail criteria evaluated against the final snapshot
//
// # Quick Start
//
//	cfg := &perf.RunConfig{
//	    VUs:      10,
//	    Duration: 30 * time.Second,
//	    Request:  perf.RequestDescriptor{URL: "http://127.0.0.1:8080/id?biztag=test"},
//	    Checks: []perf.Check{
//	        {Name: "Status is 200", Predicate: func(r *perf.Response) bool {
//	            return r.StatusCode == 200
//	        }},
//	    },
//	}
//
//	snap, err := perf.NewRunController().Run(ctx, cfg)
//	if err != nil {
//	    return err // *perf.ValidationErrors
//	}
//	fmt.Printf("iterations: %d, passed: %d\n", snap.TotalIterations, snap.PassCount("Status is 200"))
//
// # Stopping
//
// When the duration elapses, or ctx is cancelled, the run drains: VUs
// finish their current iteration and exit. VUs still busy after the grace
// period have their requests aborted and the snapshot is flagged with
// ForcedTermination.
//
// # Failures
//
// Transport failures and panicking checks never end a run. They are
// counted in the snapshot as errors and failed checks.
package perf
