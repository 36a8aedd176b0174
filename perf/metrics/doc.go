// Package metrics aggregates iteration outcomes from concurrently running
// virtual users into run-wide statistics.
//
// Outcomes are recorded into a fixed set of shards. Each virtual user always
// lands on the same shard, so a VU only ever contends with the handful of
// other VUs that share it. Shards are merged when a live view or the final
// snapshot is requested.
//
// # Basic Usage
//
//	agg := metrics.NewAggregator([]string{"status is 200"}, metrics.DefaultConfig())
//
//	agg.Record(metrics.IterationOutcome{
//	    VUID:       1,
//	    Elapsed:    12 * time.Millisecond,
//	    StatusCode: 200,
//	    Checks:     []bool{true},
//	})
//
//	snap := agg.Finalize()
//	fmt.Printf("iterations: %d, p95: %v\n", snap.TotalIterations, snap.Latency.P95)
//
// # Percentiles
//
// Latency percentiles come from HDR histograms with three significant
// digits and are therefore approximate. Count, min, max and mean are exact.
//
// # Thread Safety
//
// Record may be called from any number of goroutines. Finalize seals the
// aggregator: outcomes that arrive afterwards are counted as dropped and
// never change the returned snapshot.
package metrics
