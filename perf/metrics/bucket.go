package metrics

import (
	"sync"
	"time"
)

// TimeBucketStore stores time-bucketed metrics in a ring buffer.
//
// Interval values are derived from the difference between consecutive
// cumulative totals, so recording an outcome never touches the store.
// Once the buffer is full the oldest buckets are overwritten.
type TimeBucketStore struct {
	buckets    []*TimeBucket
	head       int // Next write position
	count      int // Current number of buckets
	maxBuckets int
	mu         sync.RWMutex

	// For interval calculation
	lastBucketTime time.Time
	lastIterations int64
	lastErrors     int64
}

// NewTimeBucketStore creates a new time bucket store.
//
// For a 1-hour run with 1-second buckets, use maxBuckets=3600.
func NewTimeBucketStore(maxBuckets int) *TimeBucketStore {
	if maxBuckets <= 0 {
		maxBuckets = 3600 // Default: 1 hour of data
	}

	return &TimeBucketStore{
		buckets:        make([]*TimeBucket, maxBuckets),
		maxBuckets:     maxBuckets,
		lastBucketTime: time.Now(),
	}
}

// CreateBucket appends a bucket for the interval since the previous one.
func (tbs *TimeBucketStore) CreateBucket(
	totalIterations, totalErrors, totalBytes int64,
	latency LatencyStats,
	activeVUs int,
	phase Phase,
) *TimeBucket {
	tbs.mu.Lock()
	defer tbs.mu.Unlock()

	now := time.Now()

	intervalIterations := totalIterations - tbs.lastIterations
	intervalErrors := totalErrors - tbs.lastErrors

	intervalDuration := now.Sub(tbs.lastBucketTime).Seconds()
	if intervalDuration <= 0 {
		intervalDuration = 1.0
	}

	intervalErrorRate := 0.0
	if intervalIterations > 0 {
		intervalErrorRate = float64(intervalErrors) / float64(intervalIterations)
	}

	bucket := &TimeBucket{
		Timestamp:          now,
		TotalIterations:    totalIterations,
		TotalErrors:        totalErrors,
		TotalBytes:         totalBytes,
		IntervalIterations: intervalIterations,
		IntervalRPS:        float64(intervalIterations) / intervalDuration,
		IntervalErrorRate:  intervalErrorRate,
		LatencyP50:         latency.P50,
		LatencyP95:         latency.P95,
		LatencyP99:         latency.P99,
		ActiveVUs:          activeVUs,
		Phase:              phase,
	}

	tbs.buckets[tbs.head] = bucket
	tbs.head = (tbs.head + 1) % tbs.maxBuckets
	if tbs.count < tbs.maxBuckets {
		tbs.count++
	}

	tbs.lastBucketTime = now
	tbs.lastIterations = totalIterations
	tbs.lastErrors = totalErrors

	return bucket
}

// GetBuckets returns a copy of all buckets in chronological order.
func (tbs *TimeBucketStore) GetBuckets() []*TimeBucket {
	tbs.mu.RLock()
	defer tbs.mu.RUnlock()

	if tbs.count == 0 {
		return nil
	}

	result := make([]*TimeBucket, tbs.count)
	start := 0
	if tbs.count == tbs.maxBuckets {
		// Buffer is full: oldest bucket sits at head
		start = tbs.head
	}
	for i := 0; i < tbs.count; i++ {
		result[i] = tbs.buckets[(start+i)%tbs.maxBuckets]
	}

	return result
}

// GetRecentBuckets returns the N most recent buckets in chronological order.
func (tbs *TimeBucketStore) GetRecentBuckets(n int) []*TimeBucket {
	tbs.mu.RLock()
	defer tbs.mu.RUnlock()

	if n > tbs.count {
		n = tbs.count
	}
	if n <= 0 {
		return nil
	}

	result := make([]*TimeBucket, n)
	for i := 0; i < n; i++ {
		idx := (tbs.head - 1 - i + tbs.maxBuckets) % tbs.maxBuckets
		result[n-1-i] = tbs.buckets[idx]
	}

	return result
}

// GetLatestBucket returns the most recent bucket, or nil if none.
func (tbs *TimeBucketStore) GetLatestBucket() *TimeBucket {
	tbs.mu.RLock()
	defer tbs.mu.RUnlock()

	if tbs.count == 0 {
		return nil
	}

	idx := (tbs.head - 1 + tbs.maxBuckets) % tbs.maxBuckets
	return tbs.buckets[idx]
}

// Count returns the current number of buckets stored.
func (tbs *TimeBucketStore) Count() int {
	tbs.mu.RLock()
	defer tbs.mu.RUnlock()
	return tbs.count
}
