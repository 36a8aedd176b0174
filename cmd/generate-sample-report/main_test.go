package main

import (
	"testing"
	"time"
)

func TestCreateSampleSnapshot(t *testing.T) {
	snap := createSampleSnapshot(time.Now())

	for _, c := range snap.Checks {
		if c.Passes+c.Fails != snap.TotalIterations {
			t.Errorf("check %q: passes+fails = %d, want %d", c.Name, c.Passes+c.Fails, snap.TotalIterations)
		}
	}

	var passed, failed int64
	for _, c := range snap.Checks {
		passed += c.Passes
		failed += c.Fails
	}
	if passed != snap.TotalChecksPassed || failed != snap.TotalChecksFailed {
		t.Errorf("check totals = %d/%d, want %d/%d", passed, failed, snap.TotalChecksPassed, snap.TotalChecksFailed)
	}

	last := snap.TimeSeries[len(snap.TimeSeries)-1]
	if last.TotalIterations != snap.TotalIterations {
		t.Errorf("last bucket total = %d, want %d", last.TotalIterations, snap.TotalIterations)
	}
}
