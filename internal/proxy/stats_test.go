package proxy

import (
	"testing"
	"time"
)

func TestCommitStatsSnapshotPercentiles(t *testing.T) {
	stats := NewCommitStats(time.Hour)
	stats.Record(100, 1, false)
	stats.Record(200, 1, false)
	stats.Record(300, 2, false)
	stats.Record(400, 1, true)
	stats.Record(500, 3, false)

	snap := stats.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.P99Ms != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
	if snap.Operations != 8 || snap.Failures != 1 {
		t.Fatalf("expected 8 ops and 1 failure, got %d and %d", snap.Operations, snap.Failures)
	}
}

func TestCommitStatsPrunesExpiredSamples(t *testing.T) {
	stats := NewCommitStats(10 * time.Millisecond)
	stats.Record(100, 1, false)
	time.Sleep(25 * time.Millisecond)

	if snap := stats.Snapshot(); snap.Count != 0 {
		t.Fatalf("expected count=0 after prune, got %d", snap.Count)
	}

	stats.Record(200, 1, false)
	snap := stats.Snapshot()
	if snap.Count != 1 || snap.MinMs != 200 || snap.MaxMs != 200 {
		t.Fatalf("expected single fresh sample of 200, got %+v", snap)
	}
}

func TestCommitStatsRecordClampsNegativeDuration(t *testing.T) {
	stats := NewCommitStats(time.Hour)
	stats.Record(-10, 1, false)
	snap := stats.Snapshot()
	if snap.MinMs != 0 || snap.MaxMs != 0 {
		t.Fatalf("expected clamped duration=0, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
}
