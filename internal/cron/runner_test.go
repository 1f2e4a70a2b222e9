package cronrunner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunner_SkipsOverlappingRuns(t *testing.T) {
	r := New(nil, context.Background())
	var running, overlaps, runs atomic.Int32
	if _, err := r.Add("@every 1s", func(context.Context) {
		if running.Add(1) > 1 {
			overlaps.Add(1)
		}
		runs.Add(1)
		time.Sleep(2500 * time.Millisecond)
		running.Add(-1)
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	r.Start()
	time.Sleep(4200 * time.Millisecond)
	r.Stop()
	if overlaps.Load() != 0 {
		t.Fatalf("expected no overlapping runs, got %d", overlaps.Load())
	}
	if runs.Load() == 0 {
		t.Fatalf("expected the job to run")
	}
}

func TestRunner_InvalidSpec(t *testing.T) {
	r := New(nil, nil)
	if _, err := r.Add("not a spec", func(context.Context) {}); err == nil {
		t.Fatalf("expected parse error")
	}
	if r.Entries() != 0 {
		t.Fatalf("expected no entries")
	}
}

func TestRunner_CanceledBaseContextSkipsJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(nil, ctx)
	var runs atomic.Int32
	if _, err := r.Add("* * * * * *", func(context.Context) { runs.Add(1) }); err != nil {
		t.Fatalf("add: %v", err)
	}
	r.Start()
	time.Sleep(1200 * time.Millisecond)
	r.Stop()
	if runs.Load() != 0 {
		t.Fatalf("expected no runs after cancel, got %d", runs.Load())
	}
}
