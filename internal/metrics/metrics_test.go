package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilKeeperIsSafe(t *testing.T) {
	var k *Keeper
	k.ObserveSubmission("settle", "committed")
	k.ObserveStaleRetry("settle")
	k.ObserveConfirm("settle", time.Second)
	k.ObserveAutoManage("still_active")
	k.ObserveOracle("ok")
	k.ObserveClaim("claimed")
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	k := New(reg)
	k.ObserveSubmission("settle", "committed")
	k.ObserveSubmission("settle", "committed")
	k.ObserveStaleRetry("claim")

	if got := testutil.ToFloat64(k.submissions.WithLabelValues("settle", "committed")); got != 2 {
		t.Fatalf("submissions=%v want 2", got)
	}
	if got := testutil.ToFloat64(k.staleRetries.WithLabelValues("claim")); got != 1 {
		t.Fatalf("stale retries=%v want 1", got)
	}
}
