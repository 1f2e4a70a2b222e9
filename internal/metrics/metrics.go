// Package metrics exposes keeper counters for Prometheus scraping.
// Every method is safe on a nil *Keeper so components can run unmetered
// in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "roundkeeper"

type Keeper struct {
	submissions    *prometheus.CounterVec
	staleRetries   *prometheus.CounterVec
	confirmSeconds *prometheus.HistogramVec
	autoManage     *prometheus.CounterVec
	oracleFetches  *prometheus.CounterVec
	claims         *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Keeper {
	k := &Keeper{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_submissions_total",
			Help:      "Ledger submitter calls by entry function and outcome.",
		}, []string{"function", "outcome"}),
		staleRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_stale_sequence_retries_total",
			Help:      "Rebuild-and-retry cycles caused by a stale sequence number.",
		}, []string{"function"}),
		confirmSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_confirm_seconds",
			Help:      "Time from submission to observed execution.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"function"}),
		autoManage: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_manage_evaluations_total",
			Help:      "Auto-manager evaluations by resulting action.",
		}, []string{"action"}),
		oracleFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_fetches_total",
			Help:      "Oracle reads by outcome (ok, cached, unavailable, malformed, invalid).",
		}, []string{"outcome"}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_total",
			Help:      "Claim evaluations by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(k.submissions, k.staleRetries, k.confirmSeconds, k.autoManage, k.oracleFetches, k.claims)
	}
	return k
}

func (k *Keeper) ObserveSubmission(function, outcome string) {
	if k == nil {
		return
	}
	k.submissions.WithLabelValues(function, outcome).Inc()
}

func (k *Keeper) ObserveStaleRetry(function string) {
	if k == nil {
		return
	}
	k.staleRetries.WithLabelValues(function).Inc()
}

func (k *Keeper) ObserveConfirm(function string, d time.Duration) {
	if k == nil {
		return
	}
	k.confirmSeconds.WithLabelValues(function).Observe(d.Seconds())
}

func (k *Keeper) ObserveAutoManage(action string) {
	if k == nil {
		return
	}
	k.autoManage.WithLabelValues(action).Inc()
}

func (k *Keeper) ObserveOracle(outcome string) {
	if k == nil {
		return
	}
	k.oracleFetches.WithLabelValues(outcome).Inc()
}

func (k *Keeper) ObserveClaim(result string) {
	if k == nil {
		return
	}
	k.claims.WithLabelValues(result).Inc()
}
