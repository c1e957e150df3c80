package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	dispatchesTotal     *prometheus.CounterVec
	dispatchScore       prometheus.Histogram
	candidatesEvaluated prometheus.Histogram
	queueDepth          *prometheus.GaugeVec
	reclaimedTotal      prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Histogram, prometheus.Histogram, *prometheus.GaugeVec, prometheus.Counter) {
	disp := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_attempts_total",
			Help: "Number of resolved dispatch attempts",
		},
		[]string{"mode", "outcome"},
	)
	sc := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_winning_score",
			Help:    "Composite score of the assigned driver",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)
	cand := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_candidates_evaluated",
			Help:    "Eligible drivers scored per request",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)
	depth := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dispatch_queue_depth",
			Help: "Number of queue entries by state",
		},
		[]string{"state"},
	)
	rec := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_reclaimed_entries_total",
			Help: "Processing entries reclaimed after lease expiry",
		},
	)
	return disp, sc, cand, depth, rec
}

func init() {
	dispatchesTotal, dispatchScore, candidatesEvaluated, queueDepth, reclaimedTotal = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(dispatchesTotal, dispatchScore, candidatesEvaluated, queueDepth, reclaimedTotal)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	dispatchesTotal, dispatchScore, candidatesEvaluated, queueDepth, reclaimedTotal = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
