package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/GenuineDickies/pat-sub001/core/metrics"
)

// PromRecorder records dispatch outcomes in Prometheus metrics. It
// complements the package-level collectors in core/dispatch with
// per-priority labels that need the full record.
type PromRecorder struct {
	outcomes  *prometheus.CounterVec
	scores    prometheus.Histogram
	queue     *prometheus.GaugeVec
	reclaimed prometheus.Counter
}

// NewPromRecorder registers the recorder metrics on the default
// Prometheus registerer.
func NewPromRecorder() (*PromRecorder, error) {
	return NewPromRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromRecorderWithRegistry registers metrics on the provided
// registerer. A nil registerer defaults to the global one. Already
// registered collectors are reused, so repeated construction is safe.
func NewPromRecorderWithRegistry(reg prometheus.Registerer) (*PromRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_outcomes_total",
		Help: "Dispatch outcomes by method, priority and success",
	}, []string{"method", "priority", "succeeded"})
	scores := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_recorded_score",
		Help:    "Winning composite score of recorded dispatches",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})
	queue := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dispatch_queue_occupancy",
		Help: "Queue occupancy snapshot by state",
	}, []string{"state"})
	reclaimed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_lease_reclaims_total",
		Help: "Processing entries reclaimed after lease expiry",
	})

	if err := reg.Register(outcomes); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			outcomes = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(scores); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			scores = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(queue); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			queue = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(reclaimed); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			reclaimed = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}

	return &PromRecorder{outcomes: outcomes, scores: scores, queue: queue, reclaimed: reclaimed}, nil
}

// RecordDispatch increments the outcome counter and observes the score.
func (r *PromRecorder) RecordDispatch(rec coremetrics.DispatchRecord) error {
	r.outcomes.WithLabelValues(string(rec.Method), rec.Priority.String(), strconv.FormatBool(rec.Succeeded)).Inc()
	if rec.Method == coremetrics.MethodAutomated && rec.Succeeded {
		r.scores.Observe(rec.Breakdown.Total)
	}
	return nil
}

// RecordQueueDepth sets the occupancy gauges.
func (r *PromRecorder) RecordQueueDepth(rec coremetrics.QueueDepthRecord) error {
	r.queue.WithLabelValues("pending").Set(float64(rec.Pending))
	r.queue.WithLabelValues("processing").Set(float64(rec.Processing))
	r.queue.WithLabelValues("emergency").Set(float64(rec.Emergency))
	return nil
}

// RecordReclaim counts a reclaimed entry.
func (r *PromRecorder) RecordReclaim(coremetrics.ReclaimRecord) error {
	r.reclaimed.Inc()
	return nil
}
