package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/michaelayoade/dotmac-ftth-ops-sub005/core/metrics"
)

// PromSink records dispatch outcomes in Prometheus metrics.
type PromSink struct {
	assignments *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	pool        prometheus.Gauge
}

// NewPromSink registers dispatch metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_assignments_total",
		Help: "Total number of committed assignments",
	}, []string{"technician_id", "acknowledged"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_ack_latency_seconds",
		Help:    "Time between order publish and acknowledgment",
		Buckets: prometheus.DefBuckets,
	}, []string{"technician_id", "acknowledged"})
	pool := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_candidate_pool_size",
		Help: "Candidate pool size observed for the most recent job",
	})

	if err := reg.Register(assignments); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			assignments = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(latency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			latency = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(pool); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			pool = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{assignments: assignments, latency: latency, pool: pool}, nil
}

// RecordAssignments increments the counter for each committed assignment.
func (s *PromSink) RecordAssignments(records []coremetrics.AssignmentRecord) error {
	for _, r := range records {
		s.assignments.WithLabelValues(r.TechnicianID, strconv.FormatBool(r.Acknowledged)).Inc()
	}
	return nil
}

// RecordAckLatency records the acknowledgment latency histogram.
func (s *PromSink) RecordAckLatency(records []coremetrics.AckLatency) error {
	for _, r := range records {
		s.latency.WithLabelValues(r.TechnicianID, strconv.FormatBool(r.Acknowledged)).Observe(r.Latency.Seconds())
	}
	return nil
}

// RecordCandidatePool sets the gauge to the observed pool size.
func (s *PromSink) RecordCandidatePool(size int) error {
	if s.pool != nil {
		s.pool.Set(float64(size))
	}
	return nil
}
