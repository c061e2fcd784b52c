package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	jobsAssigned     *prometheus.CounterVec
	assignLatency    prometheus.Histogram
	redispatchTotal  prometheus.Counter
	candidatePool    prometheus.Gauge
	orderAckRate     prometheus.Gauge
	publishSuccess   prometheus.Counter
	publishFailure   prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Histogram, prometheus.Counter, prometheus.Gauge, prometheus.Gauge, prometheus.Counter, prometheus.Counter) {
	jobs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_assigned_total",
			Help: "Number of job assignment attempts by outcome",
		},
		[]string{"outcome"},
	)
	lat := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assignment_latency_seconds",
			Help:    "Latency of dispatch orders from publish to acknowledgment",
			Buckets: prometheus.DefBuckets,
		},
	)
	red := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "redispatch_total",
			Help: "Number of jobs returned to the pool after timeout, rejection or no-show",
		},
	)
	pool := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "candidate_pool_size",
			Help: "Candidate pool size observed for the most recent job",
		},
	)
	ack := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "order_ack_rate",
			Help: "Acknowledgment rate for dispatch orders",
		},
	)
	suc := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "order_publish_success_total",
			Help: "Number of successful order publish operations",
		},
	)
	fail := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "order_publish_failure_total",
			Help: "Number of failed order publish operations",
		},
	)
	return jobs, lat, red, pool, ack, suc, fail
}

func init() {
	jobsAssigned, assignLatency, redispatchTotal, candidatePool, orderAckRate, publishSuccess, publishFailure = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(jobsAssigned, assignLatency, redispatchTotal, candidatePool, orderAckRate, publishSuccess, publishFailure)
}

// ResetMetrics reinitializes metric collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	jobsAssigned, assignLatency, redispatchTotal, candidatePool, orderAckRate, publishSuccess, publishFailure = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
