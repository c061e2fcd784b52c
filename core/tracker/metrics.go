package tracker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	samplesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "location_samples_ingested_total",
		Help: "Number of accepted technician position reports",
	})
	staleSamples = promauto.NewCounter(prometheus.CounterOpts{
		Name: "location_samples_stale_total",
		Help: "Number of rejected out-of-order position reports",
	})
	techniciansOffline = promauto.NewCounter(prometheus.CounterOpts{
		Name: "technicians_marked_offline_total",
		Help: "Number of technicians marked offline by the staleness sweep",
	})
)
