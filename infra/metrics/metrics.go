package metrics

import coremetrics "github.com/michaelayoade/dotmac-ftth-ops-sub005/core/metrics"

// Aliases for the core metric contracts.
type (
	Config  = coremetrics.Config
	Sink    = coremetrics.Sink
	NopSink = coremetrics.NopSink
)
