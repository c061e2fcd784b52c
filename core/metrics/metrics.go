package metrics

import "time"

// AssignmentRecord is a per-job dispatch outcome to be recorded.
type AssignmentRecord struct {
	WorkOrderID  string
	TechnicianID string
	Score        float64
	DistanceKm   float64
	Attempts     int
	Acknowledged bool
	DispatchTime time.Time
}

// Sink records dispatch outcomes for observability purposes.
type Sink interface {
	RecordAssignments(records []AssignmentRecord) error
}

// AckLatency captures the time between order publish and acknowledgment.
type AckLatency struct {
	WorkOrderID  string
	TechnicianID string
	Acknowledged bool
	Latency      time.Duration
}

// LatencyRecorder optionally records acknowledgment latencies.
type LatencyRecorder interface {
	RecordAckLatency(records []AckLatency) error
}

// CandidatePoolRecorder optionally records the candidate pool size observed
// for a job.
type CandidatePoolRecorder interface {
	RecordCandidatePool(size int) error
}

// LocationRecorder optionally records accepted position samples.
type LocationRecorder interface {
	RecordLocation(technicianID string, lat, lon float64, at time.Time) error
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordAssignments([]AssignmentRecord) error { return nil }

// Config selects and configures the metric sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}
