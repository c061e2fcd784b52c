package metrics

import (
	"time"

	coremetrics "github.com/michaelayoade/dotmac-ftth-ops-sub005/core/metrics"
)

// MultiSink fans dispatch records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAssignments forwards the records to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordAssignments(records []coremetrics.AssignmentRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordAssignments(records); err != nil {
			return err
		}
	}
	return nil
}

// RecordAckLatency forwards latency records when supported by the sink.
func (m *MultiSink) RecordAckLatency(records []coremetrics.AckLatency) error {
	for _, s := range m.Sinks {
		if lr, ok := s.(coremetrics.LatencyRecorder); ok {
			if err := lr.RecordAckLatency(records); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordCandidatePool forwards pool sizes when supported by the sink.
func (m *MultiSink) RecordCandidatePool(size int) error {
	for _, s := range m.Sinks {
		if pr, ok := s.(coremetrics.CandidatePoolRecorder); ok {
			if err := pr.RecordCandidatePool(size); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordLocation forwards position samples when supported by the sink.
func (m *MultiSink) RecordLocation(technicianID string, lat, lon float64, at time.Time) error {
	for _, s := range m.Sinks {
		if lr, ok := s.(coremetrics.LocationRecorder); ok {
			if err := lr.RecordLocation(technicianID, lat, lon, at); err != nil {
				return err
			}
		}
	}
	return nil
}
