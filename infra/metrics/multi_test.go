package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/michaelayoade/dotmac-ftth-ops-sub005/core/metrics"
)

type recordingSink struct {
	assignments int
	latencies   int
}

func (r *recordingSink) RecordAssignments(recs []coremetrics.AssignmentRecord) error {
	r.assignments += len(recs)
	return nil
}

func (r *recordingSink) RecordAckLatency(recs []coremetrics.AckLatency) error {
	r.latencies += len(recs)
	return nil
}

func TestMultiSinkFanOut(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	m := NewMultiSink(a, b, coremetrics.NopSink{})

	recs := []coremetrics.AssignmentRecord{{WorkOrderID: "wo-1", TechnicianID: "tech-1"}}
	require.NoError(t, m.RecordAssignments(recs))
	require.Equal(t, 1, a.assignments)
	require.Equal(t, 1, b.assignments)

	lats := []coremetrics.AckLatency{{WorkOrderID: "wo-1", Latency: time.Second}}
	require.NoError(t, m.RecordAckLatency(lats))
	require.Equal(t, 1, a.latencies)
	require.Equal(t, 1, b.latencies)

	// Sinks without optional recorders are skipped, not an error.
	require.NoError(t, m.RecordCandidatePool(4))
	require.NoError(t, m.RecordLocation("tech-1", 6.5, 3.3, time.Now()))
}

func TestPromSinkRegistersAndRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(Config{}, reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordAssignments([]coremetrics.AssignmentRecord{
		{WorkOrderID: "wo-1", TechnicianID: "tech-1", Acknowledged: true},
	}))
	ps := sink.(*PromSink)
	require.NoError(t, ps.RecordAckLatency([]coremetrics.AckLatency{
		{WorkOrderID: "wo-1", TechnicianID: "tech-1", Acknowledged: true, Latency: 120 * time.Millisecond},
	}))
	require.NoError(t, ps.RecordCandidatePool(3))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["dispatch_assignments_total"])
	require.True(t, names["dispatch_ack_latency_seconds"])
	require.True(t, names["dispatch_candidate_pool_size"])

	// Registering twice on the same registry reuses the collectors.
	_, err = NewPromSinkWithRegistry(Config{}, reg)
	require.NoError(t, err)
}
