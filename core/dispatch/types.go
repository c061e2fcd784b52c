package dispatch

import (
	"fmt"
	"time"
)

// AssignmentResult is the outcome of a successful dispatch.
type AssignmentResult struct {
	WorkOrderID  string        `json:"work_order_id"`
	TechnicianID string        `json:"technician_id"`
	Score        float64       `json:"score"`
	DistanceKm   float64       `json:"distance_km"`
	Attempt      int           `json:"attempt"`
	ETA          time.Time     `json:"eta"`
	AckLatency   time.Duration `json:"ack_latency"`
}

// BatchItem pairs a job with its assignment outcome within a batch.
type BatchItem struct {
	JobID  string           `json:"job_id"`
	Result AssignmentResult `json:"result"`
	Err    error            `json:"-"`
}

// NoCandidateFoundError reports that no eligible technician remains after
// exhausting re-dispatch attempts. The work order is left unassignable for
// manual dispatcher intervention.
type NoCandidateFoundError struct {
	WorkOrderID string
	Attempts    int
}

func (e NoCandidateFoundError) Error() string {
	return fmt.Sprintf("work order %s: no candidate found after %d attempts", e.WorkOrderID, e.Attempts)
}

// AssignmentConflictError reports a lost race for a technician lock after the
// single automatic retry.
type AssignmentConflictError struct {
	WorkOrderID  string
	TechnicianID string
}

func (e AssignmentConflictError) Error() string {
	return fmt.Sprintf("work order %s: lost assignment race for technician %s", e.WorkOrderID, e.TechnicianID)
}

// candidate pairs a technician with its score for one job.
type candidate struct {
	techID     string
	score      float64
	distanceKm float64
}
