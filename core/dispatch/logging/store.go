package logging

import (
	"context"
	"time"
)

// CandidateScore is one scored technician considered for a job.
type CandidateScore struct {
	TechnicianID string  `json:"technician_id"`
	Score        float64 `json:"score"`
	DistanceKm   float64 `json:"distance_km"`
}

// LogRecord captures one dispatch decision and its outcome.
type LogRecord struct {
	Timestamp    time.Time        `json:"timestamp"`
	WorkOrderID  string           `json:"work_order_id"`
	Candidates   []CandidateScore `json:"candidates"`
	ChosenTech   string           `json:"chosen_tech,omitempty"`
	Attempt      int              `json:"attempt"`
	Acknowledged bool             `json:"acknowledged"`
	Outcome      string           `json:"outcome"`
	Error        string           `json:"error,omitempty"`
}

// LogQuery defines filters for retrieving records.
type LogQuery struct {
	Start        time.Time
	End          time.Time
	WorkOrderID  string
	TechnicianID string
}

// Matches reports whether the record passes every filter.
func (q LogQuery) Matches(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.WorkOrderID != "" && r.WorkOrderID != q.WorkOrderID {
		return false
	}
	if q.TechnicianID != "" {
		if r.ChosenTech == q.TechnicianID {
			return true
		}
		for _, c := range r.Candidates {
			if c.TechnicianID == q.TechnicianID {
				return true
			}
		}
		return false
	}
	return true
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}
