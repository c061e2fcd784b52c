package events

import (
	"time"

	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/model"
)

// AssignmentEvent is published when a work order is dispatched to a
// technician.
type AssignmentEvent struct {
	WorkOrderID  string
	TechnicianID string
	Score        float64
	Attempt      int
	At           time.Time
}

// AckEvent reports the technician's response to a dispatch order.
type AckEvent struct {
	WorkOrderID  string
	TechnicianID string
	Accepted     bool
	Err          error
	Latency      time.Duration
}

// WorkOrderEvent is published on every lifecycle transition.
type WorkOrderEvent struct {
	OrderID      string
	TechnicianID string
	From         model.WorkOrderStatus
	To           model.WorkOrderStatus
	At           time.Time
}

// StaleLocationEvent warns the dispatcher that a technician stopped
// reporting while still holding assignments.
type StaleLocationEvent struct {
	TechnicianID string
	LastSeen     time.Time
	ActiveOrder  string
}
