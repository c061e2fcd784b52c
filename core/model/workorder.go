package model

import "time"

// WorkOrderStatus tracks a job through its lifecycle.
type WorkOrderStatus int

const (
	OrderCreated WorkOrderStatus = iota
	OrderDispatched
	OrderAccepted
	OrderRejected
	OrderEnRoute
	OrderOnSite
	OrderCompleted
	OrderFailed
	OrderCancelled
	OrderUnassignable
)

// String returns a human-readable representation of the status.
func (s WorkOrderStatus) String() string {
	switch s {
	case OrderCreated:
		return "created"
	case OrderDispatched:
		return "dispatched"
	case OrderAccepted:
		return "accepted"
	case OrderRejected:
		return "rejected"
	case OrderEnRoute:
		return "en_route"
	case OrderOnSite:
		return "on_site"
	case OrderCompleted:
		return "completed"
	case OrderFailed:
		return "failed"
	case OrderCancelled:
		return "cancelled"
	case OrderUnassignable:
		return "unassignable"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s WorkOrderStatus) Terminal() bool {
	switch s {
	case OrderCompleted, OrderCancelled, OrderUnassignable:
		return true
	}
	return false
}

// Job is an incoming request for field work, either from job intake or
// derived from a confirmed appointment.
type Job struct {
	ID              string        `json:"id"`
	AppointmentID   string        `json:"appointment_id,omitempty"`
	Location        Coordinate    `json:"location"`
	RequiredSkills  []Skill       `json:"required_skills"`
	PreferredSkills []Skill       `json:"preferred_skills,omitempty"`
	Priority        int           `json:"priority"`
	Duration        time.Duration `json:"duration"`
	RequestedAt     time.Time     `json:"requested_at"`
}

// WorkOrder is the lifecycle record for a job. It is owned by the work-order
// lifecycle and must only be mutated through its operations.
type WorkOrder struct {
	ID             string          `json:"id"`
	AppointmentID  string          `json:"appointment_id,omitempty"`
	Location       Coordinate      `json:"location"`
	RequiredSkills []Skill         `json:"required_skills"`
	Priority       int             `json:"priority"`
	Status         WorkOrderStatus `json:"status"`
	AssignedTech   string          `json:"assigned_tech,omitempty"`
	Attempts       int             `json:"attempts"`

	CreatedAt    time.Time `json:"created_at"`
	DispatchedAt time.Time `json:"dispatched_at,omitempty"`
	AcceptedAt   time.Time `json:"accepted_at,omitempty"`
	ArrivedAt    time.Time `json:"arrived_at,omitempty"`
	CompletedAt  time.Time `json:"completed_at,omitempty"`
}
