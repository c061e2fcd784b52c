package model

import "time"

// TimeWindow is a half-open [Start,End) interval.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether the two half-open intervals intersect.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// Duration returns End-Start.
func (w TimeWindow) Duration() time.Duration { return w.End.Sub(w.Start) }

// AppointmentStatus tracks a booking from request to completion.
type AppointmentStatus int

const (
	AppointmentRequested AppointmentStatus = iota
	AppointmentConfirmed
	AppointmentCancelled
	AppointmentCompleted
)

// String returns a human-readable representation of the status.
func (s AppointmentStatus) String() string {
	switch s {
	case AppointmentRequested:
		return "requested"
	case AppointmentConfirmed:
		return "confirmed"
	case AppointmentCancelled:
		return "cancelled"
	case AppointmentCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Appointment is a customer booking. Window and TechnicianID stay empty until
// the appointment is confirmed against a slot.
type Appointment struct {
	ID           string            `json:"id"`
	Location     Coordinate        `json:"location"`
	Duration     time.Duration     `json:"duration"`
	Window       *TimeWindow       `json:"window,omitempty"`
	Status       AppointmentStatus `json:"status"`
	TechnicianID string            `json:"technician_id,omitempty"`
}

// Slot is a candidate confirmed time window for an appointment, bound to the
// technician that would serve it.
type Slot struct {
	TechnicianID string     `json:"technician_id"`
	Window       TimeWindow `json:"window"`
}
