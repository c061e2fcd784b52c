package mqtt

import (
	"time"

	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/model"
)

// AssignmentOrder is the payload published to a technician's order topic.
type AssignmentOrder struct {
	CommandID   string           `json:"command_id"`
	WorkOrderID string           `json:"work_order_id"`
	Location    model.Coordinate `json:"location"`
	Skills      []model.Skill    `json:"skills"`
	Priority    int              `json:"priority"`
	IssuedAt    time.Time        `json:"issued_at"`
}

// Ack is a technician's response to an assignment order. A technician may
// explicitly decline, which counts as a rejection rather than a timeout.
type Ack struct {
	CommandID    string `json:"command_id"`
	TechnicianID string `json:"technician_id"`
	Accepted     bool   `json:"accepted"`
	Reason       string `json:"reason,omitempty"`
}

// Client sends assignment orders to technicians and waits for their
// acknowledgments.
type Client interface {
	// SendAssignment publishes the order to the technician and returns the
	// command identifier used to track the acknowledgment.
	SendAssignment(technicianID string, order AssignmentOrder) (commandID string, err error)

	// WaitForAck blocks until an acknowledgment for the command arrives or
	// the timeout expires with ErrAckTimeout.
	WaitForAck(commandID string, timeout time.Duration) (Ack, error)
}
