package mqtt

import (
	"fmt"
	"sync"
	"time"

	coremqtt "github.com/michaelayoade/dotmac-ftth-ops-sub005/core/mqtt"
)

// Client mirrors the core mqtt.Client interface.
type Client = coremqtt.Client

// MockClient is a scripted client used in tests and simulations.
type MockClient struct {
	Orders     map[string]coremqtt.AssignmentOrder // last order per technician
	FailIDs    map[string]bool                     // publish fails for these technicians
	AckResults map[string]bool                     // acknowledgment per technician
	mu         sync.Mutex
	seq        int
	cmdTech    map[string]string
}

// NewMockClient creates a new MockClient.
func NewMockClient() *MockClient {
	return &MockClient{
		Orders:     make(map[string]coremqtt.AssignmentOrder),
		FailIDs:    make(map[string]bool),
		AckResults: make(map[string]bool),
		cmdTech:    make(map[string]string),
	}
}

// SendAssignment records the order or returns an error if configured to fail.
func (m *MockClient) SendAssignment(technicianID string, order coremqtt.AssignmentOrder) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[technicianID] {
		return "", fmt.Errorf("publish failed")
	}
	m.seq++
	order.CommandID = fmt.Sprintf("cmd-%d", m.seq)
	m.Orders[technicianID] = order
	m.cmdTech[order.CommandID] = technicianID
	return order.CommandID, nil
}

// WaitForAck simulates an immediate acknowledgment based on the stored result.
// Technicians with no scripted result time out.
func (m *MockClient) WaitForAck(commandID string, _ time.Duration) (coremqtt.Ack, error) {
	m.mu.Lock()
	tech, known := m.cmdTech[commandID]
	ok, scripted := m.AckResults[tech]
	m.mu.Unlock()
	if !known {
		return coremqtt.Ack{}, fmt.Errorf("unknown command %s", commandID)
	}
	if !scripted {
		return coremqtt.Ack{CommandID: commandID}, coremqtt.ErrAckTimeout
	}
	return coremqtt.Ack{CommandID: commandID, TechnicianID: tech, Accepted: ok}, nil
}
