package workorder

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/events"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/logger"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/model"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/internal/eventbus"
)

// EventType names a lifecycle transition request.
type EventType int

const (
	EventDispatch EventType = iota
	EventAccept
	EventReject
	EventDepart
	EventArrive
	EventComplete
	EventFail
	EventCancel
	EventExhaust
	// EventRequeue returns a rejected or failed order to the pool for
	// another dispatch attempt.
	EventRequeue
)

// String returns a human-readable representation of the event.
func (e EventType) String() string {
	switch e {
	case EventDispatch:
		return "dispatch"
	case EventAccept:
		return "accept"
	case EventReject:
		return "reject"
	case EventDepart:
		return "depart"
	case EventArrive:
		return "arrive"
	case EventComplete:
		return "complete"
	case EventFail:
		return "fail"
	case EventCancel:
		return "cancel"
	case EventExhaust:
		return "exhaust"
	case EventRequeue:
		return "requeue"
	default:
		return "unknown"
	}
}

// InvalidTransitionError reports a workflow violation. The request had no
// side effect and must not be retried.
type InvalidTransitionError struct {
	OrderID string
	From    model.WorkOrderStatus
	Event   EventType
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("work order %s: event %s not allowed in state %s", e.OrderID, e.Event, e.From)
}

// ErrUnknownOrder is returned for operations on an unknown work-order ID.
var ErrUnknownOrder = fmt.Errorf("unknown work order")

// transitions is the full state machine. Cancel is handled separately since
// it is reachable from every non-terminal state.
var transitions = map[model.WorkOrderStatus]map[EventType]model.WorkOrderStatus{
	model.OrderCreated: {
		EventDispatch: model.OrderDispatched,
		EventExhaust:  model.OrderUnassignable,
	},
	model.OrderDispatched: {
		EventAccept: model.OrderAccepted,
		EventReject: model.OrderRejected,
	},
	model.OrderAccepted: {
		EventDepart: model.OrderEnRoute,
		EventFail:   model.OrderFailed,
	},
	model.OrderRejected: {
		EventRequeue: model.OrderCreated,
		EventExhaust: model.OrderUnassignable,
	},
	model.OrderEnRoute: {
		EventArrive: model.OrderOnSite,
		EventFail:   model.OrderFailed,
	},
	model.OrderOnSite: {
		EventComplete: model.OrderCompleted,
		EventFail:     model.OrderFailed,
	},
	model.OrderFailed: {
		EventRequeue: model.OrderCreated,
		EventExhaust: model.OrderUnassignable,
	},
}

// Lifecycle owns work-order records. All mutations go through Create and
// Transition; callers hold identifiers, never the records themselves.
type Lifecycle struct {
	mu     sync.RWMutex
	orders map[string]*model.WorkOrder
	bus    eventbus.EventBus
	log    logger.Logger
	now    func() time.Time
}

// New creates an empty lifecycle. bus may be nil.
func New(bus eventbus.EventBus, log logger.Logger) *Lifecycle {
	if log == nil {
		log = logger.Nop{}
	}
	return &Lifecycle{
		orders: make(map[string]*model.WorkOrder),
		bus:    bus,
		log:    log,
		now:    time.Now,
	}
}

// Create registers a work order for the job. A job without an ID gets a
// generated one. Creating the same job twice returns the existing order.
func (l *Lifecycle) Create(job model.Job) model.WorkOrder {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := job.ID
	if id == "" {
		id = uuid.NewString()
	}
	if existing, ok := l.orders[id]; ok {
		return *existing
	}
	wo := &model.WorkOrder{
		ID:             id,
		AppointmentID:  job.AppointmentID,
		Location:       job.Location,
		RequiredSkills: append([]model.Skill(nil), job.RequiredSkills...),
		Priority:       job.Priority,
		Status:         model.OrderCreated,
		CreatedAt:      l.now(),
	}
	l.orders[id] = wo
	return *wo
}

// Get returns a copy of the work order.
func (l *Lifecycle) Get(id string) (model.WorkOrder, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	wo, ok := l.orders[id]
	if !ok {
		return model.WorkOrder{}, fmt.Errorf("%w: %s", ErrUnknownOrder, id)
	}
	return *wo, nil
}

// List returns all work orders sorted by ID.
func (l *Lifecycle) List() []model.WorkOrder {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.WorkOrder, 0, len(l.orders))
	for _, wo := range l.orders {
		out = append(out, *wo)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Transition validates and applies the event, returning the updated order.
// Invalid requests fail with InvalidTransitionError and change nothing.
func (l *Lifecycle) Transition(id string, ev EventType) (model.WorkOrder, error) {
	return l.TransitionAssign(id, ev, "")
}

// TransitionAssign is Transition with an optional technician binding, used by
// the dispatch path so assignment and state change commit together.
func (l *Lifecycle) TransitionAssign(id string, ev EventType, technicianID string) (model.WorkOrder, error) {
	l.mu.Lock()
	wo, ok := l.orders[id]
	if !ok {
		l.mu.Unlock()
		return model.WorkOrder{}, fmt.Errorf("%w: %s", ErrUnknownOrder, id)
	}
	from := wo.Status
	next, allowed := nextState(from, ev)
	if !allowed {
		l.mu.Unlock()
		return model.WorkOrder{}, InvalidTransitionError{OrderID: id, From: from, Event: ev}
	}
	now := l.now()
	wo.Status = next
	switch ev {
	case EventDispatch:
		wo.AssignedTech = technicianID
		wo.Attempts++
		wo.DispatchedAt = now
	case EventAccept:
		wo.AcceptedAt = now
	case EventArrive:
		wo.ArrivedAt = now
	case EventComplete:
		wo.CompletedAt = now
	case EventRequeue:
		wo.AssignedTech = ""
	}
	out := *wo
	l.mu.Unlock()

	l.log.Debugw("work order transition", map[string]any{
		"order_id": id, "from": from.String(), "to": next.String(), "event": ev.String(),
	})
	if l.bus != nil {
		l.bus.Publish(events.WorkOrderEvent{
			OrderID:      id,
			TechnicianID: out.AssignedTech,
			From:         from,
			To:           next,
			At:           now,
		})
	}
	return out, nil
}

func nextState(from model.WorkOrderStatus, ev EventType) (model.WorkOrderStatus, bool) {
	// Cancellation is reachable from every non-terminal state.
	if ev == EventCancel {
		if from.Terminal() {
			return 0, false
		}
		return model.OrderCancelled, true
	}
	next, ok := transitions[from][ev]
	return next, ok
}
