package workorder

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/events"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/model"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/internal/eventbus"
)

func TestHappyPath(t *testing.T) {
	l := New(nil, nil)
	wo := l.Create(model.Job{ID: "wo-1", RequiredSkills: []model.Skill{"fiber"}})
	require.Equal(t, model.OrderCreated, wo.Status)

	steps := []struct {
		ev   EventType
		want model.WorkOrderStatus
	}{
		{EventDispatch, model.OrderDispatched},
		{EventAccept, model.OrderAccepted},
		{EventDepart, model.OrderEnRoute},
		{EventArrive, model.OrderOnSite},
		{EventComplete, model.OrderCompleted},
	}
	for _, s := range steps {
		got, err := l.TransitionAssign("wo-1", s.ev, "t1")
		require.NoError(t, err, "event %s", s.ev)
		require.Equal(t, s.want, got.Status)
	}

	final, err := l.Get("wo-1")
	require.NoError(t, err)
	require.Equal(t, "t1", final.AssignedTech)
	require.Equal(t, 1, final.Attempts)
	require.False(t, final.DispatchedAt.IsZero())
	require.False(t, final.CompletedAt.IsZero())
}

func TestInvalidTransitionHasNoSideEffect(t *testing.T) {
	l := New(nil, nil)
	l.Create(model.Job{ID: "wo-1"})

	_, err := l.Transition("wo-1", EventComplete)
	var ite InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	require.Equal(t, model.OrderCreated, ite.From)

	wo, err := l.Get("wo-1")
	require.NoError(t, err)
	require.Equal(t, model.OrderCreated, wo.Status, "state unchanged after invalid request")
}

func TestCancelFromAnyNonTerminal(t *testing.T) {
	l := New(nil, nil)
	l.Create(model.Job{ID: "wo-1"})
	_, err := l.Transition("wo-1", EventCancel)
	require.NoError(t, err)

	// Terminal: cancel no longer allowed.
	_, err = l.Transition("wo-1", EventCancel)
	var ite InvalidTransitionError
	require.True(t, errors.As(err, &ite))

	l.Create(model.Job{ID: "wo-2"})
	_, err = l.TransitionAssign("wo-2", EventDispatch, "t1")
	require.NoError(t, err)
	_, err = l.Transition("wo-2", EventAccept)
	require.NoError(t, err)
	got, err := l.Transition("wo-2", EventCancel)
	require.NoError(t, err)
	require.Equal(t, model.OrderCancelled, got.Status)
}

func TestRejectRequeueClearsAssignment(t *testing.T) {
	l := New(nil, nil)
	l.Create(model.Job{ID: "wo-1"})
	_, err := l.TransitionAssign("wo-1", EventDispatch, "t1")
	require.NoError(t, err)
	_, err = l.Transition("wo-1", EventReject)
	require.NoError(t, err)
	got, err := l.Transition("wo-1", EventRequeue)
	require.NoError(t, err)
	require.Equal(t, model.OrderCreated, got.Status)
	require.Empty(t, got.AssignedTech)
	require.Equal(t, 1, got.Attempts, "attempt count survives requeue")
}

func TestExhaustIsTerminal(t *testing.T) {
	l := New(nil, nil)
	l.Create(model.Job{ID: "wo-1"})
	got, err := l.Transition("wo-1", EventExhaust)
	require.NoError(t, err)
	require.Equal(t, model.OrderUnassignable, got.Status)
	_, err = l.Transition("wo-1", EventDispatch)
	require.Error(t, err)
}

func TestCreateIdempotent(t *testing.T) {
	l := New(nil, nil)
	a := l.Create(model.Job{ID: "wo-1", Priority: 3})
	_, err := l.TransitionAssign("wo-1", EventDispatch, "t1")
	require.NoError(t, err)
	b := l.Create(model.Job{ID: "wo-1", Priority: 9})
	require.Equal(t, a.ID, b.ID)
	require.Equal(t, model.OrderDispatched, b.Status, "second create returns existing order")
	require.Equal(t, 3, b.Priority)
}

func TestTransitionPublishesEvent(t *testing.T) {
	bus := eventbus.New()
	sub := bus.Subscribe()
	l := New(bus, nil)
	l.Create(model.Job{ID: "wo-1"})
	_, err := l.TransitionAssign("wo-1", EventDispatch, "t1")
	require.NoError(t, err)

	select {
	case e := <-sub:
		ev, ok := e.(events.WorkOrderEvent)
		require.True(t, ok)
		require.Equal(t, model.OrderCreated, ev.From)
		require.Equal(t, model.OrderDispatched, ev.To)
		require.Equal(t, "t1", ev.TechnicianID)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}
