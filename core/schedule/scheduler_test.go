package schedule

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/geo"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/model"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/registry"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/routing"
)

// monday is a fixed Monday used by every test in this file.
var monday = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, techIDs ...string) (*Scheduler, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	areas := geo.NewIndex()
	require.NoError(t, areas.Upsert(geo.ServiceArea{
		ID: "north",
		Boundary: []model.Coordinate{
			{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}, {Lat: 1, Lon: 0},
		},
		Technicians: techIDs,
	}))
	for _, id := range techIDs {
		require.NoError(t, reg.Register(model.Technician{
			ID:           id,
			Skills:       []model.Skill{"fiber"},
			ServiceAreas: []string{"north"},
			Shifts: []model.ShiftWindow{
				{Weekday: time.Monday, Start: 8 * time.Hour, End: 17 * time.Hour},
			},
		}))
	}
	cfg := Config{SlotGranularityMinutes: 15, MinTravelBufferMinutes: 30}
	s := New(cfg, reg, areas, routing.NewHaversineEstimator(40), nil)
	return s, reg
}

func collect(s *Scheduler, areaID string, dur time.Duration, rng model.TimeWindow) []model.Slot {
	var out []model.Slot
	for sl := range s.AvailableSlots(areaID, dur, rng) {
		out = append(out, sl)
	}
	return out
}

func TestEarliestSlotRespectsTravelBuffer(t *testing.T) {
	s, _ := newFixture(t, "t1")

	appt, err := s.Request(model.Coordinate{Lat: 0.5, Lon: 0.5}, time.Hour)
	require.NoError(t, err)
	_, err = s.Confirm(appt.ID, model.Slot{
		TechnicianID: "t1",
		Window:       model.TimeWindow{Start: monday.Add(10 * time.Hour), End: monday.Add(11 * time.Hour)},
	})
	require.NoError(t, err)

	// Requesting slots from 10:00: the 10:00-11:00 booking plus 30-minute
	// buffer each side blocks everything before 11:30.
	rng := model.TimeWindow{Start: monday.Add(10 * time.Hour), End: monday.Add(17 * time.Hour)}
	slots := collect(s, "north", time.Hour, rng)
	require.NotEmpty(t, slots)
	require.Equal(t, monday.Add(11*time.Hour+30*time.Minute), slots[0].Window.Start,
		"earliest slot must be 11:30, not 10:30")
}

func TestSlotsSortedAndTieBrokenByTechnician(t *testing.T) {
	s, _ := newFixture(t, "t2", "t1")
	rng := model.TimeWindow{Start: monday, End: monday.Add(24 * time.Hour)}
	slots := collect(s, "north", time.Hour, rng)
	require.NotEmpty(t, slots)
	for i := 1; i < len(slots); i++ {
		prev, cur := slots[i-1], slots[i]
		require.False(t, cur.Window.Start.Before(prev.Window.Start), "slots out of order at %d", i)
		if cur.Window.Start.Equal(prev.Window.Start) {
			require.Less(t, prev.TechnicianID, cur.TechnicianID, "tie not broken by technician ID")
		}
	}
	require.Equal(t, "t1", slots[0].TechnicianID)
	require.Equal(t, monday.Add(8*time.Hour), slots[0].Window.Start)
}

func TestSequenceIsRestartable(t *testing.T) {
	s, _ := newFixture(t, "t1")
	rng := model.TimeWindow{Start: monday, End: monday.Add(24 * time.Hour)}
	seq := s.AvailableSlots("north", time.Hour, rng)

	first := func() model.Slot {
		for sl := range seq {
			return sl
		}
		return model.Slot{}
	}
	a := first()
	b := first()
	require.Equal(t, a, b, "re-ranging the sequence must restart it")
}

func TestConfirmConflictingSlotFails(t *testing.T) {
	s, _ := newFixture(t, "t1")
	slot := model.Slot{
		TechnicianID: "t1",
		Window:       model.TimeWindow{Start: monday.Add(9 * time.Hour), End: monday.Add(10 * time.Hour)},
	}

	a, err := s.Request(model.Coordinate{Lat: 0.5, Lon: 0.5}, time.Hour)
	require.NoError(t, err)
	b, err := s.Request(model.Coordinate{Lat: 0.5, Lon: 0.5}, time.Hour)
	require.NoError(t, err)

	_, err = s.Confirm(a.ID, slot)
	require.NoError(t, err)

	_, err = s.Confirm(b.ID, slot)
	var sue SlotUnavailableError
	require.True(t, errors.As(err, &sue), "stale slot must yield SlotUnavailableError, got %v", err)
}

func TestConfirmedWindowsNeverOverlap(t *testing.T) {
	s, _ := newFixture(t, "t1")
	rng := model.TimeWindow{Start: monday, End: monday.Add(24 * time.Hour)}

	// Concurrent bookings all race for the earliest slots.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			appt, err := s.Request(model.Coordinate{Lat: 0.5, Lon: 0.5}, time.Hour)
			if err != nil {
				return
			}
			for sl := range s.AvailableSlots("north", time.Hour, rng) {
				if _, err := s.Confirm(appt.ID, sl); err == nil {
					return
				}
			}
		}()
	}
	wg.Wait()

	var windows []model.TimeWindow
	s.mu.Lock()
	for _, id := range s.confirmed["t1"] {
		windows = append(windows, *s.appts[id].Window)
	}
	s.mu.Unlock()
	for i := range windows {
		for j := i + 1; j < len(windows); j++ {
			require.False(t, windows[i].Overlaps(windows[j]),
				"confirmed windows overlap: %v and %v", windows[i], windows[j])
		}
	}
}

func TestConfirmOutsideShiftFails(t *testing.T) {
	s, _ := newFixture(t, "t1")
	appt, err := s.Request(model.Coordinate{Lat: 0.5, Lon: 0.5}, time.Hour)
	require.NoError(t, err)
	_, err = s.Confirm(appt.ID, model.Slot{
		TechnicianID: "t1",
		Window:       model.TimeWindow{Start: monday.Add(18 * time.Hour), End: monday.Add(19 * time.Hour)},
	})
	var sue SlotUnavailableError
	require.True(t, errors.As(err, &sue))
}

func TestCancelReleasesWindow(t *testing.T) {
	s, _ := newFixture(t, "t1")
	slot := model.Slot{
		TechnicianID: "t1",
		Window:       model.TimeWindow{Start: monday.Add(8 * time.Hour), End: monday.Add(9 * time.Hour)},
	}
	appt, err := s.Request(model.Coordinate{Lat: 0.5, Lon: 0.5}, time.Hour)
	require.NoError(t, err)
	_, err = s.Confirm(appt.ID, slot)
	require.NoError(t, err)

	rng := model.TimeWindow{Start: monday, End: monday.Add(24 * time.Hour)}
	slots := collect(s, "north", time.Hour, rng)
	require.NotEqual(t, monday.Add(8*time.Hour), slots[0].Window.Start, "booked window must not be offered")

	require.NoError(t, s.Cancel(appt.ID))
	require.NoError(t, s.Cancel(appt.ID), "cancel must be idempotent")

	slots = collect(s, "north", time.Hour, rng)
	require.Equal(t, monday.Add(8*time.Hour), slots[0].Window.Start, "cancelled window must be free again")
}

func TestRequestOutsideFootprint(t *testing.T) {
	s, _ := newFixture(t, "t1")
	_, err := s.Request(model.Coordinate{Lat: 50, Lon: 50}, time.Hour)
	var nc geo.NoCoverageError
	require.True(t, errors.As(err, &nc))
}
