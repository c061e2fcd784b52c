package schedule

import (
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/geo"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/logger"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/model"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/registry"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/routing"
)

// SlotUnavailableError reports that a slot was claimed between generation and
// confirmation. The caller must re-request slots.
type SlotUnavailableError struct {
	AppointmentID string
	Slot          model.Slot
	Reason        string
}

func (e SlotUnavailableError) Error() string {
	return fmt.Sprintf("appointment %s: slot %s [%s,%s) unavailable: %s",
		e.AppointmentID, e.Slot.TechnicianID,
		e.Slot.Window.Start.Format(time.RFC3339), e.Slot.Window.End.Format(time.RFC3339), e.Reason)
}

// ErrUnknownAppointment is returned for operations on an unknown ID.
var ErrUnknownAppointment = fmt.Errorf("unknown appointment")

// Config defines slot generation parameters.
type Config struct {
	// SlotGranularityMinutes spaces candidate start times. Default 15.
	SlotGranularityMinutes int `json:"slot_granularity_minutes"`
	// MinTravelBufferMinutes is the floor for the inter-appointment travel
	// buffer. The effective buffer is the larger of this and the travel
	// estimate between the neighboring appointment and the new location.
	MinTravelBufferMinutes int `json:"min_travel_buffer_minutes"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.SlotGranularityMinutes <= 0 {
		c.SlotGranularityMinutes = 15
	}
	if c.MinTravelBufferMinutes < 0 {
		c.MinTravelBufferMinutes = 0
	}
}

func (c Config) granularity() time.Duration {
	return time.Duration(c.SlotGranularityMinutes) * time.Minute
}

func (c Config) minBuffer() time.Duration {
	return time.Duration(c.MinTravelBufferMinutes) * time.Minute
}

// Scheduler owns appointment records and books them against technician shift
// windows. Confirmation is serialized through the technician's registry lock
// so confirmed windows for one technician never overlap.
type Scheduler struct {
	cfg   Config
	reg   *registry.Registry
	areas *geo.Index
	est   routing.TravelEstimator
	log   logger.Logger

	mu        sync.Mutex
	appts     map[string]*model.Appointment
	confirmed map[string][]string // technician ID -> confirmed appointment IDs
}

// New creates a Scheduler.
func New(cfg Config, reg *registry.Registry, areas *geo.Index, est routing.TravelEstimator, log logger.Logger) *Scheduler {
	cfg.SetDefaults()
	if log == nil {
		log = logger.Nop{}
	}
	return &Scheduler{
		cfg:       cfg,
		reg:       reg,
		areas:     areas,
		est:       est,
		log:       log,
		appts:     make(map[string]*model.Appointment),
		confirmed: make(map[string][]string),
	}
}

// Request registers a booking request. The window stays empty until the
// appointment is confirmed against a slot.
func (s *Scheduler) Request(location model.Coordinate, duration time.Duration) (model.Appointment, error) {
	if duration <= 0 {
		return model.Appointment{}, fmt.Errorf("appointment duration must be positive")
	}
	if _, err := s.areas.Resolve(location); err != nil {
		return model.Appointment{}, err
	}
	appt := &model.Appointment{
		ID:       uuid.NewString(),
		Location: location,
		Duration: duration,
		Status:   model.AppointmentRequested,
	}
	s.mu.Lock()
	s.appts[appt.ID] = appt
	s.mu.Unlock()
	return *appt, nil
}

// Get returns a copy of the appointment.
func (s *Scheduler) Get(id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("%w: %s", ErrUnknownAppointment, id)
	}
	return *appt, nil
}

// AvailableSlots yields bookable slots for the service area, requested
// duration and date range. The sequence is finite, sorted by start time with
// ties broken by technician ID, and restartable: ranging over it again
// recomputes against current state. Generation subtracts each covering
// technician's confirmed windows, inflated by the travel buffer, from their
// shift windows and emits fixed-granularity start times that fit.
func (s *Scheduler) AvailableSlots(areaID string, duration time.Duration, rng model.TimeWindow) iter.Seq[model.Slot] {
	return func(yield func(model.Slot) bool) {
		slots := s.generate(areaID, duration, rng)
		for _, sl := range slots {
			if !yield(sl) {
				return
			}
		}
	}
}

func (s *Scheduler) generate(areaID string, duration time.Duration, rng model.TimeWindow) []model.Slot {
	if duration <= 0 || !rng.Start.Before(rng.End) {
		return nil
	}
	area, ok := s.areas.Get(areaID)
	if !ok {
		return nil
	}
	anchor := area.Centroid()
	techs := s.reg.Candidates([]string{areaID}, nil, time.Time{}, 0)
	sort.Slice(techs, func(i, j int) bool { return techs[i].ID < techs[j].ID })

	var slots []model.Slot
	for _, tech := range techs {
		busy := s.busyWindows(tech.ID, "", anchor)
		slots = append(slots, s.techSlots(tech, duration, rng, busy)...)
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if !slots[i].Window.Start.Equal(slots[j].Window.Start) {
			return slots[i].Window.Start.Before(slots[j].Window.Start)
		}
		return slots[i].TechnicianID < slots[j].TechnicianID
	})
	return slots
}

// techSlots walks the technician's shift windows day by day and emits every
// granularity-aligned start whose [start,start+duration) avoids the inflated
// busy windows.
func (s *Scheduler) techSlots(tech model.Technician, duration time.Duration, rng model.TimeWindow, busy []model.TimeWindow) []model.Slot {
	gran := s.cfg.granularity()
	var out []model.Slot
	for day := startOfDay(rng.Start); day.Before(rng.End); day = day.AddDate(0, 0, 1) {
		for _, w := range tech.Shifts {
			if w.Weekday != day.Weekday() {
				continue
			}
			bounds := w.Bounds(day)
			start := bounds.Start
			if start.Before(rng.Start) {
				start = rng.Start.Truncate(gran)
				if start.Before(rng.Start) {
					start = start.Add(gran)
				}
			}
			for ; !start.Add(duration).After(bounds.End) && !start.Add(duration).After(rng.End); start = start.Add(gran) {
				cand := model.TimeWindow{Start: start, End: start.Add(duration)}
				if overlapsAny(cand, busy) {
					continue
				}
				out = append(out, model.Slot{TechnicianID: tech.ID, Window: cand})
			}
		}
	}
	return out
}

// busyWindows returns the technician's confirmed windows inflated by the
// travel buffer, excluding the given appointment. target is the location the
// buffer travel is estimated against.
func (s *Scheduler) busyWindows(techID, excludeAppt string, target model.Coordinate) []model.TimeWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.TimeWindow
	for _, id := range s.confirmed[techID] {
		if id == excludeAppt {
			continue
		}
		appt := s.appts[id]
		if appt == nil || appt.Status != model.AppointmentConfirmed || appt.Window == nil {
			continue
		}
		buf := s.travelBuffer(appt.Location, target)
		out = append(out, model.TimeWindow{
			Start: appt.Window.Start.Add(-buf),
			End:   appt.Window.End.Add(buf),
		})
	}
	return out
}

// travelBuffer is the configured floor or the travel estimate between the two
// locations, whichever is larger, rounded up to the slot granularity.
func (s *Scheduler) travelBuffer(from, to model.Coordinate) time.Duration {
	buf := s.cfg.minBuffer()
	if s.est != nil {
		if d := s.est.Estimate(from, to).Duration; d > buf {
			buf = d
		}
	}
	gran := s.cfg.granularity()
	if rem := buf % gran; rem != 0 {
		buf += gran - rem
	}
	return buf
}

// Confirm books the appointment into the slot. It re-validates under the
// technician's lock that the window is still free and inside a shift window;
// a window claimed concurrently yields SlotUnavailableError.
func (s *Scheduler) Confirm(appointmentID string, slot model.Slot) (model.Appointment, error) {
	s.mu.Lock()
	appt, ok := s.appts[appointmentID]
	if !ok {
		s.mu.Unlock()
		return model.Appointment{}, fmt.Errorf("%w: %s", ErrUnknownAppointment, appointmentID)
	}
	switch appt.Status {
	case model.AppointmentCancelled, model.AppointmentCompleted:
		st := appt.Status
		s.mu.Unlock()
		return model.Appointment{}, fmt.Errorf("appointment %s is %s", appointmentID, st)
	case model.AppointmentConfirmed:
		out := *appt
		s.mu.Unlock()
		if out.TechnicianID == slot.TechnicianID && out.Window != nil && out.Window.Start.Equal(slot.Window.Start) {
			return out, nil
		}
		return model.Appointment{}, fmt.Errorf("appointment %s already confirmed", appointmentID)
	}
	location := appt.Location
	duration := appt.Duration
	s.mu.Unlock()

	if slot.Window.Duration() < duration {
		return model.Appointment{}, SlotUnavailableError{AppointmentID: appointmentID, Slot: slot, Reason: "window shorter than requested duration"}
	}

	var out model.Appointment
	err := s.reg.WithLock(slot.TechnicianID, func(tech *model.Technician) error {
		if !tech.OnShift(slot.Window.Start, slot.Window.Duration()) {
			return SlotUnavailableError{AppointmentID: appointmentID, Slot: slot, Reason: "outside technician shift"}
		}
		busy := s.busyWindows(tech.ID, appointmentID, location)
		if overlapsAny(slot.Window, busy) {
			return SlotUnavailableError{AppointmentID: appointmentID, Slot: slot, Reason: "window claimed concurrently"}
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		appt, ok := s.appts[appointmentID]
		if !ok || appt.Status != model.AppointmentRequested {
			return SlotUnavailableError{AppointmentID: appointmentID, Slot: slot, Reason: "appointment no longer pending"}
		}
		win := slot.Window
		appt.Window = &win
		appt.TechnicianID = tech.ID
		appt.Status = model.AppointmentConfirmed
		s.confirmed[tech.ID] = append(s.confirmed[tech.ID], appointmentID)
		out = *appt
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	s.log.Infof("appointment %s confirmed with %s at %s", out.ID, out.TechnicianID, out.Window.Start.Format(time.RFC3339))
	return out, nil
}

// Cancel releases the appointment window back to the free pool. Cancelling an
// already-cancelled appointment is a no-op.
func (s *Scheduler) Cancel(appointmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[appointmentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAppointment, appointmentID)
	}
	if appt.Status == model.AppointmentCancelled {
		return nil
	}
	if appt.Status == model.AppointmentCompleted {
		return fmt.Errorf("appointment %s already completed", appointmentID)
	}
	if appt.TechnicianID != "" {
		s.confirmed[appt.TechnicianID] = remove(s.confirmed[appt.TechnicianID], appointmentID)
	}
	appt.Status = model.AppointmentCancelled
	return nil
}

// Complete marks a confirmed appointment as done. Called when the derived
// work order completes.
func (s *Scheduler) Complete(appointmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[appointmentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAppointment, appointmentID)
	}
	if appt.Status != model.AppointmentConfirmed {
		return fmt.Errorf("appointment %s is %s, not confirmed", appointmentID, appt.Status)
	}
	if appt.TechnicianID != "" {
		s.confirmed[appt.TechnicianID] = remove(s.confirmed[appt.TechnicianID], appointmentID)
	}
	appt.Status = model.AppointmentCompleted
	return nil
}

func overlapsAny(w model.TimeWindow, busy []model.TimeWindow) bool {
	for _, b := range busy {
		if w.Overlaps(b) {
			return true
		}
	}
	return false
}

func remove(list []string, id string) []string {
	for i, v := range list {
		if v == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
