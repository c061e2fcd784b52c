package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/model"
)

// ValidationError reports a malformed technician profile.
type ValidationError struct {
	TechnicianID string
	Reason       error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid technician profile %s: %v", e.TechnicianID, e.Reason)
}

func (e ValidationError) Unwrap() error { return e.Reason }

// ErrUnknownTechnician is returned for operations on an unregistered ID.
var ErrUnknownTechnician = fmt.Errorf("unknown technician")

// entry pairs a technician record with its lock domain. Operations touching
// the same technician serialize through entry.mu; operations on different
// technicians proceed in parallel.
type entry struct {
	mu sync.Mutex
	t  model.Technician
}

// Registry is the authoritative state of technicians: skills, shifts, status,
// location and workload. Workload changes committed under a technician lock
// are visible to the next candidate query with no caching lag.
type Registry struct {
	mu    sync.RWMutex
	techs map[string]*entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{techs: make(map[string]*entry)}
}

// Register validates and stores a technician profile. Re-registering an
// existing ID replaces the profile but keeps the live queue and location.
func (r *Registry) Register(t model.Technician) error {
	if err := t.Validate(); err != nil {
		return ValidationError{TechnicianID: t.ID, Reason: err}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.techs[t.ID]; ok {
		e.mu.Lock()
		t.Queue = e.t.Queue
		t.ActiveOrder = e.t.ActiveOrder
		t.Location = e.t.Location
		t.LocationAt = e.t.LocationAt
		t.Status = e.t.Status
		e.t = t
		e.mu.Unlock()
		return nil
	}
	r.techs[t.ID] = &entry{t: t}
	return nil
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.techs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTechnician, id)
	}
	return e, nil
}

// Get returns a copy of the technician record.
func (r *Registry) Get(id string) (model.Technician, error) {
	e, err := r.lookup(id)
	if err != nil {
		return model.Technician{}, err
	}
	e.mu.Lock()
	t := snapshot(e.t)
	e.mu.Unlock()
	return t, nil
}

// WithLock runs fn while holding the technician's lock. Mutations made by fn
// are committed when it returns nil and discarded on error.
func (r *Registry) WithLock(id string, fn func(t *model.Technician) error) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	work := snapshot(e.t)
	if err := fn(&work); err != nil {
		return err
	}
	e.t = work
	return nil
}

// TryWithLock is WithLock with a non-blocking lock acquisition. It reports
// false without calling fn when the technician lock is already held.
func (r *Registry) TryWithLock(id string, fn func(t *model.Technician) error) (bool, error) {
	e, err := r.lookup(id)
	if err != nil {
		return false, err
	}
	if !e.mu.TryLock() {
		return false, nil
	}
	defer e.mu.Unlock()
	work := snapshot(e.t)
	if err := fn(&work); err != nil {
		return true, err
	}
	e.t = work
	return true, nil
}

// Candidates returns technicians covering any of the given service areas,
// holding every required skill, on shift for the whole window and not
// offline. Result order is unspecified.
func (r *Registry) Candidates(areaIDs []string, skills []model.Skill, at time.Time, d time.Duration) []model.Technician {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.techs))
	for _, e := range r.techs {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	var out []model.Technician
	for _, e := range entries {
		e.mu.Lock()
		t := snapshot(e.t)
		e.mu.Unlock()
		if t.Status == model.StatusOffline {
			continue
		}
		if !coversAny(t, areaIDs) {
			continue
		}
		if !t.HasSkills(skills) {
			continue
		}
		if !at.IsZero() && !t.OnShift(at, d) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Snapshot returns all technicians sorted by ID.
func (r *Registry) Snapshot() []model.Technician {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.techs))
	for _, e := range r.techs {
		entries = append(entries, e)
	}
	r.mu.RUnlock()
	out := make([]model.Technician, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, snapshot(e.t))
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetLocationIfNewer updates the last-known position when at is strictly
// newer than the stored timestamp, reporting whether the sample was applied.
// The comparison and the write share one critical section so concurrent
// reports for the same technician cannot commit out of order. The section is
// kept to the field accesses so location ingestion never waits on dispatch
// work.
func (r *Registry) SetLocationIfNewer(id string, c model.Coordinate, at time.Time) (bool, error) {
	e, err := r.lookup(id)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.t.LocationAt.IsZero() && !at.After(e.t.LocationAt) {
		return false, nil
	}
	e.t.Location = c
	e.t.LocationAt = at
	if e.t.Status == model.StatusOffline {
		e.t.Status = model.StatusIdle
	}
	return true, nil
}

// SetStatus updates the live status.
func (r *Registry) SetStatus(id string, s model.TechnicianStatus) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.t.Status = s
	e.mu.Unlock()
	return nil
}

// Enqueue appends a work order to the technician queue under the caller-held
// assumption that the registry lock domain rules are respected; it takes the
// technician lock itself.
func (r *Registry) Enqueue(id, orderID string) error {
	return r.WithLock(id, func(t *model.Technician) error {
		t.Queue = append(t.Queue, orderID)
		return nil
	})
}

// Release removes a work order from the technician queue, clearing the
// active marker if it pointed at the order. Unknown orders are ignored.
func (r *Registry) Release(id, orderID string) error {
	return r.WithLock(id, func(t *model.Technician) error {
		for i, q := range t.Queue {
			if q == orderID {
				t.Queue = append(t.Queue[:i], t.Queue[i+1:]...)
				break
			}
		}
		if t.ActiveOrder == orderID {
			t.ActiveOrder = ""
		}
		return nil
	})
}

func coversAny(t model.Technician, areaIDs []string) bool {
	if len(areaIDs) == 0 {
		return true
	}
	for _, id := range areaIDs {
		if t.CoversArea(id) {
			return true
		}
	}
	return false
}

// snapshot deep-copies the slices so callers never alias registry state.
func snapshot(t model.Technician) model.Technician {
	cp := t
	cp.Skills = append([]model.Skill(nil), t.Skills...)
	cp.ServiceAreas = append([]string(nil), t.ServiceAreas...)
	cp.Shifts = append([]model.ShiftWindow(nil), t.Shifts...)
	cp.Queue = append([]string(nil), t.Queue...)
	return cp
}
