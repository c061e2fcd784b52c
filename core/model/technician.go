package model

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Coordinate is a WGS84 point. Geocoding happens upstream; the core only ever
// sees coordinates.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DistanceKm returns the haversine distance to other in kilometers.
func (c Coordinate) DistanceKm(other Coordinate) float64 {
	const earthRadiusKm = 6371.0
	lat1 := c.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - c.Lat) * math.Pi / 180
	dLon := (other.Lon - c.Lon) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

// Skill identifies a technician capability such as "fiber" or "copper".
type Skill string

// TechnicianStatus describes the live state of a technician.
type TechnicianStatus int

const (
	StatusIdle TechnicianStatus = iota
	StatusEnRoute
	StatusOnSite
	StatusOffline
)

// String returns a human-readable representation of the status.
func (s TechnicianStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusEnRoute:
		return "en_route"
	case StatusOnSite:
		return "on_site"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// ShiftWindow is a [Start,End) working period on a given weekday. Start and
// End are offsets from local midnight.
type ShiftWindow struct {
	Weekday time.Weekday  `json:"weekday"`
	Start   time.Duration `json:"start"`
	End     time.Duration `json:"end"`
}

// Contains reports whether the window fully covers [from, from+d).
func (w ShiftWindow) Contains(from time.Time, d time.Duration) bool {
	if from.Weekday() != w.Weekday {
		return false
	}
	midnight := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	offset := from.Sub(midnight)
	return offset >= w.Start && offset+d <= w.End
}

// Bounds returns the absolute window for the given date.
func (w ShiftWindow) Bounds(date time.Time) TimeWindow {
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return TimeWindow{Start: midnight.Add(w.Start), End: midnight.Add(w.End)}
}

// Technician represents a mobile field technician.
type Technician struct {
	ID           string           `json:"id"`
	Skills       []Skill          `json:"skills"`
	HomeBase     Coordinate       `json:"home_base"`
	ServiceAreas []string         `json:"service_areas"`
	Shifts       []ShiftWindow    `json:"shifts"`
	Status       TechnicianStatus `json:"status"`

	// Last known position, maintained by the location tracker.
	Location   Coordinate `json:"location"`
	LocationAt time.Time  `json:"location_at"`

	// Ordered queue of assigned work-order IDs. At most one of them is the
	// active (in-progress) order.
	Queue       []string `json:"queue"`
	ActiveOrder string   `json:"active_order,omitempty"`
}

// Workload is the number of queued work orders.
func (t Technician) Workload() int { return len(t.Queue) }

// HasSkills reports whether the technician holds every required skill.
func (t Technician) HasSkills(required []Skill) bool {
	for _, r := range required {
		found := false
		for _, s := range t.Skills {
			if s == r {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// OnShift reports whether some shift window fully covers [at, at+d).
func (t Technician) OnShift(at time.Time, d time.Duration) bool {
	for _, w := range t.Shifts {
		if w.Contains(at, d) {
			return true
		}
	}
	return false
}

// CoversArea reports whether the technician's home coverage includes areaID.
func (t Technician) CoversArea(areaID string) bool {
	for _, a := range t.ServiceAreas {
		if a == areaID {
			return true
		}
	}
	return false
}

// Validate checks that the technician profile is sound: a non-empty skill
// set and well-formed, non-overlapping shift windows.
func (t Technician) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("technician id must not be empty")
	}
	if len(t.Skills) == 0 {
		return fmt.Errorf("technician %s: skill set must not be empty", t.ID)
	}
	byDay := make(map[time.Weekday][]ShiftWindow)
	for _, w := range t.Shifts {
		if w.Start < 0 || w.End > 24*time.Hour || w.Start >= w.End {
			return fmt.Errorf("technician %s: malformed shift window %v [%v,%v)", t.ID, w.Weekday, w.Start, w.End)
		}
		byDay[w.Weekday] = append(byDay[w.Weekday], w)
	}
	for day, windows := range byDay {
		sort.Slice(windows, func(i, j int) bool { return windows[i].Start < windows[j].Start })
		for i := 1; i < len(windows); i++ {
			if windows[i].Start < windows[i-1].End {
				return fmt.Errorf("technician %s: overlapping shift windows on %v", t.ID, day)
			}
		}
	}
	return nil
}

// LocationSample is a single position report. Only the most recent sample per
// technician is authoritative for live state.
type LocationSample struct {
	TechnicianID string     `json:"technician_id"`
	Location     Coordinate `json:"location"`
	Timestamp    time.Time  `json:"timestamp"`
}
