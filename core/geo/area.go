package geo

import (
	"fmt"
	"sort"
	"sync"

	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/model"
)

// ServiceArea is a geographic polygon within which a subset of technicians
// operate. Boundary is a closed ring of at least three vertices; the closing
// edge back to the first vertex is implicit.
type ServiceArea struct {
	ID          string             `json:"id"`
	Boundary    []model.Coordinate `json:"boundary"`
	Technicians []string           `json:"technicians"`
}

// Contains tests point-in-polygon membership using ray casting. Points on an
// edge count as inside.
func (a ServiceArea) Contains(p model.Coordinate) bool {
	n := len(a.Boundary)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := a.Boundary[i], a.Boundary[j]
		if (vi.Lat > p.Lat) != (vj.Lat > p.Lat) {
			x := (vj.Lon-vi.Lon)*(p.Lat-vi.Lat)/(vj.Lat-vi.Lat) + vi.Lon
			if p.Lon == x {
				return true
			}
			if p.Lon < x {
				inside = !inside
			}
		}
	}
	return inside
}

// Centroid returns the vertex average, used as a coarse anchor for travel
// estimates when no finer location is known.
func (a ServiceArea) Centroid() model.Coordinate {
	var c model.Coordinate
	if len(a.Boundary) == 0 {
		return c
	}
	for _, v := range a.Boundary {
		c.Lat += v.Lat
		c.Lon += v.Lon
	}
	c.Lat /= float64(len(a.Boundary))
	c.Lon /= float64(len(a.Boundary))
	return c
}

// NoCoverageError reports a coordinate outside every registered service area.
// It marks a configuration gap, not a transient fault, and must not be
// retried.
type NoCoverageError struct {
	Location model.Coordinate
}

func (e NoCoverageError) Error() string {
	return fmt.Sprintf("no service area covers (%.5f, %.5f)", e.Location.Lat, e.Location.Lon)
}

// Index resolves coordinates to the service areas covering them. It is
// read-mostly; administrative upserts are the only mutations.
type Index struct {
	mu    sync.RWMutex
	areas map[string]ServiceArea
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{areas: make(map[string]ServiceArea)}
}

// Upsert registers or replaces a service area boundary and roster.
func (idx *Index) Upsert(a ServiceArea) error {
	if a.ID == "" {
		return fmt.Errorf("service area id must not be empty")
	}
	if len(a.Boundary) < 3 {
		return fmt.Errorf("service area %s: boundary needs at least 3 vertices", a.ID)
	}
	idx.mu.Lock()
	idx.areas[a.ID] = a
	idx.mu.Unlock()
	return nil
}

// Get returns the area by ID.
func (idx *Index) Get(id string) (ServiceArea, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	a, ok := idx.areas[id]
	return a, ok
}

// Resolve returns every area whose polygon contains p, sorted by area ID.
// A point outside the service footprint yields a NoCoverageError.
func (idx *Index) Resolve(p model.Coordinate) ([]ServiceArea, error) {
	idx.mu.RLock()
	var hits []ServiceArea
	for _, a := range idx.areas {
		if a.Contains(p) {
			hits = append(hits, a)
		}
	}
	idx.mu.RUnlock()
	if len(hits) == 0 {
		return nil, NoCoverageError{Location: p}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })
	return hits, nil
}

// ResolveIDs is Resolve returning only the area identifiers.
func (idx *Index) ResolveIDs(p model.Coordinate) ([]string, error) {
	areas, err := idx.Resolve(p)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(areas))
	for i, a := range areas {
		ids[i] = a.ID
	}
	return ids, nil
}
