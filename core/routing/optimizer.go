package routing

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/logger"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/model"
)

// Stop is one job location a technician has to visit.
type Stop struct {
	WorkOrderID     string           `json:"work_order_id"`
	Location        model.Coordinate `json:"location"`
	ServiceDuration time.Duration    `json:"service_duration"`
}

// PlannedStop is a stop placed on a route with its arrival estimate.
type PlannedStop struct {
	Stop
	Travel Estimate  `json:"travel"`
	ETA    time.Time `json:"eta"`
}

// Route is an ordered visit plan for one technician working period.
type Route struct {
	TechnicianID    string        `json:"technician_id"`
	Stops           []PlannedStop `json:"stops"`
	TotalDistanceKm float64       `json:"total_distance_km"`
	TotalTravel     time.Duration `json:"total_travel"`
}

// Optimizer orders stops to approximately minimize total travel. It builds a
// route with a greedy nearest-neighbor pass and then applies bounded pairwise
// swap improvement. Exact VRP solving is out of scope: per-technician daily
// stop counts are small and routes are recomputed whenever stops change or
// the live position diverges from plan.
type Optimizer struct {
	est       TravelEstimator
	maxPasses int
	log       logger.Logger
}

// NewOptimizer creates an Optimizer. maxPasses bounds the improvement loop;
// values below 1 default to 8.
func NewOptimizer(est TravelEstimator, maxPasses int, log logger.Logger) *Optimizer {
	if maxPasses < 1 {
		maxPasses = 8
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Optimizer{est: est, maxPasses: maxPasses, log: log}
}

// Optimize orders stops for the technician starting from start at departAt
// and returns the route with per-stop ETAs.
func (o *Optimizer) Optimize(technicianID string, start model.Coordinate, departAt time.Time, stops []Stop) (Route, error) {
	if technicianID == "" {
		return Route{}, fmt.Errorf("optimize route: technician id must not be empty")
	}
	route := Route{TechnicianID: technicianID, Stops: []PlannedStop{}}
	if len(stops) == 0 {
		return route, nil
	}

	// Row 0 is the start position, rows 1..n are the stops.
	d := o.distanceMatrix(start, stops)
	order := nearestNeighborOrder(d, stops)
	order = o.improve(d, order)

	cur := 0
	at := departAt
	for _, idx := range order {
		est := o.est.Estimate(pointAt(start, stops, cur), stops[idx].Location)
		at = at.Add(est.Duration)
		route.Stops = append(route.Stops, PlannedStop{Stop: stops[idx], Travel: est, ETA: at})
		at = at.Add(stops[idx].ServiceDuration)
		route.TotalDistanceKm += est.DistanceKm
		route.TotalTravel += est.Duration
		cur = idx + 1
	}
	return route, nil
}

// distanceMatrix precomputes pairwise distances including the start point so
// the improvement passes never re-estimate the same leg.
func (o *Optimizer) distanceMatrix(start model.Coordinate, stops []Stop) *mat.Dense {
	n := len(stops) + 1
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			d.Set(i, j, o.est.Estimate(pointAt(start, stops, i), pointAt(start, stops, j)).DistanceKm)
		}
	}
	return d
}

func pointAt(start model.Coordinate, stops []Stop, idx int) model.Coordinate {
	if idx == 0 {
		return start
	}
	return stops[idx-1].Location
}

// nearestNeighborOrder greedily picks the closest remaining stop. Ties break
// on work-order ID for determinism.
func nearestNeighborOrder(d *mat.Dense, stops []Stop) []int {
	remaining := make(map[int]struct{}, len(stops))
	for i := range stops {
		remaining[i] = struct{}{}
	}
	order := make([]int, 0, len(stops))
	cur := 0
	for len(remaining) > 0 {
		best := -1
		bestDist := 0.0
		for idx := range remaining {
			dist := d.At(cur, idx+1)
			if best == -1 || dist < bestDist ||
				(dist == bestDist && stops[idx].WorkOrderID < stops[best].WorkOrderID) {
				best = idx
				bestDist = dist
			}
		}
		order = append(order, best)
		delete(remaining, best)
		cur = best + 1
	}
	return order
}

// improve applies pairwise stop swaps, keeping a swap only when it shortens
// the route, until a pass yields no improvement or maxPasses is reached.
func (o *Optimizer) improve(d *mat.Dense, order []int) []int {
	cost := routeCost(d, order)
	for pass := 0; pass < o.maxPasses; pass++ {
		improved := false
		for i := 0; i < len(order)-1; i++ {
			for j := i + 1; j < len(order); j++ {
				order[i], order[j] = order[j], order[i]
				if c := routeCost(d, order); c < cost {
					cost = c
					improved = true
				} else {
					order[i], order[j] = order[j], order[i]
				}
			}
		}
		if !improved {
			break
		}
		o.log.Debugf("route improvement pass %d, cost %.2f km", pass+1, cost)
	}
	return order
}

func routeCost(d *mat.Dense, order []int) float64 {
	cost := 0.0
	cur := 0
	for _, idx := range order {
		cost += d.At(cur, idx+1)
		cur = idx + 1
	}
	return cost
}
