package routing

import (
	"testing"
	"time"

	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/model"
)

func coord(lat, lon float64) model.Coordinate { return model.Coordinate{Lat: lat, Lon: lon} }

func naiveCost(est TravelEstimator, start model.Coordinate, stops []Stop) float64 {
	cost := 0.0
	cur := start
	for _, s := range stops {
		cost += est.Estimate(cur, s.Location).DistanceKm
		cur = s.Location
	}
	return cost
}

func TestOptimizeEmpty(t *testing.T) {
	o := NewOptimizer(NewHaversineEstimator(40), 0, nil)
	r, err := o.Optimize("t1", coord(0, 0), time.Now(), nil)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if len(r.Stops) != 0 || r.TotalDistanceKm != 0 {
		t.Fatalf("expected empty route, got %+v", r)
	}
}

func TestOptimizeNoWorseThanInputOrder(t *testing.T) {
	est := NewHaversineEstimator(40)
	o := NewOptimizer(est, 8, nil)
	// Deliberately shuffled: input order zig-zags.
	stops := []Stop{
		{WorkOrderID: "wo-far", Location: coord(0.9, 0.9)},
		{WorkOrderID: "wo-near", Location: coord(0.1, 0.1)},
		{WorkOrderID: "wo-mid", Location: coord(0.5, 0.5)},
		{WorkOrderID: "wo-out", Location: coord(0.2, 0.8)},
	}
	r, err := o.Optimize("t1", coord(0, 0), time.Now(), stops)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if naive := naiveCost(est, coord(0, 0), stops); r.TotalDistanceKm > naive {
		t.Fatalf("optimized cost %.3f worse than naive ordering %.3f", r.TotalDistanceKm, naive)
	}
	if r.Stops[0].WorkOrderID != "wo-near" {
		t.Fatalf("expected nearest stop first, got %s", r.Stops[0].WorkOrderID)
	}
}

func TestOptimizeETAsIncludeServiceTime(t *testing.T) {
	est := NewHaversineEstimator(40)
	o := NewOptimizer(est, 8, nil)
	depart := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	stops := []Stop{
		{WorkOrderID: "a", Location: coord(0.1, 0), ServiceDuration: time.Hour},
		{WorkOrderID: "b", Location: coord(0.2, 0), ServiceDuration: 30 * time.Minute},
	}
	r, err := o.Optimize("t1", coord(0, 0), depart, stops)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if len(r.Stops) != 2 {
		t.Fatalf("expected 2 stops, got %d", len(r.Stops))
	}
	firstETA := depart.Add(r.Stops[0].Travel.Duration)
	if !r.Stops[0].ETA.Equal(firstETA) {
		t.Fatalf("first ETA %v, want %v", r.Stops[0].ETA, firstETA)
	}
	// Second ETA must come after the first stop's full service duration.
	minSecond := r.Stops[0].ETA.Add(r.Stops[0].ServiceDuration)
	if !r.Stops[1].ETA.After(minSecond) {
		t.Fatalf("second ETA %v should be after %v", r.Stops[1].ETA, minSecond)
	}
}

func TestOptimizeDeterministicTieBreak(t *testing.T) {
	est := NewHaversineEstimator(40)
	o := NewOptimizer(est, 8, nil)
	// Two stops at the same location: order must be stable by work-order ID.
	stops := []Stop{
		{WorkOrderID: "wo-b", Location: coord(0.3, 0.3)},
		{WorkOrderID: "wo-a", Location: coord(0.3, 0.3)},
	}
	for i := 0; i < 5; i++ {
		r, err := o.Optimize("t1", coord(0, 0), time.Now(), stops)
		if err != nil {
			t.Fatalf("optimize: %v", err)
		}
		if r.Stops[0].WorkOrderID != "wo-a" {
			t.Fatalf("run %d: expected wo-a first, got %s", i, r.Stops[0].WorkOrderID)
		}
	}
}
