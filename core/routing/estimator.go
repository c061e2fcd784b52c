package routing

import (
	"time"

	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/model"
)

// Estimate is a travel distance and duration between two points.
type Estimate struct {
	DistanceKm float64       `json:"distance_km"`
	Duration   time.Duration `json:"duration"`
}

// TravelEstimator produces travel estimates between coordinates. The core
// only requires a stable metric that approximately satisfies the triangle
// inequality, not physical accuracy; a road-network backend can be plugged in
// behind this interface.
type TravelEstimator interface {
	Estimate(from, to model.Coordinate) Estimate
}

// HaversineEstimator derives duration from great-circle distance at a fixed
// average speed.
type HaversineEstimator struct {
	SpeedKmh float64
}

// NewHaversineEstimator returns an estimator with the given average speed.
// Non-positive speeds default to 40 km/h.
func NewHaversineEstimator(speedKmh float64) HaversineEstimator {
	if speedKmh <= 0 {
		speedKmh = 40
	}
	return HaversineEstimator{SpeedKmh: speedKmh}
}

// Estimate implements TravelEstimator.
func (h HaversineEstimator) Estimate(from, to model.Coordinate) Estimate {
	km := from.DistanceKm(to)
	return Estimate{
		DistanceKm: km,
		Duration:   time.Duration(km / h.SpeedKmh * float64(time.Hour)),
	}
}
