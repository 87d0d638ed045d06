package metrics

import "github.com/lildude/stravalytics/internal/model"

// CalorieEstimator estimates the energy of an activity the remote reported
// no calories for. It reports false when it has no estimate.
type CalorieEstimator interface {
	Estimate(row *model.ActivityRow, weightKg float64) (float64, bool)
}

// PerDistanceEstimator scales distance by a per-type rate. Types in PerKgKm
// use the athlete's weight when it is known; otherwise PerKm is used.
type PerDistanceEstimator struct {
	PerKgKm map[string]float64
	PerKm   map[string]float64
}

// DefaultEstimator returns rough rule-of-thumb rates. They are placeholders
// and should be replaced by a real model where accuracy matters.
func DefaultEstimator() *PerDistanceEstimator {
	return &PerDistanceEstimator{
		PerKgKm: map[string]float64{
			"Run":      1.0,
			"TrailRun": 1.1,
			"Walk":     0.5,
			"Hike":     0.6,
		},
		PerKm: map[string]float64{
			"Run":         60,
			"TrailRun":    65,
			"Walk":        35,
			"Hike":        40,
			"Ride":        25,
			"VirtualRide": 25,
			"EBikeRide":   12,
			"Swim":        250,
		},
	}
}

func (e *PerDistanceEstimator) Estimate(row *model.ActivityRow, weightKg float64) (float64, bool) {
	km := row.Distance / 1000
	if km <= 0 {
		return 0, false
	}
	if rate, ok := e.PerKgKm[row.Type]; ok && weightKg > 0 {
		return rate * weightKg * km, true
	}
	if rate, ok := e.PerKm[row.Type]; ok {
		return rate * km, true
	}
	return 0, false
}
