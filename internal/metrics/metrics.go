// Package metrics derives per-activity figures from the activity table and
// rolls them up into summaries, period totals and personal records.
package metrics

import (
	"sort"
	"time"

	"github.com/lildude/stravalytics/internal/model"
)

// Activity is a table row with its derived figures. Nil pointers mark values
// that cannot be derived, e.g. a pace for an activity with no distance.
type Activity struct {
	model.ActivityRow

	DistanceKm          float64
	MovingTimeMin       float64
	MovingTimeHours     float64
	ElapsedTimeMin      float64
	PaceMinPerKm        *float64
	AverageSpeedKmh     float64
	MaxSpeedKmh         float64
	AveragePaceMinPerKm *float64

	// Calendar fields are taken from the local start time.
	Date    time.Time
	Year    int
	Month   time.Month
	ISOYear int
	ISOWeek int
	Weekday time.Weekday
	Hour    int

	Calories          *float64
	CaloriesEstimated bool
}

type Options struct {
	// WeightKg is the athlete's weight for calorie estimates; zero if unknown.
	WeightKg  float64
	Estimator CalorieEstimator
}

// Derive computes the derived figures of every row, keeping table order.
func Derive(rows []model.ActivityRow, opts Options) []Activity {
	if opts.Estimator == nil {
		opts.Estimator = DefaultEstimator()
	}

	out := make([]Activity, 0, len(rows))
	for i := range rows {
		out = append(out, derive(&rows[i], opts))
	}
	return out
}

func derive(row *model.ActivityRow, opts Options) Activity {
	a := Activity{
		ActivityRow:     *row,
		DistanceKm:      row.Distance / 1000,
		MovingTimeMin:   float64(row.MovingTime) / 60,
		MovingTimeHours: float64(row.MovingTime) / 3600,
		ElapsedTimeMin:  float64(row.ElapsedTime) / 60,
		AverageSpeedKmh: row.AverageSpeed * 3.6,
		MaxSpeedKmh:     row.MaxSpeed * 3.6,
	}

	if a.DistanceKm > 0 {
		pace := a.MovingTimeMin / a.DistanceKm
		a.PaceMinPerKm = &pace
	}
	if row.AverageSpeed > 0 {
		pace := 1000 / (row.AverageSpeed * 60)
		a.AveragePaceMinPerKm = &pace
	}

	local := row.StartDateLocal
	a.Date = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	a.Year = local.Year()
	a.Month = local.Month()
	a.ISOYear, a.ISOWeek = local.ISOWeek()
	a.Weekday = local.Weekday()
	a.Hour = local.Hour()

	switch {
	case row.Calories != nil && *row.Calories > 0:
		kcal := *row.Calories
		a.Calories = &kcal
	default:
		if kcal, ok := opts.Estimator.Estimate(row, opts.WeightKg); ok {
			a.Calories = &kcal
			a.CaloriesEstimated = true
		}
	}

	return a
}

// FilterByType keeps activities of any of the given types.
func FilterByType(activities []Activity, types ...string) []Activity {
	want := make(map[string]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	out := []Activity{}
	for _, a := range activities {
		if want[a.Type] {
			out = append(out, a)
		}
	}
	return out
}

// FilterByDateRange keeps activities whose local start lies within
// [start, end]. A zero bound is open.
func FilterByDateRange(activities []Activity, start, end time.Time) []Activity {
	out := []Activity{}
	for _, a := range activities {
		t := a.StartDateLocal
		if !start.IsZero() && t.Before(start) {
			continue
		}
		if !end.IsZero() && t.After(end) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Recent returns up to n activities, most recent local start first. Activities
// starting at the same time keep their table order.
func Recent(activities []Activity, n int) []Activity {
	out := make([]Activity, len(activities))
	copy(out, activities)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartDateLocal.After(out[j].StartDateLocal)
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
