package metrics

import (
	"testing"
	"time"

	"github.com/lildude/stravalytics/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func day(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func row(id int64, typ string, start time.Time, distance float64, moving int64) model.ActivityRow {
	return model.ActivityRow{
		ID:             id,
		Name:           typ + " activity",
		Type:           typ,
		StartDate:      start,
		StartDateLocal: start,
		Distance:       distance,
		MovingTime:     moving,
		ElapsedTime:    moving + 60,
	}
}

func TestDerive(t *testing.T) {
	r := row(1, "Run", day(2024, time.March, 4, 7), 5000, 1500)
	r.AverageSpeed = 3.3333333
	r.MaxSpeed = 5
	r.TotalElevationGain = 42

	got := Derive([]model.ActivityRow{r}, Options{})
	require.Len(t, got, 1)
	a := got[0]

	assert.Equal(t, int64(1), a.ID)
	assert.InDelta(t, 5.0, a.DistanceKm, 1e-9)
	assert.InDelta(t, 25.0, a.MovingTimeMin, 1e-9)
	assert.InDelta(t, 25.0/60, a.MovingTimeHours, 1e-9)
	assert.InDelta(t, 26.0, a.ElapsedTimeMin, 1e-9)
	require.NotNil(t, a.PaceMinPerKm)
	assert.InDelta(t, 5.0, *a.PaceMinPerKm, 1e-9)
	assert.InDelta(t, 12.0, a.AverageSpeedKmh, 1e-6)
	assert.InDelta(t, 18.0, a.MaxSpeedKmh, 1e-9)
	require.NotNil(t, a.AveragePaceMinPerKm)
	assert.InDelta(t, 5.0, *a.AveragePaceMinPerKm, 1e-6)

	assert.Equal(t, day(2024, time.March, 4, 0), a.Date)
	assert.Equal(t, 2024, a.Year)
	assert.Equal(t, time.March, a.Month)
	assert.Equal(t, 2024, a.ISOYear)
	assert.Equal(t, 10, a.ISOWeek)
	assert.Equal(t, time.Monday, a.Weekday)
	assert.Equal(t, 7, a.Hour)
}

func TestDeriveZeroDistance(t *testing.T) {
	r := row(1, "WeightTraining", day(2024, time.March, 4, 18), 0, 3600)

	a := Derive([]model.ActivityRow{r}, Options{})[0]
	assert.Nil(t, a.PaceMinPerKm)
	assert.Nil(t, a.AveragePaceMinPerKm)
	assert.Nil(t, a.Calories)
	assert.False(t, a.CaloriesEstimated)
	assert.Equal(t, 0.0, a.DistanceKm)
}

func TestDeriveUsesLocalStart(t *testing.T) {
	// 23:00 UTC on Sunday is already Monday in the athlete's timezone.
	r := row(1, "Run", day(2023, time.December, 31, 23), 1000, 300)
	r.StartDateLocal = time.Date(2024, time.January, 1, 0, 30, 0, 0, time.UTC)

	a := Derive([]model.ActivityRow{r}, Options{})[0]
	assert.Equal(t, 2024, a.Year)
	assert.Equal(t, time.January, a.Month)
	assert.Equal(t, time.Monday, a.Weekday)
	assert.Equal(t, 0, a.Hour)
	assert.Equal(t, 1, a.ISOWeek)
}

func TestCalories(t *testing.T) {
	withRemote := row(1, "Run", day(2024, time.March, 4, 7), 10000, 3000)
	withRemote.Calories = ptr(612.0)
	zeroRemote := row(2, "Run", day(2024, time.March, 5, 7), 10000, 3000)
	zeroRemote.Calories = ptr(0.0)
	ride := row(3, "Ride", day(2024, time.March, 6, 7), 40000, 5400)
	unknown := row(4, "Kitesurf", day(2024, time.March, 7, 7), 12000, 3600)

	got := Derive([]model.ActivityRow{withRemote, zeroRemote, ride, unknown}, Options{WeightKg: 70})

	require.NotNil(t, got[0].Calories)
	assert.Equal(t, 612.0, *got[0].Calories)
	assert.False(t, got[0].CaloriesEstimated)

	require.NotNil(t, got[1].Calories)
	assert.InDelta(t, 1.0*70*10, *got[1].Calories, 1e-9)
	assert.True(t, got[1].CaloriesEstimated)

	require.NotNil(t, got[2].Calories)
	assert.InDelta(t, 25.0*40, *got[2].Calories, 1e-9)
	assert.True(t, got[2].CaloriesEstimated)

	assert.Nil(t, got[3].Calories)
}

type fixedEstimator float64

func (f fixedEstimator) Estimate(*model.ActivityRow, float64) (float64, bool) {
	return float64(f), true
}

func TestCustomEstimator(t *testing.T) {
	got := Derive([]model.ActivityRow{row(1, "Run", day(2024, time.March, 4, 7), 0, 0)}, Options{Estimator: fixedEstimator(99)})
	require.NotNil(t, got[0].Calories)
	assert.Equal(t, 99.0, *got[0].Calories)
}

func TestDefaultEstimatorWithoutWeight(t *testing.T) {
	kcal, ok := DefaultEstimator().Estimate(&model.ActivityRow{Type: "Run", Distance: 5000}, 0)
	assert.True(t, ok)
	assert.InDelta(t, 300.0, kcal, 1e-9)
}

func TestFilters(t *testing.T) {
	acts := Derive([]model.ActivityRow{
		row(1, "Run", day(2024, time.March, 1, 7), 5000, 1500),
		row(2, "Ride", day(2024, time.March, 2, 7), 20000, 3600),
		row(3, "Walk", day(2024, time.March, 3, 7), 3000, 1800),
		row(4, "Run", day(2024, time.March, 4, 7), 8000, 2400),
	}, Options{})

	runs := FilterByType(acts, "Run")
	require.Len(t, runs, 2)
	assert.Equal(t, int64(1), runs[0].ID)
	assert.Equal(t, int64(4), runs[1].ID)

	assert.Len(t, FilterByType(acts, "Run", "Walk"), 3)
	assert.Empty(t, FilterByType(acts, "Swim"))

	between := FilterByDateRange(acts, day(2024, time.March, 2, 7), day(2024, time.March, 3, 7))
	require.Len(t, between, 2)
	assert.Equal(t, int64(2), between[0].ID)

	assert.Len(t, FilterByDateRange(acts, time.Time{}, day(2024, time.March, 2, 0)), 1)
	assert.Len(t, FilterByDateRange(acts, time.Time{}, time.Time{}), 4)
}

func TestRecent(t *testing.T) {
	acts := Derive([]model.ActivityRow{
		row(1, "Run", day(2024, time.March, 1, 7), 5000, 1500),
		row(2, "Ride", day(2024, time.March, 3, 7), 20000, 3600),
		row(3, "Walk", day(2024, time.March, 3, 7), 3000, 1800),
		row(4, "Run", day(2024, time.March, 2, 7), 8000, 2400),
	}, Options{})

	got := Recent(acts, 3)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{2, 3, 4}, []int64{got[0].ID, got[1].ID, got[2].ID})
	assert.Len(t, Recent(acts, 10), 4)
	assert.Equal(t, int64(1), acts[0].ID, "input order is left alone")
}
