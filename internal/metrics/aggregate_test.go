package metrics

import (
	"testing"
	"time"

	"github.com/lildude/stravalytics/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() []Activity {
	rows := []model.ActivityRow{
		row(1, "Run", day(2024, time.March, 4, 7), 5000, 1500),   // Monday, week 10
		row(2, "Ride", day(2024, time.March, 6, 17), 40000, 5400), // Wednesday, week 10
		row(3, "Run", day(2024, time.March, 11, 7), 10000, 3000),  // Monday, week 11
		row(4, "Walk", day(2024, time.April, 7, 10), 0, 1200),     // Sunday, week 14
		row(5, "Run", day(2023, time.June, 1, 7), 10000, 2700),    // Thursday
	}
	rows[0].AverageSpeed, rows[0].TotalElevationGain = 10.0/3, 40
	rows[1].AverageSpeed, rows[1].TotalElevationGain = 40000.0/5400, 350
	rows[2].AverageSpeed, rows[2].TotalElevationGain = 10.0/3, 80
	rows[3].AverageSpeed = 0
	rows[4].AverageSpeed, rows[4].TotalElevationGain = 10000.0/2700, 350
	return Derive(rows, Options{})
}

func TestSummarize(t *testing.T) {
	s := Summarize(sample())

	assert.Equal(t, 5, s.TotalActivities)
	assert.InDelta(t, 65.0, s.TotalDistanceKm, 1e-9)
	assert.InDelta(t, 820.0, s.TotalElevationGainM, 1e-9)
	assert.InDelta(t, 13800.0/3600, s.TotalMovingTimeHours, 1e-9)
	require.NotNil(t, s.AverageDistanceKm)
	assert.InDelta(t, 13.0, *s.AverageDistanceKm, 1e-9)
	require.NotNil(t, s.MaxSpeedKmh)
	assert.InDelta(t, 40000.0/5400*3.6, *s.MaxSpeedKmh, 1e-9)
	require.NotNil(t, s.MinSpeedKmh)
	assert.InDelta(t, 12.0, *s.MinSpeedKmh, 1e-9)

	assert.Equal(t, []TypeCount{{"Run", 3}, {"Ride", 1}, {"Walk", 1}}, s.ActivityTypes)
	require.NotNil(t, s.DateRange)
	assert.Equal(t, day(2023, time.June, 1, 7), s.DateRange.Earliest)
	assert.Equal(t, day(2024, time.April, 7, 10), s.DateRange.Latest)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0, s.TotalActivities)
	assert.Nil(t, s.AverageDistanceKm)
	assert.Nil(t, s.AverageSpeedKmh)
	assert.Nil(t, s.MinSpeedKmh)
	assert.Nil(t, s.DateRange)
	assert.Empty(t, s.ActivityTypes)
}

func TestStatsByType(t *testing.T) {
	got := StatsByType(sample())
	require.Len(t, got, 3)
	assert.Equal(t, []string{"Ride", "Run", "Walk"}, []string{got[0].Type, got[1].Type, got[2].Type})

	run := got[1]
	assert.Equal(t, 3, run.Count)
	assert.InDelta(t, 25.0, run.DistanceKmSum, 1e-9)
	assert.InDelta(t, 25.0/3, run.DistanceKmMean, 1e-9)
	assert.InDelta(t, 10.0, run.DistanceKmMax, 1e-9)
	assert.InDelta(t, 470.0, run.ElevationGainSum, 1e-9)
	assert.InDelta(t, 12.0*2/3+10000.0/2700*3.6/3, run.AverageSpeedKmhMean, 1e-9)
}

func TestWeekly(t *testing.T) {
	got := Weekly(sample())
	require.Len(t, got, 4)

	assert.Equal(t, 2023, got[0].ISOYear)
	assert.Equal(t, 22, got[0].Week)

	assert.Equal(t, 2024, got[1].ISOYear)
	assert.Equal(t, 10, got[1].Week)
	assert.Equal(t, 2, got[1].Activities)
	assert.InDelta(t, 45.0, got[1].DistanceKm, 1e-9)
	assert.InDelta(t, 390.0, got[1].ElevationGainM, 1e-9)
	assert.InDelta(t, 6900.0/3600, got[1].MovingTimeHours, 1e-9)

	assert.Equal(t, 11, got[2].Week)
	assert.Equal(t, 14, got[3].Week)
}

func TestWeeklyAcrossNewYear(t *testing.T) {
	acts := Derive([]model.ActivityRow{
		row(1, "Run", day(2024, time.December, 30, 7), 5000, 1500),
		row(2, "Run", day(2025, time.January, 2, 7), 5000, 1500),
	}, Options{})

	got := Weekly(acts)
	require.Len(t, got, 1)
	assert.Equal(t, 2025, got[0].ISOYear)
	assert.Equal(t, 1, got[0].Week)
	assert.Equal(t, 2, got[0].Activities)
}

func TestMonthly(t *testing.T) {
	got := Monthly(sample())
	require.Len(t, got, 3)
	assert.Equal(t, MonthTotals{Year: 2023, Month: time.June, Totals: Totals{Activities: 1, DistanceKm: 10, MovingTimeHours: 0.75, ElevationGainM: 350}}, got[0])
	assert.Equal(t, time.March, got[1].Month)
	assert.Equal(t, 3, got[1].Activities)
	assert.Equal(t, time.April, got[2].Month)
}

func TestByDayOfWeek(t *testing.T) {
	got := ByDayOfWeek(sample())

	assert.Equal(t, time.Monday, got[0].Weekday)
	assert.Equal(t, time.Sunday, got[6].Weekday)
	assert.Equal(t, 2, got[0].Activities)
	assert.InDelta(t, 15.0, got[0].DistanceKm, 1e-9)
	assert.Equal(t, 0, got[1].Activities)
	assert.Equal(t, 1, got[2].Activities)
	assert.Equal(t, 1, got[3].Activities)
	assert.Equal(t, 1, got[6].Activities)
}

func TestYearlyElevation(t *testing.T) {
	got := YearlyElevation(sample())
	assert.Equal(t, []YearElevation{
		{Year: 2023, Run: 350},
		{Year: 2024, Run: 120, Ride: 350},
	}, got)
}

func TestPersonalRecords(t *testing.T) {
	r := PersonalRecords(sample())

	require.NotNil(t, r.LongestDistance)
	assert.Equal(t, int64(2), r.LongestDistance.ActivityID)
	assert.InDelta(t, 40.0, r.LongestDistance.Value, 1e-9)

	// Activities 2 and 5 both climbed 350m; the first in table order wins.
	require.NotNil(t, r.HighestElevationGain)
	assert.Equal(t, int64(2), r.HighestElevationGain.ActivityID)

	require.NotNil(t, r.LongestTime)
	assert.Equal(t, int64(2), r.LongestTime.ActivityID)

	require.NotNil(t, r.HighestAverageSpeed)
	assert.Equal(t, int64(2), r.HighestAverageSpeed.ActivityID)

	// The walk has no distance and so no pace.
	require.NotNil(t, r.FastestPace)
	assert.Equal(t, int64(2), r.FastestPace.ActivityID)
	assert.Equal(t, day(2024, time.March, 6, 0), r.FastestPace.Date)

	runs := PersonalRecords(FilterByType(sample(), "Run"))
	require.NotNil(t, runs.FastestPace)
	assert.Equal(t, int64(5), runs.FastestPace.ActivityID)
	assert.InDelta(t, 4.5, runs.FastestPace.Value, 1e-9)
}

func TestPersonalRecordsTies(t *testing.T) {
	acts := Derive([]model.ActivityRow{
		row(7, "Run", day(2024, time.March, 1, 7), 5000, 1500),
		row(3, "Run", day(2024, time.March, 2, 7), 5000, 1500),
	}, Options{})

	r := PersonalRecords(acts)
	assert.Equal(t, int64(7), r.LongestDistance.ActivityID)
	assert.Equal(t, int64(7), r.LongestTime.ActivityID)
	assert.Equal(t, int64(7), r.FastestPace.ActivityID)
}

func TestPersonalRecordsEmpty(t *testing.T) {
	assert.Equal(t, Records{}, PersonalRecords(nil))
}

func TestCompareMonths(t *testing.T) {
	rows := []model.ActivityRow{
		row(1, "Ride", day(2024, time.February, 10, 7), 30000, 3600),
		row(2, "Ride", day(2024, time.March, 2, 7), 40000, 3600),
		row(3, "Ride", day(2024, time.March, 9, 7), 20000, 3600),
		row(4, "Walk", day(2023, time.March, 9, 7), 5000, 3600),
	}
	rows[0].AverageSpeed, rows[0].MaxSpeed = 30000.0/3600, 12
	rows[1].AverageSpeed, rows[1].MaxSpeed = 40000.0/3600, 15
	rows[2].AverageSpeed, rows[2].MaxSpeed = 20000.0/3600, 10
	acts := Derive(rows, Options{})

	got := CompareMonths(acts, day(2024, time.March, 20, 12), "Ride", "Walk")
	require.Len(t, got, 1)
	c := got[0]
	assert.Equal(t, "Ride", c.Type)
	assert.Equal(t, 1, c.Previous.Activities)
	assert.Equal(t, 2, c.Current.Activities)
	require.NotNil(t, c.Current.AverageSpeedKmh)
	assert.InDelta(t, 30.0, *c.Current.AverageSpeedKmh, 1e-9)
	assert.InDelta(t, 54.0, *c.Current.MaxSpeedKmh, 1e-9)
	assert.InDelta(t, 20.0, *c.Current.MinSpeedKmh, 1e-9)

	jan := CompareMonths(acts, day(2024, time.January, 5, 0), "Ride")
	assert.Empty(t, jan)
}
