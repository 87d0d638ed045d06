package metrics

import (
	"sort"
	"time"
)

type TypeCount struct {
	Type  string
	Count int
}

type DateRange struct {
	Earliest time.Time
	Latest   time.Time
}

// Summary describes a set of activities as a whole. Averages and extremes
// are nil when there is nothing to average.
type Summary struct {
	TotalActivities      int
	TotalDistanceKm      float64
	TotalElevationGainM  float64
	TotalMovingTimeHours float64
	TotalCalories        float64
	AverageDistanceKm    *float64
	AverageSpeedKmh      *float64
	// MaxSpeedKmh and MinSpeedKmh are the extremes of the per-activity
	// average speed; MinSpeedKmh ignores activities without movement.
	MaxSpeedKmh   *float64
	MinSpeedKmh   *float64
	ActivityTypes []TypeCount
	DateRange     *DateRange
}

func Summarize(activities []Activity) Summary {
	s := Summary{TotalActivities: len(activities), ActivityTypes: []TypeCount{}}
	if len(activities) == 0 {
		return s
	}

	counts := map[string]int{}
	var speedSum float64
	maxSpeed := activities[0].AverageSpeedKmh
	var minSpeed *float64
	earliest, latest := activities[0].StartDateLocal, activities[0].StartDateLocal

	for i := range activities {
		a := &activities[i]
		s.TotalDistanceKm += a.DistanceKm
		s.TotalElevationGainM += a.TotalElevationGain
		s.TotalMovingTimeHours += a.MovingTimeHours
		if a.Calories != nil {
			s.TotalCalories += *a.Calories
		}
		speedSum += a.AverageSpeedKmh
		if a.AverageSpeedKmh > maxSpeed {
			maxSpeed = a.AverageSpeedKmh
		}
		if a.AverageSpeedKmh > 0 && (minSpeed == nil || a.AverageSpeedKmh < *minSpeed) {
			v := a.AverageSpeedKmh
			minSpeed = &v
		}
		if a.StartDateLocal.Before(earliest) {
			earliest = a.StartDateLocal
		}
		if a.StartDateLocal.After(latest) {
			latest = a.StartDateLocal
		}
		counts[a.Type]++
	}

	n := float64(len(activities))
	avgDistance := s.TotalDistanceKm / n
	avgSpeed := speedSum / n
	s.AverageDistanceKm = &avgDistance
	s.AverageSpeedKmh = &avgSpeed
	s.MaxSpeedKmh = &maxSpeed
	s.MinSpeedKmh = minSpeed
	s.DateRange = &DateRange{Earliest: earliest, Latest: latest}

	for t, c := range counts {
		s.ActivityTypes = append(s.ActivityTypes, TypeCount{Type: t, Count: c})
	}
	sort.Slice(s.ActivityTypes, func(i, j int) bool {
		if s.ActivityTypes[i].Count != s.ActivityTypes[j].Count {
			return s.ActivityTypes[i].Count > s.ActivityTypes[j].Count
		}
		return s.ActivityTypes[i].Type < s.ActivityTypes[j].Type
	})
	return s
}

type TypeStats struct {
	Type                string
	Count               int
	DistanceKmSum       float64
	DistanceKmMean      float64
	DistanceKmMax       float64
	MovingTimeHoursSum  float64
	MovingTimeHoursMean float64
	ElevationGainSum    float64
	ElevationGainMean   float64
	AverageSpeedKmhMean float64
	AverageSpeedKmhMax  float64
}

// StatsByType groups activities by type, ordered by type name.
func StatsByType(activities []Activity) []TypeStats {
	byType := map[string]*TypeStats{}
	for i := range activities {
		a := &activities[i]
		ts, ok := byType[a.Type]
		if !ok {
			ts = &TypeStats{Type: a.Type, DistanceKmMax: a.DistanceKm, AverageSpeedKmhMax: a.AverageSpeedKmh}
			byType[a.Type] = ts
		}
		ts.Count++
		ts.DistanceKmSum += a.DistanceKm
		ts.MovingTimeHoursSum += a.MovingTimeHours
		ts.ElevationGainSum += a.TotalElevationGain
		ts.AverageSpeedKmhMean += a.AverageSpeedKmh
		if a.DistanceKm > ts.DistanceKmMax {
			ts.DistanceKmMax = a.DistanceKm
		}
		if a.AverageSpeedKmh > ts.AverageSpeedKmhMax {
			ts.AverageSpeedKmhMax = a.AverageSpeedKmh
		}
	}

	out := make([]TypeStats, 0, len(byType))
	for _, ts := range byType {
		n := float64(ts.Count)
		ts.DistanceKmMean = ts.DistanceKmSum / n
		ts.MovingTimeHoursMean = ts.MovingTimeHoursSum / n
		ts.ElevationGainMean = ts.ElevationGainSum / n
		ts.AverageSpeedKmhMean /= n
		out = append(out, *ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Totals are the sums over a period.
type Totals struct {
	Activities      int
	DistanceKm      float64
	MovingTimeHours float64
	ElevationGainM  float64
}

func (t *Totals) add(a *Activity) {
	t.Activities++
	t.DistanceKm += a.DistanceKm
	t.MovingTimeHours += a.MovingTimeHours
	t.ElevationGainM += a.TotalElevationGain
}

type WeekTotals struct {
	ISOYear int
	Week    int
	Totals
}

// Weekly totals activities per ISO week, oldest first. Weeks are keyed by
// ISO year so the days of week 1 that fall in late December stay together.
func Weekly(activities []Activity) []WeekTotals {
	type key struct{ year, week int }
	weeks := map[key]*WeekTotals{}
	for i := range activities {
		a := &activities[i]
		k := key{a.ISOYear, a.ISOWeek}
		w, ok := weeks[k]
		if !ok {
			w = &WeekTotals{ISOYear: k.year, Week: k.week}
			weeks[k] = w
		}
		w.add(a)
	}

	out := make([]WeekTotals, 0, len(weeks))
	for _, w := range weeks {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ISOYear != out[j].ISOYear {
			return out[i].ISOYear < out[j].ISOYear
		}
		return out[i].Week < out[j].Week
	})
	return out
}

type MonthTotals struct {
	Year  int
	Month time.Month
	Totals
}

// Monthly totals activities per calendar month, oldest first.
func Monthly(activities []Activity) []MonthTotals {
	type key struct {
		year  int
		month time.Month
	}
	months := map[key]*MonthTotals{}
	for i := range activities {
		a := &activities[i]
		k := key{a.Year, a.Month}
		m, ok := months[k]
		if !ok {
			m = &MonthTotals{Year: k.year, Month: k.month}
			months[k] = m
		}
		m.add(a)
	}

	out := make([]MonthTotals, 0, len(months))
	for _, m := range months {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

type DayTotals struct {
	Weekday time.Weekday
	Totals
}

// ByDayOfWeek totals activities per weekday, Monday first. Every day is
// present even when it has no activities.
func ByDayOfWeek(activities []Activity) [7]DayTotals {
	var days [7]DayTotals
	for i := range days {
		days[i].Weekday = time.Weekday((i + 1) % 7)
	}
	for i := range activities {
		a := &activities[i]
		days[(int(a.Weekday)+6)%7].add(a)
	}
	return days
}

// YearElevation is the elevation climbed running and riding in a year.
type YearElevation struct {
	Year int
	Run  float64
	Ride float64
}

// YearlyElevation sums the elevation gain of runs and rides per year,
// oldest first. Other activity types are ignored.
func YearlyElevation(activities []Activity) []YearElevation {
	years := map[int]*YearElevation{}
	for i := range activities {
		a := &activities[i]
		if a.Type != "Run" && a.Type != "Ride" {
			continue
		}
		y, ok := years[a.Year]
		if !ok {
			y = &YearElevation{Year: a.Year}
			years[a.Year] = y
		}
		if a.Type == "Run" {
			y.Run += a.TotalElevationGain
		} else {
			y.Ride += a.TotalElevationGain
		}
	}

	out := make([]YearElevation, 0, len(years))
	for _, y := range years {
		out = append(out, *y)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// Record is the activity holding a personal record.
type Record struct {
	Value      float64
	ActivityID int64
	Name       string
	Date       time.Time
}

type Records struct {
	LongestDistance      *Record
	HighestElevationGain *Record
	LongestTime          *Record
	HighestAverageSpeed  *Record
	FastestPace          *Record
}

// PersonalRecords finds the best activity for each record. On a tie the
// activity that comes first in table order holds the record.
func PersonalRecords(activities []Activity) Records {
	var r Records
	for i := range activities {
		a := &activities[i]
		best(&r.LongestDistance, a, a.DistanceKm, higher)
		best(&r.HighestElevationGain, a, a.TotalElevationGain, higher)
		best(&r.LongestTime, a, a.MovingTimeHours, higher)
		best(&r.HighestAverageSpeed, a, a.AverageSpeedKmh, higher)
		if a.PaceMinPerKm != nil {
			best(&r.FastestPace, a, *a.PaceMinPerKm, lower)
		}
	}
	return r
}

func higher(v, current float64) bool { return v > current }
func lower(v, current float64) bool  { return v < current }

func best(rec **Record, a *Activity, v float64, better func(v, current float64) bool) {
	if *rec != nil && !better(v, (*rec).Value) {
		return
	}
	*rec = &Record{Value: v, ActivityID: a.ID, Name: a.Name, Date: a.Date}
}

// SpeedStats summarise the average speeds of a set of activities.
type SpeedStats struct {
	Activities      int
	AverageSpeedKmh *float64
	MaxSpeedKmh     *float64
	MinSpeedKmh     *float64
}

func speedStats(activities []Activity) SpeedStats {
	s := SpeedStats{Activities: len(activities)}
	if len(activities) == 0 {
		return s
	}
	var sum float64
	maxSpeed := activities[0].MaxSpeedKmh
	minSpeed := activities[0].AverageSpeedKmh
	for i := range activities {
		a := &activities[i]
		sum += a.AverageSpeedKmh
		if a.MaxSpeedKmh > maxSpeed {
			maxSpeed = a.MaxSpeedKmh
		}
		if a.AverageSpeedKmh < minSpeed {
			minSpeed = a.AverageSpeedKmh
		}
	}
	avg := sum / float64(len(activities))
	s.AverageSpeedKmh = &avg
	s.MaxSpeedKmh = &maxSpeed
	s.MinSpeedKmh = &minSpeed
	return s
}

// Comparison sets the month containing now against the month before it for one type.
type Comparison struct {
	Type     string
	Previous SpeedStats
	Current  SpeedStats
}

// CompareMonths compares speeds this month and last month for each of the
// given types. Types without activities in either month are left out.
func CompareMonths(activities []Activity, now time.Time, types ...string) []Comparison {
	cur := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	prev := cur.AddDate(0, -1, 0)

	out := []Comparison{}
	for _, t := range types {
		var curActs, prevActs []Activity
		for _, a := range activities {
			if a.Type != t {
				continue
			}
			switch {
			case a.Year == cur.Year() && a.Month == cur.Month():
				curActs = append(curActs, a)
			case a.Year == prev.Year() && a.Month == prev.Month():
				prevActs = append(prevActs, a)
			}
		}
		if len(curActs) == 0 && len(prevActs) == 0 {
			continue
		}
		out = append(out, Comparison{Type: t, Previous: speedStats(prevActs), Current: speedStats(curActs)})
	}
	return out
}
