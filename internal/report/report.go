// Package report renders dashboard views as plain-text tables.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/lildude/stravalytics/internal/fetcher"
	"github.com/lildude/stravalytics/internal/metrics"
	"github.com/lildude/stravalytics/internal/strava"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultAthleteName is shown when the athlete has no first name.
const DefaultAthleteName = "Athlete"

const dateLayout = "2006-01-02"

type Report struct {
	w     io.Writer
	p     *message.Printer
	title cases.Caser
	upper cases.Caser
}

func New(w io.Writer) *Report {
	return &Report{
		w:     w,
		p:     message.NewPrinter(language.English),
		title: cases.Title(language.English),
		upper: cases.Upper(language.English),
	}
}

func (r *Report) heading(s string) {
	r.p.Fprintf(r.w, "\n%s\n", r.title.String(s))
}

func (r *Report) table(columns ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	for i, c := range columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, r.upper.String(c))
	}
	fmt.Fprintln(tw)
	return tw
}

func (r *Report) row(tw io.Writer, cells ...string) {
	for i, c := range cells {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, c)
	}
	fmt.Fprintln(tw)
}

func (r *Report) num(v float64, decimals int) string {
	return r.p.Sprint(number(v, decimals))
}

func (r *Report) opt(v *float64, decimals int) string {
	if v == nil {
		return "-"
	}
	return r.num(*v, decimals)
}

func (r *Report) count(n int) string {
	return r.p.Sprintf("%d", n)
}

// number rounds v so the printer's grouping applies to a fixed precision.
func number(v float64, decimals int) any {
	if decimals == 0 {
		return int64(math.Round(v))
	}
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}

// pace formats minutes per km as m:ss.
func pace(v *float64) string {
	if v == nil || math.IsInf(*v, 0) || math.IsNaN(*v) {
		return "-"
	}
	secs := int(math.Round(*v * 60))
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// duration formats seconds as h:mm:ss.
func duration(secs int64) string {
	d := time.Duration(secs) * time.Second
	return fmt.Sprintf("%d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

// Greeting welcomes the athlete by first name.
func (r *Report) Greeting(a *strava.Athlete) error {
	name, ok := a.FirstName()
	if !ok {
		name = DefaultAthleteName
	}
	_, err := fmt.Fprintf(r.w, "Welcome, %s!\n", name)
	return err
}

func (r *Report) Athlete(a *strava.Athlete) error {
	if err := r.Greeting(a); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	r.row(tw, "ID", fmt.Sprint(a.ID))
	if a.Username != "" {
		r.row(tw, "Username", a.Username)
	}
	if loc := join(a.City, a.Country); loc != "" {
		r.row(tw, "Location", loc)
	}
	if w, ok := a.WeightKg(); ok {
		r.row(tw, "Weight", r.num(w, 1)+" kg")
	}
	return tw.Flush()
}

// Activity shows the details of a single activity.
func (r *Report) Activity(a *strava.Activity) error {
	r.p.Fprintf(r.w, "%s\n", a.Name)
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	r.row(tw, "ID", fmt.Sprint(a.ID))
	r.row(tw, "Type", a.Type)
	r.row(tw, "Date", a.StartDateLocal.Format(time.DateTime))
	r.row(tw, "Distance", r.num(a.Distance/1000, 2)+" km")
	r.row(tw, "Moving time", duration(a.MovingTime))
	r.row(tw, "Elapsed time", duration(a.ElapsedTime))
	r.row(tw, "Elevation gain", r.num(a.TotalElevationGain, 0)+" m")
	r.row(tw, "Speed", r.num(a.AverageSpeed*3.6, 1)+" km/h avg, "+r.num(a.MaxSpeed*3.6, 1)+" km/h max")
	if a.AverageHeartrate != nil {
		r.row(tw, "Heart rate", r.num(*a.AverageHeartrate, 0)+" bpm avg, "+r.opt(a.MaxHeartrate, 0)+" bpm max")
	}
	if a.Calories != nil {
		r.row(tw, "Calories", r.num(*a.Calories, 0)+" kcal")
	}
	r.row(tw, "Kudos", r.count(a.KudosCount))
	return tw.Flush()
}

func join(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + ", " + b
}

// Fetched reports how many activities are now cached.
func (r *Report) Fetched(n int) error {
	_, err := r.p.Fprintf(r.w, "%d activities cached\n", n)
	return err
}

func (r *Report) Summary(s metrics.Summary) error {
	if s.TotalActivities == 0 {
		_, err := fmt.Fprintln(r.w, "No activities.")
		return err
	}
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	r.row(tw, "Activities", r.count(s.TotalActivities))
	r.row(tw, "Distance", r.num(s.TotalDistanceKm, 1)+" km")
	r.row(tw, "Moving time", r.num(s.TotalMovingTimeHours, 1)+" h")
	r.row(tw, "Elevation gain", r.num(s.TotalElevationGainM, 0)+" m")
	if s.TotalCalories > 0 {
		r.row(tw, "Calories", r.num(s.TotalCalories, 0)+" kcal")
	}
	r.row(tw, "Average distance", r.opt(s.AverageDistanceKm, 2)+" km")
	r.row(tw, "Average speed", r.opt(s.AverageSpeedKmh, 1)+" km/h")
	r.row(tw, "Speed range", r.opt(s.MinSpeedKmh, 1)+" to "+r.opt(s.MaxSpeedKmh, 1)+" km/h")
	if s.DateRange != nil {
		r.row(tw, "Dates", s.DateRange.Earliest.Format(dateLayout)+" to "+s.DateRange.Latest.Format(dateLayout))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	r.heading("activity types")
	tw = r.table("type", "count")
	for _, t := range s.ActivityTypes {
		r.row(tw, t.Type, r.count(t.Count))
	}
	return tw.Flush()
}

func (r *Report) Types(stats []metrics.TypeStats) error {
	tw := r.table("type", "count", "km", "avg km", "max km", "hours", "elevation m", "avg km/h", "max km/h")
	for _, s := range stats {
		r.row(tw, s.Type, r.count(s.Count),
			r.num(s.DistanceKmSum, 1), r.num(s.DistanceKmMean, 1), r.num(s.DistanceKmMax, 1),
			r.num(s.MovingTimeHoursSum, 1), r.num(s.ElevationGainSum, 0),
			r.num(s.AverageSpeedKmhMean, 1), r.num(s.AverageSpeedKmhMax, 1))
	}
	return tw.Flush()
}

func (r *Report) totals(tw io.Writer, label string, t metrics.Totals) {
	r.row(tw, label, r.count(t.Activities), r.num(t.DistanceKm, 1), r.num(t.MovingTimeHours, 1), r.num(t.ElevationGainM, 0))
}

func (r *Report) Weekly(weeks []metrics.WeekTotals) error {
	tw := r.table("week", "activities", "km", "hours", "elevation m")
	for _, w := range weeks {
		r.totals(tw, fmt.Sprintf("%d-W%02d", w.ISOYear, w.Week), w.Totals)
	}
	return tw.Flush()
}

func (r *Report) Monthly(months []metrics.MonthTotals) error {
	tw := r.table("month", "activities", "km", "hours", "elevation m")
	for _, m := range months {
		r.totals(tw, fmt.Sprintf("%d-%02d", m.Year, int(m.Month)), m.Totals)
	}
	return tw.Flush()
}

func (r *Report) Days(days [7]metrics.DayTotals) error {
	tw := r.table("day", "activities", "km", "hours", "elevation m")
	for _, d := range days {
		r.totals(tw, d.Weekday.String(), d.Totals)
	}
	return tw.Flush()
}

func (r *Report) Records(rec metrics.Records) error {
	tw := r.table("record", "value", "activity", "date")
	add := func(label string, v *metrics.Record, value func(float64) string) {
		if v == nil {
			r.row(tw, label, "-", "", "")
			return
		}
		r.row(tw, label, value(v.Value), v.Name, v.Date.Format(dateLayout))
	}
	add("Longest distance", rec.LongestDistance, func(v float64) string { return r.num(v, 2) + " km" })
	add("Most elevation", rec.HighestElevationGain, func(v float64) string { return r.num(v, 0) + " m" })
	add("Longest time", rec.LongestTime, func(v float64) string { return r.num(v, 2) + " h" })
	add("Fastest average", rec.HighestAverageSpeed, func(v float64) string { return r.num(v, 1) + " km/h" })
	add("Fastest pace", rec.FastestPace, func(v float64) string { return pace(&v) + " /km" })
	return tw.Flush()
}

func (r *Report) Recent(acts []metrics.Activity) error {
	tw := r.table("date", "type", "name", "km", "time", "pace", "km/h", "kcal")
	for _, a := range acts {
		kcal := r.opt(a.Calories, 0)
		if a.CaloriesEstimated {
			kcal = "~" + kcal
		}
		r.row(tw, a.StartDateLocal.Format(dateLayout), a.Type, a.Name,
			r.num(a.DistanceKm, 2), duration(a.MovingTime), pace(a.PaceMinPerKm),
			r.num(a.AverageSpeedKmh, 1), kcal)
	}
	return tw.Flush()
}

func (r *Report) Elevation(years []metrics.YearElevation) error {
	tw := r.table("year", "run m", "ride m")
	for _, y := range years {
		r.row(tw, fmt.Sprint(y.Year), r.num(y.Run, 0), r.num(y.Ride, 0))
	}
	return tw.Flush()
}

func (r *Report) Compare(cs []metrics.Comparison) error {
	if len(cs) == 0 {
		_, err := fmt.Fprintln(r.w, "Nothing to compare this month or last.")
		return err
	}
	tw := r.table("type", "month", "activities", "avg km/h", "max km/h", "min km/h")
	for _, c := range cs {
		for _, m := range []struct {
			label string
			s     metrics.SpeedStats
		}{{"previous", c.Previous}, {"current", c.Current}} {
			r.row(tw, c.Type, m.label, r.count(m.s.Activities),
				r.opt(m.s.AverageSpeedKmh, 1), r.opt(m.s.MaxSpeedKmh, 1), r.opt(m.s.MinSpeedKmh, 1))
		}
	}
	return tw.Flush()
}

func (r *Report) AthleteStats(s *strava.AthleteStats) error {
	tw := r.table("period", "sport", "count", "km", "hours", "elevation m")
	for _, t := range []struct {
		period, sport string
		totals        strava.Totals
	}{
		{"recent", "ride", s.RecentRideTotals},
		{"recent", "run", s.RecentRunTotals},
		{"recent", "swim", s.RecentSwimTotals},
		{"year to date", "ride", s.YTDRideTotals},
		{"year to date", "run", s.YTDRunTotals},
		{"year to date", "swim", s.YTDSwimTotals},
		{"all time", "ride", s.AllRideTotals},
		{"all time", "run", s.AllRunTotals},
		{"all time", "swim", s.AllSwimTotals},
	} {
		r.row(tw, r.title.String(t.period), r.title.String(t.sport), r.count(t.totals.Count),
			r.num(t.totals.Distance/1000, 1), r.num(float64(t.totals.MovingTime)/3600, 1),
			r.num(t.totals.ElevationGain, 0))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := r.p.Fprintf(r.w, "\nBiggest ride: %v km, biggest climb: %v m\n",
		number(s.BiggestRideDistance/1000, 1), number(s.BiggestClimbElevationGain, 0))
	return err
}

func (r *Report) Streams(id int64, streams strava.Streams) error {
	keys := make([]string, 0, len(streams))
	for k := range streams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	r.p.Fprintf(r.w, "Activity %d streams\n", id)
	tw := r.table("stream", "points", "resolution")
	for _, k := range keys {
		r.row(tw, k, r.count(streams[k].OriginalSize), streams[k].Resolution)
	}
	return tw.Flush()
}

func (r *Report) Zones(id int64, zones []strava.Zone) error {
	r.p.Fprintf(r.w, "Activity %d zones\n", id)
	for _, z := range zones {
		r.heading(z.Type)
		tw := r.table("range", "time")
		for _, b := range z.DistributionBuckets {
			upper := r.num(b.Max, 0)
			if b.Max < 0 {
				upper = "+"
			}
			r.row(tw, r.num(b.Min, 0)+" - "+upper, duration(b.Time))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Report) CacheInfo(info *fetcher.CacheInfo) error {
	tw := r.table("cache", "present", "entries", "updated")
	updated := func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Local().Format(time.DateTime)
	}
	r.row(tw, "Activities", yesNo(info.Activities), r.count(info.ActivityCount), updated(info.ActivitiesUpdated))
	r.row(tw, "Table", yesNo(info.Table), r.count(info.TableRows), updated(info.TableUpdated))
	r.row(tw, "Athlete", yesNo(info.Athlete), "", "")
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
