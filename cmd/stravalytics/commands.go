package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lildude/stravalytics/internal/analysis"
	"github.com/lildude/stravalytics/internal/auth"
	"github.com/lildude/stravalytics/internal/cache"
	"github.com/lildude/stravalytics/internal/fetcher"
)

const dateLayout = "2006-01-02"

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return &stageError{stage: stageConfig, err: fmt.Errorf("%s: %w (see stravalytics help)", fs.Name(), err)}
	}
	if fs.NArg() > 0 {
		return &stageError{stage: stageConfig, err: fmt.Errorf("%s: unexpected arguments %v", fs.Name(), fs.Args())}
	}
	return nil
}

type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			*l = append(*l, s)
		}
	}
	return nil
}

// dateFlag parses a calendar day in loc.
type dateFlag struct {
	t   *time.Time
	loc *time.Location
}

func (d dateFlag) String() string {
	if d.t == nil || d.t.IsZero() {
		return ""
	}
	return d.t.Format(dateLayout)
}

func (d dateFlag) Set(v string) error {
	t, err := time.ParseInLocation(dateLayout, v, d.loc)
	if err != nil {
		return fmt.Errorf("dates are written YYYY-MM-DD")
	}
	*d.t = t
	return nil
}

func filterFlags(fs *flag.FlagSet) *analysis.Filter {
	f := &analysis.Filter{}
	fs.Var((*stringList)(&f.Types), "type", "activity type, e.g. Run (repeatable)")
	// Local start times are wall-clock times stored as UTC.
	fs.Var(dateFlag{&f.Start, time.UTC}, "from", "first day, YYYY-MM-DD")
	fs.Var(dateFlag{&f.End, time.UTC}, "to", "last day, YYYY-MM-DD")
	return f
}

// fetchError tags errors from talking to Strava that have no stage yet.
func fetchError(err error) error {
	var se *stageError
	switch {
	case errors.As(err, &se):
		return err
	case errors.Is(err, cache.ErrCacheMissing):
		return &stageError{stage: stageCache, err: err}
	}
	return &stageError{stage: stageFetch, err: err}
}

func runAuth(ctx context.Context, a *app, args []string) error {
	fs := newFlags("auth")
	paste := fs.Bool("paste", false, "paste the redirect URL instead of running a local server")
	status := fs.Bool("status", false, "only show whether a valid token is stored")
	if err := parse(fs, args); err != nil {
		return err
	}

	m, err := a.authManager()
	if err != nil {
		return err
	}
	if *status {
		st, err := m.State(ctx)
		if err != nil {
			return &stageError{stage: stageAuth, err: err}
		}
		fmt.Fprintf(a.stdout, "token: %s\n", st)
		return nil
	}

	az := auth.NewAuthorizer(m, a.stdout, a.cfg.AuthTimeout, a.log)
	var rec *auth.Record
	if *paste {
		rec, err = az.Paste(ctx, a.stdin)
	} else {
		rec, err = az.Run(ctx)
	}
	if err != nil {
		return &stageError{stage: stageAuth, err: err}
	}
	fmt.Fprintf(a.stdout, "Authorized. The access token expires at %s.\n", rec.Expiry().Local().Format(time.DateTime))

	athlete, err := a.fetcher.FetchAthlete(ctx, true)
	if err != nil {
		return fetchError(err)
	}
	return a.report.Greeting(athlete)
}

func runFetch(ctx context.Context, a *app, args []string) error {
	fs := newFlags("fetch")
	var opts fetcher.Options
	fs.BoolVar(&opts.ForceRefresh, "force", false, "ignore the cache and fetch everything again")
	fs.IntVar(&opts.Limit, "limit", 0, "fetch at most this many activities")
	fs.Var(dateFlag{&opts.After, time.Local}, "after", "only activities after this day, YYYY-MM-DD")
	fs.Var(dateFlag{&opts.Before, time.Local}, "before", "only activities before this day, YYYY-MM-DD")
	if err := parse(fs, args); err != nil {
		return err
	}
	if opts.Limit < 0 {
		return &stageError{stage: stageConfig, err: fmt.Errorf("fetch: -limit cannot be negative")}
	}

	activities, err := a.fetcher.FetchActivities(ctx, opts)
	if err != nil {
		return fetchError(err)
	}
	athlete, err := a.fetcher.FetchAthlete(ctx, opts.ForceRefresh)
	if err != nil {
		return fetchError(err)
	}
	if err := a.report.Greeting(athlete); err != nil {
		return err
	}
	return a.report.Fetched(len(activities))
}

func runAthlete(ctx context.Context, a *app, args []string) error {
	fs := newFlags("athlete")
	force := fs.Bool("force", false, "fetch the athlete again")
	if err := parse(fs, args); err != nil {
		return err
	}
	athlete, err := a.fetcher.FetchAthlete(ctx, *force)
	if err != nil {
		return fetchError(err)
	}
	return a.report.Athlete(athlete)
}

func runStats(ctx context.Context, a *app, args []string) error {
	if err := parse(newFlags("stats"), args); err != nil {
		return err
	}
	stats, err := a.fetcher.AthleteStats(ctx)
	if err != nil {
		return fetchError(err)
	}
	return a.report.AthleteStats(stats)
}

func activityID(name string, args []string, extra func(*flag.FlagSet)) (int64, error) {
	fs := newFlags(name)
	id := fs.Int64("id", 0, "activity ID")
	if extra != nil {
		extra(fs)
	}
	if err := parse(fs, args); err != nil {
		return 0, err
	}
	if *id <= 0 {
		return 0, &stageError{stage: stageConfig, err: fmt.Errorf("%s: -id is required", name)}
	}
	return *id, nil
}

func runActivity(ctx context.Context, a *app, args []string) error {
	id, err := activityID("activity", args, nil)
	if err != nil {
		return err
	}
	activity, err := a.fetcher.Activity(ctx, id)
	if err != nil {
		return fetchError(err)
	}
	return a.report.Activity(activity)
}

func runStreams(ctx context.Context, a *app, args []string) error {
	var noCache bool
	id, err := activityID("streams", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&noCache, "no-cache", false, "fetch the streams without reading or writing the cache")
	})
	if err != nil {
		return err
	}
	streams, err := a.fetcher.FetchStreams(ctx, id, !noCache)
	if err != nil {
		return fetchError(err)
	}
	return a.report.Streams(id, streams)
}

func runZones(ctx context.Context, a *app, args []string) error {
	id, err := activityID("zones", args, nil)
	if err != nil {
		return err
	}
	zones, err := a.fetcher.ActivityZones(ctx, id)
	if err != nil {
		return fetchError(err)
	}
	return a.report.Zones(id, zones)
}

func filtered(ctx context.Context, a *app, name string, args []string, extra func(*flag.FlagSet)) (*analysis.Session, error) {
	fs := newFlags(name)
	f := filterFlags(fs)
	if extra != nil {
		extra(fs)
	}
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if !f.Start.IsZero() && !f.End.IsZero() && f.End.Before(f.Start) {
		return nil, &stageError{stage: stageConfig, err: fmt.Errorf("%s: -to is before -from", name)}
	}
	return a.session(ctx, *f)
}

func runSummary(ctx context.Context, a *app, args []string) error {
	s, err := filtered(ctx, a, "summary", args, nil)
	if err != nil {
		return err
	}
	athlete, err := a.fetcher.LoadAthlete(ctx)
	if err != nil && !errors.Is(err, cache.ErrCacheMissing) {
		return &stageError{stage: stageCache, err: err}
	}
	if err := a.report.Greeting(athlete); err != nil {
		return err
	}
	if s.Filtered() {
		fmt.Fprintf(a.stdout, "Showing %d of %d activities\n", s.Len(), s.Total())
	}
	return a.report.Summary(s.Summary())
}

func runTypes(ctx context.Context, a *app, args []string) error {
	s, err := filtered(ctx, a, "types", args, nil)
	if err != nil {
		return err
	}
	return a.report.Types(s.StatsByType())
}

func runWeekly(ctx context.Context, a *app, args []string) error {
	s, err := filtered(ctx, a, "weekly", args, nil)
	if err != nil {
		return err
	}
	return a.report.Weekly(s.Weekly())
}

func runMonthly(ctx context.Context, a *app, args []string) error {
	s, err := filtered(ctx, a, "monthly", args, nil)
	if err != nil {
		return err
	}
	return a.report.Monthly(s.Monthly())
}

func runDays(ctx context.Context, a *app, args []string) error {
	s, err := filtered(ctx, a, "days", args, nil)
	if err != nil {
		return err
	}
	return a.report.Days(s.ByDayOfWeek())
}

func runRecords(ctx context.Context, a *app, args []string) error {
	s, err := filtered(ctx, a, "records", args, nil)
	if err != nil {
		return err
	}
	return a.report.Records(s.Records())
}

func runRecent(ctx context.Context, a *app, args []string) error {
	n := 10
	s, err := filtered(ctx, a, "recent", args, func(fs *flag.FlagSet) {
		fs.IntVar(&n, "n", n, "number of activities")
	})
	if err != nil {
		return err
	}
	return a.report.Recent(s.Recent(n))
}

func runElevation(ctx context.Context, a *app, args []string) error {
	s, err := filtered(ctx, a, "elevation", args, nil)
	if err != nil {
		return err
	}
	return a.report.Elevation(s.Elevation())
}

func runCompare(ctx context.Context, a *app, args []string) error {
	fs := newFlags("compare")
	var types stringList
	fs.Var(&types, "type", "activity type to compare (repeatable)")
	if err := parse(fs, args); err != nil {
		return err
	}
	s, err := a.session(ctx, analysis.Filter{})
	if err != nil {
		return err
	}
	return a.report.Compare(s.Compare(time.Now(), types...))
}

func runCacheInfo(ctx context.Context, a *app, args []string) error {
	if err := parse(newFlags("cache-info"), args); err != nil {
		return err
	}
	info, err := a.fetcher.CacheInfo(ctx)
	if err != nil {
		return &stageError{stage: stageCache, err: err}
	}
	return a.report.CacheInfo(info)
}
