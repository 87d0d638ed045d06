// Package fetcher serves Strava data cache first, going to the API only when
// the caches are empty or a refresh is forced.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lildude/stravalytics/internal/cache"
	"github.com/lildude/stravalytics/internal/model"
	"github.com/lildude/stravalytics/internal/strava"
	"github.com/lildude/stravalytics/internal/table"
	"github.com/sirupsen/logrus"
)

// API is the subset of the Strava API the fetcher uses.
type API interface {
	GetAllActivities(ctx context.Context, opts strava.AllOptions) ([]strava.Activity, error)
	GetActivity(ctx context.Context, id int64, includeAllEfforts bool) (*strava.Activity, error)
	GetAthlete(ctx context.Context) (*strava.Athlete, error)
	GetAthleteStats(ctx context.Context, athleteID int64) (*strava.AthleteStats, error)
	GetActivityStreams(ctx context.Context, id int64, keys []string) (strava.Streams, error)
	GetActivityZones(ctx context.Context, id int64) ([]strava.Zone, error)
}

// Connector returns an authenticated API. It is only called when a network
// fetch is actually needed.
type Connector func(ctx context.Context) (API, error)

// Static returns a Connector that always hands out api.
func Static(api API) Connector {
	return func(context.Context) (API, error) { return api, nil }
}

type Fetcher struct {
	connect Connector
	api     API
	data    cache.Cache
	streams cache.Cache
	table   table.Store
	log     logrus.FieldLogger
}

// New returns a Fetcher. data holds the activity list and athlete, streams
// the per-activity streams, and tbl the tabular projection of the list.
func New(connect Connector, data, streams cache.Cache, tbl table.Store, log logrus.FieldLogger) *Fetcher {
	return &Fetcher{
		connect: connect,
		data:    data,
		streams: streams,
		table:   tbl,
		log:     log,
	}
}

func (f *Fetcher) client(ctx context.Context) (API, error) {
	if f.api != nil {
		return f.api, nil
	}
	api, err := f.connect(ctx)
	if err != nil {
		return nil, err
	}
	f.api = api
	return api, nil
}

type Options struct {
	After  time.Time
	Before time.Time
	// Limit caps the number of activities fetched; zero means all of them.
	Limit        int
	ForceRefresh bool
}

func (o Options) apiOptions() strava.AllOptions {
	opts := strava.AllOptions{Limit: o.Limit}
	if !o.After.IsZero() {
		opts.After = o.After.Unix()
	}
	if !o.Before.IsZero() {
		opts.Before = o.Before.Unix()
	}
	return opts
}

// FetchActivities returns the cached activity list, or fetches it from the
// API when the cache is empty or opts.ForceRefresh is set. A fetched list
// replaces both the JSON cache and the table.
func (f *Fetcher) FetchActivities(ctx context.Context, opts Options) ([]strava.Activity, error) {
	if !opts.ForceRefresh {
		activities, err := f.LoadActivities(ctx)
		if err == nil {
			f.log.WithField("activities", len(activities)).Debug("using cached activities")
			return activities, nil
		}
		if !errors.Is(err, cache.ErrCacheMissing) {
			return nil, err
		}
	}

	api, err := f.client(ctx)
	if err != nil {
		return nil, err
	}
	activities, err := api.GetAllActivities(ctx, opts.apiOptions())
	if err != nil {
		return nil, fmt.Errorf("fetching activities: %w", err)
	}
	if activities == nil {
		activities = []strava.Activity{}
	}

	if err := f.storeActivities(ctx, activities); err != nil {
		return nil, err
	}
	f.log.WithField("activities", len(activities)).Info("fetched activities")
	return activities, nil
}

// storeActivities replaces the table and then the JSON list. If the JSON
// cannot be written the table is put back in step with the previous list.
func (f *Fetcher) storeActivities(ctx context.Context, activities []strava.Activity) error {
	var previous []strava.Activity
	prevErr := cache.GetJSON(ctx, f.data, cache.KeyActivities, &previous)

	if err := f.table.Replace(ctx, model.RowsFromActivities(activities)); err != nil {
		return fmt.Errorf("writing activities table: %w", err)
	}

	if err := cache.SetJSON(ctx, f.data, cache.KeyActivities, activities); err != nil {
		var rbErr error
		if prevErr == nil {
			rbErr = f.table.Replace(ctx, model.RowsFromActivities(previous))
		} else {
			rbErr = f.table.Delete(ctx)
		}
		if rbErr != nil {
			f.log.WithError(rbErr).Error("unable to restore activities table")
		}
		return fmt.Errorf("writing activities cache: %w", err)
	}
	return nil
}

// LoadActivities returns the cached activity list without touching the network.
func (f *Fetcher) LoadActivities(ctx context.Context) ([]strava.Activity, error) {
	var activities []strava.Activity
	if err := cache.GetJSON(ctx, f.data, cache.KeyActivities, &activities); err != nil {
		return nil, err
	}
	if activities == nil {
		activities = []strava.Activity{}
	}
	return activities, nil
}

// LoadTable returns the tabular projection of the cached list. A missing or
// stale table is regenerated from the JSON list.
func (f *Fetcher) LoadTable(ctx context.Context) ([]model.ActivityRow, error) {
	activities, jsonErr := f.LoadActivities(ctx)
	if jsonErr != nil && !errors.Is(jsonErr, cache.ErrCacheMissing) {
		return nil, jsonErr
	}

	rows, err := f.table.Load(ctx)
	switch {
	case err != nil && !errors.Is(err, cache.ErrCacheMissing):
		return nil, err
	case err == nil && jsonErr != nil:
		f.log.Debug("activities table has no JSON list behind it")
		return rows, nil
	case err == nil && model.SameIDs(rows, activities):
		return rows, nil
	case err == nil:
		f.log.Warn("activities table is out of step with the cached list, regenerating")
	}

	if jsonErr != nil {
		return nil, jsonErr
	}
	rows = model.RowsFromActivities(activities)
	if err := f.table.Replace(ctx, rows); err != nil {
		return nil, fmt.Errorf("writing activities table: %w", err)
	}
	return rows, nil
}

// FetchAthlete returns the cached athlete, fetching it when absent or forced.
func (f *Fetcher) FetchAthlete(ctx context.Context, force bool) (*strava.Athlete, error) {
	if !force {
		athlete, err := f.LoadAthlete(ctx)
		if err == nil {
			return athlete, nil
		}
		if !errors.Is(err, cache.ErrCacheMissing) {
			return nil, err
		}
	}

	api, err := f.client(ctx)
	if err != nil {
		return nil, err
	}
	athlete, err := api.GetAthlete(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching athlete: %w", err)
	}
	if err := cache.SetJSON(ctx, f.data, cache.KeyAthlete, athlete); err != nil {
		return nil, fmt.Errorf("writing athlete cache: %w", err)
	}
	return athlete, nil
}

func (f *Fetcher) LoadAthlete(ctx context.Context) (*strava.Athlete, error) {
	var athlete strava.Athlete
	if err := cache.GetJSON(ctx, f.data, cache.KeyAthlete, &athlete); err != nil {
		return nil, err
	}
	return &athlete, nil
}

// AthleteStats fetches the athlete's totals. They change with every activity
// so they are never cached.
func (f *Fetcher) AthleteStats(ctx context.Context) (*strava.AthleteStats, error) {
	athlete, err := f.FetchAthlete(ctx, false)
	if err != nil {
		return nil, err
	}
	api, err := f.client(ctx)
	if err != nil {
		return nil, err
	}
	return api.GetAthleteStats(ctx, athlete.ID)
}

// FetchStreams returns the streams of one activity, from the cache when
// useCache is set and they have been fetched before. Without useCache the
// cache is neither read nor written.
func (f *Fetcher) FetchStreams(ctx context.Context, id int64, useCache bool) (strava.Streams, error) {
	key := cache.StreamsKey(id)
	if useCache {
		var streams strava.Streams
		err := cache.GetJSON(ctx, f.streams, key, &streams)
		if err == nil {
			return streams, nil
		}
		if !errors.Is(err, cache.ErrCacheMissing) {
			return nil, err
		}
	}

	api, err := f.client(ctx)
	if err != nil {
		return nil, err
	}
	streams, err := api.GetActivityStreams(ctx, id, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching streams: %w", err)
	}
	if !useCache {
		return streams, nil
	}
	if err := cache.SetJSON(ctx, f.streams, key, streams); err != nil {
		return nil, fmt.Errorf("writing streams cache: %w", err)
	}
	return streams, nil
}

// Activity fetches the detailed representation of one activity. It is not
// cached.
func (f *Fetcher) Activity(ctx context.Context, id int64) (*strava.Activity, error) {
	api, err := f.client(ctx)
	if err != nil {
		return nil, err
	}
	a, err := api.GetActivity(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("fetching activity: %w", err)
	}
	return a, nil
}

func (f *Fetcher) ActivityZones(ctx context.Context, id int64) ([]strava.Zone, error) {
	api, err := f.client(ctx)
	if err != nil {
		return nil, err
	}
	return api.GetActivityZones(ctx, id)
}

// CacheInfo describes what is currently cached.
type CacheInfo struct {
	Activities        bool
	ActivityCount     int
	ActivitiesUpdated time.Time
	Table             bool
	TableRows         int
	TableUpdated      time.Time
	Athlete           bool
}

func (f *Fetcher) CacheInfo(ctx context.Context) (*CacheInfo, error) {
	info := &CacheInfo{}

	activities, err := f.LoadActivities(ctx)
	switch {
	case err == nil:
		info.Activities = true
		info.ActivityCount = len(activities)
		if info.ActivitiesUpdated, err = f.data.Updated(ctx, cache.KeyActivities); err != nil {
			return nil, err
		}
	case !errors.Is(err, cache.ErrCacheMissing):
		return nil, err
	}

	rows, err := f.table.Load(ctx)
	switch {
	case err == nil:
		info.Table = true
		info.TableRows = len(rows)
		if info.TableUpdated, err = f.table.Updated(ctx); err != nil {
			return nil, err
		}
	case !errors.Is(err, cache.ErrCacheMissing):
		return nil, err
	}

	if info.Athlete, err = f.data.Exists(ctx, cache.KeyAthlete); err != nil {
		return nil, err
	}
	return info, nil
}
