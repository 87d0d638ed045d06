// Package strava implements the Strava API v3 calls used to build the activity dataset.
package strava

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lildude/stravalytics/internal/client"
)

const (
	BaseURL = "https://www.strava.com"

	// MaxPerPage is the largest page size the activity listing accepts.
	MaxPerPage = 200
)

// DefaultStreamKeys are requested when no explicit series are given.
var DefaultStreamKeys = []string{
	"time", "latlng", "distance", "altitude",
	"velocity_smooth", "heartrate", "cadence", "temp",
}

// ListOptions select one page of the activity listing.
type ListOptions struct {
	Page    int
	PerPage int
	// Before and After are Unix timestamps; zero means unset.
	Before int64
	After  int64
}

// AllOptions control GetAllActivities.
type AllOptions struct {
	Before  int64
	After   int64
	PerPage int
	// Limit caps the number of activities returned; zero means no limit.
	Limit int
}

func get(ctx context.Context, c *client.Client, path string, v interface{}) error {
	req, err := c.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.Do(req, v)
	if resp != nil {
		defer resp.Body.Close()
	}
	return err
}

func GetAthlete(ctx context.Context, c *client.Client) (*Athlete, error) {
	var a Athlete
	if err := get(ctx, c, "/api/v3/athlete", &a); err != nil {
		return nil, fmt.Errorf("getting athlete: %w", err)
	}
	return &a, nil
}

func GetAthleteStats(ctx context.Context, c *client.Client, athleteID int64) (*AthleteStats, error) {
	var s AthleteStats
	if err := get(ctx, c, fmt.Sprintf("/api/v3/athletes/%d/stats", athleteID), &s); err != nil {
		return nil, fmt.Errorf("getting stats for athlete %d: %w", athleteID, err)
	}
	return &s, nil
}

// ListActivities returns a single page of the authenticated athlete's activities.
func ListActivities(ctx context.Context, c *client.Client, opts ListOptions) ([]Activity, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PerPage < 1 || opts.PerPage > MaxPerPage {
		opts.PerPage = MaxPerPage
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(opts.Page))
	q.Set("per_page", strconv.Itoa(opts.PerPage))
	if opts.Before > 0 {
		q.Set("before", strconv.FormatInt(opts.Before, 10))
	}
	if opts.After > 0 {
		q.Set("after", strconv.FormatInt(opts.After, 10))
	}

	var activities []Activity
	if err := get(ctx, c, "/api/v3/athlete/activities?"+q.Encode(), &activities); err != nil {
		return nil, fmt.Errorf("listing activities page %d: %w", opts.Page, err)
	}
	return activities, nil
}

// GetAllActivities walks the activity listing one page at a time, in order,
// until a short or empty page is returned or opts.Limit activities have been
// collected. Pages shift when activities are uploaded during the walk, so an
// id seen on an earlier page is skipped. The result is truncated to exactly
// opts.Limit.
func GetAllActivities(ctx context.Context, c *client.Client, opts AllOptions) ([]Activity, error) {
	perPage := opts.PerPage
	if perPage < 1 || perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	all := []Activity{}
	seen := make(map[int64]bool)
	for page := 1; ; page++ {
		activities, err := ListActivities(ctx, c, ListOptions{
			Page:    page,
			PerPage: perPage,
			Before:  opts.Before,
			After:   opts.After,
		})
		if err != nil {
			return nil, err
		}
		if len(activities) == 0 {
			break
		}

		for _, a := range activities {
			if seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			all = append(all, a)
		}

		if opts.Limit > 0 && len(all) >= opts.Limit {
			all = all[:opts.Limit]
			break
		}
		if len(activities) < perPage {
			break
		}
	}

	return all, nil
}

func GetActivity(ctx context.Context, c *client.Client, id int64, includeAllEfforts bool) (*Activity, error) {
	var a Activity
	path := fmt.Sprintf("/api/v3/activities/%d?include_all_efforts=%t", id, includeAllEfforts)
	if err := get(ctx, c, path, &a); err != nil {
		return nil, fmt.Errorf("getting activity %d: %w", id, err)
	}
	return &a, nil
}

// GetActivityStreams returns the requested series of an activity keyed by type.
func GetActivityStreams(ctx context.Context, c *client.Client, id int64, keys []string) (Streams, error) {
	if len(keys) == 0 {
		keys = DefaultStreamKeys
	}

	q := url.Values{}
	q.Set("keys", strings.Join(keys, ","))
	q.Set("key_by_type", "true")

	streams := Streams{}
	if err := get(ctx, c, fmt.Sprintf("/api/v3/activities/%d/streams?%s", id, q.Encode()), &streams); err != nil {
		return nil, fmt.Errorf("getting streams for activity %d: %w", id, err)
	}
	return streams, nil
}

func GetActivityZones(ctx context.Context, c *client.Client, id int64) ([]Zone, error) {
	var zones []Zone
	if err := get(ctx, c, fmt.Sprintf("/api/v3/activities/%d/zones", id), &zones); err != nil {
		return nil, fmt.Errorf("getting zones for activity %d: %w", id, err)
	}
	return zones, nil
}

// API binds the calls above to one authenticated client.
type API struct {
	c *client.Client
}

func NewAPI(c *client.Client) *API {
	return &API{c: c}
}

func (a *API) GetAthlete(ctx context.Context) (*Athlete, error) {
	return GetAthlete(ctx, a.c)
}

func (a *API) GetAthleteStats(ctx context.Context, athleteID int64) (*AthleteStats, error) {
	return GetAthleteStats(ctx, a.c, athleteID)
}

func (a *API) GetAllActivities(ctx context.Context, opts AllOptions) ([]Activity, error) {
	return GetAllActivities(ctx, a.c, opts)
}

func (a *API) GetActivity(ctx context.Context, id int64, includeAllEfforts bool) (*Activity, error) {
	return GetActivity(ctx, a.c, id, includeAllEfforts)
}

func (a *API) GetActivityStreams(ctx context.Context, id int64, keys []string) (Streams, error) {
	return GetActivityStreams(ctx, a.c, id, keys)
}

func (a *API) GetActivityZones(ctx context.Context, id int64) ([]Zone, error) {
	return GetActivityZones(ctx, a.c, id)
}
