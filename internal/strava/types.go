package strava

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DataShapeError is returned when a field this tool depends on is absent from a remote payload.
type DataShapeError struct {
	Object string
	Field  string
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("%s payload is missing required field %q", e.Object, e.Field)
}

// requireFields checks raw carries every named key.
func requireFields(object string, raw []byte, fields ...string) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	for _, f := range fields {
		v, ok := m[f]
		if !ok || string(v) == "null" {
			return &DataShapeError{Object: object, Field: f}
		}
	}
	return nil
}

func compact(raw []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Activity holds the fields of an activity summary this tool depends on.
// Optional values are nil when the remote omits them. The remote object is
// kept in Raw and is what gets written back out when the activity is marshaled.
type Activity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	SportType          string    `json:"sport_type"`
	StartDate          time.Time `json:"start_date"`
	StartDateLocal     time.Time `json:"start_date_local"`
	Timezone           string    `json:"timezone"`
	Distance           float64   `json:"distance"`
	MovingTime         int64     `json:"moving_time"`
	ElapsedTime        int64     `json:"elapsed_time"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
	AverageSpeed       float64   `json:"average_speed"`
	MaxSpeed           float64   `json:"max_speed"`
	AverageHeartrate   *float64  `json:"average_heartrate,omitempty"`
	MaxHeartrate       *float64  `json:"max_heartrate,omitempty"`
	AverageCadence     *float64  `json:"average_cadence,omitempty"`
	AverageWatts       *float64  `json:"average_watts,omitempty"`
	Kilojoules         *float64  `json:"kilojoules,omitempty"`
	Calories           *float64  `json:"calories,omitempty"`
	HasHeartrate       bool      `json:"has_heartrate"`
	ElevHigh           *float64  `json:"elev_high,omitempty"`
	ElevLow            *float64  `json:"elev_low,omitempty"`
	KudosCount         int       `json:"kudos_count"`
	AchievementCount   int       `json:"achievement_count"`
	Map                *Map      `json:"map,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type Map struct {
	ID              string `json:"id"`
	SummaryPolyline string `json:"summary_polyline"`
	Polyline        string `json:"polyline,omitempty"`
}

// Polyline returns the encoded summary path, if the activity has one.
func (a *Activity) Polyline() (string, bool) {
	if a.Map == nil || a.Map.SummaryPolyline == "" {
		return "", false
	}
	return a.Map.SummaryPolyline, true
}

type activityAlias Activity

func (a *Activity) UnmarshalJSON(data []byte) error {
	if err := requireFields("activity", data, "id", "type", "start_date", "start_date_local"); err != nil {
		return err
	}
	var v activityAlias
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	raw, err := compact(data)
	if err != nil {
		return err
	}
	v.Raw = raw
	*a = Activity(v)
	return nil
}

func (a Activity) MarshalJSON() ([]byte, error) {
	if len(a.Raw) > 0 {
		return a.Raw, nil
	}
	return json.Marshal(activityAlias(a))
}

// Athlete is the authenticated athlete. The remote object is kept in Raw.
type Athlete struct {
	ID        int64    `json:"id"`
	Username  string   `json:"username"`
	Firstname string   `json:"firstname"`
	Lastname  string   `json:"lastname"`
	City      string   `json:"city"`
	Country   string   `json:"country"`
	Sex       string   `json:"sex"`
	Weight    *float64 `json:"weight,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type athleteAlias Athlete

func (a *Athlete) UnmarshalJSON(data []byte) error {
	if err := requireFields("athlete", data, "id"); err != nil {
		return err
	}
	var v athleteAlias
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	raw, err := compact(data)
	if err != nil {
		return err
	}
	v.Raw = raw
	*a = Athlete(v)
	return nil
}

func (a Athlete) MarshalJSON() ([]byte, error) {
	if len(a.Raw) > 0 {
		return a.Raw, nil
	}
	return json.Marshal(athleteAlias(a))
}

// FirstName returns the athlete's first name if the remote supplied one.
func (a *Athlete) FirstName() (string, bool) {
	if a == nil || a.Firstname == "" {
		return "", false
	}
	return a.Firstname, true
}

// WeightKg returns the athlete's body weight if it is known.
func (a *Athlete) WeightKg() (float64, bool) {
	if a == nil || a.Weight == nil || *a.Weight <= 0 {
		return 0, false
	}
	return *a.Weight, true
}

// Totals are the aggregate figures in an athlete's stats.
type Totals struct {
	Count            int     `json:"count"`
	Distance         float64 `json:"distance"`
	MovingTime       int64   `json:"moving_time"`
	ElapsedTime      int64   `json:"elapsed_time"`
	ElevationGain    float64 `json:"elevation_gain"`
	AchievementCount int     `json:"achievement_count"`
}

type AthleteStats struct {
	BiggestRideDistance       float64 `json:"biggest_ride_distance"`
	BiggestClimbElevationGain float64 `json:"biggest_climb_elevation_gain"`
	RecentRideTotals          Totals  `json:"recent_ride_totals"`
	RecentRunTotals           Totals  `json:"recent_run_totals"`
	RecentSwimTotals          Totals  `json:"recent_swim_totals"`
	YTDRideTotals             Totals  `json:"ytd_ride_totals"`
	YTDRunTotals              Totals  `json:"ytd_run_totals"`
	YTDSwimTotals             Totals  `json:"ytd_swim_totals"`
	AllRideTotals             Totals  `json:"all_ride_totals"`
	AllRunTotals              Totals  `json:"all_run_totals"`
	AllSwimTotals             Totals  `json:"all_swim_totals"`
}

// Stream is one time series of an activity. Data is left undecoded as its
// element type depends on the series: numbers, [lat, lng] pairs or booleans.
type Stream struct {
	Data         json.RawMessage `json:"data"`
	SeriesType   string          `json:"series_type"`
	OriginalSize int             `json:"original_size"`
	Resolution   string          `json:"resolution"`
}

// Floats decodes a numeric series such as time, distance or heartrate.
func (s Stream) Floats() ([]float64, error) {
	var v []float64
	if err := json.Unmarshal(s.Data, &v); err != nil {
		return nil, fmt.Errorf("decoding numeric stream: %w", err)
	}
	return v, nil
}

// LatLng decodes the latlng series.
func (s Stream) LatLng() ([][2]float64, error) {
	var v [][2]float64
	if err := json.Unmarshal(s.Data, &v); err != nil {
		return nil, fmt.Errorf("decoding latlng stream: %w", err)
	}
	return v, nil
}

// Streams are keyed by series type.
type Streams map[string]Stream

type Bucket struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Time int64   `json:"time"`
}

// Zone is the time spent in each heart rate or power bucket of an activity.
type Zone struct {
	Type                string   `json:"type"`
	SensorBased         bool     `json:"sensor_based"`
	Score               *float64 `json:"score,omitempty"`
	DistributionBuckets []Bucket `json:"distribution_buckets"`
}
