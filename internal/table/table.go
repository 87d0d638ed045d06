// Package table stores the tabular projection of the activity list.
package table

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/lildude/stravalytics/internal/cache"
	"github.com/lildude/stravalytics/internal/model"
)

// Store holds the rows derived from the cached activity list.
type Store interface {
	// Replace discards every stored row and stores rows in their place.
	Replace(ctx context.Context, rows []model.ActivityRow) error
	// Load returns the stored rows in order, or cache.ErrCacheMissing if
	// the table has never been written.
	Load(ctx context.Context) ([]model.ActivityRow, error)
	Delete(ctx context.Context) error
	// Updated returns when the table was last replaced, or cache.ErrCacheMissing.
	Updated(ctx context.Context) (time.Time, error)
}

var header = []string{
	"id", "name", "type", "sport_type", "start_date", "start_date_local", "timezone",
	"distance", "moving_time", "elapsed_time", "total_elevation_gain",
	"average_speed", "max_speed", "average_heartrate", "max_heartrate",
	"average_cadence", "average_watts", "kilojoules", "calories",
	"kudos_count", "achievement_count", "summary_polyline",
}

// CSVStore keeps the table in a single CSV file with a header row.
type CSVStore struct {
	path string
}

func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

func (s *CSVStore) Path() string {
	return s.path
}

func (s *CSVStore) Replace(_ context.Context, rows []model.ActivityRow) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return err
	}
	for i := range rows {
		if err := w.Write(encodeRow(&rows[i])); err != nil {
			return fmt.Errorf("encoding activity %d: %w", rows[i].ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return cache.WriteFile(s.path, buf.Bytes(), 0o600)
}

func (s *CSVStore) Load(_ context.Context) ([]model.ActivityRow, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", s.path, cache.ErrCacheMissing)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	head, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s is empty: %w", s.path, cache.ErrCacheMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	idx := make(map[string]int, len(head))
	for i, h := range head {
		idx[h] = i
	}
	if _, ok := idx["id"]; !ok {
		return nil, fmt.Errorf("%s has no id column", s.path)
	}

	rows := []model.ActivityRow{}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", s.path, err)
		}
		row, err := decodeRow(idx, rec)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", s.path, len(rows)+2, err)
		}
		row.Position = len(rows)
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *CSVStore) Delete(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *CSVStore) Updated(_ context.Context) (time.Time, error) {
	fi, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, fmt.Errorf("%s: %w", s.path, cache.ErrCacheMissing)
	}
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

func encodeRow(r *model.ActivityRow) []string {
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.Name,
		r.Type,
		r.SportType,
		formatTime(r.StartDate),
		formatTime(r.StartDateLocal),
		r.Timezone,
		formatFloat(r.Distance),
		strconv.FormatInt(r.MovingTime, 10),
		strconv.FormatInt(r.ElapsedTime, 10),
		formatFloat(r.TotalElevationGain),
		formatFloat(r.AverageSpeed),
		formatFloat(r.MaxSpeed),
		formatOptional(r.AverageHeartrate),
		formatOptional(r.MaxHeartrate),
		formatOptional(r.AverageCadence),
		formatOptional(r.AverageWatts),
		formatOptional(r.Kilojoules),
		formatOptional(r.Calories),
		strconv.Itoa(r.KudosCount),
		strconv.Itoa(r.AchievementCount),
		optionalString(r.SummaryPolyline),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatOptional(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func optionalString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// decoder collects the first parse failure so decodeRow reads straight through.
type decoder struct {
	idx map[string]int
	rec []string
	err error
}

func (d *decoder) str(col string) string {
	i, ok := d.idx[col]
	if !ok || i >= len(d.rec) {
		return ""
	}
	return d.rec[i]
}

func (d *decoder) integer(col string) int64 {
	s := d.str(col)
	if s == "" || d.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		d.err = fmt.Errorf("column %s: %w", col, err)
	}
	return v
}

func (d *decoder) float(col string) float64 {
	if f := d.optional(col); f != nil {
		return *f
	}
	return 0
}

func (d *decoder) optional(col string) *float64 {
	s := d.str(col)
	if s == "" || d.err != nil {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		d.err = fmt.Errorf("column %s: %w", col, err)
		return nil
	}
	return &v
}

func (d *decoder) timestamp(col string) time.Time {
	s := d.str(col)
	if s == "" || d.err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		d.err = fmt.Errorf("column %s: %w", col, err)
	}
	return t
}

func decodeRow(idx map[string]int, rec []string) (model.ActivityRow, error) {
	d := &decoder{idx: idx, rec: rec}
	row := model.ActivityRow{
		ID:                 d.integer("id"),
		Name:               d.str("name"),
		Type:               d.str("type"),
		SportType:          d.str("sport_type"),
		StartDate:          d.timestamp("start_date"),
		StartDateLocal:     d.timestamp("start_date_local"),
		Timezone:           d.str("timezone"),
		Distance:           d.float("distance"),
		MovingTime:         d.integer("moving_time"),
		ElapsedTime:        d.integer("elapsed_time"),
		TotalElevationGain: d.float("total_elevation_gain"),
		AverageSpeed:       d.float("average_speed"),
		MaxSpeed:           d.float("max_speed"),
		AverageHeartrate:   d.optional("average_heartrate"),
		MaxHeartrate:       d.optional("max_heartrate"),
		AverageCadence:     d.optional("average_cadence"),
		AverageWatts:       d.optional("average_watts"),
		Kilojoules:         d.optional("kilojoules"),
		Calories:           d.optional("calories"),
		KudosCount:         int(d.integer("kudos_count")),
		AchievementCount:   int(d.integer("achievement_count")),
	}
	if p := d.str("summary_polyline"); p != "" {
		row.SummaryPolyline = &p
	}
	return row, d.err
}
