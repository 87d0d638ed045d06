package table

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/lildude/stravalytics/internal/cache"
	"github.com/lildude/stravalytics/internal/model"
)

func ptr[T any](v T) *T {
	return &v
}

func testRows() []model.ActivityRow {
	start := time.Date(2024, 3, 4, 7, 12, 0, 0, time.UTC)
	return []model.ActivityRow{
		{
			ID: 12345678987654321, Position: 0, Name: "Morning Run, easy", Type: "Run", SportType: "Run",
			StartDate: start, StartDateLocal: start, Timezone: "(GMT+00:00) Europe/London",
			Distance: 5000, MovingTime: 1500, ElapsedTime: 1620, TotalElevationGain: 42.5,
			AverageSpeed: 3.333, MaxSpeed: 4.9, AverageHeartrate: ptr(151.3), MaxHeartrate: ptr(172.0),
			KudosCount: 7, AchievementCount: 2, SummaryPolyline: ptr(`ki{eFvqfiV"q`),
		},
		{
			ID: 2, Position: 1, Name: "Lunch Ride", Type: "Ride",
			StartDate: start.Add(24 * time.Hour), StartDateLocal: start.Add(25 * time.Hour),
			Distance: 20000.25, MovingTime: 3600, ElapsedTime: 3700, AverageWatts: ptr(180.5), Calories: ptr(0.0),
		},
	}
}

func TestCSVStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := NewCSVStore(filepath.Join(t.TempDir(), "data", "activities.csv"))

	if _, err := s.Load(ctx); !errors.Is(err, cache.ErrCacheMissing) {
		t.Errorf("expected ErrCacheMissing, got %v", err)
	}
	if _, err := s.Updated(ctx); !errors.Is(err, cache.ErrCacheMissing) {
		t.Errorf("expected ErrCacheMissing, got %v", err)
	}

	want := testRows()
	if err := s.Replace(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	if ts, err := s.Updated(ctx); err != nil || ts.IsZero() {
		t.Errorf("expected an update time, got %v, %v", ts, err)
	}
}

func TestCSVStoreReplaceEmpty(t *testing.T) {
	ctx := context.Background()
	s := NewCSVStore(filepath.Join(t.TempDir(), "activities.csv"))

	if err := s.Replace(ctx, testRows()); err != nil {
		t.Fatal(err)
	}
	if err := s.Replace(ctx, []model.ActivityRow{}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("expected an empty table, got %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected no rows, got %+v", got)
	}
}

func TestCSVStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewCSVStore(filepath.Join(t.TempDir(), "activities.csv"))

	if err := s.Replace(ctx, testRows()); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx); err != nil {
		t.Errorf("deleting a missing table should not fail, got %v", err)
	}
	if _, err := s.Load(ctx); !errors.Is(err, cache.ErrCacheMissing) {
		t.Errorf("expected ErrCacheMissing, got %v", err)
	}
}

func TestCSVStoreLoadReorderedColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activities.csv")
	content := "type,distance,id,average_watts\nRun,5000,7,\nRide,12.5,8,201\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := NewCSVStore(path).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != 7 || got[1].ID != 8 || got[1].Position != 1 {
		t.Fatalf("unexpected rows %+v", got)
	}
	if got[0].AverageWatts != nil || got[1].AverageWatts == nil || *got[1].AverageWatts != 201 {
		t.Errorf("unexpected watts %v, %v", got[0].AverageWatts, got[1].AverageWatts)
	}
}

func TestCSVStoreLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no id column", "name,type\nx,Run\n"},
		{"bad number", "id,distance\n1,far\n"},
		{"bad time", "id,start_date\n1,yesterday\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "activities.csv")
			if err := os.WriteFile(path, []byte(tc.content), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := NewCSVStore(path).Load(context.Background())
			if err == nil || errors.Is(err, cache.ErrCacheMissing) {
				t.Errorf("expected a parse error, got %v", err)
			}
		})
	}
}
