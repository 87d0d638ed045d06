// Package model holds the flattened activity row the tabular cache stores.
package model

import (
	"time"

	"github.com/lildude/stravalytics/internal/strava"
)

// ActivityRow is one activity summary flattened for tabular storage. Rows keep
// the order of the raw activity list through Position. Nil fields were absent
// from the remote payload.
type ActivityRow struct {
	ID                 int64 `gorm:"primaryKey;autoIncrement:false"`
	Position           int   `gorm:"index;not null"`
	Name               string
	Type               string `gorm:"index"`
	SportType          string
	StartDate          time.Time
	StartDateLocal     time.Time
	Timezone           string
	Distance           float64
	MovingTime         int64
	ElapsedTime        int64
	TotalElevationGain float64
	AverageSpeed       float64
	MaxSpeed           float64
	AverageHeartrate   *float64
	MaxHeartrate       *float64
	AverageCadence     *float64
	AverageWatts       *float64
	Kilojoules         *float64
	Calories           *float64
	KudosCount         int
	AchievementCount   int
	SummaryPolyline    *string
}

func (ActivityRow) TableName() string {
	return "activities"
}

// TableMeta marks the tabular cache as populated, even when it holds no rows.
type TableMeta struct {
	ID        uint `gorm:"primaryKey"`
	Rows      int
	UpdatedAt time.Time
}

func (TableMeta) TableName() string {
	return "activities_meta"
}

// NewActivityRow flattens a at the given position.
func NewActivityRow(a *strava.Activity, position int) ActivityRow {
	row := ActivityRow{
		ID:                 a.ID,
		Position:           position,
		Name:               a.Name,
		Type:               a.Type,
		SportType:          a.SportType,
		StartDate:          a.StartDate,
		StartDateLocal:     a.StartDateLocal,
		Timezone:           a.Timezone,
		Distance:           a.Distance,
		MovingTime:         a.MovingTime,
		ElapsedTime:        a.ElapsedTime,
		TotalElevationGain: a.TotalElevationGain,
		AverageSpeed:       a.AverageSpeed,
		MaxSpeed:           a.MaxSpeed,
		AverageHeartrate:   a.AverageHeartrate,
		MaxHeartrate:       a.MaxHeartrate,
		AverageCadence:     a.AverageCadence,
		AverageWatts:       a.AverageWatts,
		Kilojoules:         a.Kilojoules,
		Calories:           a.Calories,
		KudosCount:         a.KudosCount,
		AchievementCount:   a.AchievementCount,
	}
	if p, ok := a.Polyline(); ok {
		row.SummaryPolyline = &p
	}
	return row
}

// RowsFromActivities projects activities into rows, one per activity id, in
// order. Later repeats of an id are dropped.
func RowsFromActivities(activities []strava.Activity) []ActivityRow {
	rows := make([]ActivityRow, 0, len(activities))
	seen := make(map[int64]bool, len(activities))
	for i := range activities {
		if seen[activities[i].ID] {
			continue
		}
		seen[activities[i].ID] = true
		rows = append(rows, NewActivityRow(&activities[i], len(rows)))
	}
	return rows
}

// SameIDs reports whether rows hold exactly the given activities, in order,
// counting each activity id once.
func SameIDs(rows []ActivityRow, activities []strava.Activity) bool {
	seen := make(map[int64]bool, len(activities))
	i := 0
	for _, a := range activities {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		if i >= len(rows) || rows[i].ID != a.ID {
			return false
		}
		i++
	}
	return i == len(rows)
}
