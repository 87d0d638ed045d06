// Package analysis holds the dataset a dashboard view is looking at.
package analysis

import (
	"time"

	"github.com/lildude/stravalytics/internal/metrics"
	"github.com/lildude/stravalytics/internal/model"
)

// Filter narrows the activities a session looks at. Empty Types keeps every
// type. Start and End are calendar days in local time; End includes the
// whole of its day. A zero date is open.
type Filter struct {
	Types []string
	Start time.Time
	End   time.Time
}

func (f Filter) empty() bool {
	return len(f.Types) == 0 && f.Start.IsZero() && f.End.IsZero()
}

// Session is an immutable view over derived activities. Filtering returns a
// new session and never changes the one it was called on.
type Session struct {
	all    []metrics.Activity
	view   []metrics.Activity
	filter Filter
}

// New derives every row and starts an unfiltered session.
func New(rows []model.ActivityRow, opts metrics.Options) *Session {
	all := metrics.Derive(rows, opts)
	return &Session{all: all, view: all}
}

// WithFilter applies f to the full dataset, replacing any earlier filter.
func (s *Session) WithFilter(f Filter) *Session {
	view := s.all
	if len(f.Types) > 0 {
		view = metrics.FilterByType(view, f.Types...)
	}
	if !f.Start.IsZero() || !f.End.IsZero() {
		view = metrics.FilterByDateRange(view, startOfDay(f.Start), endOfDay(f.End))
	}
	return &Session{all: s.all, view: view, filter: f}
}

// Reset drops the filter.
func (s *Session) Reset() *Session {
	return &Session{all: s.all, view: s.all}
}

func (s *Session) Filter() Filter { return s.filter }
func (s *Session) Filtered() bool { return !s.filter.empty() }
func (s *Session) Activities() []metrics.Activity { return s.view }
func (s *Session) Len() int { return len(s.view) }
func (s *Session) Total() int { return len(s.all) }

// Types lists the activity types in the full dataset, most common first, so
// a caller can offer them as filter choices.
func (s *Session) Types() []metrics.TypeCount {
	return metrics.Summarize(s.all).ActivityTypes
}

func (s *Session) Recent(n int) []metrics.Activity { return metrics.Recent(s.view, n) }
func (s *Session) Summary() metrics.Summary { return metrics.Summarize(s.view) }
func (s *Session) StatsByType() []metrics.TypeStats { return metrics.StatsByType(s.view) }
func (s *Session) Weekly() []metrics.WeekTotals { return metrics.Weekly(s.view) }
func (s *Session) Monthly() []metrics.MonthTotals { return metrics.Monthly(s.view) }
func (s *Session) ByDayOfWeek() [7]metrics.DayTotals { return metrics.ByDayOfWeek(s.view) }
func (s *Session) Records() metrics.Records { return metrics.PersonalRecords(s.view) }
func (s *Session) Elevation() []metrics.YearElevation { return metrics.YearlyElevation(s.view) }

// CompareTypes are the activity types compared month on month by default.
var CompareTypes = []string{"Ride", "Walk"}

// Compare sets this month's speeds against last month's. With no types it
// compares CompareTypes.
func (s *Session) Compare(now time.Time, types ...string) []metrics.Comparison {
	if len(types) == 0 {
		types = CompareTypes
	}
	return metrics.CompareMonths(s.view, now, types...)
}

func startOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
