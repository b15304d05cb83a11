// Package schedule decides whether enforcement is active at a given moment.
package schedule

import (
	"time"

	"github.com/ulrichando/ParentShield/internal/domain"
)

// MinutesPerDay bounds ScheduleEntry minute offsets.
const MinutesPerDay = 24 * 60

// IsActive reports whether blocking applies at now (local time).
//
// With no enabled entries enforcement is always on. When enabled entries
// cover now, the last one in definition order decides. When none covers
// now, enforcement is off if any enabled entry is a blocking window (we
// are outside the blocking hours) and on if the schedule only defines
// allow windows.
func IsActive(entries []domain.ScheduleEntry, now time.Time) bool {
	day := now.Weekday()
	minute := now.Hour()*60 + now.Minute()

	enabled := 0
	hasBlockingWindow := false
	matched := false
	decision := true

	for _, e := range entries {
		if !e.Enabled {
			continue
		}
		enabled++
		if e.BlockingEnabled {
			hasBlockingWindow = true
		}
		if e.HasDay(day) && e.Covers(minute) {
			matched = true
			decision = e.BlockingEnabled
		}
	}

	switch {
	case enabled == 0:
		return true
	case matched:
		return decision
	default:
		return !hasBlockingWindow
	}
}

// Validate checks an entry's days and minute bounds.
func Validate(e domain.ScheduleEntry) error {
	for _, d := range e.Days {
		if d < 0 || d > 6 {
			return &InvalidEntryError{ID: e.ID, Reason: "day out of range"}
		}
	}
	if e.StartMinutes < 0 || e.StartMinutes >= MinutesPerDay || e.EndMinutes < 0 || e.EndMinutes > MinutesPerDay {
		return &InvalidEntryError{ID: e.ID, Reason: "minutes out of range"}
	}
	if e.StartMinutes >= e.EndMinutes {
		return &InvalidEntryError{ID: e.ID, Reason: "window wraps midnight or is empty; split it into two entries"}
	}
	return nil
}

// InvalidEntryError describes a malformed schedule entry.
type InvalidEntryError struct {
	ID     string
	Reason string
}

func (e *InvalidEntryError) Error() string {
	return "invalid schedule entry " + e.ID + ": " + e.Reason
}
