package service

import (
	"slices"
	"time"

	"github.com/noah-isme/sma-shift-api/internal/models"
	"github.com/noah-isme/sma-shift-api/pkg/zonedtime"
)

// MatchesRecurrence reports whether an occurrence of rec starts on the calendar day of day in loc.
// Exclusions are checked before the rule so they apply to every kind.
func MatchesRecurrence(day time.Time, rec models.Recurrence, loc *time.Location) bool {
	if rec.Rule == nil {
		return false
	}
	local := zonedtime.StartOfDay(day, loc)
	if slices.Contains(rec.ExcludedWeekdays, zonedtime.ISOWeekday(local)) {
		return false
	}
	if rec.HasExcludedDate(local, loc) {
		return false
	}
	return rec.Rule.Matches(local)
}
