package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-shift-api/internal/models"
	"github.com/noah-isme/sma-shift-api/pkg/zonedtime"
)

func TestMatchesRecurrence(t *testing.T) {
	loc := zonedtime.Location("America/New_York")
	tuesday := time.Date(2024, 3, 12, 0, 0, 0, 0, loc)
	wednesday := time.Date(2024, 3, 13, 0, 0, 0, 0, loc)
	excluded := time.Date(2024, 3, 12, 4, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		day  time.Time
		rec  models.Recurrence
		want bool
	}{
		{"weekly selected day", tuesday, models.Recurrence{Rule: models.WeeklyRule{Weekdays: []int{2, 4}}}, true},
		{"weekly other day", wednesday, models.Recurrence{Rule: models.WeeklyRule{Weekdays: []int{2, 4}}}, false},
		{"excluded weekday wins", tuesday, models.Recurrence{Rule: models.DailyRule{}, ExcludedWeekdays: []int{2}}, false},
		{"excluded date wins", tuesday, models.Recurrence{Rule: models.DailyRule{}, ExcludedDates: []time.Time{excluded}}, false},
		{"excluded date only that day", wednesday, models.Recurrence{Rule: models.DailyRule{}, ExcludedDates: []time.Time{excluded}}, true},
		{"daily", wednesday, models.Recurrence{Rule: models.DailyRule{}}, true},
		{"none", tuesday, models.Recurrence{}, false},
		{"monthly", tuesday, models.Recurrence{Rule: models.MonthlyRule{Days: []int{12}}}, true},
		{"monthly miss", wednesday, models.Recurrence{Rule: models.MonthlyRule{Days: []int{12}}}, false},
		{"yearly", tuesday, models.Recurrence{Rule: models.YearlyRule{Months: []int{3}}}, true},
		{"yearly miss", tuesday, models.Recurrence{Rule: models.YearlyRule{Months: []int{4}}}, false},
		{"unknown kind", tuesday, models.Recurrence{Rule: models.UnsupportedRule{Type: "hourly"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MatchesRecurrence(tc.day, tc.rec, loc))
		})
	}
}
