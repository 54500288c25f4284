// Package zonedtime converts between admin wall-clock days and absolute UTC
// instants. Zone rules come from the IANA database embedded via time/tzdata,
// so offsets are resolved per date (DST-aware) rather than fixed.
package zonedtime

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// UTC is the fallback zone name for unknown or empty identifiers.
const UTC = "UTC"

// DayLayout is the calendar day key format.
const DayLayout = "2006-01-02"

// ErrInvalidLocalTime is returned for wall-clock strings outside H:mm/HH:mm.
var ErrInvalidLocalTime = errors.New("invalid local time")

// ErrInvalidDate is returned when a date string is neither YYYY-MM-DD nor RFC3339.
var ErrInvalidDate = errors.New("invalid date")

var (
	localTimePattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	dateOnlyPattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// LocalTime is a wall-clock time of day without a date or zone.
type LocalTime struct {
	Hour   int
	Minute int
}

// String renders the time as HH:mm.
func (t LocalTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MinutesOfDay returns minutes elapsed since midnight.
func (t LocalTime) MinutesOfDay() int {
	return t.Hour*60 + t.Minute
}

// NormalizeTimezone returns tz when it names a loadable zone and UTC otherwise.
func NormalizeTimezone(tz string) string {
	name := strings.TrimSpace(tz)
	if name == "" || name == "Local" {
		return UTC
	}
	if _, err := time.LoadLocation(name); err != nil {
		return UTC
	}
	return name
}

// Location loads the normalised zone for tz, never failing.
func Location(tz string) *time.Location {
	loc, err := time.LoadLocation(NormalizeTimezone(tz))
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseLocalTime accepts H:mm or HH:mm with hour 0-23 and minute 0-59.
func ParseLocalTime(raw string) (LocalTime, error) {
	value := strings.TrimSpace(raw)
	match := localTimePattern.FindStringSubmatch(value)
	if match == nil {
		return LocalTime{}, fmt.Errorf("%w: expected HH:mm, got %q", ErrInvalidLocalTime, raw)
	}
	hour, _ := strconv.Atoi(match[1])
	minute, _ := strconv.Atoi(match[2])
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return LocalTime{}, fmt.Errorf("%w: %q out of range", ErrInvalidLocalTime, raw)
	}
	return LocalTime{Hour: hour, Minute: minute}, nil
}

// ToInstant composes the calendar date of day (read in loc) with t into a UTC instant.
func ToInstant(day time.Time, t LocalTime, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, loc).UTC()
}

// StartOfDay returns midnight of t's calendar date in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// AddDays steps whole calendar days, keeping midnight across DST changes.
func AddDays(day time.Time, n int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, day.Location())
}

// DayKey formats the calendar date of t in loc as YYYY-MM-DD.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayLayout)
}

// ISOWeekday maps Monday..Sunday to 1..7.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// ParseDateInZone reads YYYY-MM-DD as midnight in loc and anything else as RFC3339.
func ParseDateInZone(raw string, loc *time.Location) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if dateOnlyPattern.MatchString(value) {
		parsed, err := time.ParseInLocation(DayLayout, value, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
		}
		return parsed, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return parsed, nil
}

// Clock is the time source consulted for "now".
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock time.Time

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return time.Time(c) }
