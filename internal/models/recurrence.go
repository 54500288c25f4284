package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RecurrenceKind names the recurrence variants persisted in enhanced_recurrence.type.
type RecurrenceKind string

const (
	RecurrenceNone    RecurrenceKind = "none"
	RecurrenceDaily   RecurrenceKind = "daily"
	RecurrenceWeekly  RecurrenceKind = "weekly"
	RecurrenceMonthly RecurrenceKind = "monthly"
	RecurrenceYearly  RecurrenceKind = "yearly"
)

// ErrInvalidRecurrence marks a recurrence whose shape does not match its kind.
var ErrInvalidRecurrence = errors.New("invalid recurrence")

// RecurrenceRule is the kind-specific part of a recurrence. A nil rule never matches.
type RecurrenceRule interface {
	Kind() RecurrenceKind
	// Matches reports whether an occurrence starts on day, a start-of-day in the admin zone.
	Matches(day time.Time) bool
	validate() error
}

// DailyRule matches every day.
type DailyRule struct{}

// WeeklyRule matches ISO weekdays (1=Monday .. 7=Sunday).
type WeeklyRule struct {
	Weekdays []int
}

// MonthlyRule matches days of the month (1-31).
type MonthlyRule struct {
	Days []int
}

// YearlyRule matches months (1-12).
type YearlyRule struct {
	Months []int
}

// UnsupportedRule keeps an unknown persisted type so it round-trips; it never matches.
type UnsupportedRule struct {
	Type string
}

func (DailyRule) Kind() RecurrenceKind         { return RecurrenceDaily }
func (DailyRule) Matches(time.Time) bool       { return true }
func (DailyRule) validate() error              { return nil }
func (WeeklyRule) Kind() RecurrenceKind        { return RecurrenceWeekly }
func (MonthlyRule) Kind() RecurrenceKind       { return RecurrenceMonthly }
func (YearlyRule) Kind() RecurrenceKind        { return RecurrenceYearly }
func (r UnsupportedRule) Kind() RecurrenceKind { return RecurrenceKind(r.Type) }
func (UnsupportedRule) Matches(time.Time) bool { return false }

func (r WeeklyRule) Matches(day time.Time) bool {
	wd := int(day.Weekday())
	if wd == 0 {
		wd = 7
	}
	return containsInt(r.Weekdays, wd)
}

func (r MonthlyRule) Matches(day time.Time) bool { return containsInt(r.Days, day.Day()) }

func (r YearlyRule) Matches(day time.Time) bool { return containsInt(r.Months, int(day.Month())) }

func (r WeeklyRule) validate() error {
	return validateSelector("selectedWeekdays", r.Weekdays, 1, 7)
}

func (r MonthlyRule) validate() error {
	return validateSelector("selectedMonthDays", r.Days, 1, 31)
}

func (r YearlyRule) validate() error {
	return validateSelector("selectedMonths", r.Months, 1, 12)
}

func (r UnsupportedRule) validate() error {
	return fmt.Errorf("%w: unsupported type %q", ErrInvalidRecurrence, r.Type)
}

// WeekdayTimeSlot overrides the template's start time and duration on one weekday.
type WeekdayTimeSlot struct {
	StartHour   int `json:"start_hour"`
	StartMinute int `json:"start_minute"`
	EndHour     int `json:"end_hour"`
	EndMinute   int `json:"end_minute"`
}

// Duration returns the slot length, adding a day when the end is not after the start.
func (s WeekdayTimeSlot) Duration() time.Duration {
	start := s.StartHour*60 + s.StartMinute
	end := s.EndHour*60 + s.EndMinute
	minutes := end - start
	if end <= start {
		minutes += 24 * 60
	}
	return time.Duration(minutes) * time.Minute
}

func (s WeekdayTimeSlot) validate() error {
	if s.StartHour < 0 || s.StartHour > 23 || s.EndHour < 0 || s.EndHour > 23 ||
		s.StartMinute < 0 || s.StartMinute > 59 || s.EndMinute < 0 || s.EndMinute > 59 {
		return fmt.Errorf("%w: weekday time slot out of range", ErrInvalidRecurrence)
	}
	return nil
}

// Recurrence is the enhanced_recurrence document: a kind-specific rule plus exclusions and overrides.
// Dates are absolute instants; calendar comparisons happen in the template's admin zone.
type Recurrence struct {
	Rule             RecurrenceRule
	ExcludedWeekdays []int
	ExcludedDates    []time.Time
	WeekdayTimeSlots map[int]WeekdayTimeSlot
	EndDate          *time.Time
}

// Kind returns the rule's kind, RecurrenceNone for a nil rule.
func (r Recurrence) Kind() RecurrenceKind {
	if r.Rule == nil {
		return RecurrenceNone
	}
	return r.Rule.Kind()
}

// Validate checks the rule shape, exclusions and slot overrides.
func (r Recurrence) Validate() error {
	if r.Rule != nil {
		if err := r.Rule.validate(); err != nil {
			return err
		}
	}
	for _, wd := range r.ExcludedWeekdays {
		if wd < 1 || wd > 7 {
			return fmt.Errorf("%w: excludedWeekdays value %d out of range", ErrInvalidRecurrence, wd)
		}
	}
	for wd, slot := range r.WeekdayTimeSlots {
		if wd < 1 || wd > 7 {
			return fmt.Errorf("%w: weekdayTimeSlots key %d out of range", ErrInvalidRecurrence, wd)
		}
		if err := slot.validate(); err != nil {
			return err
		}
	}
	return nil
}

// TimeSlotFor returns the override for an ISO weekday, if any.
func (r Recurrence) TimeSlotFor(isoWeekday int) (WeekdayTimeSlot, bool) {
	slot, ok := r.WeekdayTimeSlots[isoWeekday]
	return slot, ok
}

// HasExcludedDate reports whether instant t falls on an already excluded calendar day in loc.
func (r Recurrence) HasExcludedDate(t time.Time, loc *time.Location) bool {
	key := t.In(loc).Format("2006-01-02")
	for _, d := range r.ExcludedDates {
		if d.In(loc).Format("2006-01-02") == key {
			return true
		}
	}
	return false
}

// NewRecurrence builds the rule for kind from the selector that kind uses. Other selectors are ignored.
func NewRecurrence(kind string, weekdays, monthDays, months []int) (Recurrence, error) {
	normalized := RecurrenceKind(strings.ToLower(strings.TrimSpace(kind)))
	switch normalized {
	case "", RecurrenceNone:
		return Recurrence{}, nil
	case RecurrenceDaily:
		return Recurrence{Rule: DailyRule{}}, nil
	case RecurrenceWeekly:
		return Recurrence{Rule: WeeklyRule{Weekdays: weekdays}}, nil
	case RecurrenceMonthly:
		return Recurrence{Rule: MonthlyRule{Days: monthDays}}, nil
	case RecurrenceYearly:
		return Recurrence{Rule: YearlyRule{Months: months}}, nil
	default:
		return Recurrence{}, fmt.Errorf("%w: unsupported type %q", ErrInvalidRecurrence, kind)
	}
}

type recurrenceWire struct {
	Type              string                     `json:"type"`
	SelectedWeekdays  []int                      `json:"selectedWeekdays"`
	SelectedMonthDays []int                      `json:"selectedMonthDays"`
	SelectedMonths    []int                      `json:"selectedMonths"`
	ExcludedWeekdays  []int                      `json:"excludedWeekdays"`
	ExcludedDates     []time.Time                `json:"excludedDates"`
	WeekdayTimeSlots  map[string]WeekdayTimeSlot `json:"weekdayTimeSlots,omitempty"`
	EndDate           *time.Time                 `json:"endDate"`
}

// MarshalJSON writes the flat document shape, with only the active selector populated.
func (r Recurrence) MarshalJSON() ([]byte, error) {
	wire := recurrenceWire{
		Type:              string(r.Kind()),
		SelectedWeekdays:  []int{},
		SelectedMonthDays: []int{},
		SelectedMonths:    []int{},
		ExcludedWeekdays:  nonNilInts(r.ExcludedWeekdays),
		ExcludedDates:     make([]time.Time, 0, len(r.ExcludedDates)),
	}
	switch rule := r.Rule.(type) {
	case WeeklyRule:
		wire.SelectedWeekdays = nonNilInts(rule.Weekdays)
	case MonthlyRule:
		wire.SelectedMonthDays = nonNilInts(rule.Days)
	case YearlyRule:
		wire.SelectedMonths = nonNilInts(rule.Months)
	}
	for _, d := range r.ExcludedDates {
		wire.ExcludedDates = append(wire.ExcludedDates, d.UTC())
	}
	if len(r.WeekdayTimeSlots) > 0 {
		wire.WeekdayTimeSlots = make(map[string]WeekdayTimeSlot, len(r.WeekdayTimeSlots))
		for wd, slot := range r.WeekdayTimeSlots {
			wire.WeekdayTimeSlots[strconv.Itoa(wd)] = slot
		}
	}
	if r.EndDate != nil {
		end := r.EndDate.UTC()
		wire.EndDate = &end
	}
	return json.Marshal(wire)
}

// UnmarshalJSON reads persisted documents leniently: unknown kinds decode to UnsupportedRule
// and malformed slot keys are dropped. Validate enforces shape.
func (r *Recurrence) UnmarshalJSON(data []byte) error {
	var wire recurrenceWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	decoded := Recurrence{
		ExcludedWeekdays: wire.ExcludedWeekdays,
		ExcludedDates:    wire.ExcludedDates,
		EndDate:          wire.EndDate,
	}
	kind := RecurrenceKind(strings.ToLower(strings.TrimSpace(wire.Type)))
	switch kind {
	case "", RecurrenceNone:
	case RecurrenceDaily:
		decoded.Rule = DailyRule{}
	case RecurrenceWeekly:
		decoded.Rule = WeeklyRule{Weekdays: wire.SelectedWeekdays}
	case RecurrenceMonthly:
		decoded.Rule = MonthlyRule{Days: wire.SelectedMonthDays}
	case RecurrenceYearly:
		decoded.Rule = YearlyRule{Months: wire.SelectedMonths}
	default:
		decoded.Rule = UnsupportedRule{Type: string(kind)}
	}

	if len(wire.WeekdayTimeSlots) > 0 {
		decoded.WeekdayTimeSlots = make(map[int]WeekdayTimeSlot, len(wire.WeekdayTimeSlots))
		for key, slot := range wire.WeekdayTimeSlots {
			wd, err := strconv.Atoi(key)
			if err != nil {
				continue
			}
			decoded.WeekdayTimeSlots[wd] = slot
		}
	}

	*r = decoded
	return nil
}

// Value implements driver.Valuer for the jsonb column.
func (r Recurrence) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner for the jsonb column.
func (r *Recurrence) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*r = Recurrence{}
		return nil
	case []byte:
		return r.UnmarshalJSON(v)
	case string:
		return r.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("scan recurrence: unsupported type %T", src)
	}
}

func validateSelector(field string, values []int, min, max int) error {
	if len(values) == 0 {
		return fmt.Errorf("%w: %s is required", ErrInvalidRecurrence, field)
	}
	for _, v := range values {
		if v < min || v > max {
			return fmt.Errorf("%w: %s value %d out of range %d-%d", ErrInvalidRecurrence, field, v, min, max)
		}
	}
	return nil
}

func containsInt(values []int, target int) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func nonNilInts(values []int) []int {
	if values == nil {
		return []int{}
	}
	out := append([]int(nil), values...)
	sort.Ints(out)
	return out
}
