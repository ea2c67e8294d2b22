/*
time.go - Day-granularity calendar for the ladder engine

PURPOSE:
  Every date the engine touches is a banking day at midnight UTC. Deposits
  can only be opened or closed on business days, and deposit terms are
  counted in 30-day "months" that must also agree with calendar months.

KEY FUNCTIONS:
  - CorrectForWeekend: Saturday -> Monday, Sunday -> Monday
  - MonthsBetween:     duration bucket used for interest tier lookup
  - DaysBetween:       whole days between two points

SEE ALSO:
  - period.go: Period built on TimePoint
  - deposit/interest.go: uses MonthsBetween for tier lookup
*/
package generic

import (
	"time"
)

// DateFormat is the canonical textual form of a TimePoint.
const DateFormat = "2006-01-02"

// =============================================================================
// TIME POINT
// =============================================================================

// TimePoint is a calendar day. The zero value means "no date".
type TimePoint struct {
	Time time.Time
}

func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates t to its calendar day.
func FromTime(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseTimePoint parses a YYYY-MM-DD date.
func ParseTimePoint(s string) (TimePoint, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return TimePoint{}, err
	}
	return FromTime(t), nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint  { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }
func (tp TimePoint) AddYears(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(n, 0, 0)} }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsWeekend() bool       { wd := tp.Weekday(); return wd == time.Saturday || wd == time.Sunday }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	if tp.IsZero() {
		return ""
	}
	return tp.Time.Format(DateFormat)
}

// MaxTime returns the later of two points.
func MaxTime(a, b TimePoint) TimePoint {
	if b.After(a) {
		return b
	}
	return a
}

// =============================================================================
// BUSINESS DAY CORRECTION
// =============================================================================

// CorrectForWeekend moves a Saturday or Sunday to the following Monday.
// Weekdays are returned unchanged, so the function is idempotent.
func CorrectForWeekend(tp TimePoint) TimePoint {
	switch tp.Weekday() {
	case time.Saturday:
		return tp.AddDays(2)
	case time.Sunday:
		return tp.AddDays(1)
	default:
		return tp
	}
}

// =============================================================================
// DURATIONS
// =============================================================================

// DaysBetween returns the whole number of days from -> to (negative if to is earlier).
func DaysBetween(from, to TimePoint) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}

// MonthsBetween returns the deposit-month count between earlier and later.
//
// It is the larger of the 30-day month count and the calendar month
// difference, but the calendar rule only applies once at least 28 days
// elapsed: a 28-29 day span crossing a month boundary is not a month.
func MonthsBetween(later, earlier TimePoint) int {
	days := DaysBetween(earlier, later)
	months := days / 30
	if days >= 28 {
		return max(months, calendarMonthDiff(later, earlier))
	}
	return months
}

func calendarMonthDiff(later, earlier TimePoint) int {
	return (later.Year()-earlier.Year())*12 + int(later.Month()) - int(earlier.Month())
}
