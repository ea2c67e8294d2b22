package generic

// =============================================================================
// PERIOD - A closed interval of days
// =============================================================================

// Period is the interval [Start, End]. The ladder engine uses it for the
// simulation horizon and for reported funding gaps.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod validates that end is not before start.
func NewPeriod(start, end TimePoint) (Period, error) {
	if end.Before(start) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: start, End: end}, nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// HorizonFrom returns the period covering the given number of years from start.
func HorizonFrom(start TimePoint, years int) Period {
	return Period{Start: start, End: start.AddYears(years)}
}
