package deposit

import (
	"github.com/shopspring/decimal"
	"github.com/warp/deposit-ladder/generic"
)

// Drift is the monthly net cash flow. Expenses inflate from the start date,
// income is taken as already adjusted.
type Drift struct {
	Monthly          decimal.Decimal
	InflationPercent decimal.Decimal
	Start            generic.TimePoint
}

// Effective returns the monthly drift in force at the given date.
func (d Drift) Effective(at generic.TimePoint) decimal.Decimal {
	if !d.Monthly.IsNegative() {
		return d.Monthly
	}
	days := decimal.NewFromInt(int64(generic.DaysBetween(d.Start, at)))
	growth := decimal.NewFromInt(1).Add(d.InflationPercent.Div(hundred).Div(daysPerYear).Mul(days))
	return d.Monthly.Mul(growth)
}

// Over returns the balance change over the given number of days starting at
// from, using a 30-day month regardless of the calendar.
func (d Drift) Over(from generic.TimePoint, days int) decimal.Decimal {
	return d.Effective(from).Div(daysPerMonth).Mul(decimal.NewFromInt(int64(days)))
}
