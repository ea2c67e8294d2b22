package deposit

import (
	"github.com/shopspring/decimal"
	"github.com/warp/deposit-ladder/generic"
)

var (
	hundred      = decimal.NewFromInt(100)
	daysPerYear  = decimal.NewFromInt(365)
	daysPerMonth = decimal.NewFromInt(30)
)

// =============================================================================
// TIER TABLE
// =============================================================================

// TierTable maps a deposit-month bucket to a net annual rate in percent.
// Index 0 is "under one month"; lookups past the end use the last tier.
type TierTable struct {
	rates []decimal.Decimal
}

// NewTierTable converts gross rates into real, after-tax rates:
//
//	net = (100 + gross*(1 - tax/100)) * (1 - inflation/100) - 100
func NewTierTable(gross []decimal.Decimal, taxPercent, inflationPercent decimal.Decimal) TierTable {
	keep := decimal.NewFromInt(1).Sub(taxPercent.Div(hundred))
	deflate := decimal.NewFromInt(1).Sub(inflationPercent.Div(hundred))

	rates := make([]decimal.Decimal, len(gross))
	for i, g := range gross {
		rates[i] = hundred.Add(g.Mul(keep)).Mul(deflate).Sub(hundred)
	}
	return TierTable{rates: rates}
}

func (t TierTable) Len() int      { return len(t.rates) }
func (t TierTable) IsEmpty() bool { return len(t.rates) == 0 }

// Rate returns the net annual rate for a deposit held the given number of months.
func (t TierTable) Rate(months int) decimal.Decimal {
	if t.IsEmpty() {
		return decimal.Zero
	}
	months = max(0, min(months, len(t.rates)-1))
	return t.rates[months]
}

// Rates returns a copy of the net rates.
func (t TierTable) Rates() []decimal.Decimal {
	return append([]decimal.Decimal(nil), t.rates...)
}

// =============================================================================
// ACCRUAL
// =============================================================================

// ValueAt prices a deposit at asOf: simple daily accrual at the tier rate
// for its whole life. Pre-existing deposits are never re-priced.
func (t TierTable) ValueAt(inst generic.Instrument, asOf generic.TimePoint) decimal.Decimal {
	factor, ok := t.accrualFactor(inst, asOf)
	if !ok {
		return inst.Amount
	}
	return inst.Amount.Mul(factor)
}

// PrincipalFrom converts an interest-inclusive withdrawal back into the
// principal it consumes. It is the inverse of ValueAt.
func (t TierTable) PrincipalFrom(inst generic.Instrument, withdrawn decimal.Decimal, asOf generic.TimePoint) decimal.Decimal {
	factor, ok := t.accrualFactor(inst, asOf)
	if !ok {
		return withdrawn
	}
	return withdrawn.Div(factor)
}

func (t TierTable) accrualFactor(inst generic.Instrument, asOf generic.TimePoint) (decimal.Decimal, bool) {
	start, ok := inst.StartDate()
	if !ok || asOf.IsZero() || t.IsEmpty() {
		return decimal.Decimal{}, false
	}
	rate := t.Rate(generic.MonthsBetween(asOf, start))
	days := decimal.NewFromInt(int64(generic.DaysBetween(start, asOf)))
	return decimal.NewFromInt(1).Add(rate.Div(hundred).Div(daysPerYear).Mul(days)), true
}
