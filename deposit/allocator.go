package deposit

import (
	"github.com/shopspring/decimal"
	"github.com/warp/deposit-ladder/generic"
)

// =============================================================================
// WITHDRAWAL ALLOCATOR
// =============================================================================

// Allocator liquidates created deposits to cover a shortfall. It unwinds the
// ladder oldest-first; a deposit too young to have earned a tier is left
// alone and the most recent deposit is spent as plain cash instead.
type Allocator struct {
	Ledger *generic.Ledger
	Tiers  TierTable
}

// Allocate takes up to left out of open created deposits into st.Balance and
// returns what is still owed. Closed labels are appended to step.
func (a *Allocator) Allocate(st *State, left decimal.Decimal, step *Step) (decimal.Decimal, error) {
	for left.IsPositive() && a.Ledger.OpenPrincipal().GreaterThan(generic.Epsilon) {
		open := a.Ledger.OpenCreated()
		if len(open) == 0 {
			return left, &generic.InvariantError{Check: "open principal without open instruments", At: st.Date, Value: a.Ledger.OpenPrincipal()}
		}

		inst := open[0]
		age := RoundToAccrualMonth(generic.DaysBetween(inst.Start, st.Date))
		withdrawAt := generic.CorrectForWeekend(inst.Start.AddDays(age))

		heldAsCash := generic.DaysBetween(inst.Start, withdrawAt) < 30
		var value decimal.Decimal
		if heldAsCash {
			inst = open[len(open)-1]
			withdrawAt = st.Date
			value = inst.Amount
		} else {
			value = a.Tiers.ValueAt(inst, withdrawAt)
		}

		taken := decimal.Min(left, value)
		left = left.Sub(taken)
		st.Balance = st.Balance.Add(taken)

		principal := taken
		if !heldAsCash {
			principal = a.Tiers.PrincipalFrom(inst, taken, withdrawAt)
		}

		var closed generic.Instrument
		var err error
		if taken.Equal(value) || principal.GreaterThanOrEqual(inst.Amount) {
			closed, err = a.Ledger.Withdraw(inst.ID, withdrawAt, st.Date, taken, heldAsCash)
		} else {
			closed, _, err = a.Ledger.Split(inst.ID, principal, withdrawAt, st.Date, taken, heldAsCash)
		}
		if err != nil {
			return left, err
		}
		if step != nil {
			step.Closed = append(step.Closed, closed.Label)
		}
	}
	return left, nil
}

// RoundToAccrualMonth rounds a deposit age in days to a 30-day boundary.
// The ceiling wins when it is at most 10 days away and not farther than the
// floor, i.e. it is worth waiting a few days to complete another month.
func RoundToAccrualMonth(days int) int {
	floor := days / 30 * 30
	ceil := floor + 30
	if ceil-days <= days-floor && ceil-days <= 10 {
		return ceil
	}
	return floor
}
