package deposit_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/deposit-ladder/deposit"
	"github.com/warp/deposit-ladder/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var d0 = generic.NewTimePoint(2025, time.January, 6) // a Monday

func money(s string) decimal.Decimal {
	return generic.MustParseDecimal(s)
}

func rates(ss ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(ss))
	for i, s := range ss {
		out[i] = money(s)
	}
	return out
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, money(want).Equal(got), "want %s, got %s", want, got)
}

func created(start generic.TimePoint, amount string) generic.Instrument {
	return generic.Instrument{Origin: generic.OriginCreated, Start: start, Amount: money(amount)}
}

// =============================================================================
// TIER TABLE
// =============================================================================

func TestNewTierTable_NetRate(t *testing.T) {
	tests := []struct {
		name      string
		inflation string
		want      []string
	}{
		{"tax only", "0", []string{"0", "8.7"}},
		{"tax and inflation", "5", []string{"-5", "3.265"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := deposit.NewTierTable(rates("0", "10"), money("13"), money(tt.inflation))
			got := table.Rates()
			require.Len(t, got, 2)
			for i, w := range tt.want {
				assertMoney(t, w, got[i])
			}
		})
	}
}

func TestTierTable_RateClampsToLastTier(t *testing.T) {
	table := deposit.NewTierTable(rates("1", "2", "3"), decimal.Zero, decimal.Zero)

	assertMoney(t, "1", table.Rate(0))
	assertMoney(t, "3", table.Rate(2))
	assertMoney(t, "3", table.Rate(40))

	empty := deposit.NewTierTable(nil, decimal.Zero, decimal.Zero)
	assert.True(t, empty.IsEmpty())
	assert.True(t, empty.Rate(3).IsZero())
}

func TestTierTable_ValueAt(t *testing.T) {
	// GIVEN: 1000 deposited at d0 with 10.95% for three months and up
	// WHEN:  priced 100 days later
	// THEN:  simple accrual gives 3% for the whole life

	table := deposit.NewTierTable(rates("0", "3.65", "7.3", "10.95"), decimal.Zero, decimal.Zero)
	inst := created(d0, "1000")
	at := d0.AddDays(100)

	value := table.ValueAt(inst, at)
	assertMoney(t, "1030", value)
	assertMoney(t, "1000", table.PrincipalFrom(inst, value, at))
	assertMoney(t, "500", table.PrincipalFrom(inst, money("515"), at))
}

func TestTierTable_ValueAt_FaceValue(t *testing.T) {
	table := deposit.NewTierTable(rates("5", "10"), decimal.Zero, decimal.Zero)
	existing := generic.Instrument{Origin: generic.OriginExisting, Amount: money("700"), Maturity: d0.AddDays(90)}

	assertMoney(t, "700", table.ValueAt(existing, d0.AddDays(90)))
	assertMoney(t, "70", table.PrincipalFrom(existing, money("70"), d0.AddDays(90)))

	empty := deposit.NewTierTable(nil, decimal.Zero, decimal.Zero)
	assertMoney(t, "1000", empty.ValueAt(created(d0, "1000"), d0.AddDays(300)))
}
