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
// SCENARIOS
// =============================================================================

func TestScheduler_ExistingOnly_NoDrift(t *testing.T) {
	// GIVEN: no drift, no rate table and one deposit maturing in 100 days
	// WHEN:  the forecast runs
	// THEN:  nothing is opened and the deposit closes on its end date

	cfg := deposit.Config{
		Start:         d0,
		MaxTermMonths: 12,
		Existing: []deposit.ExistingInstrument{
			{Maturity: d0.AddDays(100), Amount: money("1000"), Label: "old"},
		},
	}

	res, err := deposit.NewScheduler().Run(cfg)
	require.NoError(t, err)

	assert.Empty(t, res.Created())
	assert.Empty(t, res.Gaps)
	assert.True(t, res.ExhaustedAt.IsZero())
	assert.True(t, res.OpenPrincipalResidual.IsZero())

	old, ok := res.Find("old")
	require.True(t, ok)
	assert.Equal(t, "2025-04-16", old.End.String())
	assertMoney(t, "1000", old.Value)
	assertMoney(t, "1000", res.FinalBalance)
}

func TestScheduler_RunsOutOfMoney(t *testing.T) {
	// GIVEN: 50 in cash, 100 a month of expenses and nothing to liquidate
	// WHEN:  the forecast runs
	// THEN:  an exhaustion date about two weeks out is reported

	cfg := deposit.Config{
		Start:           d0,
		MonthlyDrift:    money("-100"),
		StartingBalance: money("50"),
		MaxTermMonths:   12,
	}

	res, err := deposit.NewScheduler().Run(cfg)
	require.NoError(t, err)

	require.False(t, res.ExhaustedAt.IsZero())
	days := generic.DaysBetween(d0, res.ExhaustedAt)
	assert.GreaterOrEqual(t, days, 14)
	assert.LessOrEqual(t, days, 16)
	assert.Empty(t, res.Instruments)

	last := res.Steps[len(res.Steps)-1]
	assert.Equal(t, deposit.StepExhausted, last.Kind)
}

func TestScheduler_IncomeOpensDepositsUntilCap(t *testing.T) {
	// GIVEN: 200 a month of income and a 12-month maximum term
	// WHEN:  the forecast runs
	// THEN:  the first deposit is opened on day one and matures at the cap

	cfg := deposit.Config{
		Start:            d0,
		MonthlyDrift:     money("200"),
		MaxTermMonths:    12,
		AnnualRates:      rates("0", "5", "6", "7"),
		TaxPercent:       money("13"),
		InflationPercent: money("4"),
	}

	res, err := deposit.NewScheduler().Run(cfg)
	require.NoError(t, err)

	first, ok := res.Find("new#1")
	require.True(t, ok)
	assert.True(t, first.Start.Equal(d0))
	assertMoney(t, "200", first.Amount)
	assert.Equal(t, "2026-01-01", first.End.String())
	assert.True(t, first.ForcedByDurationCap)
	assert.True(t, first.WantedEnd.IsZero())
	assert.True(t, first.Value.GreaterThan(first.Amount))

	assert.Greater(t, len(res.Created()), 12)
	assert.True(t, res.OpenPrincipalResidual.IsZero())
	assert.Equal(t, deposit.StepStart, res.Steps[0].Kind)
	assert.Equal(t, []string{"new#1"}, res.Steps[0].Opened)
}

func TestScheduler_IncomeWithoutRatesStaysInCash(t *testing.T) {
	// GIVEN: the same income with no rate table
	// WHEN:  the forecast runs
	// THEN:  no deposit is opened since none could earn interest, and the
	//        income simply accumulates as cash until the horizon

	cfg := deposit.Config{
		Start:         d0,
		MonthlyDrift:  money("200"),
		MaxTermMonths: 12,
	}

	res, err := deposit.NewScheduler().Run(cfg)
	require.NoError(t, err)

	assert.Empty(t, res.Instruments)
	assert.Empty(t, res.Gaps)
	assert.True(t, res.ExhaustedAt.IsZero())
	assert.False(t, res.FinalDate.Before(cfg.Horizon().End))

	want := money("200").Div(money("30")).Mul(decimal.NewFromInt(int64(generic.DaysBetween(d0, res.FinalDate))))
	assert.True(t, want.Sub(res.FinalBalance).Abs().LessThan(money("0.01")), "want %s, got %s", want, res.FinalBalance)
	for _, s := range res.Steps {
		assert.Empty(t, s.Opened)
	}
}

func TestScheduler_GapUntilNextMaturity(t *testing.T) {
	// GIVEN: no cash, 300 a month of expenses and a deposit maturing on day 100
	// WHEN:  the forecast runs
	// THEN:  one gap covers the wait and its deficit is the drift until then

	cfg := deposit.Config{
		Start:         d0,
		MonthlyDrift:  money("-300"),
		MaxTermMonths: 6,
		Existing: []deposit.ExistingInstrument{
			{Maturity: d0.AddDays(100), Amount: money("5000"), Label: "bond"},
		},
	}

	res, err := deposit.NewScheduler().Run(cfg)
	require.NoError(t, err)

	require.Len(t, res.Gaps, 1)
	gap := res.Gaps[0]
	assert.Equal(t, "2025-01-07", gap.Period.Start.String())
	assert.Equal(t, "2025-04-16", gap.Period.End.String())
	assertMoney(t, "-1000", gap.Deficit)

	assert.False(t, res.ExhaustedAt.IsZero())
	assert.True(t, res.ExhaustedAt.After(gap.Period.End))
}

// =============================================================================
// PROPERTIES
// =============================================================================

func realisticConfig() deposit.Config {
	return deposit.Config{
		Start:            d0,
		MonthlyDrift:     money("-1000"),
		StartingBalance:  money("20000"),
		MaxTermMonths:    12,
		AnnualRates:      rates("0", "8", "9", "10", "11", "12", "13"),
		TaxPercent:       money("13"),
		InflationPercent: money("4"),
		HorizonYears:     3,
		Existing: []deposit.ExistingInstrument{
			{Maturity: generic.NewTimePoint(2025, time.June, 15), Amount: money("5000"), Label: "savings"},
		},
	}
}

func TestScheduler_Realistic_Invariants(t *testing.T) {
	res, err := deposit.NewScheduler().Run(realisticConfig())
	require.NoError(t, err)

	assert.True(t, res.OpenPrincipalResidual.Abs().LessThanOrEqual(generic.Epsilon))
	for _, inst := range res.Instruments {
		assert.False(t, inst.Amount.IsNegative(), "%s amount %s", inst.Label, inst.Amount)
		assert.Equal(t, generic.StatusClosed, inst.Status)
	}
	for i := 1; i < len(res.Steps); i++ {
		assert.False(t, res.Steps[i].Date.Before(res.Steps[i-1].Date), "step %d goes back in time", i)
	}

	savings, ok := res.Find("savings")
	require.True(t, ok)
	assert.Equal(t, "2025-06-16", savings.End.String(), "sunday maturity moves to monday")

	first, ok := res.Find("new#1")
	require.True(t, ok)
	assert.True(t, first.HeldAsCash)
	assert.Equal(t, "2025-01-21", first.End.String())
	assertMoney(t, "500", first.Amount)

	assert.False(t, res.ExhaustedAt.IsZero())
}

func TestScheduler_ConservesMoney(t *testing.T) {
	// Every closed value flows back to cash; every opened amount left it.
	cfg := realisticConfig()
	cfg.MonthlyDrift = money("-600")
	cfg.InflationPercent = decimal.Zero

	res, err := deposit.NewScheduler().Run(cfg)
	require.NoError(t, err)

	in := decimal.Zero
	out := decimal.Zero
	for _, inst := range res.Instruments {
		in = in.Add(inst.Value)
		if inst.IsCreated() {
			out = out.Add(inst.Amount)
		}
	}
	days := generic.DaysBetween(cfg.Start, res.FinalDate)
	drift := cfg.MonthlyDrift.Div(decimal.NewFromInt(30)).Mul(decimal.NewFromInt(int64(days)))
	want := cfg.StartingBalance.Add(drift).Add(in).Sub(out)

	assert.True(t, want.Sub(res.FinalBalance).Abs().LessThan(money("0.01")), "want %s, got %s", want, res.FinalBalance)
}

// =============================================================================
// VALIDATION AND HOOKS
// =============================================================================

func TestScheduler_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*deposit.Config)
	}{
		{"missing start", func(c *deposit.Config) { c.Start = generic.TimePoint{} }},
		{"zero max term", func(c *deposit.Config) { c.MaxTermMonths = 0 }},
		{"negative rate", func(c *deposit.Config) { c.AnnualRates = rates("1", "-2") }},
		{"tax over 100", func(c *deposit.Config) { c.TaxPercent = money("101") }},
		{"inflation of 100", func(c *deposit.Config) { c.InflationPercent = money("100") }},
		{"negative existing amount", func(c *deposit.Config) {
			c.Existing = []deposit.ExistingInstrument{{Maturity: d0, Amount: money("-1")}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := realisticConfig()
			tt.mutate(&cfg)
			_, err := deposit.NewScheduler().Run(cfg)
			assert.ErrorIs(t, err, generic.ErrInvalidConfig)
			assert.True(t, generic.IsClientError(err))
		})
	}
}

func TestScheduler_ObserverSeesEveryStep(t *testing.T) {
	var seen []deposit.Step
	s := deposit.NewScheduler()
	s.Observer = func(step deposit.Step) { seen = append(seen, step) }

	res, err := s.Run(realisticConfig())
	require.NoError(t, err)

	require.Len(t, seen, len(res.Steps))
	for i, step := range seen {
		assert.Equal(t, i, step.Index)
	}
}
