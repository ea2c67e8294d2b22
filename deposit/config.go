/*
Package deposit implements the deposit-laddering forecast on top of the
generic instrument ledger.

PURPOSE:
  Given a start date, a starting cash balance, a monthly net drift and a
  set of deposit conditions, the package walks time forward and decides
  when spare cash is locked into a new deposit and which deposit is broken
  when projected expenses would drive the balance below zero.

COMPONENTS:
  - config.go:    Config and its validation
  - interest.go:  tiered annual rates, accrual and its inverse
  - drift.go:     monthly net drift with expense inflation
  - scheduler.go: the forward-stepping control loop
  - allocator.go: greedy FIFO liquidation during a shortfall
  - timeline.go:  presentation-ready event sequence

USAGE:
  res, err := deposit.NewScheduler().Run(cfg)
  events := deposit.AssembleTimeline(res, deposit.TimelineActual)
*/
package deposit

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/deposit-ladder/generic"
)

// DefaultHorizonYears is how far the scheduler looks ahead when Config.HorizonYears is zero.
const DefaultHorizonYears = 5

// Config is the structured simulation input.
type Config struct {
	Start           generic.TimePoint
	MonthlyDrift    decimal.Decimal // positive = net income, negative = net expense
	StartingBalance decimal.Decimal
	MaxTermMonths   int

	// AnnualRates are gross annual percentages, one per deposit-month tier.
	AnnualRates      []decimal.Decimal
	TaxPercent       decimal.Decimal
	InflationPercent decimal.Decimal

	Existing     []ExistingInstrument
	HorizonYears int
}

// ExistingInstrument is a deposit already held at the start date.
type ExistingInstrument struct {
	Maturity generic.TimePoint
	Amount   decimal.Decimal
	Label    string
}

// Horizon returns the simulated period.
func (c Config) Horizon() generic.Period {
	years := c.HorizonYears
	if years == 0 {
		years = DefaultHorizonYears
	}
	return generic.HorizonFrom(c.Start, years)
}

// Validate rejects structurally invalid input before any simulation step runs.
func (c Config) Validate() error {
	hundred := decimal.NewFromInt(100)

	if c.Start.IsZero() {
		return &generic.ConfigError{Field: "start", Reason: "required"}
	}
	if c.MaxTermMonths < 1 {
		return &generic.ConfigError{Field: "max_term_months", Reason: "must be at least 1"}
	}
	if c.HorizonYears < 0 || c.HorizonYears > 100 {
		return &generic.ConfigError{Field: "horizon_years", Reason: "must be between 0 and 100"}
	}
	if c.TaxPercent.IsNegative() || c.TaxPercent.GreaterThan(hundred) {
		return &generic.ConfigError{Field: "tax", Reason: "must be between 0% and 100%"}
	}
	if c.InflationPercent.IsNegative() || c.InflationPercent.GreaterThanOrEqual(hundred) {
		return &generic.ConfigError{Field: "inflation", Reason: "must be at least 0% and below 100%"}
	}
	for i, r := range c.AnnualRates {
		if r.IsNegative() {
			return &generic.ConfigError{Field: fmt.Sprintf("rates[%d]", i), Reason: "negative rate"}
		}
	}
	for i, e := range c.Existing {
		field := fmt.Sprintf("existing[%d]", i)
		if e.Maturity.IsZero() {
			return &generic.ConfigError{Field: field, Reason: "end date required"}
		}
		if e.Amount.IsNegative() {
			return &generic.ConfigError{Field: field, Reason: "negative amount"}
		}
	}
	return nil
}
