package deposit

import (
	"github.com/shopspring/decimal"
	"github.com/warp/deposit-ladder/generic"
)

// State is the mutable simulation state threaded through every step.
type State struct {
	Date    generic.TimePoint
	Balance decimal.Decimal
}

// StepKind names what a scheduler step did.
type StepKind string

const (
	StepStart     StepKind = "start"     // initial sweep at the start date
	StepMature    StepKind = "mature"    // an instrument reached its end date
	StepSweep     StepKind = "sweep"     // non-negative drift, surplus re-swept
	StepWithdraw  StepKind = "withdraw"  // shortfall covered by the allocator
	StepGap       StepKind = "gap"       // shortfall not covered, waiting for the next maturity
	StepExhausted StepKind = "exhausted" // no instrument left, money runs out
	StepSettle    StepKind = "settle"    // wind-down maturity after the horizon
)

// Step records one iteration of the control loop.
type Step struct {
	Index         int
	Kind          StepKind
	Date          generic.TimePoint
	BalanceBefore decimal.Decimal // after drift accrual, before instrument movements
	BalanceAfter  decimal.Decimal
	Opened        []string // labels of instruments opened in this step
	Closed        []string // labels of instruments closed in this step
}

// Gap is a period where the balance is projected negative and nothing can cover it.
type Gap struct {
	Period  generic.Period
	Deficit decimal.Decimal // negative balance at the end of the period
}

// Result is the outcome of a simulation run.
type Result struct {
	Config Config

	Steps       []Step
	Instruments []generic.Instrument // closed log, closing order
	Gaps        []Gap

	// ExhaustedAt is set when money runs out with no instrument left.
	ExhaustedAt generic.TimePoint

	FinalDate    generic.TimePoint
	FinalBalance decimal.Decimal

	// OpenPrincipalResidual is the conservation counter at the end of the run.
	OpenPrincipalResidual decimal.Decimal
}

// Created returns the closed instruments opened by the scheduler.
func (r *Result) Created() []generic.Instrument {
	var out []generic.Instrument
	for _, inst := range r.Instruments {
		if inst.IsCreated() {
			out = append(out, inst)
		}
	}
	return out
}

// Find returns the closed record with the given label.
func (r *Result) Find(label string) (generic.Instrument, bool) {
	for _, inst := range r.Instruments {
		if inst.Label == label {
			return inst, true
		}
	}
	return generic.Instrument{}, false
}
