/*
scheduler.go - The ladder control loop

PURPOSE:
  Walks simulated time forward from the start date to the horizon. Each
  iteration jumps to the next "interesting" date:

    - the nearest maturity (a pre-existing end date, or a created deposit
      reaching the maximum term), or
    - the liquidity horizon: the day the balance would drop to about half
      a month of expenses.

  A maturity returns money to the balance and may open a new deposit. A
  liquidity horizon reached first starts a shortfall episode handled by
  the Allocator. If the allocator cannot cover it, the loop either waits
  for the next maturity (reporting a gap) or stops with an exhaustion date.

NON-NEGATIVE DRIFT:
  Income never exhausts the balance, so the liquidity horizon is replaced
  by a 30-day sweep that only re-runs the deposit opening rule.

WIND-DOWN:
  Once the horizon is reached no new deposit is opened and the remaining
  ones mature in date order, so the conservation counter must end at zero.

FATAL CHECKS:
  - over-balance entering a shortfall episode must be <= 0
  - |open principal| <= 0.001 at the end of the run
*/
package deposit

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/deposit-ladder/generic"
	"github.com/warp/deposit-ladder/generic/store"
)

const (
	// maturityLookahead lets a maturity slightly after the liquidity horizon
	// cover the shortfall instead of breaking a deposit.
	maturityLookahead = 7
	sweepDays         = 30
)

// Scheduler runs ladder simulations. It is stateless between runs.
type Scheduler struct {
	// Observer, when set, receives every step as it is recorded.
	Observer func(Step)
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Run simulates cfg and returns the ledger, the steps and any gaps.
func (s *Scheduler) Run(cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sim, err := s.newSimulation(cfg)
	if err != nil {
		return nil, err
	}
	st := &State{Date: cfg.Start, Balance: cfg.StartingBalance}

	if err := sim.run(st); err != nil {
		return nil, err
	}
	return sim.finish(st)
}

// =============================================================================
// SIMULATION
// =============================================================================

type simulation struct {
	cfg       Config
	tiers     TierTable
	drift     Drift
	ledger    *generic.Ledger
	allocator *Allocator
	horizon   generic.Period
	observer  func(Step)

	result  *Result
	winding bool
}

type maturity struct {
	inst generic.Instrument
	at   generic.TimePoint
}

func (s *Scheduler) newSimulation(cfg Config) (*simulation, error) {
	tiers := NewTierTable(cfg.AnnualRates, cfg.TaxPercent, cfg.InflationPercent)
	ledger := generic.NewLedger(store.NewMemory())

	existing := append([]ExistingInstrument(nil), cfg.Existing...)
	sort.SliceStable(existing, func(i, j int) bool {
		return existing[i].Maturity.Before(existing[j].Maturity)
	})
	for _, e := range existing {
		if _, err := ledger.AddExisting(generic.CorrectForWeekend(e.Maturity), e.Amount, e.Label); err != nil {
			return nil, err
		}
	}

	return &simulation{
		cfg:       cfg,
		tiers:     tiers,
		drift:     Drift{Monthly: cfg.MonthlyDrift, InflationPercent: cfg.InflationPercent, Start: cfg.Start},
		ledger:    ledger,
		allocator: &Allocator{Ledger: ledger, Tiers: tiers},
		horizon:   cfg.Horizon(),
		observer:  s.Observer,
		result:    &Result{Config: cfg},
	}, nil
}

func (sim *simulation) run(st *State) error {
	first := sim.newStep(StepStart, st)
	if err := sim.openOrCreate(st, &first); err != nil {
		return err
	}
	sim.record(first, st)

	for st.Date.Before(sim.horizon.End) {
		next, ok := sim.nextMaturity()

		if !sim.drift.Effective(st.Date).IsNegative() {
			sweep := generic.CorrectForWeekend(st.Date.AddDays(sweepDays))
			if ok && !next.at.After(sweep.AddDays(maturityLookahead)) {
				if err := sim.mature(st, next, StepMature); err != nil {
					return err
				}
				continue
			}
			if err := sim.sweep(st, sweep); err != nil {
				return err
			}
			continue
		}

		liquidity := sim.liquidityHorizon(st)
		if ok && !next.at.After(liquidity.AddDays(maturityLookahead)) {
			if err := sim.mature(st, next, StepMature); err != nil {
				return err
			}
			continue
		}

		done, err := sim.shortfall(st, liquidity)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}

	sim.winding = true
	for {
		next, ok := sim.nextMaturity()
		if !ok {
			return nil
		}
		if err := sim.mature(st, next, StepSettle); err != nil {
			return err
		}
	}
}

func (sim *simulation) finish(st *State) (*Result, error) {
	residual := sim.ledger.OpenPrincipal()
	if residual.Abs().GreaterThan(generic.Epsilon) {
		return nil, &generic.InvariantError{Check: "open principal does not return to zero", At: st.Date, Value: residual}
	}

	res := sim.result
	res.Instruments = sim.ledger.Closed()
	for _, inst := range res.Instruments {
		if inst.Amount.IsNegative() {
			return nil, &generic.InvariantError{Check: fmt.Sprintf("%s has a negative amount", inst.Label), At: inst.End, Value: inst.Amount}
		}
	}
	res.FinalDate = st.Date
	res.FinalBalance = st.Balance
	res.OpenPrincipalResidual = residual
	return res, nil
}

// =============================================================================
// STEPS
// =============================================================================

// mature advances to the maturity date, realizes the instrument and re-sweeps.
func (sim *simulation) mature(st *State, m maturity, kind StepKind) error {
	sim.accrue(st, generic.MaxTime(st.Date, m.at))
	step := sim.newStep(kind, st)

	value := m.inst.Amount
	if m.inst.IsCreated() {
		value = sim.tiers.ValueAt(m.inst, st.Date)
	}
	closed, err := sim.ledger.Mature(m.inst.ID, st.Date, value)
	if err != nil {
		return err
	}
	st.Balance = st.Balance.Add(value)
	step.Closed = append(step.Closed, closed.Label)

	if err := sim.openOrCreate(st, &step); err != nil {
		return err
	}
	sim.record(step, st)
	return nil
}

func (sim *simulation) sweep(st *State, to generic.TimePoint) error {
	sim.accrue(st, to)
	step := sim.newStep(StepSweep, st)
	if err := sim.openOrCreate(st, &step); err != nil {
		return err
	}
	sim.record(step, st)
	return nil
}

// shortfall advances to the liquidity horizon and covers the deficit.
// It reports true when the simulation must stop.
func (sim *simulation) shortfall(st *State, liquidity generic.TimePoint) (bool, error) {
	drift := sim.drift.Effective(st.Date)
	sim.accrue(st, liquidity)
	over := st.Balance.Add(drift)

	// Any earlier surplus was already swept into a deposit.
	if over.IsPositive() {
		return false, &generic.InvariantError{Check: "positive over-balance entering a shortfall", At: st.Date, Value: over}
	}

	step := sim.newStep(StepWithdraw, st)
	left, err := sim.allocator.Allocate(st, over.Neg(), &step)
	if err != nil {
		return false, err
	}
	sim.record(step, st)
	if !left.IsPositive() {
		return false, nil
	}

	next, ok := sim.nextMaturity()
	if !ok {
		days := 0
		if rate := sim.drift.Effective(st.Date).Neg().Div(daysPerMonth); rate.IsPositive() && st.Balance.IsPositive() {
			days = int(st.Balance.Div(rate).IntPart())
		}
		sim.result.ExhaustedAt = st.Date.AddDays(days)
		sim.record(sim.newStep(StepExhausted, st), st)
		return true, nil
	}

	from := st.Date
	sim.accrue(st, generic.MaxTime(st.Date, next.at))
	if st.Balance.IsNegative() {
		sim.result.Gaps = append(sim.result.Gaps, Gap{
			Period:  generic.Period{Start: from, End: st.Date},
			Deficit: st.Balance,
		})
	}
	sim.record(sim.newStep(StepGap, st), st)
	return false, nil
}

// =============================================================================
// RULES
// =============================================================================

// openOrCreate locks the over-balance into a new deposit. At least one month
// of drift stays in cash; the over-balance must exceed a tenth of a month of
// expenses so trivial deposits are not opened.
func (sim *simulation) openOrCreate(st *State, step *Step) error {
	if sim.winding || sim.tiers.IsEmpty() {
		return nil
	}
	drift := sim.drift.Effective(st.Date)
	over := st.Balance.Add(drift)
	if !over.GreaterThan(drift.Neg().Div(decimal.NewFromInt(10))) || !over.IsPositive() {
		return nil
	}
	inst, err := sim.ledger.Open(over, st.Date)
	if err != nil {
		return err
	}
	st.Balance = st.Balance.Sub(over)
	step.Opened = append(step.Opened, inst.Label)
	return nil
}

// liquidityHorizon is the weekend-corrected date at which the balance would
// fall to half a month of drift, at least one day ahead.
func (sim *simulation) liquidityHorizon(st *State) generic.TimePoint {
	drift := sim.drift.Effective(st.Date)
	perDay := drift.Neg().Div(daysPerMonth)
	days := st.Balance.Add(drift.Div(decimal.NewFromInt(2))).Div(perDay).Floor().IntPart()
	return generic.CorrectForWeekend(st.Date.AddDays(int(max(1, days))))
}

// nextMaturity returns the earliest weekend-corrected end date among open
// instruments; pre-existing ones win ties.
func (sim *simulation) nextMaturity() (maturity, bool) {
	var best maturity
	found := false
	consider := func(inst generic.Instrument, at generic.TimePoint) {
		if !found || at.Before(best.at) {
			best = maturity{inst: inst, at: at}
			found = true
		}
	}
	for _, inst := range sim.ledger.OpenExisting() {
		consider(inst, inst.Maturity)
	}
	for _, inst := range sim.ledger.OpenCreated() {
		consider(inst, sim.termEnd(inst))
	}
	return best, found
}

// termEnd is the date a created deposit hits the maximum term.
func (sim *simulation) termEnd(inst generic.Instrument) generic.TimePoint {
	return generic.CorrectForWeekend(inst.Start.AddDays(30 * sim.cfg.MaxTermMonths))
}

// accrue applies drift up to the given date and moves the clock.
func (sim *simulation) accrue(st *State, to generic.TimePoint) {
	if !to.After(st.Date) {
		return
	}
	st.Balance = st.Balance.Add(sim.drift.Over(st.Date, generic.DaysBetween(st.Date, to)))
	st.Date = to
}

func (sim *simulation) newStep(kind StepKind, st *State) Step {
	return Step{
		Index:         len(sim.result.Steps),
		Kind:          kind,
		Date:          st.Date,
		BalanceBefore: st.Balance,
	}
}

func (sim *simulation) record(step Step, st *State) {
	step.BalanceAfter = st.Balance
	sim.result.Steps = append(sim.result.Steps, step)
	if sim.observer != nil {
		sim.observer(step)
	}
}
