/*
ledger.go - Instrument transitions and the conservation counter

PURPOSE:
  The Ledger is the only writer of the InstrumentStore. Every instrument
  moves through explicit transitions:

    AddExisting  -> open, existing
    Open         -> open, created      (counter += principal)
    Mature       -> closed             (counter -= principal)
    Withdraw     -> closed             (counter -= principal)
    Split        -> closed part + open remainder (counter -= part)

CRITICAL INVARIANTS:
  1. CONSERVATION: OpenPrincipal() always equals the sum of amounts of open
     created instruments. It returns to zero once every created instrument
     has left the pool.
  2. NON-NEGATIVE: no transition leaves an amount below zero.
  3. CLOSED ONCE: End is set exactly once; closed instruments are never reopened.

MERGING:
  When a created instrument closes with the same start and end date as an
  already closed record, the amounts are folded into that record instead
  of logging a duplicate. If the two disagree on the wanted end date it is
  cleared on the merged record.

EXAMPLE FLOW:
  1. Open 1000 on Jan 10:               new#1 open 1000, counter 1000
  2. Need 300 on Apr 10:                new#1 closed 300, new#2 open 700, counter 700
  3. new#2 hits the term cap on Jan 5:  new#2 closed 700, counter 0
*/
package generic

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	Store InstrumentStore

	openPrincipal decimal.Decimal
	created       int
	seq           int
	closeSeq      int
}

func NewLedger(store InstrumentStore) *Ledger {
	return &Ledger{Store: store}
}

// OpenPrincipal is the conservation counter: principal locked in open created instruments.
func (l *Ledger) OpenPrincipal() decimal.Decimal { return l.openPrincipal }

// OpenCreated returns open created instruments, oldest first.
func (l *Ledger) OpenCreated() []Instrument {
	return l.Store.List(InstrumentFilter{Origin: OriginCreated, Status: StatusOpen})
}

// OpenExisting returns open pre-existing instruments in input order.
func (l *Ledger) OpenExisting() []Instrument {
	return l.Store.List(InstrumentFilter{Origin: OriginExisting, Status: StatusOpen})
}

// Closed returns the closed log in closing order. Merged records are folded in.
func (l *Ledger) Closed() []Instrument {
	closed := l.Store.List(InstrumentFilter{Status: StatusClosed})
	sortByCloseSeq(closed)
	return closed
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// AddExisting registers a pre-existing instrument that ends at maturity.
func (l *Ledger) AddExisting(maturity TimePoint, amount decimal.Decimal, label string) (Instrument, error) {
	if amount.IsNegative() {
		return Instrument{}, &ConfigError{Field: "instrument " + label, Reason: "negative amount"}
	}
	id := l.nextID()
	inst := Instrument{
		ID:       id,
		Seq:      l.seq,
		Label:    label,
		Origin:   OriginExisting,
		Status:   StatusOpen,
		Amount:   amount,
		Maturity: maturity,
	}
	if err := l.Store.Insert(inst); err != nil {
		return Instrument{}, err
	}
	return inst, nil
}

// Open creates a new instrument labelled new#<n> and adds its principal to the counter.
func (l *Ledger) Open(amount decimal.Decimal, at TimePoint) (Instrument, error) {
	if !amount.IsPositive() {
		return Instrument{}, &InvariantError{Check: "opened amount must be positive", At: at, Value: amount}
	}
	id := l.nextID()
	inst := Instrument{
		ID:     id,
		Seq:    l.seq,
		Label:  l.nextLabel(),
		Origin: OriginCreated,
		Status: StatusOpen,
		Amount: amount,
		Start:  at,
	}
	if err := l.Store.Insert(inst); err != nil {
		return Instrument{}, err
	}
	l.openPrincipal = l.openPrincipal.Add(amount)
	return inst, nil
}

// Mature closes an instrument at its natural end. For created instruments
// the end is the term cap, so ForcedByDurationCap is set.
func (l *Ledger) Mature(id InstrumentID, at TimePoint, value decimal.Decimal) (Instrument, error) {
	inst, err := l.openInstrument(id)
	if err != nil {
		return Instrument{}, err
	}
	if inst.IsCreated() {
		l.openPrincipal = l.openPrincipal.Sub(inst.Amount)
		inst.ForcedByDurationCap = true
	}
	inst.Value = value
	return l.close(inst, at, false)
}

// Withdraw liquidates a created instrument in full before its term.
func (l *Ledger) Withdraw(id InstrumentID, at, wanted TimePoint, value decimal.Decimal, heldAsCash bool) (Instrument, error) {
	inst, err := l.openInstrument(id)
	if err != nil {
		return Instrument{}, err
	}
	l.openPrincipal = l.openPrincipal.Sub(inst.Amount)
	inst.Value = value
	inst.WantedEnd = wanted
	inst.HeldAsCash = heldAsCash
	return l.close(inst, at, true)
}

// Split liquidates principal out of a created instrument. The liquidated
// part closes under the instrument's own label; the remainder continues as
// a new open instrument with the same start date and FIFO position.
func (l *Ledger) Split(id InstrumentID, principal decimal.Decimal, at, wanted TimePoint, value decimal.Decimal, heldAsCash bool) (closed Instrument, remainder Instrument, err error) {
	inst, err := l.openInstrument(id)
	if err != nil {
		return Instrument{}, Instrument{}, err
	}
	rest := inst.Amount.Sub(principal)
	if principal.IsNegative() || rest.IsNegative() {
		return Instrument{}, Instrument{}, &InvariantError{Check: fmt.Sprintf("split of %s leaves a negative amount", inst.Label), At: at, Value: rest}
	}

	remainder = Instrument{
		ID:     l.nextID(),
		Seq:    inst.Seq,
		Label:  l.nextLabel(),
		Origin: OriginCreated,
		Status: StatusOpen,
		Amount: rest,
		Start:  inst.Start,
	}
	if err := l.Store.Insert(remainder); err != nil {
		return Instrument{}, Instrument{}, err
	}

	l.openPrincipal = l.openPrincipal.Sub(principal)
	inst.Amount = principal
	inst.Value = value
	inst.WantedEnd = wanted
	inst.HeldAsCash = heldAsCash
	closed, err = l.close(inst, at, true)
	return closed, remainder, err
}

// =============================================================================
// INTERNALS
// =============================================================================

func (l *Ledger) openInstrument(id InstrumentID) (Instrument, error) {
	inst, err := l.Store.Get(id)
	if err != nil {
		return Instrument{}, err
	}
	if !inst.IsOpen() {
		return Instrument{}, fmt.Errorf("%s: %w", inst.Label, ErrInstrumentClosed)
	}
	return inst, nil
}

// close moves inst to the closed log. Liquidations of one deposit that end
// on the same date fold into a single record; maturities never merge.
func (l *Ledger) close(inst Instrument, at TimePoint, merge bool) (Instrument, error) {
	if inst.IsCreated() && at.Before(inst.Start) {
		return Instrument{}, &InvariantError{Check: fmt.Sprintf("%s closes before it starts", inst.Label), At: at, Value: inst.Amount}
	}
	inst.End = at

	if merge && inst.IsCreated() {
		if twin, ok := l.closedTwin(inst); ok {
			twin.Amount = twin.Amount.Add(inst.Amount)
			twin.Value = twin.Value.Add(inst.Value)
			if !twin.WantedEnd.Equal(inst.WantedEnd) {
				twin.WantedEnd = TimePoint{}
			}
			inst.Status = StatusMerged
			inst.MergedInto = twin.ID
			if err := l.Store.Put(inst); err != nil {
				return Instrument{}, err
			}
			if err := l.Store.Put(twin); err != nil {
				return Instrument{}, err
			}
			return twin, nil
		}
	}

	l.closeSeq++
	inst.Status = StatusClosed
	inst.CloseSeq = l.closeSeq
	if err := l.Store.Put(inst); err != nil {
		return Instrument{}, err
	}
	return inst, nil
}

func (l *Ledger) closedTwin(inst Instrument) (Instrument, bool) {
	for _, c := range l.Store.List(InstrumentFilter{Origin: OriginCreated, Status: StatusClosed}) {
		if !c.ForcedByDurationCap && c.Start.Equal(inst.Start) && c.End.Equal(inst.End) {
			return c, true
		}
	}
	return Instrument{}, false
}

func (l *Ledger) nextID() InstrumentID {
	l.seq++
	return InstrumentID(fmt.Sprintf("inst-%04d", l.seq))
}

func (l *Ledger) nextLabel() string {
	l.created++
	return fmt.Sprintf("new#%d", l.created)
}

func sortByCloseSeq(insts []Instrument) {
	sort.Slice(insts, func(i, j int) bool { return insts[i].CloseSeq < insts[j].CloseSeq })
}
