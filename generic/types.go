/*
Package generic provides the bookkeeping core of the deposit ladder engine.

PURPOSE:
  This package contains the domain-agnostic pieces: a day-granularity
  calendar, the instrument record, the instrument store and the ledger
  that keeps principal accounted for. It knows nothing about interest
  tiers, drift or laddering policy; those live in package deposit.

KEY CONCEPTS IN THIS FILE (types.go):
  - Instrument: a fixed-term principal allocation ("deposit")
  - Origin:     pre-existing (supplied as input) or created by the scheduler
  - Status:     open, closed, or merged into another closed record

DESIGN PRINCIPLES:
  1. Precision: all money is decimal.Decimal
  2. One store: every instrument lives in a single indexed store and only
     changes through ledger transitions (open, mature, withdraw, split)
  3. Tagged origin: fields that only make sense for one origin are only
     set for that origin (see Instrument)

SEE ALSO:
  - ledger.go: transitions and the conservation counter
  - store.go: InstrumentStore interface
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// Epsilon is the absolute tolerance used for money comparisons.
var Epsilon = decimal.RequireFromString("0.001")

// =============================================================================
// IDENTIFIERS AND TAGS
// =============================================================================

type InstrumentID string

// Origin tells where an instrument came from.
type Origin string

const (
	OriginExisting Origin = "existing" // supplied at time zero, only the end date is known
	OriginCreated  Origin = "created"  // opened by the scheduler
)

// Status is the lifecycle tag of an instrument in the store.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
	StatusMerged Status = "merged" // closed, then folded into another closed record
)

// =============================================================================
// INSTRUMENT
// =============================================================================

// Instrument is a fixed-term allocation of principal.
//
// Per origin:
//   - existing: Maturity is the (weekend-corrected) end date from input,
//     Start is zero, the amount is never re-priced.
//   - created:  Start is the opening date, Maturity is zero (the term cap
//     is a policy decision), HeldAsCash and ForcedByDurationCap may be set.
//
// End is set exactly once, when the instrument leaves the open pool.
// WantedEnd is set for liquidations: the date cash was needed, which may
// differ from End when the withdrawal was rounded to an accrual month.
type Instrument struct {
	ID     InstrumentID
	Seq    int // creation order; a split remainder keeps its parent's Seq
	Label  string
	Origin Origin
	Status Status

	Amount decimal.Decimal // principal
	Value  decimal.Decimal // realized value at close, interest included

	Start     TimePoint
	Maturity  TimePoint
	End       TimePoint
	WantedEnd TimePoint

	HeldAsCash          bool
	ForcedByDurationCap bool

	CloseSeq   int          // order in the closed log
	MergedInto InstrumentID // set when Status == StatusMerged
}

func (i Instrument) IsCreated() bool  { return i.Origin == OriginCreated }
func (i Instrument) IsExisting() bool { return i.Origin == OriginExisting }
func (i Instrument) IsOpen() bool     { return i.Status == StatusOpen }

// StartDate returns the opening date; ok is false for pre-existing instruments.
func (i Instrument) StartDate() (TimePoint, bool) {
	if i.Origin != OriginCreated {
		return TimePoint{}, false
	}
	return i.Start, true
}

// EndFor returns the end date shown in a timeline: the wanted end date when
// asked for and known, the actual end date otherwise.
func (i Instrument) EndFor(wanted bool) TimePoint {
	if wanted && !i.WantedEnd.IsZero() {
		return i.WantedEnd
	}
	return i.End
}

// DurationMonths is the deposit-month count of a closed created instrument.
func (i Instrument) DurationMonths() int {
	if !i.IsCreated() || i.End.IsZero() {
		return 0
	}
	return MonthsBetween(i.End, i.Start)
}

// HeldDays is the number of days a closed created instrument existed.
func (i Instrument) HeldDays() int {
	if !i.IsCreated() || i.End.IsZero() {
		return 0
	}
	return DaysBetween(i.Start, i.End)
}

// MustParseDecimal parses s or panics. Intended for constants and tests.
func MustParseDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
