package deposit

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/deposit-ladder/generic"
)

// =============================================================================
// TIMELINE
// =============================================================================

// TimelineMode selects which end date a liquidated deposit is shown at.
type TimelineMode string

const (
	// TimelineWanted shows liquidations on the day cash was needed.
	TimelineWanted TimelineMode = "wanted"
	// TimelineActual shows liquidations on the day the deposit is actually closed.
	TimelineActual TimelineMode = "actual"
)

// ParseTimelineMode accepts "wanted" and "actual"; empty means actual.
func ParseTimelineMode(s string) (TimelineMode, error) {
	switch TimelineMode(s) {
	case "", TimelineActual:
		return TimelineActual, nil
	case TimelineWanted:
		return TimelineWanted, nil
	}
	return "", &generic.ConfigError{Field: "mode", Reason: "must be wanted or actual"}
}

type EventKind string

const (
	EventOpen  EventKind = "open"
	EventClose EventKind = "close"
)

// neighbourWindow is how close two end dates must be for the deposits to be
// candidates for consolidation.
const neighbourWindow = 7

// TimelineEvent is one deposit opening or closing with the replayed balance.
type TimelineEvent struct {
	Kind   EventKind
	Date   generic.TimePoint
	Label  string
	Origin generic.Origin
	Amount decimal.Decimal // principal for opens, realized value for closes

	Start     generic.TimePoint
	End       generic.TimePoint
	WantedEnd generic.TimePoint // set only when it differs from End

	DurationMonths      int
	HeldAsCash          bool
	HeldDays            int
	ForcedByDurationCap bool

	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal

	Continuation bool // previous event is on the same date
	Continued    bool // next event is on the same date

	// LowBefore flags a balance under an eighth of a month of expenses.
	LowBefore bool
	// OutOfBand flags a balance far from the one month of cash the ladder aims for.
	OutOfBand bool

	// Neighbours are closed deposits ending within a week of this one that
	// started no later, i.e. could have been added to it.
	Neighbours []generic.Instrument
}

type timelineEntry struct {
	open bool
	inst generic.Instrument
	at   generic.TimePoint
	seq  int
}

// AssembleTimeline orders the closed log into opens and closes and replays
// the balance between them. On equal dates opens come before closes.
func AssembleTimeline(res *Result, mode TimelineMode) []TimelineEvent {
	wanted := mode == TimelineWanted

	var entries []timelineEntry
	for _, inst := range res.Instruments {
		if start, ok := inst.StartDate(); ok {
			entries = append(entries, timelineEntry{open: true, inst: inst, at: start, seq: len(entries)})
		}
		entries = append(entries, timelineEntry{inst: inst, at: inst.EndFor(wanted), seq: len(entries)})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.at.Equal(b.at) {
			return a.at.Before(b.at)
		}
		if a.open != b.open {
			return a.open
		}
		return a.seq < b.seq
	})

	drift := Drift{Monthly: res.Config.MonthlyDrift, InflationPercent: res.Config.InflationPercent, Start: res.Config.Start}
	band := decimal.RequireFromString("0.3")
	if wanted {
		band = decimal.RequireFromString("0.1")
	}
	one := decimal.NewFromInt(1)

	events := make([]TimelineEvent, 0, len(entries))
	balance := res.Config.StartingBalance
	date := res.Config.Start

	for i, e := range entries {
		if e.at.After(date) {
			balance = balance.Add(drift.Over(date, generic.DaysBetween(date, e.at)))
			date = e.at
		}
		monthly := drift.Effective(date)

		ev := TimelineEvent{
			Kind:                EventClose,
			Date:                e.at,
			Label:               e.inst.Label,
			Origin:              e.inst.Origin,
			Start:               e.inst.Start,
			End:                 e.inst.End,
			DurationMonths:      e.inst.DurationMonths(),
			HeldAsCash:          e.inst.HeldAsCash,
			HeldDays:            e.inst.HeldDays(),
			ForcedByDurationCap: e.inst.ForcedByDurationCap,
			BalanceBefore:       balance,
			Continuation:        i > 0 && entries[i-1].at.Equal(e.at),
			Continued:           i+1 < len(entries) && entries[i+1].at.Equal(e.at),
		}
		if !e.inst.WantedEnd.IsZero() && !e.inst.WantedEnd.Equal(e.inst.End) {
			ev.WantedEnd = e.inst.WantedEnd
		}

		if e.open {
			ev.Kind = EventOpen
			ev.Amount = e.inst.Amount
			ev.Neighbours = neighbours(res.Instruments, e.inst)
			balance = balance.Sub(e.inst.Amount)
		} else {
			ev.Amount = e.inst.Value
			balance = balance.Add(e.inst.Value)
		}
		ev.BalanceAfter = balance

		ev.LowBefore = !ev.Continuation && ev.BalanceBefore.LessThan(monthly.Neg().Div(decimal.NewFromInt(8)))
		low := monthly.Neg().Mul(one.Sub(band))
		high := monthly.Neg().Mul(one.Add(band.Mul(decimal.NewFromInt(2))))
		ev.OutOfBand = !ev.Continued && (balance.LessThan(low) || balance.GreaterThan(high))

		events = append(events, ev)
	}
	return events
}

func neighbours(all []generic.Instrument, inst generic.Instrument) []generic.Instrument {
	from := inst.End.AddDays(-neighbourWindow)
	to := inst.End.AddDays(neighbourWindow)

	var out []generic.Instrument
	for _, other := range all {
		if other.ID == inst.ID || !other.IsCreated() {
			continue
		}
		if other.End.Before(from) || other.End.After(to) || other.Start.After(inst.Start) {
			continue
		}
		out = append(out, other)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
