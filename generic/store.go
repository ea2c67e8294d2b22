/*
store.go - Storage interface for instruments

PURPOSE:
  The InstrumentStore is the single authoritative home of every instrument
  in a simulation run: pre-existing, created, open and closed. Pools are
  views over the store selected by status and origin tags, never separate
  collections that could drift apart.

SNAPSHOT CONTRACT:
  List() returns copies. Callers iterate a snapshot and mutate through the
  Ledger, so removal during iteration is never an issue.

IMPLEMENTATIONS:
  - generic/store/memory.go: in-memory, one store per simulation run

SEE ALSO:
  - ledger.go: the only writer
*/
package generic

// InstrumentFilter selects instruments by tag. Empty fields match everything.
type InstrumentFilter struct {
	Origin Origin
	Status Status
}

// Matches reports whether the instrument satisfies the filter.
func (f InstrumentFilter) Matches(inst Instrument) bool {
	if f.Origin != "" && inst.Origin != f.Origin {
		return false
	}
	if f.Status != "" && inst.Status != f.Status {
		return false
	}
	return true
}

// InstrumentStore persists instruments for the duration of a run.
type InstrumentStore interface {
	// Insert adds a new instrument. The ID must be unused.
	Insert(inst Instrument) error

	// Put replaces an existing instrument.
	Put(inst Instrument) error

	// Get returns the instrument or ErrInstrumentNotFound.
	Get(id InstrumentID) (Instrument, error)

	// List returns a snapshot of matching instruments ordered by Seq,
	// then by insertion order.
	List(filter InstrumentFilter) []Instrument
}
