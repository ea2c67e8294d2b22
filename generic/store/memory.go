// Package store provides InstrumentStore implementations.
package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/warp/deposit-ladder/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	instruments map[generic.InstrumentID]generic.Instrument
	order       map[generic.InstrumentID]int
	next        int
}

func NewMemory() *Memory {
	return &Memory{
		instruments: make(map[generic.InstrumentID]generic.Instrument),
		order:       make(map[generic.InstrumentID]int),
	}
}

func (m *Memory) Insert(inst generic.Instrument) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.instruments[inst.ID]; ok {
		return fmt.Errorf("insert %s: duplicate instrument id", inst.ID)
	}
	m.instruments[inst.ID] = inst
	m.order[inst.ID] = m.next
	m.next++
	return nil
}

func (m *Memory) Put(inst generic.Instrument) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.instruments[inst.ID]; !ok {
		return fmt.Errorf("put %s: %w", inst.ID, generic.ErrInstrumentNotFound)
	}
	m.instruments[inst.ID] = inst
	return nil
}

func (m *Memory) Get(id generic.InstrumentID) (generic.Instrument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.instruments[id]
	if !ok {
		return generic.Instrument{}, fmt.Errorf("get %s: %w", id, generic.ErrInstrumentNotFound)
	}
	return inst, nil
}

// List returns copies, so callers may mutate the store while ranging over the result.
func (m *Memory) List(filter generic.InstrumentFilter) []generic.Instrument {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Instrument
	for _, inst := range m.instruments {
		if filter.Matches(inst) {
			result = append(result, inst)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Seq != result[j].Seq {
			return result[i].Seq < result[j].Seq
		}
		return m.order[result[i].ID] < m.order[result[j].ID]
	})
	return result
}
