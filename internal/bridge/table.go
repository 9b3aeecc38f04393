// Package bridge emulates the small part of the Hue v1 API that voice
// assistants and hub apps use to discover and switch a light.
package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/dokzlo13/ansultad/internal/ansulta"
)

// MaxLights is the capacity of the light table.
const MaxLights = 16

// ErrTableFull is returned by Add when every slot is taken.
var ErrTableFull = errors.New("bridge: light table full")

// Light is a controllable fixture behind a table slot.
type Light interface {
	SetState(ctx context.Context, state ansulta.LightState, source string) error
	Status() ansulta.Status
}

// entry is one occupied slot. Brightness is what clients last asked for;
// the fixture itself only knows three levels.
type entry struct {
	name     string
	uniqueID string
	light    Light
	bri      uint8
}

// Table is a fixed-capacity set of lights addressed by 1-based id.
type Table struct {
	mu    sync.RWMutex
	slots [MaxLights]*entry
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{}
}

// Add places a light in the first free slot and returns its id.
func (t *Table) Add(name, uniqueID string, light Light) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, slot := range t.slots {
		if slot == nil {
			t.slots[i] = &entry{name: name, uniqueID: uniqueID, light: light, bri: briFull}
			return i + 1, nil
		}
	}
	return 0, ErrTableFull
}

// Remove frees a slot. Unknown ids are ignored.
func (t *Table) Remove(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id >= 1 && id <= MaxLights {
		t.slots[id-1] = nil
	}
}

// get returns a copy of the slot content.
func (t *Table) get(id int) (entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if id < 1 || id > MaxLights || t.slots[id-1] == nil {
		return entry{}, false
	}
	return *t.slots[id-1], true
}

func (t *Table) setBri(id int, bri uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id >= 1 && id <= MaxLights && t.slots[id-1] != nil {
		t.slots[id-1].bri = bri
	}
}

// ids returns the occupied ids in ascending order.
func (t *Table) ids() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []int
	for i, slot := range t.slots {
		if slot != nil {
			out = append(out, i+1)
		}
	}
	return out
}
