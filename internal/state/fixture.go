package state

import (
	"time"

	"github.com/dokzlo13/ansultad/internal/ansulta"
	"github.com/dokzlo13/ansultad/internal/storage"
)

// KindFixture is the resource_state kind for fixture documents.
const KindFixture = "fixture"

const (
	idAddress = "address"
	idLight   = "light"
)

// AddressRecord is the persisted fixture address.
type AddressRecord struct {
	A       byte      `json:"a"`
	B       byte      `json:"b"`
	Source  string    `json:"source"` // "learned" or "config"
	SavedAt time.Time `json:"saved_at"`
}

// LightRecord is the last believed light state.
type LightRecord struct {
	State         string    `json:"state"`
	SelfInitiated bool      `json:"self_initiated"`
	ChangedAt     time.Time `json:"changed_at"`
}

// FixtureStore persists what the daemon knows about the fixture across
// restarts.
type FixtureStore struct {
	address *TypedStore[AddressRecord]
	light   *TypedStore[LightRecord]
}

// NewFixtureStore creates a fixture store.
func NewFixtureStore(store *storage.Store) *FixtureStore {
	return &FixtureStore{
		address: NewTypedStore[AddressRecord](store, KindFixture),
		light:   NewTypedStore[LightRecord](store, KindFixture),
	}
}

// LoadAddress returns the stored address. ok is false when nothing usable
// is stored; a stored sentinel counts as nothing.
func (s *FixtureStore) LoadAddress() (addr ansulta.Address, ok bool, err error) {
	rec, version, err := s.address.Get(idAddress)
	if err != nil || version == 0 {
		return ansulta.Address{}, false, err
	}
	addr = ansulta.Address{A: rec.A, B: rec.B}
	if addr.IsZero() {
		return ansulta.Address{}, false, nil
	}
	return addr, true, nil
}

// SaveAddress stores addr. The sentinel is never stored.
func (s *FixtureStore) SaveAddress(addr ansulta.Address, source string) error {
	if addr.IsZero() {
		return ansulta.ErrNoAddress
	}
	return s.address.Set(idAddress, AddressRecord{
		A:       addr.A,
		B:       addr.B,
		Source:  source,
		SavedAt: time.Now().UTC(),
	})
}

// ClearAddress forgets the stored address so the next start learns again.
func (s *FixtureStore) ClearAddress() error {
	return s.address.Delete(idAddress)
}

// LoadLightState returns the last stored light state.
func (s *FixtureStore) LoadLightState() (ansulta.LightState, bool, error) {
	rec, version, err := s.light.Get(idLight)
	if err != nil || version == 0 {
		return ansulta.StateOff, false, err
	}
	st, ok := ansulta.ParseLightState(rec.State)
	return st, ok, nil
}

// SaveLightState records a state change.
func (s *FixtureStore) SaveLightState(st ansulta.LightState, selfInitiated bool) error {
	return s.light.Set(idLight, LightRecord{
		State:         st.String(),
		SelfInitiated: selfInitiated,
		ChangedAt:     time.Now().UTC(),
	})
}
