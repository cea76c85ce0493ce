// Package state holds what the remote control currently knows about the
// player it is attached to.
package state

import (
	"context"
	"reflect"
	"sync"

	"github.com/mmcdole/radiopad/internal/domain"
	"github.com/mmcdole/radiopad/internal/events"
)

// EventChange is emitted with a Change whenever a field takes a new value.
const EventChange = "on-change"

// Keys identifying each field in a Change.
const (
	KeyPlayer         = "player"
	KeyStationsURL    = "stations_url"
	KeyStations       = "stations"
	KeyCurrentStation = "currentStation"
)

// Change reports a new value for one field.
type Change struct {
	Key   string
	Value any
}

// Snapshot is a copy of the state at one point in time.
type Snapshot struct {
	Player         *domain.Player
	StationsURL    string
	Stations       *domain.StationsPayload
	CurrentStation *string
}

// Playing returns the current station name, or "" when nothing plays.
func (s Snapshot) Playing() string {
	if s.CurrentStation == nil {
		return ""
	}
	return *s.CurrentStation
}

// Store is the app state. Setting a field to the value it already holds
// emits nothing.
type Store struct {
	bus *events.Bus

	mu    sync.Mutex
	state Snapshot
}

// NewStore creates an empty store emitting on bus.
func NewStore(bus *events.Bus) *Store {
	if bus == nil {
		bus = events.NewBus()
	}
	return &Store{bus: bus}
}

// Events returns the bus changes are emitted on.
func (s *Store) Events() *events.Bus {
	return s.bus
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) SetPlayer(ctx context.Context, player *domain.Player) error {
	return s.set(ctx, KeyPlayer, player, func(st *Snapshot) any {
		old := st.Player
		st.Player = player
		return old
	})
}

func (s *Store) SetStationsURL(ctx context.Context, url string) error {
	return s.set(ctx, KeyStationsURL, url, func(st *Snapshot) any {
		old := st.StationsURL
		st.StationsURL = url
		return old
	})
}

func (s *Store) SetStations(ctx context.Context, stations *domain.StationsPayload) error {
	return s.set(ctx, KeyStations, stations, func(st *Snapshot) any {
		old := st.Stations
		st.Stations = stations
		return old
	})
}

// SetCurrentStation records the playing station; nil means nothing plays.
func (s *Store) SetCurrentStation(ctx context.Context, station *string) error {
	return s.set(ctx, KeyCurrentStation, station, func(st *Snapshot) any {
		old := st.CurrentStation
		st.CurrentStation = station
		return old
	})
}

// set applies swap under the lock and emits when the value changed.
// Changes are compared by value, so an equal copy emits nothing.
func (s *Store) set(ctx context.Context, key string, value any, swap func(*Snapshot) any) error {
	s.mu.Lock()
	before := s.state
	old := swap(&s.state)
	if reflect.DeepEqual(old, value) {
		s.state = before
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	return s.bus.Emit(ctx, EventChange, Change{Key: key, Value: value})
}
