package preferences

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/mmcdole/radiopad/internal/domain"
	"github.com/mmcdole/radiopad/internal/events"
)

// Event names emitted on the store's bus
const (
	EventChange         = "on-change"
	EventOptionsChanged = "options-changed"
)

// Change is the payload of EventChange.
type Change struct {
	Key   string
	Value string
}

// OptionsChange is the payload of EventOptionsChanged.
type OptionsChange struct {
	Key     string
	Options []domain.Option
}

type entry struct {
	// write serializes Set/SetOptions for this key, including emission, so
	// on-change events for a key are delivered in write order.
	write sync.Mutex

	def Definition

	// guarded by Store.mu
	value       string
	has         bool
	initialized bool
	options     []domain.Option
}

// Store holds preference values backed by a domain.KeyValueStore.
//
// Handlers of EventChange may read any key and write other keys. Writing
// the key being emitted with the handler's context fails with
// domain.ErrReentrantPreference instead of blocking; writes from another
// goroutine with an unrelated context wait for the emission to finish.
type Store struct {
	kv     domain.KeyValueStore
	bus    *events.Bus
	logger *slog.Logger

	mu      sync.RWMutex
	order   []string
	entries map[string]*entry
}

var _ domain.PreferenceReader = (*Store)(nil)

// NewStore creates a store for defs. A nil bus gets a private one.
func NewStore(kv domain.KeyValueStore, bus *events.Bus, logger *slog.Logger, defs ...Definition) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if bus == nil {
		bus = events.NewBus()
	}
	s := &Store{
		kv:      kv,
		bus:     bus,
		logger:  logger,
		entries: make(map[string]*entry, len(defs)),
	}
	for _, def := range defs {
		e := &entry{def: def}
		if sel, ok := def.(*SelectDefinition); ok {
			e.options = slices.Clone(sel.Options)
		}
		if _, dup := s.entries[def.Key()]; !dup {
			s.order = append(s.order, def.Key())
		}
		s.entries[def.Key()] = e
	}

	events.On(bus, EventChange, func(ctx context.Context, c Change) error {
		s.logger.Info("preference changed", "key", c.Key, "value", c.Value)
		return nil
	})
	return s
}

// Events returns the bus that carries EventChange and EventOptionsChanged.
func (s *Store) Events() *events.Bus { return s.bus }

// Init loads every defined key from the backing store, then announces the
// loaded values in definition order. A key with no valid persisted value
// gets its default through Set; keys without either stay unset.
//
// Values are loaded before any event fires so that handlers reacting to an
// early key observe the persisted state of later keys.
func (s *Store) Init(ctx context.Context) error {
	for _, key := range s.order {
		if err := s.load(s.entries[key]); err != nil {
			return err
		}
	}
	for _, key := range s.order {
		if err := s.announce(ctx, s.entries[key]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) load(e *entry) error {
	e.write.Lock()
	defer e.write.Unlock()

	key := e.def.Key()
	stored, ok, err := s.kv.Get(key)
	if err != nil {
		return fmt.Errorf("load preference %s: %w", key, err)
	}

	var value string
	if ok {
		value, err = s.normalize(e, stored)
		switch {
		case err != nil:
			s.logger.Warn("normalization failed for stored preference", "key", key, "error", err)
			ok = false
		case !s.validate(e, value):
			s.logger.Warn("ignoring invalid stored preference", "preference", describe(e.def), "value", stored)
			ok = false
		}
	}

	s.mu.Lock()
	e.value, e.has = value, ok
	e.initialized = true
	s.mu.Unlock()
	return nil
}

func (s *Store) announce(ctx context.Context, e *entry) error {
	key := e.def.Key()
	ctx, err := s.enter(ctx, key)
	if err != nil {
		return err
	}
	e.write.Lock()
	defer e.write.Unlock()

	if value, has := s.current(e); has {
		return s.bus.Emit(ctx, EventChange, Change{Key: key, Value: value})
	}
	if def, ok := e.def.Default(); ok {
		_, err := s.setLocked(ctx, e, def)
		return err
	}
	return nil
}

// Get returns the current value for key. Unknown keys report false.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.RUnlock()
		return "", false
	}
	if e.initialized || e.has {
		v, has := e.value, e.has
		s.mu.RUnlock()
		return v, has
	}
	s.mu.RUnlock()

	v, found, err := s.kv.Get(key)
	if err != nil {
		s.logger.Warn("failed to read preference", "key", key, "error", err)
		return "", false
	}
	return v, found
}

// Set normalizes, validates, persists and announces a new value.
//
// Rejected input (unknown key, failed normalization, failed validation) is
// logged and leaves the prior value in place; the returned value is then the
// prior one and err is nil. Writing the current value again is free: no
// I/O, no event. err is non-nil only when persistence or an EventChange
// handler fails.
func (s *Store) Set(ctx context.Context, key, raw string) (string, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		s.logger.Warn("unknown preference", "key", key)
		return "", nil
	}

	ctx, err := s.enter(ctx, key)
	if err != nil {
		current, _ := s.current(e)
		return current, err
	}
	e.write.Lock()
	defer e.write.Unlock()
	return s.setLocked(ctx, e, raw)
}

// writing marks the keys whose write, including emission, is in progress
// on the current call chain.
type writing struct {
	key    string
	parent *writing
}

type writingKey struct{}

// enter marks key as being written in ctx. It fails when ctx already
// carries a write of key, which would otherwise deadlock on the key's lock.
func (s *Store) enter(ctx context.Context, key string) (context.Context, error) {
	parent, _ := ctx.Value(writingKey{}).(*writing)
	for w := parent; w != nil; w = w.parent {
		if w.key == key {
			s.logger.Warn("preference written from its own change handler", "key", key)
			return ctx, fmt.Errorf("%w: %s", domain.ErrReentrantPreference, key)
		}
	}
	return context.WithValue(ctx, writingKey{}, &writing{key: key, parent: parent}), nil
}

func (s *Store) setLocked(ctx context.Context, e *entry, raw string) (string, error) {
	key := e.def.Key()
	current, has := s.current(e)
	if has && raw == current {
		return current, nil
	}

	next, err := s.normalize(e, raw)
	if err != nil {
		s.logger.Warn("normalization failed for preference", "key", key, "error", err)
		return current, nil
	}
	if next != raw {
		s.logger.Info("normalized preference", "key", key, "from", raw, "to", next)
	}

	if !s.validate(e, next) {
		s.logger.Warn("invalid value for preference", "preference", describe(e.def), "value", next)
		return current, nil
	}

	if has && next == current {
		return current, nil
	}

	if err := s.kv.Set(key, next); err != nil {
		return current, fmt.Errorf("persist preference %s: %w", key, err)
	}

	s.mu.Lock()
	e.value = next
	e.has = true
	s.mu.Unlock()

	if err := s.bus.Emit(ctx, EventChange, Change{Key: key, Value: next}); err != nil {
		return next, err
	}
	return next, nil
}

func (s *Store) current(e *entry) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return e.value, e.has
}

func (s *Store) normalize(e *entry, raw string) (string, error) {
	switch def := e.def.(type) {
	case *SelectDefinition:
		s.mu.RLock()
		options := e.options
		s.mu.RUnlock()
		return def.resolve(raw, options), nil
	case Normalizer:
		return def.Normalize(raw)
	default:
		return raw, nil
	}
}

func (s *Store) validate(e *entry, value string) bool {
	if v, ok := e.def.(Validator); ok {
		return v.Validate(value)
	}
	return true
}

// Definitions returns every definition in declaration order.
func (s *Store) Definitions() []Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	defs := make([]Definition, len(s.order))
	for i, key := range s.order {
		defs[i] = s.entries[key].def
	}
	return defs
}

// Options returns a copy of the current option list for key.
func (s *Store) Options(key string) []domain.Option {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	return slices.Clone(e.options)
}
