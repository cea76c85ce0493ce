package preferences

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/radiopad/internal/domain"
	"github.com/mmcdole/radiopad/internal/events"
	"github.com/mmcdole/radiopad/internal/store"
)

type recorder struct {
	mu      sync.Mutex
	changes []Change
	options []OptionsChange
	order   []string
}

func record(bus *events.Bus) *recorder {
	r := &recorder{}
	events.On(bus, EventChange, func(ctx context.Context, c Change) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.changes = append(r.changes, c)
		r.order = append(r.order, EventChange+":"+c.Key)
		return nil
	})
	events.On(bus, EventOptionsChanged, func(ctx context.Context, c OptionsChange) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.options = append(r.options, c)
		r.order = append(r.order, EventOptionsChanged+":"+c.Key)
		return nil
	})
	return r
}

func newTestStore(t *testing.T, defs ...Definition) (*Store, *store.KVStore, *recorder) {
	t.Helper()
	kv, err := store.NewKVStore("")
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	if len(defs) == 0 {
		defs = DefaultDefinitions("https://registry.radiopad.dev")
	}
	bus := events.NewBus()
	rec := record(bus)
	return NewStore(kv, bus, nil, defs...), kv, rec
}

type failingKV struct {
	domain.KeyValueStore
	err error
}

func (f failingKV) Set(key, value string) error { return f.err }

func TestInitWritesDefaultsAndLeavesOthersUnset(t *testing.T) {
	prefs, kv, rec := newTestStore(t)
	require.NoError(t, prefs.Init(context.Background()))

	v, ok := prefs.Get(KeyRegistryURL)
	assert.True(t, ok)
	assert.Equal(t, "https://registry.radiopad.dev", v)

	stored, ok, err := kv.Get(KeyRegistryURL)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, v, stored)

	_, ok = prefs.Get(KeyPlayerID)
	assert.False(t, ok)

	assert.Equal(t, []Change{{Key: KeyRegistryURL, Value: "https://registry.radiopad.dev"}}, rec.changes)
}

func TestInitAnnouncesPersistedValuesAfterLoadingAll(t *testing.T) {
	kv, err := store.NewKVStore("")
	require.NoError(t, err)
	require.NoError(t, kv.Set(KeyRegistryURL, "http://registry.lan"))
	require.NoError(t, kv.Set(KeyAccountID, "acme"))

	bus := events.NewBus()
	prefs := NewStore(kv, bus, nil, DefaultDefinitions("https://registry.radiopad.dev")...)

	var seenAccount string
	events.On(bus, EventChange, func(ctx context.Context, c Change) error {
		if c.Key == KeyRegistryURL {
			seenAccount, _ = prefs.Get(KeyAccountID)
		}
		return nil
	})
	rec := record(bus)

	require.NoError(t, prefs.Init(context.Background()))
	assert.Equal(t, "acme", seenAccount)
	assert.Equal(t, []Change{
		{Key: KeyRegistryURL, Value: "http://registry.lan"},
		{Key: KeyAccountID, Value: "acme"},
	}, rec.changes)
}

func TestInitFallsBackToDefaultForInvalidStoredValue(t *testing.T) {
	kv, err := store.NewKVStore("")
	require.NoError(t, err)
	require.NoError(t, kv.Set(KeyRegistryURL, "http://"))

	prefs := NewStore(kv, nil, nil, DefaultDefinitions("https://registry.radiopad.dev")...)
	require.NoError(t, prefs.Init(context.Background()))

	v, _ := prefs.Get(KeyRegistryURL)
	assert.Equal(t, "https://registry.radiopad.dev", v)
}

func TestSetSameValueTwiceEmitsOnce(t *testing.T) {
	prefs, _, rec := newTestStore(t)
	ctx := context.Background()

	v, err := prefs.Set(ctx, KeyPlayerID, "kitchen")
	require.NoError(t, err)
	assert.Equal(t, "kitchen", v)

	v, err = prefs.Set(ctx, KeyPlayerID, "kitchen")
	require.NoError(t, err)
	assert.Equal(t, "kitchen", v)

	assert.Len(t, rec.changes, 1)
}

func TestSetNormalizes(t *testing.T) {
	prefs, _, rec := newTestStore(t)
	ctx := context.Background()

	v, err := prefs.Set(ctx, KeyRegistryURL, "  registry.lan ")
	require.NoError(t, err)
	assert.Equal(t, "https://registry.lan", v)

	// Distinct input collapsing to the stored value is not a change.
	v, err = prefs.Set(ctx, KeyRegistryURL, "registry.lan")
	require.NoError(t, err)
	assert.Equal(t, "https://registry.lan", v)

	assert.Equal(t, []Change{{Key: KeyRegistryURL, Value: "https://registry.lan"}}, rec.changes)
}

func TestSetRejectsInvalidValueAndKeepsPrior(t *testing.T) {
	prefs, kv, rec := newTestStore(t)
	ctx := context.Background()

	_, err := prefs.Set(ctx, KeyRegistryURL, "http://registry.lan")
	require.NoError(t, err)

	v, err := prefs.Set(ctx, KeyRegistryURL, "http://")
	require.NoError(t, err)
	assert.Equal(t, "http://registry.lan", v)

	got, _ := prefs.Get(KeyRegistryURL)
	assert.Equal(t, "http://registry.lan", got)
	stored, _, _ := kv.Get(KeyRegistryURL)
	assert.Equal(t, "http://registry.lan", stored)
	assert.Len(t, rec.changes, 1)
}

func TestSetNormalizationFailureKeepsPrior(t *testing.T) {
	def := &TextDefinition{
		Name: "volume",
		Normalizer: NormalizerFunc(func(raw string) (string, error) {
			if raw == "loud" {
				return "", errors.New("not a number")
			}
			return raw, nil
		}),
	}
	prefs, _, rec := newTestStore(t, def)
	ctx := context.Background()

	_, err := prefs.Set(ctx, "volume", "7")
	require.NoError(t, err)
	v, err := prefs.Set(ctx, "volume", "loud")
	require.NoError(t, err)
	assert.Equal(t, "7", v)
	assert.Len(t, rec.changes, 1)
}

func TestSetUnknownKeyIsNonFatal(t *testing.T) {
	prefs, _, rec := newTestStore(t)

	v, err := prefs.Set(context.Background(), "volume", "11")
	require.NoError(t, err)
	assert.Equal(t, "", v)
	assert.Empty(t, rec.changes)

	_, ok := prefs.Get("volume")
	assert.False(t, ok)
}

func TestSetPersistenceFailure(t *testing.T) {
	kv, err := store.NewKVStore("")
	require.NoError(t, err)
	boom := errors.New("disk full")
	prefs := NewStore(failingKV{KeyValueStore: kv, err: boom}, nil, nil, DefaultDefinitions("")...)

	_, err = prefs.Set(context.Background(), KeyPlayerID, "kitchen")
	assert.ErrorIs(t, err, boom)
	_, ok := prefs.Get(KeyPlayerID)
	assert.False(t, ok)
}

func TestSetHandlerVetoStillPersists(t *testing.T) {
	prefs, kv, _ := newTestStore(t)
	prefs.Events().Register(EventChange, func(ctx context.Context, payload any) error {
		return events.Stop
	})

	v, err := prefs.Set(context.Background(), KeyPlayerID, "kitchen")
	assert.ErrorIs(t, err, events.ErrPropagationStopped)
	assert.Equal(t, "kitchen", v)

	stored, _, _ := kv.Get(KeyPlayerID)
	assert.Equal(t, "kitchen", stored)
}

func TestSetSerializesWritesPerKey(t *testing.T) {
	prefs, _, _ := newTestStore(t)

	var inFlight, maxInFlight int32
	var mu sync.Mutex
	var values []string
	events.On(prefs.Events(), EventChange, func(ctx context.Context, c Change) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		mu.Lock()
		values = append(values, c.Value)
		mu.Unlock()
		atomic.AddInt32(&inFlight, -1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := prefs.Set(context.Background(), KeyPlayerID, fmt.Sprintf("player-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
	last, _ := prefs.Get(KeyPlayerID)
	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, values)
	assert.Equal(t, values[len(values)-1], last, "last announced value is the stored value")
}

func TestSetFromOwnChangeHandler(t *testing.T) {
	prefs, _, _ := newTestStore(t)
	ctx := context.Background()

	var nested []error
	events.On(prefs.Events(), EventChange, func(ctx context.Context, c Change) error {
		switch {
		case c.Key == KeyPlayerID && c.Value == "kitchen":
			_, err := prefs.Set(ctx, KeyPlayerID, "office")
			nested = append(nested, err)
			_, err = prefs.Set(ctx, KeyRegistryURL, "https://other.radiopad.dev")
			nested = append(nested, err)
		}
		return nil
	})

	v, err := prefs.Set(ctx, KeyPlayerID, "kitchen")
	require.NoError(t, err)
	assert.Equal(t, "kitchen", v)

	require.Len(t, nested, 2)
	assert.ErrorIs(t, nested[0], domain.ErrReentrantPreference)
	assert.NoError(t, nested[1], "other keys can be written from a handler")

	player, _ := prefs.Get(KeyPlayerID)
	assert.Equal(t, "kitchen", player)
	registryURL, _ := prefs.Get(KeyRegistryURL)
	assert.Equal(t, "https://other.radiopad.dev", registryURL)
}

func TestSetFromAnotherGoroutineWaitsForEmission(t *testing.T) {
	prefs, _, _ := newTestStore(t)

	done := make(chan error, 1)
	events.On(prefs.Events(), EventChange, func(ctx context.Context, c Change) error {
		if c.Key == KeyPlayerID && c.Value == "kitchen" {
			go func() {
				_, err := prefs.Set(context.Background(), KeyPlayerID, "office")
				done <- err
			}()
		}
		return nil
	})

	_, err := prefs.Set(context.Background(), KeyPlayerID, "kitchen")
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("write from another goroutine never completed")
	}
	player, _ := prefs.Get(KeyPlayerID)
	assert.Equal(t, "office", player)
}
