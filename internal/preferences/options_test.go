package preferences

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/radiopad/internal/domain"
)

var players = []domain.Option{
	{Value: "p-1", Label: "Kitchen"},
	{Value: "p-2", Label: "Living Room"},
}

func TestSetOptionsSelectsFirstWhenCurrentMissing(t *testing.T) {
	prefs, _, rec := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, prefs.SetOptions(ctx, KeyPlayerID, players))

	v, ok := prefs.Get(KeyPlayerID)
	assert.True(t, ok)
	assert.Equal(t, "p-1", v)
	assert.Equal(t, players, prefs.Options(KeyPlayerID))
	assert.Equal(t, []string{EventChange + ":" + KeyPlayerID, EventOptionsChanged + ":" + KeyPlayerID}, rec.order)
}

func TestSetOptionsKeepsCurrentWhenPresent(t *testing.T) {
	prefs, _, rec := newTestStore(t)
	ctx := context.Background()

	_, err := prefs.Set(ctx, KeyPlayerID, "p-2")
	require.NoError(t, err)
	require.NoError(t, prefs.SetOptions(ctx, KeyPlayerID, players))

	v, _ := prefs.Get(KeyPlayerID)
	assert.Equal(t, "p-2", v)
	assert.Len(t, rec.changes, 1)
	assert.Len(t, rec.options, 1)
}

func TestSetOptionsEmptyListLeavesValue(t *testing.T) {
	prefs, _, rec := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, prefs.SetOptions(ctx, KeyPlayerID, players))
	require.NoError(t, prefs.SetOptions(ctx, KeyPlayerID, nil))

	v, ok := prefs.Get(KeyPlayerID)
	assert.True(t, ok)
	assert.Equal(t, "p-1", v)
	assert.Empty(t, prefs.Options(KeyPlayerID))
	require.Len(t, rec.options, 2)
	assert.Empty(t, rec.options[1].Options)
}

func TestSetOptionsUnchangedListDoesNotEmit(t *testing.T) {
	prefs, _, rec := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, prefs.SetOptions(ctx, KeyPlayerID, players))
	require.NoError(t, prefs.SetOptions(ctx, KeyPlayerID, append([]domain.Option(nil), players...)))
	assert.Len(t, rec.options, 1)

	// The initial empty list equals an empty refresh.
	require.NoError(t, prefs.SetOptions(ctx, KeyPresetID, []domain.Option{}))
	assert.Len(t, rec.options, 1)
}

func TestSetOptionsRejectsTextPreference(t *testing.T) {
	prefs, _, _ := newTestStore(t)

	err := prefs.SetOptions(context.Background(), KeyRegistryURL, players)
	assert.ErrorIs(t, err, ErrInvalidOptions)

	err = prefs.SetOptions(context.Background(), "volume", players)
	assert.ErrorIs(t, err, domain.ErrUnknownPreference)
}

func TestSetOptionsJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid", input: `[{"value":"p-1","label":"Kitchen"}]`},
		{name: "empty", input: `[]`},
		{name: "extra field", input: `[{"value":"p-1","label":"Kitchen","id":"x"}]`, wantErr: true},
		{name: "missing label", input: `[{"value":"p-1"}]`, wantErr: true},
		{name: "wrong field", input: `[{"value":"p-1","name":"Kitchen"}]`, wantErr: true},
		{name: "null label", input: `[{"value":"p-1","label":null}]`, wantErr: true},
		{name: "numeric value", input: `[{"value":1,"label":"One"}]`, wantErr: true},
		{name: "null element", input: `[null]`, wantErr: true},
		{name: "string element", input: `["p-1"]`, wantErr: true},
		{name: "not an array", input: `{"value":"p-1","label":"Kitchen"}`, wantErr: true},
		{name: "null", input: `null`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefs, _, _ := newTestStore(t)
			err := prefs.SetOptionsJSON(context.Background(), KeyPlayerID, []byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidOptions)
				var invalid *InvalidOptionsError
				require.ErrorAs(t, err, &invalid)
				assert.Equal(t, KeyPlayerID, invalid.Key)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSetResolvesOptionLabels(t *testing.T) {
	prefs, _, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, prefs.SetOptions(ctx, KeyPlayerID, players))

	v, err := prefs.Set(ctx, KeyPlayerID, "living room")
	require.NoError(t, err)
	assert.Equal(t, "p-2", v)

	v, err = prefs.Set(ctx, KeyPlayerID, "kitch")
	require.NoError(t, err)
	assert.Equal(t, "p-1", v)

	// No label matches: the raw value is stored as-is.
	v, err = prefs.Set(ctx, KeyPlayerID, "garage")
	require.NoError(t, err)
	assert.Equal(t, "garage", v)
}

func TestSetOptionsAlwaysLeavesValueInNonEmptyList(t *testing.T) {
	prefs, _, _ := newTestStore(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 50; round++ {
		n := rng.Intn(5)
		options := make([]domain.Option, n)
		for i := range options {
			id := rng.Intn(8)
			options[i] = domain.Option{Value: fmt.Sprintf("v%d", id), Label: fmt.Sprintf("Label %d", id)}
		}
		if rng.Intn(2) == 0 {
			_, err := prefs.Set(ctx, KeyAccountID, fmt.Sprintf("v%d", rng.Intn(8)))
			require.NoError(t, err)
		}

		require.NoError(t, prefs.SetOptions(ctx, KeyAccountID, options))
		if n == 0 {
			continue
		}
		v, ok := prefs.Get(KeyAccountID)
		require.True(t, ok)
		assert.True(t, containsValue(options, v), "round %d: %q not in %v", round, v, options)
	}
}
