package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/radiopad/internal/domain"
)

func TestMemoryOnlyStore(t *testing.T) {
	s, err := NewKVStore("")
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Get("registryUrl")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("registryUrl", "https://registry.radiopad.dev"))
	require.NoError(t, s.Set("accountId", ""))

	v, ok, err := s.Get("registryUrl")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://registry.radiopad.dev", v)

	v, ok, err = s.Get("accountId")
	require.NoError(t, err)
	assert.True(t, ok, "empty string is a stored value")
	assert.Equal(t, "", v)

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"accountId", "registryUrl"}, keys)
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs", "preferences.db")

	s, err := NewKVStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("playerId", "kitchen"))
	require.NoError(t, s.Set("playerId", "livingroom"))
	require.NoError(t, s.Close())

	reopened, err := NewKVStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := reopened.Get("playerId")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "livingroom", v)

	keys, err := reopened.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"playerId"}, keys)
}

func TestClosedStore(t *testing.T) {
	s, err := NewKVStore("")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, _, err = s.Get("x")
	assert.ErrorIs(t, err, domain.ErrStoreClosed)
	assert.ErrorIs(t, s.Set("x", "y"), domain.ErrStoreClosed)
}
