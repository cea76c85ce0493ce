package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/radiopad/internal/domain"
)

type prefs map[string]string

func (p prefs) Get(key string) (string, bool) {
	v, ok := p[key]
	return v, ok
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func listing(next string, items ...domain.DiscoveryItem) map[string]any {
	links := map[string]any{}
	if next != "" {
		links["next"] = next
	}
	return map[string]any{"items": items, "links": links}
}

func TestFetchAllPagesFollowsNextLinks(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		switch r.URL.RequestURI() {
		case "/v1/accounts/":
			writeJSON(w, listing("/v1/accounts/?page=2", domain.DiscoveryItem{ID: "a"}, domain.DiscoveryItem{ID: "b"}))
		case "/v1/accounts/?page=2":
			writeJSON(w, listing("/v1/accounts/?page=3", domain.DiscoveryItem{ID: "c"}))
		case "/v1/accounts/?page=3":
			writeJSON(w, listing("", domain.DiscoveryItem{ID: "d"}))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(0, nil)
	items, err := c.FetchAllPages(context.Background(), "/v1/accounts/", srv.URL)
	require.NoError(t, err)

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
}

func TestFetchAllPagesAbsoluteNextAndDuplicates(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			writeJSON(w, listing(srv.URL+"/v1/presets/?cursor=x", domain.DiscoveryItem{ID: "jazz"}))
			return
		}
		writeJSON(w, listing("", domain.DiscoveryItem{ID: "jazz"}))
	}))
	defer srv.Close()

	items, err := NewClient(0, nil).FetchAllPages(context.Background(), "/v1/presets/", srv.URL)
	require.NoError(t, err)
	assert.Len(t, items, 2, "duplicates are kept")
}

func TestFetchAllPagesDetectsLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, listing("/v1/accounts/", domain.DiscoveryItem{ID: "a"}))
	}))
	defer srv.Close()

	_, err := NewClient(0, nil).FetchAllPages(context.Background(), "/v1/accounts/", srv.URL)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Contains(t, err.Error(), "does not terminate")
}

func TestFetchAllPagesEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"links": map[string]any{}})
	}))
	defer srv.Close()

	items, err := NewClient(0, nil).FetchAllPages(context.Background(), "/v1/accounts/", srv.URL)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestDiscoverAccountsServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	registryURL := strings.Replace(srv.URL, "http://", "http://user:secret@", 1) + "/?token=abc"
	_, err := NewClient(0, nil).DiscoverAccounts(context.Background(), registryURL)
	require.Error(t, err)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusServiceUnavailable, reqErr.Status)
	assert.Equal(t, srv.URL+"/v1/accounts/", reqErr.SanitizedURL)
	assert.NotContains(t, reqErr.SanitizedURL, "?")
	assert.NotContains(t, reqErr.SanitizedURL, "secret")
	assert.Equal(t, fmt.Sprintf("Registry request failed (503) for %s/v1/accounts/", srv.URL), FormatError(err))
}

func TestDiscoverAccountsMapsItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/", r.URL.Path)
		writeJSON(w, listing("", domain.DiscoveryItem{ID: "acme", Name: "Acme Radio"}, domain.DiscoveryItem{ID: "solo"}))
	}))
	defer srv.Close()

	options, err := NewClient(0, nil).DiscoverAccounts(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []domain.Option{
		{Value: "acme", Label: "Acme Radio"},
		{Value: "solo", Label: "solo"},
	}, options)
}

func TestDiscoverNothingToDiscover(t *testing.T) {
	c := NewClient(0, nil)
	ctx := context.Background()

	accounts, err := c.DiscoverAccounts(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, accounts)
	assert.Empty(t, accounts)

	players, err := c.DiscoverPlayers(ctx, "", prefs{"registryUrl": "http://registry.invalid"})
	require.NoError(t, err)
	assert.Empty(t, players)

	players, err = c.DiscoverPlayers(ctx, "acme", prefs{})
	require.NoError(t, err)
	assert.Empty(t, players)

	presets, err := c.DiscoverPresets(ctx, "acme", prefs{})
	require.NoError(t, err)
	assert.Empty(t, presets)

	player, err := c.DiscoverPlayer(ctx, "kitchen", prefs{"registryUrl": "http://registry.invalid"})
	require.NoError(t, err)
	assert.Nil(t, player)
}

func TestDiscoverPlayers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/acme/players/", r.URL.Path)
		writeJSON(w, listing("", domain.DiscoveryItem{ID: "kitchen", Name: "Kitchen"}))
	}))
	defer srv.Close()

	options, err := NewClient(0, nil).DiscoverPlayers(context.Background(), "acme", prefs{"registryUrl": srv.URL})
	require.NoError(t, err)
	assert.Equal(t, []domain.Option{{Value: "kitchen", Label: "Kitchen"}}, options)
}

func TestDiscoverPresetsUnionsAccountAndGlobal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/accounts/acme/presets/":
			writeJSON(w, listing("", domain.DiscoveryItem{ID: "office", Name: "Office Mix"}))
		case "/v1/presets/":
			writeJSON(w, listing("", domain.DiscoveryItem{ID: "briceburg"}, domain.DiscoveryItem{ID: "jazz", Name: "Jazz"}))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(0, nil)
	options, err := c.DiscoverPresets(context.Background(), "acme", prefs{"registryUrl": srv.URL + "/"})
	require.NoError(t, err)
	assert.Equal(t, []domain.Option{
		{Value: srv.URL + "/v1/accounts/acme/presets/office", Label: "Office Mix"},
		{Value: srv.URL + "/v1/presets/briceburg", Label: "briceburg"},
		{Value: srv.URL + "/v1/presets/jazz", Label: "Jazz"},
	}, options)

	global, err := c.DiscoverPresets(context.Background(), "", prefs{"registryUrl": srv.URL})
	require.NoError(t, err)
	assert.Len(t, global, 2)
}

func TestDiscoverPresetsPropagatesFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/presets/" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, listing(""))
	}))
	defer srv.Close()

	_, err := NewClient(0, nil).DiscoverPresets(context.Background(), "acme", prefs{"registryUrl": srv.URL})
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusInternalServerError, reqErr.Status)
}

func TestDiscoverPlayer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/accounts/acme/players/kitchen":
			writeJSON(w, map[string]any{
				"id":              "kitchen",
				"name":            "Kitchen",
				"switchboard_url": "wss://switchboard.radiopad.dev/acme/kitchen",
				"stations_url":    "https://registry.radiopad.dev/v1/presets/briceburg",
			})
		case "/v1/accounts/acme/players/legacy":
			writeJSON(w, map[string]any{"id": "legacy", "switchboardUrl": "ws://10.0.0.2:1980/"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(0, nil)
	p := prefs{"registryUrl": srv.URL, "accountId": "acme"}

	player, err := c.DiscoverPlayer(context.Background(), "kitchen", p)
	require.NoError(t, err)
	require.NotNil(t, player)
	assert.Equal(t, "wss://switchboard.radiopad.dev/acme/kitchen", player.SwitchboardURL())
	assert.Equal(t, "https://registry.radiopad.dev/v1/presets/briceburg", player.StationsURL)

	legacy, err := c.DiscoverPlayer(context.Background(), "legacy", p)
	require.NoError(t, err)
	assert.Equal(t, "ws://10.0.0.2:1980/", legacy.SwitchboardURL())
	assert.Equal(t, "legacy", legacy.DisplayName())

	_, err = c.DiscoverPlayer(context.Background(), "garage", p)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusNotFound, reqErr.Status)
}

func TestNetworkFailureIsRegistryUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(0, nil).DiscoverAccounts(context.Background(), url)
	assert.ErrorIs(t, err, domain.ErrRegistryUnavailable)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 0, reqErr.Status)
	assert.Contains(t, reqErr.Message(), "(unknown)")
}

func TestMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	_, err := NewClient(0, nil).DiscoverAccounts(context.Background(), srv.URL)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Contains(t, err.Error(), "failed to parse response")
}

func TestFetchStations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/presets/briceburg":
			writeJSON(w, domain.StationsPayload{
				Name: "briceburg",
				Stations: []domain.Station{
					{Name: "WWOZ", URL: "https://wwoz-sc.streamguys1.com/wwoz-hi.mp3"},
					{Name: "KEXP", URL: "https://kexp.streamguys1.com/kexp160.aac"},
				},
			})
		case "/stations.json":
			w.Write([]byte(`[{"name":"Jazz FM","url":"http://jazz.example/stream"}]`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	c := NewClient(0, nil)
	ctx := context.Background()

	payload, err := c.FetchStations(ctx, srv.URL+"/v1/presets/briceburg")
	require.NoError(t, err)
	assert.Equal(t, "briceburg", payload.Name)
	assert.Equal(t, []string{"WWOZ", "KEXP"}, payload.Names())
	u, ok := payload.Lookup("KEXP")
	assert.True(t, ok)
	assert.Equal(t, "https://kexp.streamguys1.com/kexp160.aac", u)

	bare, err := c.FetchStations(ctx, srv.URL+"/stations.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"Jazz FM"}, bare.Names())

	none, err := c.FetchStations(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = c.FetchStations(ctx, srv.URL+"/missing?key=secret")
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusBadGateway, reqErr.Status)
	assert.False(t, errors.Is(err, domain.ErrRegistryUnavailable))
}

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://user:pw@registry.radiopad.dev/v1/accounts/?token=x#frag", "https://registry.radiopad.dev/v1/accounts/"},
		{"http://localhost:8000", "http://localhost:8000"},
		{"", "<unknown>"},
		{"not a url?secret=1", "not a url"},
		{strings.Repeat("x", 100), strings.Repeat("x", 77) + "..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeURL(tt.in), "input %q", tt.in)
	}
}

func TestFormatError(t *testing.T) {
	assert.Equal(t, "boom", FormatError(errors.New("boom")))
	assert.Equal(t, "Unknown registry error", FormatError(nil))
	assert.Equal(t, "Unknown registry error", FormatError(errors.New("  ")))
}
