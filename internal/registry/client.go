// Package registry discovers accounts, players and station presets from a
// radio-pad registry over HTTP.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/radiopad/internal/domain"
)

const (
	defaultTimeout = 15 * time.Second
	userAgent      = "radiopad/1.0"
	maxPages       = 1000
	maxErrorBody   = 4 << 10
)

// Client performs registry requests. It holds no discovery state; every
// call starts from the registry URL it is given.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a registry client. A zero timeout uses the default.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// page is one response of a paginated listing
type page[T any] struct {
	Items []T `json:"items"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

// FetchAllPages resolves path against baseURL and follows links.next until
// a page has none, returning every item in server order.
func (c *Client) FetchAllPages(ctx context.Context, path, baseURL string) ([]domain.DiscoveryItem, error) {
	return fetchPages[domain.DiscoveryItem](ctx, c, path, baseURL)
}

func fetchPages[T any](ctx context.Context, c *Client, path, baseURL string) ([]T, error) {
	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		return nil, newRequestError(baseURL, 0, fmt.Errorf("invalid registry URL"))
	}

	target, err := resolve(base, path)
	if err != nil {
		return nil, newRequestError(baseURL, 0, err)
	}

	var all []T
	seen := make(map[string]bool)
	for target != "" {
		if seen[target] || len(seen) >= maxPages {
			return nil, newRequestError(target, 0, fmt.Errorf("pagination does not terminate"))
		}
		seen[target] = true

		var p page[T]
		if err := c.getJSON(ctx, target, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Items...)

		target = ""
		if p.Links.Next != "" {
			if target, err = resolve(base, p.Links.Next); err != nil {
				return nil, newRequestError(p.Links.Next, 0, err)
			}
		}
	}

	if all == nil {
		all = []T{}
	}
	return all, nil
}

// resolve interprets ref relative to base, as a browser would
func resolve(base *url.URL, ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid link %q: %w", ref, err)
	}
	return base.ResolveReference(r).String(), nil
}

// getJSON performs a GET and decodes a 2xx JSON body into dst
func (c *Client) getJSON(ctx context.Context, rawURL string, dst any) error {
	body, err := c.get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		c.logger.Error("registry JSON parse error", "url", SanitizeURL(rawURL), "error", err, "bodyLen", len(body))
		return newRequestError(rawURL, http.StatusOK, fmt.Errorf("failed to parse response: %w", err))
	}
	return nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, newRequestError(rawURL, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("registry request", "url", SanitizeURL(rawURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("registry request failed", "url", SanitizeURL(rawURL), "error", err)
		return nil, newRequestError(rawURL, 0, fmt.Errorf("%w: %w", domain.ErrRegistryUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Error("registry request error", "status", resp.StatusCode, "url", SanitizeURL(rawURL), "body", string(snippet))
		return nil, newRequestError(rawURL, resp.StatusCode, nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newRequestError(rawURL, resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}
	return body, nil
}

// joinURL appends path to the registry URL the way registry links are
// written: no resolution, a single slash between the two.
func joinURL(registryURL, path string) string {
	return strings.TrimRight(registryURL, "/") + path
}

func toOptions(items []domain.DiscoveryItem) []domain.Option {
	options := make([]domain.Option, len(items))
	for i, item := range items {
		options[i] = item.Option()
	}
	return options
}

// FetchStations loads the station list served at stationsURL. Both the
// {"name", "stations"} object and a bare station array are accepted.
func (c *Client) FetchStations(ctx context.Context, stationsURL string) (*domain.StationsPayload, error) {
	if stationsURL == "" {
		return nil, nil
	}

	body, err := c.get(ctx, stationsURL)
	if err != nil {
		return nil, err
	}

	payload := &domain.StationsPayload{}
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal(body, &payload.Stations)
	} else {
		err = json.Unmarshal(body, payload)
	}
	if err != nil {
		return nil, newRequestError(stationsURL, http.StatusOK, fmt.Errorf("failed to parse stations: %w", err))
	}
	if payload.Stations == nil {
		payload.Stations = []domain.Station{}
	}
	return payload, nil
}
