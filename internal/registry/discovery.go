package registry

import (
	"context"
	"fmt"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/mmcdole/radiopad/internal/domain"
)

// Preference keys read by discovery
const (
	prefRegistryURL = "registryUrl"
	prefAccountID   = "accountId"
)

// Every Discover call returns an empty, non-nil result when there is nothing
// to discover (a required value is unset) and a *RequestError when the
// registry could not answer. Callers can tell the two apart with err == nil.

// DiscoverAccounts lists the accounts known to the registry.
func (c *Client) DiscoverAccounts(ctx context.Context, registryURL string) ([]domain.Option, error) {
	if registryURL == "" {
		return []domain.Option{}, nil
	}
	items, err := c.FetchAllPages(ctx, "/v1/accounts/", registryURL)
	if err != nil {
		return nil, fmt.Errorf("discover accounts: %w", err)
	}
	return toOptions(items), nil
}

// DiscoverPlayers lists the players of an account.
func (c *Client) DiscoverPlayers(ctx context.Context, accountID string, prefs domain.PreferenceReader) ([]domain.Option, error) {
	registryURL, _ := prefs.Get(prefRegistryURL)
	if accountID == "" || registryURL == "" {
		return []domain.Option{}, nil
	}

	path := fmt.Sprintf("/v1/accounts/%s/players/", url.PathEscape(accountID))
	items, err := c.FetchAllPages(ctx, path, registryURL)
	if err != nil {
		return nil, fmt.Errorf("discover players: %w", err)
	}
	return toOptions(items), nil
}

// DiscoverPresets lists station presets: the account's own presets, when an
// account is given, followed by the global presets. Each option value is
// the absolute URL of the preset's station list.
func (c *Client) DiscoverPresets(ctx context.Context, accountID string, prefs domain.PreferenceReader) ([]domain.Option, error) {
	registryURL, _ := prefs.Get(prefRegistryURL)
	if registryURL == "" {
		return []domain.Option{}, nil
	}

	sources := []string{"/v1/presets/"}
	if accountID != "" {
		sources = []string{fmt.Sprintf("/v1/accounts/%s/presets/", url.PathEscape(accountID)), "/v1/presets/"}
	}

	results := make([][]domain.Option, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range sources {
		g.Go(func() error {
			items, err := c.FetchAllPages(gctx, path, registryURL)
			if err != nil {
				return err
			}
			options := make([]domain.Option, len(items))
			for j, item := range items {
				opt := item.Option()
				opt.Value = joinURL(registryURL, path+url.PathEscape(item.ID))
				options[j] = opt
			}
			results[i] = options
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("discover presets: %w", err)
	}

	presets := []domain.Option{}
	for _, r := range results {
		presets = append(presets, r...)
	}
	return presets, nil
}

// DiscoverPlayer fetches a single player record. It returns nil without
// error when the player, account or registry is not configured.
func (c *Client) DiscoverPlayer(ctx context.Context, playerID string, prefs domain.PreferenceReader) (*domain.Player, error) {
	accountID, _ := prefs.Get(prefAccountID)
	registryURL, _ := prefs.Get(prefRegistryURL)
	if playerID == "" || accountID == "" || registryURL == "" {
		return nil, nil
	}

	target := joinURL(registryURL, fmt.Sprintf("/v1/accounts/%s/players/%s",
		url.PathEscape(accountID), url.PathEscape(playerID)))
	c.logger.Info("discovering player from registry", "url", SanitizeURL(target))

	var player domain.Player
	if err := c.getJSON(ctx, target, &player); err != nil {
		return nil, fmt.Errorf("discover player: %w", err)
	}
	return &player, nil
}
