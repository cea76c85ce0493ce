package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mmcdole/radiopad/internal/domain"
	"github.com/mmcdole/radiopad/internal/events"
	"github.com/mmcdole/radiopad/internal/preferences"
	"github.com/mmcdole/radiopad/internal/registry"
	"github.com/mmcdole/radiopad/internal/state"
	"github.com/mmcdole/radiopad/internal/switchboard"
)

// EventNotice is emitted on the controller bus with a Notice when something
// the user should see went wrong.
const EventNotice = "notice"

// Notice is a user-facing error report.
type Notice struct {
	Source  string
	Message string
	Err     error
}

// discoverer abstracts the registry (consumer-defined interface)
type discoverer interface {
	DiscoverAccounts(ctx context.Context, registryURL string) ([]domain.Option, error)
	DiscoverPlayers(ctx context.Context, accountID string, prefs domain.PreferenceReader) ([]domain.Option, error)
	DiscoverPresets(ctx context.Context, accountID string, prefs domain.PreferenceReader) ([]domain.Option, error)
	DiscoverPlayer(ctx context.Context, playerID string, prefs domain.PreferenceReader) (*domain.Player, error)
	FetchStations(ctx context.Context, stationsURL string) (*domain.StationsPayload, error)
}

// connector abstracts the switchboard connection
type connector interface {
	Connect(endpoint string) error
	Disconnect()
	SendStationRequest(name *string) error
	Events() *events.Bus
}

// preferenceStore is the part of the preference store the controller drives
type preferenceStore interface {
	Get(key string) (string, bool)
	SetOptions(ctx context.Context, key string, options []domain.Option) error
	Events() *events.Bus
}

// Discovery targets, each with its own generation counter
const (
	targetAccounts = "accounts"
	targetPlayers  = "players"
	targetPresets  = "presets"
	targetPlayer   = "player"
	targetStations = "stations"
)

// Controller turns preference changes into discovery, discovery results into
// preference options and app state, and switchboard events into app state.
//
// Discovery runs in the background. When the same target is queried again
// before an earlier query answers, the earlier answer is discarded.
type Controller struct {
	prefs          preferenceStore
	registry       discoverer
	switchboard    connector
	state          *state.Store
	switchboardURL string
	logger         *slog.Logger
	bus            *events.Bus

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	idle     *sync.Cond
	inflight int
	gens     map[string]uint64
	applyMu  map[string]*sync.Mutex
}

// NewController creates a controller. A non-empty switchboardURL is used
// for every player instead of the URL in its registry record.
func NewController(
	prefs preferenceStore,
	reg discoverer,
	sb connector,
	st *state.Store,
	switchboardURL string,
	logger *slog.Logger,
) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		prefs:          prefs,
		registry:       reg,
		switchboard:    sb,
		state:          st,
		switchboardURL: switchboardURL,
		logger:         logger,
		bus:            events.NewBus(),
		ctx:            ctx,
		cancel:         cancel,
		gens:           make(map[string]uint64),
		applyMu:        make(map[string]*sync.Mutex),
	}
	c.idle = sync.NewCond(&c.mu)
	return c
}

// Events returns the bus notices are emitted on.
func (c *Controller) Events() *events.Bus {
	return c.bus
}

// Start subscribes to preference and switchboard events. Call it before the
// preference store is initialized so the initial values drive discovery.
func (c *Controller) Start() {
	events.On(c.prefs.Events(), preferences.EventChange, c.onPreferenceChange)

	sb := c.switchboard.Events()
	events.On(sb, switchboard.EventStationPlaying, func(ctx context.Context, station *string) error {
		return c.state.SetCurrentStation(ctx, station)
	})
	events.On(sb, switchboard.EventStationsURL, func(ctx context.Context, url string) error {
		c.loadStations(url)
		return nil
	})

	if c.switchboardURL != "" {
		c.connect(c.switchboardURL)
	}
}

// Wait blocks until no discovery is in flight. Work started while waiting,
// such as a fetch triggered by a switchboard push, is waited for too.
func (c *Controller) Wait() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.inflight > 0 {
		c.idle.Wait()
	}
}

// Close abandons in-flight discovery and disconnects. No discovery starts
// after Close.
func (c *Controller) Close() {
	c.cancel()
	c.Wait()
	c.switchboard.Disconnect()
}

// Play asks the player to play a station.
func (c *Controller) Play(name string) error {
	c.logger.Info("requesting station", "station", name)
	return c.switchboard.SendStationRequest(&name)
}

// Stop asks the player to stop.
func (c *Controller) Stop() error {
	c.logger.Info("requesting stop")
	return c.switchboard.SendStationRequest(nil)
}

func (c *Controller) onPreferenceChange(ctx context.Context, ch preferences.Change) error {
	switch ch.Key {
	case preferences.KeyRegistryURL:
		c.refreshAccounts(ch.Value)
	case preferences.KeyAccountID:
		c.refreshPlayers(ch.Value)
		c.refreshPresets(ch.Value)
	case preferences.KeyPlayerID:
		c.refreshPlayer(ch.Value)
	case preferences.KeyPresetID:
		if playerID, _ := c.prefs.Get(preferences.KeyPlayerID); playerID == "" {
			c.loadStations(ch.Value)
		}
	}
	return nil
}

func (c *Controller) refreshAccounts(registryURL string) {
	c.run(targetAccounts, func(ctx context.Context) func() {
		options, err := c.registry.DiscoverAccounts(ctx, registryURL)
		return func() { c.applyOptions(ctx, targetAccounts, preferences.KeyAccountID, options, err) }
	})
}

func (c *Controller) refreshPlayers(accountID string) {
	c.run(targetPlayers, func(ctx context.Context) func() {
		options, err := c.registry.DiscoverPlayers(ctx, accountID, c.prefs)
		return func() { c.applyOptions(ctx, targetPlayers, preferences.KeyPlayerID, options, err) }
	})
}

func (c *Controller) refreshPresets(accountID string) {
	c.run(targetPresets, func(ctx context.Context) func() {
		options, err := c.registry.DiscoverPresets(ctx, accountID, c.prefs)
		return func() { c.applyOptions(ctx, targetPresets, preferences.KeyPresetID, options, err) }
	})
}

func (c *Controller) applyOptions(ctx context.Context, target, key string, options []domain.Option, err error) {
	if err != nil {
		c.notify(ctx, target, err)
		return
	}
	if err := c.prefs.SetOptions(ctx, key, options); err != nil {
		c.logger.Error("failed to apply discovered options", "key", key, "error", err)
	}
}

func (c *Controller) refreshPlayer(playerID string) {
	c.run(targetPlayer, func(ctx context.Context) func() {
		if c.switchboardURL != "" {
			return func() {
				if playerID == "" {
					c.state.SetPlayer(ctx, nil)
					return
				}
				c.usePlayer(ctx, &domain.Player{ID: playerID, SwitchboardURLSnake: c.switchboardURL})
			}
		}

		player, err := c.registry.DiscoverPlayer(ctx, playerID, c.prefs)
		return func() {
			if err != nil {
				c.notify(ctx, targetPlayer, err)
				return
			}
			c.usePlayer(ctx, player)
		}
	})
}

func (c *Controller) usePlayer(ctx context.Context, player *domain.Player) {
	if err := c.state.SetPlayer(ctx, player); err != nil {
		c.logger.Warn("player change handler failed", "error", err)
	}
	if player == nil {
		c.switchboard.Disconnect()
		return
	}

	c.logger.Info("using player", "player", player.DisplayName())
	if endpoint := player.SwitchboardURL(); endpoint != "" {
		c.connect(endpoint)
	} else {
		c.switchboard.Disconnect()
		c.logger.Warn("player has no switchboard URL", "player", player.ID)
	}
	if player.StationsURL != "" {
		c.loadStations(player.StationsURL)
	}
}

func (c *Controller) connect(endpoint string) {
	if err := c.switchboard.Connect(endpoint); err != nil {
		c.logger.Error("failed to connect to switchboard", "url", endpoint, "error", err)
	}
}

func (c *Controller) loadStations(stationsURL string) {
	c.run(targetStations, func(ctx context.Context) func() {
		stations, err := c.registry.FetchStations(ctx, stationsURL)
		return func() {
			if err != nil {
				c.notify(ctx, targetStations, err)
				return
			}
			c.state.SetStationsURL(ctx, stationsURL)
			c.state.SetStations(ctx, stations)
		}
	})
}

// run performs query in the background and applies its result only if no
// newer query for the same target started in the meantime.
func (c *Controller) run(target string, query func(ctx context.Context) (apply func())) {
	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		c.logger.Debug("controller closed, skipping discovery", "target", target)
		return
	}
	c.inflight++
	c.gens[target]++
	gen := c.gens[target]
	applyMu, ok := c.applyMu[target]
	if !ok {
		applyMu = &sync.Mutex{}
		c.applyMu[target] = applyMu
	}
	c.mu.Unlock()

	go func() {
		defer c.finish()

		apply := query(c.ctx)
		if c.ctx.Err() != nil {
			return
		}

		// Results for one target are applied one at a time, so a newer
		// result can never be overwritten by an older one.
		applyMu.Lock()
		defer applyMu.Unlock()
		c.mu.Lock()
		stale := c.gens[target] != gen
		c.mu.Unlock()
		if stale {
			c.logger.Debug("discarding stale discovery result", "target", target)
			return
		}
		apply()
	}()
}

func (c *Controller) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	if c.inflight == 0 {
		c.idle.Broadcast()
	}
}

func (c *Controller) notify(ctx context.Context, source string, err error) {
	msg := registry.FormatError(err)
	c.logger.Warn("discovery failed", "target", source, "error", err)
	if emitErr := c.bus.Emit(ctx, EventNotice, Notice{Source: source, Message: msg, Err: err}); emitErr != nil {
		c.logger.Warn("notice handler failed", "error", emitErr)
	}
}
