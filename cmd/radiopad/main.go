package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/mmcdole/radiopad/internal/config"
	"github.com/mmcdole/radiopad/internal/events"
	"github.com/mmcdole/radiopad/internal/log"
	"github.com/mmcdole/radiopad/internal/preferences"
	"github.com/mmcdole/radiopad/internal/registry"
	"github.com/mmcdole/radiopad/internal/service"
	"github.com/mmcdole/radiopad/internal/state"
	"github.com/mmcdole/radiopad/internal/store"
	"github.com/mmcdole/radiopad/internal/switchboard"
	"github.com/mmcdole/radiopad/internal/tui"
)

// Version is set at build time via -ldflags
var Version = "dev"

// options are the command line flags
type options struct {
	once     bool
	headless bool
	sets     []assignment
}

// assignment is a key=value preference given with -set
type assignment struct {
	key   string
	value string
}

func main() {
	var opts options
	var showVersion bool
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.BoolVar(&opts.once, "once", false, "run discovery, print the result and exit")
	flag.BoolVar(&opts.headless, "headless", false, "print events to stdout instead of starting the TUI")
	flag.Func("set", "set a preference before starting, as key=value (repeatable)", func(s string) error {
		key, value, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return fmt.Errorf("expected key=value, got %q", s)
		}
		opts.sets = append(opts.sets, assignment{key: strings.TrimSpace(key), value: value})
		return nil
	})
	flag.Parse()

	if showVersion {
		fmt.Printf("radiopad %s\n", Version)
		return
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the wired components
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	kv     *store.KVStore
	prefs  *preferences.Store
	state  *state.Store
	sb     *switchboard.Client
	ctrl   *service.Controller
}

func run(opts options) error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)

	logger.Info("starting radiopad", "version", Version)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	a.ctrl.Start()

	switch {
	case opts.once:
		return a.runOnce(opts.sets)
	case opts.headless:
		return a.runHeadless(opts.sets)
	case !term.IsTerminal(int(os.Stdout.Fd())):
		fmt.Fprintln(os.Stderr, "stdout is not a terminal; running headless")
		return a.runHeadless(opts.sets)
	}
	return a.runTUI(opts.sets)
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	storePath, err := config.ExpandHome(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store path: %w", err)
	}
	kv, err := store.NewKVStore(storePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open preference store: %w", err)
	}

	prefs := preferences.NewStore(kv, events.NewBus(), logger, preferences.DefaultDefinitions(cfg.Registry.URL)...)
	st := state.NewStore(events.NewBus())

	sb := switchboard.NewClient(events.NewBus(),
		switchboard.WithDialer(switchboard.WebsocketDialer{HandshakeTimeout: cfg.Switchboard.ConnectTimeout}),
		switchboard.WithConnectTimeout(cfg.Switchboard.ConnectTimeout),
		switchboard.WithBackoff(cfg.Switchboard.MinBackoff, cfg.Switchboard.MaxBackoff),
		switchboard.WithLogger(logger),
	)

	reg := registry.NewClient(cfg.Registry.Timeout, logger)
	ctrl := service.NewController(prefs, reg, sb, st, cfg.Switchboard.URL, logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		kv:     kv,
		prefs:  prefs,
		state:  st,
		sb:     sb,
		ctrl:   ctrl,
	}, nil
}

func (a *app) close() {
	a.ctrl.Close()
	a.sb.Close()
	if err := a.kv.Close(); err != nil {
		a.logger.Warn("failed to close preference store", "error", err)
	}
	a.logger.Info("shutting down")
}

// initPreferences loads stored preferences, then applies -set values
func (a *app) initPreferences(ctx context.Context, sets []assignment) error {
	if err := a.prefs.Init(ctx); err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}
	for _, s := range sets {
		if _, err := a.prefs.Set(ctx, s.key, s.value); err != nil {
			return fmt.Errorf("failed to set %s: %w", s.key, err)
		}
	}
	return nil
}

func (a *app) runTUI(sets []assignment) error {
	model := tui.NewModel(a.ctrl, a.prefs, a.cfg.UI.Columns, a.logger)
	// Preferences are loaded from inside the program: bus events are
	// forwarded with Send, which blocks until the program is running.
	model.SetStartup(func(ctx context.Context) error {
		return a.initPreferences(ctx, sets)
	})
	p := tea.NewProgram(model, tea.WithAltScreen())

	tui.Bridge(p, tui.Buses{
		Preferences: a.prefs.Events(),
		State:       a.state,
		Switchboard: a.sb.Events(),
		Controller:  a.ctrl.Events(),
	})

	a.logger.Info("starting TUI")

	if _, err := p.Run(); err != nil {
		a.logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
