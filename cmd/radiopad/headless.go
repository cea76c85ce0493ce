package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mmcdole/radiopad/internal/events"
	"github.com/mmcdole/radiopad/internal/preferences"
	"github.com/mmcdole/radiopad/internal/service"
	"github.com/mmcdole/radiopad/internal/state"
	"github.com/mmcdole/radiopad/internal/switchboard"
)

// runOnce resolves preferences through discovery, prints them and exits
func (a *app) runOnce(sets []assignment) error {
	ctx, cancel := signalContext()
	defer cancel()

	a.subscribeNotices(os.Stderr)
	if err := a.initPreferences(ctx, sets); err != nil {
		return err
	}
	a.ctrl.Wait()

	a.printSummary(os.Stdout)
	return nil
}

// runHeadless prints events to stdout and reads "play NAME" / "stop"
// commands from stdin until interrupted.
func (a *app) runHeadless(sets []assignment) error {
	ctx, cancel := signalContext()
	defer cancel()

	out := os.Stdout
	a.subscribeNotices(os.Stderr)
	a.subscribeEvents(out)

	if err := a.initPreferences(ctx, sets); err != nil {
		return err
	}

	go a.readCommands(os.Stdin, out)

	<-ctx.Done()
	return nil
}

func (a *app) subscribeNotices(w io.Writer) {
	events.On(a.ctrl.Events(), service.EventNotice, func(ctx context.Context, n service.Notice) error {
		fmt.Fprintf(w, "error: %s\n", n.Message)
		return nil
	})
}

func (a *app) subscribeEvents(w io.Writer) {
	events.On(a.prefs.Events(), preferences.EventChange, func(ctx context.Context, c preferences.Change) error {
		fmt.Fprintf(w, "preference %s=%s\n", c.Key, c.Value)
		return nil
	})

	st := a.state
	events.On(st.Events(), state.EventChange, func(ctx context.Context, c state.Change) error {
		snap := st.Snapshot()
		switch c.Key {
		case state.KeyPlayer:
			if snap.Player != nil {
				fmt.Fprintf(w, "player %s\n", snap.Player.DisplayName())
			}
		case state.KeyStations:
			fmt.Fprintf(w, "stations %s\n", strings.Join(snap.Stations.Names(), ", "))
		case state.KeyCurrentStation:
			fmt.Fprintf(w, "playing %s\n", nowPlaying(snap))
		}
		return nil
	})

	sb := a.sb.Events()
	events.On(sb, switchboard.EventConnecting, func(ctx context.Context, endpoint string) error {
		fmt.Fprintf(w, "connecting %s\n", endpoint)
		return nil
	})
	events.On(sb, switchboard.EventConnect, func(ctx context.Context, endpoint string) error {
		fmt.Fprintf(w, "connected %s\n", endpoint)
		return nil
	})
	sb.Register(switchboard.EventDisconnect, func(ctx context.Context, _ any) error {
		fmt.Fprintln(w, "disconnected")
		return nil
	})
	events.On(sb, switchboard.EventError, func(ctx context.Context, message string) error {
		fmt.Fprintf(w, "error: %s\n", message)
		return nil
	})
}

func (a *app) readCommands(r io.Reader, w io.Writer) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(line, " ")
		var err error
		switch strings.ToLower(cmd) {
		case "":
			continue
		case "play":
			name := strings.TrimSpace(arg)
			if name == "" {
				fmt.Fprintln(w, "usage: play NAME")
				continue
			}
			err = a.ctrl.Play(name)
		case "stop":
			err = a.ctrl.Stop()
		default:
			fmt.Fprintf(w, "unknown command %q (want play NAME or stop)\n", cmd)
			continue
		}
		if err != nil {
			a.logger.Warn("station request failed", "command", line, "error", err)
		}
	}
}

func (a *app) printSummary(w io.Writer) {
	for _, def := range a.prefs.Definitions() {
		value, _ := a.prefs.Get(def.Key())
		fmt.Fprintf(w, "%s=%s\n", def.Key(), value)
	}

	snap := a.state.Snapshot()
	if snap.Player != nil {
		fmt.Fprintf(w, "player=%s switchboard=%s\n", snap.Player.DisplayName(), snap.Player.SwitchboardURL())
	}
	for _, name := range snap.Stations.Names() {
		fmt.Fprintf(w, "station=%s\n", name)
	}
}

func nowPlaying(snap state.Snapshot) string {
	if p := snap.Playing(); p != "" {
		return p
	}
	return "..."
}
