package domain

import "strings"

// Option is a selectable value for a select-type preference.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// DiscoveryItem is a single entry in a paginated registry listing.
type DiscoveryItem struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Option maps the item to a select option, labelled by name when present.
func (i DiscoveryItem) Option() Option {
	label := i.Name
	if label == "" {
		label = i.ID
	}
	return Option{Value: i.ID, Label: label}
}

// Player is a remote playback endpoint resolved from the registry.
// Registries have shipped both snake_case and camelCase switchboard fields.
type Player struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	SwitchboardURLSnake string `json:"switchboard_url,omitempty"`
	SwitchboardURLCamel string `json:"switchboardUrl,omitempty"`
	StationsURL         string `json:"stations_url,omitempty"`
}

// SwitchboardURL returns the realtime endpoint for the player, preferring
// the snake_case field.
func (p Player) SwitchboardURL() string {
	if u := strings.TrimSpace(p.SwitchboardURLSnake); u != "" {
		return u
	}
	return strings.TrimSpace(p.SwitchboardURLCamel)
}

// DisplayName returns the player name, falling back to its ID.
func (p Player) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// Station is a single playable stream.
type Station struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// StationsPayload is a named list of stations, as served at a stations URL.
type StationsPayload struct {
	Name     string    `json:"name"`
	Stations []Station `json:"stations"`
}

// Names returns the station names in server order.
func (p *StationsPayload) Names() []string {
	if p == nil {
		return nil
	}
	names := make([]string, len(p.Stations))
	for i, s := range p.Stations {
		names[i] = s.Name
	}
	return names
}

// Lookup returns the stream URL for a station name.
func (p *StationsPayload) Lookup(name string) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, s := range p.Stations {
		if s.Name == name {
			return s.URL, true
		}
	}
	return "", false
}
