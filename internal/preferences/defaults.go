package preferences

import "github.com/mmcdole/radiopad/internal/domain"

// Preference keys
const (
	KeyRegistryURL = "registryUrl"
	KeyAccountID   = "accountId"
	KeyPlayerID    = "playerId"
	KeyPresetID    = "presetId"
)

// Preference groups, used by the settings view to section the form
const (
	GroupDefault      = "default"
	GroupRadioControl = "radio-control"
	GroupRadioListen  = "radio-listen"
)

// DefaultDefinitions returns the standard preference set.
func DefaultDefinitions(registryURL string) []Definition {
	return []Definition{
		&TextDefinition{
			Name:        KeyRegistryURL,
			Title:       "Registry URL",
			Placeholder: "Enter registry URL",
			Section:     GroupDefault,
			Initial:     registryURL,
			Normalizer:  URLNormalizer{},
			Validator:   URLValidator{},
		},
		&SelectDefinition{
			Name:        KeyAccountID,
			Title:       "Account",
			Section:     GroupDefault,
			Options:     []domain.Option{},
			MatchLabels: true,
		},
		&SelectDefinition{
			Name:        KeyPlayerID,
			Title:       "Player",
			Section:     GroupRadioControl,
			Options:     []domain.Option{},
			MatchLabels: true,
		},
		&SelectDefinition{
			Name:        KeyPresetID,
			Title:       "Station Preset",
			Section:     GroupRadioListen,
			Options:     []domain.Option{},
			MatchLabels: true,
		},
	}
}
