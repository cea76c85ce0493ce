// Package preferences implements validated, normalized key/value
// configuration with change notification and dynamic option lists.
package preferences

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/mmcdole/radiopad/internal/domain"
)

// Kind identifies how a preference is edited.
type Kind string

const (
	KindText   Kind = "text"
	KindSelect Kind = "select"
)

// Definition describes a single preference. It is implemented by
// *TextDefinition and *SelectDefinition only.
type Definition interface {
	Key() string
	Kind() Kind
	Label() string
	Group() string

	// Default returns the value written at Init when nothing is persisted.
	Default() (string, bool)

	definition()
}

// Normalizer rewrites raw input into its stored form. An error aborts the write.
type Normalizer interface {
	Normalize(raw string) (string, error)
}

// Validator accepts or rejects a normalized value.
type Validator interface {
	Validate(value string) bool
}

// NormalizerFunc adapts a function to Normalizer.
type NormalizerFunc func(raw string) (string, error)

func (f NormalizerFunc) Normalize(raw string) (string, error) { return f(raw) }

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(value string) bool

func (f ValidatorFunc) Validate(value string) bool { return f(value) }

// TextDefinition is a free-form preference.
type TextDefinition struct {
	Name        string
	Title       string
	Placeholder string
	Section     string
	Initial     string // empty means no default

	Normalizer Normalizer // nil keeps input as-is
	Validator  Validator  // nil accepts everything
}

func (d *TextDefinition) Key() string   { return d.Name }
func (d *TextDefinition) Kind() Kind    { return KindText }
func (d *TextDefinition) Label() string { return d.Title }
func (d *TextDefinition) Group() string { return d.Section }
func (d *TextDefinition) definition()   {}

func (d *TextDefinition) Default() (string, bool) {
	return d.Initial, d.Initial != ""
}

func (d *TextDefinition) Normalize(raw string) (string, error) {
	if d.Normalizer == nil {
		return raw, nil
	}
	return d.Normalizer.Normalize(raw)
}

func (d *TextDefinition) Validate(value string) bool {
	return d.Validator == nil || d.Validator.Validate(value)
}

// SelectDefinition is a preference chosen from a dynamic option list.
type SelectDefinition struct {
	Name    string
	Title   string
	Section string
	Initial string
	Options []domain.Option // initial option list

	// MatchLabels resolves input that is not an option value against
	// option labels, so "kitchen" selects {value: "p-17", label: "Kitchen"}.
	MatchLabels bool
}

func (d *SelectDefinition) Key() string   { return d.Name }
func (d *SelectDefinition) Kind() Kind    { return KindSelect }
func (d *SelectDefinition) Label() string { return d.Title }
func (d *SelectDefinition) Group() string { return d.Section }
func (d *SelectDefinition) definition()   {}

func (d *SelectDefinition) Default() (string, bool) {
	return d.Initial, d.Initial != ""
}

// resolve maps raw to an option value using the current option list.
func (d *SelectDefinition) resolve(raw string, options []domain.Option) string {
	if !d.MatchLabels || raw == "" || len(options) == 0 {
		return raw
	}

	labels := make([]string, len(options))
	for i, opt := range options {
		if opt.Value == raw {
			return raw
		}
		labels[i] = opt.Label
	}
	for i, label := range labels {
		if strings.EqualFold(label, raw) {
			return options[i].Value
		}
	}

	ranks := fuzzy.RankFindFold(raw, labels)
	if len(ranks) == 0 {
		return raw
	}
	sort.Sort(ranks)
	return options[ranks[0].OriginalIndex].Value
}

var schemePattern = regexp.MustCompile(`(?i)^https?://`)

// URLNormalizer trims input and assumes https:// when no scheme is given.
type URLNormalizer struct{}

func (URLNormalizer) Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed, nil
	}
	if schemePattern.MatchString(trimmed) {
		return trimmed, nil
	}
	return "https://" + trimmed, nil
}

// URLValidator accepts absolute URLs.
type URLValidator struct{}

func (URLValidator) Validate(value string) bool {
	u, err := url.Parse(value)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func describe(d Definition) string {
	return fmt.Sprintf("%s (%s)", d.Key(), d.Kind())
}
