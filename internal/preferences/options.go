package preferences

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/mmcdole/radiopad/internal/domain"
)

// ErrInvalidOptions is matched by every InvalidOptionsError.
var ErrInvalidOptions = errors.New("invalid options")

// InvalidOptionsError reports an option list that is not a list of
// {value, label} pairs, or options given to a preference that takes none.
type InvalidOptionsError struct {
	Key    string
	Index  int // -1 when the list as a whole is at fault
	Reason string
}

func (e *InvalidOptionsError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("invalid options for %q: option %d: %s", e.Key, e.Index, e.Reason)
	}
	return fmt.Sprintf("invalid options for %q: %s", e.Key, e.Reason)
}

func (e *InvalidOptionsError) Unwrap() error { return ErrInvalidOptions }

// SetOptions replaces the option list for a select preference.
//
// When the list is non-empty and the current value is not one of its
// values, the first option is selected through Set. An empty list leaves
// the current value untouched. EventOptionsChanged fires only when the list
// differs from the previous one.
func (s *Store) SetOptions(ctx context.Context, key string, options []domain.Option) error {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownPreference, key)
	}
	if _, ok := e.def.(*SelectDefinition); !ok {
		return &InvalidOptionsError{Key: key, Index: -1, Reason: "preference does not take options"}
	}

	ctx, err := s.enter(ctx, key)
	if err != nil {
		return err
	}
	e.write.Lock()
	defer e.write.Unlock()

	next := slices.Clone(options)
	if next == nil {
		next = []domain.Option{}
	}

	s.mu.Lock()
	changed := !slices.Equal(e.options, next)
	e.options = next
	s.mu.Unlock()

	if len(next) > 0 {
		current, has := s.current(e)
		if !has || !containsValue(next, current) {
			if _, err := s.setLocked(ctx, e, next[0].Value); err != nil {
				return err
			}
		}
	}

	if changed {
		return s.bus.Emit(ctx, EventOptionsChanged, OptionsChange{Key: key, Options: slices.Clone(next)})
	}
	return nil
}

// SetOptionsJSON decodes a JSON array of {"value", "label"} objects and
// applies it with SetOptions. Any other shape is an InvalidOptionsError.
func (s *Store) SetOptionsJSON(ctx context.Context, key string, data []byte) error {
	options, err := ParseOptions(key, data)
	if err != nil {
		return err
	}
	return s.SetOptions(ctx, key, options)
}

// ParseOptions strictly decodes an option list: every element must be an
// object with exactly the string fields "value" and "label".
func ParseOptions(key string, data []byte) ([]domain.Option, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil, &InvalidOptionsError{Key: key, Index: -1, Reason: "options must be an array"}
	}

	options := make([]domain.Option, 0, len(raw))
	for i, item := range raw {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
			return nil, &InvalidOptionsError{Key: key, Index: i, Reason: "not an object"}
		}
		if len(fields) != 2 {
			return nil, &InvalidOptionsError{Key: key, Index: i, Reason: "must have exactly 'value' and 'label' fields"}
		}

		var opt domain.Option
		for name, dst := range map[string]*string{"value": &opt.Value, "label": &opt.Label} {
			v, ok := fields[name]
			if !ok {
				return nil, &InvalidOptionsError{Key: key, Index: i, Reason: fmt.Sprintf("missing %q field", name)}
			}
			if bytes.Equal(bytes.TrimSpace(v), []byte("null")) || json.Unmarshal(v, dst) != nil {
				return nil, &InvalidOptionsError{Key: key, Index: i, Reason: fmt.Sprintf("%q must be a string", name)}
			}
		}
		options = append(options, opt)
	}
	return options, nil
}

func containsValue(options []domain.Option, value string) bool {
	for _, opt := range options {
		if opt.Value == value {
			return true
		}
	}
	return false
}
