// Package events provides the ordered publish/subscribe primitive shared by
// every radiopad component.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Stop is returned by a handler to veto the rest of an emission.
var Stop = errors.New("stop propagation")

// ErrPropagationStopped is matched by every PropagationStoppedError.
var ErrPropagationStopped = errors.New("event propagation stopped")

// PropagationStoppedError reports that a handler returned Stop.
type PropagationStoppedError struct {
	Event string
}

func (e *PropagationStoppedError) Error() string {
	return fmt.Sprintf("event %q propagation stopped by a handler", e.Event)
}

func (e *PropagationStoppedError) Unwrap() error {
	return ErrPropagationStopped
}

// Handler receives the payload of an emitted event.
type Handler func(ctx context.Context, payload any) error

// Bus dispatches events to handlers in registration order.
//
// Emit calls handlers one at a time on the caller's goroutine, so a handler
// may rely on every earlier handler having finished its side effects.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Register appends handler to the list for name.
func (b *Bus) Register(name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = make(map[string][]Handler)
	}
	b.handlers[name] = append(b.handlers[name], handler)
}

// Emit runs every handler registered for name with payload.
//
// A handler returning Stop aborts the emission with a
// *PropagationStoppedError. Any other handler error aborts the emission and
// is returned unchanged. Emitting a name with no handlers is a no-op.
func (b *Bus) Emit(ctx context.Context, name string, payload any) error {
	b.mu.RLock()
	handlers := b.handlers[name]
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, payload); err != nil {
			if errors.Is(err, Stop) {
				return &PropagationStoppedError{Event: name}
			}
			return err
		}
	}
	return nil
}

// On registers a handler that receives payloads of type T.
// A payload of any other type is reported as an error.
func On[T any](b *Bus, name string, fn func(ctx context.Context, payload T) error) {
	b.Register(name, func(ctx context.Context, payload any) error {
		v, ok := payload.(T)
		if !ok {
			var zero T
			return fmt.Errorf("event %q: payload is %T, want %T", name, payload, zero)
		}
		return fn(ctx, v)
	})
}
