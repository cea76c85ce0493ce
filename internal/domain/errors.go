package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrNotConnected indicates the switchboard socket is not open
	ErrNotConnected = errors.New("switchboard not connected")

	// ErrUnknownPreference indicates a preference key with no definition
	ErrUnknownPreference = errors.New("unknown preference")

	// ErrReentrantPreference indicates a preference was written from a
	// handler of its own change event on the emitting goroutine
	ErrReentrantPreference = errors.New("preference written from its own change handler")

	// ErrRegistryUnavailable indicates the registry could not be reached
	ErrRegistryUnavailable = errors.New("registry is unreachable")

	// ErrStoreClosed indicates the key/value store was used after Close
	ErrStoreClosed = errors.New("store is closed")
)
