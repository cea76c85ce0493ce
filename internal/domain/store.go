package domain

// KeyValueStore is flat string persistence for preferences.
// Values are never deleted, only overwritten.
type KeyValueStore interface {
	// Get returns the stored value and whether the key was present.
	Get(key string) (string, bool, error)

	// Set persists a value for key.
	Set(key, value string) error

	Close() error
}
