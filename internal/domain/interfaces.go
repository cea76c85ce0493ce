package domain

// PreferenceReader is the read side of the preference store, as seen by
// components that only need current configuration values.
type PreferenceReader interface {
	// Get returns the current value for key and whether it is set.
	Get(key string) (string, bool)
}
