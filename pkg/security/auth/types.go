package auth

import "errors"

var (
	// ErrMissingKey is returned when a request carries no API key.
	ErrMissingKey = errors.New("no API key found")

	// ErrInvalidKey is returned for keys that are not configured.
	ErrInvalidKey = errors.New("invalid API key")

	// ErrKeyDisabled is returned for configured keys that are switched off.
	ErrKeyDisabled = errors.New("API key disabled")
)

// Key binds an API key to the administrator it authenticates.
type Key struct {
	// Admin is recorded as the author of policies applied with this key.
	Admin string

	// Secret is the raw key presented by the client.
	Secret string

	Enabled bool
}

// KeyStore validates API keys.
type KeyStore interface {
	Validate(secret string) (Key, error)
}
