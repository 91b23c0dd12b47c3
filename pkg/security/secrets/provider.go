// Package secrets resolves ${secret:name} references in configuration values.
package secrets

import "context"

// Provider retrieves secrets from one backend.
type Provider interface {
	// GetSecret returns the named secret.
	GetSecret(ctx context.Context, name string) (string, error)

	// Name identifies the backend in logs ("env", "file").
	Name() string
}
