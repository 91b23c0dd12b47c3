package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
)

var refPattern = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Manager resolves secrets through providers in priority order.
type Manager struct {
	providers []Provider
	logger    *slog.Logger
}

// NewManager returns a manager trying providers in order.
func NewManager(providers []Provider, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		providers: providers,
		logger:    logger.With("component", "secrets"),
	}
}

// GetSecret returns the first value any provider yields for name.
func (m *Manager) GetSecret(ctx context.Context, name string) (string, error) {
	var errs []error
	for _, p := range m.providers {
		value, err := p.GetSecret(ctx, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		m.logger.Debug("secret resolved", "name", redact(name), "provider", p.Name())
		return value, nil
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("secret %q: no providers configured", name)
	}
	return "", fmt.Errorf("secret %q not found: %w", name, errors.Join(errs...))
}

// Resolve replaces every ${secret:name} reference in value. Values without
// references are returned unchanged.
func (m *Manager) Resolve(ctx context.Context, value string) (string, error) {
	var errs []error
	out := refPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := refPattern.FindStringSubmatch(match)[1]
		secret, err := m.GetSecret(ctx, name)
		if err != nil {
			errs = append(errs, err)
			return match
		}
		return secret
	})
	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return out, nil
}

// IsReference reports whether value contains a secret reference.
func IsReference(value string) bool {
	return refPattern.MatchString(value)
}

func redact(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
