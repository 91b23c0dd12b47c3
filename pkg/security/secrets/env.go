package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DefaultEnvPrefix namespaces secrets read from the environment.
const DefaultEnvPrefix = "WARDEN_SECRET_"

// EnvProvider reads secrets from environment variables. The secret
// "alice-key" is read from WARDEN_SECRET_ALICE_KEY.
type EnvProvider struct {
	Prefix string
}

// NewEnvProvider returns an environment provider using prefix.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{Prefix: prefix}
}

// GetSecret returns the value of the variable for name.
func (p *EnvProvider) GetSecret(_ context.Context, name string) (string, error) {
	envVar := p.Variable(name)
	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("secret %q not set (env var %s)", name, envVar)
	}
	return value, nil
}

// Variable returns the environment variable holding name.
func (p *EnvProvider) Variable(name string) string {
	return p.Prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// Name returns "env".
func (p *EnvProvider) Name() string {
	return "env"
}
