package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"
)

// DefaultReloadInterval is how often certificate files are checked for
// changes when no interval is configured.
const DefaultReloadInterval = 5 * time.Minute

// Config describes the administration server's TLS settings.
type Config struct {
	// CertFile is the PEM-encoded server certificate.
	CertFile string

	// KeyFile is the PEM-encoded private key.
	KeyFile string

	// MinVersion is "1.2" or "1.3". Empty selects 1.3.
	MinVersion string

	// ClientCAFile, when set, requires clients to present a certificate
	// signed by one of the CAs in this PEM bundle.
	ClientCAFile string

	// ReloadInterval is how often the certificate files are re-read.
	ReloadInterval time.Duration
}

// ParseVersion converts a MinVersion string into a tls version constant.
// TLS 1.0 and 1.1 are rejected.
func ParseVersion(v string) (uint16, error) {
	switch v {
	case "", "1.3":
		return tls.VersionTLS13, nil
	case "1.2":
		return tls.VersionTLS12, nil
	default:
		return 0, fmt.Errorf("unsupported TLS version %q (want 1.2 or 1.3)", v)
	}
}

// ServerConfig returns a tls.Config serving the reloader's current
// certificate. The reloader must have loaded a certificate.
func ServerConfig(c Config, reloader *CertificateReloader) (*tls.Config, error) {
	if reloader == nil {
		return nil, errors.New("certificate reloader is required")
	}
	if reloader.GetCertificate() == nil {
		return nil, errors.New("no certificate loaded")
	}

	version, err := ParseVersion(c.MinVersion)
	if err != nil {
		return nil, err
	}

	// #nosec G402 - MinVersion is validated above, 1.0 and 1.1 are rejected
	cfg := &tls.Config{
		MinVersion:     version,
		GetCertificate: reloader.GetCertificateFunc(),
	}

	if c.ClientCAFile != "" {
		pool, err := loadCAPool(c.ClientCAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg, nil
}

func loadCAPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read client CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in client CA %s", path)
	}
	return pool, nil
}
