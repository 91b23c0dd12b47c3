package tls

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"
)

// keyPair is one loaded certificate together with the digest of the files
// it came from. It is never modified after it is published.
type keyPair struct {
	cert   *tls.Certificate
	leaf   *x509.Certificate
	digest [sha256.Size]byte
}

// CertificateReloader serves the certificate and key found in two PEM files
// and picks up new contents when the files are rewritten, so a renewed
// certificate takes effect without restarting the agent.
type CertificateReloader struct {
	certFile string
	keyFile  string
	interval time.Duration
	logger   *slog.Logger

	current atomic.Pointer[keyPair]

	// rejected is the digest of the last contents that failed to load. It is
	// only touched by the polling goroutine.
	rejected [sha256.Size]byte
}

// NewCertificateReloader returns a reloader for the given files. A
// non-positive interval selects DefaultReloadInterval.
func NewCertificateReloader(certFile, keyFile string, interval time.Duration, logger *slog.Logger) *CertificateReloader {
	if interval <= 0 {
		interval = DefaultReloadInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CertificateReloader{
		certFile: certFile,
		keyFile:  keyFile,
		interval: interval,
		logger:   logger.With("component", "tls.reloader"),
	}
}

// Load reads both files and installs the certificate they hold.
func (r *CertificateReloader) Load() error {
	kp, err := r.read()
	if err != nil {
		return err
	}
	r.current.Store(kp)
	r.announce(kp, "certificate loaded")
	return nil
}

// Start loads the certificate unless Load already did and then polls the
// files every interval until ctx is done.
func (r *CertificateReloader) Start(ctx context.Context) error {
	if r.current.Load() == nil {
		if err := r.Load(); err != nil {
			return err
		}
	}
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.poll()
			}
		}
	}()
	return nil
}

// poll swaps in the files' contents when they differ from what is served.
// Contents that fail to load are reported once and the served certificate
// stays in place.
func (r *CertificateReloader) poll() {
	certPEM, keyPEM, digest, err := r.readFiles()
	if err != nil {
		r.reject(digest, err)
		return
	}
	if kp := r.current.Load(); kp != nil && kp.digest == digest {
		return
	}
	if digest == r.rejected {
		return
	}
	kp, err := parseKeyPair(certPEM, keyPEM, digest)
	if err != nil {
		r.reject(digest, err)
		return
	}
	r.current.Store(kp)
	r.rejected = [sha256.Size]byte{}
	r.announce(kp, "certificate reloaded")
}

func (r *CertificateReloader) reject(digest [sha256.Size]byte, err error) {
	if digest != ([sha256.Size]byte{}) && digest == r.rejected {
		return
	}
	r.rejected = digest
	r.logger.Error("failed to reload certificate",
		"error", err,
		"cert_file", r.certFile,
		"key_file", r.keyFile,
	)
}

func (r *CertificateReloader) read() (*keyPair, error) {
	certPEM, keyPEM, digest, err := r.readFiles()
	if err != nil {
		return nil, err
	}
	return parseKeyPair(certPEM, keyPEM, digest)
}

func (r *CertificateReloader) readFiles() (certPEM, keyPEM []byte, digest [sha256.Size]byte, err error) {
	if certPEM, err = os.ReadFile(r.certFile); err != nil {
		return nil, nil, digest, fmt.Errorf("failed to read certificate: %w", err)
	}
	if keyPEM, err = os.ReadFile(r.keyFile); err != nil {
		return nil, nil, digest, fmt.Errorf("failed to read key: %w", err)
	}
	h := sha256.New()
	h.Write(certPEM)
	h.Write([]byte{0})
	h.Write(keyPEM)
	copy(digest[:], h.Sum(nil))
	return certPEM, keyPEM, digest, nil
}

func parseKeyPair(certPEM, keyPEM []byte, digest [sha256.Size]byte) (*keyPair, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key pair: %w", err)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	if err := ValidateX509Certificate(leaf, time.Now()); err != nil {
		return nil, err
	}
	cert.Leaf = leaf
	return &keyPair{cert: &cert, leaf: leaf, digest: digest}, nil
}

// GetCertificate returns the served certificate, or nil before the first
// successful load.
func (r *CertificateReloader) GetCertificate() *tls.Certificate {
	if kp := r.current.Load(); kp != nil {
		return kp.cert
	}
	return nil
}

// GetCertificateFunc adapts the reloader to tls.Config.GetCertificate.
func (r *CertificateReloader) GetCertificateFunc() func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
		cert := r.GetCertificate()
		if cert == nil {
			return nil, errors.New("no server certificate loaded")
		}
		return cert, nil
	}
}

func (r *CertificateReloader) announce(kp *keyPair, msg string) {
	days, soon := ExpiresSoon(kp.leaf, time.Now())
	level := slog.LevelInfo
	if soon {
		level = slog.LevelWarn
		msg = "certificate expiring soon"
	}
	r.logger.Log(context.Background(), level, msg,
		"cert_file", r.certFile,
		"subject", kp.leaf.Subject.CommonName,
		"issuer", kp.leaf.Issuer.CommonName,
		"expires_in_days", days,
		"expires_at", kp.leaf.NotAfter.Format(time.RFC3339),
	)
}
