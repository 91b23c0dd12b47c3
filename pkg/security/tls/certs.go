package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"
)

// ExpiryWarning is the remaining validity below which a loaded certificate
// is logged as expiring.
const ExpiryWarning = 30 * 24 * time.Hour

// ValidateCertificate checks that the leaf of cert is currently valid.
func ValidateCertificate(cert *tls.Certificate) error {
	if cert == nil {
		return fmt.Errorf("certificate is nil")
	}
	if len(cert.Certificate) == 0 {
		return fmt.Errorf("certificate chain is empty")
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}
	return ValidateX509Certificate(leaf, time.Now())
}

// ValidateX509Certificate checks the validity window of cert at now.
func ValidateX509Certificate(cert *x509.Certificate, now time.Time) error {
	if now.Before(cert.NotBefore) {
		return fmt.Errorf("certificate is not yet valid (valid from %s)", cert.NotBefore.Format(time.RFC3339))
	}
	if now.After(cert.NotAfter) {
		return fmt.Errorf("certificate expired on %s", cert.NotAfter.Format(time.RFC3339))
	}
	return nil
}

// ExpiresSoon reports the whole days left on cert and whether that is
// below ExpiryWarning.
func ExpiresSoon(cert *x509.Certificate, now time.Time) (days int, soon bool) {
	left := cert.NotAfter.Sub(now)
	return int(left.Hours() / 24), left < ExpiryWarning
}
