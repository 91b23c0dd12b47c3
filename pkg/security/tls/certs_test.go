package tls

import (
	"crypto/tls"
	"crypto/x509"
	"testing"
	"time"
)

func TestValidateX509Certificate(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		notBefore time.Time
		notAfter  time.Time
		wantErr   bool
	}{
		{name: "valid", notBefore: now.Add(-time.Hour), notAfter: now.Add(time.Hour)},
		{name: "not yet valid", notBefore: now.Add(time.Hour), notAfter: now.Add(2 * time.Hour), wantErr: true},
		{name: "expired", notBefore: now.Add(-2 * time.Hour), notAfter: now.Add(-time.Hour), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert := &x509.Certificate{NotBefore: tt.notBefore, NotAfter: tt.notAfter}
			if err := ValidateX509Certificate(cert, now); (err != nil) != tt.wantErr {
				t.Errorf("ValidateX509Certificate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCertificate(t *testing.T) {
	if err := ValidateCertificate(nil); err == nil {
		t.Error("nil certificate: expected error")
	}
	if err := ValidateCertificate(&tls.Certificate{}); err == nil {
		t.Error("empty chain: expected error")
	}
	if err := ValidateCertificate(&tls.Certificate{Certificate: [][]byte{[]byte("junk")}}); err == nil {
		t.Error("unparsable leaf: expected error")
	}

	dir := t.TempDir()
	certFile, keyFile := validCert(t, dir, "ok")
	pair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		t.Fatal(err)
	}
	if err := ValidateCertificate(&pair); err != nil {
		t.Errorf("ValidateCertificate() error = %v", err)
	}
}

func TestExpiresSoon(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	days, soon := ExpiresSoon(&x509.Certificate{NotAfter: now.Add(10 * 24 * time.Hour)}, now)
	if days != 10 || !soon {
		t.Errorf("ExpiresSoon(10d) = %d, %v; want 10, true", days, soon)
	}
	days, soon = ExpiresSoon(&x509.Certificate{NotAfter: now.Add(90 * 24 * time.Hour)}, now)
	if days != 90 || soon {
		t.Errorf("ExpiresSoon(90d) = %d, %v; want 90, false", days, soon)
	}
}
