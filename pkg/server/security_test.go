package server

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/warden/pkg/config"
)

// writeServerCert writes a self-signed certificate for 127.0.0.1 and
// returns the cert and key paths with a pool trusting it.
func writeServerCert(t *testing.T) (string, string, *x509.CertPool) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "warden-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(certFile, certPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatal(err)
	}

	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(certPEM)
	return certFile, keyFile, pool
}

func TestServer_AuthOverTLS(t *testing.T) {
	t.Setenv("WARDEN_SECRET_ALICE_KEY", "k-alice")
	certFile, keyFile, pool := writeServerCert(t)

	cfg := testConfig(t)
	cfg.Journal.Enabled = false
	cfg.API.Auth = config.AuthConfig{
		Enabled: true,
		Keys:    []config.APIKeyConfig{{Admin: "alice", Key: "${secret:alice-key}"}},
	}
	cfg.API.TLS = config.TLSConfig{
		Enabled:        true,
		CertFile:       certFile,
		KeyFile:        keyFile,
		MinVersion:     "1.2",
		ReloadInterval: time.Hour,
	}

	var buf bytes.Buffer
	s, err := New(t.Context(), cfg, testLogger(t, &buf), BuildInfo{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	base, stop := startServer(t, s)
	defer stop()
	base = "https" + base[len("http"):]

	client := &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}},
	}
	get := func(path, key string) int {
		t.Helper()
		req, err := http.NewRequest(http.MethodGet, base+path, nil)
		if err != nil {
			t.Fatal(err)
		}
		if key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := get("/v1/drives", ""); code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", code)
	}
	if code := get("/v1/drives", "wrong"); code != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d, want 401", code)
	}
	if code := get("/v1/drives", "k-alice"); code != http.StatusOK {
		t.Errorf("valid key: status = %d, want 200", code)
	}
	if code := get(cfg.Telemetry.Health.LivenessPath, ""); code != http.StatusOK {
		t.Errorf("liveness without key: status = %d, want 200", code)
	}

	plain := &http.Client{Timeout: 5 * time.Second}
	if resp, err := plain.Get("http" + base[len("https"):] + "/v1/drives"); err == nil {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			t.Error("plain HTTP request served on a TLS listener")
		}
	}
}

func TestNew_SecurityErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{
			name: "unresolvable key reference",
			modify: func(c *config.Config) {
				c.API.Auth = config.AuthConfig{
					Enabled: true,
					Keys:    []config.APIKeyConfig{{Admin: "alice", Key: "${secret:warden-test-missing}"}},
				}
			},
		},
		{
			name: "missing secrets dir",
			modify: func(c *config.Config) {
				c.API.Auth = config.AuthConfig{
					Enabled:    true,
					Keys:       []config.APIKeyConfig{{Admin: "alice", Key: "k"}},
					SecretsDir: filepath.Join(t.TempDir(), "none"),
				}
			},
		},
		{
			name: "missing certificate",
			modify: func(c *config.Config) {
				dir := t.TempDir()
				c.API.TLS = config.TLSConfig{
					Enabled:  true,
					CertFile: filepath.Join(dir, "server.crt"),
					KeyFile:  filepath.Join(dir, "server.key"),
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Journal.Enabled = false
			tt.modify(cfg)

			var buf bytes.Buffer
			if _, err := New(t.Context(), cfg, testLogger(t, &buf), BuildInfo{}); err == nil {
				t.Error("New() expected error, got nil")
			}
		})
	}
}
