/*
Package tls serves the administration API over TLS.

A CertificateReloader reads the certificate and key and re-reads them when
either file changes. ServerConfig builds the crypto/tls configuration on
top of it:

	reloader := tls.NewCertificateReloader(certFile, keyFile, 5*time.Minute, logger)
	if err := reloader.Load(); err != nil {
		return err
	}
	cfg, err := tls.ServerConfig(tls.Config{MinVersion: "1.3"}, reloader)
	if err != nil {
		return err
	}
	listener = cryptotls.NewListener(listener, cfg)

Setting ClientCAFile requires every client to present a certificate issued
by one of those CAs. Only TLS 1.2 and 1.3 are accepted.
*/
package tls
