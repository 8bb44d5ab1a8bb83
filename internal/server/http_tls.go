package server

import (
	"crypto/tls"
	"fmt"
)

// buildTLSConfig loads the configured key pair. It returns nil when TLS is off.
func (s *Server) buildTLSConfig() (*tls.Config, error) {
	if !s.TLSConfig.Enabled() {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(s.TLSConfig.CertFile, s.TLSConfig.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server cert/key from files: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minTLSVersion(s.TLSConfig.MinVersion),
	}
	if tlsConfig.MinVersion == tls.VersionTLS12 {
		tlsConfig.CipherSuites = modernCipherSuites
	}
	return tlsConfig, nil
}

// minTLSVersion maps the configured minimum, defaulting to TLS 1.2
func minTLSVersion(version string) uint16 {
	switch version {
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}

// modernCipherSuites restricts TLS 1.2 to AEAD suites with forward secrecy.
// TLS 1.3 suites are not configurable.
var modernCipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
}
