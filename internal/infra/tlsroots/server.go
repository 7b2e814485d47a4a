package tlsroots

import (
	"crypto/tls"
	"log/slog"
)

// Options describes the listener's certificate material.
type Options struct {
	CertFile string
	KeyFile  string

	// ClientCAFile enables mutual TLS when set. It may name a bundle
	// file or a directory of bundles.
	ClientCAFile string

	Logger *slog.Logger
}

// ServerConfig loads the key pair and returns a TLS 1.2+ server config
// that picks up certificate rotations. The caller owns the KeyPair and
// should Stop it on shutdown.
func ServerConfig(opts Options) (*tls.Config, *KeyPair, error) {
	var kpOpts []KeyPairOption
	if opts.Logger != nil {
		kpOpts = append(kpOpts, WithLogger(opts.Logger))
	}
	kp, err := LoadKeyPair(opts.CertFile, opts.KeyFile, kpOpts...)
	if err != nil {
		return nil, nil, err
	}
	cfg := &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: kp.GetCertificate,
	}
	if opts.ClientCAFile != "" {
		pool, err := LoadPool(opts.ClientCAFile)
		if err != nil {
			return nil, nil, err
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg, kp, nil
}
