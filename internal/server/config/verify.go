package config

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/yndnr/sfsb-go/internal/core/settings"
	"github.com/yndnr/sfsb-go/internal/telemetry/logger"
)

// maxSocketPath is the portable limit of a unix socket path.
const maxSocketPath = 104

// Verify validates the configuration and creates the session directory.
func Verify(cfg *ServerConfig) error {
	if err := verifyHTTP(&cfg.HTTP); err != nil {
		return err
	}
	if err := verifyContainer(&cfg.Container); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Log.Format {
	case "json", "text", "console":
	default:
		return fmt.Errorf("log.format %q must be json or text", cfg.Log.Format)
	}
	if cfg.Shutdown.Timeout <= 0 {
		return errors.New("shutdown.timeout must be positive")
	}
	if p := cfg.Local.SocketPath; p != "" && len(p) > maxSocketPath {
		return fmt.Errorf("local.socket_path is longer than %d bytes", maxSocketPath)
	}
	return nil
}

func verifyHTTP(cfg *HTTPConfig) error {
	if cfg.Addr == "" {
		return errors.New("http.addr is required")
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return fmt.Errorf("http.addr %q: %w", cfg.Addr, err)
	}
	if cfg.MaxBodyBytes <= 0 {
		return errors.New("http.max_body_bytes must be positive")
	}
	if cfg.TLS.Enabled() && (cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "") {
		return errors.New("http.tls requires both cert_file and key_file")
	}
	if cfg.TLS.ClientCAFile != "" && !cfg.TLS.Enabled() {
		return errors.New("http.tls.client_ca_file requires a key pair")
	}
	return nil
}

func verifyContainer(cfg *settings.Settings) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("container: %w", err)
	}
	if err := os.MkdirAll(cfg.SessionSavePath, 0o750); err != nil {
		return fmt.Errorf("cannot create session directory: %w", err)
	}
	return nil
}
