package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/sfsb-go/internal/core/domain"
	"github.com/yndnr/sfsb-go/internal/infra/confloader"
)

func TestDefault_Verifies(t *testing.T) {
	cfg := Default()
	cfg.Container.SessionSavePath = filepath.Join(t.TempDir(), "sessions")
	if err := Verify(cfg); err != nil {
		t.Fatalf("Verify(Default()) error = %v", err)
	}
	if _, err := os.Stat(cfg.Container.SessionSavePath); err != nil {
		t.Errorf("session directory not created: %v", err)
	}
}

func TestVerify_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ServerConfig)
	}{
		{"empty addr", func(c *ServerConfig) { c.HTTP.Addr = "" }},
		{"addr without port", func(c *ServerConfig) { c.HTTP.Addr = "localhost" }},
		{"zero body limit", func(c *ServerConfig) { c.HTTP.MaxBodyBytes = 0 }},
		{"bad log level", func(c *ServerConfig) { c.Log.Level = "chatty" }},
		{"bad log format", func(c *ServerConfig) { c.Log.Format = "xml" }},
		{"zero shutdown timeout", func(c *ServerConfig) { c.Shutdown.Timeout = 0 }},
		{"bad probability", func(c *ServerConfig) { c.Container.GarbageCollectionProbability = 3 }},
		{"cert without key", func(c *ServerConfig) { c.HTTP.TLS.CertFile = "tls.crt" }},
		{"client CA without pair", func(c *ServerConfig) { c.HTTP.TLS.ClientCAFile = "ca.pem" }},
		{"long socket path", func(c *ServerConfig) { c.Local.SocketPath = "/" + strings.Repeat("s", 200) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Container.SessionSavePath = t.TempDir()
			tt.mutate(cfg)
			if err := Verify(cfg); err == nil {
				t.Error("Verify() succeeded")
			}
		})
	}
}

func TestVerify_ContainerErrorKeepsCode(t *testing.T) {
	cfg := Default()
	cfg.Container.SessionSavePath = t.TempDir()
	cfg.Container.InactivityTimeout = 0
	if err := Verify(cfg); !errors.Is(err, domain.ErrInvalidSettings) {
		t.Errorf("Verify() error = %v, want ErrInvalidSettings", err)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sfsbd.yaml")
	body := `
http:
  addr: 0.0.0.0:8080
container:
  session_save_path: ` + filepath.Join(dir, "sessions") + `
  inactivity_timeout: 30
  compression: lz4
  persistence_interval: 2s
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("SFSB_CONTAINER__SESSION_MAXIMUM_AGE", "90")
	t.Setenv("SFSB_LOG__FORMAT", "text")

	cfg := Default()
	if err := confloader.NewLoader(confloader.WithConfigFile(path)).Load(cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Verify(cfg); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if cfg.HTTP.Addr != "0.0.0.0:8080" {
		t.Errorf("HTTP.Addr = %q", cfg.HTTP.Addr)
	}
	c := cfg.Container
	if c.InactivityTimeout != 30 || c.SessionMaximumAge != 90 || c.Compression != "lz4" {
		t.Errorf("container = %+v", c)
	}
	if c.PersistenceInterval != 2*time.Second {
		t.Errorf("PersistenceInterval = %v", c.PersistenceInterval)
	}
	if c.SessionFilePrefix != "sfsb_" || c.GarbageCollectionProbability != 0.1 {
		t.Errorf("defaults lost: %+v", c)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestSanitize(t *testing.T) {
	cfg := Default()
	cfg.Container.EncryptionKey = "correct horse battery staple"
	s := Sanitize(cfg)
	if strings.Contains(s.Container.EncryptionKey, "horse") {
		t.Errorf("key not masked: %q", s.Container.EncryptionKey)
	}
	if cfg.Container.EncryptionKey != "correct horse battery staple" {
		t.Error("Sanitize modified the original")
	}
}
