package config

import (
	"time"

	"github.com/yndnr/sfsb-go/internal/core/settings"
)

// ServerConfig is the root configuration of sfsbd.
type ServerConfig struct {
	HTTP      HTTPConfig        `koanf:"http" yaml:"http" json:"http"`
	Container settings.Settings `koanf:"container" yaml:"container" json:"container"`
	Log       LogSection        `koanf:"log" yaml:"log" json:"log"`
	Shutdown  ShutdownSection   `koanf:"shutdown" yaml:"shutdown" json:"shutdown"`
	Local     LocalSection      `koanf:"local" yaml:"local" json:"local"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr              string        `koanf:"addr" yaml:"addr" json:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" yaml:"read_header_timeout" json:"read_header_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout" yaml:"idle_timeout" json:"idle_timeout"`
	// MaxBodyBytes limits request bodies.
	MaxBodyBytes int64 `koanf:"max_body_bytes" yaml:"max_body_bytes" json:"max_body_bytes"`
	// EnableAdmin exposes /admin routes.
	EnableAdmin bool `koanf:"enable_admin" yaml:"enable_admin" json:"enable_admin"`

	TLS TLSSection `koanf:"tls" yaml:"tls" json:"tls"`
}

// TLSSection enables HTTPS when CertFile and KeyFile are set.
type TLSSection struct {
	CertFile string `koanf:"cert_file" yaml:"cert_file" json:"cert_file"`
	KeyFile  string `koanf:"key_file" yaml:"key_file" json:"key_file"`
	// ClientCAFile requires client certificates signed by this bundle.
	ClientCAFile string `koanf:"client_ca_file" yaml:"client_ca_file" json:"client_ca_file"`
}

// Enabled reports whether a key pair is configured.
func (t TLSSection) Enabled() bool {
	return t.CertFile != "" || t.KeyFile != ""
}

// LogSection configures logging.
type LogSection struct {
	Level     string `koanf:"level" yaml:"level" json:"level"`
	Format    string `koanf:"format" yaml:"format" json:"format"`
	AddSource bool   `koanf:"add_source" yaml:"add_source" json:"add_source"`
}

// ShutdownSection configures graceful shutdown.
type ShutdownSection struct {
	Timeout time.Duration `koanf:"timeout" yaml:"timeout" json:"timeout"`
}

// LocalSection configures the local management socket. An empty
// SocketPath disables it.
type LocalSection struct {
	SocketPath string `koanf:"socket_path" yaml:"socket_path" json:"socket_path"`
}
