// Package settings holds the session container configuration.
//
// A Settings value is immutable once built: Merge returns a new value
// and never modifies its receiver.
package settings

import (
	"fmt"
	"strings"
	"time"

	"github.com/yndnr/sfsb-go/internal/core/domain"
	"github.com/yndnr/sfsb-go/internal/infra/confloader"
	"github.com/yndnr/sfsb-go/internal/storage/codec"
	"github.com/yndnr/sfsb-go/pkg/crypto/adaptive"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Settings configures the session registry and its daemons.
type Settings struct {
	SessionSavePath   string `koanf:"session_save_path" json:"session_save_path" yaml:"session_save_path"`
	SessionFilePrefix string `koanf:"session_file_prefix" json:"session_file_prefix" yaml:"session_file_prefix"`

	// InactivityTimeout and SessionMaximumAge are in seconds.
	InactivityTimeout int `koanf:"inactivity_timeout" json:"inactivity_timeout" yaml:"inactivity_timeout"`
	SessionMaximumAge int `koanf:"session_maximum_age" json:"session_maximum_age" yaml:"session_maximum_age"`

	GarbageCollectionProbability float64 `koanf:"garbage_collection_probability" json:"garbage_collection_probability" yaml:"garbage_collection_probability"`

	PersistenceInterval       time.Duration `koanf:"persistence_interval" json:"persistence_interval" yaml:"persistence_interval"`
	GarbageCollectionInterval time.Duration `koanf:"garbage_collection_interval" json:"garbage_collection_interval" yaml:"garbage_collection_interval"`

	// GCRemovalRate caps removals per second during a collection pass.
	GCRemovalRate float64 `koanf:"gc_removal_rate" json:"gc_removal_rate" yaml:"gc_removal_rate"`

	Backend       string `koanf:"backend" json:"backend" yaml:"backend"`
	Compression   string `koanf:"compression" json:"compression" yaml:"compression"`
	EncryptionKey string `koanf:"encryption_key" json:"encryption_key" yaml:"encryption_key"`
	Cipher        string `koanf:"cipher" json:"cipher" yaml:"cipher"`

	FlushOnStop bool `koanf:"flush_on_stop" json:"flush_on_stop" yaml:"flush_on_stop"`
}

// Default returns the default settings.
func Default() Settings {
	return Settings{
		SessionSavePath:              "./data/sessions",
		SessionFilePrefix:            "sfsb_",
		InactivityTimeout:            1440,
		SessionMaximumAge:            1440,
		GarbageCollectionProbability: 0.1,
		PersistenceInterval:          time.Second,
		GarbageCollectionInterval:    time.Second,
		GCRemovalRate:                1000,
		Backend:                      BackendFile,
		Compression:                  codec.CompressionNone.String(),
		Cipher:                       string(adaptive.CipherAESGCM),
		FlushOnStop:                  true,
	}
}

// Merge returns a copy of s with the recognized keys of params applied.
// Keys may be snake_case or camelCase (sessionSavePath); unrecognized
// keys are ignored. The result is validated.
func (s Settings) Merge(params map[string]any) (Settings, error) {
	normalized := make(map[string]any, len(params))
	for k, v := range params {
		normalized[confloader.SnakeCase(k)] = v
	}

	l := confloader.NewLoader(confloader.WithEnvPrefix(""))
	if err := l.LoadMap(normalized); err != nil {
		return s, domain.ErrInvalidSettings.WithCause(err)
	}
	merged := s
	if err := l.Unmarshal(&merged); err != nil {
		return s, domain.ErrInvalidSettings.WithDetails("merge").WithCause(err)
	}
	if err := merged.Validate(); err != nil {
		return s, err
	}
	return merged, nil
}

// Validate checks that every field holds a usable value.
func (s Settings) Validate() error {
	invalid := func(format string, args ...any) error {
		return domain.ErrInvalidSettings.WithDetailsf(format, args...)
	}
	switch {
	case strings.TrimSpace(s.SessionSavePath) == "":
		return invalid("session_save_path is required")
	case s.SessionFilePrefix == "":
		return invalid("session_file_prefix is required")
	case strings.ContainsAny(s.SessionFilePrefix, "/\\\x00"):
		return invalid("session_file_prefix %q contains a path separator", s.SessionFilePrefix)
	case strings.HasPrefix(s.SessionFilePrefix, "."):
		return invalid("session_file_prefix %q must not start with a dot", s.SessionFilePrefix)
	case s.InactivityTimeout <= 0:
		return invalid("inactivity_timeout must be positive, got %d", s.InactivityTimeout)
	case s.SessionMaximumAge <= 0:
		return invalid("session_maximum_age must be positive, got %d", s.SessionMaximumAge)
	case s.GarbageCollectionProbability < 0 || s.GarbageCollectionProbability > 1:
		return invalid("garbage_collection_probability must be within [0,1], got %v", s.GarbageCollectionProbability)
	case s.PersistenceInterval <= 0:
		return invalid("persistence_interval must be positive")
	case s.GarbageCollectionInterval <= 0:
		return invalid("garbage_collection_interval must be positive")
	case s.GCRemovalRate <= 0:
		return invalid("gc_removal_rate must be positive")
	}

	switch s.Backend {
	case BackendFile, BackendBadger:
	default:
		return invalid("unknown backend %q", s.Backend)
	}
	if _, err := s.CompressionTag(); err != nil {
		return invalid("unknown compression %q", s.Compression)
	}
	switch adaptive.CipherType(s.Cipher) {
	case adaptive.CipherAESGCM, adaptive.CipherChaCha20:
	default:
		return invalid("unknown cipher %q", s.Cipher)
	}
	return nil
}

// Inactivity returns InactivityTimeout as a duration.
func (s Settings) Inactivity() time.Duration {
	return time.Duration(s.InactivityTimeout) * time.Second
}

// MaximumAge returns SessionMaximumAge as a duration.
func (s Settings) MaximumAge() time.Duration {
	return time.Duration(s.SessionMaximumAge) * time.Second
}

// CompressionTag returns the frame compression named by Compression.
func (s Settings) CompressionTag() (codec.Compression, error) {
	return codec.ParseCompression(s.Compression)
}

// Encrypted reports whether an encryption key is configured.
func (s Settings) Encrypted() bool {
	return s.EncryptionKey != ""
}

// String renders s with the encryption key masked.
func (s Settings) String() string {
	if s.EncryptionKey != "" {
		s.EncryptionKey = "***"
	}
	type plain Settings
	return fmt.Sprintf("%+v", plain(s))
}
