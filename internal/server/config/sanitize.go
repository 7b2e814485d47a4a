package config

import "github.com/yndnr/sfsb-go/internal/telemetry/logger"

// Sanitize returns a copy of the config with sensitive fields masked,
// for logging.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg
	sanitized.Container.EncryptionKey = logger.Mask(sanitized.Container.EncryptionKey)
	return &sanitized
}
