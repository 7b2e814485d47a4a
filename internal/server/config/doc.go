// Package config defines the sfsbd configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: validation of addresses, paths and container settings
//   - sanitize.go: masking of secrets before logging
//
// Configuration is loaded via internal/infra/confloader from a YAML file
// and SFSB_ environment variables.
package config
