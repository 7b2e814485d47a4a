// Package logger configures log/slog for the session container.
//
//   - logger.go: handler construction and the runtime-adjustable level
//   - context.go: request id propagation through context.Context
//   - redact.go: masking of sensitive attributes
//
// Components receive a *slog.Logger explicitly; the package-level default
// only serves code paths that run before configuration is loaded.
package logger
