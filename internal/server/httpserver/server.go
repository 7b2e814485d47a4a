package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"

	"github.com/yndnr/sfsb-go/internal/server/config"
)

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*http.Server)

// WithTLSConfig serves HTTPS with c. Certificates come from c, so c must
// set Certificates or GetCertificate.
func WithTLSConfig(c *tls.Config) Option {
	return func(s *http.Server) { s.TLSConfig = c }
}

// New creates a new HTTP server.
func New(cfg config.HTTPConfig, handler http.Handler, opts ...Option) *Server {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	for _, opt := range opts {
		opt(srv)
	}
	return &Server{httpServer: srv}
}

// TLS reports whether the server serves HTTPS.
func (s *Server) TLS() bool {
	return s.httpServer.TLSConfig != nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe starts the HTTP server. It returns nil after Shutdown.
func (s *Server) ListenAndServe() error {
	if s.TLS() {
		return ignoreClosed(s.httpServer.ListenAndServeTLS("", ""))
	}
	return ignoreClosed(s.httpServer.ListenAndServe())
}

// Serve accepts connections on ln. It returns nil after Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	if s.TLS() {
		return ignoreClosed(s.httpServer.ServeTLS(ln, "", ""))
	}
	return ignoreClosed(s.httpServer.Serve(ln))
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
