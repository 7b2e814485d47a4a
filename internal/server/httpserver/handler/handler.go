package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/yndnr/sfsb-go/internal/core/domain"
	"github.com/yndnr/sfsb-go/internal/core/service"
	"github.com/yndnr/sfsb-go/internal/telemetry/logger"
	"github.com/yndnr/sfsb-go/pkg/clock"
)

// Error codes produced by the HTTP layer itself.
const (
	CodeBadRequest = "SFSB-HTTP-4000"
	CodeTooLarge   = "SFSB-HTTP-4130"
	CodeInternal   = "SFSB-SYS-5000"
)

// Route is one endpoint served by Handler.
type Route struct {
	Pattern string
	Admin   bool
}

// Config configures a Handler.
type Config struct {
	Container *service.Container
	Clock     clock.Clock
	Logger    *slog.Logger

	// Destroyed reports how many sessions the collector has destroyed.
	Destroyed func() int64
}

// Handler serves the sfsbd API.
type Handler struct {
	container *service.Container
	clock     clock.Clock
	logger    *slog.Logger
	destroyed func() int64
	mux       *http.ServeMux
	routes    []Route
}

// New creates a Handler over cfg.Container.
func New(cfg Config) *Handler {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Destroyed == nil {
		cfg.Destroyed = func() int64 { return 0 }
	}
	h := &Handler{
		container: cfg.Container,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		destroyed: cfg.Destroyed,
		mux:       http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Routes lists the registered endpoints.
func (h *Handler) Routes() []Route {
	return h.routes
}

func (h *Handler) registerRoutes() {
	h.handle("GET /health", false, h.handleHealth)

	h.handle("POST /carts", false, h.handleCreateCart)
	h.handle("GET /carts/{id}", false, h.handleGetCart)
	h.handle("POST /carts/{id}/items", false, h.handleAddItem)
	h.handle("DELETE /carts/{id}/items/{sku}", false, h.handleRemoveItem)
	h.handle("DELETE /carts/{id}", false, h.handleDeleteCart)

	h.handle("POST /admin/gc", true, h.handleCollect)
	h.handle("POST /admin/flush", true, h.handleFlush)
	h.handle("GET /admin/stats", true, h.handleStats)
}

func (h *Handler) handle(pattern string, admin bool, fn http.HandlerFunc) {
	h.mux.HandleFunc(pattern, fn)
	h.routes = append(h.routes, Route{Pattern: pattern, Admin: admin})
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := logger.RequestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(NewResponse(requestID, data)); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := logger.RequestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(NewErrorResponse(requestID, code, message, details))
}

// decode reads a JSON body into dst, answering the request itself on
// failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, http.StatusRequestEntityTooLarge, CodeTooLarge, "request body too large", nil)
			return false
		}
		h.writeError(w, r, http.StatusBadRequest, CodeBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

// handleServiceError converts container errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		status := errorCodeToHTTPStatus(de.Code)
		if status >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "request failed", "error", err)
		}
		var details any
		if de.Details != "" {
			details = de.Details
		}
		h.writeError(w, r, status, de.Code, de.Message, details)
		return
	}

	h.logger.ErrorContext(r.Context(), "internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, CodeInternal, "internal server error", nil)
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4040"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4090"):
		return http.StatusConflict
	case strings.HasSuffix(code, "-4000"), strings.HasSuffix(code, "-4001"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-4220"):
		return http.StatusUnprocessableEntity
	default:
		// Cipher configuration and storage failures are server faults.
		return http.StatusInternalServerError
	}
}

// clientIP extracts the client IP from the request.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
