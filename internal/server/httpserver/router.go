package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/sfsb-go/internal/server/httpserver/handler"
	"github.com/yndnr/sfsb-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	Handler *handler.Handler

	// Metrics backs /metrics and the request metrics. Nil disables both.
	Metrics *metric.Registry

	Logger *slog.Logger

	// MaxBodyBytes caps request bodies; zero means no limit.
	MaxBodyBytes int64

	// EnableAdmin exposes the /admin routes.
	EnableAdmin bool
}

// NewRouter creates the top-level mux. Every handler route gets its own
// middleware chain so metrics are labelled with the route pattern.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()

	for _, route := range cfg.Handler.Routes() {
		if route.Admin && !cfg.EnableAdmin {
			continue
		}
		mux.Handle(route.Pattern, Chain(cfg.Handler,
			RequestID(),
			Recover(log),
			Instrument(route.Pattern, cfg.Metrics),
			AccessLog(log),
			LimitBody(cfg.MaxBodyBytes),
		))
	}

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}
	return mux
}
