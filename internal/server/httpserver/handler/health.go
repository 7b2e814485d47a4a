package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/sfsb-go/internal/infra/buildinfo"
)

// handleHealth handles GET /health.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := buildinfo.Get()
	status := "healthy"
	if !h.container.Stats().Running {
		status = "starting"
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"status":  status,
		"version": info.Version,
		"commit":  info.Commit,
		"time":    h.clock.Now().UTC().Format(time.RFC3339),
	})
}
