package handler

import "net/http"

// handleCollect handles POST /admin/gc. The pass runs regardless of the
// configured collection probability.
func (h *Handler) handleCollect(w http.ResponseWriter, r *http.Request) {
	st := h.container.Collect(r.Context())
	h.logger.InfoContext(r.Context(), "collection forced",
		"expired", st.Expired, "corrupt", st.Corrupt, "failed", st.Failed)
	h.writeJSON(w, r, http.StatusOK, CollectResponse{
		Resident:  st.Resident,
		Stored:    st.Stored,
		Expired:   st.Expired,
		Corrupt:   st.Corrupt,
		Failed:    st.Failed,
		ElapsedMS: st.Elapsed.Milliseconds(),
	})
}

// handleFlush handles POST /admin/flush.
func (h *Handler) handleFlush(w http.ResponseWriter, r *http.Request) {
	st := h.container.Flush(r.Context())
	h.writeJSON(w, r, http.StatusOK, FlushResponse{
		Scanned:   st.Scanned,
		Written:   st.Written,
		Failed:    st.Failed,
		ElapsedMS: st.Elapsed.Milliseconds(),
	})
}

// handleStats handles GET /admin/stats.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	st := h.container.Stats()
	settings := h.container.Settings()
	h.writeJSON(w, r, http.StatusOK, StatsResponse{
		Resident:  st.Resident,
		Indexed:   st.Indexed,
		Stored:    st.Stored,
		Running:   st.Running,
		Destroyed: h.destroyed(),
		Backend:   settings.Backend,
		SavePath:  settings.SessionSavePath,
	})
}
