package httpapi

import (
	"context"
	"net/http"
	"time"
)

type healthData struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn(r.Context(), "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, envelope{
			Message: "Service unavailable",
			Data:    healthData{Status: "down", Database: "unreachable"},
		})
		return
	}
	writeOK(w, http.StatusOK, "Server is healthy", healthData{Status: "ok", Database: "ok"})
}
