package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// HealthHandler обрабатывает GET /health: 503, если база недоступна
func HealthHandler(log *slog.Logger, db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			log.Warn("health check failed", slog.Any("error", err))
			writeJSON(log, w, http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Database: "unavailable"})
			return
		}
		writeJSON(log, w, http.StatusOK, HealthResponse{Status: "ok", Database: "ok"})
	}
}
