package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/marketpartner/leadscout/internal/api/response"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is a dependency that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// NewHealthHandler returns the handler for GET /api/v1/health. A failing
// dependency degrades the status without taking the endpoint down; the
// pipeline itself keeps working without the store or the cache.
func NewHealthHandler(db, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status := healthStatus{Status: "ok", Checks: map[string]string{}}
		check := func(name string, p Pinger) {
			if p == nil {
				status.Checks[name] = "disabled"
				return
			}
			if err := p.Ping(ctx); err != nil {
				status.Checks[name] = "unreachable"
				status.Status = "degraded"
				return
			}
			status.Checks[name] = "ok"
		}

		check("database", db)
		check("cache", cache)

		response.JSON(w, status)
	}
}
