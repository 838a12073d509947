package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/marketpartner/leadscout/internal/api/middleware"
	"github.com/marketpartner/leadscout/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit *mw.RateLimit

	HealthHandler         http.HandlerFunc
	AnalyzeHandler        http.HandlerFunc
	StreamScrapeHandler   http.HandlerFunc
	StreamDiscoverHandler http.HandlerFunc
	ListRunsHandler       http.HandlerFunc
	GetRunHandler         http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Analysis routes, rate limited per client: every request here fans
	// out into AI and Reddit calls.
	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Post("/api/v1/analyze", orNotImplemented(deps.AnalyzeHandler))
		r.Post("/api/v1/analyze/stream/scrape", orNotImplemented(deps.StreamScrapeHandler))
		r.Post("/api/v1/analyze/stream/continue", orNotImplemented(deps.StreamDiscoverHandler))
	})

	r.Get("/api/v1/runs", orNotImplemented(deps.ListRunsHandler))
	r.Get("/api/v1/runs/{runID}", orNotImplemented(deps.GetRunHandler))

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
