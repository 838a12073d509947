package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/marketpartner/leadscout/internal/api/response"
	"github.com/marketpartner/leadscout/internal/store"
	"github.com/marketpartner/leadscout/pkg/models"
)

// RunReader reads persisted analysis runs.
type RunReader interface {
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]*models.Run, int, error)
}

// NewListRunsHandler returns the handler for GET /api/v1/runs.
func NewListRunsHandler(reader RunReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		page, _ := strconv.Atoi(q.Get("page"))
		if page <= 0 {
			page = 1
		}
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}

		filter := store.RunFilter{
			CompanyName: q.Get("company"),
			Page:        page,
			Limit:       limit,
		}

		runs, total, err := reader.ListRuns(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list runs", nil)
			return
		}
		if runs == nil {
			runs = []*models.Run{}
		}

		response.Collection(w, runs, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}

// NewGetRunHandler returns the handler for GET /api/v1/runs/{runID}.
func NewGetRunHandler(reader RunReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "runID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"runID must be a valid UUID", nil)
			return
		}

		run, err := reader.GetRun(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Run not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load run", nil)
			return
		}

		response.JSON(w, run)
	}
}
