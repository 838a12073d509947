package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marketpartner/leadscout/internal/api/response"
	"github.com/marketpartner/leadscout/pkg/models"
)

// persistTimeout bounds the best-effort run write after a response is sent.
const persistTimeout = 5 * time.Second

// AnalysisRunner defines the pipeline interface the handler depends on.
type AnalysisRunner interface {
	Run(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error)
}

// RunRecorder persists completed runs. May be nil when persistence is
// disabled; recording failures never fail the response.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *models.Run) error
}

// decodeAnalysisRequest reads and validates the shared analysis request
// body. A non-empty error message means the request is invalid.
func decodeAnalysisRequest(r *http.Request) (models.AnalysisRequest, string) {
	var req models.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, "invalid JSON body"
	}
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	req.Description = strings.TrimSpace(req.Description)
	req.WebsiteURL = strings.TrimSpace(req.WebsiteURL)
	if req.CompanyName == "" {
		return req, "companyName is required"
	}
	return req, ""
}

// NewAnalyzeHandler returns the handler for POST /api/v1/analyze.
// It runs the whole pipeline synchronously and answers with the flat
// {success, data, error} shape.
func NewAnalyzeHandler(svc AnalysisRunner, recorder RunRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, msg := decodeAnalysisRequest(r)
		if msg != "" {
			response.Failure(w, http.StatusBadRequest, msg)
			return
		}

		result, err := svc.Run(r.Context(), req)
		if err != nil {
			// Degradation is absorbed inside the pipeline; an error here
			// means the client went away or the server is shutting down.
			response.Failure(w, http.StatusInternalServerError, "analysis aborted")
			return
		}

		recordRun(recorder, req, result)
		response.Success(w, result)
	}
}

// recordRun persists the finished run best-effort.
func recordRun(recorder RunRecorder, req models.AnalysisRequest, result *models.AnalysisResult) {
	if recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	run := &models.Run{
		ID:          uuid.New(),
		CompanyName: req.CompanyName,
		Description: req.Description,
		WebsiteURL:  req.WebsiteURL,
		Result:      *result,
		CreatedAt:   time.Now().UTC(),
	}
	if err := recorder.CreateRun(ctx, run); err != nil {
		slog.Warn("run persistence failed", "company", req.CompanyName, "error", err)
	}
}
