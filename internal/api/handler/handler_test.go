package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/marketpartner/leadscout/internal/pipeline"
	"github.com/marketpartner/leadscout/internal/store"
	"github.com/marketpartner/leadscout/pkg/models"
)

// --- mocks ---

type mockRunner struct {
	fn func(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error)
}

func (m *mockRunner) Run(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	return m.fn(ctx, req)
}

func successRunner() *mockRunner {
	return &mockRunner{fn: func(_ context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
		usage := models.UsageStats{TotalTokens: 100, Model: "gemini-2.0-flash"}
		return &models.AnalysisResult{
			Summary:             req.CompanyName + " does things.",
			Keywords:            []string{"things"},
			RelevantCommunities: []string{"devops"},
			CommunityDetails:    []models.Community{{Name: "devops"}},
			RelevantPosts:       []models.Post{},
			WebsiteScraped:      true,
			Usage:               &usage,
		}, nil
	}}
}

type mockRecorder struct {
	runs []*models.Run
	err  error
}

func (m *mockRecorder) CreateRun(_ context.Context, run *models.Run) error {
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, run)
	return nil
}

type mockStreamer struct {
	scrapeEvents   []pipeline.Event
	discoverEvents []pipeline.Event
	err            error
}

func (m *mockStreamer) StreamScrape(_ context.Context, _ models.AnalysisRequest, emit pipeline.EmitFunc) (*pipeline.ScrapeResult, error) {
	for _, e := range m.scrapeEvents {
		emit(e)
	}
	return &pipeline.ScrapeResult{}, m.err
}

func (m *mockStreamer) StreamDiscover(_ context.Context, _ models.AnalysisRequest, _ string, _ []string, emit pipeline.EmitFunc) (*models.AnalysisResult, error) {
	for _, e := range m.discoverEvents {
		emit(e)
	}
	return &models.AnalysisResult{}, m.err
}

type mockRunReader struct {
	runs  []*models.Run
	total int
	err   error
}

func (m *mockRunReader) GetRun(_ context.Context, id uuid.UUID) (*models.Run, error) {
	for _, run := range m.runs {
		if run.ID == id {
			return run, nil
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return nil, store.ErrNotFound
}

func (m *mockRunReader) ListRuns(_ context.Context, _ store.RunFilter) ([]*models.Run, int, error) {
	return m.runs, m.total, m.err
}

type mockPinger struct{ err error }

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

// withURLParam injects a chi route parameter outside a router.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// --- helpers ---

func postJSON(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	b, _ := json.Marshal(body)
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	r.Header.Set("Content-Type", "application/json")
	return r
}

type flatBody struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Error   string         `json:"error"`
}

func parseFlat(t *testing.T, rec *httptest.ResponseRecorder) flatBody {
	t.Helper()
	var body flatBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

// parseSSE decodes each "data: <json>" frame in the recorded body.
func parseSSE(t *testing.T, rec *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var events []map[string]any
	for _, frame := range strings.Split(rec.Body.String(), "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		payload := strings.TrimPrefix(frame, "data: ")
		var ev map[string]any
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			t.Fatalf("bad frame %q: %v", frame, err)
		}
		events = append(events, ev)
	}
	return events
}

// --- analyze ---

func TestAnalyze_Success(t *testing.T) {
	recorder := &mockRecorder{}
	h := NewAnalyzeHandler(successRunner(), recorder)

	rec := httptest.NewRecorder()
	h(rec, postJSON(t, "/api/v1/analyze", map[string]string{
		"companyName": "Acme",
		"description": "log monitoring",
	}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := parseFlat(t, rec)
	if !body.Success {
		t.Fatalf("expected success, got %+v", body)
	}
	if body.Data["summary"] != "Acme does things." {
		t.Fatalf("unexpected data: %v", body.Data)
	}
	if len(recorder.runs) != 1 || recorder.runs[0].CompanyName != "Acme" {
		t.Fatalf("expected persisted run, got %+v", recorder.runs)
	}
}

func TestAnalyze_MissingCompanyName(t *testing.T) {
	h := NewAnalyzeHandler(successRunner(), nil)

	rec := httptest.NewRecorder()
	h(rec, postJSON(t, "/api/v1/analyze", map[string]string{"description": "x"}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := parseFlat(t, rec)
	if body.Success || body.Error == "" {
		t.Fatalf("expected flat error body, got %+v", body)
	}
}

func TestAnalyze_InvalidJSON(t *testing.T) {
	h := NewAnalyzeHandler(successRunner(), nil)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()
	h(rec, r)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAnalyze_PersistenceFailureStillSucceeds(t *testing.T) {
	recorder := &mockRecorder{err: errors.New("db down")}
	h := NewAnalyzeHandler(successRunner(), recorder)

	rec := httptest.NewRecorder()
	h(rec, postJSON(t, "/api/v1/analyze", map[string]string{"companyName": "Acme"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 despite persistence failure, got %d", rec.Code)
	}
}

// --- streaming ---

func TestStreamScrape_EmitsFramesAndHeaders(t *testing.T) {
	streamer := &mockStreamer{scrapeEvents: []pipeline.Event{
		{Type: pipeline.EventStage, Data: pipeline.StagePayload{Stage: "scraping"}},
		{Type: pipeline.EventSummary, Data: pipeline.SummaryPayload{Summary: "s"}},
		{Type: pipeline.EventDone, Data: struct{}{}},
	}}
	h := NewStreamScrapeHandler(streamer)

	rec := httptest.NewRecorder()
	h(rec, postJSON(t, "/api/v1/analyze/stream/scrape", map[string]string{"companyName": "Acme"}))

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	events := parseSSE(t, rec)
	if len(events) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(events))
	}
	if events[0]["type"] != "stage" || events[2]["type"] != "done" {
		t.Fatalf("unexpected frame order: %v", events)
	}
}

func TestStreamScrape_ValidationErrorEvent(t *testing.T) {
	h := NewStreamScrapeHandler(&mockStreamer{})

	rec := httptest.NewRecorder()
	h(rec, postJSON(t, "/api/v1/analyze/stream/scrape", map[string]string{"description": "x"}))

	events := parseSSE(t, rec)
	if len(events) != 1 || events[0]["type"] != "error" {
		t.Fatalf("expected single error event, got %v", events)
	}
	if events[0]["message"] != "companyName is required" {
		t.Fatalf("unexpected message: %v", events[0])
	}
}

func TestStreamDiscover_ErrorEventOnAbort(t *testing.T) {
	streamer := &mockStreamer{
		discoverEvents: []pipeline.Event{
			{Type: pipeline.EventStage, Data: pipeline.StagePayload{Stage: "analyzing"}},
		},
		err: context.Canceled,
	}
	h := NewStreamDiscoverHandler(streamer)

	rec := httptest.NewRecorder()
	h(rec, postJSON(t, "/api/v1/analyze/stream/continue", map[string]any{
		"companyName": "Acme",
		"keywords":    []string{"logs"},
	}))

	events := parseSSE(t, rec)
	last := events[len(events)-1]
	if last["type"] != "error" {
		t.Fatalf("expected terminal error event, got %v", events)
	}
}

// --- runs ---

func TestListRuns_PaginationMeta(t *testing.T) {
	reader := &mockRunReader{
		runs:  []*models.Run{{ID: uuid.New(), CompanyName: "Acme"}},
		total: 42,
	}
	h := NewListRunsHandler(reader)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/runs?page=2&limit=10", nil)
	rec := httptest.NewRecorder()
	h(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Data []map[string]any `json:"data"`
		Meta struct {
			Page    int  `json:"page"`
			Limit   int  `json:"limit"`
			Total   int  `json:"total"`
			HasNext bool `json:"has_next"`
		} `json:"meta"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Meta.Page != 2 || body.Meta.Limit != 10 || body.Meta.Total != 42 || !body.Meta.HasNext {
		t.Fatalf("unexpected meta: %+v", body.Meta)
	}
}

func TestGetRun_InvalidID(t *testing.T) {
	h := NewGetRunHandler(&mockRunReader{})

	r := httptest.NewRequest(http.MethodGet, "/api/v1/runs/not-a-uuid", nil)
	r = withURLParam(r, "runID", "not-a-uuid")
	rec := httptest.NewRecorder()
	h(rec, r)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	h := NewGetRunHandler(&mockRunReader{})

	id := uuid.New()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+id.String(), nil)
	r = withURLParam(r, "runID", id.String())
	rec := httptest.NewRecorder()
	h(rec, r)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

// --- health ---

func TestHealth_AllOK(t *testing.T) {
	h := NewHealthHandler(&mockPinger{}, &mockPinger{})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	var env struct {
		Data healthStatus `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.Status != "ok" {
		t.Fatalf("expected ok, got %+v", env.Data)
	}
}

func TestHealth_DegradedDependency(t *testing.T) {
	h := NewHealthHandler(&mockPinger{err: errors.New("refused")}, &mockPinger{})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("health endpoint must stay up, got %d", rec.Code)
	}
	var env struct {
		Data healthStatus `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.Status != "degraded" || env.Data.Checks["database"] != "unreachable" {
		t.Fatalf("unexpected status: %+v", env.Data)
	}
}
