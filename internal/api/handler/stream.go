package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/marketpartner/leadscout/internal/pipeline"
	"github.com/marketpartner/leadscout/pkg/models"
)

// Streamer is the two-phase pipeline interface the SSE handlers depend on.
type Streamer interface {
	StreamScrape(ctx context.Context, req models.AnalysisRequest, emit pipeline.EmitFunc) (*pipeline.ScrapeResult, error)
	StreamDiscover(ctx context.Context, req models.AnalysisRequest, summary string, keywords []string, emit pipeline.EmitFunc) (*models.AnalysisResult, error)
}

// wireEvent is the frame payload: {type, data} for progress events,
// {type, message} for the terminal error event.
type wireEvent struct {
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// sseStream serializes events onto one response. Safe for concurrent
// emit calls; the reply stage fans out across goroutines.
type sseStream struct {
	mu sync.Mutex
	w  http.ResponseWriter
	f  http.Flusher
}

// openStream sets SSE headers and returns a stream, or nil when the
// connection cannot flush incrementally.
func openStream(w http.ResponseWriter) *sseStream {
	f, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return nil
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	return &sseStream{w: w, f: f}
}

func (s *sseStream) emit(e pipeline.Event) {
	s.send(wireEvent{Type: e.Type, Data: e.Data})
}

func (s *sseStream) fail(message string) {
	s.send(wireEvent{Type: pipeline.EventError, Message: message})
}

func (s *sseStream) send(e wireEvent) {
	payload, err := json.Marshal(e)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Write([]byte("data: "))
	s.w.Write(payload)
	s.w.Write([]byte("\n\n"))
	s.f.Flush()
}

// NewStreamScrapeHandler returns the handler for
// POST /api/v1/analyze/stream/scrape: phase one, scrape and summarize.
func NewStreamScrapeHandler(svc Streamer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, msg := decodeAnalysisRequest(r)

		stream := openStream(w)
		if stream == nil {
			return
		}
		if msg != "" {
			stream.fail(msg)
			return
		}

		if _, err := svc.StreamScrape(r.Context(), req, stream.emit); err != nil {
			stream.fail("analysis aborted")
		}
	}
}

// NewStreamDiscoverHandler returns the handler for
// POST /api/v1/analyze/stream/continue: phase two, discovery and replies.
// The body carries the phase-one keywords; when absent, the pipeline
// re-extracts them from the description.
func NewStreamDiscoverHandler(svc Streamer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			CompanyName string   `json:"companyName"`
			Description string   `json:"description"`
			WebsiteURL  string   `json:"websiteUrl"`
			Summary     string   `json:"summary"`
			Keywords    []string `json:"keywords"`
		}
		decodeErr := json.NewDecoder(r.Body).Decode(&body)

		stream := openStream(w)
		if stream == nil {
			return
		}
		if decodeErr != nil {
			stream.fail("invalid JSON body")
			return
		}

		req := models.AnalysisRequest{
			CompanyName: strings.TrimSpace(body.CompanyName),
			Description: strings.TrimSpace(body.Description),
			WebsiteURL:  strings.TrimSpace(body.WebsiteURL),
		}
		if req.CompanyName == "" {
			stream.fail("companyName is required")
			return
		}

		if _, err := svc.StreamDiscover(r.Context(), req, body.Summary, body.Keywords, stream.emit); err != nil {
			stream.fail("analysis aborted")
		}
	}
}
