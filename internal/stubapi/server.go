// Package stubapi is an in-memory double of the video-generation backend,
// used by cmd/stubserver for local development and by integration tests. It
// implements the same contract the real service exposes: POST /api/generate
// and GET /api/job/{id}, including the window right after creation during
// which the job record is not yet visible and status reads answer 404.
package stubapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vidgen/internal/infra"
	"vidgen/internal/job"
	"vidgen/internal/middleware"
)

// Options configures the stub backend.
type Options struct {
	Logger *infra.Logger
	// VisibilityDelay is how long after create a job keeps answering 404.
	VisibilityDelay time.Duration
	// StepInterval is the cadence at which a job advances toward completion.
	StepInterval time.Duration
}

type record struct {
	id        string
	prompt    string
	width     int
	height    int
	seconds   int
	status    string
	progress  int
	errMsg    string
	result    *job.Result
	visibleAt time.Time
	createdAt time.Time
}

// Server holds the in-memory job store.
type Server struct {
	logger          *infra.Logger
	visibilityDelay time.Duration
	stepInterval    time.Duration

	mu   sync.Mutex
	jobs map[string]*record
}

// New constructs the stub backend.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	stepInterval := opts.StepInterval
	if stepInterval <= 0 {
		stepInterval = 2 * time.Second
	}
	return &Server{
		logger:          logger,
		visibilityDelay: opts.VisibilityDelay,
		stepInterval:    stepInterval,
		jobs:            make(map[string]*record),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Logger(*s.logger), middleware.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/api/generate", s.handleGenerate)
	r.Get("/api/job/{id}", s.handleJob)
	r.Get("/files/{id}.mp4", s.handleFile)
	return r
}

type generateRequest struct {
	Prompt  string `json:"prompt"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Seconds int    `json:"n_seconds"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if req.Width <= 0 || req.Height <= 0 {
		writeError(w, http.StatusBadRequest, "width and height must be positive")
		return
	}
	if req.Seconds < 1 {
		writeError(w, http.StatusBadRequest, "n_seconds must be at least 1")
		return
	}

	now := time.Now()
	rec := &record{
		id:        uuid.NewString(),
		prompt:    req.Prompt,
		width:     req.Width,
		height:    req.Height,
		seconds:   req.Seconds,
		status:    job.StatusPending,
		visibleAt: now.Add(s.visibilityDelay),
		createdAt: now,
	}

	s.mu.Lock()
	s.jobs[rec.id] = rec
	s.mu.Unlock()

	go s.advance(rec.id, "http://"+r.Host)

	s.logger.Info().Str("job_id", rec.id).Msg("stubapi: job created")
	writeJSON(w, http.StatusOK, map[string]string{"id": rec.id})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	rec, ok := s.jobs[id]
	if !ok || time.Now().Before(rec.visibleAt) {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	doc := map[string]any{
		"status":        rec.status,
		"progress":      rec.progress,
		"openai_status": providerStatus(rec.status),
		"openai_response": map[string]any{
			"id":     rec.id,
			"status": providerStatus(rec.status),
		},
	}
	if rec.errMsg != "" {
		doc["error"] = rec.errMsg
	}
	if rec.result != nil {
		doc["result"] = rec.result
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	rec, ok := s.jobs[id]
	completed := ok && rec.status == job.StatusCompleted
	s.mu.Unlock()

	if !completed {
		writeError(w, http.StatusNotFound, "video not found")
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	// Not a playable file; just enough bytes for download flows to exercise.
	fmt.Fprintf(w, "stub mp4 payload for job %s\n", id)
}

// advance walks a job through its lifecycle: pending, a few processing steps
// with growing progress, then completed (or failed when the prompt asks for
// it, which is handy when testing the failure path by hand).
func (s *Server) advance(id, baseURL string) {
	steps := []int{10, 30, 55, 80}
	for _, p := range steps {
		time.Sleep(s.stepInterval)
		if !s.update(id, job.StatusProcessing, p, "", nil) {
			return
		}
	}
	time.Sleep(s.stepInterval)

	s.mu.Lock()
	rec, ok := s.jobs[id]
	var wantFail bool
	if ok {
		wantFail = strings.Contains(strings.ToLower(rec.prompt), "fail")
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	if wantFail {
		s.update(id, job.StatusFailed, 100, "simulated generation failure", nil)
		return
	}
	s.update(id, job.StatusCompleted, 100, "", &job.Result{
		VideoURL: fmt.Sprintf("%s/files/%s.mp4", baseURL, id),
		VideoID:  id,
		Filename: id + ".mp4",
	})
}

func (s *Server) update(id, status string, progress int, errMsg string, result *job.Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return false
	}
	rec.status = status
	rec.progress = progress
	rec.errMsg = errMsg
	rec.result = result
	return true
}

func providerStatus(status string) string {
	switch status {
	case job.StatusPending:
		return "Queued"
	case job.StatusProcessing:
		return "Running"
	case job.StatusCompleted:
		return "Succeeded"
	case job.StatusFailed:
		return "Failed"
	default:
		return status
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
