package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/DeafMist/thread-scout/internal/config"
	"github.com/DeafMist/thread-scout/internal/discovery"
	"github.com/DeafMist/thread-scout/internal/elasticsearch"
	"github.com/DeafMist/thread-scout/internal/engine"
	"github.com/DeafMist/thread-scout/internal/jobs"
	"github.com/DeafMist/thread-scout/internal/llm"
	"github.com/DeafMist/thread-scout/internal/logger"
	"github.com/DeafMist/thread-scout/internal/models"
	"github.com/DeafMist/thread-scout/internal/research"
)

const maxBodyBytes = 1 << 16

type researchEngine interface {
	Run(ctx context.Context, q models.Query) (*models.SearchResponse, error)
	Estimate(q models.Query) (llm.Estimate, error)
	Status() engine.Status
}

type reportStore interface {
	SearchReports(ctx context.Context, params elasticsearch.SearchParams) (*elasticsearch.SearchResult, error)
	Health(ctx context.Context) error
}

type jobPublisher interface {
	Publish(ctx context.Context, job jobs.Job) error
}

type server struct {
	log     *slog.Logger
	cfg     *config.API
	engine  researchEngine
	reports reportStore
	jobs    jobPublisher
	now     func() time.Time
}

type healthResponse struct {
	Status        string        `json:"status"`
	Engine        engine.Status `json:"engine"`
	Elasticsearch string        `json:"elasticsearch"`
	Jobs          bool          `json:"jobs_enabled"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Engine: s.engine.Status(), Elasticsearch: "disabled", Jobs: s.jobs != nil}

	if s.reports != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.reports.Health(ctx); err != nil {
			resp.Status = "degraded"
			resp.Elasticsearch = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Elasticsearch = "ok"
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}

	resp, err := s.engine.Run(ctx, q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	q, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}

	est, err := s.engine.Estimate(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, est)
}

type jobAccepted struct {
	JobID     string `json:"job_id"`
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

func (s *server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		s.writeError(w, r, errJobsDisabled)
		return
	}

	q, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}

	job, err := jobs.NewJob(requestID(r), q, s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.jobs.Publish(ctx, job); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, jobAccepted{JobID: job.ID, RequestID: job.RequestID, Status: "queued"})
}

func (s *server) handleReports(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		s.writeError(w, r, errReportsDisabled)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	v := r.URL.Query()
	params := elasticsearch.SearchParams{
		Query:     strings.TrimSpace(v.Get("q")),
		Mode:      strings.TrimSpace(v.Get("mode")),
		Subreddit: strings.TrimSpace(v.Get("subreddit")),
		Keywords:  parseCSV(v.Get("keywords")),
		From:      clampInt(v.Get("from"), 0, 10_000),
		Size:      clampInt(v.Get("size"), s.cfg.DefaultPage, s.cfg.MaxPage),
		Sort:      strings.TrimSpace(v.Get("sort")),
		Start:     parseTime(v.Get("start")),
		End:       parseTime(v.Get("end")),
	}

	result, err := s.reports.SearchReports(ctx, params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) decodeQuery(w http.ResponseWriter, r *http.Request) (models.Query, bool) {
	var q models.Query
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&q); err != nil {
		s.writeError(w, r, &models.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()})
		return models.Query{}, false
	}
	return q, true
}

var (
	errJobsDisabled    = errors.New("job submission is disabled: KAFKA_BROKERS is not set")
	errReportsDisabled = errors.New("report search is disabled: ELASTICSEARCH_ADDR is not set")
)

// statusFor maps engine failures onto HTTP statuses.
func statusFor(err error) int {
	var (
		verr  *models.ValidationError
		limit *llm.RateLimitExceededError
		orch  *research.OrchestrationError
		perr  *llm.ProviderError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, discovery.ErrDiscoveryExhausted), errors.Is(err, engine.ErrNoPostsResolved):
		return http.StatusNotFound
	case errors.As(err, &limit):
		return http.StatusTooManyRequests
	case errors.As(err, &orch), errors.As(err, &perr):
		return http.StatusBadGateway
	case errors.Is(err, llm.ErrNotConfigured), errors.Is(err, errJobsDisabled), errors.Is(err, errReportsDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := models.ErrorResponse{Error: http.StatusText(status), Details: err.Error(), RequestID: requestID(r)}

	var orch *research.OrchestrationError
	if errors.As(err, &orch) {
		summary := orch.Summary
		body.AgentSummary = &summary
	}

	log := s.log.With(slog.String("request_id", body.RequestID), slog.String("path", r.URL.Path))
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.Int("status", status), slog.Any("err", err))
	} else {
		log.Info("request rejected", slog.Int("status", status), slog.Any("err", err))
	}
	writeJSON(w, status, body)
}

// withRequestID fixes the request id once per request: chi's id when the
// RequestID middleware ran, a fresh uuid otherwise. Handlers and error
// bodies read it back with requestID.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetReqID(r.Context())
		if id == "" {
			id = uuid.NewString()
		}
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

func requestID(r *http.Request) string {
	return logger.RequestID(r.Context())
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts
	}
	return nil
}

func parseCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
