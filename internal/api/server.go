// Package api serves the scoring subsystem over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/antonio-prism/prism-brain/internal/model"
	"github.com/antonio-prism/prism-brain/internal/probability"
	"github.com/antonio-prism/prism-brain/internal/relevance"
)

// Calculator resolves probabilities for a set of risks.
type Calculator interface {
	CalculateAll(ctx context.Context, risks []model.RiskEvent, client model.ClientProfile) map[string]model.ProbabilityResult
}

// Assessments is the assessment write and read contract.
type Assessments interface {
	SaveAssessment(ctx context.Context, rec model.ExposureRecord) error
	ListAssessments(ctx context.Context, clientID string) ([]model.ExposureRecord, error)
}

// Freshness reports on the signal cache.
type Freshness interface {
	CacheFreshness(ctx context.Context) ([]model.CacheFreshness, error)
}

// Deps are the collaborators a Server needs. Signals and Cache may be nil.
type Deps struct {
	Catalog     []model.RiskEvent
	Calculator  Calculator
	Assessments Assessments
	Signals     probability.SignalFetcher
	Cache       Freshness
	// Defaults applied when a request leaves its selection cutoffs at zero.
	ThresholdPct float64
	MinScore     float64
	// WorkingDays spreads client revenue into a default daily criticality.
	WorkingDays int
}

// Server holds the handlers.
type Server struct {
	deps    Deps
	byID    map[string]model.RiskEvent
	scorer  *relevance.Scorer
	started time.Time
}

// New builds a Server over deps.
func New(deps Deps) *Server {
	byID := make(map[string]model.RiskEvent, len(deps.Catalog))
	for _, r := range deps.Catalog {
		byID[r.ID] = r
	}
	return &Server{
		deps:    deps,
		byID:    byID,
		scorer:  relevance.NewScorer(deps.Catalog),
		started: time.Now(),
	}
}

// Router returns the route tree. corsOrigins of nil allows any origin.
func (s *Server) Router(corsOrigins []string) http.Handler {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(requestLogger)

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/probabilities", s.getProbabilities)
		api.Get("/signals", s.getSignals)
		api.Get("/cache", s.getCache)
		api.Post("/relevance", s.postRelevance)
		api.Post("/prioritize", s.postPrioritize)
		api.Put("/assessments", s.putAssessment)
		api.Get("/clients/{clientID}/exposure", s.getExposure)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"risks":   len(s.deps.Catalog),
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"version": "v1",
	})
}
