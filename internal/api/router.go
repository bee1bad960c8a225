// Package api exposes the engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/engine/application"
	"trade-match-engine/internal/engine/feed"
	"trade-match-engine/internal/engine/interaction"
	"trade-match-engine/internal/engine/scoring"
)

const maxBodySize = 1 << 20

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Scorer       *scoring.Scorer
	Feed         *feed.Builder
	Interactions *interaction.Service
	Applications *application.Service
	Logger       logger.Logger
	Checks       map[string]HealthCheck
}

type server struct {
	Deps
}

func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	s := &server{Deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/score", s.handleScore)
		r.Post("/rank", s.handleRank)
		r.Get("/candidates/{candidateID}/feed", s.handleFeed)

		r.Route("/candidates/{candidateID}/jobs/{jobID}/interaction", func(r chi.Router) {
			r.Get("/", s.handleGetInteraction)
			r.Post("/save", s.handleInteraction(actionSave))
			r.Post("/apply-click", s.handleInteraction(actionApplyClick))
			r.Post("/applied", s.handleInteraction(actionApplied))
			r.Post("/not-interested", s.handleInteraction(actionNotInterested))
			r.Put("/notes", s.handleInteraction(actionNotes))
		})

		r.Post("/applications", s.handleCreateApplication)
		r.Route("/applications/{applicationID}", func(r chi.Router) {
			r.Get("/", s.handleGetApplication)
			r.Post("/status", s.handleTransition)
			r.Put("/notes", s.handleApplicationNotes)
		})
	})
	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Debug("http request", map[string]interface{}{
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    ww.Status(),
			"duration":  time.Since(start).String(),
			"requestId": middleware.GetReqID(r.Context()),
		})
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{}
	for name, check := range s.Checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]interface{}{"status": "ok", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	writeJSON(w, status, body)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
