// Package api provides the HTTP surface the rendering and enforcement
// collaborators call. JSON in, JSON out; no UI is rendered here.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tally-app/tally/internal/app/engagement"
	"github.com/tally-app/tally/internal/app/ledger"
	"github.com/tally-app/tally/internal/app/limits"
	"github.com/tally-app/tally/internal/domain"
	"github.com/tally-app/tally/internal/health"
	"github.com/tally-app/tally/internal/infra/sqlite"
)

// Server is the Tally HTTP API server.
type Server struct {
	ledger         *ledger.Service
	limits         *limits.Service
	streak         *engagement.StreakService
	pet            *engagement.PetService
	achievements   *engagement.AchievementService
	db             *sqlite.DB
	clock          domain.Clock
	checker        *health.Checker
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(led *ledger.Service, lim *limits.Service, streak *engagement.StreakService,
	pet *engagement.PetService, ach *engagement.AchievementService,
	db *sqlite.DB, clock domain.Clock) *Server {
	return &Server{
		ledger:       led,
		limits:       lim,
		streak:       streak,
		pet:          pet,
		achievements: ach,
		db:           db,
		clock:        clock,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth attaches the daemon's health checker so /health reports
// real check results instead of a bare liveness answer.
func (s *Server) SetHealth(c *health.Checker) { s.checker = c }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		// Goals and limits
		r.Get("/goals", s.handleListGoals)
		r.Post("/goals", s.handleCreateGoal)
		r.Route("/goals/{app}", func(r chi.Router) {
			r.Delete("/", s.handleDeactivateGoal)
			r.Get("/limit", s.handleEffectiveLimit)
			r.Put("/limit", s.handleSetBaseLimit)
			r.Get("/overrides", s.handleOverrides)
			r.Post("/restriction", s.handleSetRestriction)
			r.Delete("/restriction", s.handleClearRestriction)
			r.Post("/extension", s.handleGrantExtension)
			r.Post("/session", s.handleSessionMode)
		})

		// Usage intake (enforcement collaborator)
		r.Post("/usage", s.handleReportUsage)
		r.Post("/puzzles/solved", s.handlePuzzleSolved)

		// Ledger
		r.Get("/ledger", s.handleLedgerStatus)
		r.Get("/ledger/history", s.handleLedgerHistory)
		r.Get("/ledger/periods", s.handleLedgerPeriods)
		r.Post("/ledger/fee", s.handlePayFee)

		// Engagement
		r.Get("/engagement/streak", s.handleStreak)
		r.Get("/engagement/achievements", s.handleAchievements)
		r.Get("/engagement/pet", s.handlePet)

		// Rendering-layer rollup
		r.Get("/summary", s.handleSummary)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status := http.StatusOK
	overall := "ok"
	if !s.checker.IsHealthy() {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	writeJSON(w, status, map[string]interface{}{
		"status": overall,
		"checks": s.checker.Statuses(),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// corsMiddleware adds CORS headers for the local rendering layer.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
