package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"optifolio/internal/auth"
	"optifolio/internal/config"
	"optifolio/internal/db"
	"optifolio/internal/logger"
	"optifolio/internal/marketdata"
	"optifolio/internal/portfolio"
	"optifolio/internal/task"
)

// Server is the HTTP API server that connects the market data client, the
// optimizer, and the database.
type Server struct {
	mu       sync.RWMutex
	cfg      *config.Config
	db       *db.DB
	market   *marketdata.Client
	tasks    *task.Manager
	sessions *auth.SessionStore
	secret   string
}

// NewServer creates a Server. secret gates token issuance; an empty secret
// disables the auth endpoints entirely.
func NewServer(cfg *config.Config, database *db.DB, market *marketdata.Client, tasks *task.Manager, sessions *auth.SessionStore, secret string) *Server {
	return &Server{
		cfg:      cfg,
		db:       database,
		market:   market,
		tasks:    tasks,
		sessions: sessions,
		secret:   secret,
	}
}

// Handler returns the HTTP handler with all API routes and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("POST /api/config", s.handleSetConfig)
	mux.HandleFunc("POST /api/optimize", s.handleOptimize)
	mux.HandleFunc("POST /api/frontier", s.handleFrontier)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/history/risk-return", s.handleHistoryRiskReturn)
	mux.HandleFunc("GET /api/history/runs", s.handleRunHistory)
	mux.HandleFunc("POST /api/refresh", s.requireAuth(s.handleRefresh))
	mux.HandleFunc("GET /api/tasks", s.handleTaskList)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskStatus)
	mux.HandleFunc("GET /api/tasks/{id}/stream", s.handleTaskStream)
	mux.HandleFunc("POST /api/tasks/{id}/cancel", s.requireAuth(s.handleTaskCancel))
	mux.HandleFunc("POST /api/auth/token", s.handleAuthToken)
	mux.HandleFunc("POST /api/auth/revoke", s.handleAuthRevoke)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// requireAuth wraps a handler with bearer-token validation.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, 401, "missing bearer token")
			return
		}
		if _, err := s.sessions.Validate(token); err != nil {
			writeError(w, 401, err.Error())
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// configSnapshot returns a copy of the current config for lock-free use.
func (s *Server) configSnapshot() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.cfg
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.configSnapshot()
	writeJSON(w, cfg)
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.configSnapshot()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	if err := validateConfig(&cfg); err != nil {
		writeError(w, 400, err.Error())
		return
	}
	if err := s.db.SaveConfig(&cfg); err != nil {
		logger.Error("API", "save config: "+err.Error())
		writeError(w, 500, "failed to persist config")
		return
	}
	s.mu.Lock()
	*s.cfg = cfg
	s.mu.Unlock()
	logger.Info("API", "config updated")
	writeJSON(w, cfg)
}

func validateConfig(c *config.Config) error {
	if c.MaxWeight <= 0 || c.MaxWeight > 1 {
		return fmt.Errorf("max_weight must be in (0, 1], got %v", c.MaxWeight)
	}
	if c.MaxLeverage < 1 || c.MaxLeverage > 3 {
		return fmt.Errorf("max_leverage must be in [1, 3], got %v", c.MaxLeverage)
	}
	if c.FrontierPoints < portfolio.MinFrontierPoints || c.FrontierPoints > portfolio.MaxFrontierPoints {
		return fmt.Errorf("frontier_points must be in [%d, %d], got %d",
			portfolio.MinFrontierPoints, portfolio.MaxFrontierPoints, c.FrontierPoints)
	}
	if c.PeriodsPerYear <= 0 {
		return fmt.Errorf("periods_per_year must be positive, got %v", c.PeriodsPerYear)
	}
	if c.HistoryYears < 1 || c.HistoryYears > 10 {
		return fmt.Errorf("history_years must be in [1, 10], got %d", c.HistoryYears)
	}
	if c.MaxTickers < 2 {
		return fmt.Errorf("max_tickers must be at least 2, got %d", c.MaxTickers)
	}
	return nil
}

func (s *Server) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if s.secret == "" {
		writeError(w, 404, "auth not configured")
		return
	}
	var req struct {
		Secret  string `json:"secret"`
		Subject string `json:"subject"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.Secret != s.secret {
		writeError(w, 401, "invalid secret")
		return
	}
	if req.Subject == "" {
		req.Subject = "api"
	}
	sess, err := s.sessions.Issue(req.Subject, auth.DefaultTTL)
	if err != nil {
		logger.Error("API", "issue token: "+err.Error())
		writeError(w, 500, "failed to issue token")
		return
	}
	writeJSON(w, sess)
}

// handleAuthRevoke deletes the session named by the request's own bearer
// token. Revoking an already-revoked or unknown token is a 401.
func (s *Server) handleAuthRevoke(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		writeError(w, 401, "missing bearer token")
		return
	}
	if _, err := s.sessions.Validate(token); err != nil {
		writeError(w, 401, err.Error())
		return
	}
	if err := s.sessions.Revoke(token); err != nil {
		logger.Error("API", "revoke token: "+err.Error())
		writeError(w, 500, "failed to revoke token")
		return
	}
	writeJSON(w, map[string]string{"status": "revoked"})
}

// handleRunHistory lists recent optimization runs, newest first.
func (s *Server) handleRunHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, 400, "limit must be in [1, 500]")
			return
		}
		limit = n
	}
	runs, err := s.db.RecentRuns(limit)
	if err != nil {
		logger.Error("API", "list runs: "+err.Error())
		writeError(w, 500, "failed to load run history")
		return
	}
	if runs == nil {
		runs = []db.RunRecord{}
	}
	writeJSON(w, runs)
}

// span converts the configured history depth into a Yahoo range string.
func span(years int) string {
	return fmt.Sprintf("%dy", years)
}

// fetchTimeout is a small helper used by handlers that fan out fetches.
func fetchTimeout(cfg config.Config) time.Duration {
	return time.Duration(cfg.FetchTimeoutSeconds) * time.Second
}
