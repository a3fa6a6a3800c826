package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/joescharf/jobdash/internal/analytics"
	"github.com/joescharf/jobdash/internal/app"
	"github.com/joescharf/jobdash/internal/automation"
	"github.com/joescharf/jobdash/internal/backend"
	"github.com/joescharf/jobdash/internal/llm"
	"github.com/joescharf/jobdash/internal/models"
	"github.com/joescharf/jobdash/internal/session"
)

// DefaultCacheTTL is how long a dashboard response is reused.
const DefaultCacheTTL = 30 * time.Second

// Server provides the REST API handlers.
type Server struct {
	app      *app.App
	llm      *llm.Client
	cache    *cache.Cache
	cacheTTL time.Duration
	logger   *slog.Logger
	window   analytics.Window
}

// Option configures a Server.
type Option func(*Server)

// WithCacheTTL sets the dashboard cache lifetime. Zero disables caching.
func WithCacheTTL(d time.Duration) Option {
	return func(s *Server) { s.cacheTTL = d }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithDefaultWindow sets the window used when a request omits one.
func WithDefaultWindow(w analytics.Window) Option {
	return func(s *Server) { s.window = w }
}

// NewServer creates a new API server. llmClient may be nil when no
// Anthropic key is configured.
func NewServer(a *app.App, llmClient *llm.Client, opts ...Option) *Server {
	s := &Server{
		app:      a,
		llm:      llmClient,
		cacheTTL: DefaultCacheTTL,
		logger:   slog.Default(),
		window:   analytics.LastDays(30),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cacheTTL > 0 {
		s.cache = cache.New(s.cacheTTL, 2*s.cacheTTL)
	}
	return s
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", s.health)

	mux.HandleFunc("GET /api/v1/dashboard", s.getDashboard)
	mux.HandleFunc("GET /api/v1/analytics", s.getAnalytics)
	mux.HandleFunc("GET /api/v1/activity", s.getActivity)
	mux.HandleFunc("GET /api/v1/insights", s.getInsights)

	mux.HandleFunc("GET /api/v1/checklist", s.getChecklist)

	mux.HandleFunc("GET /api/v1/automation", s.getAutomation)
	mux.HandleFunc("POST /api/v1/automation/{action}", s.automationAction)

	mux.HandleFunc("GET /api/v1/session", s.getSession)
	mux.HandleFunc("POST /api/v1/session", s.startSession)
	mux.HandleFunc("POST /api/v1/session/stats", s.updateSessionStats)
	mux.HandleFunc("DELETE /api/v1/session", s.endSession)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// windowParam reads ?window=, falling back to the server default.
func (s *Server) windowParam(w http.ResponseWriter, r *http.Request) (analytics.Window, bool) {
	raw := r.URL.Query().Get("window")
	if raw == "" {
		return s.window, true
	}
	win, err := analytics.ParseWindow(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return analytics.Window{}, false
	}
	return win, true
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"connected": s.app.Connected(),
		"backend":   s.app.BaseURL(),
	}
	if err := s.app.ConnectError(); err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Dashboard ---

func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request) {
	win, ok := s.windowParam(w, r)
	if !ok {
		return
	}
	key := "dashboard:" + win.String()
	if s.cache != nil && r.URL.Query().Get("refresh") == "" {
		if v, found := s.cache.Get(key); found {
			w.Header().Set("X-Cache", "hit")
			writeJSON(w, http.StatusOK, v)
			return
		}
	}

	view := s.app.Dashboard(r.Context(), win)
	if s.cache != nil && len(view.Errors) == 0 {
		s.cache.SetDefault(key, view)
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) getAnalytics(w http.ResponseWriter, r *http.Request) {
	win, ok := s.windowParam(w, r)
	if !ok {
		return
	}
	snap, err := s.app.Analytics(r.Context(), win)
	if err != nil {
		writeError(w, http.StatusBadGateway, backend.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot":      snap,
		"monthly":       snap.MonthlyTrend(),
		"top_companies": snap.TopCompanies(5),
		"top_locations": snap.TopLocations(5),
	})
}

func (s *Server) getActivity(w http.ResponseWriter, r *http.Request) {
	view := s.app.Dashboard(r.Context(), s.window)
	writeJSON(w, http.StatusOK, map[string]any{
		"activity": view.Activity,
		"errors":   view.Errors,
	})
}

func (s *Server) getInsights(w http.ResponseWriter, r *http.Request) {
	if s.llm == nil {
		writeError(w, http.StatusServiceUnavailable, "insights need anthropic.api_key to be configured")
		return
	}
	win, ok := s.windowParam(w, r)
	if !ok {
		return
	}
	view := s.app.Dashboard(r.Context(), win)
	if msg, failed := view.Errors["applied"]; failed {
		writeError(w, http.StatusBadGateway, msg)
		return
	}
	ins, err := s.llm.Insights(r.Context(), view.Analytics, view.Activity)
	if err != nil {
		s.logger.Warn("insights failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ins)
}

// --- Checklist & automation ---

func (s *Server) getChecklist(w http.ResponseWriter, r *http.Request) {
	cl := s.app.Checklist(r.Context())
	done, total := cl.Progress()
	writeJSON(w, http.StatusOK, map[string]any{
		"items":     cl.Items,
		"errors":    cl.Errors,
		"blocked":   cl.Blocked(),
		"completed": done,
		"total":     total,
	})
}

type automationResponse struct {
	State    models.AutomationState `json:"state"`
	Blocked  bool                   `json:"blocked"`
	Blockers []models.ChecklistItem `json:"blockers"`
}

func (s *Server) automationView(r *http.Request, st models.AutomationState) automationResponse {
	cl := s.app.Checklist(r.Context())
	blockers := cl.Blockers()
	if blockers == nil {
		blockers = []models.ChecklistItem{}
	}
	return automationResponse{State: st, Blocked: cl.Blocked(), Blockers: blockers}
}

func (s *Server) getAutomation(w http.ResponseWriter, r *http.Request) {
	ctrl := s.app.Automation()
	st := ctrl.State()
	if r.URL.Query().Get("refresh") != "" {
		st, _ = ctrl.Refresh(r.Context())
	}
	writeJSON(w, http.StatusOK, s.automationView(r, st))
}

func (s *Server) automationAction(w http.ResponseWriter, r *http.Request) {
	action, err := automation.ParseAction(r.PathValue("action"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := s.app.Automation().Do(r.Context(), action)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.automationView(r, st))
	case errors.Is(err, automation.ErrBlocked), errors.Is(err, automation.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, automation.ErrDisconnected):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusBadGateway, backend.UserMessage(err))
	}
}

// --- Session ---

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"active": false}
	if sess, err := s.app.Sessions().Current(); err == nil {
		resp["active"] = true
		resp["session"] = sess
	}
	history, err := s.app.Store().ListSessionHistory(r.Context(), 10)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history == nil {
		history = []*models.SessionRecord{}
	}
	resp["history"] = history
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.app.Sessions().StartOrResume(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) updateSessionStats(w http.ResponseWriter, r *http.Request) {
	var u models.SessionStatsUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	mgr := s.app.Sessions()
	if _, err := mgr.Current(); errors.Is(err, session.ErrNoSession) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	stats, err := mgr.UpdateStats(r.Context(), u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Sessions().End(r.Context()); err != nil {
		// The id is cleared locally even when the backend rejects the end.
		s.logger.Warn("end session", "error", err)
		writeError(w, http.StatusBadGateway, backend.UserMessage(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
