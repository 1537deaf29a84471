// Package server exposes the analyses over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/naka-gawa/repo-health/internal/apperr"
	"github.com/naka-gawa/repo-health/internal/config"
	"github.com/naka-gawa/repo-health/internal/domain"
)

// Messages returned to clients.
const (
	MsgMissingToken = "GitHub API key not found"
	MsgRepoParams   = "Owner and repo parameters are required"
	MsgUserParam    = "Username parameter is required"
	MsgOrgParam     = "Organization name parameter is required"
	MsgURLParam     = "GitHub URL parameter is required"
	MsgRepoFailed   = "Failed to analyze repository"
	MsgUserFailed   = "Failed to analyze user"
	MsgOrgFailed    = "Failed to analyze organization"
	MsgURLFailed    = "Failed to analyze GitHub URL"
)

const corsMaxAgeSeconds = 300

// Analyzer runs the analyses behind each route.
type Analyzer interface {
	AnalyzeRepo(ctx context.Context, owner, repo string) (*domain.RepoReport, error)
	AnalyzeUser(ctx context.Context, username string) (*domain.UserReport, error)
	AnalyzeOrg(ctx context.Context, org string) (*domain.OrgReport, error)
	AnalyzeURL(ctx context.Context, raw string) (*domain.URLReport, error)
}

// Handler serves the analysis routes.
type Handler struct {
	analyzer Analyzer
	hasToken bool
	logger   *log.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates the HTTP handler with all routes and middleware registered.
func New(analyzer Analyzer, cfg *config.Config, logger *log.Logger) http.Handler {
	h := &Handler{
		analyzer: analyzer,
		hasToken: cfg.GitHub.HasToken(),
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", headerRequestID},
		ExposedHeaders: []string{headerRequestID},
		MaxAge:         corsMaxAgeSeconds,
	}))

	r.Get("/healthz", h.healthz)
	r.Group(func(r chi.Router) {
		r.Use(h.requireToken)
		r.Get("/analyze_repo", h.analyzeRepo)
		r.Get("/analyze_user", h.analyzeUser)
		r.Get("/analyze_org", h.analyzeOrg)
		r.Get("/analyze_github", h.analyzeGitHub)
	})
	return r
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireToken answers 500 before any parameter is looked at when no API token is configured.
func (h *Handler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.hasToken {
			h.fail(w, r, apperr.New(apperr.KindConfig, MsgMissingToken), MsgMissingToken)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) analyzeRepo(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	repo := r.URL.Query().Get("repo")
	if owner == "" || repo == "" {
		jsonErr(w, http.StatusBadRequest, MsgRepoParams)
		return
	}
	report, err := h.analyzer.AnalyzeRepo(r.Context(), owner, repo)
	if err != nil {
		h.fail(w, r, err, MsgRepoFailed)
		return
	}
	jsonResp(w, http.StatusOK, report)
}

func (h *Handler) analyzeUser(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		jsonErr(w, http.StatusBadRequest, MsgUserParam)
		return
	}
	report, err := h.analyzer.AnalyzeUser(r.Context(), username)
	if err != nil {
		h.fail(w, r, err, MsgUserFailed)
		return
	}
	jsonResp(w, http.StatusOK, report)
}

func (h *Handler) analyzeOrg(w http.ResponseWriter, r *http.Request) {
	org := r.URL.Query().Get("org")
	if org == "" {
		jsonErr(w, http.StatusBadRequest, MsgOrgParam)
		return
	}
	report, err := h.analyzer.AnalyzeOrg(r.Context(), org)
	if err != nil {
		h.fail(w, r, err, MsgOrgFailed)
		return
	}
	jsonResp(w, http.StatusOK, report)
}

func (h *Handler) analyzeGitHub(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		jsonErr(w, http.StatusBadRequest, MsgURLParam)
		return
	}
	report, err := h.analyzer.AnalyzeURL(r.Context(), raw)
	if err != nil {
		h.fail(w, r, err, MsgURLFailed)
		return
	}
	jsonResp(w, http.StatusOK, report)
}

// fail writes err to the client. Validation and config messages are passed
// through; anything else is replaced by opaque and only the log keeps the cause.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, opaque string) {
	status := apperr.HTTPStatus(err)
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		jsonErr(w, status, apperr.UserMessage(err))
	case apperr.KindConfig:
		h.logger.Error("Service is misconfigured", "err", err, "path", r.URL.Path, "request_id", RequestID(r.Context()))
		jsonErr(w, status, apperr.UserMessage(err))
	default:
		h.logger.Error(opaque, "err", err, "path", r.URL.Path, "request_id", RequestID(r.Context()))
		jsonErr(w, status, opaque)
	}
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
