package httpproxy

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// AdminAPI provides REST endpoints for managing the rule registry at
// runtime: listing, adding, and removing rules, inspecting status, and
// triggering a config reload.
//
// The API is mounted at a configurable path prefix (default "/api") and
// uses [chi] for routing. All endpoints return JSON.
type AdminAPI struct {
	// Proxy is the proxy instance to manage.
	Proxy *Proxy

	// Logger for admin API events.
	Logger *slog.Logger

	// PathPrefix is the URL path prefix for admin routes (default "/api").
	PathPrefix string

	// ReloadFunc is called on POST /api/reload. It should rebuild the
	// rule set from its source (e.g. the config file). If nil, the
	// reload endpoint returns 501 Not Implemented.
	ReloadFunc func(ctx context.Context) error

	router chi.Router
}

// NewAdminAPI creates an AdminAPI wired to the given proxy.
func NewAdminAPI(proxy *Proxy) *AdminAPI {
	a := &AdminAPI{
		Proxy:      proxy,
		Logger:     proxy.Logger,
		PathPrefix: "/api",
	}
	a.buildRouter()
	return a
}

func (a *AdminAPI) buildRouter() {
	r := chi.NewRouter()
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Get("/status", a.handleStatus)
	r.Get("/rules", a.handleListRules)
	r.Post("/rules", a.handleAddRule)
	r.Delete("/rules", a.handleDeleteRule)
	r.Post("/reload", a.handleReload)

	a.router = r
}

// Handler returns an http.Handler for the admin routes.
func (a *AdminAPI) Handler() http.Handler {
	return http.StripPrefix(a.PathPrefix, a.router)
}

// ServeHTTP implements http.Handler by delegating to the internal chi
// router after stripping the path prefix.
func (a *AdminAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.Handler().ServeHTTP(w, r)
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Status    string `json:"status"`
	RuleCount int    `json:"rule_count"`
	Uptime    string `json:"uptime,omitempty"`
}

// RuleInfo describes one registered rule.
type RuleInfo struct {
	ID      string            `json:"id"`
	Match   string            `json:"match"`
	Proxy   string            `json:"proxy"`
	Headers map[string]string `json:"headers,omitempty"`
}

// RulesResponse is returned by GET /api/rules.
type RulesResponse struct {
	Count int        `json:"count"`
	Rules []RuleInfo `json:"rules"`
}

// RuleRequest is the body for POST /api/rules and DELETE /api/rules.
type RuleRequest struct {
	Match   string            `json:"match"`
	Proxy   string            `json:"proxy"`
	Headers map[string]string `json:"headers,omitempty"`
}

// ErrorResponse is returned for error conditions.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is returned for successful mutations.
type MessageResponse struct {
	Message string `json:"message"`
}

func (a *AdminAPI) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Status:    "ok",
		RuleCount: a.Proxy.Rules.Len(),
	}
	if a.Proxy.HealthChecker != nil {
		resp.Uptime = time.Since(a.Proxy.HealthChecker.startTime).Truncate(time.Second).String()
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *AdminAPI) handleListRules(w http.ResponseWriter, _ *http.Request) {
	compiled := a.Proxy.Rules.Rules()
	rules := make([]RuleInfo, 0, len(compiled))
	for _, cr := range compiled {
		rules = append(rules, RuleInfo{
			ID:      cr.ID,
			Match:   cr.Source.Match,
			Proxy:   cr.Source.Proxy,
			Headers: cr.Source.Headers,
		})
	}
	a.writeJSON(w, http.StatusOK, RulesResponse{Count: len(rules), Rules: rules})
}

func (a *AdminAPI) handleAddRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Match == "" || req.Proxy == "" {
		a.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "match and proxy are required"})
		return
	}

	err := a.Proxy.Rules.AddRule(Rule{
		Match:   req.Match,
		Proxy:   req.Proxy,
		Headers: req.Headers,
	})
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	a.Logger.Info("rule added via admin API", "match", req.Match, "proxy", req.Proxy)
	a.writeJSON(w, http.StatusCreated, MessageResponse{Message: "rule added"})
}

func (a *AdminAPI) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Match == "" {
		a.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "match is required"})
		return
	}

	if err := a.Proxy.Rules.RemoveRule(Rule{Match: req.Match}); err != nil {
		a.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	a.Logger.Info("rule removed via admin API", "match", req.Match)
	a.writeJSON(w, http.StatusOK, MessageResponse{Message: "rule removed"})
}

func (a *AdminAPI) handleReload(w http.ResponseWriter, r *http.Request) {
	if a.ReloadFunc == nil {
		a.writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "reload not configured"})
		return
	}
	if err := a.ReloadFunc(r.Context()); err != nil {
		a.Logger.Error("reload via admin API failed", "error", err)
		a.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	a.Logger.Info("rules reloaded via admin API")
	a.writeJSON(w, http.StatusOK, MessageResponse{Message: "rules reloaded"})
}

func (a *AdminAPI) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.Logger.Error("encode admin response", "error", err)
	}
}
