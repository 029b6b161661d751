package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/feedback"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/opensource-finance/harrier/internal/scoring"
)

const caseCacheTTL = 5 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	engine   *rules.Engine
	feedback *feedback.Engine
	version  string
}

// NewHandler creates a new API handler. cache, bus, and engine may be nil.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, fb *feedback.Engine, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		engine:   engine,
		feedback: fb,
		version:  version,
	}
}

// ingestedEvent is published on the ingested topic after a case is saved.
type ingestedEvent struct {
	CaseID   string `json:"caseId"`
	TenantID string `json:"tenantId"`
	TraceID  string `json:"traceId,omitempty"`
}

// IngestCase handles POST /cases: normalizes the payload, runs the
// first-pass risk aggregation, persists, and publishes the ingested
// event for async consumers.
func (h *Handler) IngestCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req domain.CaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.CaseNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "caseNumber is required",
		})
		return
	}
	if req.Transaction.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction.amount must be positive",
		})
		return
	}
	if req.DisputeReason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "disputeReason is required",
		})
		return
	}

	c := req.ToCase()
	c.ID = uuid.New().String()
	c.TenantID = tenantID

	scoring.Initial(c)

	if err := h.repo.SaveCase(ctx, tenantID, c); err != nil {
		slog.Error("failed to save case", "case_id", c.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save case",
		})
		return
	}

	if h.cache != nil {
		if err := h.cache.SetCase(ctx, tenantID, c.ID, c, caseCacheTTL); err != nil {
			slog.Warn("failed to cache case", "case_id", c.ID, "error", err)
		}
	}

	if h.bus != nil {
		payload, _ := json.Marshal(ingestedEvent{
			CaseID:   c.ID,
			TenantID: tenantID,
			TraceID:  traceID,
		})
		if err := h.bus.Publish(ctx, tenantID, domain.TopicCaseIngested, payload); err != nil {
			slog.Error("failed to publish ingested event", "case_id", c.ID, "error", err)
		}
	}

	slog.Info("case ingested",
		"case_id", c.ID,
		"tenant_id", tenantID,
		"risk_score", c.RiskScore,
		"recommendation", c.Recommendation,
	)

	writeJSON(w, http.StatusCreated, c)
}

// ListCases handles GET /cases with optional status/category filters
// and limit/offset pagination.
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	filter := domain.CaseFilter{
		Status:   r.URL.Query().Get("status"),
		Category: domain.Category(r.URL.Query().Get("category")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "offset must be a non-negative integer",
			})
			return
		}
		filter.Offset = n
	}

	cases, err := h.repo.ListCases(ctx, tenantID, filter)
	if err != nil {
		slog.Error("failed to list cases", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list cases",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cases": cases,
		"count": len(cases),
	})
}

// GetCase handles GET /cases/{id}, reading through the cache.
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	caseID := chi.URLParam(r, "id")

	c, err := h.loadCase(ctx, tenantID, caseID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// AnalyzeCase handles POST /cases/{id}/analyze. It re-derives the
// narrative, key factors, and warning flags from the persisted score —
// never re-scoring — and refreshes the stored analysis text.
func (h *Handler) AnalyzeCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	caseID := chi.URLParam(r, "id")

	c, err := h.loadCase(ctx, tenantID, caseID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result := scoring.Analyze(c, time.Now().UTC())

	// Flag rules contribute advisory warnings to the outbound tuple.
	if h.engine != nil && h.engine.RulesCount() > 0 {
		ruleFlags, err := h.engine.Flags(ctx, c)
		if err != nil {
			slog.Error("flag rule evaluation failed", "case_id", caseID, "error", err)
		} else {
			result.WarningFlags = mergeFlags(result.WarningFlags, ruleFlags)
		}
	}

	// A recorded human decision freezes the stored record; the
	// re-derived tuple is still returned read-only.
	if !c.Closed() && c.Analysis != result.Analysis {
		updated := c.Clone()
		updated.Analysis = result.Analysis
		updated.Touch()
		if err := h.repo.UpdateCase(ctx, tenantID, updated); err != nil {
			slog.Error("failed to refresh analysis", "case_id", caseID, "error", err)
		} else if h.cache != nil {
			if err := h.cache.SetCase(ctx, tenantID, caseID, updated, caseCacheTTL); err != nil {
				slog.Warn("failed to refresh case cache", "case_id", caseID, "error", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// ReanalyzeRequest is the request body for POST /cases/{id}/reanalyze.
type ReanalyzeRequest struct {
	Feedback string `json:"feedback"`
}

// ReanalyzeCase handles POST /cases/{id}/reanalyze: analyst feedback
// drives a rescore through the feedback engine.
func (h *Handler) ReanalyzeCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	caseID := chi.URLParam(r, "id")

	if h.feedback == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "feedback engine not available",
		})
		return
	}

	var req ReanalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	updated, err := h.feedback.Submit(ctx, tenantID, caseID, req.Feedback)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// DecisionRequest is the request body for POST /cases/{id}/decision.
type DecisionRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes,omitempty"`
}

// DecideCase handles POST /cases/{id}/decision. Recording a human
// decision closes the case; all automated mutation is rejected after
// this point.
func (h *Handler) DecideCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	caseID := chi.URLParam(r, "id")

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	switch req.Decision {
	case domain.DecisionApprove, domain.DecisionReject,
		domain.DecisionInvestigate, domain.DecisionSendToMerchant:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "decision must be one of approve, reject, investigate, send_to_merchant",
		})
		return
	}

	c, err := h.loadCase(ctx, tenantID, caseID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if c.Closed() {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "case already has a recorded decision",
		})
		return
	}

	updated := c.Clone()
	updated.HumanDecision = req.Decision
	if req.Notes != "" {
		updated.AnalystFeedback = strings.TrimSpace(req.Notes)
	}
	switch req.Decision {
	case domain.DecisionInvestigate:
		updated.Status = domain.StatusMerchantInvestigation
	case domain.DecisionSendToMerchant:
		updated.Status = domain.StatusRepresentmentRaised
	default:
		updated.Status = domain.StatusClosed
	}
	updated.Touch()

	if err := h.repo.UpdateCase(ctx, tenantID, updated); err != nil {
		h.writeError(w, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.SetCase(ctx, tenantID, caseID, updated, caseCacheTTL); err != nil {
			slog.Warn("failed to refresh case cache", "case_id", caseID, "error", err)
		}
	}

	if h.bus != nil {
		payload, _ := json.Marshal(map[string]string{
			"caseId":   updated.ID,
			"decision": req.Decision,
			"status":   updated.Status,
		})
		if err := h.bus.Publish(ctx, tenantID, domain.TopicCaseDecided, payload); err != nil {
			slog.Error("failed to publish decided event", "case_id", caseID, "error", err)
		}
	}

	slog.Info("decision recorded",
		"case_id", caseID,
		"tenant_id", tenantID,
		"decision", req.Decision,
		"status", updated.Status,
	)

	writeJSON(w, http.StatusOK, updated)
}

// BreakdownResponse is the response for GET /cases/{id}/breakdown.
type BreakdownResponse struct {
	CaseID    string               `json:"caseId"`
	Factors   []domain.FactorScore `json:"factors"`
	Total     int                  `json:"total"`
	RiskScore int                  `json:"riskScore"`
	RiskLevel string               `json:"riskLevel"`
}

// GetBreakdown handles GET /cases/{id}/breakdown. The itemized table
// is advisory; riskScore echoes the persisted value.
func (h *Handler) GetBreakdown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	caseID := chi.URLParam(r, "id")

	c, err := h.loadCase(ctx, tenantID, caseID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	bd := scoring.Aggregate(scoring.Extract(c))

	writeJSON(w, http.StatusOK, BreakdownResponse{
		CaseID:    c.ID,
		Factors:   bd.Factors,
		Total:     bd.Total,
		RiskScore: c.RiskScore,
		RiskLevel: scoring.RiskLevel(c.RiskScore),
	})
}

// GetStats handles GET /stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	stats, err := h.repo.GetCaseStats(ctx, tenantID)
	if err != nil {
		slog.Error("failed to compute stats", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to compute stats",
		})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GlobalTenantID is used for flag rules that apply to all tenants.
const GlobalTenantID = "*"

// ListRules returns all flag rules currently loaded in the engine.
// Rules are loaded from the database at startup and can be reloaded via
// POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a flag rule from the database.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	rule, err := h.repo.GetFlagRule(ctx, GlobalTenantID, ruleID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// CreateRuleRequest is the request body for creating a flag rule.
type CreateRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Flag        string `json:"flag"`
	Enabled     bool   `json:"enabled"`
}

// CreateRule creates a new flag rule and saves it to the database.
// Rules are saved globally (tenant_id = "*") so they apply to all
// tenants. After saving, call POST /rules/reload to hot-reload into
// the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" || req.Flag == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, expression, and flag are required",
		})
		return
	}

	rule := &domain.FlagRule{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Flag:        req.Flag,
		Enabled:     req.Enabled,
	}

	// Validate the CEL expression before persisting.
	if err := h.engine.ValidateRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveFlagRule(ctx, GlobalTenantID, rule); err != nil {
		slog.Error("failed to save flag rule", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	slog.Info("flag rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// UpdateRule updates an existing flag rule.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Name == "" || req.Expression == "" || req.Flag == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name, expression, and flag are required",
		})
		return
	}

	rule := &domain.FlagRule{
		ID:          ruleID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Flag:        req.Flag,
		Enabled:     req.Enabled,
	}

	if err := h.engine.ValidateRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveFlagRule(ctx, GlobalTenantID, rule); err != nil {
		slog.Error("failed to update flag rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to update rule",
		})
		return
	}

	slog.Info("flag rule updated", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rule":    rule,
		"message": "Rule updated. Call POST /rules/reload to apply changes.",
	})
}

// DeleteRule soft-deletes a flag rule and auto-reloads the engine.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if err := h.repo.DeleteFlagRule(ctx, GlobalTenantID, ruleID); err != nil {
		h.writeError(w, err)
		return
	}

	dbRules, err := h.repo.ListFlagRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to reload rules after delete", "error", err)
	} else if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
	}

	slog.Info("flag rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Rule deleted and engine reloaded.",
	})
}

// ReloadRules reloads all flag rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbRules, err := h.repo.ListFlagRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("flag rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// loadCase reads a case through the cache, falling back to the
// repository and repopulating on a miss.
func (h *Handler) loadCase(ctx context.Context, tenantID, caseID string) (*domain.DisputeCase, error) {
	if caseID == "" {
		return nil, domain.ErrInvalidInput
	}

	if h.cache != nil {
		if c, err := h.cache.GetCase(ctx, tenantID, caseID); err == nil && c != nil {
			return c, nil
		}
	}

	c, err := h.repo.GetCase(ctx, tenantID, caseID)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.SetCase(ctx, tenantID, caseID, c, caseCacheTTL); err != nil {
			slog.Warn("failed to populate case cache", "case_id", caseID, "error", err)
		}
	}

	return c, nil
}

// writeError maps domain sentinel errors to HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "not found",
		})
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrEmptyFeedback):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	case errors.Is(err, domain.ErrCaseClosed), errors.Is(err, domain.ErrReanalysisPending):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": err.Error(),
		})
	case errors.Is(err, domain.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error": err.Error(),
		})
	case errors.Is(err, domain.ErrRescoreUnavailable):
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": "rescoring unavailable",
		})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}
}

// mergeFlags appends rule flags to the derived warnings, dropping
// duplicates while preserving order.
func mergeFlags(derived, ruleFlags []string) []string {
	seen := make(map[string]bool, len(derived)+len(ruleFlags))
	out := make([]string, 0, len(derived)+len(ruleFlags))
	for _, f := range derived {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, f := range ruleFlags {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
