package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/TechEqualizer/Sportlink-sub001/internal/alerts"
	"github.com/TechEqualizer/Sportlink-sub001/internal/api/respond"
	"github.com/TechEqualizer/Sportlink-sub001/internal/cache"
)

// invalidateRuleCache drops both rule-listing cache entries after a mutation.
func (h *Handler) invalidateRuleCache() {
	h.cache.Invalidate("alert-rules:all")
	h.cache.Invalidate("alert-rules:active")
}

// CreateRule creates an alert rule.
// @Summary Create an alert rule
// @Description Validates the configuration up front: a between comparison without a secondary threshold is rejected here, never at evaluation time.
// @Tags alert-rules
// @Accept json
// @Produce json
// @Param rule body alerts.Rule true "Rule"
// @Success 201 {object} alerts.Rule
// @Failure 400 {object} respond.ErrorResponse
// @Router /alert-rules [post]
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rule alerts.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_JSON", "request body is not valid JSON")
		return
	}

	rule.Normalize()
	rule.IsActive = true
	if err := rule.Validate(); err != nil {
		respond.WriteDomainError(w, err)
		return
	}

	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	if err := h.alerts.InsertRule(r.Context(), &rule); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	h.invalidateRuleCache()
	respond.WriteJSONObject(w, http.StatusCreated, rule)
}

// ListRules lists alert rules. Dashboard polling hits this endpoint, so
// listings are served through the short-TTL cache with ETag revalidation;
// every rule mutation invalidates both entries.
// @Summary List alert rules
// @Tags alert-rules
// @Produce json
// @Param active query bool false "Only active rules"
// @Success 200 {array} alerts.Rule
// @Router /alert-rules [get]
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	cacheKey := "alert-rules:all"
	if activeOnly {
		cacheKey = "alert-rules:active"
	}

	if data, etag, ok := h.cache.Get(cacheKey); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, cache.TTLRules, true)
		return
	}

	rules, err := h.alerts.ListRules(r.Context(), activeOnly)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if rules == nil {
		rules = []alerts.Rule{}
	}

	data, err := json.Marshal(rules)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "encode rules")
		return
	}
	etag := h.cache.Set(cacheKey, data, cache.TTLRules)
	respond.WriteJSON(w, data, etag, cache.TTLRules, false)
}

// UpdateRule edits an alert rule. Rules are the one entity coaches edit
// directly after creation.
// @Summary Update an alert rule
// @Tags alert-rules
// @Accept json
// @Produce json
// @Param ruleID path int true "Rule id"
// @Param rule body alerts.Rule true "Rule"
// @Success 200 {object} alerts.Rule
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /alert-rules/{ruleID} [patch]
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "ruleID"), 10, 64)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_ID", "rule id must be an integer")
		return
	}

	existing, err := h.alerts.GetRule(r.Context(), id)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}

	// Decode over the existing rule so omitted fields keep their values.
	rule := *existing
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_JSON", "request body is not valid JSON")
		return
	}
	rule.ID = existing.ID
	rule.CreatedAt = existing.CreatedAt
	rule.Normalize()
	if err := rule.Validate(); err != nil {
		respond.WriteDomainError(w, err)
		return
	}

	rule.UpdatedAt = time.Now().UTC()
	if err := h.alerts.UpdateRule(r.Context(), &rule); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	h.invalidateRuleCache()
	respond.WriteJSONObject(w, http.StatusOK, rule)
}

// DeactivateRule removes a rule from evaluation without deleting it.
// @Summary Deactivate an alert rule
// @Tags alert-rules
// @Produce json
// @Param ruleID path int true "Rule id"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} respond.ErrorResponse
// @Router /alert-rules/{ruleID}/deactivate [post]
func (h *Handler) DeactivateRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "ruleID"), 10, 64)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_ID", "rule id must be an integer")
		return
	}

	if err := h.alerts.SetRuleActive(r.Context(), id, false, time.Now().UTC()); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	h.invalidateRuleCache()
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"rule_id":   id,
		"is_active": false,
	})
}

// ListAlerts lists performance alerts.
// @Summary List performance alerts
// @Tags alerts
// @Produce json
// @Param player query string false "Filter by player id"
// @Param unresolved query bool false "Only unresolved alerts"
// @Success 200 {array} alerts.Alert
// @Router /alerts [get]
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	f := alerts.Filter{
		PlayerID:   r.URL.Query().Get("player"),
		Unresolved: r.URL.Query().Get("unresolved") == "true",
	}
	list, err := h.alerts.ListAlerts(r.Context(), f)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if list == nil {
		list = []alerts.Alert{}
	}
	respond.WriteJSONObject(w, http.StatusOK, list)
}

type acknowledgeRequest struct {
	UserID string `json:"user_id"`
}

// AcknowledgeAlert marks an alert acknowledged by a user.
// @Summary Acknowledge an alert
// @Tags alerts
// @Accept json
// @Produce json
// @Param alertID path int true "Alert id"
// @Param body body acknowledgeRequest true "Acknowledging user"
// @Success 200 {object} alerts.Alert
// @Failure 404 {object} respond.ErrorResponse
// @Router /alerts/{alertID}/acknowledge [post]
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "alertID"), 10, 64)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_ID", "alert id must be an integer")
		return
	}

	var req acknowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_JSON", "request body is not valid JSON")
		return
	}
	if req.UserID == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_USER", "user_id is required")
		return
	}

	alert, err := h.alerts.Acknowledge(r.Context(), id, req.UserID, time.Now().UTC())
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, alert)
}

// ResolveAlert manually resolves an alert.
// @Summary Resolve an alert
// @Tags alerts
// @Produce json
// @Param alertID path int true "Alert id"
// @Success 200 {object} alerts.Alert
// @Failure 404 {object} respond.ErrorResponse
// @Router /alerts/{alertID}/resolve [post]
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "alertID"), 10, 64)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_ID", "alert id must be an integer")
		return
	}

	alert, err := h.alerts.Resolve(r.Context(), id, time.Now().UTC())
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, alert)
}

// Evaluate triggers one evaluation pass. This is the hook an external
// scheduler calls per check_frequency.
// @Summary Run an evaluation pass
// @Tags alerts
// @Produce json
// @Param frequency query string false "Limit to a check_frequency bucket" Enums(realtime, hourly, daily, weekly)
// @Success 200 {object} alerts.PassResult
// @Router /alerts/evaluate [post]
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	frequency := r.URL.Query().Get("frequency")
	var result alerts.PassResult
	if frequency == "" {
		result = h.engine.Evaluate(r.Context(), parseNow(r))
	} else {
		result = h.engine.EvaluateFrequency(r.Context(), frequency, parseNow(r))
	}
	respond.WriteJSONObject(w, http.StatusOK, result)
}
