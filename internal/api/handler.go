package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vigil/sim-api/internal/chart"
	"vigil/sim-api/internal/domain"
	"vigil/sim-api/internal/engine"
	"vigil/sim-api/internal/risk"
	"vigil/sim-api/internal/stats"
	"vigil/sim-api/internal/webhook"
)

// Handler holds the dependencies shared across all HTTP handlers.
type Handler struct {
	engine   *engine.Engine
	notifier *webhook.Notifier
}

// NewHandler creates a Handler wired to the given dependencies.
func NewHandler(e *engine.Engine, n *webhook.Notifier) *Handler {
	return &Handler{engine: e, notifier: n}
}

// commandError maps engine sentinel errors onto HTTP responses.
func commandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownUser):
		notFound(w, err.Error())
	case errors.Is(err, engine.ErrActionInFlight):
		conflict(w, err.Error())
	case errors.Is(err, engine.ErrStopped):
		unavailable(w, err.Error())
	default:
		writeJSON(w, http.StatusInternalServerError, envelope{
			Error: &apiError{Code: "INTERNAL_ERROR", Message: "an unexpected error occurred"},
		})
	}
}

// ─── GET /api/v1/snapshot ─────────────────────────────────────────────────────

// GetSnapshot returns the full engine state in one consistent view.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	ok(w, h.engine.Snapshot())
}

// ─── GET /api/v1/events ───────────────────────────────────────────────────────

// ListEvents returns the event history, optionally narrowed by
// ?filter=all|flagged|clear.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("filter")
	events, err := stats.Filter(h.engine.Snapshot().Events, filter)
	if err != nil {
		badRequest(w, "INVALID_FILTER", "filter must be one of: all, flagged, clear")
		return
	}
	ok(w, map[string]any{
		"filter": filterOrAll(filter),
		"count":  len(events),
		"events": events,
	})
}

func filterOrAll(f string) string {
	if f == "" {
		return stats.FilterAll
	}
	return f
}

// ─── GET /api/v1/users ────────────────────────────────────────────────────────

// userStatus is one roster entry enriched with its live score, band, and
// gauge geometry for the user-monitor cards.
type userStatus struct {
	domain.User
	Score int         `json:"score"`
	Band  risk.Band   `json:"band"`
	Gauge chart.Gauge `json:"gauge"`
}

// ListUsers returns the monitored roster with current risk state.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	users := h.engine.Users()

	out := make([]userStatus, len(users))
	for i, u := range users {
		score := snap.UserScores[u.ID]
		out[i] = userStatus{
			User:  u,
			Score: score,
			Band:  risk.Classify(score),
			Gauge: chart.GaugeArc(score, 80),
		}
	}
	ok(w, out)
}

// ─── GET /api/v1/stats ────────────────────────────────────────────────────────

// GetStats returns the derived dashboard numbers plus the chart geometry the
// overview renders: trend sparklines, the risk-distribution donut, and the
// hourly activity bars.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	overview := stats.Compute(snap)

	riskSpark, _ := chart.SparklinePath(snap.RiskWindow, 160, 35)
	amountSpark, _ := chart.SparklinePath(snap.AmountWindow, 160, 35)

	labels := make([]string, len(snap.Hourly))
	values := make([]int, len(snap.Hourly))
	for i, b := range snap.Hourly {
		labels[i] = b.Label
		values[i] = b.Value
	}

	ok(w, map[string]any{
		"overview":         overview,
		"risk_sparkline":   riskSpark,
		"amount_sparkline": amountSpark,
		"donut":            chart.DonutArcs(stats.DonutSegments(snap), 110),
		"hourly_bars":      chart.Bars(labels, values),
	})
}

// ─── Alerts ───────────────────────────────────────────────────────────────────

// ListAlerts returns the alert history plus the unread counter.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	ok(w, map[string]any{
		"unread": snap.UnreadAlerts,
		"count":  len(snap.Alerts),
		"alerts": snap.Alerts,
	})
}

// MarkAlertsRead clears the unread counter and bulk-marks the history read.
func (h *Handler) MarkAlertsRead(w http.ResponseWriter, r *http.Request) {
	h.engine.MarkAlertsRead()
	ok(w, map[string]int{"unread": 0})
}

// ─── Commands ─────────────────────────────────────────────────────────────────

// GenerateEvent triggers one synthetic event immediately. The body is
// optional; an empty body generates for a random user without forced risk.
func (h *Handler) GenerateEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     string `json:"user_id"`
		ForceRisky bool   `json:"force_risky"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "INVALID_JSON", "request body must be valid JSON")
		return
	}

	evt, err := h.engine.Generate(req.UserID, req.ForceRisky)
	if err != nil {
		commandError(w, err)
		return
	}
	created(w, evt)
}

// SendTransaction simulates the mobile device submitting a transfer. The
// response is only written after the engine's artificial latency elapses,
// mirroring the device's network round trip.
func (h *Handler) SendTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     string `json:"user_id"`
		Amount     string `json:"amount"` // raw user input, separators allowed
		ForceRisky bool   `json:"force_risky"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "INVALID_JSON", "request body must be valid JSON")
		return
	}
	if req.UserID == "" {
		badRequest(w, "MISSING_USER", "user_id is required")
		return
	}

	evt, err := h.engine.SendTransaction(req.UserID, req.Amount, req.ForceRisky)
	if err != nil {
		commandError(w, err)
		return
	}
	created(w, evt)
}

// Login simulates the mobile device authenticating.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     string `json:"user_id"`
		ForceRisky bool   `json:"force_risky"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "INVALID_JSON", "request body must be valid JSON")
		return
	}
	if req.UserID == "" {
		badRequest(w, "MISSING_USER", "user_id is required")
		return
	}

	evt, err := h.engine.Login(req.UserID, req.ForceRisky)
	if err != nil {
		commandError(w, err)
		return
	}
	created(w, evt)
}

// ─── Webhooks ─────────────────────────────────────────────────────────────────

// ListWebhooks returns all registered alert webhooks.
func (h *Handler) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks := h.notifier.List()
	if hooks == nil {
		hooks = []*webhook.Hook{}
	}
	ok(w, hooks)
}

// RegisterWebhook adds a new alert webhook endpoint.
func (h *Handler) RegisterWebhook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL       string `json:"url"`
		Threshold int    `json:"threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "INVALID_JSON", "request body must be valid JSON")
		return
	}
	if req.URL == "" {
		badRequest(w, "MISSING_URL", "url is required")
		return
	}
	if req.Threshold < 0 || req.Threshold > 99 {
		badRequest(w, "INVALID_THRESHOLD", "threshold must be between 0 and 99")
		return
	}
	if req.Threshold == 0 {
		req.Threshold = webhook.DefaultThreshold
	}

	created(w, h.notifier.Register(req.URL, req.Threshold))
}

// DeleteWebhook removes a webhook registration.
func (h *Handler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.notifier.Delete(id) {
		notFound(w, fmt.Sprintf("webhook '%s' not found", id))
		return
	}
	noContent(w)
}
