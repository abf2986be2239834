// Package webhook handles asynchronous notifications to registered webhook
// URLs when the simulation promotes a risky event to an alert.
//
// Deliveries run in goroutines so they never block the engine or an HTTP
// response. Failed deliveries are logged but not retried (a production system
// would use a persistent queue with exponential backoff).
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"vigil/sim-api/internal/domain"
	"vigil/sim-api/internal/engine"
)

// DefaultThreshold fires a hook only for CRITICAL-band alerts unless the
// registration asked for something lower.
const DefaultThreshold = 80

// Hook is a registered callback endpoint.
type Hook struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Threshold int       `json:"threshold"` // fire when alert score >= this value
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"active"`
}

// Payload is the body sent to registered webhook URLs.
type Payload struct {
	Event       string       `json:"event"` // always "risk_alert"
	TriggeredAt time.Time    `json:"triggered_at"`
	Alert       domain.Alert `json:"alert"`
}

// Notifier owns the hook registry and delivers alert payloads. The registry
// is transient like the rest of the simulation state.
type Notifier struct {
	mu     sync.RWMutex
	hooks  map[string]*Hook
	client *http.Client
}

// New creates a Notifier with a sensible default HTTP client timeout.
func New() *Notifier {
	return &Notifier{
		hooks:  make(map[string]*Hook),
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Register adds a hook and returns it with its generated ID.
func (n *Notifier) Register(url string, threshold int) *Hook {
	h := &Hook{
		ID:        uuid.NewString(),
		URL:       url,
		Threshold: threshold,
		CreatedAt: time.Now().UTC(),
		Active:    true,
	}
	n.mu.Lock()
	n.hooks[h.ID] = h
	n.mu.Unlock()
	return h
}

// Delete removes a hook by ID. Returns false if not found.
func (n *Notifier) Delete(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, exists := n.hooks[id]
	if exists {
		delete(n.hooks, id)
	}
	return exists
}

// List returns all registered hooks.
func (n *Notifier) List() []*Hook {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Hook, 0, len(n.hooks))
	for _, h := range n.hooks {
		out = append(out, h)
	}
	return out
}

// NotifyAsync fires webhook calls in the background for the given alert,
// hitting every active hook whose threshold the alert's score meets.
func (n *Notifier) NotifyAsync(alert domain.Alert) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, h := range n.hooks {
		if h.Active && alert.RiskScore >= h.Threshold {
			go n.send(h, alert)
		}
	}
}

// Consume drains an engine update feed, forwarding alert updates to the
// registered hooks. It returns when the channel closes; run it in its own
// goroutine.
func (n *Notifier) Consume(updates <-chan engine.Update) {
	for u := range updates {
		if u.Type == engine.UpdateAlert && u.Alert != nil {
			n.NotifyAsync(*u.Alert)
		}
	}
}

// send delivers a single webhook call and logs the outcome.
func (n *Notifier) send(h *Hook, alert domain.Alert) {
	payload := Payload{
		Event:       "risk_alert",
		TriggeredAt: time.Now().UTC(),
		Alert:       alert,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("webhook: failed to marshal payload", "webhook_id", h.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		slog.Error("webhook: failed to build request", "webhook_id", h.ID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Vigil-Event", "risk_alert")

	resp, err := n.client.Do(req)
	if err != nil {
		slog.Warn("webhook: delivery failed", "webhook_id", h.ID, "url", h.URL, "error", err)
		return
	}
	defer resp.Body.Close()

	slog.Info("webhook: delivered",
		"webhook_id", h.ID,
		"url", h.URL,
		"status", resp.StatusCode,
		"alert_id", alert.AlertID,
		"risk_score", alert.RiskScore,
	)
}
