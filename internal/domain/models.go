// Package domain contains all core types used across the application.
// Keeping the simulation types in one place makes the risk invariants easy to reason about.
package domain

import "time"

// ─── Constants ───────────────────────────────────────────────────────────────

// CategoryLogin is the event category used for authentication events.
// The five transaction categories come from configuration; Login is the only
// category the engine assigns itself (action handlers force it on login events).
const CategoryLogin = "Login"

// Event status labels. Status mirrors riskiness: a risky event is always
// flagged, a non-risky event is always clear.
const (
	StatusFlagged = "flagged"
	StatusClear   = "clear"
)

// Risk band labels that correspond to score bands.
const (
	BandLow      = "LOW"      // 0-34
	BandMedium   = "MEDIUM"   // 35-59
	BandHigh     = "HIGH"     // 60-79
	BandCritical = "CRITICAL" // 80-99
)

// ─── Scoring thresholds ───────────────────────────────────────────────────────

// Band thresholds partition [0,99] into the four risk bands.
const (
	ThresholdMedium   = 35
	ThresholdHigh     = 60
	ThresholdCritical = 80
)

// RiskyThreshold is the score at or above which an event is considered risky
// and promoted to an alert. Note it sits between the HIGH band floor (60) and
// the CRITICAL band floor (80): a score of 60-64 is in the HIGH band but does
// not flag the event.
const RiskyThreshold = 65

// ─── Capacity limits ──────────────────────────────────────────────────────────

const (
	MaxEvents     = 100 // event history, newest first
	MaxAlerts     = 50  // alert history, newest first
	WindowSize    = 20  // rolling trend windows, FIFO
	HourlyBuckets = 12  // 2-hour activity buckets
)

// Per-user score clamp. Scores random-walk inside this range and never escape it.
const (
	ScoreFloor = 5
	ScoreCeil  = 99
)

// ─── Core domain types ────────────────────────────────────────────────────────

// User is a static monitored identity. The roster is fixed configuration and
// immutable for the process lifetime.
type User struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Email    string `json:"email" yaml:"email"`
	Avatar   string `json:"avatar" yaml:"avatar"` // display initials
	Device   string `json:"device" yaml:"device"`
	Location string `json:"location" yaml:"location"`
}

// Event is one synthetic activity record (transaction or login).
//
// Invariant: IsRisky ⇔ Reason != "" ⇔ Status == StatusFlagged.
type Event struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	UserAvatar string    `json:"user_avatar"`
	Category   string    `json:"category"`
	Amount     int       `json:"amount"` // whole dollars, 0 for logins
	RiskScore  int       `json:"risk_score"`
	IsRisky    bool      `json:"is_risky"`
	Reason     string    `json:"reason,omitempty"` // present iff risky
	Device     string    `json:"device"`
	Location   string    `json:"location"`
	Timestamp  time.Time `json:"timestamp"`
	Status     string    `json:"status"` // flagged | clear
}

// Alert is a risky Event tracked separately with read state. Alerts are only
// marked read in bulk (unread counter reset), never toggled individually.
type Alert struct {
	Event
	AlertID string `json:"alert_id"`
	Read    bool   `json:"read"`
}

// HourlyBucket is one time-labeled activity counter for the bar chart.
type HourlyBucket struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// ─── Snapshot ─────────────────────────────────────────────────────────────────

// Snapshot is a deep-copied, read-only view of the full engine state at one
// observation point. All cross-referenced pieces (events, alerts, scores,
// windows) are mutually consistent within a single snapshot.
type Snapshot struct {
	Events       []Event        `json:"events"`        // newest first, ≤ MaxEvents
	Alerts       []Alert        `json:"alerts"`        // newest first, ≤ MaxAlerts
	UnreadAlerts int            `json:"unread_alerts"`
	UserScores   map[string]int `json:"user_scores"`
	RiskWindow   []int          `json:"risk_window"`   // oldest first, ≤ WindowSize
	AmountWindow []int          `json:"amount_window"` // oldest first, ≤ WindowSize
	Hourly       []HourlyBucket `json:"hourly"`
	Live         bool           `json:"live"`
	GeneratedAt  time.Time      `json:"generated_at"`
}
