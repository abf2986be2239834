// Package engine owns the simulation state and the timer loops that drive it.
//
// Architecture:
//   All mutable state — event history, alert history, per-user scores, rolling
//   windows, hourly buckets, the live indicator — lives behind one mutex, and
//   every mutation goes through a single apply path. The pieces are
//   cross-referenced (a score update depends on the event, an alert depends on
//   the event, the windows depend on the event), so serializing them keeps any
//   Snapshot mutually consistent.
//
// Lifecycle:
//   New builds and seeds the engine, Start launches the generation loop and
//   the live-indicator ticker, Stop cancels both and blocks until they exit.
//   No callback fires and no state mutates after Stop returns.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"vigil/sim-api/internal/domain"
	"vigil/sim-api/internal/metrics"
	"vigil/sim-api/internal/risk"
	"vigil/sim-api/internal/sample"
	"vigil/sim-api/internal/synth"
)

// Sentinel errors returned by engine commands.
var (
	ErrUnknownUser    = errors.New("unknown user")
	ErrActionInFlight = errors.New("another action is already in flight for this device")
	ErrStopped        = errors.New("engine is stopped")
)

// Tuning holds the runtime-adjustable simulation knobs. The engine re-reads
// them on every tick, so a Retune takes effect without a restart.
type Tuning struct {
	TickMin    time.Duration // lower bound of the generation period
	TickMax    time.Duration // upper bound, re-sampled every tick
	RiskChance float64       // probability a timer tick forces a risky event
	SendDelay  time.Duration // artificial latency for sendTransaction
	LoginDelay time.Duration // artificial latency for login
}

// DefaultTuning matches the original demo cadence.
func DefaultTuning() Tuning {
	return Tuning{
		TickMin:    2 * time.Second,
		TickMax:    5 * time.Second,
		RiskChance: 0.35,
		SendDelay:  1800 * time.Millisecond,
		LoginDelay: 1500 * time.Millisecond,
	}
}

// Validate checks a Tuning for internally consistent values.
func (t Tuning) Validate() error {
	if t.TickMin <= 0 || t.TickMax < t.TickMin {
		return fmt.Errorf("tick range [%v, %v] is invalid", t.TickMin, t.TickMax)
	}
	if t.RiskChance < 0 || t.RiskChance > 1 {
		return fmt.Errorf("risk chance %v must be within [0, 1]", t.RiskChance)
	}
	if t.SendDelay < 0 || t.LoginDelay < 0 {
		return errors.New("action delays must not be negative")
	}
	return nil
}

// Config wires an Engine.
type Config struct {
	Users      []domain.User
	Categories []string
	Reasons    []string
	Tuning     Tuning
	Sampler    *sample.Sampler // nil → time-seeded
}

// ─── Update feed ──────────────────────────────────────────────────────────────

// Update kinds pushed to subscribers.
const (
	UpdateEvent = "event"
	UpdateAlert = "alert"
	UpdateLive  = "live"
)

// Update is one state-change notification for live-feed consumers.
type Update struct {
	Type         string        `json:"type"`
	Event        *domain.Event `json:"event,omitempty"`
	Alert        *domain.Alert `json:"alert,omitempty"`
	Live         bool          `json:"live,omitempty"`
	UnreadAlerts int           `json:"unread_alerts"`
}

// ─── Engine ───────────────────────────────────────────────────────────────────

// Engine is the timer-driven simulation core.
type Engine struct {
	mu      sync.Mutex
	sampler *sample.Sampler
	synth   *synth.Synthesizer
	users   []domain.User
	byID    map[string]domain.User
	tuning  Tuning

	events       []domain.Event
	alerts       []domain.Alert
	unread       int
	scores       map[string]int
	riskWindow   []int
	amountWindow []int
	hourly       []domain.HourlyBucket
	live         bool

	inFlight map[string]bool // per-device single-action guard, keyed by user ID
	subs     map[chan Update]struct{}

	done     chan struct{}
	wg       sync.WaitGroup
	started  bool
	closed   bool
	stopOnce sync.Once
}

// New builds an Engine and seeds its initial state: per-user scores in
// [20, 95], full rolling windows, and pre-populated hourly buckets, so the
// dashboard has something to show before the first tick lands.
func New(cfg Config) (*Engine, error) {
	if len(cfg.Users) == 0 {
		return nil, errors.New("engine: user roster is empty")
	}
	if len(cfg.Categories) == 0 || len(cfg.Reasons) == 0 {
		return nil, errors.New("engine: categories and reasons must be non-empty")
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	s := cfg.Sampler
	if s == nil {
		s = sample.New()
	}

	e := &Engine{
		sampler:  s,
		synth:    synth.New(s, cfg.Categories, cfg.Reasons),
		users:    append([]domain.User(nil), cfg.Users...),
		byID:     make(map[string]domain.User, len(cfg.Users)),
		tuning:   cfg.Tuning,
		scores:   make(map[string]int, len(cfg.Users)),
		inFlight: make(map[string]bool),
		subs:     make(map[chan Update]struct{}),
		done:     make(chan struct{}),
		live:     true,
	}

	for _, u := range cfg.Users {
		if _, dup := e.byID[u.ID]; dup {
			return nil, fmt.Errorf("engine: duplicate user id %q", u.ID)
		}
		e.byID[u.ID] = u
		e.scores[u.ID] = s.Between(20, 95)
	}

	e.riskWindow = make([]int, domain.WindowSize)
	e.amountWindow = make([]int, domain.WindowSize)
	for i := range e.riskWindow {
		e.riskWindow[i] = s.Between(20, 80)
		e.amountWindow[i] = s.Between(1000, 50000)
	}

	e.hourly = make([]domain.HourlyBucket, domain.HourlyBuckets)
	for i := range e.hourly {
		e.hourly[i] = domain.HourlyBucket{
			Label: fmt.Sprintf("%d:00", i*2),
			Value: s.Between(2, 20),
		}
	}

	return e, nil
}

// Start launches the generation loop and the live-indicator ticker.
// Calling Start twice is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.closed {
		return
	}
	e.started = true

	e.wg.Add(2)
	go e.generateLoop()
	go e.blinkLoop()
}

// Stop cancels both timers and waits for them to exit. It is idempotent and
// safe to call on an engine that was never started. After Stop returns, no
// further state mutation occurs and pending actions fail with ErrStopped.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		close(e.done)
	})
	e.wg.Wait()

	// Close subscriber channels so live-feed consumers unblock.
	e.mu.Lock()
	for ch := range e.subs {
		delete(e.subs, ch)
		close(ch)
	}
	e.mu.Unlock()
}

// generateLoop drives periodic synthesis. The delay is re-sampled uniformly
// from [TickMin, TickMax] on every iteration rather than fixed once, so the
// cadence stays irregular over long runs.
func (e *Engine) generateLoop() {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		delay := e.sampler.Duration(e.tuning.TickMin, e.tuning.TickMax)
		e.mu.Unlock()

		select {
		case <-e.done:
			return
		case <-time.After(delay):
		}

		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return
		}
		user := sample.From(e.sampler, e.users)
		force := e.sampler.Chance(e.tuning.RiskChance)
		evt := e.synth.Event(user, force)
		updates := e.applyLocked(evt, metrics.TriggerTimer)
		e.mu.Unlock()

		e.publish(updates)
	}
}

// blinkLoop toggles the cosmetic live indicator once per second. It touches
// nothing but the boolean.
func (e *Engine) blinkLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
		}

		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return
		}
		e.live = !e.live
		u := Update{Type: UpdateLive, Live: e.live, UnreadAlerts: e.unread}
		e.mu.Unlock()

		e.publish([]Update{u})
	}
}

// ─── Commands ─────────────────────────────────────────────────────────────────

// Generate synthesizes one event immediately, outside the timer cadence.
// An empty userID picks a roster user at random.
func (e *Engine) Generate(userID string, forceRisky bool) (domain.Event, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return domain.Event{}, ErrStopped
	}

	var user domain.User
	if userID == "" {
		user = sample.From(e.sampler, e.users)
	} else {
		var ok bool
		if user, ok = e.byID[userID]; !ok {
			e.mu.Unlock()
			return domain.Event{}, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
		}
	}

	evt := e.synth.Event(user, forceRisky)
	updates := e.applyLocked(evt, metrics.TriggerManual)
	e.mu.Unlock()

	e.publish(updates)
	return evt, nil
}

// MarkAlertsRead marks the whole alert history read and resets the unread
// counter. Alerts are never toggled individually.
func (e *Engine) MarkAlertsRead() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.alerts {
		e.alerts[i].Read = true
	}
	e.unread = 0
	metrics.UnreadAlerts.Set(0)
}

// Retune swaps the runtime tuning knobs, e.g. on config hot-reload.
func (e *Engine) Retune(t Tuning) error {
	if err := t.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tuning = t
	return nil
}

// Users returns the fixed roster.
func (e *Engine) Users() []domain.User {
	return append([]domain.User(nil), e.users...)
}

// Snapshot returns a deep copy of the current state. The copy is safe to read
// and serialize without further locking.
func (e *Engine) Snapshot() domain.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := domain.Snapshot{
		Events:       append([]domain.Event(nil), e.events...),
		Alerts:       append([]domain.Alert(nil), e.alerts...),
		UnreadAlerts: e.unread,
		UserScores:   make(map[string]int, len(e.scores)),
		RiskWindow:   append([]int(nil), e.riskWindow...),
		AmountWindow: append([]int(nil), e.amountWindow...),
		Hourly:       append([]domain.HourlyBucket(nil), e.hourly...),
		Live:         e.live,
		GeneratedAt:  time.Now().UTC(),
	}
	for id, score := range e.scores {
		snap.UserScores[id] = score
	}
	return snap
}

// ─── State mutation ───────────────────────────────────────────────────────────

// applyLocked folds one synthesized event into every piece of state. It is the
// single mutation path for event-shaped updates; callers hold e.mu and publish
// the returned updates after unlocking.
func (e *Engine) applyLocked(evt domain.Event, trigger string) []Update {
	// Event history, newest first, capped.
	e.events = prependEvent(e.events, evt, domain.MaxEvents)

	// Per-user score walk: risky events push the score up by [5, 15], clean
	// events pull it down by [1, 5], clamped to [ScoreFloor, ScoreCeil].
	score, ok := e.scores[evt.UserID]
	if !ok {
		score = 50
	}
	if evt.IsRisky {
		score += e.sampler.Between(5, 15)
		if score > domain.ScoreCeil {
			score = domain.ScoreCeil
		}
	} else {
		score -= e.sampler.Between(1, 5)
		if score < domain.ScoreFloor {
			score = domain.ScoreFloor
		}
	}
	e.scores[evt.UserID] = score

	// Rolling trend windows, oldest dropped at capacity.
	e.riskWindow = pushWindow(e.riskWindow, evt.RiskScore, domain.WindowSize)
	e.amountWindow = pushWindow(e.amountWindow, evt.Amount, domain.WindowSize)

	// One random hourly bucket absorbs the event.
	idx := e.sampler.Between(0, len(e.hourly)-1)
	e.hourly[idx].Value++

	metrics.EventsGenerated.WithLabelValues(trigger).Inc()

	updates := []Update{{Type: UpdateEvent, Event: &evt, UnreadAlerts: e.unread}}

	if evt.IsRisky {
		alert := domain.Alert{
			Event:   evt,
			AlertID: synth.NewAlertID(),
			Read:    false,
		}
		e.alerts = prependAlert(e.alerts, alert, domain.MaxAlerts)
		e.unread++
		metrics.AlertsRaised.WithLabelValues(risk.Label(evt.RiskScore)).Inc()
		metrics.UnreadAlerts.Set(float64(e.unread))

		updates[0].UnreadAlerts = e.unread
		updates = append(updates, Update{Type: UpdateAlert, Alert: &alert, UnreadAlerts: e.unread})
	}

	return updates
}

// ─── Subscriptions ────────────────────────────────────────────────────────────

// Subscribe registers a live-feed channel. The channel is buffered; slow
// consumers have updates dropped rather than stalling the engine.
func (e *Engine) Subscribe() chan Update {
	ch := make(chan Update, 32)
	e.mu.Lock()
	if e.closed {
		close(ch)
	} else {
		e.subs[ch] = struct{}{}
	}
	e.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a live-feed channel.
func (e *Engine) Unsubscribe(ch chan Update) {
	e.mu.Lock()
	if _, ok := e.subs[ch]; ok {
		delete(e.subs, ch)
		close(ch)
	}
	e.mu.Unlock()
}

// publish fans updates out to all subscribers without blocking.
func (e *Engine) publish(updates []Update) {
	if len(updates) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.subs {
		for _, u := range updates {
			select {
			case ch <- u:
			default: // drop for laggards
			}
		}
	}
}

// ─── Slice helpers ────────────────────────────────────────────────────────────

func prependEvent(s []domain.Event, evt domain.Event, limit int) []domain.Event {
	s = append([]domain.Event{evt}, s...)
	if len(s) > limit {
		s = s[:limit]
	}
	return s
}

func prependAlert(s []domain.Alert, a domain.Alert, limit int) []domain.Alert {
	s = append([]domain.Alert{a}, s...)
	if len(s) > limit {
		s = s[:limit]
	}
	return s
}

func pushWindow(s []int, v, limit int) []int {
	s = append(s, v)
	if len(s) > limit {
		s = s[len(s)-limit:]
	}
	return s
}
