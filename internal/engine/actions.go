package engine

import (
	"fmt"
	"time"

	"vigil/sim-api/internal/domain"
	"vigil/sim-api/internal/metrics"
	"vigil/sim-api/internal/risk"
)

// DefaultAmount substitutes for an unparseable user-entered amount.
const DefaultAmount = 1500

// riskyAmountFloor: entered amounts above this always force a risky event,
// regardless of the random score draw.
const riskyAmountFloor = 20000

// SendTransaction synthesizes a transaction on behalf of the simulated mobile
// device. The raw amount tolerates thousands separators and falls back to
// DefaultAmount when unparseable; amounts above 20000 force a risky event.
// The call blocks for the configured artificial latency before the event
// becomes observable, simulating a network round trip.
//
// Only one action may be in flight per device: a re-entrant call while the
// delay is pending returns ErrActionInFlight and synthesizes nothing.
func (e *Engine) SendTransaction(userID, rawAmount string, forceRisky bool) (domain.Event, error) {
	amount := risk.ParseAmount(rawAmount, DefaultAmount)
	force := forceRisky || amount > riskyAmountFloor

	return e.runAction(userID, e.sendDelay, metrics.TriggerTransaction, func(u domain.User) domain.Event {
		evt := e.synth.Event(u, force)
		evt.Amount = amount
		evt.UserName = u.Name
		evt.UserAvatar = u.Avatar
		return evt
	})
}

// Login synthesizes an authentication event: amount zero, Login category,
// shorter artificial latency. Same single-in-flight discipline as
// SendTransaction.
func (e *Engine) Login(userID string, forceRisky bool) (domain.Event, error) {
	return e.runAction(userID, e.loginDelay, metrics.TriggerLogin, func(u domain.User) domain.Event {
		evt := e.synth.Event(u, forceRisky)
		evt.Category = domain.CategoryLogin
		evt.Amount = 0
		return evt
	})
}

func (e *Engine) sendDelay() time.Duration  { return e.tuning.SendDelay }
func (e *Engine) loginDelay() time.Duration { return e.tuning.LoginDelay }

// runAction implements the shared action shape: acquire the per-device guard,
// wait out the artificial latency, then synthesize and apply under the state
// lock. The guard is released on every exit path.
func (e *Engine) runAction(userID string, delayOf func() time.Duration, trigger string, build func(domain.User) domain.Event) (domain.Event, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return domain.Event{}, ErrStopped
	}
	user, ok := e.byID[userID]
	if !ok {
		e.mu.Unlock()
		return domain.Event{}, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	if e.inFlight[userID] {
		e.mu.Unlock()
		metrics.ActionsRejected.Inc()
		return domain.Event{}, ErrActionInFlight
	}
	e.inFlight[userID] = true
	delay := delayOf()
	e.mu.Unlock()

	release := func() {
		e.mu.Lock()
		delete(e.inFlight, userID)
		e.mu.Unlock()
	}

	select {
	case <-e.done:
		release()
		return domain.Event{}, ErrStopped
	case <-time.After(delay):
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		release()
		return domain.Event{}, ErrStopped
	}
	evt := build(user)
	updates := e.applyLocked(evt, trigger)
	delete(e.inFlight, userID)
	e.mu.Unlock()

	e.publish(updates)
	return evt, nil
}
