// Package synth builds single synthetic risk events.
//
// The synthesizer holds no mutable state of its own beyond the shared Sampler:
// given the same sampler state and inputs it produces the same event (modulo
// the wall-clock timestamp and ID). It never touches engine state; the engine
// decides when to call it and applies the result.
package synth

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"vigil/sim-api/internal/domain"
	"vigil/sim-api/internal/sample"
)

// Score ranges for synthesized events. The forced range's floor (72) exceeds
// the riskiness threshold (65), so a forced event is always risky.
const (
	scoreMin       = 5
	scoreMax       = 99
	forcedScoreMin = 72
)

// Amount range for synthesized transactions, in whole dollars. Callers
// override the amount when the user entered one explicitly.
const (
	amountMin = 100
	amountMax = 49000
)

// Synthesizer builds events using fixed category and reason sets.
type Synthesizer struct {
	sampler    *sample.Sampler
	categories []string
	reasons    []string
}

// New creates a Synthesizer drawing categories and reasons from the given
// fixed sets. Both sets must be non-empty.
func New(s *sample.Sampler, categories, reasons []string) *Synthesizer {
	return &Synthesizer{sampler: s, categories: categories, reasons: reasons}
}

// Event synthesizes one event for user. With forceRisky the score is drawn
// from [72, 99]; otherwise from [5, 99]. Riskiness is derived as score ≥ 65,
// and the reason is present exactly when the event is risky.
func (sy *Synthesizer) Event(user domain.User, forceRisky bool) domain.Event {
	score := sy.sampler.Between(scoreMin, scoreMax)
	if forceRisky {
		score = sy.sampler.Between(forcedScoreMin, scoreMax)
	}
	risky := score >= domain.RiskyThreshold

	evt := domain.Event{
		ID:         NewEventID(),
		UserID:     user.ID,
		UserName:   user.Name,
		UserAvatar: user.Avatar,
		Category:   sample.From(sy.sampler, sy.categories),
		Amount:     sy.sampler.Between(amountMin, amountMax),
		RiskScore:  score,
		IsRisky:    risky,
		Device:     user.Device,
		Location:   user.Location,
		Timestamp:  time.Now().UTC(),
		Status:     domain.StatusClear,
	}
	if risky {
		evt.Reason = sample.From(sy.sampler, sy.reasons)
		evt.Status = domain.StatusFlagged
	}
	return evt
}

// NewEventID returns a process-unique event identifier. The millisecond
// timestamp keeps IDs roughly sortable; the UUID suffix makes collisions
// effectively impossible at any event rate.
func NewEventID() string {
	return fmt.Sprintf("EVT-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:4])
}

// NewAlertID returns a process-unique alert identifier.
func NewAlertID() string {
	return fmt.Sprintf("ALRT-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:4])
}
