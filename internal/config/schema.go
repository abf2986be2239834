package config

import (
	"errors"
	"fmt"
	"time"

	"vigil/sim-api/internal/domain"
	"vigil/sim-api/internal/engine"
)

// Config is the top-level YAML structure. The roster, reasons, and categories
// are fixed for the process lifetime; only the tuning block participates in
// hot-reload.
type Config struct {
	Users       []domain.User `yaml:"users"`
	RiskReasons []string      `yaml:"risk_reasons"`
	Categories  []string      `yaml:"categories"`
	Tuning      TuningConf    `yaml:"tuning"`
}

// TuningConf holds the runtime-adjustable simulation knobs in YAML form.
// RiskChance is a pointer so an explicit 0 survives defaulting.
type TuningConf struct {
	TickMinMs    int      `yaml:"tick_min_ms"`
	TickMaxMs    int      `yaml:"tick_max_ms"`
	RiskChance   *float64 `yaml:"risk_chance"`
	SendDelayMs  int      `yaml:"send_delay_ms"`
	LoginDelayMs int      `yaml:"login_delay_ms"`
}

// applyDefaults fills missing tuning values with the original demo cadence.
func (c *Config) applyDefaults() {
	def := engine.DefaultTuning()
	if c.Tuning.TickMinMs == 0 {
		c.Tuning.TickMinMs = int(def.TickMin / time.Millisecond)
	}
	if c.Tuning.TickMaxMs == 0 {
		c.Tuning.TickMaxMs = int(def.TickMax / time.Millisecond)
	}
	if c.Tuning.RiskChance == nil {
		rc := def.RiskChance
		c.Tuning.RiskChance = &rc
	}
	if c.Tuning.SendDelayMs == 0 {
		c.Tuning.SendDelayMs = int(def.SendDelay / time.Millisecond)
	}
	if c.Tuning.LoginDelayMs == 0 {
		c.Tuning.LoginDelayMs = int(def.LoginDelay / time.Millisecond)
	}
}

// EngineTuning converts the YAML tuning block into engine units.
func (c *Config) EngineTuning() engine.Tuning {
	return engine.Tuning{
		TickMin:    time.Duration(c.Tuning.TickMinMs) * time.Millisecond,
		TickMax:    time.Duration(c.Tuning.TickMaxMs) * time.Millisecond,
		RiskChance: *c.Tuning.RiskChance,
		SendDelay:  time.Duration(c.Tuning.SendDelayMs) * time.Millisecond,
		LoginDelay: time.Duration(c.Tuning.LoginDelayMs) * time.Millisecond,
	}
}

// Validate checks the loaded configuration for the invariants the engine
// relies on.
func Validate(c *Config) error {
	if len(c.Users) == 0 {
		return errors.New("config: at least one user is required")
	}
	seen := make(map[string]bool, len(c.Users))
	for _, u := range c.Users {
		if u.ID == "" || u.Name == "" {
			return fmt.Errorf("config: user %+v needs both id and name", u)
		}
		if seen[u.ID] {
			return fmt.Errorf("config: duplicate user id %q", u.ID)
		}
		seen[u.ID] = true
	}
	if len(c.RiskReasons) == 0 {
		return errors.New("config: risk_reasons must not be empty")
	}
	if len(c.Categories) == 0 {
		return errors.New("config: categories must not be empty")
	}
	return c.EngineTuning().Validate()
}
