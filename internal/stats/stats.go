// Package stats computes the dashboard's derived numbers from an engine
// snapshot. Everything here is a pure function of the snapshot — derived
// values are never stored, so they can't drift out of sync with the histories
// they summarize.
package stats

import (
	"fmt"

	"vigil/sim-api/internal/chart"
	"vigil/sim-api/internal/domain"
	"vigil/sim-api/internal/risk"
)

// Event filter values accepted by Filter.
const (
	FilterAll     = "all"
	FilterFlagged = "flagged"
	FilterClear   = "clear"
)

// recentWindow is how many of the newest events feed the average risk figure.
const recentWindow = 20

// Overview holds the headline dashboard numbers.
type Overview struct {
	AvgRisk        int    `json:"avg_risk"`         // mean score of the 20 newest events
	AvgRiskBand    string `json:"avg_risk_band"`
	AvgRiskColor   string `json:"avg_risk_color"`
	FlaggedEvents  int    `json:"flagged_events"`
	TotalEvents    int    `json:"total_events"`
	TotalVolume    int    `json:"total_volume"` // whole dollars
	VolumeDisplay  string `json:"volume_display"`
	CriticalAlerts int    `json:"critical_alerts"` // alerts with score ≥ 80
	HighAlerts     int    `json:"high_alerts"`     // alerts with score in [60, 80)
	UnreadAlerts   int    `json:"unread_alerts"`
}

// Compute derives the Overview from a snapshot.
func Compute(s domain.Snapshot) Overview {
	o := Overview{
		TotalEvents:  len(s.Events),
		UnreadAlerts: s.UnreadAlerts,
	}

	n := len(s.Events)
	if n > recentWindow {
		n = recentWindow
	}
	if n > 0 {
		sum := 0
		for _, e := range s.Events[:n] {
			sum += e.RiskScore
		}
		o.AvgRisk = sum / n
	}
	band := risk.Classify(o.AvgRisk)
	o.AvgRiskBand = band.Label
	o.AvgRiskColor = band.Color

	for _, e := range s.Events {
		if e.IsRisky {
			o.FlaggedEvents++
		}
		o.TotalVolume += e.Amount
	}
	o.VolumeDisplay = risk.FormatCurrency(o.TotalVolume)

	for _, a := range s.Alerts {
		switch {
		case a.RiskScore >= domain.ThresholdCritical:
			o.CriticalAlerts++
		case a.RiskScore >= domain.ThresholdHigh:
			o.HighAlerts++
		}
	}

	return o
}

// Filter narrows the event history to all, flagged-only, or clear-only.
func Filter(events []domain.Event, filter string) ([]domain.Event, error) {
	switch filter {
	case "", FilterAll:
		return events, nil
	case FilterFlagged, FilterClear:
	default:
		return nil, fmt.Errorf("unknown event filter %q", filter)
	}

	wantRisky := filter == FilterFlagged
	out := make([]domain.Event, 0, len(events))
	for _, e := range events {
		if e.IsRisky == wantRisky {
			out = append(out, e)
		}
	}
	return out, nil
}

// DonutSegments builds the risk-distribution donut: the share of alerts that
// are CRITICAL and HIGH, with fixed filler percentages when a band is empty so
// the ring never collapses, and a fixed LOW primary segment carrying the
// center label.
func DonutSegments(s domain.Snapshot) []chart.Segment {
	o := Compute(s)
	total := len(s.Alerts)
	if total < 1 {
		total = 1
	}

	criticalPct := 15.0
	if o.CriticalAlerts > 0 {
		criticalPct = float64(o.CriticalAlerts) / float64(total) * 100
	}
	highPct := 25.0
	if o.HighAlerts > 0 {
		highPct = float64(o.HighAlerts) / float64(total) * 100
	}

	return []chart.Segment{
		{Value: criticalPct, Color: risk.ColorCritical},
		{Value: highPct, Color: risk.ColorHigh},
		{Value: 35, Color: risk.ColorMedium},
		{Value: 25, Color: risk.ColorLow, Primary: true},
	}
}
