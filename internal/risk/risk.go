// Package risk holds the pure classification and formatting helpers shared by
// the engine, the stats derivations, and the chart geometry.
package risk

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"vigil/sim-api/internal/domain"
)

// Display colors for the four risk bands. Consistent across every chart and
// badge the API serves geometry for.
const (
	ColorLow      = "#00e5a0"
	ColorMedium   = "#f5c518"
	ColorHigh     = "#ff8c00"
	ColorCritical = "#ff3b5c"
)

// Band is one step of the LOW/MEDIUM/HIGH/CRITICAL partition.
type Band struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Classify maps a 0-99 score to its band. The thresholds form a total,
// non-overlapping partition: every score lands in exactly one band.
func Classify(score int) Band {
	switch {
	case score >= domain.ThresholdCritical:
		return Band{Label: domain.BandCritical, Color: ColorCritical}
	case score >= domain.ThresholdHigh:
		return Band{Label: domain.BandHigh, Color: ColorHigh}
	case score >= domain.ThresholdMedium:
		return Band{Label: domain.BandMedium, Color: ColorMedium}
	default:
		return Band{Label: domain.BandLow, Color: ColorLow}
	}
}

// Label returns the band label for a score.
func Label(score int) string { return Classify(score).Label }

// Color returns the band display color for a score.
func Color(score int) string { return Classify(score).Color }

// ─── Formatting ───────────────────────────────────────────────────────────────

// FormatCurrency renders a whole-dollar amount as USD with thousands
// separators, e.g. 49000 → "$49,000".
func FormatCurrency(n int) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := strconv.Itoa(n)

	var b strings.Builder
	b.WriteString(sign)
	b.WriteByte('$')
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
		if len(digits) > lead {
			b.WriteByte(',')
		}
	}
	for i := lead; i < len(digits); i += 3 {
		b.WriteString(digits[i : i+3])
		if i+3 < len(digits) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

// TimeAgo renders the age of t relative to now as seconds, minutes, or hours,
// truncating rather than rounding: 59.9s is "59s ago", 119m is "1h ago".
func TimeAgo(t, now time.Time) string {
	s := int(now.Sub(t).Seconds())
	if s < 0 {
		s = 0
	}
	if s < 60 {
		return fmt.Sprintf("%ds ago", s)
	}
	m := s / 60
	if m < 60 {
		return fmt.Sprintf("%dm ago", m)
	}
	return fmt.Sprintf("%dh ago", m/60)
}

// ParseAmount parses a user-entered amount string, tolerating thousands
// separators, a leading dollar sign, and surrounding whitespace. Unparseable
// or non-positive input silently falls back to the given default — bad input
// must never surface an error from the simulation.
func ParseAmount(raw string, fallback int) int {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
