// Package chart turns numeric sequences into SVG geometry. Every function is
// a stateless transform; the exact coordinates matter because downstream
// renderers draw the returned paths verbatim and visual-regression tests pin
// them down.
package chart

import (
	"fmt"
	"math"
	"strings"

	"vigil/sim-api/internal/risk"
)

// ─── Sparkline ────────────────────────────────────────────────────────────────

// Sparkline is a connected polyline with a filled area under the curve and a
// distinct marker on the final point.
type Sparkline struct {
	Line string  `json:"line"` // "M x,y L x,y …"
	Fill string  `json:"fill"` // closed area path
	EndX float64 `json:"end_x"`
	EndY float64 `json:"end_y"`
}

// SparklinePath normalizes data into a width×height box using the sequence's
// own min/max. Fewer than two values render nothing (ok=false). A constant
// sequence (min == max) draws a flat line at mid-height rather than dividing
// by zero.
func SparklinePath(data []int, width, height float64) (Sparkline, bool) {
	if len(data) < 2 {
		return Sparkline{}, false
	}

	min, max := data[0], data[0]
	for _, v := range data[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	pts := make([]string, len(data))
	var lastX, lastY float64
	for i, v := range data {
		x := float64(i) / float64(len(data)-1) * width
		y := height / 2
		if max > min {
			y = height - float64(v-min)/float64(max-min)*height
		}
		pts[i] = fmt.Sprintf("%.2f,%.2f", x, y)
		lastX, lastY = x, y
	}

	line := "M " + strings.Join(pts, " L ")
	fill := fmt.Sprintf("%s L %.2f,%.2f L 0.00,%.2f Z", line, width, height, height)

	return Sparkline{Line: line, Fill: fill, EndX: lastX, EndY: lastY}, true
}

// ─── Donut ────────────────────────────────────────────────────────────────────

// Segment is one donut slice: a percentage of the ring and its color. The
// primary segment's percentage becomes the centered label.
type Segment struct {
	Value   float64 `json:"value"` // percentage, 0-100
	Color   string  `json:"color"`
	Primary bool    `json:"primary,omitempty"`
}

// DonutArc is the stroke-dasharray rendering of one segment on the ring.
type DonutArc struct {
	Color      string  `json:"color"`
	Dash       float64 `json:"dash"`   // arc length for this segment
	Gap        float64 `json:"gap"`    // full circumference
	DashOffset float64 `json:"offset"` // negative cumulative offset
}

// Donut is the complete ring geometry plus the center label.
type Donut struct {
	CX            float64    `json:"cx"`
	CY            float64    `json:"cy"`
	Radius        float64    `json:"radius"`
	Stroke        float64    `json:"stroke"`
	Circumference float64    `json:"circumference"`
	Arcs          []DonutArc `json:"arcs"`
	Label         string     `json:"label"` // primary segment's percentage, e.g. "25%"
}

// DonutArcs stacks the segments around a fixed-radius ring, tracking the
// cumulative offset so each arc starts where the previous one ended.
func DonutArcs(segments []Segment, size float64) Donut {
	r := size * 0.38
	circ := 2 * math.Pi * r
	d := Donut{
		CX:            size / 2,
		CY:            size / 2,
		Radius:        r,
		Stroke:        size * 0.15,
		Circumference: circ,
		Arcs:          make([]DonutArc, 0, len(segments)),
	}

	offset := 0.0
	for _, seg := range segments {
		d.Arcs = append(d.Arcs, DonutArc{
			Color:      seg.Color,
			Dash:       seg.Value / 100 * circ,
			Gap:        circ,
			DashOffset: -offset * circ / 100,
		})
		offset += seg.Value
	}

	for i, seg := range segments {
		if seg.Primary || (d.Label == "" && i == 0) {
			d.Label = fmt.Sprintf("%d%%", int(math.Round(seg.Value)))
		}
	}
	return d
}

// ─── Gauge ────────────────────────────────────────────────────────────────────

// Gauge maps a 0-100 score onto a 180° semicircular dial with a needle.
type Gauge struct {
	Track    string  `json:"track"`     // full semicircle arc path
	FillDash float64 `json:"fill_dash"` // arc length proportional to score
	FillGap  float64 `json:"fill_gap"`  // full semicircle arc length
	NeedleX  float64 `json:"needle_x"`
	NeedleY  float64 `json:"needle_y"`
	PivotX   float64 `json:"pivot_x"`
	PivotY   float64 `json:"pivot_y"`
	Color    string  `json:"color"` // band color for the score
}

// GaugeArc computes the dial geometry for a score. The needle sits 8 units
// inside the arc radius; the fill follows the score proportionally and the
// color follows the band thresholds.
func GaugeArc(score int, size float64) Gauge {
	r := size * 0.4
	cx, cy := size/2, size*0.6
	angleDeg := float64(score)/100*180 - 90
	angleRad := angleDeg * math.Pi / 180

	return Gauge{
		Track: fmt.Sprintf("M %.2f %.2f A %.2f %.2f 0 0 1 %.2f %.2f",
			cx-r, cy, r, r, cx+r, cy),
		FillDash: math.Pi * r * float64(score) / 100,
		FillGap:  math.Pi * r,
		NeedleX:  cx + (r-8)*math.Cos(angleRad),
		NeedleY:  cy + (r-8)*math.Sin(angleRad),
		PivotX:   cx,
		PivotY:   cy,
		Color:    risk.Color(score),
	}
}

// ─── Bar chart ────────────────────────────────────────────────────────────────

// minBarPct keeps zero-value bars visible instead of collapsing to nothing.
const minBarPct = 2.0

// Bar is one labeled column with its height as a percentage of the tallest.
type Bar struct {
	Label     string  `json:"label"`
	Value     int     `json:"value"`
	HeightPct float64 `json:"height_pct"`
}

// Bars scales values against the maximum in the set (floor 1, so an all-zero
// set doesn't divide by zero) and applies the minimum visible height.
func Bars(labels []string, values []int) []Bar {
	max := 1
	for _, v := range values {
		if v > max {
			max = v
		}
	}

	out := make([]Bar, len(values))
	for i, v := range values {
		pct := float64(v) / float64(max) * 100
		if pct < minBarPct {
			pct = minBarPct
		}
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		out[i] = Bar{Label: label, Value: v, HeightPct: pct}
	}
	return out
}
