// Package loading holds the loading-percentage formula and the tier thresholds.
// Every caller that needs a tier goes through Classify; nothing else compares
// against the threshold values.
package loading

import (
	"math"

	"github.com/jgoulah/gridload/pkg/models"
)

// Threshold is the inclusive lower bound of a tier
type Threshold struct {
	Tier  models.LoadRange
	Lower float64
}

// thresholds are evaluated highest-first; the first bound the value reaches wins
var thresholds = []Threshold{
	{Tier: models.LoadCritical, Lower: 120},
	{Tier: models.LoadOverloaded, Lower: 100},
	{Tier: models.LoadWarning, Lower: 80},
	{Tier: models.LoadPreWarning, Lower: 50},
}

// Thresholds returns a copy of the ordered threshold table
func Thresholds() []Threshold {
	out := make([]Threshold, len(thresholds))
	copy(out, thresholds)
	return out
}

// Classify maps a loading percentage to its tier. A nil or NaN value is Unknown.
func Classify(pct *float64) models.LoadRange {
	if pct == nil || math.IsNaN(*pct) {
		return models.LoadUnknown
	}
	return ClassifyValue(*pct)
}

// ClassifyValue classifies a known loading percentage
func ClassifyValue(v float64) models.LoadRange {
	if math.IsNaN(v) {
		return models.LoadUnknown
	}
	for _, t := range thresholds {
		if v >= t.Lower {
			return t.Tier
		}
	}
	return models.LoadNormal
}

// Percentage computes power_kw / (size_kva * power_factor) * 100.
// The result is nil when any input is nil or the denominator is zero.
func Percentage(powerKW, sizeKVA, powerFactor *float64) *float64 {
	if powerKW == nil || sizeKVA == nil || powerFactor == nil {
		return nil
	}

	denom := *sizeKVA * *powerFactor
	if denom == 0 || math.IsNaN(denom) {
		return nil
	}

	pct := *powerKW / denom * 100
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return nil
	}
	return &pct
}
