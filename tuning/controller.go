// Package tuning derives the next cycle's generation parameters from accuracy metrics.
package tuning

import (
	"fmt"
	"math"
	"strings"

	"github.com/j3m2b/Baseball-Scientist/accuracy"
	"github.com/j3m2b/Baseball-Scientist/models"
)

const (
	BaselineBoldness     = 50.0
	BaselineSurpriseLow  = models.DefaultSurpriseLow
	BaselineSurpriseHigh = models.DefaultSurpriseHigh
	BaselineAdjustment   = 0.0
	BaselineTargetClaims = 6

	minEvaluated       = 5
	minForClaimTarget  = 10
	minForRecentNudge  = 15
	insufficientReason = "Insufficient data for adaptive tuning - using baseline configuration. Need at least 5 evaluated outcomes."
)

// Baseline is the configuration used until enough outcomes have been evaluated.
func Baseline() models.AdaptiveConfig {
	return models.AdaptiveConfig{
		Boldness:             BaselineBoldness,
		SurpriseLow:          BaselineSurpriseLow,
		SurpriseHigh:         BaselineSurpriseHigh,
		ConfidenceAdjustment: BaselineAdjustment,
		TargetClaims:         BaselineTargetClaims,
		Rationale:            insufficientReason,
		IsActive:             true,
	}
}

// ShouldRetune reports whether the metrics carry enough evaluated outcomes to
// justify replacing the stored configuration.
func ShouldRetune(m accuracy.Metrics) bool {
	return m.Evaluated >= minEvaluated || m.EstimatesEvaluated >= minEvaluated
}

// Derive applies the tuning rules in order. Each rule may refine values set
// by an earlier one. The result depends only on m.
func Derive(m accuracy.Metrics) models.AdaptiveConfig {
	if !ShouldRetune(m) {
		return Baseline()
	}

	boldness := BaselineBoldness
	low, high := BaselineSurpriseLow, BaselineSurpriseHigh
	adjustment := BaselineAdjustment
	target := BaselineTargetClaims
	var reasons []string

	if m.OverallAccuracy != nil && m.Evaluated >= minEvaluated {
		acc := *m.OverallAccuracy
		switch {
		case acc >= 75:
			boldness = 75
			reasons = append(reasons, fmt.Sprintf("Excellent accuracy (%.1f%%) - increasing boldness to 75", acc))
		case acc >= 65:
			boldness = 65
			reasons = append(reasons, fmt.Sprintf("Good accuracy (%.1f%%) - increasing boldness to 65", acc))
		case acc >= 50:
			boldness = 55
			reasons = append(reasons, fmt.Sprintf("Acceptable accuracy (%.1f%%) - maintaining moderate boldness at 55", acc))
		case acc >= 40:
			boldness = 40
			reasons = append(reasons, fmt.Sprintf("Below-average accuracy (%.1f%%) - reducing boldness to 40", acc))
		default:
			boldness = 30
			reasons = append(reasons, fmt.Sprintf("Poor accuracy (%.1f%%) - reducing boldness to 30", acc))
		}
	}

	switch m.Trend {
	case models.TrendImproving:
		boldness = math.Min(100, boldness+5)
		reasons = append(reasons, "Performance is improving - boosting boldness by +5")
	case models.TrendDeclining:
		boldness = math.Max(0, boldness-10)
		reasons = append(reasons, "Performance is declining - reducing boldness by -10")
	}

	if m.SurpriseCalibration != nil && m.HighSurpriseTotal >= minEvaluated {
		cal := *m.SurpriseCalibration
		switch {
		case cal > 70:
			low, high = 2.5, 6.0
			reasons = append(reasons, fmt.Sprintf("High surprise calibration (%.1f%%) - lowering surprise thresholds (easier to mark as surprising)", cal))
		case cal < 40:
			low, high = 4.0, 8.0
			reasons = append(reasons, fmt.Sprintf("Low surprise calibration (%.1f%%) - raising surprise thresholds (harder to mark as surprising)", cal))
		default:
			reasons = append(reasons, fmt.Sprintf("Surprise calibration is well-balanced (%.1f%%) - maintaining current thresholds", cal))
		}
	}

	if m.CalibrationScore != nil && m.EstimatesEvaluated >= minEvaluated {
		score := *m.CalibrationScore
		switch {
		case score < 0.10:
			adjustment = 0.10
			reasons = append(reasons, fmt.Sprintf("Excellent calibration score (%.4f) - increasing confidence by +0.10", score))
		case score > 0.20:
			adjustment = -0.15
			reasons = append(reasons, fmt.Sprintf("High calibration score (%.4f) - decreasing confidence by -0.15", score))
		default:
			adjustment = 0
			reasons = append(reasons, fmt.Sprintf("Moderate calibration score (%.4f) - no confidence adjustment needed", score))
		}
	}

	if m.OverallAccuracy != nil && m.Evaluated >= minForClaimTarget {
		switch acc := *m.OverallAccuracy; {
		case acc >= 70:
			target = 8
			reasons = append(reasons, "High accuracy allows for more claims (target: 8)")
		case acc < 50:
			target = 4
			reasons = append(reasons, "Low accuracy suggests focusing on fewer claims (target: 4)")
		}
	}

	if m.RecentAccuracy != nil && m.OverallAccuracy != nil && m.Evaluated >= minForRecentNudge {
		switch diff := *m.RecentAccuracy - *m.OverallAccuracy; {
		case diff < -10:
			boldness = math.Max(0, boldness-5)
			reasons = append(reasons, "Recent performance significantly worse than historical - applying additional -5 boldness penalty")
		case diff > 10:
			boldness = math.Min(100, boldness+5)
			reasons = append(reasons, "Recent performance significantly better than historical - applying additional +5 boldness bonus")
		}
	}

	rationale := "No tuning rule triggered - keeping baseline parameters."
	if len(reasons) > 0 {
		rationale = strings.Join(reasons, ". ") + "."
	}

	var basedOn *float64
	if m.OverallAccuracy != nil {
		v := *m.OverallAccuracy
		basedOn = &v
	}

	return models.AdaptiveConfig{
		Boldness:             round2(boldness),
		SurpriseLow:          round2(low),
		SurpriseHigh:         round2(high),
		ConfidenceAdjustment: round2(adjustment),
		TargetClaims:         target,
		Rationale:            rationale,
		BasedOnAccuracy:      basedOn,
		BasedOnTrend:         m.Trend,
		BasedOnEvaluated:     m.Evaluated,
		IsActive:             true,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
