package accuracy

import (
	"fmt"
	"strings"

	"github.com/j3m2b/Baseball-Scientist/models"
)

// FormatForPrompt renders the metrics as context text for the next cycle.
// Percentages use one decimal, calibration scores four.
func FormatForPrompt(m Metrics) string {
	if m.Evaluated == 0 && m.EstimatesEvaluated == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\n### Your Historical Accuracy:\n")

	if m.Evaluated > 0 && m.OverallAccuracy != nil {
		fmt.Fprintf(&b, "**Claim Predictions:** %.1f%% accurate (%d correct, %d incorrect out of %d evaluated)\n",
			*m.OverallAccuracy, m.Correct, m.Incorrect, m.Evaluated)

		if m.Trend != models.TrendInsufficientData {
			fmt.Fprintf(&b, "**Trend:** %s", trendLabel(m.Trend))
			if m.RecentAccuracy != nil && m.HistoricalAccuracy != nil {
				fmt.Fprintf(&b, " (recent: %.1f%%, historical: %.1f%%)", *m.RecentAccuracy, *m.HistoricalAccuracy)
			}
			b.WriteString("\n")
		}

		if m.SurpriseCalibration != nil {
			fmt.Fprintf(&b, "**Surprise Calibration:** %.1f%% of high-surprise predictions came true (%d/%d)\n",
				*m.SurpriseCalibration, m.HighSurpriseCorrect, m.HighSurpriseTotal)
		}
	}

	if m.EstimatesEvaluated > 0 && m.CalibrationScore != nil {
		fmt.Fprintf(&b, "**Probability Calibration Score:** %.4f (%d estimates evaluated, closer to 0 = better)\n",
			*m.CalibrationScore, m.EstimatesEvaluated)
	}

	b.WriteString("\n**Guidance:** Use these metrics to calibrate your confidence levels and boldness. If accuracy is declining, be more conservative. If improving, maintain your approach.\n")
	return b.String()
}

func trendLabel(t models.Trend) string {
	switch t {
	case models.TrendImproving:
		return "Improving"
	case models.TrendDeclining:
		return "Declining"
	case models.TrendStable:
		return "Stable"
	default:
		return "Insufficient data"
	}
}
