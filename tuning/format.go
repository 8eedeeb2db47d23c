package tuning

import (
	"fmt"
	"strings"

	"github.com/j3m2b/Baseball-Scientist/models"
)

// FormatForPrompt renders the configuration as context text. Numerics use two decimals.
func FormatForPrompt(c models.AdaptiveConfig) string {
	var b strings.Builder
	b.WriteString("\n\n### Adaptive Analysis Parameters:\n")
	b.WriteString("**Current Configuration** (auto-tuned based on your performance):\n")
	fmt.Fprintf(&b, "- **Boldness Level:** %.2f/100 (%s)\n", c.Boldness, boldnessBand(c.Boldness))
	fmt.Fprintf(&b, "- **Surprise Thresholds:** Low=%.2f, High=%.2f (Use these to calibrate your surprise ratings)\n", c.SurpriseLow, c.SurpriseHigh)

	sign := ""
	if c.ConfidenceAdjustment > 0 {
		sign = "+"
	}
	fmt.Fprintf(&b, "- **Confidence Adjustment:** %s%.2f ", sign, c.ConfidenceAdjustment)
	switch {
	case c.ConfidenceAdjustment > 0.05:
		b.WriteString("(Increase your probability estimates slightly)\n")
	case c.ConfidenceAdjustment < -0.05:
		b.WriteString("(Decrease your probability estimates slightly)\n")
	default:
		b.WriteString("(No adjustment needed)\n")
	}
	fmt.Fprintf(&b, "- **Target Claims:** %d claims per cycle\n", c.TargetClaims)
	fmt.Fprintf(&b, "\n**Rationale:** %s\n", c.Rationale)
	b.WriteString("\n**Apply these parameters** to your analysis this cycle. Adjust your approach accordingly.\n")
	return b.String()
}

func boldnessBand(boldness float64) string {
	switch {
	case boldness >= 70:
		return "High - be very bold and contrarian"
	case boldness >= 55:
		return "Moderate-High - be reasonably bold"
	case boldness >= 45:
		return "Moderate - balanced approach"
	case boldness >= 30:
		return "Low - be more conservative"
	default:
		return "Very Low - be very conservative and careful"
	}
}
