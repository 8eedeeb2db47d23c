package patterns

import (
	"fmt"
	"sort"
	"strings"

	"github.com/j3m2b/Baseball-Scientist/models"
)

const maxPromptPatterns = 10

// FormatForPrompt lists the most confident patterns as context text.
func FormatForPrompt(found []models.DetectedPattern) string {
	if len(found) == 0 {
		return ""
	}
	sorted := make([]models.DetectedPattern, len(found))
	copy(sorted, found)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })
	if len(sorted) > maxPromptPatterns {
		sorted = sorted[:maxPromptPatterns]
	}

	var b strings.Builder
	b.WriteString("### Detected Patterns in Your Past Predictions:\n\n")
	b.WriteString("Based on analysis of your previous research cycles, these patterns were identified:\n\n")
	for i, p := range sorted {
		fmt.Fprintf(&b, "%d. **%s**\n", i+1, p.Description)
		fmt.Fprintf(&b, "   - Pattern: %s\n", p.Kind)
		fmt.Fprintf(&b, "   - Confidence: %.0f%%\n", p.Confidence)
		if p.Kind == models.PatternOverestimation || p.Kind == models.PatternUnderestimation {
			fmt.Fprintf(&b, "   - Consider adjusting your %s projections\n", p.Entity)
		}
		b.WriteString("\n")
	}
	b.WriteString("**Use these insights to calibrate your current cycle's predictions.**\n")
	return b.String()
}
