package accuracy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/j3m2b/Baseball-Scientist/models"
)

func ptr(v float64) *float64 { return &v }

func TestFormatForPrompt(t *testing.T) {
	m := Metrics{
		OverallAccuracy:     ptr(200.0 / 3),
		Evaluated:           6,
		Correct:             4,
		Incorrect:           2,
		CalibrationScore:    ptr(0.123456),
		EstimatesEvaluated:  3,
		SurpriseCalibration: ptr(80),
		HighSurpriseTotal:   5,
		HighSurpriseCorrect: 4,
		RecentAccuracy:      ptr(70),
		HistoricalAccuracy:  ptr(60),
		Trend:               models.TrendImproving,
	}

	got := FormatForPrompt(m)

	assert.Contains(t, got, "66.7% accurate (4 correct, 2 incorrect out of 6 evaluated)")
	assert.Contains(t, got, "**Trend:** Improving (recent: 70.0%, historical: 60.0%)")
	assert.Contains(t, got, "80.0% of high-surprise predictions came true (4/5)")
	assert.Contains(t, got, "**Probability Calibration Score:** 0.1235 (3 estimates evaluated")
}

func TestFormatForPromptEmpty(t *testing.T) {
	assert.Empty(t, FormatForPrompt(Metrics{Trend: models.TrendInsufficientData}))
}

func TestFormatForPromptOmitsUnknownTrend(t *testing.T) {
	got := FormatForPrompt(Metrics{OverallAccuracy: ptr(50), Evaluated: 2, Correct: 1, Incorrect: 1, Trend: models.TrendInsufficientData})
	assert.NotContains(t, got, "**Trend:**")
}
