package patterns

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j3m2b/Baseball-Scientist/models"
	"github.com/j3m2b/Baseball-Scientist/models/modeltest"
)

func find(found []models.DetectedPattern, kind models.PatternKind, entity string) (models.DetectedPattern, bool) {
	for _, p := range found {
		if p.Kind == kind && p.Entity == entity {
			return p, true
		}
	}
	return models.DetectedPattern{}, false
}

func TestDetectVolatility(t *testing.T) {
	found := Detect(modeltest.Series("Yankees", 10, 40, 12, 38, 9, 41), DefaultOptions())

	p, ok := find(found, models.PatternVolatility, "Yankees")
	require.True(t, ok, "expected volatility pattern, got %+v", found)
	assert.Equal(t, 100.0, p.Confidence)
	assert.Len(t, p.Evidence, 6)
	assert.Contains(t, p.Description, "±14.7%")
	_, ok = find(found, models.PatternConsistency, "Yankees")
	assert.False(t, ok)
}

func TestDetectConsistency(t *testing.T) {
	found := Detect(modeltest.Series("Dodgers", 20, 20.5, 19.5, 20, 20.5, 19.5), DefaultOptions())

	require.Len(t, found, 1)
	assert.Equal(t, models.PatternConsistency, found[0].Kind)
	assert.InDelta(t, 100-0.40825*30, found[0].Confidence, 0.01)
}

func TestDetectTrend(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		kind   models.PatternKind
	}{
		{"rising", []float64{10, 12, 14, 16, 18, 20}, models.PatternOverestimation},
		{"falling", []float64{20, 18, 16, 14, 12, 10}, models.PatternUnderestimation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := Detect(modeltest.Series("Cubs", tt.values...), DefaultOptions())
			require.Len(t, found, 1)
			assert.Equal(t, tt.kind, found[0].Kind)
			assert.InDelta(t, 40, found[0].Confidence, 1e-9)
		})
	}
}

func TestDetectOrdersByRecordedTime(t *testing.T) {
	h := modeltest.Series("Cubs", 10, 12, 14, 16, 18, 20)
	// Same values, but the first cycle was recorded last.
	h[len(h)-1].Cycle.CreatedAt = modeltest.Epoch.AddDate(0, 1, 0)

	found := Detect(h, DefaultOptions())
	_, rising := find(found, models.PatternOverestimation, "Cubs")
	assert.False(t, rising, "series is no longer monotone: %+v", found)
}

func TestDetectNeedsMinimumCycles(t *testing.T) {
	assert.Nil(t, Detect(modeltest.Series("Yankees", 10, 40, 12, 38), DefaultOptions()))
	assert.Nil(t, Detect(nil, DefaultOptions()))
}

func TestDetectSkipsMalformedEstimates(t *testing.T) {
	h := modeltest.Series("Dodgers", 20, 20.5, 19.5, 20, 20.5, 19.5)
	h[0].Estimates = append(h[0].Estimates, modeltest.Estimate("Broken", 400, 2))

	found := Detect(h, DefaultOptions())
	for _, p := range found {
		assert.NotEqual(t, "Broken", p.Entity)
	}
}

func TestDetectBoundsEvidence(t *testing.T) {
	values := make([]float64, 15)
	for i := range values {
		values[i] = float64(i%2) * 30
	}
	found := Detect(modeltest.Series("Giants", values...), DefaultOptions())

	p, ok := find(found, models.PatternVolatility, "Giants")
	require.True(t, ok)
	require.Len(t, p.Evidence, 10)
	assert.Equal(t, 6, p.Evidence[0].CycleNumber)
	assert.Equal(t, 15, p.Evidence[9].CycleNumber)
}

func claimCycles(text string, validated ...bool) models.History {
	recs := make([]models.CycleRecord, len(validated))
	for i, v := range validated {
		recs[i] = modeltest.Cycle(i+1, modeltest.Claim(fmt.Sprintf("%s (%d)", text, i), v, models.SurpriseMedium))
	}
	return modeltest.History(recs...)
}

func TestDetectCategoryBias(t *testing.T) {
	h := claimCycles("The rotation will carry them", true, false, false, true, false, false)

	found := Detect(h, DefaultOptions())

	p, ok := find(found, models.PatternCategoryBias, "pitching")
	require.True(t, ok, "got %+v", found)
	assert.InDelta(t, (50-100.0/3)*2, p.Confidence, 1e-9)
	assert.Equal(t, "Only 33% of pitching claims validated (2/6)", p.Description)
	require.Len(t, p.Evidence, 6)
	assert.Equal(t, 1, p.Evidence[0].CycleNumber)
	require.NotNil(t, p.Evidence[0].Validated)
	assert.True(t, *p.Evidence[0].Validated)
}

func TestDetectStrongCategory(t *testing.T) {
	h := claimCycles("A rookie will start on opening day", true, true, true, true, false, true, true, true, true, true)

	found := Detect(h, DefaultOptions())

	p, ok := find(found, models.PatternConsistency, "young_players_predictions")
	require.True(t, ok, "got %+v", found)
	assert.InDelta(t, 90, p.Confidence, 1e-9)
	_, biased := find(found, models.PatternCategoryBias, "young_players")
	assert.False(t, biased)
}

func TestDetectCategoryNeedsFiveClaims(t *testing.T) {
	h := claimCycles("Bullpen meltdown ahead", false, false, false, false)
	h = append(h, modeltest.Cycle(0))
	assert.Empty(t, Detect(h, DefaultOptions()))
}

func TestDetectCustomClassifier(t *testing.T) {
	opts := DefaultOptions()
	opts.Classifier = NewKeywordClassifier([]Category{{Name: "weather", Keywords: []string{"RAIN"}}})
	h := claimCycles("Rain delays will pile up", false, false, false, false, false)

	found := Detect(h, opts)

	_, ok := find(found, models.PatternCategoryBias, "weather")
	assert.True(t, ok)
}

func TestDetectDeterministic(t *testing.T) {
	h := modeltest.History(
		modeltest.Cycle(1, modeltest.Estimate("B", 10, 2), modeltest.Estimate("A", 30, 1)),
		modeltest.Cycle(2, modeltest.Estimate("B", 40, 2), modeltest.Estimate("A", 31, 1)),
		modeltest.Cycle(3, modeltest.Estimate("B", 12, 2), modeltest.Estimate("A", 30, 1)),
		modeltest.Cycle(4, modeltest.Estimate("B", 38, 2), modeltest.Estimate("A", 30, 1)),
		modeltest.Cycle(5, modeltest.Estimate("B", 9, 2), modeltest.Estimate("A", 29, 1)),
	)
	first := Detect(h, DefaultOptions())
	require.NotEmpty(t, first)
	assert.Equal(t, first, Detect(h, DefaultOptions()))
	assert.Equal(t, "A", first[0].Entity)
}

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier(DefaultCategories)

	assert.Equal(t, []string{"pitching", "trades"}, c.Classify("They traded for a Strikeout artist"))
	assert.Empty(t, c.Classify("Several teams will struggle"))
	assert.Equal(t, []string{"pitching", "hitting", "defense", "young_players", "free_agency", "trades"}, c.Categories())
}

func TestFormatForPrompt(t *testing.T) {
	assert.Empty(t, FormatForPrompt(nil))

	got := FormatForPrompt([]models.DetectedPattern{
		{Kind: models.PatternConsistency, Entity: "Dodgers", Confidence: 60, Description: "Dodgers steady"},
		{Kind: models.PatternOverestimation, Entity: "Cubs", Confidence: 85, Description: "Cubs rising"},
	})

	assert.Less(t, strings.Index(got, "Cubs rising"), strings.Index(got, "Dodgers steady"))
	assert.Contains(t, got, "1. **Cubs rising**")
	assert.Contains(t, got, "Confidence: 85%")
	assert.Contains(t, got, "Consider adjusting your Cubs projections")
}
