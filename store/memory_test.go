package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j3m2b/Baseball-Scientist/models"
	"github.com/j3m2b/Baseball-Scientist/models/modeltest"
)

func seeded(t *testing.T, n int) (*Memory, []models.CycleRecord) {
	t.Helper()
	m := NewMemory()
	var recs []models.CycleRecord
	for i := 1; i <= n; i++ {
		rec, err := m.AddCycle(modeltest.Cycle(i,
			modeltest.Claim("The bullpen holds", true, models.SurpriseHigh),
			modeltest.Estimate("Dodgers", 20, 1),
			modeltest.Estimate("Yankees", 10, 2),
			modeltest.Learned("Depth matters"),
		))
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	return m, recs
}

func TestMemoryLoadHistory(t *testing.T) {
	m, _ := seeded(t, 5)
	ctx := context.Background()

	h, err := m.LoadHistory(ctx, 3)
	require.NoError(t, err)
	require.Len(t, h, 3)
	assert.Equal(t, []int{5, 4, 3}, []int{h[0].Cycle.Number, h[1].Cycle.Number, h[2].Cycle.Number})
	assert.Len(t, h[0].Claims, 1)
	require.Len(t, h[0].Estimates, 2)
	assert.Equal(t, "Dodgers", h[0].Estimates[0].Estimate.Entity)
	learned, ok := h[0].Learned()
	assert.True(t, ok)
	assert.Equal(t, "Depth matters", learned)

	n, err := m.CountCycles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestMemoryAddCycleRejectsDuplicateNumber(t *testing.T) {
	m, _ := seeded(t, 1)
	_, err := m.AddCycle(modeltest.Cycle(1))
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestMemoryAddCycleRejectsMalformedEstimates(t *testing.T) {
	m := NewMemory()
	_, err := m.AddCycle(modeltest.Cycle(1, modeltest.Estimate("A", 20, 1), modeltest.Estimate("B", 10, 1)))
	assert.ErrorIs(t, err, ErrInvalidRecord)
	_, err = m.AddCycle(modeltest.Cycle(1, modeltest.Estimate("A", 120, 1)))
	assert.ErrorIs(t, err, ErrInvalidRecord)

	n, err := m.CountCycles(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryUpsertPatternIncrementsCount(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := models.DetectedPattern{Kind: models.PatternVolatility, Entity: "Yankees", Confidence: 80}

	first, err := m.UpsertPattern(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 1, first.ObservationCount)

	p.Confidence = 90
	second, err := m.UpsertPattern(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 2, second.ObservationCount)
	assert.Equal(t, first.ID, second.ID)

	all, err := m.ListPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 90.0, all[0].Confidence)
	assert.Equal(t, 2, all[0].ObservationCount)
}

func TestMemoryListPatternsOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for _, p := range []models.DetectedPattern{
		{Kind: models.PatternVolatility, Entity: "B", Confidence: 50},
		{Kind: models.PatternCategoryBias, Entity: "pitching", Confidence: 90},
		{Kind: models.PatternVolatility, Entity: "A", Confidence: 50},
	} {
		_, err := m.UpsertPattern(ctx, p)
		require.NoError(t, err)
	}
	all, err := m.ListPatterns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"pitching", "A", "B"}, []string{all[0].Entity, all[1].Entity, all[2].Entity})
}

func TestMemoryActiveConfigSingleton(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.ActiveConfig(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := m.UpsertActiveConfig(ctx, models.AdaptiveConfig{Boldness: 50, SurpriseLow: 3, SurpriseHigh: 7})
	require.NoError(t, err)
	second, err := m.UpsertActiveConfig(ctx, models.AdaptiveConfig{Boldness: 75, SurpriseLow: 2.5, SurpriseHigh: 6})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	active, err := m.ActiveConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 75.0, active.Boldness)
	assert.True(t, active.IsActive)

	_, err = m.UpsertActiveConfig(ctx, models.AdaptiveConfig{SurpriseLow: 7, SurpriseHigh: 3})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestMemoryRecordOutcomes(t *testing.T) {
	m, recs := seeded(t, 1)
	ctx := context.Background()
	claimID := recs[0].Claims[0].Claim.ID
	estimateID := recs[0].Estimates[0].Estimate.ID

	require.NoError(t, m.RecordClaimOutcome(ctx, models.ClaimOutcome{ClaimID: claimID, Actual: false}))
	require.NoError(t, m.RecordClaimOutcome(ctx, models.ClaimOutcome{ClaimID: claimID, Actual: true}))

	saved, err := m.RecordEstimateOutcome(ctx, models.EstimateOutcome{EstimateID: estimateID, Result: models.ResultPending})
	require.NoError(t, err)
	assert.Nil(t, saved.CalibrationScore)

	saved, err = m.RecordEstimateOutcome(ctx, models.EstimateOutcome{EstimateID: estimateID, Result: models.ResultWonTopPrize})
	require.NoError(t, err)
	require.NotNil(t, saved.CalibrationScore)
	assert.InDelta(t, 0.64, *saved.CalibrationScore, 1e-9)

	h, err := m.LoadHistory(ctx, 10)
	require.NoError(t, err)
	correct, ok := h[0].Claims[0].Correct()
	assert.True(t, ok)
	assert.True(t, correct)
	score, ok := h[0].Estimates[0].Score()
	assert.True(t, ok)
	assert.InDelta(t, 0.64, score, 1e-9)
}

func TestMemoryRecordOutcomeErrors(t *testing.T) {
	m, recs := seeded(t, 1)
	ctx := context.Background()

	assert.ErrorIs(t, m.RecordClaimOutcome(ctx, models.ClaimOutcome{ClaimID: uuid.New()}), ErrNotFound)
	_, err := m.RecordEstimateOutcome(ctx, models.EstimateOutcome{EstimateID: uuid.New(), Result: models.ResultMissedPlayoffs})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.RecordEstimateOutcome(ctx, models.EstimateOutcome{EstimateID: recs[0].Estimates[0].Estimate.ID, Result: "tbd"})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestMemoryResetKeepsPatternsAndConfig(t *testing.T) {
	m, _ := seeded(t, 3)
	ctx := context.Background()
	_, err := m.UpsertPattern(ctx, models.DetectedPattern{Kind: models.PatternVolatility, Entity: "A"})
	require.NoError(t, err)
	_, err = m.UpsertActiveConfig(ctx, models.AdaptiveConfig{SurpriseLow: 3, SurpriseHigh: 7})
	require.NoError(t, err)

	require.NoError(t, m.Reset(ctx))

	n, err := m.CountCycles(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	h, err := m.LoadHistory(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, h)
	patterns, err := m.ListPatterns(ctx)
	require.NoError(t, err)
	assert.Len(t, patterns, 1)
	_, err = m.ActiveConfig(ctx)
	assert.NoError(t, err)
}

func TestMemoryAddCycleRanksUnrankedEstimates(t *testing.T) {
	m := NewMemory()
	_, err := m.AddCycle(modeltest.Cycle(1,
		modeltest.Estimate("Dodgers", 20, 1),
		modeltest.Estimate("Yankees", 10, 2)))
	require.NoError(t, err)

	rec, err := m.AddCycle(modeltest.Cycle(2,
		modeltest.Estimate("Mets", 5, 0),
		modeltest.Final(modeltest.Estimate("Yankees", 25, 0), models.ResultReachedFinal),
		modeltest.Estimate("Dodgers", 15, 0)))
	require.NoError(t, err)

	require.Len(t, rec.Estimates, 3)
	var entities []string
	for i, e := range rec.Estimates {
		entities = append(entities, e.Estimate.Entity)
		assert.Equal(t, i+1, e.Estimate.Rank)
	}
	assert.Equal(t, []string{"Yankees", "Dodgers", "Mets"}, entities)
	require.NotNil(t, rec.Estimates[0].Estimate.ChangeFromPrevious)
	assert.InDelta(t, 15, *rec.Estimates[0].Estimate.ChangeFromPrevious, 1e-9)
	require.NotNil(t, rec.Estimates[1].Estimate.ChangeFromPrevious)
	assert.InDelta(t, -5, *rec.Estimates[1].Estimate.ChangeFromPrevious, 1e-9)
	assert.Nil(t, rec.Estimates[2].Estimate.ChangeFromPrevious)

	h, err := m.LoadHistory(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, h[0].Estimates, 3)
	yankees := h[0].Estimates[0]
	assert.Equal(t, "Yankees", yankees.Estimate.Entity)
	require.NotNil(t, yankees.Outcome)
	assert.Equal(t, models.ResultReachedFinal, yankees.Outcome.Result)
}

func TestMemoryAddCycleFillsChangeForRankedEstimates(t *testing.T) {
	m := NewMemory()
	_, err := m.AddCycle(modeltest.Cycle(1, modeltest.Estimate("Cubs", 8, 1)))
	require.NoError(t, err)
	_, err = m.AddCycle(modeltest.Cycle(3, modeltest.Estimate("Cubs", 12, 1)))
	require.NoError(t, err)

	// Cycle 2 arrives late; only cycle 1 precedes it.
	rec, err := m.AddCycle(modeltest.Cycle(2, modeltest.Estimate("Cubs", 11, 1)))
	require.NoError(t, err)
	require.NotNil(t, rec.Estimates[0].Estimate.ChangeFromPrevious)
	assert.InDelta(t, 3, *rec.Estimates[0].Estimate.ChangeFromPrevious, 1e-9)
}

func TestMemoryAddCycleClassifiesSurpriseScore(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	scored := func(text string, score float64) models.ClaimRecord {
		c := modeltest.Claim(text, true, "")
		c.Claim.SurpriseScore = &score
		return c
	}

	rec, err := m.AddCycle(modeltest.Cycle(1,
		scored("Rookie wins the batting title", 8),
		scored("Ace stays healthy", 2),
		modeltest.Claim("Closer keeps the job", true, models.SurpriseMedium)))
	require.NoError(t, err)
	assert.Equal(t, models.SurpriseHigh, rec.Claims[0].Claim.Surprise)
	assert.Equal(t, models.SurpriseLow, rec.Claims[1].Claim.Surprise)
	assert.Equal(t, models.SurpriseMedium, rec.Claims[2].Claim.Surprise)

	_, err = m.UpsertActiveConfig(ctx, models.AdaptiveConfig{SurpriseLow: 1.5, SurpriseHigh: 8.5})
	require.NoError(t, err)
	rec, err = m.AddCycle(modeltest.Cycle(2, scored("Rookie wins the batting title", 8), scored("Ace stays healthy", 2)))
	require.NoError(t, err)
	assert.Equal(t, models.SurpriseMedium, rec.Claims[0].Claim.Surprise)
	assert.Equal(t, models.SurpriseMedium, rec.Claims[1].Claim.Surprise)
}

func TestMemoryLoadHistoryWithoutLimit(t *testing.T) {
	m, _ := seeded(t, 4)
	h, err := m.LoadHistory(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, h, 4)
}

func TestSnapshotIsolatesWrites(t *testing.T) {
	src, _ := seeded(t, 4)
	ctx := context.Background()
	_, err := src.UpsertPattern(ctx, models.DetectedPattern{Kind: models.PatternVolatility, Entity: "Dodgers", Confidence: 70})
	require.NoError(t, err)
	_, err = src.UpsertPattern(ctx, models.DetectedPattern{Kind: models.PatternVolatility, Entity: "Dodgers", Confidence: 75})
	require.NoError(t, err)
	active, err := src.UpsertActiveConfig(ctx, models.AdaptiveConfig{Boldness: 65, SurpriseLow: 3, SurpriseHigh: 7})
	require.NoError(t, err)

	snap, err := Snapshot(ctx, src, 3)
	require.NoError(t, err)

	want, err := src.LoadHistory(ctx, 3)
	require.NoError(t, err)
	got, err := snap.LoadHistory(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	cfg, err := snap.ActiveConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, active, cfg)

	saved, err := snap.UpsertPattern(ctx, models.DetectedPattern{Kind: models.PatternVolatility, Entity: "Dodgers", Confidence: 80})
	require.NoError(t, err)
	assert.Equal(t, 3, saved.ObservationCount)
	_, err = snap.UpsertActiveConfig(ctx, models.AdaptiveConfig{Boldness: 30, SurpriseLow: 3, SurpriseHigh: 7})
	require.NoError(t, err)
	require.NoError(t, snap.Reset(ctx))

	stored, err := src.ListPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 2, stored[0].ObservationCount)
	cfg, err = src.ActiveConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 65.0, cfg.Boldness)
	n, err := src.CountCycles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestSnapshotWithoutActiveConfig(t *testing.T) {
	src, _ := seeded(t, 2)
	snap, err := Snapshot(context.Background(), src, 0)
	require.NoError(t, err)
	_, err = snap.ActiveConfig(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}
