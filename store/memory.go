package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/j3m2b/Baseball-Scientist/models"
)

// Memory is an in-process Store. It backs dry runs (see Snapshot) and tests.
type Memory struct {
	mu               sync.RWMutex
	cycles           []models.Cycle
	claims           map[uuid.UUID]models.Claim
	claimOutcomes    map[uuid.UUID]models.ClaimOutcome
	estimates        map[uuid.UUID]models.Estimate
	estimateOutcomes map[uuid.UUID]models.EstimateOutcome
	reflections      []models.Reflection
	patterns         map[models.PatternKey]models.DetectedPattern
	active           *models.AdaptiveConfig
}

func NewMemory() *Memory {
	m := &Memory{}
	m.clear()
	return m
}

func (m *Memory) clear() {
	m.cycles = nil
	m.claims = make(map[uuid.UUID]models.Claim)
	m.claimOutcomes = make(map[uuid.UUID]models.ClaimOutcome)
	m.estimates = make(map[uuid.UUID]models.Estimate)
	m.estimateOutcomes = make(map[uuid.UUID]models.EstimateOutcome)
	m.reflections = nil
	m.patterns = make(map[models.PatternKey]models.DetectedPattern)
}

// AddCycle appends a cycle with its claims, estimates and reflections.
// IDs are assigned where missing. When no estimate carries a rank, the cycle's
// estimates are ranked by probability; each is compared with the entity's
// latest earlier estimate. Claims with only a raw surprise score are classified
// with the active thresholds. Malformed estimates and rank collisions are rejected.
func (m *Memory) AddCycle(rec models.CycleRecord) (models.CycleRecord, error) {
	for _, e := range rec.Estimates {
		if err := e.Estimate.Validate(); err != nil {
			return rec, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.cycles {
		if c.Number == rec.Cycle.Number {
			return rec, fmt.Errorf("%w: cycle %d already exists", ErrInvalidRecord, rec.Cycle.Number)
		}
	}
	m.prepare(&rec)
	if err := rec.Validate(); err != nil {
		return rec, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	m.insert(&rec)
	return rec, nil
}

// Snapshot copies the newest limit cycles of src, its detected patterns and its
// active configuration into a new Memory. Writes to the copy never reach src.
func Snapshot(ctx context.Context, src Store, limit int) (*Memory, error) {
	history, err := src.LoadHistory(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	found, err := src.ListPatterns(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	active, err := src.ActiveConfig(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("read adaptive config: %w", err)
	}

	m := NewMemory()
	for i := len(history) - 1; i >= 0; i-- {
		rec := history[i]
		m.insert(&rec)
	}
	for _, p := range found {
		m.patterns[p.Key()] = p
	}
	if err == nil {
		m.active = &active
	}
	return m, nil
}

func (m *Memory) prepare(rec *models.CycleRecord) {
	previous := m.previousProbabilities(rec.Cycle.Number)
	if unranked(rec.Estimates) {
		current := make([]models.Estimate, len(rec.Estimates))
		outcomes := make(map[uuid.UUID]*models.EstimateOutcome, len(rec.Estimates))
		for i, e := range rec.Estimates {
			if e.Estimate.ID == uuid.Nil {
				e.Estimate.ID = newID()
			}
			current[i] = e.Estimate
			outcomes[e.Estimate.ID] = e.Outcome
		}
		for i, e := range models.RankEstimates(current, previous) {
			rec.Estimates[i] = models.EstimateRecord{Estimate: e, Outcome: outcomes[e.ID]}
		}
	} else {
		for i := range rec.Estimates {
			e := &rec.Estimates[i].Estimate
			if prev, ok := previous[e.Entity]; ok && e.ChangeFromPrevious == nil {
				change := e.Probability - prev
				e.ChangeFromPrevious = &change
			}
		}
	}

	classify := func(score float64) models.SurpriseLevel {
		return models.SurpriseFromScore(score, models.DefaultSurpriseLow, models.DefaultSurpriseHigh)
	}
	if m.active != nil {
		classify = m.active.Classify
	}
	for i := range rec.Claims {
		c := &rec.Claims[i].Claim
		if c.Surprise == "" && c.SurpriseScore != nil {
			c.Surprise = classify(*c.SurpriseScore)
		}
	}
}

func unranked(estimates []models.EstimateRecord) bool {
	for _, e := range estimates {
		if e.Estimate.Rank != 0 {
			return false
		}
	}
	return len(estimates) > 0
}

// previousProbabilities maps each entity to its latest estimate in cycles numbered below number.
func (m *Memory) previousProbabilities(number int) map[string]float64 {
	var earlier models.History
	for _, c := range m.cycles {
		if c.Number < number {
			earlier = append(earlier, models.CycleRecord{Cycle: c})
		}
	}
	sort.Slice(earlier, func(i, j int) bool { return earlier[i].Cycle.Number > earlier[j].Cycle.Number })
	index := make(map[uuid.UUID]int, len(earlier))
	for i, rec := range earlier {
		index[rec.Cycle.ID] = i
	}
	for _, e := range sortedEstimates(m.estimates) {
		if i, ok := index[e.CycleID]; ok {
			earlier[i].Estimates = append(earlier[i].Estimates, models.EstimateRecord{Estimate: e})
		}
	}
	return models.LatestProbabilities(earlier)
}

func (m *Memory) insert(rec *models.CycleRecord) {
	if rec.Cycle.ID == uuid.Nil {
		rec.Cycle.ID = newID()
	}
	if rec.Cycle.CreatedAt.IsZero() {
		rec.Cycle.CreatedAt = now()
	}
	m.cycles = append(m.cycles, rec.Cycle)

	for i := range rec.Claims {
		c := &rec.Claims[i]
		if c.Claim.ID == uuid.Nil {
			c.Claim.ID = newID()
		}
		c.Claim.CycleID = rec.Cycle.ID
		if c.Claim.CreatedAt.IsZero() {
			c.Claim.CreatedAt = rec.Cycle.CreatedAt.Add(time.Duration(i))
		}
		m.claims[c.Claim.ID] = c.Claim
		if c.Outcome != nil {
			c.Outcome.ClaimID = c.Claim.ID
			m.claimOutcomes[c.Claim.ID] = *c.Outcome
		}
	}
	for i := range rec.Estimates {
		e := &rec.Estimates[i]
		if e.Estimate.ID == uuid.Nil {
			e.Estimate.ID = newID()
		}
		e.Estimate.CycleID = rec.Cycle.ID
		m.estimates[e.Estimate.ID] = e.Estimate
		if e.Outcome != nil {
			e.Outcome.EstimateID = e.Estimate.ID
			m.estimateOutcomes[e.Estimate.ID] = *e.Outcome
		}
	}
	for i := range rec.Reflections {
		r := &rec.Reflections[i]
		if r.ID == uuid.Nil {
			r.ID = newID()
		}
		r.CycleID = rec.Cycle.ID
		m.reflections = append(m.reflections, *r)
	}
}

func (m *Memory) LoadHistory(_ context.Context, limit int) (models.History, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cycles := make([]models.Cycle, len(m.cycles))
	copy(cycles, m.cycles)
	sort.Slice(cycles, func(i, j int) bool { return cycles[i].Number > cycles[j].Number })
	if limit > 0 && len(cycles) > limit {
		cycles = cycles[:limit]
	}

	index := make(map[uuid.UUID]int, len(cycles))
	history := make(models.History, len(cycles))
	for i, c := range cycles {
		index[c.ID] = i
		history[i].Cycle = c
	}

	for _, c := range sortedClaims(m.claims) {
		i, ok := index[c.CycleID]
		if !ok {
			continue
		}
		rec := models.ClaimRecord{Claim: c}
		if o, ok := m.claimOutcomes[c.ID]; ok {
			o := o
			rec.Outcome = &o
		}
		history[i].Claims = append(history[i].Claims, rec)
	}
	for _, e := range sortedEstimates(m.estimates) {
		i, ok := index[e.CycleID]
		if !ok {
			continue
		}
		rec := models.EstimateRecord{Estimate: e}
		if o, ok := m.estimateOutcomes[e.ID]; ok {
			o := o
			rec.Outcome = &o
		}
		history[i].Estimates = append(history[i].Estimates, rec)
	}
	for _, r := range m.reflections {
		if i, ok := index[r.CycleID]; ok {
			history[i].Reflections = append(history[i].Reflections, r)
		}
	}
	return history, nil
}

func (m *Memory) CountCycles(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cycles), nil
}

func (m *Memory) UpsertPattern(_ context.Context, p models.DetectedPattern) (models.DetectedPattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.patterns[p.Key()]; ok {
		p.ID = existing.ID
		p.ObservationCount = existing.ObservationCount + 1
	} else {
		p.ID = newID()
		p.ObservationCount = 1
	}
	p.LastUpdatedAt = now()
	m.patterns[p.Key()] = p
	return p, nil
}

func (m *Memory) ListPatterns(context.Context) ([]models.DetectedPattern, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.DetectedPattern, 0, len(m.patterns))
	for _, p := range m.patterns {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Entity < out[j].Entity
	})
	return out, nil
}

func (m *Memory) ActiveConfig(context.Context) (models.AdaptiveConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil {
		return models.AdaptiveConfig{}, ErrNotFound
	}
	return *m.active, nil
}

func (m *Memory) UpsertActiveConfig(_ context.Context, c models.AdaptiveConfig) (models.AdaptiveConfig, error) {
	if c.SurpriseLow >= c.SurpriseHigh {
		return c, fmt.Errorf("%w: surprise thresholds %.2f >= %.2f", ErrInvalidRecord, c.SurpriseLow, c.SurpriseHigh)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		c.ID = m.active.ID
	} else {
		c.ID = newID()
	}
	c.IsActive = true
	c.UpdatedAt = now()
	m.active = &c
	return c, nil
}

func (m *Memory) RecordClaimOutcome(_ context.Context, o models.ClaimOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.claims[o.ClaimID]; !ok {
		return fmt.Errorf("claim %s: %w", o.ClaimID, ErrNotFound)
	}
	o.UpdatedAt = now()
	m.claimOutcomes[o.ClaimID] = o
	return nil
}

func (m *Memory) RecordEstimateOutcome(_ context.Context, o models.EstimateOutcome) (models.EstimateOutcome, error) {
	if !o.Result.Valid() {
		return o, fmt.Errorf("%w: unknown result %q", ErrInvalidRecord, o.Result)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.estimates[o.EstimateID]
	if !ok {
		return o, fmt.Errorf("estimate %s: %w", o.EstimateID, ErrNotFound)
	}
	o.CalibrationScore = nil
	if score, ok := models.CalibrationScore(e.Probability, o.Result); ok {
		o.CalibrationScore = &score
	}
	o.UpdatedAt = now()
	m.estimateOutcomes[o.EstimateID] = o
	return o, nil
}

func (m *Memory) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	patterns, active := m.patterns, m.active
	m.clear()
	m.patterns, m.active = patterns, active
	return nil
}

func sortedClaims(in map[uuid.UUID]models.Claim) []models.Claim {
	out := make([]models.Claim, 0, len(in))
	for _, c := range in {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func sortedEstimates(in map[uuid.UUID]models.Estimate) []models.Estimate {
	out := make([]models.Estimate, 0, len(in))
	for _, e := range in {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].Entity < out[j].Entity
	})
	return out
}
