// Package modeltest builds cycle records for tests.
package modeltest

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/j3m2b/Baseball-Scientist/models"
)

// Epoch is the creation time of cycle 0; cycle n is created n days later.
var Epoch = time.Date(2025, time.April, 1, 12, 0, 0, 0, time.UTC)

func Cycle(number int, items ...any) models.CycleRecord {
	id := uuid.New()
	rec := models.CycleRecord{Cycle: models.Cycle{
		ID:        id,
		Number:    number,
		Title:     fmt.Sprintf("Cycle %d findings", number),
		Summary:   fmt.Sprintf("Summary of cycle %d.", number),
		CreatedAt: Epoch.AddDate(0, 0, number),
	}}
	for _, it := range items {
		switch v := it.(type) {
		case models.ClaimRecord:
			v.Claim.CycleID = id
			rec.Claims = append(rec.Claims, v)
		case models.EstimateRecord:
			v.Estimate.CycleID = id
			rec.Estimates = append(rec.Estimates, v)
		case models.Reflection:
			v.CycleID = id
			rec.Reflections = append(rec.Reflections, v)
		default:
			panic(fmt.Sprintf("modeltest: unsupported item %T", it))
		}
	}
	return rec
}

// Claim is an unresolved claim.
func Claim(text string, validated bool, surprise models.SurpriseLevel) models.ClaimRecord {
	return models.ClaimRecord{Claim: models.Claim{
		ID:           uuid.New(),
		Text:         text,
		InitialValid: validated,
		Surprise:     surprise,
	}}
}

// Resolved attaches an outcome to c.
func Resolved(c models.ClaimRecord, actual bool) models.ClaimRecord {
	c.Outcome = &models.ClaimOutcome{ClaimID: c.Claim.ID, Actual: actual, OutcomeDate: Epoch}
	return c
}

// Scored is a resolved claim that was predicted correctly or not.
func Scored(text string, correct bool) models.ClaimRecord {
	return Resolved(Claim(text, true, models.SurpriseMedium), correct)
}

func Estimate(entity string, probability float64, rank int) models.EstimateRecord {
	return models.EstimateRecord{Estimate: models.Estimate{
		ID:          uuid.New(),
		EntityCode:  entity,
		Entity:      entity,
		Probability: probability,
		Rank:        rank,
	}}
}

// Final attaches a result to e without a stored calibration score.
func Final(e models.EstimateRecord, result models.EstimateResult) models.EstimateRecord {
	e.Outcome = &models.EstimateOutcome{EstimateID: e.Estimate.ID, Result: result}
	return e
}

func Learned(text string) models.Reflection {
	return models.Reflection{ID: uuid.New(), Kind: models.ReflectionLearned, Content: text}
}

// History orders records newest first.
func History(records ...models.CycleRecord) models.History {
	h := models.History(records)
	sort.SliceStable(h, func(i, j int) bool { return h[i].Cycle.Number > h[j].Cycle.Number })
	return h
}

// Series builds one cycle per value with a single estimate for entity,
// numbered from 1 in order.
func Series(entity string, values ...float64) models.History {
	recs := make([]models.CycleRecord, len(values))
	for i, v := range values {
		recs[i] = Cycle(i+1, Estimate(entity, v, 1))
	}
	return History(recs...)
}
