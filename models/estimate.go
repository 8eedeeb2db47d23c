package models

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// EstimateResult is the realised season result, ordered from best to worst.
type EstimateResult string

const (
	ResultWonTopPrize     EstimateResult = "won_top_prize"
	ResultReachedFinal    EstimateResult = "reached_final"
	ResultReachedPlayoffs EstimateResult = "reached_playoffs"
	ResultMissedPlayoffs  EstimateResult = "missed_playoffs"
	ResultPending         EstimateResult = "pending"
)

var orderedResults = []EstimateResult{
	ResultWonTopPrize,
	ResultReachedFinal,
	ResultReachedPlayoffs,
	ResultMissedPlayoffs,
}

// Ordinal returns the position in the ordered outcome set, or -1 for pending/unknown results.
func (r EstimateResult) Ordinal() int {
	for i, o := range orderedResults {
		if o == r {
			return i
		}
	}
	return -1
}

func (r EstimateResult) Valid() bool {
	return r == ResultPending || r.Ordinal() >= 0
}

func (r EstimateResult) Final() bool {
	return r.Ordinal() >= 0
}

type Estimate struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CycleID            uuid.UUID `gorm:"column:cycle_id;type:uuid;index;not null" json:"cycle_id"`
	EntityCode         string    `gorm:"column:entity_code" json:"entity_code"`
	Entity             string    `gorm:"column:entity_name;index" json:"entity_name"`
	Probability        float64   `gorm:"column:probability" json:"probability"`
	Rank               int       `gorm:"column:rank" json:"rank"`
	ChangeFromPrevious *float64  `gorm:"column:change_from_previous" json:"change_from_previous"`
	CreatedAt          time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Estimate) TableName() string { return "estimates" }

func (e Estimate) Validate() error {
	if math.IsNaN(e.Probability) || e.Probability < 0 || e.Probability > 100 {
		return fmt.Errorf("estimate %q: probability %v outside 0-100", e.Entity, e.Probability)
	}
	if e.Entity == "" {
		return fmt.Errorf("estimate %s: missing entity", e.ID)
	}
	return nil
}

type EstimateOutcome struct {
	EstimateID       uuid.UUID      `gorm:"column:estimate_id;type:uuid;primaryKey" json:"estimate_id"`
	Result           EstimateResult `gorm:"column:actual_result" json:"actual_result"`
	ResultDate       *time.Time     `gorm:"column:result_date" json:"result_date"`
	CalibrationScore *float64       `gorm:"column:calibration_score" json:"calibration_score"`
	UpdatedAt        time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (EstimateOutcome) TableName() string { return "estimate_outcomes" }

// CalibrationScore is the squared error between the predicted probability of
// winning the top prize and the realised 0/1 result. Pending results have no score.
func CalibrationScore(probability float64, result EstimateResult) (float64, bool) {
	if !result.Final() {
		return 0, false
	}
	p := math.Max(0, math.Min(1, probability/100))
	actual := 0.0
	if result == ResultWonTopPrize {
		actual = 1.0
	}
	return (p - actual) * (p - actual), true
}

type EstimateRecord struct {
	Estimate Estimate         `json:"estimate"`
	Outcome  *EstimateOutcome `json:"outcome,omitempty"`
}

// Score returns the calibration score for an evaluated estimate, preferring the stored value.
func (e EstimateRecord) Score() (float64, bool) {
	if e.Outcome == nil || !e.Outcome.Result.Final() {
		return 0, false
	}
	if e.Outcome.CalibrationScore != nil {
		return *e.Outcome.CalibrationScore, true
	}
	return CalibrationScore(e.Estimate.Probability, e.Outcome.Result)
}

// RankEstimates orders one cycle's estimates by probability (highest first),
// assigns contiguous ranks from 1 and fills ChangeFromPrevious from the
// entity's estimate in the previous cycle that mentioned it.
func RankEstimates(current []Estimate, previous map[string]float64) []Estimate {
	ranked := make([]Estimate, len(current))
	copy(ranked, current)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Probability != ranked[j].Probability {
			return ranked[i].Probability > ranked[j].Probability
		}
		return ranked[i].Entity < ranked[j].Entity
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
		ranked[i].ChangeFromPrevious = nil
		if prev, ok := previous[ranked[i].Entity]; ok {
			change := ranked[i].Probability - prev
			ranked[i].ChangeFromPrevious = &change
		}
	}
	return ranked
}

// LatestProbabilities maps each entity to its most recent estimate in a newest-first history.
func LatestProbabilities(h History) map[string]float64 {
	latest := make(map[string]float64)
	for _, rec := range h {
		for _, e := range rec.Estimates {
			if _, ok := latest[e.Estimate.Entity]; !ok {
				latest[e.Estimate.Entity] = e.Estimate.Probability
			}
		}
	}
	return latest
}
