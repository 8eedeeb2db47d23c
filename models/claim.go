package models

import (
	"time"

	"github.com/google/uuid"
)

type SurpriseLevel string

const (
	SurpriseLow    SurpriseLevel = "Low"
	SurpriseMedium SurpriseLevel = "Medium"
	SurpriseHigh   SurpriseLevel = "High"
)

const (
	DefaultSurpriseLow  = 3.0
	DefaultSurpriseHigh = 7.0
)

// SurpriseFromScore discretises a raw 1-10 surprise score against the low and high cutoffs.
func SurpriseFromScore(score, low, high float64) SurpriseLevel {
	switch {
	case score <= low:
		return SurpriseLow
	case score <= high:
		return SurpriseMedium
	default:
		return SurpriseHigh
	}
}

type Claim struct {
	ID           uuid.UUID     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CycleID      uuid.UUID     `gorm:"column:cycle_id;type:uuid;index;not null" json:"cycle_id"`
	Text         string        `gorm:"column:claim" json:"claim"`
	InitialValid bool          `gorm:"column:is_validated" json:"is_validated"`
	Surprise     SurpriseLevel `gorm:"column:surprise_level" json:"surprise_level"`
	// SurpriseScore is the raw 1-10 score reported for the claim, when one was given.
	SurpriseScore *float64 `gorm:"column:surprise_score" json:"surprise_score,omitempty"`
	Evidence     string        `gorm:"column:evidence" json:"evidence"`
	CreatedAt    time.Time     `gorm:"column:created_at" json:"created_at"`
}

func (Claim) TableName() string { return "claims" }

type ClaimOutcome struct {
	ClaimID     uuid.UUID `gorm:"column:claim_id;type:uuid;primaryKey" json:"claim_id"`
	Actual      bool      `gorm:"column:actual_outcome" json:"actual_outcome"`
	OutcomeDate time.Time `gorm:"column:outcome_date" json:"outcome_date"`
	Evidence    string    `gorm:"column:evidence" json:"evidence"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (ClaimOutcome) TableName() string { return "claim_outcomes" }

type ClaimRecord struct {
	Claim   Claim         `json:"claim"`
	Outcome *ClaimOutcome `json:"outcome,omitempty"`
}

// Correct reports whether the initial validity flag matched the recorded outcome.
// The second return value is false when no outcome exists yet.
func (c ClaimRecord) Correct() (bool, bool) {
	if c.Outcome == nil {
		return false, false
	}
	return c.Claim.InitialValid == c.Outcome.Actual, true
}
