package models

import (
	"time"

	"github.com/google/uuid"
)

type Trend string

const (
	TrendImproving        Trend = "improving"
	TrendStable           Trend = "stable"
	TrendDeclining        Trend = "declining"
	TrendInsufficientData Trend = "insufficient_data"
)

// AdaptiveConfig holds the generation parameters fed into the next cycle.
// At most one row has IsActive set; the storage layer enforces it.
type AdaptiveConfig struct {
	ID                   uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Boldness             float64   `gorm:"column:boldness_level" json:"boldness_level"`
	SurpriseLow          float64   `gorm:"column:surprise_threshold_low" json:"surprise_threshold_low"`
	SurpriseHigh         float64   `gorm:"column:surprise_threshold_high" json:"surprise_threshold_high"`
	ConfidenceAdjustment float64   `gorm:"column:confidence_adjustment" json:"confidence_adjustment"`
	TargetClaims         int       `gorm:"column:claim_count_target" json:"claim_count_target"`
	Rationale            string    `gorm:"column:rationale" json:"rationale"`
	BasedOnAccuracy      *float64  `gorm:"column:based_on_accuracy" json:"based_on_accuracy"`
	BasedOnTrend         Trend     `gorm:"column:based_on_trend" json:"based_on_trend,omitempty"`
	BasedOnEvaluated     int       `gorm:"column:based_on_evaluated" json:"based_on_evaluated"`
	IsActive             bool      `gorm:"column:is_active;default:true" json:"is_active"`
	UpdatedAt            time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (AdaptiveConfig) TableName() string { return "adaptive_config" }

// Classify discretises a raw surprise score with this configuration's thresholds.
func (c AdaptiveConfig) Classify(score float64) SurpriseLevel {
	return SurpriseFromScore(score, c.SurpriseLow, c.SurpriseHigh)
}
