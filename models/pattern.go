package models

import (
	"time"

	"github.com/google/uuid"
)

type PatternKind string

const (
	PatternOverestimation  PatternKind = "overestimation"
	PatternUnderestimation PatternKind = "underestimation"
	PatternVolatility      PatternKind = "volatility"
	PatternConsistency     PatternKind = "consistency"
	PatternCategoryBias    PatternKind = "category_bias"
)

// Evidence is one sample backing a detected pattern.
type Evidence struct {
	CycleNumber int       `json:"cycle_number,omitempty"`
	Value       *float64  `json:"value,omitempty"`
	Text        string    `json:"text,omitempty"`
	Validated   *bool     `json:"validated,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
}

type DetectedPattern struct {
	ID               uuid.UUID   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Kind             PatternKind `gorm:"column:pattern_type;uniqueIndex:idx_pattern_key;not null" json:"pattern_type"`
	Entity           string      `gorm:"column:entity;uniqueIndex:idx_pattern_key;not null" json:"entity"`
	Confidence       float64     `gorm:"column:confidence" json:"confidence"`
	Evidence         []Evidence  `gorm:"column:evidence;type:jsonb;serializer:json" json:"evidence"`
	Description      string      `gorm:"column:description" json:"description"`
	ObservationCount int         `gorm:"column:cycle_count;default:1" json:"cycle_count"`
	LastUpdatedAt    time.Time   `gorm:"column:last_updated_at" json:"last_updated_at"`
}

func (DetectedPattern) TableName() string { return "detected_patterns" }

// PatternKey identifies a stored pattern row.
type PatternKey struct {
	Kind   PatternKind
	Entity string
}

func (p DetectedPattern) Key() PatternKey {
	return PatternKey{Kind: p.Kind, Entity: p.Entity}
}
