// Package store reads cycle history and persists patterns, outcomes and the
// active adaptive configuration.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/j3m2b/Baseball-Scientist/models"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrInvalidRecord = errors.New("store: invalid record")
)

// HistoryReader loads materialised cycle history, newest first.
// A limit of zero or less loads every cycle.
type HistoryReader interface {
	LoadHistory(ctx context.Context, limit int) (models.History, error)
	CountCycles(ctx context.Context) (int, error)
}

type PatternWriter interface {
	// UpsertPattern overwrites the row keyed by (kind, entity) and increments
	// its observation count, or inserts it with a count of 1.
	UpsertPattern(ctx context.Context, p models.DetectedPattern) (models.DetectedPattern, error)
	ListPatterns(ctx context.Context) ([]models.DetectedPattern, error)
}

type ConfigStore interface {
	// ActiveConfig returns ErrNotFound when no configuration has been stored yet.
	ActiveConfig(ctx context.Context) (models.AdaptiveConfig, error)
	// UpsertActiveConfig updates the single active row in place or inserts it.
	UpsertActiveConfig(ctx context.Context, c models.AdaptiveConfig) (models.AdaptiveConfig, error)
}

type OutcomeWriter interface {
	RecordClaimOutcome(ctx context.Context, o models.ClaimOutcome) error
	RecordEstimateOutcome(ctx context.Context, o models.EstimateOutcome) (models.EstimateOutcome, error)
}

type Store interface {
	HistoryReader
	PatternWriter
	ConfigStore
	OutcomeWriter
	// Reset deletes every cycle and everything recorded against it.
	Reset(ctx context.Context) error
}

var now = func() time.Time { return time.Now().UTC() }

func newID() uuid.UUID { return uuid.New() }
