package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Cycle struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Number    int       `gorm:"column:cycle_number;uniqueIndex;not null" json:"cycle_number"`
	Title     string    `gorm:"column:title" json:"title"`
	Summary   string    `gorm:"column:summary" json:"summary"`
	CreatedAt time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (Cycle) TableName() string { return "cycles" }

const ReflectionLearned = "learned"

type Reflection struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CycleID   uuid.UUID `gorm:"column:cycle_id;type:uuid;index;not null" json:"cycle_id"`
	Kind      string    `gorm:"column:reflection_type" json:"reflection_type"`
	Content   string    `gorm:"column:content" json:"content"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Reflection) TableName() string { return "reflections" }

// CycleRecord is one cycle with everything recorded against it.
type CycleRecord struct {
	Cycle       Cycle            `json:"cycle"`
	Claims      []ClaimRecord    `json:"claims"`
	Estimates   []EstimateRecord `json:"estimates"`
	Reflections []Reflection     `json:"reflections"`
}

// Learned returns the first "learned" reflection, if any.
func (r CycleRecord) Learned() (string, bool) {
	for _, ref := range r.Reflections {
		if ref.Kind == ReflectionLearned && ref.Content != "" {
			return ref.Content, true
		}
	}
	return "", false
}

// Validate checks that estimate ranks form a contiguous permutation starting at 1.
func (r CycleRecord) Validate() error {
	if len(r.Estimates) == 0 {
		return nil
	}
	seen := make([]bool, len(r.Estimates)+1)
	for _, e := range r.Estimates {
		rank := e.Estimate.Rank
		if rank < 1 || rank > len(r.Estimates) {
			return fmt.Errorf("cycle %d: rank %d out of range 1..%d", r.Cycle.Number, rank, len(r.Estimates))
		}
		if seen[rank] {
			return fmt.Errorf("cycle %d: rank %d assigned twice", r.Cycle.Number, rank)
		}
		seen[rank] = true
	}
	return nil
}

// History is an ordered list of cycle records, newest first.
type History []CycleRecord

// Newest returns the highest cycle number in the history, or 0 when empty.
func (h History) Newest() int {
	newest := 0
	for _, r := range h {
		if r.Cycle.Number > newest {
			newest = r.Cycle.Number
		}
	}
	return newest
}

// Limit returns at most n of the newest records.
func (h History) Limit(n int) History {
	if n < 0 {
		n = 0
	}
	if n >= len(h) {
		return h
	}
	return h[:n]
}
