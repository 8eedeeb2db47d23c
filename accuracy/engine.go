// Package accuracy scores past claims and estimates against their recorded outcomes.
package accuracy

import (
	"log/slog"

	"gonum.org/v1/gonum/stat"

	"github.com/j3m2b/Baseball-Scientist/models"
)

const (
	DefaultWindow = 50
	MaxWindow     = 200
)

type Options struct {
	// RecentSpan is how many cycle numbers back from the newest form the recent bucket.
	RecentSpan int
	// HistoricalSpan is how far back from the newest the historical bucket reaches.
	HistoricalSpan int
	MinBucket      int
	TrendDelta     float64
	Logger         *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		RecentSpan:     10,
		HistoricalSpan: 30,
		MinBucket:      5,
		TrendDelta:     5,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RecentSpan <= 0 {
		o.RecentSpan = d.RecentSpan
	}
	if o.HistoricalSpan <= o.RecentSpan {
		o.HistoricalSpan = o.RecentSpan + (d.HistoricalSpan - d.RecentSpan)
	}
	if o.MinBucket <= 0 {
		o.MinBucket = d.MinBucket
	}
	if o.TrendDelta <= 0 {
		o.TrendDelta = d.TrendDelta
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Metrics is the accuracy summary for a window of cycles. Nil pointers mean
// there was not enough evaluated data to compute the value.
type Metrics struct {
	OverallAccuracy     *float64     `json:"overall_accuracy"`
	Evaluated           int          `json:"total_evaluated"`
	Correct             int          `json:"correctly_predicted"`
	Incorrect           int          `json:"incorrectly_predicted"`
	CalibrationScore    *float64     `json:"calibration_score"`
	EstimatesEvaluated  int          `json:"total_estimates_evaluated"`
	SurpriseCalibration *float64     `json:"surprise_calibration"`
	HighSurpriseTotal   int          `json:"high_surprise_total"`
	HighSurpriseCorrect int          `json:"high_surprise_correct"`
	RecentAccuracy      *float64     `json:"recent_accuracy"`
	HistoricalAccuracy  *float64     `json:"historical_accuracy"`
	Trend               models.Trend `json:"improvement_trend"`
	CyclesAnalyzed      int          `json:"cycles_analyzed"`
	Skipped             int          `json:"skipped_records"`
}

func emptyMetrics() Metrics {
	return Metrics{Trend: models.TrendInsufficientData}
}

// ClampWindow applies the default window and bounds a caller-supplied cycle count.
func ClampWindow(n int) int {
	if n <= 0 {
		return DefaultWindow
	}
	if n > MaxWindow {
		return MaxWindow
	}
	return n
}

// Compute scores every evaluated claim and estimate in the history window.
// It never fails: short or empty histories produce nil metrics and an
// insufficient_data trend.
func Compute(history models.History, opts Options) Metrics {
	opts = opts.withDefaults()
	logger := opts.Logger
	m := emptyMetrics()
	if len(history) == 0 {
		return m
	}
	m.CyclesAnalyzed = len(history)

	newest := history.Newest()
	var recent, historical bucket
	var scores []float64

	for _, rec := range history {
		number := rec.Cycle.Number
		if err := rec.Validate(); err != nil {
			logger.Warn("cycle has inconsistent estimate ranks", "cycle", number, "error", err)
		}
		for _, c := range rec.Claims {
			correct, ok := c.Correct()
			if !ok {
				continue
			}
			m.Evaluated++
			if correct {
				m.Correct++
			} else {
				m.Incorrect++
			}
			if c.Claim.Surprise == models.SurpriseHigh {
				m.HighSurpriseTotal++
				if c.Outcome.Actual {
					m.HighSurpriseCorrect++
				}
			}
			switch {
			case number > newest-opts.RecentSpan:
				recent.add(correct)
			case number > newest-opts.HistoricalSpan:
				historical.add(correct)
			}
		}

		for _, e := range rec.Estimates {
			if e.Outcome == nil || !e.Outcome.Result.Final() {
				continue
			}
			if err := e.Estimate.Validate(); err != nil {
				m.Skipped++
				logger.Warn("skipping malformed estimate", "cycle", number, "error", err)
				continue
			}
			score, ok := e.Score()
			if !ok || score < 0 || score > 1 {
				m.Skipped++
				logger.Warn("skipping out-of-range calibration score", "cycle", number, "entity", e.Estimate.Entity, "score", score)
				continue
			}
			scores = append(scores, score)
		}
	}

	if m.Evaluated > 0 {
		m.OverallAccuracy = percent(m.Correct, m.Evaluated)
	}
	if m.HighSurpriseTotal > 0 {
		m.SurpriseCalibration = percent(m.HighSurpriseCorrect, m.HighSurpriseTotal)
	}
	if len(scores) > 0 {
		mean := stat.Mean(scores, nil)
		m.CalibrationScore = &mean
		m.EstimatesEvaluated = len(scores)
	}

	m.RecentAccuracy = recent.accuracy(opts.MinBucket)
	m.HistoricalAccuracy = historical.accuracy(opts.MinBucket)
	m.Trend = classifyTrend(m.RecentAccuracy, m.HistoricalAccuracy, opts.TrendDelta)
	return m
}

func classifyTrend(recent, historical *float64, delta float64) models.Trend {
	if recent == nil || historical == nil {
		return models.TrendInsufficientData
	}
	diff := *recent - *historical
	switch {
	case diff > delta:
		return models.TrendImproving
	case diff < -delta:
		return models.TrendDeclining
	default:
		return models.TrendStable
	}
}

type bucket struct {
	total   int
	correct int
}

func (b *bucket) add(correct bool) {
	b.total++
	if correct {
		b.correct++
	}
}

func (b bucket) accuracy(min int) *float64 {
	if b.total == 0 || b.total < min {
		return nil
	}
	return percent(b.correct, b.total)
}

func percent(n, d int) *float64 {
	v := float64(n) / float64(d) * 100
	return &v
}
