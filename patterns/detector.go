// Package patterns detects recurring biases in past estimates and claims.
package patterns

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/j3m2b/Baseball-Scientist/models"
)

const DefaultWindow = 20

type Options struct {
	MinCycles            int
	MinSeriesPoints      int
	MinTrendPoints       int
	VolatilityStdDev     float64
	ConsistencyStdDev    float64
	ConsistencyPoints    int
	TrendSlope           float64
	MinCategoryClaims    int
	StrongCategoryClaims int
	WeakRate             float64
	StrongRate           float64
	MaxEvidence          int
	Classifier           Classifier
	Logger               *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		MinCycles:            5,
		MinSeriesPoints:      3,
		MinTrendPoints:       5,
		VolatilityStdDev:     5,
		ConsistencyStdDev:    1.5,
		ConsistencyPoints:    5,
		TrendSlope:           0.5,
		MinCategoryClaims:    5,
		StrongCategoryClaims: 8,
		WeakRate:             40,
		StrongRate:           70,
		MaxEvidence:          10,
		Classifier:           NewKeywordClassifier(DefaultCategories),
	}
}

// withDefaults fills unset fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	setInt := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	setFloat := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	setInt(&o.MinCycles, d.MinCycles)
	setInt(&o.MinSeriesPoints, d.MinSeriesPoints)
	setInt(&o.MinTrendPoints, d.MinTrendPoints)
	setInt(&o.ConsistencyPoints, d.ConsistencyPoints)
	setInt(&o.MinCategoryClaims, d.MinCategoryClaims)
	setInt(&o.StrongCategoryClaims, d.StrongCategoryClaims)
	setInt(&o.MaxEvidence, d.MaxEvidence)
	setFloat(&o.VolatilityStdDev, d.VolatilityStdDev)
	setFloat(&o.ConsistencyStdDev, d.ConsistencyStdDev)
	setFloat(&o.TrendSlope, d.TrendSlope)
	setFloat(&o.WeakRate, d.WeakRate)
	setFloat(&o.StrongRate, d.StrongRate)
	if o.Classifier == nil {
		o.Classifier = d.Classifier
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Detect analyses a window of cycles (newest first) and returns every pattern
// it finds. The result depends only on the input: entities are visited in name
// order and categories in table order.
func Detect(history models.History, opts Options) []models.DetectedPattern {
	opts = opts.withDefaults()
	if len(history) < opts.MinCycles {
		return nil
	}

	var found []models.DetectedPattern
	for _, s := range collectSeries(history, opts.Logger) {
		found = append(found, analyzeSeries(s, opts)...)
	}
	found = append(found, analyzeCategories(history, opts)...)
	return found
}

func collectSeries(history models.History, logger *slog.Logger) []series {
	byEntity := make(map[string]*series)
	for _, rec := range history {
		for _, e := range rec.Estimates {
			if err := e.Estimate.Validate(); err != nil {
				logger.Warn("skipping malformed estimate", "cycle", rec.Cycle.Number, "error", err)
				continue
			}
			s, ok := byEntity[e.Estimate.Entity]
			if !ok {
				s = &series{entity: e.Estimate.Entity}
				byEntity[e.Estimate.Entity] = s
			}
			recordedAt := e.Estimate.CreatedAt
			if recordedAt.IsZero() {
				recordedAt = rec.Cycle.CreatedAt
			}
			s.points = append(s.points, point{cycle: rec.Cycle.Number, value: e.Estimate.Probability, recordedAt: recordedAt})
		}
	}

	out := make([]series, 0, len(byEntity))
	for _, s := range byEntity {
		s.sortByTime()
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].entity < out[j].entity })
	return out
}

func analyzeSeries(s series, opts Options) []models.DetectedPattern {
	n := len(s.points)
	if n < opts.MinSeriesPoints {
		return nil
	}
	values := s.values()
	mean, std := popStdDev(values)
	evidence := seriesEvidence(s, opts.MaxEvidence)

	var out []models.DetectedPattern
	if std > opts.VolatilityStdDev {
		out = append(out, models.DetectedPattern{
			Kind:        models.PatternVolatility,
			Entity:      s.entity,
			Confidence:  math.Min(100, std*10),
			Evidence:    evidence,
			Description: fmt.Sprintf("%s probability swings widely (±%.1f%% avg deviation)", s.entity, std),
		})
	}
	if std < opts.ConsistencyStdDev && n >= opts.ConsistencyPoints {
		out = append(out, models.DetectedPattern{
			Kind:        models.PatternConsistency,
			Entity:      s.entity,
			Confidence:  math.Max(50, 100-std*30),
			Evidence:    evidence,
			Description: fmt.Sprintf("%s probability very stable (%.1f%% ±%.1f%%)", s.entity, mean, std),
		})
	}
	if n >= opts.MinTrendPoints {
		if m := slope(values); math.Abs(m) > opts.TrendSlope {
			kind, direction := models.PatternOverestimation, "up"
			if m < 0 {
				kind, direction = models.PatternUnderestimation, "down"
			}
			out = append(out, models.DetectedPattern{
				Kind:        kind,
				Entity:      s.entity,
				Confidence:  math.Min(100, math.Abs(m)*20),
				Evidence:    evidence,
				Description: fmt.Sprintf("%s probability trending %s (%.1f%% per cycle)", s.entity, direction, math.Abs(m)),
			})
		}
	}
	return out
}

func seriesEvidence(s series, max int) []models.Evidence {
	pts := s.points
	if max > 0 && len(pts) > max {
		pts = pts[len(pts)-max:]
	}
	ev := make([]models.Evidence, len(pts))
	for i, p := range pts {
		v := p.value
		ev[i] = models.Evidence{CycleNumber: p.cycle, Value: &v, RecordedAt: p.recordedAt}
	}
	return ev
}

type categoryStats struct {
	matched   int
	validated int
	evidence  []models.Evidence
}

func analyzeCategories(history models.History, opts Options) []models.DetectedPattern {
	stats := make(map[string]*categoryStats)
	// Oldest cycle first so evidence keeps the most recent claims once bounded.
	for i := len(history) - 1; i >= 0; i-- {
		rec := history[i]
		for _, c := range rec.Claims {
			for _, name := range opts.Classifier.Classify(c.Claim.Text) {
				st, ok := stats[name]
				if !ok {
					st = &categoryStats{}
					stats[name] = st
				}
				st.matched++
				if c.Claim.InitialValid {
					st.validated++
				}
				validated := c.Claim.InitialValid
				st.evidence = append(st.evidence, models.Evidence{
					CycleNumber: rec.Cycle.Number,
					Text:        truncate(c.Claim.Text, 100),
					Validated:   &validated,
					RecordedAt:  c.Claim.CreatedAt,
				})
			}
		}
	}

	var out []models.DetectedPattern
	for _, name := range opts.Classifier.Categories() {
		st, ok := stats[name]
		if !ok || st.matched < opts.MinCategoryClaims {
			continue
		}
		rate := float64(st.validated) / float64(st.matched) * 100
		evidence := st.evidence
		if opts.MaxEvidence > 0 && len(evidence) > opts.MaxEvidence {
			evidence = evidence[len(evidence)-opts.MaxEvidence:]
		}

		if rate < opts.WeakRate {
			out = append(out, models.DetectedPattern{
				Kind:        models.PatternCategoryBias,
				Entity:      name,
				Confidence:  math.Min(100, (50-rate)*2),
				Evidence:    evidence,
				Description: fmt.Sprintf("Only %.0f%% of %s claims validated (%d/%d)", rate, name, st.validated, st.matched),
			})
		}
		if rate > opts.StrongRate && st.matched >= opts.StrongCategoryClaims {
			out = append(out, models.DetectedPattern{
				Kind:        models.PatternConsistency,
				Entity:      name + "_predictions",
				Confidence:  math.Min(100, rate),
				Evidence:    evidence,
				Description: fmt.Sprintf("Strong %s prediction accuracy: %.0f%% validated (%d/%d)", name, rate, st.validated, st.matched),
			})
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
