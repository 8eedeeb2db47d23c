// Package services runs the feedback pipeline against a store and publishes
// its results.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/j3m2b/Baseball-Scientist/accuracy"
	"github.com/j3m2b/Baseball-Scientist/compression"
	"github.com/j3m2b/Baseball-Scientist/config"
	"github.com/j3m2b/Baseball-Scientist/models"
	"github.com/j3m2b/Baseball-Scientist/patterns"
	"github.com/j3m2b/Baseball-Scientist/store"
	"github.com/j3m2b/Baseball-Scientist/tuning"
)

type Options struct {
	AccuracyWindow int
	PatternWindow  int
	MaxCycles      int
	ProjectAt      int
	DigestTTL      time.Duration
	Accuracy       accuracy.Options
	Patterns       patterns.Options
	Compression    compression.Options
	Budget         compression.Budget
	Logger         *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		AccuracyWindow: accuracy.DefaultWindow,
		PatternWindow:  patterns.DefaultWindow,
		MaxCycles:      compression.DefaultMaxCycles,
		ProjectAt:      compression.DefaultProjectionCycles,
		DigestTTL:      time.Hour,
		Accuracy:       accuracy.DefaultOptions(),
		Patterns:       patterns.DefaultOptions(),
		Compression:    compression.DefaultOptions(),
		Budget:         compression.DefaultBudget(),
	}
}

// OptionsFromConfig builds pipeline options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	opts := DefaultOptions()
	opts.AccuracyWindow = cfg.Service.AccuracyWindow
	opts.PatternWindow = cfg.Service.PatternWindow
	opts.MaxCycles = cfg.Service.MaxCycles
	opts.ProjectAt = cfg.Service.ProjectAt
	opts.DigestTTL = cfg.Redis.DigestTTL
	opts.Patterns.Classifier = patterns.NewKeywordClassifier(cfg.Analysis.Categories)
	opts.Compression.Tiers = cfg.Analysis.Tiers
	opts.Budget = cfg.Analysis.Budget
	opts.Logger = logger
	return opts
}

// Report is everything one feedback cycle produced.
type Report struct {
	Metrics  accuracy.Metrics         `json:"accuracy"`
	Config   models.AdaptiveConfig    `json:"adaptive_config"`
	Retuned  bool                     `json:"retuned"`
	Patterns []models.DetectedPattern `json:"patterns"`
	Context  compression.Result       `json:"context"`
	Budget   compression.BudgetReport `json:"budget"`
	Duration time.Duration            `json:"duration"`
}

// Prompt assembles the prompt-ready text sections of the report.
func (r Report) Prompt() compression.PromptComponents {
	return compression.PromptComponents{
		History:      r.Context.Text,
		Patterns:     patterns.FormatForPrompt(r.Patterns),
		Accuracy:     accuracy.FormatForPrompt(r.Metrics),
		TuningConfig: tuning.FormatForPrompt(r.Config),
	}
}

type FeedbackService struct {
	store  store.Store
	cache  *CacheService
	opts   Options
	logger *slog.Logger
}

func NewFeedbackService(st store.Store, cache *CacheService, opts Options) *FeedbackService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts.Accuracy.Logger = logger
	opts.Patterns.Logger = logger
	return &FeedbackService{store: st, cache: cache, opts: opts, logger: logger}
}

func (s *FeedbackService) maxCycles() int {
	if s.opts.MaxCycles <= 0 {
		return compression.DefaultMaxCycles
	}
	return s.opts.MaxCycles
}

func (s *FeedbackService) historyLimit() int {
	limit := accuracy.ClampWindow(s.opts.AccuracyWindow)
	if s.opts.PatternWindow > limit {
		limit = s.opts.PatternWindow
	}
	if s.maxCycles() > limit {
		limit = s.maxCycles()
	}
	return limit
}

// RunCycle computes accuracy and adapts the active configuration. It detects
// and persists patterns and compresses history concurrently, then checks the
// prompt budget. Any store failure aborts the cycle.
func (s *FeedbackService) RunCycle(ctx context.Context) (Report, error) {
	start := time.Now()
	defer func() {
		cycleDuration.Observe(time.Since(start).Seconds())
	}()
	cyclesRun.Inc()

	report, err := s.runCycle(ctx)
	report.Duration = time.Since(start)
	if err != nil {
		cycleFailures.Inc()
		s.logger.Error("feedback cycle failed", "error", err, "duration", report.Duration)
		return report, err
	}

	s.logger.Info("feedback cycle completed",
		"cycles", report.Metrics.CyclesAnalyzed,
		"evaluated", report.Metrics.Evaluated,
		"trend", report.Metrics.Trend,
		"retuned", report.Retuned,
		"patterns", len(report.Patterns),
		"context_tokens", report.Context.TokenEstimate,
		"budget", report.Budget.Level,
		"duration", report.Duration)
	return report, nil
}

func (s *FeedbackService) runCycle(ctx context.Context) (Report, error) {
	var report Report

	history, err := s.store.LoadHistory(ctx, s.historyLimit())
	if err != nil {
		storeFailures.Inc()
		return report, fmt.Errorf("load history: %w", err)
	}

	report.Metrics = accuracy.Compute(history.Limit(accuracy.ClampWindow(s.opts.AccuracyWindow)), s.opts.Accuracy)
	if report.Metrics.OverallAccuracy != nil {
		overallAccuracy.Set(*report.Metrics.OverallAccuracy)
	}
	if report.Metrics.CalibrationScore != nil {
		calibrationScore.Set(*report.Metrics.CalibrationScore)
	}

	report.Config, report.Retuned, err = s.adapt(ctx, report.Metrics)
	if err != nil {
		return report, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := s.detect(gctx, history.Limit(s.opts.PatternWindow))
		report.Patterns = found
		return err
	})
	g.Go(func() error {
		report.Context = compression.Compress(history, s.maxCycles(), s.opts.Compression)
		if err := s.cache.Set(gctx, DigestKey, report.Context, s.opts.DigestTTL); err != nil {
			s.logger.Warn("cache history digest failed", "error", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return report, err
	}

	report.Budget = compression.CheckBudget(report.Prompt().Components(), s.opts.Budget, s.opts.Compression.Estimator)
	for name, n := range report.Budget.PerComponent {
		contextTokens.WithLabelValues(name).Set(float64(n))
	}
	if report.Budget.Level != compression.LevelOK {
		s.logger.Warn("context budget", "level", report.Budget.Level, "total", report.Budget.Total, "warning", report.Budget.Warning)
	}

	if report.Retuned {
		if err := s.cache.Publish(ctx, ConfigChannel, report.Config); err != nil {
			s.logger.Warn("publish adaptive config failed", "error", err)
		} else if s.cache.Available() {
			configsPublished.Inc()
		}
	}
	return report, nil
}

// adapt derives and persists a new configuration when enough outcomes are in.
// Otherwise it keeps the stored configuration, or the baseline when none exists.
func (s *FeedbackService) adapt(ctx context.Context, m accuracy.Metrics) (models.AdaptiveConfig, bool, error) {
	if tuning.ShouldRetune(m) {
		cfg, err := s.store.UpsertActiveConfig(ctx, tuning.Derive(m))
		if err != nil {
			storeFailures.Inc()
			return cfg, false, fmt.Errorf("update adaptive config: %w", err)
		}
		configsUpdated.Inc()
		return cfg, true, nil
	}

	cfg, err := s.store.ActiveConfig(ctx)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Info("not enough evaluated data, using baseline config", "evaluated", m.Evaluated)
		return tuning.Baseline(), false, nil
	}
	if err != nil {
		storeFailures.Inc()
		return cfg, false, fmt.Errorf("read adaptive config: %w", err)
	}
	return cfg, false, nil
}

func (s *FeedbackService) detect(ctx context.Context, history models.History) ([]models.DetectedPattern, error) {
	found := patterns.Detect(history, s.opts.Patterns)
	stored := make([]models.DetectedPattern, 0, len(found))
	for _, p := range found {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		saved, err := s.store.UpsertPattern(ctx, p)
		if err != nil {
			storeFailures.Inc()
			return stored, fmt.Errorf("upsert pattern: %w", err)
		}
		patternsUpserted.Inc()
		stored = append(stored, saved)
	}
	return stored, nil
}

// Context returns the cached history digest, compressing afresh on a miss.
func (s *FeedbackService) Context(ctx context.Context) (compression.Result, error) {
	var res compression.Result
	found, err := s.cache.Get(ctx, DigestKey, &res)
	if err != nil {
		s.logger.Warn("read cached digest failed", "error", err)
	}
	if found {
		return res, nil
	}
	history, err := s.store.LoadHistory(ctx, s.maxCycles())
	if err != nil {
		storeFailures.Inc()
		return res, fmt.Errorf("load history: %w", err)
	}
	res = compression.Compress(history, s.maxCycles(), s.opts.Compression)
	if err := s.cache.Set(ctx, DigestKey, res, s.opts.DigestTTL); err != nil {
		s.logger.Warn("cache history digest failed", "error", err)
	}
	return res, nil
}

// Stats reports compression effectiveness over the stored history.
func (s *FeedbackService) Stats(ctx context.Context, projectAt int) (compression.Stats, error) {
	if projectAt <= 0 {
		projectAt = s.opts.ProjectAt
	}
	total, err := s.store.CountCycles(ctx)
	if err != nil {
		storeFailures.Inc()
		return compression.Stats{}, fmt.Errorf("count cycles: %w", err)
	}
	history, err := s.store.LoadHistory(ctx, s.maxCycles())
	if err != nil {
		storeFailures.Inc()
		return compression.Stats{}, fmt.Errorf("load history: %w", err)
	}
	return compression.ComputeStats(total, history, s.maxCycles(), projectAt, s.opts.Compression), nil
}

func (s *FeedbackService) RecordClaimOutcome(ctx context.Context, o models.ClaimOutcome) error {
	if err := s.store.RecordClaimOutcome(ctx, o); err != nil {
		return fmt.Errorf("record claim outcome: %w", err)
	}
	outcomesRecorded.WithLabelValues("claim").Inc()
	s.invalidate(ctx)
	return nil
}

func (s *FeedbackService) RecordEstimateOutcome(ctx context.Context, o models.EstimateOutcome) (models.EstimateOutcome, error) {
	saved, err := s.store.RecordEstimateOutcome(ctx, o)
	if err != nil {
		return saved, fmt.Errorf("record estimate outcome: %w", err)
	}
	outcomesRecorded.WithLabelValues("estimate").Inc()
	s.invalidate(ctx)
	return saved, nil
}

// Reset deletes all cycle data and drops the cached digest.
func (s *FeedbackService) Reset(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		storeFailures.Inc()
		return fmt.Errorf("reset: %w", err)
	}
	s.invalidate(ctx)
	s.logger.Warn("all cycle data deleted")
	return nil
}

func (s *FeedbackService) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, DigestKey); err != nil {
		s.logger.Warn("drop cached digest failed", "error", err)
	}
}
