package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/j3m2b/Baseball-Scientist/config"
	"github.com/j3m2b/Baseball-Scientist/models"
	"github.com/j3m2b/Baseball-Scientist/services"
	"github.com/j3m2b/Baseball-Scientist/store"
)

func init() {
	onceCmd.Flags().BoolP("json", "j", false, "Output the full report as JSON")
	onceCmd.Flags().Bool("dry-run", false, "Run against an in-memory copy; nothing is persisted or published")
	statsCmd.Flags().Int("project", 0, "Project the digest size to this many cycles (default from PROJECT_AT_CYCLES)")
	resetCmd.Flags().Bool("yes", false, "Confirm deletion of all cycle data")

	claimOutcomeCmd.Flags().Bool("actual", false, "Whether the claim turned out true")
	claimOutcomeCmd.Flags().String("evidence", "", "Evidence for the outcome")
	estimateOutcomeCmd.Flags().String("result", string(models.ResultPending),
		"One of won_top_prize, reached_final, reached_playoffs, missed_playoffs, pending")
	outcomeCmd.AddCommand(claimOutcomeCmd, estimateOutcomeCmd)

	rootCmd.AddCommand(runCmd, onceCmd, statsCmd, migrateCmd, outcomeCmd, resetCmd, watchCmd)
}

var rootCmd = &cobra.Command{
	Use:           "feedbackd",
	Short:         "Feedback and calibration for research cycles",
	Long:          "Scores past claims and estimates, detects bias patterns, tunes the next cycle and compresses history into prompt context.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

type app struct {
	cfg     *config.Config
	store   store.Store
	opts    services.Options
	service *services.FeedbackService
	close   func()
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	pool, err := store.Connect(ctx, cfg.Database.GetDSN())
	if err != nil {
		return nil, err
	}
	slog.Info("db connected")

	cache, err := services.NewCacheService(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, continuing without cache", "error", err)
	} else if cache.Available() {
		slog.Info("redis connected")
	}

	st := store.NewPostgres(pool)
	opts := services.OptionsFromConfig(cfg, slog.Default())
	return &app{
		cfg:     cfg,
		store:   st,
		opts:    opts,
		service: services.NewFeedbackService(st, cache, opts),
		close: func() {
			cache.Close()
			pool.Close()
		},
	}, nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run feedback cycles on an interval and serve /metrics and /health",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		go serveHTTP(ctx, a.cfg.Service.MetricsAddr)

		slog.Info("feedback service running",
			"interval", a.cfg.Service.Interval,
			"accuracy_window", a.cfg.Service.AccuracyWindow,
			"pattern_window", a.cfg.Service.PatternWindow,
			"max_cycles", a.cfg.Service.MaxCycles)

		// Run first cycle immediately
		_, _ = a.service.RunCycle(ctx)

		ticker := time.NewTicker(a.cfg.Service.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_, _ = a.service.RunCycle(ctx)
			case <-ctx.Done():
				slog.Info("feedback service shutting down")
				return nil
			}
		}
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single feedback cycle and print the prompt context",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		svc := a.service
		if dryRun {
			snap, err := store.Snapshot(cmd.Context(), a.store, 0)
			if err != nil {
				return err
			}
			svc = services.NewFeedbackService(snap, nil, a.opts)
			slog.Info("dry run, results are not persisted or published")
		}

		report, err := svc.RunCycle(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(report)
		}
		p := report.Prompt()
		for _, section := range []string{p.History, p.Accuracy, p.Patterns, p.TuningConfig} {
			if section != "" {
				fmt.Println(section)
				fmt.Println()
			}
		}
		fmt.Printf("Context: %d tokens (%s)\n", report.Budget.Total, report.Budget.Level)
		if report.Budget.Warning != "" {
			fmt.Println(report.Budget.Warning)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show history compression statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, _ := cmd.Flags().GetInt("project")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		st, err := a.service.Stats(cmd.Context(), project)
		if err != nil {
			return err
		}
		return printJSON(st)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := store.Migrate(cmd.Context(), cfg.Database.GetDSN()); err != nil {
			return err
		}
		slog.Info("schema up to date")
		return nil
	},
}

var outcomeCmd = &cobra.Command{
	Use:   "outcome",
	Short: "Record real-world outcomes",
}

var claimOutcomeCmd = &cobra.Command{
	Use:   "claim <claim-id>",
	Short: "Record whether a claim held",
	Example: `
feedbackd outcome claim 3f1c2a8e-0d5b-4d55-9a61-2f0f8f3b9c11 --actual=false --evidence "Traded in July"
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid claim id: %w", err)
		}
		actual, _ := cmd.Flags().GetBool("actual")
		evidence, _ := cmd.Flags().GetString("evidence")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		return a.service.RecordClaimOutcome(cmd.Context(), models.ClaimOutcome{
			ClaimID:     id,
			Actual:      actual,
			OutcomeDate: time.Now().UTC(),
			Evidence:    evidence,
		})
	},
}

var estimateOutcomeCmd = &cobra.Command{
	Use:   "estimate <estimate-id>",
	Short: "Record the final result for an estimate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid estimate id: %w", err)
		}
		result, _ := cmd.Flags().GetString("result")

		o := models.EstimateOutcome{EstimateID: id, Result: models.EstimateResult(strings.ToLower(result))}
		if o.Result.Final() {
			now := time.Now().UTC()
			o.ResultDate = &now
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		saved, err := a.service.RecordEstimateOutcome(cmd.Context(), o)
		if err != nil {
			return err
		}
		return printJSON(saved)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all cycles with their claims, estimates and outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return errors.New("reset deletes all cycle data; pass --yes to confirm")
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()
		return a.service.Reset(cmd.Context())
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Log adaptive configurations as they are published",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.Redis.URL == "" {
			return errors.New("watch needs REDIS_URL")
		}
		cache, err := services.NewCacheService(cmd.Context(), cfg.Redis)
		if err != nil {
			return err
		}
		defer cache.Close()

		slog.Info("watching adaptive config updates", "channel", services.ConfigChannel)
		return cache.WatchConfigs(cmd.Context(), func(c models.AdaptiveConfig) {
			slog.Info("adaptive config updated",
				"boldness", c.Boldness,
				"surprise_low", c.SurpriseLow,
				"surprise_high", c.SurpriseHigh,
				"confidence_adjustment", c.ConfidenceAdjustment,
				"target_claims", c.TargetClaims,
				"based_on_evaluated", c.BasedOnEvaluated,
				"rationale", c.Rationale)
		})
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serveHTTP(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics server listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics server failed", "error", err)
	}
}
