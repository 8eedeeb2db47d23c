package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/j3m2b/Baseball-Scientist/models"
)

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db pool init failed: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	return pool, nil
}

func (p *Postgres) CountCycles(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM cycles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cycles: %w", err)
	}
	return n, nil
}

func (p *Postgres) LoadHistory(ctx context.Context, limit int) (models.History, error) {
	// LIMIT NULL returns every row.
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, cycle_number, title, summary, created_at
		FROM cycles
		ORDER BY cycle_number DESC
		LIMIT $1
	`, lim)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var history models.History
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var c models.Cycle
		if err := rows.Scan(&c.ID, &c.Number, &c.Title, &c.Summary, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		index[c.ID] = len(history)
		history = append(history, models.CycleRecord{Cycle: c})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}
	if len(history) == 0 {
		return history, nil
	}
	oldest := history[len(history)-1].Cycle.Number

	if err := p.loadClaims(ctx, oldest, history, index); err != nil {
		return nil, err
	}
	if err := p.loadEstimates(ctx, oldest, history, index); err != nil {
		return nil, err
	}
	if err := p.loadReflections(ctx, oldest, history, index); err != nil {
		return nil, err
	}
	return history, nil
}

func (p *Postgres) loadClaims(ctx context.Context, oldest int, history models.History, index map[uuid.UUID]int) error {
	rows, err := p.pool.Query(ctx, `
		SELECT cl.id, cl.cycle_id, cl.claim, cl.is_validated, cl.surprise_level, cl.surprise_score, cl.evidence, cl.created_at,
		       o.actual_outcome, o.outcome_date, o.evidence, o.updated_at
		FROM claims cl
		JOIN cycles c ON c.id = cl.cycle_id
		LEFT JOIN claim_outcomes o ON o.claim_id = cl.id
		WHERE c.cycle_number >= $1
		ORDER BY cl.created_at, cl.id
	`, oldest)
	if err != nil {
		return fmt.Errorf("query claims: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cl          models.Claim
			actual      *bool
			outcomeDate *time.Time
			evidence    *string
			updatedAt   *time.Time
		)
		if err := rows.Scan(&cl.ID, &cl.CycleID, &cl.Text, &cl.InitialValid, &cl.Surprise, &cl.SurpriseScore, &cl.Evidence, &cl.CreatedAt,
			&actual, &outcomeDate, &evidence, &updatedAt); err != nil {
			return fmt.Errorf("scan claim: %w", err)
		}
		i, ok := index[cl.CycleID]
		if !ok {
			continue
		}
		rec := models.ClaimRecord{Claim: cl}
		if actual != nil {
			rec.Outcome = &models.ClaimOutcome{ClaimID: cl.ID, Actual: *actual}
			if outcomeDate != nil {
				rec.Outcome.OutcomeDate = *outcomeDate
			}
			if evidence != nil {
				rec.Outcome.Evidence = *evidence
			}
			if updatedAt != nil {
				rec.Outcome.UpdatedAt = *updatedAt
			}
		}
		history[i].Claims = append(history[i].Claims, rec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate claims: %w", err)
	}
	return nil
}

func (p *Postgres) loadEstimates(ctx context.Context, oldest int, history models.History, index map[uuid.UUID]int) error {
	rows, err := p.pool.Query(ctx, `
		SELECT e.id, e.cycle_id, e.entity_code, e.entity_name, e.probability, e.rank, e.change_from_previous, e.created_at,
		       o.actual_result, o.result_date, o.calibration_score, o.updated_at
		FROM estimates e
		JOIN cycles c ON c.id = e.cycle_id
		LEFT JOIN estimate_outcomes o ON o.estimate_id = e.id
		WHERE c.cycle_number >= $1
		ORDER BY e.rank, e.entity_name
	`, oldest)
	if err != nil {
		return fmt.Errorf("query estimates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e          models.Estimate
			result     *string
			resultDate *time.Time
			score      *float64
			updatedAt  *time.Time
		)
		if err := rows.Scan(&e.ID, &e.CycleID, &e.EntityCode, &e.Entity, &e.Probability, &e.Rank, &e.ChangeFromPrevious, &e.CreatedAt,
			&result, &resultDate, &score, &updatedAt); err != nil {
			return fmt.Errorf("scan estimate: %w", err)
		}
		i, ok := index[e.CycleID]
		if !ok {
			continue
		}
		rec := models.EstimateRecord{Estimate: e}
		if result != nil {
			rec.Outcome = &models.EstimateOutcome{
				EstimateID:       e.ID,
				Result:           models.EstimateResult(*result),
				ResultDate:       resultDate,
				CalibrationScore: score,
			}
			if updatedAt != nil {
				rec.Outcome.UpdatedAt = *updatedAt
			}
		}
		history[i].Estimates = append(history[i].Estimates, rec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate estimates: %w", err)
	}
	return nil
}

func (p *Postgres) loadReflections(ctx context.Context, oldest int, history models.History, index map[uuid.UUID]int) error {
	rows, err := p.pool.Query(ctx, `
		SELECT r.id, r.cycle_id, r.reflection_type, r.content, r.created_at
		FROM reflections r
		JOIN cycles c ON c.id = r.cycle_id
		WHERE c.cycle_number >= $1
		ORDER BY r.created_at
	`, oldest)
	if err != nil {
		return fmt.Errorf("query reflections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.Reflection
		if err := rows.Scan(&r.ID, &r.CycleID, &r.Kind, &r.Content, &r.CreatedAt); err != nil {
			return fmt.Errorf("scan reflection: %w", err)
		}
		if i, ok := index[r.CycleID]; ok {
			history[i].Reflections = append(history[i].Reflections, r)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate reflections: %w", err)
	}
	return nil
}

func (p *Postgres) UpsertPattern(ctx context.Context, dp models.DetectedPattern) (models.DetectedPattern, error) {
	evidence, err := json.Marshal(dp.Evidence)
	if err != nil {
		return dp, fmt.Errorf("marshal evidence: %w", err)
	}
	err = p.pool.QueryRow(ctx, `
		INSERT INTO detected_patterns (id, pattern_type, entity, confidence, evidence, description, cycle_count, last_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7)
		ON CONFLICT (pattern_type, entity) DO UPDATE SET
			confidence = EXCLUDED.confidence,
			evidence = EXCLUDED.evidence,
			description = EXCLUDED.description,
			cycle_count = detected_patterns.cycle_count + 1,
			last_updated_at = EXCLUDED.last_updated_at
		RETURNING id, cycle_count, last_updated_at
	`, newID(), dp.Kind, dp.Entity, dp.Confidence, evidence, dp.Description, now()).
		Scan(&dp.ID, &dp.ObservationCount, &dp.LastUpdatedAt)
	if err != nil {
		return dp, fmt.Errorf("upsert pattern %s/%s: %w", dp.Kind, dp.Entity, err)
	}
	return dp, nil
}

func (p *Postgres) ListPatterns(ctx context.Context) ([]models.DetectedPattern, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, pattern_type, entity, confidence, evidence, description, cycle_count, last_updated_at
		FROM detected_patterns
		ORDER BY confidence DESC, pattern_type, entity
	`)
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()

	var out []models.DetectedPattern
	for rows.Next() {
		var (
			dp       models.DetectedPattern
			evidence []byte
		)
		if err := rows.Scan(&dp.ID, &dp.Kind, &dp.Entity, &dp.Confidence, &evidence, &dp.Description,
			&dp.ObservationCount, &dp.LastUpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		if len(evidence) > 0 {
			if err := json.Unmarshal(evidence, &dp.Evidence); err != nil {
				return nil, fmt.Errorf("decode evidence for %s/%s: %w", dp.Kind, dp.Entity, err)
			}
		}
		out = append(out, dp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patterns: %w", err)
	}
	return out, nil
}

const configColumns = `id, boldness_level, surprise_threshold_low, surprise_threshold_high, confidence_adjustment,
	claim_count_target, rationale, based_on_accuracy, based_on_trend, based_on_evaluated, is_active, updated_at`

func scanConfig(row pgx.Row) (models.AdaptiveConfig, error) {
	var (
		c     models.AdaptiveConfig
		trend *string
	)
	err := row.Scan(&c.ID, &c.Boldness, &c.SurpriseLow, &c.SurpriseHigh, &c.ConfidenceAdjustment,
		&c.TargetClaims, &c.Rationale, &c.BasedOnAccuracy, &trend, &c.BasedOnEvaluated, &c.IsActive, &c.UpdatedAt)
	if trend != nil {
		c.BasedOnTrend = models.Trend(*trend)
	}
	return c, err
}

func (p *Postgres) ActiveConfig(ctx context.Context) (models.AdaptiveConfig, error) {
	c, err := scanConfig(p.pool.QueryRow(ctx, `SELECT `+configColumns+` FROM adaptive_config WHERE is_active LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return c, ErrNotFound
	}
	if err != nil {
		return c, fmt.Errorf("query active config: %w", err)
	}
	return c, nil
}

func (p *Postgres) UpsertActiveConfig(ctx context.Context, c models.AdaptiveConfig) (models.AdaptiveConfig, error) {
	if c.SurpriseLow >= c.SurpriseHigh {
		return c, fmt.Errorf("%w: surprise thresholds %.2f >= %.2f", ErrInvalidRecord, c.SurpriseLow, c.SurpriseHigh)
	}
	var trend *string
	if c.BasedOnTrend != "" {
		s := string(c.BasedOnTrend)
		trend = &s
	}
	out, err := scanConfig(p.pool.QueryRow(ctx, `
		INSERT INTO adaptive_config (id, boldness_level, surprise_threshold_low, surprise_threshold_high,
			confidence_adjustment, claim_count_target, rationale, based_on_accuracy, based_on_trend,
			based_on_evaluated, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE, $11)
		ON CONFLICT (is_active) WHERE is_active DO UPDATE SET
			boldness_level = EXCLUDED.boldness_level,
			surprise_threshold_low = EXCLUDED.surprise_threshold_low,
			surprise_threshold_high = EXCLUDED.surprise_threshold_high,
			confidence_adjustment = EXCLUDED.confidence_adjustment,
			claim_count_target = EXCLUDED.claim_count_target,
			rationale = EXCLUDED.rationale,
			based_on_accuracy = EXCLUDED.based_on_accuracy,
			based_on_trend = EXCLUDED.based_on_trend,
			based_on_evaluated = EXCLUDED.based_on_evaluated,
			updated_at = EXCLUDED.updated_at
		RETURNING `+configColumns,
		newID(), c.Boldness, c.SurpriseLow, c.SurpriseHigh, c.ConfidenceAdjustment, c.TargetClaims,
		c.Rationale, c.BasedOnAccuracy, trend, c.BasedOnEvaluated, now()))
	if err != nil {
		return c, fmt.Errorf("upsert active config: %w", err)
	}
	return out, nil
}

func (p *Postgres) RecordClaimOutcome(ctx context.Context, o models.ClaimOutcome) error {
	tag, err := p.pool.Exec(ctx, `
		INSERT INTO claim_outcomes (claim_id, actual_outcome, outcome_date, evidence, updated_at)
		SELECT id, $2::boolean, $3::timestamptz, $4::text, $5::timestamptz FROM claims WHERE id = $1
		ON CONFLICT (claim_id) DO UPDATE SET
			actual_outcome = EXCLUDED.actual_outcome,
			outcome_date = EXCLUDED.outcome_date,
			evidence = EXCLUDED.evidence,
			updated_at = EXCLUDED.updated_at
	`, o.ClaimID, o.Actual, o.OutcomeDate, o.Evidence, now())
	if err != nil {
		return fmt.Errorf("record claim outcome %s: %w", o.ClaimID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("claim %s: %w", o.ClaimID, ErrNotFound)
	}
	return nil
}

func (p *Postgres) RecordEstimateOutcome(ctx context.Context, o models.EstimateOutcome) (models.EstimateOutcome, error) {
	if !o.Result.Valid() {
		return o, fmt.Errorf("%w: unknown result %q", ErrInvalidRecord, o.Result)
	}
	var probability float64
	err := p.pool.QueryRow(ctx, `SELECT probability FROM estimates WHERE id = $1`, o.EstimateID).Scan(&probability)
	if errors.Is(err, pgx.ErrNoRows) {
		return o, fmt.Errorf("estimate %s: %w", o.EstimateID, ErrNotFound)
	}
	if err != nil {
		return o, fmt.Errorf("query estimate %s: %w", o.EstimateID, err)
	}

	o.CalibrationScore = nil
	if score, ok := models.CalibrationScore(probability, o.Result); ok {
		o.CalibrationScore = &score
	}
	o.UpdatedAt = now()
	_, err = p.pool.Exec(ctx, `
		INSERT INTO estimate_outcomes (estimate_id, actual_result, result_date, calibration_score, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (estimate_id) DO UPDATE SET
			actual_result = EXCLUDED.actual_result,
			result_date = EXCLUDED.result_date,
			calibration_score = EXCLUDED.calibration_score,
			updated_at = EXCLUDED.updated_at
	`, o.EstimateID, string(o.Result), o.ResultDate, o.CalibrationScore, o.UpdatedAt)
	if err != nil {
		return o, fmt.Errorf("record estimate outcome %s: %w", o.EstimateID, err)
	}
	return o, nil
}

// Reset deletes all cycles. Claims, estimates, reflections and their
// outcomes go with them through ON DELETE CASCADE.
func (p *Postgres) Reset(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM cycles`); err != nil {
		return fmt.Errorf("reset cycles: %w", err)
	}
	return nil
}
