package store

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/j3m2b/Baseball-Scientist/models"
)

var schema = []any{
	&models.Cycle{},
	&models.Claim{},
	&models.ClaimOutcome{},
	&models.Estimate{},
	&models.EstimateOutcome{},
	&models.Reflection{},
	&models.DetectedPattern{},
	&models.AdaptiveConfig{},
}

type foreignKey struct {
	table, name, column, ref string
}

var cascades = []foreignKey{
	{"claims", "fk_claims_cycle", "cycle_id", "cycles(id)"},
	{"estimates", "fk_estimates_cycle", "cycle_id", "cycles(id)"},
	{"reflections", "fk_reflections_cycle", "cycle_id", "cycles(id)"},
	{"claim_outcomes", "fk_claim_outcomes_claim", "claim_id", "claims(id)"},
	{"estimate_outcomes", "fk_estimate_outcomes_estimate", "estimate_id", "estimates(id)"},
}

// Migrate creates or updates the schema. It is safe to run repeatedly.
func Migrate(ctx context.Context, dsn string) error {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db handle: %w", err)
	}
	defer sqlDB.Close()

	db = db.WithContext(ctx)
	if err := db.AutoMigrate(schema...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, fk := range cascades {
			stmt := fmt.Sprintf(`ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s`, fk.table, fk.name)
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("drop %s: %w", fk.name, err)
			}
			stmt = fmt.Sprintf(`ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s ON DELETE CASCADE`,
				fk.table, fk.name, fk.column, fk.ref)
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("add %s: %w", fk.name, err)
			}
		}
		// At most one active configuration row.
		if err := tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_adaptive_config_active
			ON adaptive_config (is_active) WHERE is_active`).Error; err != nil {
			return fmt.Errorf("create active config index: %w", err)
		}
		return nil
	})
}
