package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/j3m2b/Baseball-Scientist/compression"
	"github.com/j3m2b/Baseball-Scientist/patterns"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Service  ServiceConfig
	Analysis AnalysisConfig
}

type DatabaseConfig struct {
	// DSN overrides the discrete fields when set.
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (d DatabaseConfig) GetDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type RedisConfig struct {
	// URL is empty when no cache is configured.
	URL       string
	DigestTTL time.Duration
}

type ServiceConfig struct {
	MetricsAddr    string        `validate:"required"`
	Interval       time.Duration `validate:"gt=0"`
	AccuracyWindow int           `validate:"gte=1,lte=200"`
	PatternWindow  int           `validate:"gte=1"`
	MaxCycles      int           `validate:"gte=1"`
	ProjectAt      int           `validate:"gte=1"`
}

// AnalysisConfig holds the tunable tables. It can be loaded from YAML.
type AnalysisConfig struct {
	Categories []patterns.Category `yaml:"categories" validate:"required,min=1,dive"`
	Tiers      []compression.Tier  `yaml:"tiers" validate:"required,min=1,dive"`
	Budget     compression.Budget  `yaml:"budget"`
}

func DefaultAnalysis() AnalysisConfig {
	return AnalysisConfig{
		Categories: patterns.DefaultCategories,
		Tiers:      compression.DefaultTiers,
		Budget:     compression.DefaultBudget(),
	}
}

var validate = validator.New()

func LoadConfig() (*Config, error) {
	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	intervalSec, err := getIntEnv("CYCLE_INTERVAL_SEC", 3600)
	if err != nil {
		return nil, fmt.Errorf("invalid CYCLE_INTERVAL_SEC: %w", err)
	}
	digestTTLSec, err := getIntEnv("DIGEST_TTL_SEC", 3600)
	if err != nil {
		return nil, fmt.Errorf("invalid DIGEST_TTL_SEC: %w", err)
	}
	accuracyWindow, err := getIntEnv("ACCURACY_WINDOW", 50)
	if err != nil {
		return nil, fmt.Errorf("invalid ACCURACY_WINDOW: %w", err)
	}
	patternWindow, err := getIntEnv("PATTERN_WINDOW", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid PATTERN_WINDOW: %w", err)
	}
	maxCycles, err := getIntEnv("MAX_CONTEXT_CYCLES", compression.DefaultMaxCycles)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_CONTEXT_CYCLES: %w", err)
	}
	projectAt, err := getIntEnv("PROJECT_AT_CYCLES", compression.DefaultProjectionCycles)
	if err != nil {
		return nil, fmt.Errorf("invalid PROJECT_AT_CYCLES: %w", err)
	}

	analysis := DefaultAnalysis()
	if path := os.Getenv("ANALYSIS_CONFIG"); path != "" {
		analysis, err = LoadAnalysis(path)
		if err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			DSN:      os.Getenv("DB_DSN"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "feedback"),
			Password: getEnv("DB_PASSWORD", "feedback_dev_password"),
			Name:     getEnv("DB_NAME", "feedback"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:       os.Getenv("REDIS_URL"),
			DigestTTL: time.Duration(digestTTLSec) * time.Second,
		},
		Service: ServiceConfig{
			MetricsAddr:    getEnv("METRICS_ADDR", ":8080"),
			Interval:       time.Duration(intervalSec) * time.Second,
			AccuracyWindow: accuracyWindow,
			PatternWindow:  patternWindow,
			MaxCycles:      maxCycles,
			ProjectAt:      projectAt,
		},
		Analysis: analysis,
	}

	if err := validate.Struct(cfg.Service); err != nil {
		return nil, fmt.Errorf("invalid service config: %w", err)
	}
	return cfg, nil
}

// LoadAnalysis reads an analysis YAML file. Sections left out keep their defaults.
func LoadAnalysis(path string) (AnalysisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AnalysisConfig{}, fmt.Errorf("read analysis config %s: %w", path, err)
	}
	return ParseAnalysis(data)
}

func ParseAnalysis(data []byte) (AnalysisConfig, error) {
	var raw AnalysisConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return AnalysisConfig{}, fmt.Errorf("parse analysis config: %w", err)
	}

	cfg := DefaultAnalysis()
	if len(raw.Categories) > 0 {
		cfg.Categories = raw.Categories
	}
	if len(raw.Tiers) > 0 {
		cfg.Tiers = raw.Tiers
	}
	if raw.Budget.Soft > 0 {
		cfg.Budget.Soft = raw.Budget.Soft
	}
	if raw.Budget.Hard > 0 {
		cfg.Budget.Hard = raw.Budget.Hard
	}

	if err := validate.Struct(cfg); err != nil {
		return AnalysisConfig{}, fmt.Errorf("invalid analysis config: %w", err)
	}
	if err := compression.ValidateTiers(cfg.Tiers); err != nil {
		return AnalysisConfig{}, fmt.Errorf("invalid tiers: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getIntEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}
