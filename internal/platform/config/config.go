package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr                  string
	DatabaseURL           string
	JWTSecret             string
	Environment           string
	OperatorEmail         string
	OperatorPasswordHash  string
	RunMigrations         bool
	MaxBodyBytes          int64
	RateLimitPerMinute    int
	MetricsEnabled        bool
	HaciendaTaxRate       float64
	DepositFee            float64
	AdminFeePerGame       float64
	AdminFeeExempt        []string
	ReportDir             string
	ReportBucket          string
	ReportEndpoint        string
	ReportAccessKeyID     string
	ReportSecretAccessKey string
	ReportRegion          string
	MappingPruneInterval  time.Duration
	RegistrySeedFile      string
}

// Load reads configuration from the environment, after applying a .env file
// when one is present. Variables already set in the environment win.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn(".env load failed", "err", err)
	}
	return Config{
		Addr:                  getEnv("APP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		JWTSecret:             getEnv("JWT_SECRET", ""),
		Environment:           getEnv("APP_ENV", "development"),
		OperatorEmail:         getEnv("OPERATOR_EMAIL", ""),
		OperatorPasswordHash:  getEnv("OPERATOR_PASSWORD_HASH", ""),
		RunMigrations:         getEnvBool("RUN_MIGRATIONS", true),
		MaxBodyBytes:          int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute:    getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		MetricsEnabled:        getEnvBool("METRICS_ENABLED", true),
		HaciendaTaxRate:       getEnvFloat("HACIENDA_TAX_RATE", 0.10),
		DepositFee:            getEnvFloat("DEPOSIT_FEE", 0),
		AdminFeePerGame:       getEnvFloat("ADMIN_FEE_PER_GAME", 1),
		AdminFeeExempt:        getEnvList("ADMIN_FEE_EXEMPT"),
		ReportDir:             getEnv("REPORT_DIR", ""),
		ReportBucket:          getEnv("REPORT_BUCKET", ""),
		ReportEndpoint:        getEnv("REPORT_ENDPOINT", ""),
		ReportAccessKeyID:     getEnv("REPORT_ACCESS_KEY_ID", ""),
		ReportSecretAccessKey: getEnv("REPORT_SECRET_ACCESS_KEY", ""),
		ReportRegion:          getEnv("REPORT_REGION", "auto"),
		MappingPruneInterval:  getEnvDuration("MAPPING_PRUNE_INTERVAL", 24*time.Hour),
		RegistrySeedFile:      getEnv("REGISTRY_SEED_FILE", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ArchiveToS3 reports whether exported reports go to an object store.
func (c Config) ArchiveToS3() bool {
	return strings.TrimSpace(c.ReportBucket) != ""
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Environment == "production" {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if strings.TrimSpace(c.OperatorPasswordHash) == "" {
			return fmt.Errorf("OPERATOR_PASSWORD_HASH must be set in production")
		}
	}
	if c.OperatorEmail != "" && c.OperatorPasswordHash == "" {
		return fmt.Errorf("OPERATOR_PASSWORD_HASH must be set when OPERATOR_EMAIL is set")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.HaciendaTaxRate < 0 || c.HaciendaTaxRate > 1 {
		return fmt.Errorf("HACIENDA_TAX_RATE must be a fraction between 0 and 1")
	}
	if c.DepositFee < 0 || c.AdminFeePerGame < 0 {
		return fmt.Errorf("DEPOSIT_FEE and ADMIN_FEE_PER_GAME must not be negative")
	}
	if c.ArchiveToS3() && (c.ReportAccessKeyID == "") != (c.ReportSecretAccessKey == "") {
		return fmt.Errorf("REPORT_ACCESS_KEY_ID and REPORT_SECRET_ACCESS_KEY must be set together")
	}
	return nil
}
