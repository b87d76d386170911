package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// CronParser accepts five-field expressions with an optional leading seconds
// field, plus descriptors such as @daily.
var CronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type Config struct {
	Addr              string        `env:"APP_ADDR" envDefault:":8080"`
	Environment       string        `env:"APP_ENV" envDefault:"development"`
	PublicBaseURL     string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	DatabaseURL       string        `env:"DATABASE_URL"`
	DBMaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns        int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	JWTSecret         string        `env:"JWT_SECRET"`
	TokenTTL          time.Duration `env:"TOKEN_TTL" envDefault:"8h"`
	DataEncryptionKey string        `env:"DATA_ENCRYPTION_KEY"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat         string        `env:"LOG_FORMAT" envDefault:"json"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	SeedAdminEmail    string `env:"SEED_ADMIN_EMAIL"`
	SeedAdminPassword string `env:"SEED_ADMIN_PASSWORD"`
	RunMigrations     bool   `env:"RUN_MIGRATIONS" envDefault:"true"`
	RunSeed           bool   `env:"RUN_SEED" envDefault:"true"`

	EmailFrom    string `env:"EMAIL_FROM" envDefault:"no-reply@example.com"`
	EmailEnabled bool   `env:"EMAIL_ENABLED" envDefault:"false"`
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"true"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	StorageEndpoint  string `env:"STORAGE_ENDPOINT"`
	StorageAccessKey string `env:"STORAGE_ACCESS_KEY"`
	StorageSecretKey string `env:"STORAGE_SECRET_KEY"`
	StorageBucket    string `env:"STORAGE_BUCKET" envDefault:"backoffice"`
	StorageUseSSL    bool   `env:"STORAGE_USE_SSL" envDefault:"false"`
	MaxUploadBytes   int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	MaxBodyBytes       int64 `env:"MAX_BODY_BYTES" envDefault:"1048576"`
	RateLimitPerMinute int   `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`
	MetricsEnabled     bool  `env:"METRICS_ENABLED" envDefault:"true"`

	ContractApprovalChain []string `env:"CONTRACT_APPROVAL_CHAIN" envSeparator:"," envDefault:"Manager,HR"`
	ExpiryReminderDays    int      `env:"EXPIRY_REMINDER_DAYS" envDefault:"30"`
	AuditRetentionDays    int      `env:"AUDIT_RETENTION_DAYS" envDefault:"365"`

	JobsEnabled             bool   `env:"JOBS_ENABLED" envDefault:"true"`
	CronCertificationExpiry string `env:"CRON_CERTIFICATION_EXPIRY" envDefault:"0 7 * * *"`
	CronDocumentExpiry      string `env:"CRON_DOCUMENT_EXPIRY" envDefault:"15 7 * * *"`
	CronTaskOverdue         string `env:"CRON_TASK_OVERDUE" envDefault:"0 * * * *"`
	CronSessionCleanup      string `env:"CRON_SESSION_CLEANUP" envDefault:"30 3 * * *"`
	CronAuditRetention      string `env:"CRON_AUDIT_RETENTION" envDefault:"0 4 * * 0"`
}

// Load reads a .env file when one exists, then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) StorageEnabled() bool {
	return strings.TrimSpace(c.StorageEndpoint) != ""
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.IsProduction() {
		if len(strings.TrimSpace(c.JWTSecret)) < 32 {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if strings.TrimSpace(c.DataEncryptionKey) == "" {
			return fmt.Errorf("DATA_ENCRYPTION_KEY must be set in production for encryption at rest")
		}
		if c.RunSeed && strings.TrimSpace(c.SeedAdminPassword) == "" {
			return fmt.Errorf("SEED_ADMIN_PASSWORD must be changed or RUN_SEED disabled in production")
		}
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.MaxUploadBytes < 1024 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	if len(c.ContractApprovalChain) == 0 {
		return fmt.Errorf("CONTRACT_APPROVAL_CHAIN must name at least one role")
	}
	if c.ExpiryReminderDays <= 0 {
		return fmt.Errorf("EXPIRY_REMINDER_DAYS must be positive")
	}
	if c.AuditRetentionDays < 0 {
		return fmt.Errorf("AUDIT_RETENTION_DAYS must not be negative")
	}
	for key, expr := range c.CronSchedules() {
		if _, err := CronParser.Parse(expr); err != nil {
			return fmt.Errorf("invalid cron expression for %s: %w", key, err)
		}
	}
	return nil
}

// CronSchedules maps job names to their configured cron expressions.
// Empty expressions disable the job.
func (c Config) CronSchedules() map[string]string {
	out := map[string]string{}
	add := func(name, expr string) {
		if strings.TrimSpace(expr) != "" {
			out[name] = strings.TrimSpace(expr)
		}
	}
	add("certification_expiry", c.CronCertificationExpiry)
	add("document_expiry", c.CronDocumentExpiry)
	add("task_overdue", c.CronTaskOverdue)
	add("session_cleanup", c.CronSessionCleanup)
	add("audit_retention", c.CronAuditRetention)
	return out
}
