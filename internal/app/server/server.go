package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"backoffice/internal/domain/access"
	"backoffice/internal/domain/audit"
	"backoffice/internal/domain/auth"
	"backoffice/internal/domain/certifications"
	"backoffice/internal/domain/contracts"
	"backoffice/internal/domain/documents"
	"backoffice/internal/domain/employees"
	"backoffice/internal/domain/notifications"
	"backoffice/internal/domain/org"
	"backoffice/internal/domain/tasks"
	"backoffice/internal/platform/cache"
	"backoffice/internal/platform/config"
	cryptoutil "backoffice/internal/platform/crypto"
	"backoffice/internal/platform/db"
	"backoffice/internal/platform/email"
	"backoffice/internal/platform/jobs"
	"backoffice/internal/platform/logging"
	"backoffice/internal/platform/metrics"
	"backoffice/internal/platform/sqldb"
	"backoffice/internal/platform/storage"
	"backoffice/internal/platform/telemetry"
	"backoffice/internal/transport/http/middleware"
)

const serviceName = "backoffice"

// Services groups the domain services behind the HTTP API.
type Services struct {
	Auth           *auth.Service
	Access         *access.Service
	Audit          *audit.Service
	Employees      *employees.Service
	Org            *org.Service
	Contracts      *contracts.Service
	Certifications *certifications.Service
	Documents      *documents.Service
	Tasks          *tasks.Service
	Notifications  *notifications.Service
	Jobs           *jobs.Service
	Idempotency    *middleware.IdempotencyStore
}

type App struct {
	Config   config.Config
	DB       *pgxpool.Pool
	SQL      *sql.DB
	Cache    cache.Cache
	Files    storage.Storage
	Metrics  *metrics.Collector
	Services Services
	Router   http.Handler
}

// New connects every backing service, applies migrations and the seed when
// configured, and builds the router. The caller owns Close.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg, Metrics: metrics.New()}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	var err error
	if app.DB, err = db.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if app.SQL, err = sqldb.Open(ctx, cfg); err != nil {
		return nil, err
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, app.SQL, db.Migrations()); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := auth.Seed(ctx, app.DB, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
	}
	if app.Cache, err = cache.New(ctx, cfg); err != nil {
		return nil, err
	}
	if app.Files, err = storage.New(ctx, cfg); err != nil {
		return nil, err
	}
	crypto, err := cryptoutil.New(cfg.DataEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}

	app.Services = buildServices(cfg, app, crypto, email.New(cfg))
	if err := registerJobs(cfg, app.Services); err != nil {
		return nil, err
	}
	app.Router = otelhttp.NewHandler(NewRouter(cfg, app.Services, app.Metrics, app.ready), serviceName)
	ok = true
	return app, nil
}

func buildServices(cfg config.Config, app *App, crypto *cryptoutil.Service, mailer email.Mailer) Services {
	notifier := notifications.New(notifications.NewStore(app.DB), mailer, cfg.EmailFrom)
	authSvc := auth.NewService(auth.NewStore(app.DB), crypto, app.Cache, mailer, auth.Options{
		Secret:        cfg.JWTSecret,
		TokenTTL:      cfg.TokenTTL,
		CacheTTL:      cfg.CacheTTL,
		PublicBaseURL: cfg.PublicBaseURL,
		EmailFrom:     cfg.EmailFrom,
	})
	return Services{
		Auth:           authSvc,
		Access:         access.NewService(access.NewStore(app.DB), authSvc),
		Audit:          audit.New(app.SQL),
		Employees:      employees.NewService(employees.NewStore(app.DB, crypto)),
		Org:            org.NewService(org.NewStore(app.DB), app.Cache, cfg.CacheTTL),
		Contracts:      contracts.NewService(contracts.NewStore(app.DB), notifier, cfg.ContractApprovalChain),
		Certifications: certifications.NewService(certifications.NewStore(app.DB), app.Files, notifier, cfg.MaxUploadBytes, cfg.ExpiryReminderDays),
		Documents:      documents.NewService(documents.NewStore(app.DB), app.Files, notifier, cfg.MaxUploadBytes, cfg.ExpiryReminderDays),
		Tasks:          tasks.NewService(tasks.NewStore(app.DB), notifier),
		Notifications:  notifier,
		Jobs:           jobs.New(jobs.NewStore(app.DB), app.Metrics),
		Idempotency:    middleware.NewIdempotencyStore(app.DB),
	}
}

func registerJobs(cfg config.Config, s Services) error {
	s.Jobs.Register(jobs.JobCertificationExpiry, s.Certifications.RemindExpiring)
	s.Jobs.Register(jobs.JobDocumentExpiry, s.Documents.RemindExpiring)
	s.Jobs.Register(jobs.JobTaskOverdue, s.Tasks.NotifyOverdue)
	s.Jobs.Register(jobs.JobSessionCleanup, purgeExpired(s))
	s.Jobs.Register(jobs.JobAuditRetention, s.Audit.RetentionJob(cfg.AuditRetentionDays))
	if !cfg.JobsEnabled {
		return nil
	}
	if err := s.Jobs.Schedule(cfg.CronSchedules()); err != nil {
		return fmt.Errorf("schedule jobs: %w", err)
	}
	return nil
}

// purgeExpired drops dead sessions, spent reset tokens and idempotency keys
// past their replay window.
func purgeExpired(s Services) jobs.Func {
	return func(ctx context.Context) (any, error) {
		out, err := s.Auth.PurgeExpired(ctx)
		if err != nil {
			return nil, err
		}
		keys, err := s.Idempotency.Purge(ctx)
		if err != nil {
			return nil, fmt.Errorf("purge idempotency keys: %w", err)
		}
		counts, _ := out.(map[string]int64)
		if counts == nil {
			counts = map[string]int64{}
		}
		counts["idempotencyKeys"] = keys
		return counts, nil
	}
}

// ready checks the dependencies a request cannot be served without.
func (a *App) ready(ctx context.Context) error {
	if err := a.DB.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := a.Cache.Ping(ctx); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			slog.Warn("cache close failed", "err", err)
		}
	}
	if a.SQL != nil {
		if err := a.SQL.Close(); err != nil {
			slog.Warn("sql close failed", "err", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// Run serves the API and the job scheduler until ctx is cancelled, then
// drains in-flight requests within the configured shutdown timeout.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	shutdownTracing, err := telemetry.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("tracing shutdown failed", "err", err)
		}
	}()

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", cfg.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if cfg.JobsEnabled {
		g.Go(func() error {
			return app.Services.Jobs.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down", "timeout", cfg.ShutdownTimeout.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
