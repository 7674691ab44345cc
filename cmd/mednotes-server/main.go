package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/securemed/mednotes/internal/config"
	"github.com/securemed/mednotes/internal/domain/ai"
	"github.com/securemed/mednotes/internal/domain/appointment"
	"github.com/securemed/mednotes/internal/domain/audit"
	"github.com/securemed/mednotes/internal/domain/note"
	"github.com/securemed/mednotes/internal/domain/patient"
	"github.com/securemed/mednotes/internal/platform/auth"
	"github.com/securemed/mednotes/internal/platform/db"
	"github.com/securemed/mednotes/internal/platform/llm"
	"github.com/securemed/mednotes/internal/platform/metrics"
	"github.com/securemed/mednotes/internal/platform/middleware"
	"github.com/securemed/mednotes/internal/platform/notification"
	"github.com/securemed/mednotes/internal/platform/reporting"
	"github.com/securemed/mednotes/internal/platform/taskqueue"
	"github.com/securemed/mednotes/migrations"
)

const version = "0.1.0"

// requestTimeout bounds plain CRUD requests. AI routes wait on the model
// and are exempt.
const requestTimeout = 30 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:   "mednotes-server",
		Short: "Clinical notes API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// migrationsFS returns the embedded migrations, or dir on disk when set.
func migrationsFS(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func openMigrator(ctx context.Context, dir string) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrationsFS(dir)), pool.Close, nil
}

func printStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")
			to, _ := cmd.Flags().GetInt("to")

			ctx := context.Background()
			migrator, closePool, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closePool()

			fmt.Printf("Running migrations on schema: %s\n", schema)
			var count int
			if to > 0 {
				count, err = migrator.UpTo(ctx, schema, to)
			} else {
				count, err = migrator.Up(ctx, schema)
			}
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", db.DefaultSchema, "Target schema for migrations")
	upCmd.Flags().String("dir", "", "Migrations directory (defaults to the embedded set)")
	upCmd.Flags().Int("to", 0, "Stop after this version")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			migrator, closePool, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), schema, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("schema", db.DefaultSchema, "Target schema for migrations")
	statusCmd.Flags().String("dir", "", "Migrations directory (defaults to the embedded set)")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "WARNING: migrate down is not supported by the built-in runner.")
			fmt.Fprintln(cmd.OutOrStdout(), "Restore from backup or write a forward migration instead.")
			return nil
		},
	})

	return cmd
}

func newLogger(env string, out io.Writer) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// newCaller returns nil when no API key is configured so the analyzer
// falls back to keyword rules.
func newCaller(cfg *config.Config, logger zerolog.Logger) (llm.Caller, error) {
	c, err := llm.NewAnthropicCaller(llm.Config{
		APIKey:    cfg.AnthropicAPIKey,
		Model:     cfg.LLMModel,
		MaxTokens: cfg.LLMMaxTokens,
		Timeout:   cfg.LLMTimeout,
	}, logger)
	if errors.Is(err, llm.ErrDisabled) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// newDispatcher picks the background task transport. In HTTP mode the
// callback routes must be mounted so the dispatcher can reach them.
func newDispatcher(cfg *config.Config, tasks *ai.Tasks, logger zerolog.Logger) taskqueue.Dispatcher {
	if cfg.TaskMode == config.TaskModeHTTP {
		return taskqueue.NewHTTPDispatcher(cfg.BackendURL, cfg.TaskSigningKey, logger)
	}
	return taskqueue.NewLocalDispatcher(cfg.TaskWorkers, cfg.TaskQueueSize, tasks.Handlers(), logger)
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"), os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Repositories and services
	patientSvc := patient.NewService(patient.NewRepoPG(pool))
	noteRepo := note.NewRepoPG(pool)
	noteSvc := note.NewService(noteRepo)
	auditSvc := audit.NewService(audit.NewRepoPG(pool))

	notifier := notification.NewNotificationManager(
		notification.LogEmailSender{From: cfg.NotifyFrom, Logger: logger},
		notification.LogSMSSender{Logger: logger},
		notification.NewTemplateEngine(),
	)
	apptSvc := appointment.NewService(appointment.NewRepoPG(pool), notifier)

	caller, err := newCaller(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure language model")
	}
	analyzer := ai.NewAnalyzer(caller, logger)
	if analyzer.Enabled() {
		logger.Info().Str("model", analyzer.Model()).Msg("language model enabled")
	} else {
		logger.Warn().Msg("ANTHROPIC_API_KEY not set; using keyword fallbacks")
	}
	summarizer := ai.NewSummarizer(noteSvc, patientSvc, analyzer, notifier, cfg.AlertRecipients, logger)
	riskSvc := ai.NewRiskService(noteSvc, patientSvc, analyzer)
	timelineSvc := ai.NewTimelineService(noteSvc, patientSvc, apptSvc, analyzer)
	tasks := ai.NewTasks(summarizer, riskSvc, logger)
	dispatcher := newDispatcher(cfg, tasks, logger)

	reportGen := reporting.NewGenerator(note.NewReportSource(noteRepo))
	schedules := reporting.NewScheduleStore()
	runner := reporting.NewRunner(schedules, reportGen, notifier, cfg.ReportInterval, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("2M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() && cfg.AuthSigningKey == "" && cfg.AuthJWKSURL == "" {
		e.Use(auth.DevAuthMiddleware(auth.AuthSkipper))
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	e.Use(middleware.Audit(logger, auditSvc))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitConfig(cfg)))
	apiV1.Use(middleware.RequestTimeout(requestTimeout, "/api/v1/ai"))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":     "ok",
			"version":    version,
			"ai_enabled": analyzer.Enabled(),
			"task_mode":  cfg.TaskMode,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	note.NewHandler(noteSvc).RegisterRoutes(apiV1)
	appointment.NewHandler(apptSvc).RegisterRoutes(apiV1)
	audit.NewHandler(auditSvc).RegisterRoutes(apiV1)
	ai.NewHandler(analyzer, summarizer, riskSvc, timelineSvc, noteSvc, patientSvc, dispatcher).RegisterRoutes(apiV1)
	notification.NewNotificationHandler(notifier, cfg.AlertRecipients).RegisterRoutes(apiV1)
	reporting.NewHandler(reportGen, schedules).RegisterRoutes(apiV1)

	if cfg.TaskMode == config.TaskModeHTTP {
		tasks.RegisterRoutes(e.Group("/tasks/ai"), cfg.TaskSigningKey)
	}

	runnerCtx, stopRunner := context.WithCancel(context.Background())
	defer stopRunner()
	go runner.Start(runnerCtx)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("task_mode", cfg.TaskMode).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stopRunner()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("task dispatcher did not drain")
	}
	logger.Info().Msg("server stopped")
	return nil
}
