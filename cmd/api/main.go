package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/renewables/repd-reconcile/config"
	"github.com/renewables/repd-reconcile/internal/database"
	"github.com/renewables/repd-reconcile/internal/repositories/project"
	"github.com/renewables/repd-reconcile/pkg/catalogue"
	"github.com/renewables/repd-reconcile/pkg/events"
	"github.com/renewables/repd-reconcile/pkg/kafka"
	"github.com/renewables/repd-reconcile/pkg/logging"
	"github.com/renewables/repd-reconcile/pkg/matching"
	"github.com/renewables/repd-reconcile/pkg/metrics"
	"github.com/renewables/repd-reconcile/pkg/middleware"
	"github.com/renewables/repd-reconcile/pkg/models"
	"github.com/renewables/repd-reconcile/pkg/routes/health"
	"github.com/renewables/repd-reconcile/pkg/routes/reconcile"
	"github.com/renewables/repd-reconcile/pkg/tracing"
	"github.com/renewables/repd-reconcile/pkg/tracing/exporters"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: cfg.OTLPEndpoint,
			Protocol: cfg.OTLPProtocol,
			Insecure: true,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			logger.WithError(err).Error("Failed to create OTLP exporter")
			os.Exit(1)
		}
		provider := tracing.InitProvider(cfg.AppName, exporter)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Shutdown(shutdownCtx)
		}()
	}

	db, err := connectWithRetry(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Database unavailable after retries")
		os.Exit(1)
	}
	defer db.Close()

	if err := runMigrations(cfg, db, logger); err != nil {
		logger.WithError(err).Error("Database migration failed")
		os.Exit(1)
	}

	repo := project.NewRepository(db, logger)
	records, err := repo.FetchAll(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to load project catalogue")
		os.Exit(1)
	}
	cat := catalogue.New(records)
	metrics.CatalogueSize.Set(float64(cat.Len()))
	logger.WithFields(map[string]any{"project_count": cat.Len()}).Info("Project catalogue loaded")

	engineConfig := matching.DefaultConfig()
	engineConfig.MatchThreshold = cfg.MatchThreshold
	engineConfig.DefaultLimit = cfg.DefaultLimit
	engineConfig.MaxLimit = cfg.MaxLimit
	engine := matching.NewEngine(logger, engineConfig)

	var emitter *events.Emitter
	if cfg.KafkaEnabled {
		producer := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaOutputTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		}, logger)
		defer producer.Close()
		emitter = events.NewEmitter(producer, logger)
	}

	manifest := models.ServiceManifest{
		Name:            cfg.ServiceDisplayName,
		IdentifierSpace: cfg.IdentifierSpace,
		SchemaSpace:     cfg.SchemaSpace,
		DefaultTypes:    []models.CandidateType{models.DefaultType},
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	if cfg.TracingEnabled {
		e.Use(otelecho.Middleware(cfg.AppName))
	}
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	handler := reconcile.NewHandler(engine, cat, emitter, manifest, logger)
	handler.RegisterRoutes(e)

	checker := health.NewChecker(db, cat, cfg.AppName)
	checker.RegisterRoutes(e)
	checker.SetReady(true)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		ReadTimeout:  time.Duration(cfg.HTTPServerReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTPServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.HTTPServerIdleTimeoutSeconds) * time.Second,
	}

	go func() {
		logger.WithFields(map[string]any{"port": cfg.Port}).Info("Starting reconciliation API")
		if err := e.StartServer(server); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
	logger.Info("Server stopped")
}

// connectWithRetry pings the database with fibonacci backoff until it
// answers or the configured attempts run out.
func connectWithRetry(ctx context.Context, cfg *config.Config, logger ectologger.Logger) (*database.DatabaseInstance, error) {
	opts := database.Options{
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}

	wait, next := time.Second, time.Second
	var lastErr error
	for attempt := 1; attempt <= cfg.StartupMaxAttempts; attempt++ {
		db, err := database.Connect(ctx, cfg.DSN(), opts, logger)
		if err == nil {
			return db, nil
		}
		lastErr = err

		logger.WithError(err).WithFields(map[string]any{
			"attempt": attempt,
			"wait":    wait.String(),
		}).Warn("Database not ready, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		wait, next = next, wait+next
	}
	return nil, lastErr
}

func runMigrations(cfg *config.Config, db *database.DatabaseInstance, logger ectologger.Logger) error {
	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		return err
	}

	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	return migrations.Migrate(cfg.DatabaseName, driver)
}
