package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/Jerry-OC/mission-control/config"
	"github.com/Jerry-OC/mission-control/internal/handlers"
	"github.com/Jerry-OC/mission-control/internal/repositories/codingrule"
	"github.com/Jerry-OC/mission-control/internal/repositories/costcode"
	"github.com/Jerry-OC/mission-control/internal/repositories/exclusionrule"
	"github.com/Jerry-OC/mission-control/internal/repositories/job"
	"github.com/Jerry-OC/mission-control/internal/repositories/transaction"
	"github.com/Jerry-OC/mission-control/pkg/coding"
	"github.com/Jerry-OC/mission-control/pkg/database"
	"github.com/Jerry-OC/mission-control/pkg/ingest"
	"github.com/Jerry-OC/mission-control/pkg/kafka"
	"github.com/Jerry-OC/mission-control/pkg/middleware"
	"github.com/Jerry-OC/mission-control/pkg/splitting"
	"github.com/Jerry-OC/mission-control/pkg/startup"
	"github.com/Jerry-OC/mission-control/pkg/tracing"
	"github.com/Jerry-OC/mission-control/pkg/tracing/exporters"
)

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to read config: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	logger := ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		b, mErr := json.Marshal(msg)
		if mErr != nil {
			zapLogger.Error(fmt.Sprintf("%+v", msg))
			return
		}
		zapLogger.Info(string(b))
	})

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Service exited with error")
		os.Exit(1)
	}
}

func run(cfg config.Config, logger ectologger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		db       database.DB
		tp       *sdktrace.TracerProvider
		e        *echo.Echo
		consumer *kafka.Consumer
		health   *handlers.HealthChecker
	)

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)

	boot.AddDependency(&dependency{
		name: "database",
		start: func(ctx context.Context) error {
			sqlxDB, err := connectDatabase(cfg)
			if err != nil {
				return err
			}
			db = database.NewDatabaseInstance(sqlxDB, logger)

			driver, err := migratepg.WithInstance(sqlxDB.DB, &migratepg.Config{})
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
		},
		stop: func(ctx context.Context) error {
			if db == nil {
				return nil
			}
			return db.Close()
		},
	})

	boot.AddDependency(&dependency{
		name: "tracing",
		start: func(ctx context.Context) error {
			var exporter sdktrace.SpanExporter
			if cfg.TracingEnabled {
				var err error
				exporter, err = exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
					Endpoint: cfg.TracingOTLPEndpoint,
					Protocol: cfg.TracingOTLPProtocol,
					Insecure: cfg.TracingInsecure,
					Timeout:  10 * time.Second,
				})
				if err != nil {
					return err
				}
			} else {
				exporter = &exporters.ConsoleExporter{}
			}

			tp = sdktrace.NewTracerProvider(
				sdktrace.WithBatcher(exporter),
				sdktrace.WithResource(resource.NewSchemaless(
					attribute.String("service.name", cfg.AppName),
					attribute.String("service.version", cfg.Version),
				)),
			)
			otel.SetTracerProvider(tp)
			tracing.SetTracer(tp.Tracer(cfg.AppName))
			return nil
		},
		stop: func(ctx context.Context) error {
			if tp == nil {
				return nil
			}
			return tp.Shutdown(ctx)
		},
	})

	boot.AddDependency(&dependency{
		name:      "http",
		dependsOn: []string{"database", "tracing"},
		start: func(ctx context.Context) error {
			e, health = buildServer(cfg, db, logger)
			go func() {
				if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
					logger.WithError(err).Error("HTTP server stopped")
				}
			}()
			health.SetReady(true)
			return nil
		},
		stop: func(ctx context.Context) error {
			if e == nil {
				return nil
			}
			if health != nil {
				health.SetReady(false)
			}
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		},
	})

	if cfg.KafkaConsumerEnabled {
		boot.AddDependency(&dependency{
			name:      "kafka-consumer",
			dependsOn: []string{"database", "tracing"},
			start: func(ctx context.Context) error {
				transactions := transaction.NewRepository(db, logger)
				codingRules := codingrule.NewRepository(db, logger)
				exclusionRules := exclusionrule.NewRepository(db, logger)
				engine := coding.NewEngine(db, transactions, codingRules, logger)
				ingestor := ingest.NewIngestor(transactions, exclusionRules, engine, logger)

				consumer = kafka.NewConsumer(kafka.ConsumerConfig{
					Brokers:       cfg.KafkaBrokers,
					Topic:         cfg.KafkaFeedTopic,
					ConsumerGroup: cfg.KafkaConsumerGroup,
				}, logger, ingestor.Handle)
				return consumer.Start(ctx)
			},
			stop: func(ctx context.Context) error {
				if consumer == nil {
					return nil
				}
				return consumer.Stop()
			},
		})
	}

	if err := boot.Start(ctx); err != nil {
		return err
	}
	logger.WithField("port", cfg.Port).Info("Service started")

	<-ctx.Done()
	logger.Info("Shutting down")

	return boot.Stop(context.Background())
}

func connectDatabase(cfg config.Config) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName,
		cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode,
	)

	db, err := sqlx.Connect(cfg.DatabaseDriver, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)
	return db, nil
}

func buildServer(cfg config.Config, db database.DB, logger ectologger.Logger) (*echo.Echo, *handlers.HealthChecker) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	health := handlers.NewHealthChecker(db, cfg.Version)
	health.RegisterRoutes(e)

	transactions := transaction.NewRepository(db, logger)
	codingRules := codingrule.NewRepository(db, logger)
	exclusionRules := exclusionrule.NewRepository(db, logger)
	jobs := job.NewRepository(db, logger)
	costCodes := costcode.NewRepository(db, logger)

	engine := coding.NewEngine(db, transactions, codingRules, logger)
	splitter := splitting.NewSplitter(db, transactions, logger)

	api := e.Group("/api/v1", middleware.BearerAuth(middleware.BearerAuthConfig{
		AllowedUsers: cfg.AllowedUsers,
		Secret:       cfg.SessionSecret,
	}))

	handlers.NewTransactionHandler(transactions, splitter).RegisterRoutes(api)
	handlers.NewCodingRuleHandler(codingRules, engine).RegisterRoutes(api)
	handlers.NewExclusionRuleHandler(exclusionRules, engine).RegisterRoutes(api)
	handlers.NewLookupHandler(jobs, costCodes).RegisterRoutes(api)

	return e, health
}

// dependency adapts start/stop funcs to the startup.Dependency interface.
type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *dependency) GetName() string     { return d.name }
func (d *dependency) DependsOn() []string { return d.dependsOn }

func (d *dependency) Start(ctx context.Context) error {
	if d.start == nil {
		return nil
	}
	return d.start(ctx)
}

func (d *dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}
