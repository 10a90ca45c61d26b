package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"adminconsole/internal/admin"
	"adminconsole/internal/bulklimit"
	jwttoken "adminconsole/internal/jwt_token"
	"adminconsole/internal/platform/config"
	"adminconsole/internal/platform/httpserver"
	"adminconsole/internal/platform/logger"
	"adminconsole/internal/platform/metrics"
	"adminconsole/internal/platform/postgres"
	"adminconsole/internal/platform/redis"
	"adminconsole/internal/securitylog"
	"adminconsole/internal/securitylog/detector"
	"adminconsole/internal/securitylog/eventlog"
	securityhandler "adminconsole/internal/securitylog/handler"
	"adminconsole/internal/securitylog/publisher"
	"adminconsole/internal/securitylog/recorder"
	"adminconsole/internal/securitylog/store"
	httptransport "adminconsole/internal/transport/http"
)

const (
	tokenIssuer   = "adminconsole"
	tokenAudience = "adminconsole-api"
	sweepInterval = 5 * time.Minute
)

// main wires dependencies and owns the process lifecycle. Business logic lives
// in the internal packages.
func main() {
	cfg, warnings := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	for _, w := range warnings {
		log.Warn("configuration fallback", "detail", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("admin console stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("admin console stopped")
}

// infra holds the backing services; nil fields mean the in-memory fallback is used.
type infra struct {
	db    *sql.DB
	redis *redis.Client
	kafka *publisher.KafkaPublisher
}

func (i *infra) close(log *slog.Logger) {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("failed to close redis client", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Warn("failed to close database", "error", err)
		}
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	var in infra
	defer in.close(log)

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	in.db = db

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	in.redis = redisClient

	eventStore, adminStore, err := buildStores(ctx, db, log)
	if err != nil {
		return err
	}

	recorderOpts := []recorder.Option{
		recorder.WithLogger(log),
		recorder.WithMetrics(m),
		recorder.WithBufferSize(cfg.Recorder.BufferSize),
		recorder.WithWorkers(cfg.Recorder.Workers),
		recorder.WithWriteTimeout(cfg.Recorder.WriteTimeout),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := publisher.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.SecurityTopic, log)
		if err != nil {
			return err
		}
		in.kafka = kafka
		recorderOpts = append(recorderOpts, recorder.WithSink(kafka))
		log.Info("forwarding security events to kafka", "topic", cfg.Kafka.SecurityTopic)
	}
	rec := recorder.New(eventStore, recorderOpts...)

	events := eventlog.New(rec, log)
	det, err := detector.New(eventStore, rec, detector.Config{
		MaxRequestsPerMinute:   cfg.Detector.MaxRequestsPerMinute,
		MaxFailedLoginsPerHour: cfg.Detector.MaxFailedLoginsPerHour,
		SuspiciousAgents:       cfg.Detector.SuspiciousAgents,
	}, detector.WithLogger(log), detector.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("configure abuse detector: %w", err)
	}

	jwt := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, tokenIssuer, tokenAudience)
	service := admin.NewService(adminStore, jwt,
		admin.WithServiceLogger(log),
		admin.WithTokenTTL(cfg.Server.TokenTTL),
	)
	if cfg.Server.BootstrapEmail != "" {
		if _, err := service.Bootstrap(ctx, cfg.Server.BootstrapEmail, cfg.Server.BootstrapPassword); err != nil {
			return fmt.Errorf("bootstrap superadmin: %w", err)
		}
	}

	var (
		limiterStore bulklimit.Store
		memoryLimits *bulklimit.MemoryStore
	)
	if redisClient != nil {
		limiterStore = bulklimit.NewRedisStore(redisClient.Client)
	} else {
		memoryLimits = bulklimit.NewMemoryStore()
		limiterStore = memoryLimits
	}
	limiter := bulklimit.New(limiterStore, cfg.BulkLimit.MaxOperations, cfg.BulkLimit.Window,
		bulklimit.WithLogger(log),
		bulklimit.WithMetrics(m),
	)

	gate := admin.NewGate(adminStore, admin.WithGateLogger(log), admin.WithGateMetrics(m))
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:   log,
		Gatherer: registry,
		Tokens:   jwttoken.NewJWTServiceAdapter(jwt),
		Events:   events,
		Detector: det.Middleware,
		Admin: admin.NewHandler(service, admin.NewSettingsStore(admin.DefaultSettings()), gate, events,
			admin.WithBulkLimiter(limiter.Middleware),
			admin.WithHandlerLogger(log),
		),
		Gate:           gate,
		SecurityEvents: securityhandler.New(eventStore, events, log),
		HealthChecks:   healthChecks(in),
	})

	srv := httpserver.New(cfg.Server.Addr, router)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting admin console", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if memoryLimits != nil {
		g.Go(func() error {
			ticker := time.NewTicker(sweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if n := memoryLimits.Sweep(cfg.BulkLimit.Window); n > 0 {
						log.Debug("swept idle bulk limit windows", "removed", n)
					}
				}
			}
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down admin console")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := rec.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("drain security events: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// buildStores picks postgres when a database is configured and memory otherwise.
func buildStores(ctx context.Context, db *sql.DB, log *slog.Logger) (securitylog.Store, admin.Store, error) {
	if db == nil {
		log.Warn("DATABASE_URL not set, security events and principals are kept in memory")
		return store.NewInMemoryStore(), admin.NewInMemoryStore(), nil
	}

	events := store.NewPostgres(db)
	if err := events.EnsureSchema(ctx); err != nil {
		return nil, nil, err
	}
	principals := admin.NewPostgresStore(db)
	if err := principals.EnsureSchema(ctx); err != nil {
		return nil, nil, err
	}
	return events, principals, nil
}

func healthChecks(in infra) map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if in.db != nil {
		checks["postgres"] = in.db.PingContext
	}
	if in.redis != nil {
		checks["redis"] = in.redis.Health
	}
	return checks
}
