package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ArowuTest/edunotify-backend/api/routes"
	"github.com/ArowuTest/edunotify-backend/internal/cache"
	"github.com/ArowuTest/edunotify-backend/internal/config"
	"github.com/ArowuTest/edunotify-backend/internal/events"
	"github.com/ArowuTest/edunotify-backend/internal/handlers"
	"github.com/ArowuTest/edunotify-backend/internal/logging"
	"github.com/ArowuTest/edunotify-backend/internal/metrics"
	"github.com/ArowuTest/edunotify-backend/internal/repositories"
	"github.com/ArowuTest/edunotify-backend/internal/repositories/memory"
	mongorepo "github.com/ArowuTest/edunotify-backend/internal/repositories/mongodb"
	"github.com/ArowuTest/edunotify-backend/internal/repositories/postgres"
	"github.com/ArowuTest/edunotify-backend/internal/services"
	"github.com/ArowuTest/edunotify-backend/pkg/jwt"
	"github.com/ArowuTest/edunotify-backend/pkg/mongodb"
	"github.com/ArowuTest/edunotify-backend/pkg/smsgateway"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// stores groups the repositories selected by the storage and ledger drivers
type stores struct {
	templates repositories.TemplateRepository
	ledger    repositories.DeliveryRepository
	settings  repositories.GatewaySettingsRepository
	operators repositories.OperatorRepository
	directory repositories.StudentDirectory

	health  map[string]routes.HealthCheck
	closers []func(context.Context) error
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := openStores(startCtx, cfg, log)
	cancelStart()
	if err != nil {
		log.WithError(err).Fatal("Failed to open stores")
	}
	defer st.close(log)

	var templateCache services.TemplateCache
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		templateCache = cache.NewRedisTemplateCache(rdb, cfg.Redis.TTL())
		st.health["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		st.closers = append(st.closers, func(context.Context) error { return rdb.Close() })
		log.WithField("address", cfg.Redis.Address).Info("Template cache enabled")
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.AMQP.URL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to AMQP broker")
		}
		publisher = amqpPub
		log.WithField("exchange", cfg.AMQP.Exchange).Info("Batch events enabled")
	}
	defer publisher.Close()

	var dispatchMetrics *metrics.Dispatch
	if cfg.Metrics.Enabled {
		dispatchMetrics = metrics.New()
	}

	demo := smsgateway.DemoConfig{
		SuccessRate: cfg.SMS.Demo.SuccessRate,
		Delay:       time.Duration(cfg.SMS.Demo.DelayMillis) * time.Millisecond,
	}
	registry := smsgateway.DefaultRegistry(demo, cfg.SMS.Timeout())
	adapterOpts := []smsgateway.AdapterOption{
		smsgateway.WithTimeout(cfg.SMS.Timeout()),
		smsgateway.WithLogger(logrus.NewEntry(log)),
	}
	if dispatchMetrics != nil {
		adapterOpts = append(adapterOpts, smsgateway.WithObserver(dispatchMetrics))
	}
	adapter := smsgateway.NewAdapter(adapterOpts...)

	// Initialize services
	tokens := jwt.NewTokenService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiresIn)*time.Second)
	templateService := services.NewTemplateService(st.templates, templateCache, log)
	gatewayService := services.NewGatewayService(st.settings, registry, adapter, cfg.SMS.DefaultBackend, log)
	dispatchService := services.NewDispatchService(templateService, st.ledger, gatewayService, adapter,
		services.DispatchConfig{Concurrency: cfg.Dispatch.Concurrency, MaxRetries: cfg.Dispatch.MaxRetries},
		log,
		services.WithPublisher(publisher),
		services.WithMetrics(dispatchMetrics),
	)
	recipientService := services.NewRecipientService(st.directory, templateService, dispatchService)
	deliveryService := services.NewDeliveryService(st.ledger)
	authService := services.NewAuthService(st.operators, tokens)

	deps := routes.HandlerDependencies{
		AuthHandler:     handlers.NewAuthHandler(authService),
		TemplateHandler: handlers.NewTemplateHandler(templateService),
		DispatchHandler: handlers.NewDispatchHandler(dispatchService, recipientService),
		DeliveryHandler: handlers.NewDeliveryHandler(deliveryService),
		GatewayHandler:  handlers.NewGatewayHandler(gatewayService),
		Tokens:          tokens,
		Log:             log,
		AllowedHosts:    cfg.Server.AllowedHosts,
		MetricsPath:     cfg.Metrics.Path,
		HealthChecks:    st.health,
	}
	if dispatchMetrics != nil {
		deps.Metrics = dispatchMetrics.Handler()
	}
	router := routes.SetupRouter(deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":    cfg.Server.Port,
			"storage": cfg.Storage.Driver,
			"ledger":  cfg.Ledger.Driver,
			"gateway": cfg.SMS.DefaultBackend,
		}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Batches in flight finish on their own context; give them time to drain.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	log.Info("Server exiting")
}

// openStores connects the configured drivers and builds the repositories
func openStores(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*stores, error) {
	st := &stores{health: make(map[string]routes.HealthCheck)}

	if cfg.UsesMongo() {
		client, err := mongodb.NewClient(ctx, cfg.MongoDB.URI)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, client.Disconnect)
		st.health["mongodb"] = client.Ping

		db := client.Database(cfg.MongoDB.Database)
		if err := mongorepo.EnsureIndexes(ctx, db); err != nil {
			st.close(log)
			return nil, err
		}
		log.WithField("database", cfg.MongoDB.Database).Info("Connected to MongoDB")

		if cfg.Storage.Driver == config.DriverMongo {
			st.templates = mongorepo.NewTemplateRepository(db)
			st.settings = mongorepo.NewGatewaySettingsRepository(db)
			st.operators = mongorepo.NewOperatorRepository(db)
			st.directory = mongorepo.NewStudentDirectory(db)
		}
		if cfg.Ledger.Driver == config.DriverMongo {
			st.ledger = mongorepo.NewDeliveryRepository(db)
		}
	}

	if cfg.Storage.Driver == config.DriverMemory {
		log.Warn("Using in-memory storage; templates, settings and operators are lost on restart")
		st.templates = memory.NewTemplateRepository()
		st.settings = memory.NewGatewaySettingsRepository()
		st.operators = memory.NewOperatorRepository()
		st.directory = memory.NewStudentDirectory()
	}

	switch cfg.Ledger.Driver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Postgres.URL, cfg.Postgres.MaxConns)
		if err != nil {
			st.close(log)
			return nil, err
		}
		st.closers = append(st.closers, func(context.Context) error { pool.Close(); return nil })
		st.health["postgres"] = pool.Ping
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			st.close(log)
			return nil, err
		}
		st.ledger = postgres.NewDeliveryRepository(pool)
		log.Info("Delivery ledger on PostgreSQL")
	case config.DriverMemory:
		log.Warn("Using in-memory delivery ledger")
		st.ledger = memory.NewDeliveryRepository()
	}

	return st, nil
}

func (s *stores) close(log *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			log.WithError(err).Warn("Error closing store")
		}
	}
	s.closers = nil
}
