package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/config"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/dispatcher"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/healthcheck"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/observer"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/orgsync"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/provider"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/storage"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/usecase"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/logger"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/utils"
)

func main() {
	// Set timezone to UTC
	time.Local = time.UTC

	// Load configuration
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	metricsEnabled := cfg.Metrics.Enabled
	observer.InitMetrics(metricsEnabled)

	logger.Log.Info("Starting Drover SMS Platform",
		zap.String("environment", cfg.Environment),
		zap.String("nats_url", cfg.NATS.URL),
		zap.String("quota_timezone", cfg.Quota.Timezone),
	)

	quotaLoc, err := time.LoadLocation(cfg.Quota.Timezone)
	if err != nil {
		logger.Log.Fatal("Invalid quota timezone", zap.String("timezone", cfg.Quota.Timezone), zap.Error(err))
	}

	postgresRepo, err := storage.NewPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize Postgres repository", zap.Error(err))
	}

	// Create repository adapters for the service
	orgRepo := storage.NewOrganisationRepoAdapter(postgresRepo)
	contactRepo := storage.NewContactRepoAdapter(postgresRepo)
	groupRepo := storage.NewGroupRepoAdapter(postgresRepo)
	templateRepo := storage.NewTemplateRepoAdapter(postgresRepo)
	configRepo := storage.NewConfigRepoAdapter(postgresRepo)
	scheduleRepo := storage.NewScheduleRepoAdapter(postgresRepo)

	gateway, err := buildGateway(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize provider gateway", zap.Error(err))
	}

	service := usecase.NewMessagingService(
		orgRepo, contactRepo, groupRepo, templateRepo,
		configRepo, scheduleRepo, gateway, quotaLoc,
	)

	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	// Deferred-send dispatcher
	var sendDispatcher *dispatcher.Dispatcher
	if cfg.Dispatcher.Enabled {
		sendDispatcher, err = dispatcher.NewDispatcher(cfg.Dispatcher, scheduleRepo, gateway, quotaLoc, logger.Log)
		if err != nil {
			logger.Log.Fatal("Failed to initialize dispatcher", zap.Error(err))
		}
		sendDispatcher.Start(mainCtx)
	} else {
		logger.Log.Info("Dispatcher disabled, deferred schedules will not be delivered by this instance")
	}

	// Identity sync consumer
	consumer, err := orgsync.NewConsumer(*cfg, service, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to initialize organisation sync consumer", zap.Error(err))
	}
	if err := consumer.Start(mainCtx); err != nil {
		logger.Log.Fatal("Failed to start organisation sync consumer", zap.Error(err))
	}

	// Health check server
	healthServer := healthcheck.NewServer(strconv.Itoa(cfg.Server.Port), logger.Log)
	healthServer.AddReadyCheck("database", func(ctx context.Context) error {
		db, err := postgresRepo.DB().DB()
		if err != nil {
			return err
		}
		return db.PingContext(ctx)
	})
	if metricsEnabled {
		healthServer.RegisterMetricsHandler(promhttp.Handler())
		logger.Log.Info("Metrics endpoint enabled", zap.String("path", "/metrics"), zap.Int("port", cfg.Server.Port))
	}
	healthServer.Start()

	logger.Log.Info("Health check endpoints available",
		zap.String("health", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("readiness", fmt.Sprintf("http://localhost:%d/ready", cfg.Server.Port)),
	)

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))

	mainCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", 30*time.Second))

	var wg sync.WaitGroup
	wg.Add(3)

	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping organisation sync consumer")
		start := time.Now()
		consumer.Stop()
		logger.Log.Info("[shutdown] Organisation sync consumer stopped",
			zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping organisation sync consumer",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	utils.SafeGo(func() {
		defer wg.Done()
		if sendDispatcher == nil {
			return
		}
		logger.Log.Info("[shutdown] Stopping dispatcher")
		start := time.Now()
		sendDispatcher.Stop()
		logger.Log.Info("[shutdown] Dispatcher stopped",
			zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping dispatcher",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping health check server")
		if err := healthServer.Stop(shutdownCtx); err != nil {
			logger.Log.Warn("[shutdown] Health check server stop error", zap.Error(err))
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping health check server",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Wait for components, then close the database last
	done := make(chan struct{})
	utils.SafeGo(func() {
		wg.Wait()
		close(done)
	}, nil)

	select {
	case <-done:
		logger.Log.Info("All components stopped")
	case <-shutdownCtx.Done():
		logger.Log.Warn("Shutdown timed out, forcing exit")
	}

	if err := postgresRepo.Close(shutdownCtx); err != nil {
		logger.Log.Warn("[shutdown] Postgres close error", zap.Error(err))
	}

	logger.Log.Info("Shutdown complete")
}

// buildGateway selects the configured transport and storage backends. Mock is
// the only built-in implementation of either.
func buildGateway(cfg *config.Config) (*provider.Gateway, error) {
	var messages provider.MessageProvider
	switch cfg.Provider.SMS {
	case "mock", "":
		messages = provider.NewMockMessageProvider()
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.Provider.SMS)
	}

	var media provider.StorageProvider
	switch cfg.Provider.Storage {
	case "mock", "":
		media = provider.NewMockStorageProvider()
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider.Storage)
	}

	return provider.NewGateway(messages, media), nil
}
