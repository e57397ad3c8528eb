package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/api"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/config"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/db"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/logger"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/notify"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/storage"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/storage/inmemory"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/storage/postgres"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tournament planner API server",
	Long: `Start the tournament planner API server.

The server serves REST endpoints under /api/v1 and streams change
notifications over SSE at /api/cr/subscribe/{kind}/{id}. Configuration
comes from a YAML file (--config); with --in-memory the server runs
against a non-persistent store and needs no configuration file.`,
}

const (
	defaultGracefulTimeout = 30 * time.Second // Kubernetes-friendly shutdown time
	serverReadTimeout      = 10 * time.Second // Enough for headers and small requests
	serverIdleTimeout      = 60 * time.Second // Keep connections alive for reuse

	// The subscription streams stay open indefinitely, so the server must
	// not enforce a write timeout.
	serverWriteTimeout = 0
)

func init() {
	serveCmd.RunE = runServe
	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format)")
	serveCmd.Flags().Bool("in-memory", false, "Use the in-memory store instead of PostgreSQL")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		logger.Fatalf("Failed to bind address flag: %v", err)
	}
	if err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config")); err != nil {
		logger.Fatalf("Failed to bind config flag: %v", err)
	}
	if err := viper.BindPFlag("in-memory", serveCmd.Flags().Lookup("in-memory")); err != nil {
		logger.Fatalf("Failed to bind in-memory flag: %v", err)
	}
}

// loadServeConfig resolves the effective configuration for the serve command.
func loadServeConfig() (*config.Config, error) {
	configPath := viper.GetString("config")
	inMemory := viper.GetBool("in-memory")

	if configPath == "" {
		if !inMemory {
			return nil, fmt.Errorf("--config is required unless --in-memory is set")
		}
		return &config.Config{Storage: config.StorageTypeMemory}, nil
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if inMemory {
		cfg.Storage = config.StorageTypeMemory
	}
	return cfg, nil
}

// buildStore creates the persistence backend selected by the configuration.
// The returned cleanup func releases the backing connection pool, if any.
func buildStore(ctx context.Context, cfg *config.Config, tel *telemetry.Telemetry) (storage.Store, func(), error) {
	switch cfg.GetStorageType() {
	case config.StorageTypeMemory:
		logger.Info("Using in-memory storage")
		return inmemory.New(), func() {}, nil
	case config.StorageTypePostgres:
		pool, err := db.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		store, err := postgres.New(
			postgres.WithPool(pool),
			postgres.WithTracer(tel.TracerProvider().Tracer("storage")),
		)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to create store: %w", err)
		}
		return store, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage type %q", cfg.GetStorageType())
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	address := viper.GetString("address")
	if address == "" {
		address = ":8080"
	}

	cfg, err := loadServeConfig()
	if err != nil {
		return err
	}
	if cfg.Server != nil && cfg.Server.Address != "" && !serveCmd.Flags().Changed("address") {
		address = cfg.Server.Address
	}

	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Failed to shut down telemetry: %v", err)
		}
	}()

	store, closeStore, err := buildStore(ctx, cfg, tel)
	if err != nil {
		return err
	}
	defer closeStore()

	notifyMetrics, err := telemetry.NewNotifyMetrics(tel.MeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create notification metrics: %w", err)
	}

	var brokerOpts []notify.Option
	brokerOpts = append(brokerOpts, notify.WithObserver(notifyMetrics))
	if cfg.Notify != nil && cfg.Notify.BufferSize > 0 {
		brokerOpts = append(brokerOpts, notify.WithBufferSize(cfg.Notify.BufferSize))
	}
	broker, err := notify.New(brokerOpts...)
	if err != nil {
		return fmt.Errorf("failed to create notification broker: %w", err)
	}
	defer broker.Close()

	metricsMiddleware, err := telemetry.MetricsMiddleware(tel.MeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create metrics middleware: %w", err)
	}

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			metricsMiddleware,
			api.LoggingMiddleware,
		),
		api.WithNotifyMetrics(notifyMetrics),
	}
	if h := tel.PrometheusHandler(); h != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(h))
	}
	if cfg.Notify != nil && cfg.Notify.KeepAliveInterval != "" {
		interval, err := time.ParseDuration(cfg.Notify.KeepAliveInterval)
		if err != nil {
			return fmt.Errorf("invalid keep-alive interval: %w", err)
		}
		serverOpts = append(serverOpts, api.WithKeepAliveInterval(interval))
	}

	router := api.NewServer(store, broker, serverOpts...)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Server listening on %s", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutting down server...")

	// Close the broker first so subscription streams end and their handlers
	// return before the drain deadline.
	broker.Close()

	gracefulTimeout := defaultGracefulTimeout
	if cfg.Server != nil && cfg.Server.GracefulTimeout != "" {
		if d, err := time.ParseDuration(cfg.Server.GracefulTimeout); err == nil {
			gracefulTimeout = d
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
		return err
	}

	logger.Info("Server shutdown complete")
	return nil
}
