package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/openamphion/amphion/pkg/agentcfg"
	"github.com/openamphion/amphion/pkg/amphorae"
	"github.com/openamphion/amphion/pkg/config"
	"github.com/openamphion/amphion/pkg/drivers"
	"github.com/openamphion/amphion/pkg/secrets"
	"github.com/openamphion/amphion/pkg/store"
	"github.com/openamphion/amphion/pkg/tasks"
	"github.com/openamphion/amphion/pkg/telemetry"
)

func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the amphora orchestration worker",
		Long: `Starts the orchestration worker: resolves the configured amphora
driver, opens the entity store, and serves health and metrics endpoints.
The configuration file is watched and reloaded on change.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context())
		},
	}
}

func runWorker(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	tel, err := newTelemetry(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()
	ctx = tel.WithContext(ctx)

	workerID := uuid.New().String()
	logger := tel.Logger.NewComponentLogger("worker").WithField("worker_id", workerID)
	logger.WithDriver(cfg.AmphoraDriver).Info("Starting amphora orchestration worker")

	// Entity store
	st, err := store.NewSQLiteStore(store.Config{Path: cfg.Database.Path})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	if err := st.Init(ctx); err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = st.Close() }()
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate store: %w", err)
	}

	// Construct the task set eagerly so driver and key misconfiguration
	// surfaces at startup. The driver is resolved exactly once here; the
	// workflow engine dispatches execute and revert calls onto this set.
	if _, err := newTaskBase(cfg, st, tel); err != nil {
		return err
	}
	logger.Info("Resolved amphora driver and task set")

	// Health and metrics endpoints
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", tel.Metrics.Handler())

	server := &http.Server{
		Addr:              cfg.Metrics.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Health endpoint failed")
		}
	}()

	// Watch the configuration file for changes. Retry settings take effect
	// for task sets constructed after the reload.
	if configPath != "" {
		watcher := config.NewWatcher(configPath, tel.Logger.Zerolog())
		err := watcher.Watch(ctx, func(fresh *config.Config) {
			logger.
				WithField("connection_max_retries", fresh.ConnectionMaxRetries).
				WithField("connection_retry_interval", fresh.ConnectionRetryInterval.String()).
				Info("Configuration reloaded")
		})
		if err != nil {
			return fmt.Errorf("failed to watch configuration: %w", err)
		}
	}

	<-ctx.Done()
	logger.Info("Shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newTelemetry maps the process configuration onto the telemetry stack.
func newTelemetry(cfg *config.Config) (*telemetry.Telemetry, error) {
	telCfg := telemetry.DefaultConfig()
	telCfg.Logging.Level = cfg.Log.Level
	telCfg.Logging.Format = cfg.Log.Format
	telCfg.Metrics.Enabled = cfg.Metrics.Enabled
	telCfg.Metrics.ListenAddress = cfg.Metrics.ListenAddress
	telCfg.Tracing.Enabled = cfg.Tracing.Enabled
	telCfg.Tracing.Exporter = cfg.Tracing.Exporter
	telCfg.Tracing.Endpoint = cfg.Tracing.Endpoint
	telCfg.Tracing.Insecure = cfg.Tracing.Insecure
	return telemetry.NewTelemetry(telCfg)
}

// newTaskBase builds the shared task dependencies from process config.
func newTaskBase(cfg *config.Config, st store.Store, tel *telemetry.Telemetry) (*tasks.Base, error) {
	certKey, err := secrets.DecodeKey(cfg.CertKeyPassphrase)
	if err != nil {
		return nil, fmt.Errorf("invalid cert key passphrase: %w", err)
	}

	builder := agentcfg.NewBuilder(agentcfg.Settings{
		Debug:             cfg.Agent.Debug,
		HeartbeatInterval: cfg.Agent.HeartbeatInterval,
		HealthEndpoints:   cfg.Agent.HealthEndpoints,
	})

	taskCfg := tasks.Config{
		ConnectionMaxRetries:          cfg.ConnectionMaxRetries,
		ConnectionRetryInterval:       cfg.ConnectionRetryInterval,
		ActiveConnectionMaxRetries:    cfg.ActiveConnectionMaxRetries,
		ActiveConnectionRetryInterval: cfg.ActiveConnectionRetryInterval,
		DefaultTopology:               amphorae.Topology(cfg.LoadBalancerTopology),
		CertKey:                       certKey,
	}

	return tasks.NewBase(taskCfg, drivers.Default(), cfg.AmphoraDriver, cfg.DriverOptions,
		st, builder, tel.Logger, tel.Metrics)
}
