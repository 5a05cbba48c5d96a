package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ewilliams-labs/songform/internal/adapters/analysis"
	"github.com/ewilliams-labs/songform/internal/adapters/blob"
	"github.com/ewilliams-labs/songform/internal/adapters/events"
	"github.com/ewilliams-labs/songform/internal/adapters/postgres"
	"github.com/ewilliams-labs/songform/internal/adapters/rest"
	"github.com/ewilliams-labs/songform/internal/adapters/sqlite"
	"github.com/ewilliams-labs/songform/internal/config"
	"github.com/ewilliams-labs/songform/internal/core/ports"
	"github.com/ewilliams-labs/songform/internal/core/services"
	"github.com/ewilliams-labs/songform/internal/metrics"
	"github.com/ewilliams-labs/songform/internal/worker"
)

// repository is what every database driver provides.
type repository interface {
	ports.SongRepository
	ports.ArrangementRepository
	Ping(ctx context.Context) error
}

// eventPublisher is a publisher that must be flushed on shutdown.
type eventPublisher interface {
	ports.EventPublisher
	Close() error
}

func main() {
	configPath := flag.String("config", os.Getenv("SONGFORM_CONFIG"), "path to YAML config file")
	flag.Parse()

	// 1. Configuration. Crash early on anything invalid.
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	logger := newLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("songform exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Driven adapters.
	repo, closeRepo, err := openRepository(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeRepo()

	store, closeStore, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	var clientOpts []analysis.Option
	if cfg.Analysis.ClientID != "" {
		ts := analysis.ClientCredentials(ctx, cfg.Analysis.ClientID, cfg.Analysis.ClientSecret, cfg.Analysis.TokenURL, cfg.Analysis.Scopes)
		clientOpts = append(clientOpts, analysis.WithTokenSource(ts))
	}
	analyzer := analysis.NewClient(cfg.Analysis.URL, clientOpts...)

	publisher, err := openPublisher(cfg.Events, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// 3. Core services.
	pool := worker.NewPool(publisher, logger, m, cfg.Events.Workers, cfg.Events.QueueSize)
	pool.Start()
	defer func() {
		pool.Stop()
		if err := publisher.Close(); err != nil {
			logger.Warn("event publisher close failed", "error", err)
		}
	}()

	common := []services.Option{
		services.WithLogger(logger),
		services.WithMetrics(m),
		services.WithEvents(pool),
	}
	songs := services.NewIngestionService(analyzer, repo, store, append(common,
		services.WithAnalysisTimeout(cfg.Analysis.Timeout),
		services.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
	)...)
	arrangements := services.NewArrangementService(repo, repo, common...)

	// 4. Driving adapter.
	api := rest.NewHandler(songs, arrangements, rest.Options{
		JWTSecret:      cfg.Auth.JWTSecret,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		ExposeErrors:   cfg.Server.ExposeErrors,
		Logger:         logger,
		Metrics:        m,
		Checks: []rest.Check{
			{Name: "database", Probe: repo.Ping},
			{Name: "analysis", Probe: analyzer.Health},
		},
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           withMiddleware(api, cfg.Server, logger),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	// 5. Serve until signalled.
	logger.Info("songform api listening",
		"addr", cfg.Server.Addr,
		"database", cfg.Database.Driver,
		"storage", cfg.Storage.Driver,
		"events", cfg.Events.Driver,
	)

	serverErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown error", "error", err)
		}
	}
	return nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// withMiddleware adds panic recovery, CORS and access logging around h.
func withMiddleware(h http.Handler, cfg config.ServerConfig, logger *slog.Logger) http.Handler {
	recoveryLog := slog.NewLogLogger(logger.Handler(), slog.LevelError)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLog), handlers.PrintRecoveryStack(true))(h)
	if len(cfg.CORSOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(cfg.CORSOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
			handlers.ExposedHeaders([]string{"Location", "Retry-After"}),
		)(h)
	}
	return handlers.CombinedLoggingHandler(os.Stdout, h)
}

func openRepository(ctx context.Context, cfg config.DatabaseConfig) (repository, func(), error) {
	switch cfg.Driver {
	case "sqlite":
		a, err := sqlite.NewAdapter(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize sqlite: %w", err)
		}
		return a, func() { _ = a.Close() }, nil
	case "postgres":
		a, err := postgres.NewAdapter(ctx, cfg.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		return a, func() { _ = a.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}

func openStore(ctx context.Context, cfg config.StorageConfig) (ports.AudioStore, func(), error) {
	noop := func() {}
	switch cfg.Driver {
	case "local":
		s, err := blob.NewLocalStore(cfg.LocalDir)
		return s, noop, err
	case "s3":
		s, err := blob.NewS3Store(ctx, blob.S3Options{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Prefix:          cfg.S3.Prefix,
		})
		return s, noop, err
	case "gcs":
		s, err := blob.NewGCSStore(ctx, cfg.GCS.Bucket, cfg.GCS.Prefix, cfg.GCS.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}

func openPublisher(cfg config.EventsConfig, logger *slog.Logger) (eventPublisher, error) {
	switch cfg.Driver {
	case "kafka":
		return events.NewPublisher(cfg.Brokers, cfg.Topic)
	case "log":
		return events.NewLogPublisher(logger), nil
	default:
		return nil, fmt.Errorf("unknown events driver: %s", cfg.Driver)
	}
}
