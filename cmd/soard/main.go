// soard - SOAR console daemon
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/logware/soar/internal/api"
	"github.com/logware/soar/internal/config"
	"github.com/logware/soar/internal/metrics"
	"github.com/logware/soar/internal/models"
	"github.com/logware/soar/internal/notify"
	"github.com/logware/soar/internal/relay"
	"github.com/logware/soar/internal/storage"
	"github.com/logware/soar/internal/tracing"
	"github.com/logware/soar/pkg/clock"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "soard.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("soard %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "soard: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logging)
	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Msg("Starting soard")

	// Storage
	var store storage.Store
	switch cfg.Storage.Backend {
	case config.BackendBadger:
		if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
			logger.Fatal().Err(err).Str("data_dir", cfg.Storage.DataDir).Msg("Failed to create data directory")
		}
		store, err = storage.NewBadgerStore(cfg.Storage.DataDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to open badger store")
		}
	default:
		store = storage.NewMemoryStore()
	}
	defer store.Close()
	logger.Info().Str("backend", cfg.Storage.Backend).Msg("Storage initialized")

	// Tracing
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := tracing.InitProvider(ctx, tracing.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: Version,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRatio,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	// Metrics
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
	}

	// Notices and abort relay
	notices := notify.NewCenter(notify.DefaultCapacity, nil)
	rel := relay.New(&relay.Config{
		DefaultCallbackURL: cfg.Relay.DefaultCallbackURL,
		Timeout:            cfg.Relay.Timeout.Std(),
		MaxAttempts:        cfg.Relay.MaxAttempts,
		InitialBackoff:     cfg.Relay.InitialBackoff.Std(),
		MaxBackoff:         cfg.Relay.MaxBackoff.Std(),
		Multiplier:         cfg.Relay.Multiplier,
		MaxConcurrent:      cfg.Relay.MaxConcurrent,
	}, logger, notices)
	if m != nil {
		rel.OnResult(m.RecordRelayDelivery)
	}

	// Retention sweeper
	if cfg.Retention.Enabled {
		go runRetention(ctx, store, cfg.Retention, m, logger)
	}

	// API
	handler := api.NewHandler(store, logger, api.HandlerOptions{
		Relay:   rel,
		Notices: notices,
		Metrics: m,
		Version: Version,
	})

	routerCfg := api.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AuthConfig:     buildAuthConfig(cfg.Auth),
		AuditConfig:    api.AuditConfig{Enabled: true, Logger: logger},
		Metrics:        m,
		MetricsPath:    cfg.Metrics.Path,
	}
	var limiter *api.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = api.NewRateLimiter(api.RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: float64(cfg.RateLimit.RequestsPerMinute) / 60,
			BurstSize:         cfg.RateLimit.Burst,
			CleanupInterval:   time.Minute,
		})
		defer limiter.Stop()
		routerCfg.RateLimiter = limiter
	}
	router := api.NewRouterWithConfig(handler, logger, routerCfg)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	go func() {
		logger.Info().Str("address", cfg.Server.Address).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Let outstanding abort deliveries drain before closing the store.
	rel.Wait()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Tracing shutdown failed")
	}

	logger.Info().Msg("soard stopped")
}

// loadConfig loads the file when present and falls back to defaults when
// the default path does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if !isFlagSet("config") {
			return config.DefaultConfig(), nil
		}
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return config.Load(path)
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// runRetention prunes terminal execution records on a fixed interval.
func runRetention(ctx context.Context, store storage.Store, cfg config.RetentionConfig, m *metrics.Metrics, logger zerolog.Logger) {
	log := logger.With().Str("component", "retention").Logger()
	clk := clock.Real()
	ticker := clk.NewTicker(cfg.Interval.Std())
	defer ticker.Stop()

	log.Info().
		Dur("interval", cfg.Interval.Std()).
		Dur("max_age", cfg.MaxAge.Std()).
		Msg("Retention sweeper started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			cutoff := clk.Now().Add(-cfg.MaxAge.Std())
			pruned, err := store.PruneExecutions(cutoff)
			if err != nil {
				log.Error().Err(err).Msg("Retention sweep failed")
				continue
			}
			if pruned > 0 {
				log.Info().Int("pruned", pruned).Time("cutoff", cutoff).Msg("Retention sweep completed")
			}
			if m != nil {
				m.ExecutionsPruned.Add(float64(pruned))
				updateStoredCounts(store, m)
			}
		}
	}
}

func updateStoredCounts(store storage.Store, m *metrics.Metrics) {
	execs, err1 := store.ListExecutions()
	pbs, err2 := store.ListPlaybooks()
	rules, err3 := store.ListRules()
	anomalies, err4 := store.ListAnomalies()
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return
	}
	m.SetStoredCounts(len(execs), len(pbs), len(rules), len(anomalies))
}

func buildAuthConfig(cfg config.AuthConfig) api.AuthConfig {
	out := api.AuthConfig{Enabled: cfg.Enabled}
	for _, k := range cfg.Keys {
		out.Credentials = append(out.Credentials, api.Credential{
			Name: k.Name,
			Hash: k.Hash,
			Actor: models.Actor{
				ID:   k.ActorID,
				Name: k.ActorName,
			},
		})
	}
	return out
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var out = os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(out)
	}
	logger = logger.With().Timestamp().Logger()

	switch cfg.Level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	return logger
}
