package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/agnostech/event-gateway/internal/api"
	"github.com/agnostech/event-gateway/internal/config"
	"github.com/agnostech/event-gateway/internal/gateway"
	"github.com/agnostech/event-gateway/internal/pkg/logger"
	"github.com/agnostech/event-gateway/internal/publisher"
	"github.com/agnostech/event-gateway/internal/store"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the event gateway server",
	Long: `Start the HTTP server with the storage backend and publisher named in
the configuration.

Examples:
  event-gateway serve                      # uses ./config.toml
  event-gateway serve --config /etc/event-gateway/config.toml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = os.Getenv("APP_CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := buildStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer closeStore()

	pub, closePublisher, err := buildPublisher(cfg)
	if err != nil {
		return fmt.Errorf("publisher: %w", err)
	}
	defer closePublisher()

	var gw gateway.Gateway = gateway.New(pub, st, gateway.Config{
		SamplingEnabled:   cfg.Gateway.SamplingEnabled,
		SamplingThreshold: cfg.Gateway.SamplingThreshold,
	})

	var metricsHandler http.Handler
	if cfg.Gateway.MetricsEnabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		gw, err = gateway.NewMeteredGateway(gw, registry)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	apiCfg := api.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Prefix:         cfg.API.Prefix,
		Verbose:        verbose || cfg.DebugMode,
		MetricsHandler: metricsHandler,
	}
	if cfg.API.JWTAuth != nil {
		apiCfg.JwksURL = cfg.API.JWTAuth.JwksURL
		apiCfg.JwksRefreshInterval = cfg.API.JWTAuth.RefreshInterval()
	}

	server, err := api.NewServer(ctx, apiCfg, gw)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildStorage selects the backend named in the configuration. The
// postgres backend is wrapped in the refresh cache.
func buildStorage(ctx context.Context, cfg *config.AppConfig) (store.Storage, func(), error) {
	noop := func() {}
	switch cfg.Database.Type {
	case config.DatabaseFile:
		st, err := store.NewFileStorage(cfg.Database.Path)
		if err != nil {
			return nil, nil, err
		}
		return st, noop, nil

	case config.DatabaseInMemory:
		if cfg.Database.InitialDataJSON != "" {
			st, err := store.NewInMemoryStorageFromJSON([]byte(cfg.Database.InitialDataJSON))
			if err != nil {
				return nil, nil, err
			}
			return st, noop, nil
		}
		return store.NewInMemoryStorage(), noop, nil

	case config.DatabasePostgres:
		pg, err := store.NewPostgresStorage(ctx, cfg.Database.Postgres())
		if err != nil {
			return nil, nil, err
		}
		cached, err := store.NewCachedStorage(ctx, pg, cfg.Database.CacheRefreshInterval())
		if err != nil {
			pg.Close()
			return nil, nil, err
		}
		return cached, func() {
			cached.Close()
			pg.Close()
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown database type %q", cfg.Database.Type)
}

func buildPublisher(cfg *config.AppConfig) (publisher.Publisher, func(), error) {
	noop := func() {}
	switch cfg.Gateway.Publisher.Type {
	case config.PublisherNoOp:
		return publisher.NoOpPublisher{}, noop, nil

	case config.PublisherKafka:
		pub, err := publisher.NewKafkaPublisher(cfg.Gateway.Publisher.Kafka)
		if err != nil {
			return nil, nil, err
		}
		return pub, func() {
			if err := pub.Close(); err != nil {
				logger.Warn("closing kafka producer", "error", err)
			}
		}, nil

	case config.PublisherMQTT:
		pub, err := publisher.NewMQTTPublisher(cfg.Gateway.Publisher.MQTT)
		if err != nil {
			return nil, nil, err
		}
		return pub, pub.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown publisher type %q", cfg.Gateway.Publisher.Type)
}
