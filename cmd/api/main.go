package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IgorGrieder/linkstats/internal/config"
	"github.com/IgorGrieder/linkstats/internal/events"
	"github.com/IgorGrieder/linkstats/internal/infrastructure/collector"
	"github.com/IgorGrieder/linkstats/internal/infrastructure/geo"
	"github.com/IgorGrieder/linkstats/internal/infrastructure/logger"
	"github.com/IgorGrieder/linkstats/internal/infrastructure/telemetry"
	"github.com/IgorGrieder/linkstats/internal/processing/links"
	"github.com/IgorGrieder/linkstats/internal/storage/memory"
	redisStorage "github.com/IgorGrieder/linkstats/internal/storage/redis"
	httpTransport "github.com/IgorGrieder/linkstats/internal/transport/http"
	"github.com/IgorGrieder/linkstats/pkg/httpclient"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type clickPublisher interface {
	links.ClickPublisher
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.App.Env, cfg.App.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Env),
	)

	ctx := context.Background()

	var shutdownTracer func(context.Context) error
	if cfg.OTel.Enabled {
		shutdownTracer, err = telemetry.InitTracer(ctx, telemetry.TracerConfig{
			Endpoint:       cfg.OTel.Endpoint,
			ServiceName:    cfg.App.Name,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Env,
			SampleRatio:    cfg.OTel.SampleRatio,
		})
		if err != nil {
			logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			logger.Info("OpenTelemetry tracer initialized", zap.String("endpoint", cfg.OTel.Endpoint))
		}
	}

	var redisClient *goredis.Client
	if cfg.Redis.Addr != "" && cfg.GeoActive() {
		redisClient, err = redisStorage.New(ctx, redisStorage.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn("Redis unavailable, geolocation cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer func() { _ = redisClient.Close() }()
		}
	}

	locator := newLocator(cfg, redisClient)
	publisher := newPublisher(cfg)

	collectorClient := collector.NewClient(
		httpclient.NewClient(httpclient.Options{
			Name:    "collector",
			Timeout: cfg.Collector.Timeout,
		}),
		cfg.Collector.URL,
		cfg.Collector.Token,
	)
	var reporter *collector.Reporter
	if cfg.Collector.URL != "" {
		reporter = collector.NewReporter(collectorClient, collector.StackBackend, cfg.Collector.Timeout)
	} else {
		logger.Info("COLLECTOR_URL not set, service events stay local")
	}

	linkSvc := links.NewService(
		memory.NewLinksRepository(),
		locator,
		publisher,
		links.NewCryptoSlugger(),
		links.Options{
			SlugLength:      cfg.Shortener.SlugLength,
			DefaultValidity: cfg.Shortener.DefaultValidity,
		},
	)

	router := httpTransport.NewRouter(cfg, httpTransport.Dependencies{
		Links:     linkSvc,
		LogSender: collectorClient,
		Reporter:  reporter,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", zap.Error(err))
		}
		if err := reporter.Wait(shutdownCtx); err != nil {
			logger.Warn("Collector events still in flight at shutdown", zap.Error(err))
		}
		if err := publisher.Close(); err != nil {
			logger.Warn("Failed to close click publisher", zap.Error(err))
		}
		if shutdownTracer != nil {
			_ = shutdownTracer(shutdownCtx)
		}
	}()

	logger.Info("Server starting",
		zap.String("port", cfg.Server.Port),
		zap.String("env", cfg.App.Env),
		zap.String("address", fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)),
		zap.String("base_url", cfg.Shortener.BaseURL),
	)

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Server error", zap.Error(err))
	}
	<-shutdownDone

	logger.Info("Server stopped gracefully")
}

func newLocator(cfg *config.Config, redisClient *goredis.Client) links.Locator {
	if !cfg.GeoActive() {
		logger.Info("Geolocation disabled, clicks are recorded as unknown")
		return geo.NopLocator{}
	}

	opts := geo.Options{
		BaseURL: cfg.Geo.APIURL,
		APIKey:  cfg.Geo.APIKey,
		Limiter: rate.NewLimiter(rate.Limit(cfg.Geo.RatePerSecond), cfg.Geo.RateBurst),
	}
	if redisClient != nil {
		opts.Cache = redisStorage.NewGeoCache(redisClient, cfg.Geo.CacheTTL)
	}

	client := httpclient.NewClient(httpclient.Options{
		Name:        "geolocation",
		Timeout:     cfg.Geo.Timeout,
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
	})
	return geo.NewLocator(client, opts)
}

func newPublisher(cfg *config.Config) clickPublisher {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NopPublisher{}
	}

	logger.Info("Publishing click events",
		zap.Strings("kafka_brokers", cfg.Kafka.Brokers),
		zap.String("kafka_topic", cfg.Kafka.ClickTopic),
	)
	return events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.ClickTopic)
}
