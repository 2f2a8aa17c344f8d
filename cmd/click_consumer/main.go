package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IgorGrieder/linkstats/internal/config"
	"github.com/IgorGrieder/linkstats/internal/events"
	"github.com/IgorGrieder/linkstats/internal/infrastructure/logger"
	"github.com/IgorGrieder/linkstats/internal/infrastructure/telemetry"
	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type consumerConfig struct {
	appEnv       string
	appName      string
	appVersion   string
	logLevel     string
	otelEnabled  bool
	otelEndpoint string
	sampleRatio  float64

	kafkaBrokers []string
	kafkaTopic   string
	kafkaGroupID string

	fetchMaxWait    time.Duration
	consumeBackoff  time.Duration
	summaryInterval time.Duration
	summaryTop      int
}

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.appEnv, cfg.logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	serviceName := cfg.appName + "-click-consumer"
	if cfg.otelEnabled {
		shutdownTracer, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
			Endpoint:       cfg.otelEndpoint,
			ServiceName:    serviceName,
			ServiceVersion: cfg.appVersion,
			Environment:    cfg.appEnv,
			SampleRatio:    cfg.sampleRatio,
		})
		if err != nil {
			logger.Warn("failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			defer func() {
				if err := shutdownTracer(context.Background()); err != nil {
					logger.Warn("failed to shutdown tracer", zap.Error(err))
				}
			}()
		}
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.kafkaBrokers,
		Topic:       cfg.kafkaTopic,
		GroupID:     cfg.kafkaGroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     cfg.fetchMaxWait,
		StartOffset: kafka.FirstOffset,
	})
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Warn("failed to close kafka reader", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("click consumer started",
		zap.Strings("kafka_brokers", cfg.kafkaBrokers),
		zap.String("kafka_topic", cfg.kafkaTopic),
		zap.String("kafka_group", cfg.kafkaGroupID),
	)

	tally := events.NewTally()
	go logSummaries(ctx, tally, cfg.summaryInterval, cfg.summaryTop)

	tracer := otel.Tracer("click-consumer")
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info("click consumer stopping")
				logSummary(tally, cfg.summaryTop)
				return
			}
			logger.Error("failed to fetch kafka message", zap.Error(err))
			time.Sleep(cfg.consumeBackoff)
			continue
		}

		consumeCtx, span := tracer.Start(
			events.ExtractHeaders(ctx, msg.Headers),
			"kafka.consume.click_recorded",
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination.name", msg.Topic),
				attribute.String("messaging.operation", "process"),
				attribute.Int("messaging.kafka.partition", msg.Partition),
				attribute.Int64("messaging.kafka.offset", msg.Offset),
			),
		)

		processMessage(msg, tally)

		if err := reader.CommitMessages(consumeCtx, msg); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "commit kafka offset failed")
			logger.Error("failed to commit kafka offset",
				zap.Error(err),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			span.End()
			time.Sleep(cfg.consumeBackoff)
			continue
		}

		span.End()
	}
}

// processMessage never fails: malformed events are logged and skipped.
func processMessage(msg kafka.Message, tally *events.Tally) {
	event, occurredAt, err := events.DecodeClickRecorded(msg.Value, msg.Time)
	if err != nil {
		logger.Warn("invalid click event payload, skipping",
			zap.Error(err),
			zap.ByteString("payload", msg.Value),
		)
		return
	}

	tally.Add(event)
	logger.Debug("click event consumed",
		zap.String("event_id", event.EventID),
		zap.String("slug", event.Slug),
		zap.String("location", event.Location),
		zap.String("source", event.Source),
		zap.Time("occurred_at", occurredAt),
	)
}

func logSummaries(ctx context.Context, tally *events.Tally, interval time.Duration, top int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logSummary(tally, top)
		}
	}
}

func logSummary(tally *events.Tally, top int) {
	snapshot := tally.Snapshot()
	if len(snapshot) > top {
		snapshot = snapshot[:top]
	}
	for _, lt := range snapshot {
		logger.Info("click summary",
			zap.String("slug", lt.Slug),
			zap.Int64("clicks", lt.Clicks),
			zap.Any("by_location", lt.ByLocation),
			zap.Any("by_source", lt.BySource),
		)
	}
}

func loadConfig() (consumerConfig, error) {
	cfg := consumerConfig{
		appEnv:          config.GetEnv("APP_ENV", "production"),
		appName:         config.GetEnv("APP_NAME", "linkstats"),
		appVersion:      config.GetEnv("APP_VERSION", "0.1.0"),
		logLevel:        config.GetEnv("LOG_LEVEL", "info"),
		otelEnabled:     config.GetEnvBool("OTEL_ENABLED", false),
		otelEndpoint:    config.GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
		sampleRatio:     config.GetEnvFloat("OTEL_SAMPLE_RATIO", 1),
		kafkaBrokers:    config.SplitCSV(config.GetEnv("KAFKA_BROKERS", "localhost:9092")),
		kafkaTopic:      config.GetEnv("KAFKA_CLICK_TOPIC", "clicks.recorded"),
		kafkaGroupID:    config.GetEnv("KAFKA_CLICK_GROUP_ID", "click-analytics"),
		fetchMaxWait:    config.GetEnvDuration("KAFKA_CONSUMER_MAX_WAIT", 500*time.Millisecond),
		consumeBackoff:  config.GetEnvDuration("KAFKA_CONSUMER_BACKOFF", 500*time.Millisecond),
		summaryInterval: config.GetEnvDuration("CLICK_SUMMARY_INTERVAL", time.Minute),
		summaryTop:      config.GetEnvInt("CLICK_SUMMARY_TOP", 10),
	}

	if len(cfg.kafkaBrokers) == 0 {
		return consumerConfig{}, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if strings.TrimSpace(cfg.kafkaTopic) == "" {
		return consumerConfig{}, fmt.Errorf("KAFKA_CLICK_TOPIC must not be empty")
	}
	if strings.TrimSpace(cfg.kafkaGroupID) == "" {
		return consumerConfig{}, fmt.Errorf("KAFKA_CLICK_GROUP_ID must not be empty")
	}
	if cfg.summaryInterval <= 0 {
		return consumerConfig{}, fmt.Errorf("CLICK_SUMMARY_INTERVAL must be > 0")
	}
	if cfg.summaryTop <= 0 {
		return consumerConfig{}, fmt.Errorf("CLICK_SUMMARY_TOP must be > 0")
	}

	return cfg, nil
}
