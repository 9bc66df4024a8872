package di

import (
	"context"
	"fmt"
	"time"

	"PulseCast/internal/domain/repository"
	mid "PulseCast/internal/middleware"
	internalrepo "PulseCast/internal/repository"
	"PulseCast/internal/service/gateway"
	"PulseCast/internal/usecase"
	pkgch "PulseCast/pkg/clickhouse"
	"PulseCast/pkg/config"
	pkgkafka "PulseCast/pkg/kafka"
	"PulseCast/pkg/metrics"
	"PulseCast/pkg/server"
)

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	table := SummaryTable(cfg)
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		"CREATE TABLE IF NOT EXISTS " + table + ` (
			date Date,
			resting_hr Float64,
			hrv_daily_rmssd Float64,
			sleep_duration_min Float64,
			sleep_deep_min Float64,
			sleep_rem_min Float64,
			spo2_avg Float64,
			br_full_sleep Float64,
			steps Float64,
			calories_active Float64,
			active_zone_min Float64,
			skin_temp_variation Float64
		) ENGINE=ReplacingMergeTree ORDER BY date`,
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// SummaryTable returns the fully qualified daily summaries table name.
func SummaryTable(cfg *config.Config) string {
	table := cfg.ClickHouse.Table
	if table == "" {
		table = "daily_summaries"
	}
	return cfg.ClickHouse.Database + "." + table
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideSummaryStorage creates ClickHouse storage repository.
func ProvideSummaryStorage(chClient *pkgch.Client, cfg *config.Config) repository.Storage {
	return internalrepo.NewClickHouseStorage(chClient.DB(), SummaryTable(cfg))
}

// ProvideSummaryPublisher creates Kafka publisher repository.
func ProvideSummaryPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaSummariesHandler registers the handler for the summaries topic.
func ProvideKafkaSummariesHandler(store repository.Storage, metrics repository.Metrics, cfg *config.Config) *usecase.KafkaSummariesHandler {
	return usecase.NewKafkaSummariesHandler(cfg.Kafka.Topic, store, metrics)
}

// ProvideGatewayStream creates the device gateway WebSocket stream.
func ProvideGatewayStream(cfg *config.Config) repository.BiometricStream {
	return gateway.New(
		cfg.Gateway.Token,
		cfg.Gateway.WebSocketURL,
		cfg.Gateway.RestURL,
		cfg.Gateway.Streams,
		cfg.Gateway.ReconnectDelay,
		cfg.Gateway.PingInterval,
	)
}

// ProvideSummaryProcessor creates the summary processor use case.
func ProvideSummaryProcessor(
	pub repository.Publisher,
	store repository.Storage,
	metrics repository.Metrics,
	cfg *config.Config,
) *usecase.SummaryProcessor {
	return usecase.NewSummaryProcessor(
		pub,
		store,
		metrics,
		cfg.Backend.Type,
		cfg.Backend.BatchSize,
		cfg.Backend.BatchTimeout,
	)
}

// ProvideSummaryCollector creates the summary collector use case.
func ProvideSummaryCollector(
	stream repository.BiometricStream,
	processor *usecase.SummaryProcessor,
	metrics repository.Metrics,
	cfg *config.Config,
) *usecase.SummaryCollector {
	// Build middleware pipeline between the gateway stream and the backend
	pipe := mid.NewIngestPipeline(processor, metrics,
		mid.WithMinInterval(time.Second),
		mid.WithBufferSize(2000),
	)
	collector := usecase.NewSummaryCollector(stream, processor, metrics, pipe)
	collector.SetBackfillDays(cfg.Gateway.BackfillDays)
	return collector
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	collector *usecase.SummaryCollector,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	kh *usecase.KafkaSummariesHandler,
	chClient *pkgch.Client,
	metrics repository.Metrics,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, collector, consumer, producer, kh, chClient, metrics)
	if collector != nil {
		app.SummaryProc = collector.Processor()
	}
	return app
}
