package repository

import (
	"context"
	"time"

	"PulseCast/internal/domain/models"
)

type BiometricStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.DailySummary, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type Publisher interface {
	Publish(ctx context.Context, s *models.DailySummary) error
	PublishBatch(ctx context.Context, summaries []*models.DailySummary) error
	Close() error
}

type Storage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, s *models.DailySummary) error
	StoreBatch(ctx context.Context, summaries []*models.DailySummary) error
	Query(ctx context.Context, from, to time.Time, limit int) ([]*models.DailySummary, error)
	Health(ctx context.Context) error // ping
	Close() error
}

type Metrics interface {
	RecordSummaryIngested(source string)
	RecordError(kind string)
	RecordTrainingRun(outcome string, seconds float64)
	RecordCVMetric(model, metric string, value float64)
	RecordPrediction(model string, value float64)
	RecordLatency(op string, seconds float64)
}
