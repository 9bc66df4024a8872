package usecase

import (
	"context"
	"fmt"
	"time"

	"PulseCast/internal/domain/models"
	drepo "PulseCast/internal/domain/repository"
)

// SummaryProcessor routes daily summaries to the configured backend.
type SummaryProcessor struct {
	pub     drepo.Publisher
	store   drepo.Storage
	metrics drepo.Metrics
	backend string
	batchSz int
	batchTO time.Duration
}

// NewSummaryProcessor creates a new SummaryProcessor instance.
func NewSummaryProcessor(
	pub drepo.Publisher,
	store drepo.Storage,
	metrics drepo.Metrics,
	backend string,
	batchSz int,
	batchTO time.Duration,
) *SummaryProcessor {
	return &SummaryProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
		batchSz: batchSz,
		batchTO: batchTO,
	}
}

// Process routes a single summary to the configured backend.
func (p *SummaryProcessor) Process(ctx context.Context, s *models.DailySummary) error {
	if s == nil {
		return fmt.Errorf("summary is nil")
	}

	start := time.Now()
	var err error

	switch p.backend {
	case "kafka":
		err = p.pub.Publish(ctx, s)
	case "clickhouse":
		err = p.store.Store(ctx, s)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process summary: %w", err)
	}

	p.metrics.RecordSummaryIngested(p.backend)
	p.metrics.RecordLatency("process", time.Since(start).Seconds())

	return nil
}

// ProcessBatch routes multiple summaries in a batch.
func (p *SummaryProcessor) ProcessBatch(ctx context.Context, summaries []*models.DailySummary) error {
	if len(summaries) == 0 {
		return nil
	}

	start := time.Now()
	var err error

	switch p.backend {
	case "kafka":
		err = p.pub.PublishBatch(ctx, summaries)
	case "clickhouse":
		err = p.store.StoreBatch(ctx, summaries)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	for range summaries {
		p.metrics.RecordSummaryIngested(p.backend)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())

	return nil
}

// Close closes underlying resources if available.
func (p *SummaryProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
