package usecase

import (
	"PulseCast/internal/domain/models"
	drepo "PulseCast/internal/domain/repository"
	mid "PulseCast/internal/middleware"
	"context"
)

// Backfiller is implemented by streams that can replay recent history
// over a side channel.
type Backfiller interface {
	Backfill(ctx context.Context, days int) ([]*models.DailySummary, error)
}

// SummaryCollector collects daily summaries from the device gateway
// stream and processes them.
type SummaryCollector struct {
	stream       drepo.BiometricStream
	proc         *SummaryProcessor
	metrics      drepo.Metrics
	pipe         *mid.IngestPipeline
	backfillDays int
}

// NewSummaryCollector creates a new SummaryCollector instance.
func NewSummaryCollector(stream drepo.BiometricStream, proc *SummaryProcessor, metrics drepo.Metrics, pipe *mid.IngestPipeline) *SummaryCollector {
	return &SummaryCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the gateway stream is connected.
func (c *SummaryCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *SummaryCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	c.backfill(ctx)
	sumCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, sumCh, errCh)
	return nil
}

// SetBackfillDays enables a one-shot history replay on Start.
func (c *SummaryCollector) SetBackfillDays(days int) { c.backfillDays = days }

// backfill closes gaps accumulated while the stream was down. Failures
// are recorded, not fatal; live ingestion proceeds regardless.
func (c *SummaryCollector) backfill(ctx context.Context) {
	bf, ok := c.stream.(Backfiller)
	if !ok || c.backfillDays <= 0 {
		return
	}
	summaries, err := bf.Backfill(ctx, c.backfillDays)
	if err != nil {
		c.metrics.RecordError("backfill")
		return
	}
	if err := c.proc.ProcessBatch(ctx, summaries); err != nil {
		c.metrics.RecordError("backfill_process")
		return
	}
	for range summaries {
		c.metrics.RecordSummaryIngested("backfill")
	}
}

func (c *SummaryCollector) consume(ctx context.Context, sumCh <-chan *models.DailySummary, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case s := <-sumCh:
			if s == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, s)
			} else {
				_ = c.proc.Process(ctx, s)
			}
			c.metrics.RecordSummaryIngested("gateway")
		}
	}
}

func (c *SummaryCollector) Stop() error { return c.stream.Close() }

// Processor returns the underlying SummaryProcessor for lifecycle management.
func (c *SummaryCollector) Processor() *SummaryProcessor { return c.proc }

// Shutdown stops pipeline and closes stream.
func (c *SummaryCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
