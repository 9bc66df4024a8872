package middleware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"PulseCast/internal/domain/models"
	domrepo "PulseCast/internal/domain/repository"
	"PulseCast/pkg/util"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, s *models.DailySummary) error
}

// IngestPipeline sits between the device gateway and the downstream
// backend. It validates summaries, throttles duplicate re-deliveries of
// the same day, and buffers when downstream is unavailable.
type IngestPipeline struct {
	proc        Proc
	metrics     domrepo.Metrics
	minInterval time.Duration
	bufSize     int
	bufCh       chan *models.DailySummary
	stopCh      chan struct{}
	started     bool
	mu          sync.Mutex
	lastSeen    map[string]time.Time // per-date last accepted time
	// optional normalization hook applied before validation re-check
	transform func(*models.DailySummary) *models.DailySummary
}

type PipelineOption func(*IngestPipeline)

// WithMinInterval sets the minimum interval between accepted updates of
// the same calendar day.
func WithMinInterval(d time.Duration) PipelineOption {
	return func(p *IngestPipeline) {
		if d > 0 {
			p.minInterval = d
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform sets a normalization hook applied to each summary.
func WithTransform(fn func(*models.DailySummary) *models.DailySummary) PipelineOption {
	return func(p *IngestPipeline) { p.transform = fn }
}

// NewIngestPipeline creates a new pipeline.
func NewIngestPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		proc:        proc,
		metrics:     metrics,
		minInterval: time.Second, // default throttle per day
		bufSize:     1000,        // default buffer
		bufCh:       make(chan *models.DailySummary, 1000),
		stopCh:      make(chan struct{}),
		lastSeen:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.DailySummary, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered summaries.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case s := <-p.bufCh:
				if s == nil {
					continue
				}
				if err := p.proc.Process(ctx, s); err != nil {
					// exponential backoff with cap
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- s:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards the summary downstream,
// buffering on errors.
func (p *IngestPipeline) Process(ctx context.Context, s *models.DailySummary) error {
	start := time.Now()
	if err := validateSummary(s); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		s = p.transform(s)
		if err := validateSummary(s); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	day := util.TruncateToDay(s.Date).Format("2006-01-02")
	if !p.allow(day, start) {
		// throttled; record and drop silently
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, s); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- s:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateSummary(s *models.DailySummary) error {
	if s == nil {
		return fmt.Errorf("summary nil")
	}
	if s.Date.IsZero() {
		return fmt.Errorf("date missing")
	}
	// non-missing physiological values must be plausible
	if !math.IsNaN(s.RestingHR) && (s.RestingHR < 20 || s.RestingHR > 200) {
		return fmt.Errorf("resting hr out of range: %.1f", s.RestingHR)
	}
	if !math.IsNaN(s.HRVRMSSD) && s.HRVRMSSD <= 0 {
		return fmt.Errorf("rmssd not positive: %.2f", s.HRVRMSSD)
	}
	if !math.IsNaN(s.SleepDurationMin) && (s.SleepDurationMin < 0 || s.SleepDurationMin > 24*60) {
		return fmt.Errorf("sleep duration out of range: %.0f", s.SleepDurationMin)
	}
	if !math.IsNaN(s.Steps) && s.Steps < 0 {
		return fmt.Errorf("negative steps")
	}
	return nil
}

func (p *IngestPipeline) allow(day string, now time.Time) bool {
	if p.minInterval <= 0 {
		return true
	}
	last := p.lastSeen[day]
	if last.IsZero() {
		p.lastSeen[day] = now
		return true
	}
	if now.Sub(last) < p.minInterval {
		return false
	}
	p.lastSeen[day] = now
	return true
}
