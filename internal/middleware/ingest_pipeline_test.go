package middleware

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"PulseCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProc struct {
	mu     sync.Mutex
	got    []*models.DailySummary
	fail   bool
	failed int
}

func (p *recordingProc) Process(_ context.Context, s *models.DailySummary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		p.failed++
		return errors.New("downstream unavailable")
	}
	p.got = append(p.got, s)
	return nil
}

func (p *recordingProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got)
}

type countingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{errors: map[string]int{}}
}

func (m *countingMetrics) RecordSummaryIngested(string) {}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *countingMetrics) RecordTrainingRun(string, float64)     {}
func (m *countingMetrics) RecordCVMetric(string, string, float64) {}
func (m *countingMetrics) RecordPrediction(string, float64)       {}
func (m *countingMetrics) RecordLatency(string, float64)          {}

func (m *countingMetrics) errCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func validSummary(day int) *models.DailySummary {
	return &models.DailySummary{
		Date:             time.Date(2026, 8, day, 0, 0, 0, 0, time.UTC),
		RestingHR:        55,
		HRVRMSSD:         42,
		SleepDurationMin: 420,
		Steps:            9000,
	}
}

func TestPipelineForwardsValidSummaries(t *testing.T) {
	proc := &recordingProc{}
	p := NewIngestPipeline(proc, newCountingMetrics())

	require.NoError(t, p.Process(context.Background(), validSummary(1)))
	require.NoError(t, p.Process(context.Background(), validSummary(2)))
	assert.Equal(t, 2, proc.count())
}

func TestPipelineRejectsInvalidSummaries(t *testing.T) {
	proc := &recordingProc{}
	m := newCountingMetrics()
	p := NewIngestPipeline(proc, m)

	assert.Error(t, p.Process(context.Background(), nil))
	assert.Error(t, p.Process(context.Background(), &models.DailySummary{}))

	s := validSummary(1)
	s.RestingHR = 300
	assert.Error(t, p.Process(context.Background(), s))

	s2 := validSummary(2)
	s2.HRVRMSSD = -5
	assert.Error(t, p.Process(context.Background(), s2))

	assert.Equal(t, 0, proc.count())
	assert.Equal(t, 4, m.errCount("pipeline_validate"))
}

func TestPipelineAllowsMissingValues(t *testing.T) {
	proc := &recordingProc{}
	p := NewIngestPipeline(proc, newCountingMetrics())

	s := validSummary(1)
	s.HRVRMSSD = math.NaN()
	s.SleepDurationMin = math.NaN()
	require.NoError(t, p.Process(context.Background(), s))
	assert.Equal(t, 1, proc.count())
}

func TestPipelineThrottlesSameDay(t *testing.T) {
	proc := &recordingProc{}
	m := newCountingMetrics()
	p := NewIngestPipeline(proc, m, WithMinInterval(time.Hour))

	require.NoError(t, p.Process(context.Background(), validSummary(1)))
	// immediate re-delivery of the same day is dropped without error
	require.NoError(t, p.Process(context.Background(), validSummary(1)))
	assert.Equal(t, 1, proc.count())
	assert.Equal(t, 1, m.errCount("pipeline_throttle"))

	// a different day passes
	require.NoError(t, p.Process(context.Background(), validSummary(2)))
	assert.Equal(t, 2, proc.count())
}

func TestPipelineBuffersOnDownstreamError(t *testing.T) {
	proc := &recordingProc{fail: true}
	m := newCountingMetrics()
	p := NewIngestPipeline(proc, m, WithBufferSize(10))

	err := p.Process(context.Background(), validSummary(1))
	require.Error(t, err)
	assert.Equal(t, 1, m.errCount("pipeline_process"))
	assert.Equal(t, 1, len(p.bufCh))

	// flusher drains the buffer once downstream recovers
	proc.mu.Lock()
	proc.fail = false
	proc.mu.Unlock()
	p.Start(context.Background())
	defer p.Stop()

	deadline := time.After(2 * time.Second)
	for proc.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("buffered summary never flushed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPipelineTransformHook(t *testing.T) {
	proc := &recordingProc{}
	p := NewIngestPipeline(proc, newCountingMetrics(), WithTransform(func(s *models.DailySummary) *models.DailySummary {
		out := *s
		out.Steps = math.Round(out.Steps)
		return &out
	}))

	s := validSummary(1)
	s.Steps = 9000.4
	require.NoError(t, p.Process(context.Background(), s))
	require.Equal(t, 1, proc.count())
	assert.Equal(t, 9000.0, proc.got[0].Steps)
}
