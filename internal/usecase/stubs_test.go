package usecase

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"PulseCast/internal/domain/models"
)

type stubMetrics struct {
	mu        sync.Mutex
	errors    map[string]int
	ingested  map[string]int
	trainings []string
}

func newStubMetrics() *stubMetrics {
	return &stubMetrics{errors: map[string]int{}, ingested: map[string]int{}}
}

func (m *stubMetrics) RecordSummaryIngested(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingested[source]++
}

func (m *stubMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *stubMetrics) RecordTrainingRun(outcome string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainings = append(m.trainings, outcome)
}

func (m *stubMetrics) RecordCVMetric(string, string, float64) {}
func (m *stubMetrics) RecordPrediction(string, float64)       {}
func (m *stubMetrics) RecordLatency(string, float64)          {}

// stubFeatureStore serves a fixed synthetic matrix.
type stubFeatureStore struct {
	matrix *models.FeatureMatrix
	calls  int
}

func (s *stubFeatureStore) TrainingMatrix(_ context.Context, maxDays int) (*models.FeatureMatrix, error) {
	s.calls++
	m := s.matrix
	if m.Len() > maxDays {
		start := m.Len() - maxDays
		return &models.FeatureMatrix{
			Names:   m.Names,
			Rows:    m.Rows[start:],
			Targets: m.Targets[start:],
			Dates:   m.Dates[start:],
		}, nil
	}
	return m, nil
}

func (s *stubFeatureStore) LatestWindow(_ context.Context, days int) (*models.FeatureMatrix, error) {
	s.calls++
	m := s.matrix
	if m.Len() > days {
		start := m.Len() - days
		return &models.FeatureMatrix{
			Names: m.Names,
			Rows:  m.Rows[start:],
			Dates: m.Dates[start:],
		}, nil
	}
	return m, nil
}

// syntheticMatrix builds n days of correlated features with a learnable
// next-day target.
func syntheticMatrix(n int, seed int64) *models.FeatureMatrix {
	rng := rand.New(rand.NewSource(seed))
	names := []string{"resting_hr", "hrv_delta", "sleep_duration_min", "steps_delta", "spo2_avg", "rhr_3d_std"}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := &models.FeatureMatrix{Names: names}
	for i := 0; i < n; i++ {
		signal := math.Sin(float64(i) / 9.0)
		row := []float64{
			55 + 4*rng.NormFloat64(),
			signal + 0.1*rng.NormFloat64(),
			420 + 30*rng.NormFloat64(),
			rng.NormFloat64(),
			96 + rng.NormFloat64(),
			math.Abs(rng.NormFloat64()),
		}
		m.Rows = append(m.Rows, row)
		m.Targets = append(m.Targets, signal+0.05*rng.NormFloat64())
		m.Dates = append(m.Dates, start.AddDate(0, 0, i))
	}
	return m
}
