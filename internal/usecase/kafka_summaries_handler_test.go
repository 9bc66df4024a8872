package usecase

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"PulseCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStorage struct {
	stored []*models.DailySummary
	fail   bool
}

func (s *stubStorage) Init(context.Context) error { return nil }

func (s *stubStorage) Store(_ context.Context, d *models.DailySummary) error {
	if s.fail {
		return assert.AnError
	}
	s.stored = append(s.stored, d)
	return nil
}

func (s *stubStorage) StoreBatch(ctx context.Context, ds []*models.DailySummary) error {
	for _, d := range ds {
		if err := s.Store(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (s *stubStorage) Query(context.Context, time.Time, time.Time, int) ([]*models.DailySummary, error) {
	return s.stored, nil
}

func (s *stubStorage) Health(context.Context) error { return nil }
func (s *stubStorage) Close() error                 { return nil }

func TestKafkaHandlerStoresSummary(t *testing.T) {
	storage := &stubStorage{}
	metrics := newStubMetrics()
	h := NewKafkaSummariesHandler("biometrics.daily_summaries", storage, metrics)
	assert.Equal(t, "biometrics.daily_summaries", h.Topic())

	in := &models.DailySummary{
		Date:      time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
		RestingHR: 55,
		HRVRMSSD:  44,
		Steps:     math.NaN(),
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), b))
	require.Len(t, storage.stored, 1)
	assert.Equal(t, in.Date, storage.stored[0].Date)
	assert.True(t, math.IsNaN(storage.stored[0].Steps))
	assert.Equal(t, 1, metrics.ingested["clickhouse"])
}

func TestKafkaHandlerRejectsMalformedPayload(t *testing.T) {
	storage := &stubStorage{}
	metrics := newStubMetrics()
	h := NewKafkaSummariesHandler("t", storage, metrics)

	require.Error(t, h.Handle(context.Background(), []byte("{not json")))
	assert.Empty(t, storage.stored)
	assert.Equal(t, 1, metrics.errors["consumer_unmarshal"])
}

func TestKafkaHandlerPropagatesStoreError(t *testing.T) {
	storage := &stubStorage{fail: true}
	metrics := newStubMetrics()
	h := NewKafkaSummariesHandler("t", storage, metrics)

	b, err := json.Marshal(&models.DailySummary{Date: time.Now().UTC()})
	require.NoError(t, err)
	require.Error(t, h.Handle(context.Background(), b))
	assert.Equal(t, 1, metrics.errors["consumer_store"])
}
