package usecase

import (
	"context"
	"math"
	"testing"

	domrepo "PulseCast/internal/domain/repository"
	internalrepo "PulseCast/internal/repository"
	pkgcache "PulseCast/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForecastFromTrainedModel(t *testing.T) {
	store := &stubFeatureStore{matrix: syntheticMatrix(80, 7)}
	ms, err := internalrepo.NewFSModelStore(t.TempDir())
	require.NoError(t, err)
	cv, net := testTrainingConfig()
	metrics := newStubMetrics()
	l := testUseCaseLogger(t)

	trainer := NewTrainingUseCase(store, ms, metrics, cv, net, 120, l)
	report, err := trainer.Train(context.Background(), domrepo.SearchFresh, 1)
	require.NoError(t, err)

	fc := NewForecastUseCase(store, ms, pkgcache.NewMemoryCache(), metrics, cv.Lookback, l)

	f, err := fc.Forecast(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, report.ModelVersion, f.ModelVersion)
	assert.False(t, math.IsNaN(f.ZScore))
	assert.GreaterOrEqual(t, f.Confidence, 0.0)
	assert.LessOrEqual(t, f.Confidence, 1.0)
	assert.Empty(t, f.TopFeatures)

	last := store.matrix.Dates[store.matrix.Len()-1]
	assert.Equal(t, last.AddDate(0, 0, 1), f.TargetDate)

	// cached second call returns the identical forecast
	again, err := fc.Forecast(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, f.ZScore, again.ZScore)
	assert.True(t, f.GeneratedAt.Equal(again.GeneratedAt))
}

func TestForecastWithAttribution(t *testing.T) {
	store := &stubFeatureStore{matrix: syntheticMatrix(80, 11)}
	ms, err := internalrepo.NewFSModelStore(t.TempDir())
	require.NoError(t, err)
	cv, net := testTrainingConfig()
	metrics := newStubMetrics()
	l := testUseCaseLogger(t)

	trainer := NewTrainingUseCase(store, ms, metrics, cv, net, 120, l)
	_, err = trainer.Train(context.Background(), domrepo.SearchFresh, 1)
	require.NoError(t, err)

	fc := NewForecastUseCase(store, ms, nil, metrics, cv.Lookback, l)
	f, err := fc.Forecast(context.Background(), true)
	require.NoError(t, err)
	require.NotEmpty(t, f.TopFeatures)
	assert.LessOrEqual(t, len(f.TopFeatures), topFeatureCount)
	for name, v := range f.TopFeatures {
		assert.Contains(t, store.matrix.Names, name)
		assert.False(t, math.IsNaN(v))
	}
}

func TestForecastWithoutModel(t *testing.T) {
	store := &stubFeatureStore{matrix: syntheticMatrix(20, 1)}
	ms, err := internalrepo.NewFSModelStore(t.TempDir())
	require.NoError(t, err)
	cv, _ := testTrainingConfig()

	fc := NewForecastUseCase(store, ms, nil, newStubMetrics(), cv.Lookback, testUseCaseLogger(t))
	_, err = fc.Forecast(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no trained model")
}

func TestTopContributions(t *testing.T) {
	contrib := map[string]float64{
		"a": 0.1, "b": -3.0, "c": 2.0, "d": 0.01, "e": -0.5, "f": 1.0, "g": 0.2,
	}
	top := topContributions(contrib, 3)
	require.Len(t, top, 3)
	assert.Contains(t, top, "b")
	assert.Contains(t, top, "c")
	assert.Contains(t, top, "f")
	assert.Equal(t, -3.0, top["b"])
}
