package usecase

import (
	"context"
	"math"
	"testing"

	domrepo "PulseCast/internal/domain/repository"
	internalrepo "PulseCast/internal/repository"
	"PulseCast/internal/ml/lstm"
	"PulseCast/internal/ml/validation"
	"PulseCast/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTrainingConfig() (validation.Config, lstm.Config) {
	cv := validation.DefaultConfig()
	cv.MinTrainDays = 30
	cv.Lookback = 5
	cv.MinFoldSequences = 3

	net := lstm.DefaultConfig()
	net.HiddenSize = 4
	net.MaxEpochs = 5
	net.Patience = 3
	net.MinSequences = 5
	net.BatchSize = 8
	return cv, net
}

func testUseCaseLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return l
}

func newTestTrainer(t *testing.T, store *stubFeatureStore) (*TrainingUseCase, domrepo.ModelStore, *stubMetrics) {
	t.Helper()
	ms, err := internalrepo.NewFSModelStore(t.TempDir())
	require.NoError(t, err)
	cv, net := testTrainingConfig()
	m := newStubMetrics()
	uc := NewTrainingUseCase(store, ms, m, cv, net, 120, testUseCaseLogger(t))
	return uc, ms, m
}

func TestTrainFreshProducesPersistedModel(t *testing.T) {
	store := &stubFeatureStore{matrix: syntheticMatrix(80, 7)}
	uc, ms, metrics := newTestTrainer(t, store)

	report, err := uc.Train(context.Background(), domrepo.SearchFresh, 2)
	require.NoError(t, err)

	assert.NotEmpty(t, report.ModelVersion)
	assert.Equal(t, 2, report.SearchTrials)
	assert.Greater(t, report.Point.Folds, 0)
	assert.False(t, math.IsNaN(report.Point.MAE))
	assert.GreaterOrEqual(t, report.Samples, 31)

	info, err := ms.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.ModelVersion, info.Version)
	assert.Equal(t, report.Alpha, info.Alpha)

	ens, _, err := ms.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, ens.Point)

	require.Len(t, metrics.trainings, 1)
	assert.Equal(t, "ok", metrics.trainings[0])
}

func TestTrainReuseRequiresStoredModel(t *testing.T) {
	store := &stubFeatureStore{matrix: syntheticMatrix(80, 7)}
	uc, _, _ := newTestTrainer(t, store)

	_, err := uc.Train(context.Background(), domrepo.SearchReuse, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no stored model")
}

func TestTrainReuseAfterFresh(t *testing.T) {
	store := &stubFeatureStore{matrix: syntheticMatrix(80, 7)}
	uc, _, _ := newTestTrainer(t, store)

	first, err := uc.Train(context.Background(), domrepo.SearchFresh, 2)
	require.NoError(t, err)

	second, err := uc.Train(context.Background(), domrepo.SearchReuse, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, second.SearchTrials)
	assert.NotEqual(t, first.ModelVersion, second.ModelVersion)
}

func TestTrainInsufficientData(t *testing.T) {
	store := &stubFeatureStore{matrix: syntheticMatrix(20, 7)}
	uc, _, metrics := newTestTrainer(t, store)

	_, err := uc.Train(context.Background(), domrepo.SearchFresh, 1)
	require.Error(t, err)

	var insufficient *validation.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 20, insufficient.Available)
	require.Len(t, metrics.trainings, 1)
	assert.Equal(t, "failed", metrics.trainings[0])
}

func TestFilterTargetOutliers(t *testing.T) {
	m := syntheticMatrix(60, 3)
	m.Targets[10] = 500 // far outside any plausible z-score
	m.Targets[40] = -500

	x, y, dates, removed := filterTargetOutliers(m.Rows, m.Targets, m.Dates)
	assert.Equal(t, 2, removed)
	assert.Len(t, x, 58)
	assert.Len(t, y, 58)
	assert.Len(t, dates, 58)
	for _, v := range y {
		assert.Less(t, math.Abs(v), 100.0)
	}
}
