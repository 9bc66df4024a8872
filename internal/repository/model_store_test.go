package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PulseCast/internal/domain/models"
	"PulseCast/internal/ml/boost"
	"PulseCast/internal/ml/ensemble"
	"PulseCast/internal/ml/preprocess"
)

func trainedEnsemble(t *testing.T) *ensemble.Ensemble {
	t.Helper()
	x := make([][]float64, 40)
	y := make([]float64, 40)
	for i := range x {
		x[i] = []float64{float64(i), float64(40 - i)}
		y[i] = 0.1 * float64(i)
	}
	stats, err := preprocess.Fit(x)
	require.NoError(t, err)
	model, err := boost.Train(stats.TransformMatrix(x), y, boost.DefaultParams())
	require.NoError(t, err)

	return &ensemble.Ensemble{
		Point: &ensemble.PointModel{
			Model:        model,
			Stats:        stats,
			FeatureNames: []string{"hrv_delta", "resting_hr"},
			TrainedAt:    time.Now().UTC().Truncate(time.Second),
		},
		Alpha: 1.0,
	}
}

func TestFSModelStoreRoundTrip(t *testing.T) {
	store, err := NewFSModelStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ens := trainedEnsemble(t)
	info := &models.ModelInfo{
		Version:     "v20260830",
		TrainedAt:   time.Now().UTC().Truncate(time.Second),
		Samples:     40,
		Alpha:       1.0,
		HasSequence: false,
		Point:       models.CVMetrics{MAE: 0.12, RMSE: 0.2, Folds: 9},
		Params:      boost.DefaultParams(),
	}
	require.NoError(t, store.Save(ctx, ens, info))

	gotEns, gotInfo, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, info.Version, gotInfo.Version)
	assert.Equal(t, info.Params, gotInfo.Params)
	assert.False(t, gotEns.HasSequence())

	probe := []float64{5, 35}
	want, err := ens.Point.Predict(probe)
	require.NoError(t, err)
	got, err := gotEns.Point.Predict(probe)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)
}

func TestFSModelStoreInfoWithoutWeights(t *testing.T) {
	store, err := NewFSModelStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Info(ctx)
	require.Error(t, err)

	require.NoError(t, store.Save(ctx, trainedEnsemble(t), &models.ModelInfo{Version: "v1"}))
	info, err := store.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", info.Version)
}
