package validation

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PulseCast/internal/ml/boost"
	"PulseCast/internal/ml/lstm"
)

func makeDates(n int) []time.Time {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = base.AddDate(0, 0, i)
	}
	return dates
}

// synthetic daily data with a strong linear signal on the first feature.
func makeSignalData(n, d int, seed int64) ([][]float64, []float64, []string) {
	rng := rand.New(rand.NewSource(seed))
	names := make([]string, d)
	names[0] = "hrv_delta"
	for j := 1; j < d; j++ {
		names[j] = []string{"resting_hr", "sleep_duration_min", "steps", "spo2_avg", "dow_sin"}[(j-1)%5]
		if j > 5 {
			names[j] = names[j] + "_x"
		}
	}
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, d)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
		x[i] = row
		y[i] = 2*row[0] + 0.05*rng.NormFloat64()
	}
	return x, y, names
}

func TestFoldSpansBounds(t *testing.T) {
	spans, err := foldSpans(120, 90, 1)
	require.NoError(t, err)
	assert.Len(t, spans, 29)

	for i, s := range spans {
		assert.Equal(t, s.trainEnd+2, s.test)
		assert.Less(t, s.test, 120)
		if i > 0 {
			assert.Greater(t, s.trainEnd, spans[i-1].trainEnd)
		}
	}
}

func TestFoldSpansBoundaryCase(t *testing.T) {
	// exactly minTrain+gap+1 samples yields exactly one fold
	spans, err := foldSpans(92, 90, 1)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, 89, spans[0].trainEnd)
	assert.Equal(t, 91, spans[0].test)
}

func TestFoldSpansInsufficientData(t *testing.T) {
	_, err := foldSpans(91, 90, 1)
	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 91, insufficient.Available)
	assert.Equal(t, 92, insufficient.Required)
}

func TestEvaluatePointEndToEnd(t *testing.T) {
	x, y, names := makeSignalData(120, 6, 1)
	dates := makeDates(120)

	res, err := EvaluatePoint(x, y, dates, names, boost.DefaultParams(), DefaultConfig(), true)
	require.NoError(t, err)

	require.NotEmpty(t, res.Folds)
	assert.False(t, math.IsNaN(res.MAE))
	assert.False(t, math.IsInf(res.MAE, 0))
	assert.GreaterOrEqual(t, res.MAE, 0.0)
	assert.GreaterOrEqual(t, res.RMSE, res.MAE)
	assert.Contains(t, res.StableFeatures, "hrv_delta")

	for _, f := range res.Folds {
		assert.True(t, f.TestDate.After(f.TrainEnd))
		gap := int(f.TestDate.Sub(f.TrainEnd).Hours() / 24)
		assert.GreaterOrEqual(t, gap, 2)
		assert.False(t, math.IsNaN(f.YPred))
	}
}

func TestEvaluatePointHandlesNaNs(t *testing.T) {
	x, y, names := makeSignalData(100, 6, 2)
	rng := rand.New(rand.NewSource(9))
	for i := range x {
		if rng.Float64() < 0.3 {
			x[i][rng.Intn(6)] = math.NaN()
		}
	}
	cfg := DefaultConfig()
	cfg.MinTrainDays = 60

	res, err := EvaluatePoint(x, y, makeDates(100), names, boost.DefaultParams(), cfg, false)
	require.NoError(t, err)
	for _, f := range res.Folds {
		assert.False(t, math.IsNaN(f.YPred))
		assert.False(t, math.IsInf(f.YPred, 0))
	}
}

func TestEvaluatePointShapeMismatch(t *testing.T) {
	x, y, names := makeSignalData(100, 6, 3)
	_, err := EvaluatePoint(x, y[:99], makeDates(100), names, boost.DefaultParams(), DefaultConfig(), false)
	require.Error(t, err)
}

func TestEvaluateSequenceEndToEnd(t *testing.T) {
	x, y, names := makeSignalData(60, 6, 4)
	dates := makeDates(60)

	cfg := DefaultConfig()
	cfg.MinTrainDays = 30

	netCfg := lstm.DefaultConfig()
	netCfg.MaxEpochs = 15
	netCfg.Patience = 5

	res, err := EvaluateSequence(x, y, dates, names, netCfg, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, res.Folds)
	assert.False(t, math.IsNaN(res.MAE))
	assert.Empty(t, res.StableFeatures)
}

func TestEvaluateSequenceAllFoldsSkipped(t *testing.T) {
	x, y, names := makeSignalData(40, 6, 5)
	cfg := DefaultConfig()
	cfg.MinTrainDays = 20
	cfg.MinFoldSequences = 1000

	netCfg := lstm.DefaultConfig()
	netCfg.MaxEpochs = 5

	res, err := EvaluateSequence(x, y, makeDates(40), names, netCfg, cfg)
	require.NoError(t, err)
	assert.Empty(t, res.Folds)
	assert.True(t, math.IsInf(res.MAE, 1))
	assert.Equal(t, 0.0, res.R2)
}

func TestStableFeaturesThreshold(t *testing.T) {
	folds := []FoldResult{
		{Importance: map[string]float64{"a": 1, "b": 0.5}},
		{Importance: map[string]float64{"a": 1, "c": 0.5}},
		{Importance: map[string]float64{"a": 1, "b": 0.5}},
	}
	stable := stableFeatures(folds, 1, 0.7)
	assert.Equal(t, []string{"a"}, stable)
}

func TestAggregateMetricBounds(t *testing.T) {
	folds := []FoldResult{
		{YTrue: 1, YPred: 0.5},
		{YTrue: -1, YPred: -0.25},
		{YTrue: 0.5, YPred: 1.5},
	}
	res := aggregate(folds)
	assert.GreaterOrEqual(t, res.MAE, 0.0)
	assert.GreaterOrEqual(t, res.RMSE, res.MAE)
	assert.Equal(t, 1.0, res.DirectionalAccuracy)
}
