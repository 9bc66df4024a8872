package ensemble

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PulseCast/internal/ml/boost"
	"PulseCast/internal/ml/lstm"
	"PulseCast/internal/ml/validation"
	"PulseCast/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func makeFolds(dates []time.Time, truth, pred []float64) []validation.FoldResult {
	folds := make([]validation.FoldResult, len(dates))
	for i := range dates {
		folds[i] = validation.FoldResult{TestDate: dates[i], YTrue: truth[i], YPred: pred[i]}
	}
	return folds
}

func gridDates(n int) []time.Time {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = base.AddDate(0, 0, i)
	}
	return out
}

func TestOptimizeAlphaPrefersAccuratePoint(t *testing.T) {
	dates := gridDates(8)
	truth := []float64{1, -1, 0.5, 2, -2, 1.5, -0.5, 0.25}
	seqPred := make([]float64, len(truth))
	for i, v := range truth {
		seqPred[i] = v + 10
	}

	alpha := OptimizeAlpha(makeFolds(dates, truth, truth), makeFolds(dates, truth, seqPred))
	assert.GreaterOrEqual(t, alpha, 0.6)
}

func TestOptimizeAlphaPrefersAccurateSequence(t *testing.T) {
	dates := gridDates(8)
	truth := []float64{1, -1, 0.5, 2, -2, 1.5, -0.5, 0.25}
	pointPred := make([]float64, len(truth))
	for i, v := range truth {
		pointPred[i] = v - 10
	}

	alpha := OptimizeAlpha(makeFolds(dates, truth, pointPred), makeFolds(dates, truth, truth))
	assert.Equal(t, 0.3, alpha)
}

func TestOptimizeAlphaTooFewMatchedFolds(t *testing.T) {
	dates := gridDates(3)
	truth := []float64{1, 2, 3}
	alpha := OptimizeAlpha(makeFolds(dates, truth, truth), makeFolds(dates, truth, truth))
	assert.Equal(t, 0.5, alpha)
}

func TestOptimizeAlphaIgnoresUnmatchedDates(t *testing.T) {
	truth := []float64{1, 2, 3, 4, 5, 6}
	pointFolds := makeFolds(gridDates(6), truth, truth)
	seqFolds := makeFolds(gridDates(6), truth, truth)
	for i := range seqFolds {
		seqFolds[i].TestDate = seqFolds[i].TestDate.AddDate(1, 0, 0)
	}
	assert.Equal(t, 0.5, OptimizeAlpha(pointFolds, seqFolds))
}

func trainingData(n int, seed int64) ([][]float64, []float64, []time.Time, []string) {
	rng := rand.New(rand.NewSource(seed))
	names := []string{"hrv_delta", "resting_hr", "sleep_duration_min", "steps", "spo2_avg"}
	x := make([][]float64, n)
	y := make([]float64, n)
	dates := gridDates(n)
	for i := 0; i < n; i++ {
		row := make([]float64, len(names))
		for j := range row {
			row[j] = rng.NormFloat64()
		}
		x[i] = row
		y[i] = 1.2*row[0] + 0.1*rng.NormFloat64()
	}
	return x, y, dates, names
}

func TestBuildEndToEnd(t *testing.T) {
	x, y, dates, names := trainingData(60, 1)

	cv := validation.DefaultConfig()
	cv.MinTrainDays = 30

	net := lstm.DefaultConfig()
	net.MaxEpochs = 10
	net.Patience = 3

	b := NewBuilder(cv, net, testLogger(t))
	ens, report, err := b.Build(x, y, dates, names, boost.DefaultParams())
	require.NoError(t, err)
	require.NotNil(t, ens)
	require.NotNil(t, report)

	assert.NotEmpty(t, report.PointCV.Folds)
	assert.Equal(t, report.HasSequence, ens.HasSequence())
	if ens.HasSequence() {
		assert.Contains(t, alphaGrid, ens.Alpha)
	} else {
		assert.Equal(t, 1.0, ens.Alpha)
	}

	window := x[len(x)-cv.Lookback:]
	fc, err := ens.Predict(x[len(x)-1], window)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(fc.Value))
	assert.GreaterOrEqual(t, fc.Confidence, 0.0)
	assert.LessOrEqual(t, fc.Confidence, 1.0)
}

func TestBuildExcludesWeakSequenceModel(t *testing.T) {
	x, y, dates, names := trainingData(60, 4)

	cv := validation.DefaultConfig()
	cv.MinTrainDays = 30
	// no fold can assemble this many training sequences, so every sequence
	// fold is skipped, the sequence CV aggregates to infinite MAE, and the
	// inclusion gate must keep the ensemble point-only
	cv.MinFoldSequences = 1000

	net := lstm.DefaultConfig()
	net.MaxEpochs = 5
	net.Patience = 2

	b := NewBuilder(cv, net, testLogger(t))
	ens, report, err := b.Build(x, y, dates, names, boost.DefaultParams())
	require.NoError(t, err)

	require.NotNil(t, report.SequenceCV)
	assert.True(t, math.IsInf(report.SequenceCV.MAE, 1))
	assert.False(t, report.HasSequence)
	assert.False(t, ens.HasSequence())
	assert.Equal(t, 1.0, ens.Alpha)
	assert.Equal(t, 1.0, report.Alpha)
}

func TestPredictFallsBackOnSequenceFailure(t *testing.T) {
	x, y, _, names := trainingData(60, 2)

	point, err := trainPoint(x, y, names, boost.DefaultParams(), nil)
	require.NoError(t, err)

	seq, err := trainSequence(x, y, names, lstm.Config{
		HiddenSize: 4, LearningRate: 1e-3, MaxEpochs: 3, Patience: 2,
		BatchSize: 16, ValFraction: 0.15, MinSequences: 10, Seed: 1,
	}, 7)
	require.NoError(t, err)

	ens := &Ensemble{Point: point, Sequence: seq, Alpha: 0.5}

	direct, err := point.Predict(x[0])
	require.NoError(t, err)

	// short window makes the sequence path fail; the blend must degrade
	fc, err := ens.Predict(x[0], x[:3])
	require.NoError(t, err)
	assert.False(t, fc.UsedSequence)
	assert.Equal(t, direct, fc.Value)

	fc, err = ens.Predict(x[0], x[10:17])
	require.NoError(t, err)
	assert.True(t, fc.UsedSequence)
}

func TestPointModelExplainNeverEmpty(t *testing.T) {
	x, y, _, names := trainingData(80, 3)
	point, err := trainPoint(x, y, names, boost.DefaultParams(), nil)
	require.NoError(t, err)

	attributions := point.Explain(x[5])
	require.Len(t, attributions, len(names))
	for name, v := range attributions {
		assert.False(t, math.IsNaN(v), name)
	}
}
