package search

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PulseCast/internal/ml/boost"
	"PulseCast/internal/ml/validation"
)

func makeData(n int, seed int64) ([][]float64, []float64, []time.Time, []string) {
	rng := rand.New(rand.NewSource(seed))
	names := []string{"hrv_delta", "resting_hr", "steps"}
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	x := make([][]float64, n)
	y := make([]float64, n)
	dates := make([]time.Time, n)
	for i := 0; i < n; i++ {
		x[i] = []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		y[i] = 1.5*x[i][0] + 0.1*rng.NormFloat64()
		dates[i] = base.AddDate(0, 0, i)
	}
	return x, y, dates, names
}

func testCV() validation.Config {
	cfg := validation.DefaultConfig()
	cfg.MinTrainDays = 30
	return cfg
}

func TestFreshSearchFindsFiniteLoss(t *testing.T) {
	x, y, dates, names := makeData(50, 1)

	res, err := Run(FreshSearch{Trials: 3, Seed: 42}, x, y, dates, names, testCV())
	require.NoError(t, err)
	assert.False(t, math.IsInf(res.BestMAE, 1))
	assert.Equal(t, 3, res.Trials)
	assert.GreaterOrEqual(t, res.Params.MaxDepth, 2)
	assert.LessOrEqual(t, res.Params.MaxDepth, 4)
	assert.GreaterOrEqual(t, res.Params.LearningRate, 0.01)
	assert.LessOrEqual(t, res.Params.LearningRate, 0.1)
}

func TestFreshSearchDeterministicForSeed(t *testing.T) {
	x, y, dates, names := makeData(50, 2)

	r1, err := Run(FreshSearch{Trials: 2, Seed: 7}, x, y, dates, names, testCV())
	require.NoError(t, err)
	r2, err := Run(FreshSearch{Trials: 2, Seed: 7}, x, y, dates, names, testCV())
	require.NoError(t, err)
	assert.Equal(t, r1.Params, r2.Params)
	assert.Equal(t, r1.BestMAE, r2.BestMAE)
}

func TestFreshSearchRequiresTrials(t *testing.T) {
	x, y, dates, names := makeData(50, 3)
	_, err := Run(FreshSearch{Trials: 0}, x, y, dates, names, testCV())
	require.Error(t, err)
}

func TestFreshSearchFailedTrialsScoreInfinite(t *testing.T) {
	// too few samples for even one fold: every trial fails
	x, y, dates, names := makeData(10, 4)

	res, err := Run(FreshSearch{Trials: 2, Seed: 1}, x, y, dates, names, testCV())
	require.NoError(t, err)
	assert.True(t, math.IsInf(res.BestMAE, 1))
	assert.Equal(t, boost.DefaultParams(), res.Params)
}

func TestReuseLastMergesOverDefaults(t *testing.T) {
	x, y, dates, names := makeData(50, 5)

	stored := boost.Params{MaxDepth: 4, LearningRate: 0.02}
	res, err := Run(ReuseLast{Params: stored}, x, y, dates, names, testCV())
	require.NoError(t, err)

	assert.Equal(t, 4, res.Params.MaxDepth)
	assert.Equal(t, 0.02, res.Params.LearningRate)
	assert.Equal(t, boost.DefaultParams().NEstimators, res.Params.NEstimators)
	assert.Equal(t, boost.DefaultParams().Lambda, res.Params.Lambda)
}
