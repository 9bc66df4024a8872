package boost

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeLinear(n int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a := rng.Float64() * 10
		b := rng.Float64() * 10
		x[i] = []float64{a, b}
		y[i] = 2*a + 0.01*rng.NormFloat64()
	}
	return x, y
}

func TestTrainInputValidation(t *testing.T) {
	_, err := Train(nil, nil, DefaultParams())
	require.Error(t, err)

	_, err = Train([][]float64{{1}}, []float64{1, 2}, DefaultParams())
	require.Error(t, err)
}

func TestTrainBeatsMeanBaseline(t *testing.T) {
	x, y := makeLinear(300, 7)
	m, err := Train(x, y, DefaultParams())
	require.NoError(t, err)

	base := mean(y)
	var maeModel, maeBase float64
	for i := range y {
		maeModel += math.Abs(m.Predict(x[i]) - y[i])
		maeBase += math.Abs(base - y[i])
	}
	assert.Less(t, maeModel, maeBase*0.5)
}

func TestTrainDeterministicForSeed(t *testing.T) {
	x, y := makeLinear(150, 11)
	p := DefaultParams()

	m1, err := Train(x, y, p)
	require.NoError(t, err)
	m2, err := Train(x, y, p)
	require.NoError(t, err)

	probe := []float64{3.3, 4.4}
	assert.Equal(t, m1.Predict(probe), m2.Predict(probe))
	assert.Len(t, m2.Trees, len(m1.Trees))
}

func TestEarlyStoppingTruncates(t *testing.T) {
	x, y := makeLinear(200, 3)
	p := DefaultParams()
	p.NEstimators = 500

	m, err := TrainWithEval(x[:160], y[:160], x[160:], y[160:], p, 20)
	require.NoError(t, err)
	assert.NotEmpty(t, m.Trees)
	assert.LessOrEqual(t, len(m.Trees), p.NEstimators)
}

func TestConstantTargetPredictsConstant(t *testing.T) {
	x := make([][]float64, 50)
	y := make([]float64, 50)
	for i := range x {
		x[i] = []float64{float64(i)}
		y[i] = 4.2
	}
	m, err := Train(x, y, DefaultParams())
	require.NoError(t, err)
	assert.InDelta(t, 4.2, m.Predict([]float64{25}), 1e-9)
}

func TestExplainIsPathConsistent(t *testing.T) {
	x, y := makeLinear(300, 5)
	m, err := Train(x, y, DefaultParams())
	require.NoError(t, err)

	row := []float64{6.5, 1.2}
	contrib := m.Explain(row)
	require.Len(t, contrib, 2)

	var rootSum float64
	for _, tr := range m.Trees {
		rootSum += tr.Value
	}
	expected := m.Base + m.Params.LearningRate*rootSum + contrib[0] + contrib[1]
	assert.InDelta(t, m.Predict(row), expected, 1e-9)
}

func TestGainImportanceFindsSignalFeature(t *testing.T) {
	x, y := makeLinear(300, 9)
	m, err := Train(x, y, DefaultParams())
	require.NoError(t, err)

	imp := m.GainImportance()
	require.Len(t, imp, 2)
	assert.InDelta(t, 1.0, imp[0]+imp[1], 1e-9)
	assert.Greater(t, imp[0], imp[1])
}

func TestGainImportanceNoSplits(t *testing.T) {
	x := [][]float64{{1}, {1}, {1}}
	y := []float64{1, 1, 1}
	m, err := Train(x, y, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, m.GainImportance())
}
