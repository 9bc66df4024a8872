package lstm

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memory task: the target is the first component of the last timestep.
func makeSequences(n, lookback, dim int, seed int64) ([][][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	seqs := make([][][]float64, n)
	targets := make([]float64, n)
	for i := 0; i < n; i++ {
		seq := make([][]float64, lookback)
		for t := range seq {
			step := make([]float64, dim)
			for j := range step {
				step[j] = rng.Float64()*2 - 1
			}
			seq[t] = step
		}
		seqs[i] = seq
		targets[i] = seq[lookback-1][0]
	}
	return seqs, targets
}

func TestTrainTooFewSequences(t *testing.T) {
	seqs, targets := makeSequences(6, 7, 2, 1)
	_, _, err := Train(seqs, targets, DefaultConfig())

	var tooFew *TooFewSequencesError
	require.ErrorAs(t, err, &tooFew)
	assert.Equal(t, 6, tooFew.Available)
	assert.Equal(t, 10, tooFew.Required)
}

func TestTrainLearnsMemoryTask(t *testing.T) {
	seqs, targets := makeSequences(80, 7, 3, 2)
	cfg := DefaultConfig()
	cfg.InputDropout = 0.1

	net, report, err := Train(seqs, targets, cfg)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Greater(t, report.Epochs, 0)

	// a useful network beats the mean predictor
	var m float64
	for _, y := range targets {
		m += y
	}
	m /= float64(len(targets))
	var meanMSE float64
	for _, y := range targets {
		meanMSE += (y - m) * (y - m)
	}
	meanMSE /= float64(len(targets))

	assert.Less(t, net.loss(seqs, targets), meanMSE)
}

func TestTrainDeterministicForSeed(t *testing.T) {
	seqs, targets := makeSequences(30, 7, 2, 3)
	cfg := DefaultConfig()
	cfg.MaxEpochs = 20

	n1, _, err := Train(seqs, targets, cfg)
	require.NoError(t, err)
	n2, _, err := Train(seqs, targets, cfg)
	require.NoError(t, err)

	p1, err := n1.Predict(seqs[0])
	require.NoError(t, err)
	p2, err := n2.Predict(seqs[0])
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestPredictValidation(t *testing.T) {
	seqs, targets := makeSequences(20, 7, 2, 4)
	cfg := DefaultConfig()
	cfg.MaxEpochs = 5

	net, _, err := Train(seqs, targets, cfg)
	require.NoError(t, err)

	_, err = net.Predict(nil)
	assert.Error(t, err)

	_, err = net.Predict([][]float64{{1, 2, 3}})
	assert.Error(t, err)
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 1.0, Confidence(0))
	assert.Greater(t, Confidence(0.5), Confidence(2.0))
	assert.InDelta(t, 1.0/1.3, Confidence(1), 1e-12)
	assert.Greater(t, Confidence(1000), 0.0)
	assert.LessOrEqual(t, Confidence(1000), 1.0)
}
