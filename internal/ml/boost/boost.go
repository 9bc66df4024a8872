package boost

import (
	"fmt"
	"math"
	"math/rand"
)

// Params are the gradient boosting knobs. Zero values are not valid; start
// from DefaultParams and override.
type Params struct {
	NEstimators     int     `json:"n_estimators" yaml:"n_estimators"`
	MaxDepth        int     `json:"max_depth" yaml:"max_depth"`
	MinChildWeight  int     `json:"min_child_weight" yaml:"min_child_weight"`
	LearningRate    float64 `json:"learning_rate" yaml:"learning_rate"`
	Subsample       float64 `json:"subsample" yaml:"subsample"`
	ColsampleByTree float64 `json:"colsample_bytree" yaml:"colsample_bytree"`
	Lambda          float64 `json:"lambda" yaml:"lambda"`
	Seed            int64   `json:"seed" yaml:"seed"`
}

// DefaultParams returns the conservative small-data defaults.
func DefaultParams() Params {
	return Params{
		NEstimators:     300,
		MaxDepth:        3,
		MinChildWeight:  10,
		LearningRate:    0.05,
		Subsample:       0.7,
		ColsampleByTree: 0.7,
		Lambda:          5,
		Seed:            42,
	}
}

// Model is a trained gradient-boosted tree ensemble. It is immutable after
// training and safe for concurrent Predict/Explain calls.
type Model struct {
	Base        float64   `json:"base"`
	Trees       []*node   `json:"trees"`
	Params      Params    `json:"params"`
	FeatureGain []float64 `json:"feature_gain"`
	NumFeatures int       `json:"num_features"`
}

// Train fits the full ensemble without early stopping.
func Train(x [][]float64, y []float64, p Params) (*Model, error) {
	return TrainWithEval(x, y, nil, nil, p, 0)
}

// TrainWithEval fits the ensemble and, when an eval set is given, stops
// early once eval RMSE has not improved for patience rounds, keeping the
// trees up to the best round.
func TrainWithEval(x [][]float64, y []float64, evalX [][]float64, evalY []float64, p Params, patience int) (*Model, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("boost train: %d rows, %d targets", len(x), len(y))
	}
	d := len(x[0])
	rng := rand.New(rand.NewSource(p.Seed))

	base := mean(y)
	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = base
	}
	evalPred := make([]float64, len(evalY))
	for i := range evalPred {
		evalPred[i] = base
	}

	m := &Model{
		Base:        base,
		Params:      p,
		FeatureGain: make([]float64, d),
		NumFeatures: d,
	}

	grad := make([]float64, len(y))
	bestRMSE := math.Inf(1)
	bestRound := -1
	stale := 0

	for round := 0; round < p.NEstimators; round++ {
		for i := range grad {
			grad[i] = y[i] - pred[i]
		}

		b := &treeBuilder{
			x:        x,
			grad:     grad,
			params:   p,
			features: sampleFeatures(rng, d, p.ColsampleByTree),
			gainAcc:  m.FeatureGain,
		}
		root := b.build(sampleRows(rng, len(x), p.Subsample), 0)
		m.Trees = append(m.Trees, root)

		for i := range pred {
			pred[i] += p.LearningRate * root.eval(x[i])
		}

		if len(evalX) == 0 {
			continue
		}
		for i := range evalPred {
			evalPred[i] += p.LearningRate * root.eval(evalX[i])
		}
		r := rmse(evalPred, evalY)
		if r < bestRMSE {
			bestRMSE = r
			bestRound = round
			stale = 0
		} else {
			stale++
			if patience > 0 && stale >= patience {
				break
			}
		}
	}

	if len(evalX) > 0 && bestRound >= 0 {
		m.Trees = m.Trees[:bestRound+1]
	}
	return m, nil
}

// Predict returns the ensemble output for a single feature vector.
func (m *Model) Predict(row []float64) float64 {
	out := m.Base
	for _, t := range m.Trees {
		out += m.Params.LearningRate * t.eval(row)
	}
	return out
}

// PredictAll predicts every row.
func (m *Model) PredictAll(rows [][]float64) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = m.Predict(row)
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, v := range xs {
		s += v
	}
	return s / float64(len(xs))
}

func rmse(pred, truth []float64) float64 {
	var ss float64
	for i := range pred {
		d := pred[i] - truth[i]
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(pred)))
}
