package search

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"PulseCast/internal/ml/boost"
	"PulseCast/internal/ml/validation"
)

// Strategy selects how hyperparameters are obtained for a training run:
// a fresh random search, or reuse of previously persisted parameters.
// Callers must choose explicitly; there is no implicit "zero trials means
// reuse" mode.
type Strategy interface {
	strategy()
}

// FreshSearch runs Trials random draws from the search space.
type FreshSearch struct {
	Trials int
	Seed   int64
}

func (FreshSearch) strategy() {}

// ReuseLast skips the search and returns the stored parameters merged
// over defaults.
type ReuseLast struct {
	Params boost.Params
}

func (ReuseLast) strategy() {}

// Result is the outcome of a strategy run. BestMAE is +Inf when every
// trial failed (or when no search was run).
type Result struct {
	Params  boost.Params `json:"params"`
	BestMAE float64      `json:"best_mae"`
	Trials  int          `json:"trials"`
}

// Run resolves a strategy against the training data. Fresh trials score
// the walk-forward MAE with attribution disabled; a trial that errors is
// scored as infinite loss and the search continues.
func Run(s Strategy, x [][]float64, y []float64, dates []time.Time, names []string, cfg validation.Config) (*Result, error) {
	switch st := s.(type) {
	case FreshSearch:
		return runFresh(st, x, y, dates, names, cfg)
	case ReuseLast:
		return &Result{Params: mergeOverDefaults(st.Params), BestMAE: math.Inf(1)}, nil
	default:
		return nil, fmt.Errorf("unknown search strategy %T", s)
	}
}

func runFresh(st FreshSearch, x [][]float64, y []float64, dates []time.Time, names []string, cfg validation.Config) (*Result, error) {
	if st.Trials < 1 {
		return nil, fmt.Errorf("fresh search requires at least 1 trial, got %d", st.Trials)
	}

	rng := rand.New(rand.NewSource(st.Seed))
	best := boost.DefaultParams()
	bestMAE := math.Inf(1)

	for trial := 0; trial < st.Trials; trial++ {
		p := sample(rng)
		mae := score(p, x, y, dates, names, cfg)
		if mae < bestMAE {
			bestMAE = mae
			best = p
		}
	}

	return &Result{Params: best, BestMAE: bestMAE, Trials: st.Trials}, nil
}

// score evaluates one trial; any failure is worst-possible loss rather
// than an abort.
func score(p boost.Params, x [][]float64, y []float64, dates []time.Time, names []string, cfg validation.Config) float64 {
	res, err := validation.EvaluatePoint(x, y, dates, names, p, cfg, false)
	if err != nil {
		return math.Inf(1)
	}
	if math.IsNaN(res.MAE) {
		return math.Inf(1)
	}
	return res.MAE
}

// sample draws one parameter set from the fixed search space, merged over
// defaults.
func sample(rng *rand.Rand) boost.Params {
	p := boost.DefaultParams()
	p.MaxDepth = 2 + rng.Intn(3)                // 2..4
	p.MinChildWeight = 5 + rng.Intn(16)         // 5..20
	p.LearningRate = logUniform(rng, 0.01, 0.1) // log scale
	p.Subsample = uniform(rng, 0.5, 0.8)
	p.ColsampleByTree = uniform(rng, 0.5, 0.8)
	p.Lambda = uniform(rng, 1, 10)
	return p
}

// mergeOverDefaults fills zero-valued fields from the defaults so a
// partially persisted parameter set stays usable.
func mergeOverDefaults(p boost.Params) boost.Params {
	d := boost.DefaultParams()
	if p.NEstimators == 0 {
		p.NEstimators = d.NEstimators
	}
	if p.MaxDepth == 0 {
		p.MaxDepth = d.MaxDepth
	}
	if p.MinChildWeight == 0 {
		p.MinChildWeight = d.MinChildWeight
	}
	if p.LearningRate == 0 {
		p.LearningRate = d.LearningRate
	}
	if p.Subsample == 0 {
		p.Subsample = d.Subsample
	}
	if p.ColsampleByTree == 0 {
		p.ColsampleByTree = d.ColsampleByTree
	}
	if p.Lambda == 0 {
		p.Lambda = d.Lambda
	}
	if p.Seed == 0 {
		p.Seed = d.Seed
	}
	return p
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func logUniform(rng *rand.Rand, lo, hi float64) float64 {
	return math.Exp(math.Log(lo) + rng.Float64()*(math.Log(hi)-math.Log(lo)))
}
