package validation

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Config fixes the walk-forward policy for one validation run.
type Config struct {
	MinTrainDays      int     `json:"min_train_days" yaml:"min_train_days"`
	GapDays           int     `json:"gap_days" yaml:"gap_days"`
	TopK              int     `json:"top_k" yaml:"top_k"`
	StabilityFraction float64 `json:"stability_fraction" yaml:"stability_fraction"`
	Lookback          int     `json:"lookback" yaml:"lookback"`
	MinFoldSequences  int     `json:"min_fold_sequences" yaml:"min_fold_sequences"`
}

// DefaultConfig returns the production walk-forward policy.
func DefaultConfig() Config {
	return Config{
		MinTrainDays:      90,
		GapDays:           1,
		TopK:              10,
		StabilityFraction: 0.7,
		Lookback:          7,
		MinFoldSequences:  5,
	}
}

// InsufficientDataError reports that a validation run cannot produce even
// a single fold. It is a hard precondition failure, not a degraded mode.
type InsufficientDataError struct {
	Available int
	Required  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient samples: %d available, %d required", e.Available, e.Required)
}

// FoldResult is the outcome of one expanding-window fold. Immutable once
// produced.
type FoldResult struct {
	FoldIndex  int                `json:"fold_index"`
	TrainStart time.Time          `json:"train_start"`
	TrainEnd   time.Time          `json:"train_end"`
	TestDate   time.Time          `json:"test_date"`
	YTrue      float64            `json:"y_true"`
	YPred      float64            `json:"y_pred"`
	Importance map[string]float64 `json:"importance,omitempty"`
}

// CVResult aggregates one validation run. Created fresh per call and never
// mutated afterwards.
type CVResult struct {
	Folds               []FoldResult `json:"folds"`
	MAE                 float64      `json:"mae"`
	RMSE                float64      `json:"rmse"`
	R2                  float64      `json:"r2"`
	DirectionalAccuracy float64      `json:"directional_accuracy"`
	StableFeatures      []string     `json:"stable_features"`
}

type foldSpan struct {
	trainEnd int // inclusive last training index
	test     int
}

// foldSpans enumerates the expanding-window folds: the test index sits
// gapDays+1 after the training window so rolling features computed over
// the gap cannot leak.
func foldSpans(n, minTrain, gap int) ([]foldSpan, error) {
	required := minTrain + gap + 1
	if n < required {
		return nil, &InsufficientDataError{Available: n, Required: required}
	}
	var spans []foldSpan
	for trainEnd := minTrain - 1; trainEnd < n-gap-1; trainEnd++ {
		test := trainEnd + gap + 1
		if test >= n {
			break
		}
		spans = append(spans, foldSpan{trainEnd: trainEnd, test: test})
	}
	return spans, nil
}

// aggregate computes the summary metrics over completed folds. An empty
// fold list yields infinite error, which downstream gates treat as a
// failed run.
func aggregate(folds []FoldResult) *CVResult {
	res := &CVResult{Folds: folds}
	if len(folds) == 0 {
		res.MAE = math.Inf(1)
		res.RMSE = math.Inf(1)
		return res
	}

	var absSum, sqSum, meanTrue float64
	for _, f := range folds {
		d := f.YTrue - f.YPred
		absSum += math.Abs(d)
		sqSum += d * d
		meanTrue += f.YTrue
	}
	n := float64(len(folds))
	meanTrue /= n
	res.MAE = absSum / n
	res.RMSE = math.Sqrt(sqSum / n)

	var ssTot float64
	var correct int
	for _, f := range folds {
		d := f.YTrue - meanTrue
		ssTot += d * d
		if sign(f.YTrue) == sign(f.YPred) {
			correct++
		}
	}
	if ssTot > 0 {
		res.R2 = 1 - sqSum/ssTot
	}
	res.DirectionalAccuracy = float64(correct) / n
	return res
}

// stableFeatures returns the features appearing in the per-fold top-K
// rankings often enough, sorted for determinism.
func stableFeatures(folds []FoldResult, topK int, fraction float64) []string {
	if len(folds) == 0 {
		return nil
	}
	counts := map[string]int{}
	for _, f := range folds {
		for _, name := range topFeatures(f.Importance, topK) {
			counts[name]++
		}
	}
	threshold := fraction * float64(len(folds))
	var stable []string
	for name, c := range counts {
		if float64(c) >= threshold {
			stable = append(stable, name)
		}
	}
	sort.Strings(stable)
	return stable
}

func topFeatures(importance map[string]float64, k int) []string {
	names := make([]string, 0, len(importance))
	for name := range importance {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := importance[names[i]], importance[names[j]]
		if a != b {
			return a > b
		}
		return names[i] < names[j]
	})
	if len(names) > k {
		names = names[:k]
	}
	return names
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
