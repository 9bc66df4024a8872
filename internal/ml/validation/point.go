package validation

import (
	"fmt"
	"math"
	"time"

	"PulseCast/internal/ml/boost"
	"PulseCast/internal/ml/preprocess"
)

const pointPatience = 20

// EvaluatePoint runs expanding-window walk-forward validation for the
// boosted-tree estimator. Each fold refits preprocessing statistics on its
// own training slice, trains a fresh model with early stopping against the
// slice's trailing tenth, and predicts the single gapped test point.
// Attribution can be disabled for speed (hyperparameter search); fold
// importances then fall back to split-gain values.
func EvaluatePoint(x [][]float64, y []float64, dates []time.Time, names []string, params boost.Params, cfg Config, withAttribution bool) (*CVResult, error) {
	if err := checkShape(x, y, dates); err != nil {
		return nil, err
	}
	spans, err := foldSpans(len(y), cfg.MinTrainDays, cfg.GapDays)
	if err != nil {
		return nil, err
	}

	var folds []FoldResult
	for _, span := range spans {
		trainX := x[:span.trainEnd+1]
		trainY := y[:span.trainEnd+1]

		stats, err := preprocess.Fit(trainX)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", len(folds), err)
		}
		normX := stats.TransformMatrix(trainX)
		testRow := stats.Transform(x[span.test])

		evalN := len(normX) / 10
		if evalN < 1 {
			evalN = 1
		}
		cut := len(normX) - evalN

		model, err := boost.TrainWithEval(normX[:cut], trainY[:cut], normX[cut:], trainY[cut:], params, pointPatience)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", len(folds), err)
		}

		pred := model.Predict(testRow)
		if math.IsNaN(pred) || math.IsInf(pred, 0) {
			return nil, fmt.Errorf("fold %d: non-finite prediction", len(folds))
		}

		var raw []float64
		if withAttribution {
			raw = model.Explain(testRow)
			for i, v := range raw {
				raw[i] = math.Abs(v)
			}
		} else {
			raw = model.GainImportance()
		}
		importance := make(map[string]float64, len(names))
		for i, name := range names {
			importance[name] = raw[i]
		}

		folds = append(folds, FoldResult{
			FoldIndex:  len(folds),
			TrainStart: dates[0],
			TrainEnd:   dates[span.trainEnd],
			TestDate:   dates[span.test],
			YTrue:      y[span.test],
			YPred:      pred,
			Importance: importance,
		})
	}

	res := aggregate(folds)
	res.StableFeatures = stableFeatures(folds, cfg.TopK, cfg.StabilityFraction)
	return res, nil
}

func checkShape(x [][]float64, y []float64, dates []time.Time) error {
	if len(x) != len(y) || len(x) != len(dates) {
		return fmt.Errorf("shape mismatch: %d rows, %d targets, %d dates", len(x), len(y), len(dates))
	}
	return nil
}
