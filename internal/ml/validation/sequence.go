package validation

import (
	"errors"
	"fmt"
	"time"

	"PulseCast/internal/ml/lstm"
	"PulseCast/internal/ml/pca"
	"PulseCast/internal/ml/preprocess"
)

// EvaluateSequence runs walk-forward validation for the recurrent
// estimator. Each fold refits the group-wise PCA reducer and the reduced
// feature statistics on its own training slice, builds lookback sequences,
// trains a fresh network, and predicts the gapped test point from the
// lookback window preceding it. Folds without a full lookback window or
// with too few training sequences are skipped; if every fold is skipped
// the result carries infinite MAE instead of an error.
func EvaluateSequence(x [][]float64, y []float64, dates []time.Time, names []string, netCfg lstm.Config, cfg Config) (*CVResult, error) {
	if err := checkShape(x, y, dates); err != nil {
		return nil, err
	}
	spans, err := foldSpans(len(y), cfg.MinTrainDays, cfg.GapDays)
	if err != nil {
		return nil, err
	}

	netCfg.MinSequences = cfg.MinFoldSequences

	var folds []FoldResult
	for _, span := range spans {
		seqStart := span.test - cfg.Lookback
		if seqStart < 0 {
			continue
		}

		trainX := x[:span.trainEnd+1]
		trainY := y[:span.trainEnd+1]

		reducer, err := pca.Fit(trainX, names)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", len(folds), err)
		}
		reduced := reducer.TransformMatrix(trainX)

		stats, err := preprocess.Fit(reduced)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", len(folds), err)
		}
		norm := stats.TransformMatrix(reduced)

		seqs, targets := buildSequences(norm, trainY, cfg.Lookback)
		net, _, err := lstm.Train(seqs, targets, netCfg)
		if err != nil {
			var tooFew *lstm.TooFewSequencesError
			if errors.As(err, &tooFew) {
				continue
			}
			return nil, fmt.Errorf("fold %d: %w", len(folds), err)
		}

		window := make([][]float64, 0, cfg.Lookback)
		for i := seqStart; i < span.test; i++ {
			window = append(window, stats.Transform(reducer.Transform(x[i])))
		}
		pred, err := net.Predict(window)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", len(folds), err)
		}

		folds = append(folds, FoldResult{
			FoldIndex:  len(folds),
			TrainStart: dates[0],
			TrainEnd:   dates[span.trainEnd],
			TestDate:   dates[span.test],
			YTrue:      y[span.test],
			YPred:      pred,
		})
	}

	return aggregate(folds), nil
}

// buildSequences turns consecutive normalized rows into lookback windows:
// the window for target index i covers rows [i-lookback, i).
func buildSequences(rows [][]float64, y []float64, lookback int) ([][][]float64, []float64) {
	var seqs [][][]float64
	var targets []float64
	for i := lookback; i < len(y); i++ {
		seqs = append(seqs, rows[i-lookback:i])
		targets = append(targets, y[i])
	}
	return seqs, targets
}
