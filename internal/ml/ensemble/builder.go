package ensemble

import (
	"errors"
	"fmt"
	"math"
	"time"

	"PulseCast/internal/ml/boost"
	"PulseCast/internal/ml/lstm"
	"PulseCast/internal/ml/pca"
	"PulseCast/internal/ml/preprocess"
	"PulseCast/internal/ml/validation"

	"PulseCast/pkg/logger"
)

const (
	// the sequence model joins the ensemble only if its standalone MAE is
	// within this factor of the point model's
	inclusionFactor = 1.15

	defaultAlpha    = 0.5
	minMatchedFolds = 5
	finalPatience   = 20
)

var alphaGrid = []float64{0.3, 0.4, 0.5, 0.6, 0.7}

// Report carries the training-quality metrics of one ensemble build.
type Report struct {
	PointCV     *validation.CVResult `json:"point_cv"`
	SequenceCV  *validation.CVResult `json:"sequence_cv,omitempty"`
	Alpha       float64              `json:"alpha"`
	HasSequence bool                 `json:"has_sequence"`
	Params      boost.Params         `json:"params"`
}

// Builder assembles an ensemble from a full training set.
type Builder struct {
	CV     validation.Config
	Net    lstm.Config
	Logger *logger.Logger
}

// NewBuilder creates a builder with the given walk-forward policy and
// network configuration.
func NewBuilder(cv validation.Config, net lstm.Config, log *logger.Logger) *Builder {
	return &Builder{CV: cv, Net: net, Logger: log}
}

// Build validates both estimator families, trains the final models on the
// whole set and picks the blend weight on matched validation folds. Any
// sequence-side failure degrades to a point-only ensemble.
func (b *Builder) Build(x [][]float64, y []float64, dates []time.Time, names []string, params boost.Params) (*Ensemble, *Report, error) {
	pointCV, err := validation.EvaluatePoint(x, y, dates, names, params, b.CV, true)
	if err != nil {
		return nil, nil, fmt.Errorf("point validation: %w", err)
	}

	point, err := trainPoint(x, y, names, params, pointCV.StableFeatures)
	if err != nil {
		return nil, nil, fmt.Errorf("point training: %w", err)
	}

	report := &Report{PointCV: pointCV, Alpha: 1.0, Params: params}
	ens := &Ensemble{Point: point, Alpha: 1.0}

	seqCV, err := validation.EvaluateSequence(x, y, dates, names, b.Net, b.CV)
	if err != nil {
		b.Logger.Warn("sequence validation failed, point-only ensemble", logger.Error(err))
		return ens, report, nil
	}
	report.SequenceCV = seqCV

	if seqCV.MAE > inclusionFactor*pointCV.MAE {
		b.Logger.Info("sequence model excluded by gate",
			logger.Float64("lstm_mae", seqCV.MAE),
			logger.Float64("xgb_mae", pointCV.MAE))
		return ens, report, nil
	}

	seq, err := trainSequence(x, y, names, b.Net, b.CV.Lookback)
	if err != nil {
		b.Logger.Warn("sequence training failed, point-only ensemble", logger.Error(err))
		return ens, report, nil
	}

	alpha := OptimizeAlpha(pointCV.Folds, seqCV.Folds)
	ens.Sequence = seq
	ens.Alpha = alpha
	report.Alpha = alpha
	report.HasSequence = true
	return ens, report, nil
}

// trainPoint fits the final boosted model with whole-set statistics and
// early stopping against the trailing tenth.
func trainPoint(x [][]float64, y []float64, names []string, params boost.Params, stable []string) (*PointModel, error) {
	stats, err := preprocess.Fit(x)
	if err != nil {
		return nil, err
	}
	norm := stats.TransformMatrix(x)

	evalN := len(norm) / 10
	if evalN < 1 {
		evalN = 1
	}
	cut := len(norm) - evalN
	if cut < 1 {
		return nil, errors.New("not enough rows for a holdout slice")
	}

	model, err := boost.TrainWithEval(norm[:cut], y[:cut], norm[cut:], y[cut:], params, finalPatience)
	if err != nil {
		return nil, err
	}
	return &PointModel{
		Model:          model,
		Stats:          stats,
		FeatureNames:   names,
		StableFeatures: stable,
		TrainedAt:      time.Now().UTC(),
	}, nil
}

// trainSequence fits the final reducer, reduced-space statistics and
// network on the whole set.
func trainSequence(x [][]float64, y []float64, names []string, netCfg lstm.Config, lookback int) (*SequenceModel, error) {
	reducer, err := pca.Fit(x, names)
	if err != nil {
		return nil, err
	}
	reduced := reducer.TransformMatrix(x)

	stats, err := preprocess.Fit(reduced)
	if err != nil {
		return nil, err
	}
	norm := stats.TransformMatrix(reduced)

	var seqs [][][]float64
	var targets []float64
	for i := lookback; i < len(y); i++ {
		seqs = append(seqs, norm[i-lookback:i])
		targets = append(targets, y[i])
	}

	net, _, err := lstm.Train(seqs, targets, netCfg)
	if err != nil {
		return nil, err
	}
	return &SequenceModel{Net: net, Reducer: reducer, Stats: stats, Lookback: lookback}, nil
}

// OptimizeAlpha grid-searches the blend weight over folds matched by test
// date, minimizing the blended MAE. Ties keep the first-encountered
// candidate; fewer than five matched folds fall back to an even blend.
func OptimizeAlpha(pointFolds, seqFolds []validation.FoldResult) float64 {
	type pair struct{ point, seq, truth float64 }

	byDate := make(map[time.Time]validation.FoldResult, len(seqFolds))
	for _, f := range seqFolds {
		byDate[f.TestDate] = f
	}
	var matched []pair
	for _, f := range pointFolds {
		if s, ok := byDate[f.TestDate]; ok {
			matched = append(matched, pair{point: f.YPred, seq: s.YPred, truth: f.YTrue})
		}
	}
	if len(matched) < minMatchedFolds {
		return defaultAlpha
	}

	best := alphaGrid[0]
	bestMAE := math.Inf(1)
	for _, a := range alphaGrid {
		var sum float64
		for _, p := range matched {
			sum += math.Abs(a*p.point + (1-a)*p.seq - p.truth)
		}
		mae := sum / float64(len(matched))
		if mae < bestMAE {
			bestMAE = mae
			best = a
		}
	}
	return best
}
