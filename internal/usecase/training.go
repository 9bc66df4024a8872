package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"PulseCast/internal/domain/models"
	domrepo "PulseCast/internal/domain/repository"
	domsvc "PulseCast/internal/domain/service"
	"PulseCast/internal/ml/ensemble"
	"PulseCast/internal/ml/lstm"
	"PulseCast/internal/ml/search"
	"PulseCast/internal/ml/validation"
	"PulseCast/pkg/logger"
)

// targets further than 3 IQRs outside the quartiles are sensor artifacts,
// not physiology
const outlierIQRFactor = 3.0

// TrainingUseCase runs a full training job: feature fetch, outlier
// filtering, hyperparameter resolution, walk-forward validation, ensemble
// construction and persistence. Only one job runs at a time.
type TrainingUseCase struct {
	features domrepo.FeatureStore
	store    domrepo.ModelStore
	metrics  domrepo.Metrics
	builder  *ensemble.Builder
	cv       validation.Config
	maxDays  int
	l        *logger.Logger

	mu      sync.Mutex
	running bool
}

func NewTrainingUseCase(
	features domrepo.FeatureStore,
	store domrepo.ModelStore,
	metrics domrepo.Metrics,
	cv validation.Config,
	net lstm.Config,
	maxDays int,
	l *logger.Logger,
) *TrainingUseCase {
	return &TrainingUseCase{
		features: features,
		store:    store,
		metrics:  metrics,
		builder:  ensemble.NewBuilder(cv, net, l),
		cv:       cv,
		maxDays:  maxDays,
		l:        l,
	}
}

// Train executes one training job and returns its report.
func (uc *TrainingUseCase) Train(ctx context.Context, mode domrepo.SearchMode, trials int) (*models.TrainingReport, error) {
	uc.mu.Lock()
	if uc.running {
		uc.mu.Unlock()
		return nil, fmt.Errorf("training already in progress")
	}
	uc.running = true
	uc.mu.Unlock()
	defer func() {
		uc.mu.Lock()
		uc.running = false
		uc.mu.Unlock()
	}()

	start := time.Now()
	report, err := uc.train(ctx, mode, trials)
	if err != nil {
		uc.metrics.RecordTrainingRun("failed", time.Since(start).Seconds())
		uc.metrics.RecordError("training")
		return nil, err
	}
	uc.metrics.RecordTrainingRun("ok", time.Since(start).Seconds())
	return report, nil
}

func (uc *TrainingUseCase) train(ctx context.Context, mode domrepo.SearchMode, trials int) (*models.TrainingReport, error) {
	start := time.Now()

	m, err := uc.features.TrainingMatrix(ctx, uc.maxDays)
	if err != nil {
		return nil, fmt.Errorf("fetch training matrix: %w", err)
	}
	required := uc.cv.MinTrainDays + uc.cv.GapDays + 1
	if m.Len() < required {
		return nil, &validation.InsufficientDataError{Available: m.Len(), Required: required}
	}

	x, y, dates, outliers := filterTargetOutliers(m.Rows, m.Targets, m.Dates)
	if len(x) < required {
		return nil, &validation.InsufficientDataError{Available: len(x), Required: required}
	}
	uc.l.Info("training data prepared",
		logger.Int("samples", len(x)),
		logger.Int("outliers_removed", outliers))

	strategy, searchTrials, err := uc.resolveStrategy(ctx, mode, trials)
	if err != nil {
		return nil, err
	}
	searchRes, err := search.Run(strategy, x, y, dates, m.Names, uc.cv)
	if err != nil {
		return nil, fmt.Errorf("hyperparameter search: %w", err)
	}
	fields := []logger.Field{
		logger.String("mode", string(mode)),
		logger.Int("trials", searchTrials),
	}
	if !math.IsInf(searchRes.BestMAE, 1) {
		fields = append(fields, logger.Float64("search_mae", searchRes.BestMAE))
	}
	uc.l.Info("hyperparameters resolved", fields...)

	ens, buildRep, err := uc.builder.Build(x, y, dates, m.Names, searchRes.Params)
	if err != nil {
		return nil, fmt.Errorf("ensemble build: %w", err)
	}

	trainedAt := time.Now().UTC()
	version := trainedAt.Format("20060102T150405Z")
	info := &models.ModelInfo{
		Version:        version,
		TrainedAt:      trainedAt,
		Samples:        len(x),
		Alpha:          buildRep.Alpha,
		HasSequence:    buildRep.HasSequence,
		StableFeatures: buildRep.PointCV.StableFeatures,
		Point:          toCVMetrics(buildRep.PointCV),
		Params:         buildRep.Params,
	}
	if err := uc.store.Save(ctx, ens, info); err != nil {
		return nil, fmt.Errorf("persist model: %w", err)
	}

	uc.recordCV("point", buildRep.PointCV)
	if buildRep.SequenceCV != nil {
		uc.recordCV("sequence", buildRep.SequenceCV)
	}

	report := &models.TrainingReport{
		ModelVersion:   version,
		TrainedAt:      trainedAt,
		Samples:        len(x),
		Outliers:       outliers,
		Point:          toCVMetrics(buildRep.PointCV),
		Alpha:          buildRep.Alpha,
		HasSequence:    buildRep.HasSequence,
		StableFeatures: buildRep.PointCV.StableFeatures,
		SearchTrials:   searchTrials,
		Duration:       time.Since(start),
	}
	if buildRep.SequenceCV != nil && len(buildRep.SequenceCV.Folds) > 0 {
		seq := toCVMetrics(buildRep.SequenceCV)
		report.Sequence = &seq
	}

	uc.l.Info("training job complete",
		logger.String("version", version),
		logger.Float64("point_mae", report.Point.MAE),
		logger.Float64("alpha", report.Alpha),
		logger.Int64("duration_ms", report.Duration.Milliseconds()))
	return report, nil
}

// resolveStrategy maps the requested mode to a search strategy. Reuse
// requires a previously persisted model; there is no silent fallback to a
// fresh search.
func (uc *TrainingUseCase) resolveStrategy(ctx context.Context, mode domrepo.SearchMode, trials int) (search.Strategy, int, error) {
	switch mode {
	case domrepo.SearchReuse:
		info, err := uc.store.Info(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("reuse requested but no stored model: %w", err)
		}
		return search.ReuseLast{Params: info.Params}, 0, nil
	case domrepo.SearchFresh:
		return search.FreshSearch{Trials: trials, Seed: time.Now().UnixNano()}, trials, nil
	default:
		return nil, 0, fmt.Errorf("unknown search mode: %s", mode)
	}
}

func (uc *TrainingUseCase) recordCV(model string, res *validation.CVResult) {
	uc.metrics.RecordCVMetric(model, "mae", res.MAE)
	uc.metrics.RecordCVMetric(model, "rmse", res.RMSE)
	uc.metrics.RecordCVMetric(model, "r2", res.R2)
	uc.metrics.RecordCVMetric(model, "directional_accuracy", res.DirectionalAccuracy)
}

func toCVMetrics(res *validation.CVResult) models.CVMetrics {
	return models.CVMetrics{
		MAE:                 res.MAE,
		RMSE:                res.RMSE,
		R2:                  res.R2,
		DirectionalAccuracy: res.DirectionalAccuracy,
		Folds:               len(res.Folds),
	}
}

// filterTargetOutliers drops rows whose target falls outside
// [q1-3*IQR, q3+3*IQR]. Feature-side noise is left for the fold-local
// winsorization.
func filterTargetOutliers(x [][]float64, y []float64, dates []time.Time) ([][]float64, []float64, []time.Time, int) {
	if len(y) < 4 {
		return x, y, dates, 0
	}
	sorted := append([]float64(nil), y...)
	sort.Float64s(sorted)
	q1 := quantileSorted(sorted, 0.25)
	q3 := quantileSorted(sorted, 0.75)
	iqr := q3 - q1
	lo := q1 - outlierIQRFactor*iqr
	hi := q3 + outlierIQRFactor*iqr

	keptX := make([][]float64, 0, len(x))
	keptY := make([]float64, 0, len(y))
	keptD := make([]time.Time, 0, len(dates))
	for i, v := range y {
		if v < lo || v > hi {
			continue
		}
		keptX = append(keptX, x[i])
		keptY = append(keptY, v)
		keptD = append(keptD, dates[i])
	}
	return keptX, keptY, keptD, len(y) - len(keptY)
}

var _ domsvc.Trainer = (*TrainingUseCase)(nil)

// quantileSorted uses linear interpolation between order statistics.
func quantileSorted(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(pos)
	frac := pos - float64(lo)
	if lo+1 >= len(sorted) {
		return sorted[lo]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
