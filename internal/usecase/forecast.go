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
	"PulseCast/pkg/cache"
	"PulseCast/pkg/logger"
)

const (
	forecastCacheTTL = 5 * time.Minute
	topFeatureCount  = 5
)

// ForecastUseCase serves next-day forecasts from the persisted ensemble.
// The ensemble is held in memory and reloaded when a newer version shows
// up in the model store.
type ForecastUseCase struct {
	features domrepo.FeatureStore
	store    domrepo.ModelStore
	cache    cache.Service
	metrics  domrepo.Metrics
	lookback int
	l        *logger.Logger

	mu      sync.RWMutex
	ens     *ensemble.Ensemble
	info    *models.ModelInfo
	version string
}

func NewForecastUseCase(
	features domrepo.FeatureStore,
	store domrepo.ModelStore,
	c cache.Service,
	metrics domrepo.Metrics,
	lookback int,
	l *logger.Logger,
) *ForecastUseCase {
	return &ForecastUseCase{
		features: features,
		store:    store,
		cache:    c,
		metrics:  metrics,
		lookback: lookback,
		l:        l,
	}
}

// Forecast predicts tomorrow's HRV z-score from the latest feature window.
func (uc *ForecastUseCase) Forecast(ctx context.Context, explain bool) (*models.Forecast, error) {
	start := time.Now()

	ens, info, err := uc.current(ctx)
	if err != nil {
		return nil, err
	}

	w, err := uc.features.LatestWindow(ctx, uc.lookback)
	if err != nil {
		return nil, fmt.Errorf("fetch latest window: %w", err)
	}
	if w.Len() == 0 {
		return nil, fmt.Errorf("no recent summaries to forecast from")
	}

	key := forecastKey(info.Version, w.Dates[w.Len()-1], explain)
	if uc.cache != nil {
		var cached models.Forecast
		if err := uc.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	latest := w.Rows[w.Len()-1]
	window := w.Rows
	if len(window) > uc.lookback {
		window = window[len(window)-uc.lookback:]
	}

	pred, err := ens.Predict(latest, window)
	if err != nil {
		uc.metrics.RecordError("forecast")
		return nil, fmt.Errorf("predict: %w", err)
	}

	f := &models.Forecast{
		TargetDate:   w.Dates[w.Len()-1].AddDate(0, 0, 1),
		ZScore:       pred.Value,
		Confidence:   pred.Confidence,
		UsedSequence: pred.UsedSequence,
		Alpha:        ens.Alpha,
		ModelVersion: info.Version,
		GeneratedAt:  time.Now().UTC(),
	}
	if explain {
		f.TopFeatures = topContributions(ens.Point.Explain(latest), topFeatureCount)
	}

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, key, f, forecastCacheTTL); err != nil {
			uc.l.Warn("forecast cache set failed", logger.Error(err))
		}
	}

	uc.metrics.RecordPrediction("ensemble", pred.Value)
	uc.metrics.RecordLatency("forecast", time.Since(start).Seconds())
	return f, nil
}

// Info returns the metadata of the currently persisted model.
func (uc *ForecastUseCase) Info(ctx context.Context) (*models.ModelInfo, error) {
	return uc.store.Info(ctx)
}

// current returns the in-memory ensemble, reloading it when the store
// holds a newer version.
func (uc *ForecastUseCase) current(ctx context.Context) (*ensemble.Ensemble, *models.ModelInfo, error) {
	info, err := uc.store.Info(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("no trained model available: %w", err)
	}

	uc.mu.RLock()
	if uc.ens != nil && uc.version == info.Version {
		ens, inf := uc.ens, uc.info
		uc.mu.RUnlock()
		return ens, inf, nil
	}
	uc.mu.RUnlock()

	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.ens != nil && uc.version == info.Version {
		return uc.ens, uc.info, nil
	}

	ens, loaded, err := uc.store.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load model: %w", err)
	}
	uc.ens = ens
	uc.info = loaded
	uc.version = loaded.Version
	uc.l.Info("model loaded",
		logger.String("version", loaded.Version),
		logger.Bool("has_sequence", ens.HasSequence()))
	return ens, loaded, nil
}

var _ domsvc.Forecaster = (*ForecastUseCase)(nil)

func forecastKey(version string, lastDay time.Time, explain bool) string {
	return fmt.Sprintf("pulsecast:forecast:%s:%s:%t", version, lastDay.Format("2006-01-02"), explain)
}

// topContributions keeps the n largest attributions by magnitude.
func topContributions(contrib map[string]float64, n int) map[string]float64 {
	type kv struct {
		name string
		val  float64
	}
	all := make([]kv, 0, len(contrib))
	for name, v := range contrib {
		all = append(all, kv{name, v})
	}
	sort.Slice(all, func(i, j int) bool {
		ai, aj := math.Abs(all[i].val), math.Abs(all[j].val)
		if ai != aj {
			return ai > aj
		}
		return all[i].name < all[j].name
	})
	if len(all) > n {
		all = all[:n]
	}
	out := make(map[string]float64, len(all))
	for _, e := range all {
		out[e.name] = e.val
	}
	return out
}
