package service

import (
	"context"

	"PulseCast/internal/domain/models"
	"PulseCast/internal/domain/repository"
)

// Forecaster serves next-day HRV forecasts from the persisted ensemble.
type Forecaster interface {
	Forecast(ctx context.Context, explain bool) (*models.Forecast, error)
	Info(ctx context.Context) (*models.ModelInfo, error)
}

// Trainer runs a complete training job: outlier filtering, hyperparameter
// search, walk-forward validation, ensemble construction and persistence.
type Trainer interface {
	Train(ctx context.Context, mode repository.SearchMode, trials int) (*models.TrainingReport, error)
}
