package repository

import (
	"context"

	"PulseCast/internal/domain/models"
)

// FeatureStore provides read-only access to the engineered feature matrix
// for training and serving.
type FeatureStore interface {
	// TrainingMatrix returns up to maxDays of engineered features with
	// next-day targets, ordered by date ascending.
	TrainingMatrix(ctx context.Context, maxDays int) (*models.FeatureMatrix, error)
	// LatestWindow returns the engineered features of the most recent
	// `days` days (no targets), ordered by date ascending.
	LatestWindow(ctx context.Context, days int) (*models.FeatureMatrix, error)
}
