package repository

import (
	"context"

	"PulseCast/internal/domain/models"
	"PulseCast/internal/ml/ensemble"
)

// ModelStore persists trained ensembles and their metadata.
type ModelStore interface {
	Save(ctx context.Context, ens *ensemble.Ensemble, info *models.ModelInfo) error
	// Load returns the most recently saved ensemble and its metadata.
	Load(ctx context.Context) (*ensemble.Ensemble, *models.ModelInfo, error)
	// Info returns the metadata of the most recent model without loading
	// the weights.
	Info(ctx context.Context) (*models.ModelInfo, error)
}
