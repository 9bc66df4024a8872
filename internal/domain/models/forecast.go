package models

import (
	"time"

	"PulseCast/internal/ml/boost"
)

// Forecast is a next-day HRV prediction on the z-scored ln(RMSSD) scale.
type Forecast struct {
	TargetDate   time.Time          `json:"target_date"`
	ZScore       float64            `json:"z_score"`
	Confidence   float64            `json:"confidence"`
	UsedSequence bool               `json:"used_sequence"`
	Alpha        float64            `json:"alpha"`
	ModelVersion string             `json:"model_version"`
	TopFeatures  map[string]float64 `json:"top_features,omitempty"`
	GeneratedAt  time.Time          `json:"generated_at"`
}

// CVMetrics are the aggregate walk-forward quality numbers surfaced to
// reporting.
type CVMetrics struct {
	MAE                 float64 `json:"mae"`
	RMSE                float64 `json:"rmse"`
	R2                  float64 `json:"r2"`
	DirectionalAccuracy float64 `json:"directional_accuracy"`
	Folds               int     `json:"folds"`
}

// TrainingReport summarizes one completed training job.
type TrainingReport struct {
	ModelVersion   string        `json:"model_version"`
	TrainedAt      time.Time     `json:"trained_at"`
	Samples        int           `json:"samples"`
	Outliers       int           `json:"outliers_removed"`
	Point          CVMetrics     `json:"point"`
	Sequence       *CVMetrics    `json:"sequence,omitempty"`
	Alpha          float64       `json:"alpha"`
	HasSequence    bool          `json:"has_sequence"`
	StableFeatures []string      `json:"stable_features"`
	SearchTrials   int           `json:"search_trials"`
	Duration       time.Duration `json:"duration_ms"`
}

// ModelInfo describes the currently persisted model.
type ModelInfo struct {
	Version        string       `json:"version"`
	TrainedAt      time.Time    `json:"trained_at"`
	Samples        int          `json:"samples"`
	Alpha          float64      `json:"alpha"`
	HasSequence    bool         `json:"has_sequence"`
	StableFeatures []string     `json:"stable_features"`
	Point          CVMetrics    `json:"point"`
	Params         boost.Params `json:"params"`
}
