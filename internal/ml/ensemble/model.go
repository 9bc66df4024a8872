package ensemble

import (
	"fmt"
	"math"
	"time"

	"PulseCast/internal/ml/boost"
	"PulseCast/internal/ml/lstm"
	"PulseCast/internal/ml/pca"
	"PulseCast/internal/ml/preprocess"
)

// PointModel is the trained boosted-tree estimator together with the
// whole-set preprocessing statistics it was fitted with. Immutable after
// training.
type PointModel struct {
	Model          *boost.Model      `json:"model"`
	Stats          *preprocess.Stats `json:"stats"`
	FeatureNames   []string          `json:"feature_names"`
	StableFeatures []string          `json:"stable_features"`
	TrainedAt      time.Time         `json:"trained_at"`
}

// Predict preprocesses a raw feature vector and runs the ensemble.
func (m *PointModel) Predict(features []float64) (float64, error) {
	if len(features) != len(m.FeatureNames) {
		return 0, fmt.Errorf("point predict: expected %d features, got %d", len(m.FeatureNames), len(features))
	}
	pred := m.Model.Predict(m.Stats.Transform(features))
	if math.IsNaN(pred) || math.IsInf(pred, 0) {
		return 0, fmt.Errorf("point predict: non-finite prediction")
	}
	return pred, nil
}

// Explain maps per-feature attributions onto feature names. It never
// fails; attribution trouble degrades to split-gain importances inside
// the model.
func (m *PointModel) Explain(features []float64) map[string]float64 {
	row := m.Stats.Transform(features)
	contrib := m.Model.Explain(row)
	out := make(map[string]float64, len(m.FeatureNames))
	for i, name := range m.FeatureNames {
		out[name] = contrib[i]
	}
	return out
}

// SequenceModel is the trained recurrent estimator with its fold-independent
// PCA reducer and reduced-space statistics.
type SequenceModel struct {
	Net      *lstm.Network     `json:"net"`
	Reducer  *pca.Reducer      `json:"reducer"`
	Stats    *preprocess.Stats `json:"stats"`
	Lookback int               `json:"lookback"`
}

// Predict reduces and normalizes a raw lookback window, then runs the
// network. The window must hold exactly Lookback consecutive days ending
// the day before the prediction target.
func (m *SequenceModel) Predict(window [][]float64) (float64, error) {
	if len(window) != m.Lookback {
		return 0, fmt.Errorf("sequence predict: expected %d days, got %d", m.Lookback, len(window))
	}
	seq := make([][]float64, len(window))
	for i, row := range window {
		seq[i] = m.Stats.Transform(m.Reducer.Transform(row))
	}
	return m.Net.Predict(seq)
}

// Forecast is a single next-day prediction.
type Forecast struct {
	Value        float64 `json:"value"`
	Confidence   float64 `json:"confidence"`
	UsedSequence bool    `json:"used_sequence"`
}

// Ensemble blends the point and sequence estimators. When the sequence
// model is absent (gate failed or training degraded) predictions come
// from the point model alone.
type Ensemble struct {
	Point    *PointModel    `json:"point"`
	Sequence *SequenceModel `json:"sequence,omitempty"`
	Alpha    float64        `json:"alpha"`
}

// HasSequence reports whether the sequence model participates.
func (e *Ensemble) HasSequence() bool { return e.Sequence != nil }

// Predict blends both estimators. A sequence-model failure at prediction
// time degrades to the point estimator alone; only a point-model failure
// is fatal.
func (e *Ensemble) Predict(features []float64, window [][]float64) (*Forecast, error) {
	pv, err := e.Point.Predict(features)
	if err != nil {
		return nil, err
	}
	pc := lstm.Confidence(pv)

	if e.Sequence == nil {
		return &Forecast{Value: pv, Confidence: pc}, nil
	}

	sv, err := e.Sequence.Predict(window)
	if err != nil {
		return &Forecast{Value: pv, Confidence: pc}, nil
	}
	sc := lstm.Confidence(sv)

	return &Forecast{
		Value:        e.Alpha*pv + (1-e.Alpha)*sv,
		Confidence:   e.Alpha*pc + (1-e.Alpha)*sc,
		UsedSequence: true,
	}, nil
}
