package models

import "time"

// DailySummary is one day of wearable biometrics as delivered by the
// device gateway. Missing sensor readings are NaN.
type DailySummary struct {
	Date              time.Time
	RestingHR         float64
	HRVRMSSD          float64
	SleepDurationMin  float64
	SleepDeepMin      float64
	SleepRemMin       float64
	SpO2Avg           float64
	BreathingRate     float64
	Steps             float64
	CaloriesActive    float64
	ActiveZoneMin     float64
	SkinTempVariation float64
}

// FeatureMatrix is the training input: ordered feature names, one row per
// day with NaN sentinels for missing values, next-day targets and strictly
// increasing dates.
type FeatureMatrix struct {
	Names   []string
	Rows    [][]float64
	Targets []float64
	Dates   []time.Time
}

// Len returns the number of usable samples.
func (m *FeatureMatrix) Len() int { return len(m.Rows) }
