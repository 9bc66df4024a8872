package models

import (
	"encoding/json"
	"math"
	"time"
)

// wire form: missing sensor readings travel as JSON null, in-memory they
// are NaN.
type dailySummaryWire struct {
	Date              time.Time `json:"date"`
	RestingHR         *float64  `json:"resting_hr"`
	HRVRMSSD          *float64  `json:"hrv_daily_rmssd"`
	SleepDurationMin  *float64  `json:"sleep_duration_min"`
	SleepDeepMin      *float64  `json:"sleep_deep_min"`
	SleepRemMin       *float64  `json:"sleep_rem_min"`
	SpO2Avg           *float64  `json:"spo2_avg"`
	BreathingRate     *float64  `json:"br_full_sleep"`
	Steps             *float64  `json:"steps"`
	CaloriesActive    *float64  `json:"calories_active"`
	ActiveZoneMin     *float64  `json:"active_zone_min"`
	SkinTempVariation *float64  `json:"skin_temp_variation"`
}

func (d DailySummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(dailySummaryWire{
		Date:              d.Date,
		RestingHR:         toPtr(d.RestingHR),
		HRVRMSSD:          toPtr(d.HRVRMSSD),
		SleepDurationMin:  toPtr(d.SleepDurationMin),
		SleepDeepMin:      toPtr(d.SleepDeepMin),
		SleepRemMin:       toPtr(d.SleepRemMin),
		SpO2Avg:           toPtr(d.SpO2Avg),
		BreathingRate:     toPtr(d.BreathingRate),
		Steps:             toPtr(d.Steps),
		CaloriesActive:    toPtr(d.CaloriesActive),
		ActiveZoneMin:     toPtr(d.ActiveZoneMin),
		SkinTempVariation: toPtr(d.SkinTempVariation),
	})
}

func (d *DailySummary) UnmarshalJSON(b []byte) error {
	var w dailySummaryWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	d.Date = w.Date
	d.RestingHR = fromPtr(w.RestingHR)
	d.HRVRMSSD = fromPtr(w.HRVRMSSD)
	d.SleepDurationMin = fromPtr(w.SleepDurationMin)
	d.SleepDeepMin = fromPtr(w.SleepDeepMin)
	d.SleepRemMin = fromPtr(w.SleepRemMin)
	d.SpO2Avg = fromPtr(w.SpO2Avg)
	d.BreathingRate = fromPtr(w.BreathingRate)
	d.Steps = fromPtr(w.Steps)
	d.CaloriesActive = fromPtr(w.CaloriesActive)
	d.ActiveZoneMin = fromPtr(w.ActiveZoneMin)
	d.SkinTempVariation = fromPtr(w.SkinTempVariation)
	return nil
}

func toPtr(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func fromPtr(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
