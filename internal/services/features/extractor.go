package features

import (
	"math"
	"sort"
	"time"

	"PulseCast/internal/domain/models"
)

// Names is the ordered feature list. Column order is part of the model
// contract: persisted models index into vectors built here.
var Names = []string{
	// current day metrics
	"resting_hr",
	"hrv_ln_rmssd",
	"sleep_duration_min",
	"sleep_deep_min",
	"sleep_rem_min",
	"spo2_avg",
	"br_full_sleep",
	"steps",
	"calories_active",
	"active_zone_min",
	"skin_temp_variation",
	// 7-day rolling deltas (vs 7d avg)
	"resting_hr_delta",
	"hrv_delta",
	"sleep_delta",
	"steps_delta",
	"spo2_delta",
	// 3-day rolling std devs
	"rhr_3d_std",
	"hrv_3d_std",
	"sleep_3d_std",
	// day-over-day change rates
	"rhr_change_rate",
	"hrv_change_rate",
	// temporal (sin/cos encoded day of week)
	"dow_sin",
	"dow_cos",
	// personal z-scores (60-day rolling baseline)
	"z_rhr",
	"z_hrv",
	"z_sleep_dur",
}

const (
	deltaWindow    = 7
	stdWindow      = 3
	baselineWindow = 60
	madScale       = 0.6745
)

// BaselineDays is the longest backward-looking window any feature needs;
// callers fetching history for a given range must extend it by this much.
const BaselineDays = baselineWindow

// Vector computes the feature vector for day idx of a date-ordered summary
// slice. Rolling statistics look strictly backwards; unavailable values
// come out as NaN and are imputed downstream.
func Vector(days []*models.DailySummary, idx int) []float64 {
	d := days[idx]
	hrvLn := lnPositive(d.HRVRMSSD)

	rhr7 := windowMean(days, idx, deltaWindow, restingHR)
	hrv7 := windowMean(days, idx, deltaWindow, rmssd)
	sleep7 := windowMean(days, idx, deltaWindow, sleepDur)
	steps7 := windowMean(days, idx, deltaWindow, steps)
	spo27 := windowMean(days, idx, deltaWindow, spo2)

	var prevRHRRate, prevHRVRate float64 = math.NaN(), math.NaN()
	if idx > 0 {
		prev := days[idx-1]
		if !math.IsNaN(prev.RestingHR) && prev.RestingHR > 0 && !math.IsNaN(d.RestingHR) {
			prevRHRRate = (d.RestingHR - prev.RestingHR) / prev.RestingHR
		}
		prevLn := lnPositive(prev.HRVRMSSD)
		if !math.IsNaN(prevLn) && prevLn != 0 && !math.IsNaN(hrvLn) {
			prevHRVRate = (hrvLn - prevLn) / prevLn
		}
	}

	dow := float64(d.Date.Weekday())

	return []float64{
		d.RestingHR,
		hrvLn,
		d.SleepDurationMin,
		d.SleepDeepMin,
		d.SleepRemMin,
		d.SpO2Avg,
		d.BreathingRate,
		d.Steps,
		d.CaloriesActive,
		d.ActiveZoneMin,
		d.SkinTempVariation,
		d.RestingHR - rhr7,
		lnDelta(d.HRVRMSSD, hrv7),
		d.SleepDurationMin - sleep7,
		d.Steps - steps7,
		d.SpO2Avg - spo27,
		windowStd(days, idx, stdWindow, restingHR),
		windowStd(days, idx, stdWindow, rmssd),
		windowStd(days, idx, stdWindow, sleepDur),
		prevRHRRate,
		prevHRVRate,
		math.Sin(2 * math.Pi * dow / 7),
		math.Cos(2 * math.Pi * dow / 7),
		robustZ(days, idx, restingHR, d.RestingHR),
		robustZ(days, idx, lnRMSSD, hrvLn),
		robustZ(days, idx, sleepDur, d.SleepDurationMin),
	}
}

// TargetZ computes the prediction target for day idx: the robust z-score
// of ln(RMSSD) against the preceding 60-day baseline.
func TargetZ(days []*models.DailySummary, idx int) float64 {
	return robustZ(days, idx, lnRMSSD, lnPositive(days[idx].HRVRMSSD))
}

// BuildMatrix turns date-ordered daily summaries into a training matrix:
// the row for day i predicts the z-scored ln(RMSSD) of day i+1. Rows with
// an undefined target are excluded.
func BuildMatrix(days []*models.DailySummary) *models.FeatureMatrix {
	m := &models.FeatureMatrix{Names: Names}
	for i := 0; i+1 < len(days); i++ {
		target := TargetZ(days, i+1)
		if math.IsNaN(target) {
			continue
		}
		m.Rows = append(m.Rows, Vector(days, i))
		m.Targets = append(m.Targets, target)
		m.Dates = append(m.Dates, days[i].Date)
	}
	return m
}

// BuildWindow computes feature vectors for the trailing `n` days without
// targets, for serving.
func BuildWindow(days []*models.DailySummary, n int) *models.FeatureMatrix {
	m := &models.FeatureMatrix{Names: Names}
	start := len(days) - n
	if start < 0 {
		start = 0
	}
	for i := start; i < len(days); i++ {
		m.Rows = append(m.Rows, Vector(days, i))
		m.Dates = append(m.Dates, days[i].Date)
	}
	return m
}

// NextDate returns the prediction target date for a window ending at the
// last summary.
func NextDate(days []*models.DailySummary) time.Time {
	if len(days) == 0 {
		return time.Time{}
	}
	return days[len(days)-1].Date.AddDate(0, 0, 1)
}

type accessor func(*models.DailySummary) float64

func restingHR(d *models.DailySummary) float64 { return d.RestingHR }
func rmssd(d *models.DailySummary) float64     { return d.HRVRMSSD }
func lnRMSSD(d *models.DailySummary) float64   { return lnPositive(d.HRVRMSSD) }
func sleepDur(d *models.DailySummary) float64  { return d.SleepDurationMin }
func steps(d *models.DailySummary) float64     { return d.Steps }
func spo2(d *models.DailySummary) float64      { return d.SpO2Avg }

func lnPositive(v float64) float64 {
	if math.IsNaN(v) || v <= 0 {
		return math.NaN()
	}
	return math.Log(v)
}

func lnDelta(cur, windowAvg float64) float64 {
	c := lnPositive(cur)
	w := lnPositive(windowAvg)
	if math.IsNaN(c) || math.IsNaN(w) {
		return math.NaN()
	}
	return c - w
}

// window collects finite values from the `size` days before idx.
func window(days []*models.DailySummary, idx, size int, get accessor) []float64 {
	start := idx - size
	if start < 0 {
		start = 0
	}
	var out []float64
	for i := start; i < idx; i++ {
		if v := get(days[i]); !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func windowMean(days []*models.DailySummary, idx, size int, get accessor) float64 {
	vals := window(days, idx, size, get)
	if len(vals) == 0 {
		return math.NaN()
	}
	var s float64
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals))
}

func windowStd(days []*models.DailySummary, idx, size int, get accessor) float64 {
	vals := window(days, idx, size, get)
	if len(vals) == 0 {
		return math.NaN()
	}
	var s float64
	for _, v := range vals {
		s += v
	}
	mean := s / float64(len(vals))
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)))
}

// robustZ scores a value against the median/MAD of its 60-day baseline.
func robustZ(days []*models.DailySummary, idx int, get accessor, value float64) float64 {
	if math.IsNaN(value) {
		return math.NaN()
	}
	vals := window(days, idx, baselineWindow, get)
	if len(vals) == 0 {
		return math.NaN()
	}
	med := median(vals)
	devs := make([]float64, len(vals))
	for i, v := range vals {
		devs[i] = math.Abs(v - med)
	}
	mad := median(devs)
	if mad == 0 {
		return math.NaN()
	}
	return madScale * (value - med) / mad
}

func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
