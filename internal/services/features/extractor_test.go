package features

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PulseCast/internal/domain/models"
)

func makeDays(n int, seed int64) []*models.DailySummary {
	rng := rand.New(rand.NewSource(seed))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	days := make([]*models.DailySummary, n)
	for i := 0; i < n; i++ {
		days[i] = &models.DailySummary{
			Date:              base.AddDate(0, 0, i),
			RestingHR:         55 + rng.NormFloat64()*3,
			HRVRMSSD:          60 + rng.NormFloat64()*8,
			SleepDurationMin:  420 + rng.NormFloat64()*30,
			SleepDeepMin:      80 + rng.NormFloat64()*10,
			SleepRemMin:       100 + rng.NormFloat64()*10,
			SpO2Avg:           96 + rng.NormFloat64(),
			BreathingRate:     14 + rng.NormFloat64(),
			Steps:             9000 + rng.NormFloat64()*2000,
			CaloriesActive:    500 + rng.NormFloat64()*100,
			ActiveZoneMin:     40 + rng.NormFloat64()*15,
			SkinTempVariation: rng.NormFloat64() * 0.3,
		}
	}
	return days
}

func TestVectorLengthMatchesNames(t *testing.T) {
	days := makeDays(90, 1)
	v := Vector(days, 80)
	assert.Len(t, v, len(Names))
}

func TestVectorFirstDayHasNaNRollups(t *testing.T) {
	days := makeDays(10, 2)
	v := Vector(days, 0)

	byName := map[string]float64{}
	for i, name := range Names {
		byName[name] = v[i]
	}
	assert.False(t, math.IsNaN(byName["resting_hr"]))
	assert.True(t, math.IsNaN(byName["resting_hr_delta"]))
	assert.True(t, math.IsNaN(byName["rhr_3d_std"]))
	assert.True(t, math.IsNaN(byName["rhr_change_rate"]))
	assert.True(t, math.IsNaN(byName["z_rhr"]))
	assert.False(t, math.IsNaN(byName["dow_sin"]))
}

func TestVectorLnRMSSD(t *testing.T) {
	days := makeDays(5, 3)
	days[4].HRVRMSSD = math.E
	v := Vector(days, 4)
	assert.InDelta(t, 1.0, v[1], 1e-12)

	days[4].HRVRMSSD = 0
	v = Vector(days, 4)
	assert.True(t, math.IsNaN(v[1]))
}

func TestDowEncodingIsUnitCircle(t *testing.T) {
	days := makeDays(8, 4)
	for i := range days {
		v := Vector(days, i)
		sin, cos := v[21], v[22]
		assert.InDelta(t, 1.0, sin*sin+cos*cos, 1e-9)
	}
}

func TestBuildMatrixAlignsNextDayTarget(t *testing.T) {
	days := makeDays(120, 5)
	m := BuildMatrix(days)

	require.NotEmpty(t, m.Rows)
	assert.Equal(t, len(m.Rows), len(m.Targets))
	assert.Equal(t, len(m.Rows), len(m.Dates))
	assert.Equal(t, Names, m.Names)

	// the first days lack a 60d baseline for the target, so they are excluded
	assert.Less(t, len(m.Rows), len(days)-1)
	for i := 1; i < len(m.Dates); i++ {
		assert.True(t, m.Dates[i].After(m.Dates[i-1]))
	}
	for _, y := range m.Targets {
		assert.False(t, math.IsNaN(y))
	}
}

func TestBuildWindowTrailing(t *testing.T) {
	days := makeDays(30, 6)
	m := BuildWindow(days, 7)
	require.Len(t, m.Rows, 7)
	assert.Equal(t, days[23].Date, m.Dates[0])
	assert.Equal(t, days[29].Date, m.Dates[6])
}

func TestNextDate(t *testing.T) {
	days := makeDays(3, 7)
	assert.Equal(t, days[2].Date.AddDate(0, 0, 1), NextDate(days))
	assert.True(t, NextDate(nil).IsZero())
}

func TestRobustZCentersBaseline(t *testing.T) {
	days := makeDays(80, 8)
	for i := range days {
		days[i].RestingHR = 55 // constant baseline, MAD 0
	}
	assert.True(t, math.IsNaN(robustZ(days, 70, restingHR, 55)))

	days = makeDays(80, 9)
	z := robustZ(days, 70, restingHR, days[70].RestingHR)
	assert.False(t, math.IsNaN(z))
	assert.Less(t, math.Abs(z), 10.0)
}
