package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailySummaryJSONMissingValues(t *testing.T) {
	d := DailySummary{
		Date:      time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		RestingHR: 54,
		HRVRMSSD:  math.NaN(),
		Steps:     10234,
	}
	d.SleepDurationMin = math.NaN()

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"hrv_daily_rmssd":null`)
	assert.Contains(t, string(b), `"resting_hr":54`)

	var got DailySummary
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, d.Date, got.Date)
	assert.Equal(t, 54.0, got.RestingHR)
	assert.True(t, math.IsNaN(got.HRVRMSSD))
	assert.True(t, math.IsNaN(got.SleepDurationMin))
	assert.Equal(t, 10234.0, got.Steps)
}
