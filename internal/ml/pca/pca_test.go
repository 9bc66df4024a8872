package pca

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, "sleep", classify("sleep_duration_min"))
	assert.Equal(t, "sleep", classify("z_sleep_dur"))
	assert.Equal(t, "hrv", classify("hrv_3d_std"))
	assert.Equal(t, "heart_rate", classify("resting_hr"))
	assert.Equal(t, "heart_rate", classify("rhr_change_rate"))
	assert.Equal(t, "activity", classify("steps_delta"))
	assert.Equal(t, "activity", classify("calories_active"))
	assert.Equal(t, "other", classify("spo2_avg"))
	assert.Equal(t, "other", classify("dow_sin"))
}

func TestFitValidation(t *testing.T) {
	_, err := Fit([][]float64{{1, 2}}, []string{"a", "b"})
	require.Error(t, err)

	_, err = Fit([][]float64{{1, 2}, {3, 4}}, []string{"a"})
	require.Error(t, err)
}

func TestFitRespectsGroupCaps(t *testing.T) {
	names := []string{
		"sleep_duration_min", "sleep_deep_min", "sleep_rem_min",
		"sleep_delta", "sleep_3d_std", "z_sleep_dur",
		"hrv_ln_rmssd", "hrv_delta",
		"resting_hr", "rhr_3d_std",
		"steps", "calories_active",
		"spo2_avg", "dow_sin", "dow_cos", "skin_temp_variation",
	}
	rng := rand.New(rand.NewSource(1))
	rows := make([][]float64, 60)
	for i := range rows {
		row := make([]float64, len(names))
		for j := range row {
			row[j] = rng.NormFloat64()
		}
		rows[i] = row
	}

	r, err := Fit(rows, names)
	require.NoError(t, err)
	require.Len(t, r.Groups, 5)

	for _, g := range r.Groups {
		assert.GreaterOrEqual(t, len(g.Components), 1, g.Name)
		assert.LessOrEqual(t, len(g.Components), groupCaps[g.Name], g.Name)
	}
	assert.Equal(t, r.OutputDim(), len(r.ComponentNames()))
}

func TestCorrelatedGroupCollapsesToOneComponent(t *testing.T) {
	names := []string{"sleep_duration_min", "sleep_deep_min", "sleep_rem_min"}
	rows := make([][]float64, 50)
	for i := range rows {
		base := float64(i)
		rows[i] = []float64{base, 2 * base, -base}
	}

	r, err := Fit(rows, names)
	require.NoError(t, err)
	require.Len(t, r.Groups, 1)
	assert.Len(t, r.Groups[0].Components, 1)
	assert.InDelta(t, 1.0, r.Groups[0].Explained[0], 1e-9)
}

func TestTransformHandlesMissing(t *testing.T) {
	names := []string{"hrv_ln_rmssd", "hrv_delta", "steps"}
	rng := rand.New(rand.NewSource(2))
	rows := make([][]float64, 40)
	for i := range rows {
		rows[i] = []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
	}

	r, err := Fit(rows, names)
	require.NoError(t, err)

	out := r.Transform([]float64{math.NaN(), 0.5, math.NaN()})
	require.Len(t, out, r.OutputDim())
	for _, v := range out {
		assert.False(t, math.IsNaN(v))
	}
}

func TestComponentNames(t *testing.T) {
	names := []string{"sleep_duration_min", "sleep_deep_min", "hrv_ln_rmssd"}
	rng := rand.New(rand.NewSource(3))
	rows := make([][]float64, 30)
	for i := range rows {
		rows[i] = []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
	}

	r, err := Fit(rows, names)
	require.NoError(t, err)

	got := r.ComponentNames()
	assert.Equal(t, "sleep_pc1", got[0])
	assert.Contains(t, got, "hrv_pc1")
}
