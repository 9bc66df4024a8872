package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"PulseCast/internal/domain/models"
	icache "PulseCast/internal/service/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubForecaster struct {
	forecasts int
	explain   bool
	fail      bool
}

func (s *stubForecaster) Forecast(_ context.Context, explain bool) (*models.Forecast, error) {
	s.forecasts++
	s.explain = explain
	if s.fail {
		return nil, errors.New("no trained model")
	}
	f := &models.Forecast{
		TargetDate:   time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		ZScore:       -0.42,
		Confidence:   0.88,
		Alpha:        0.5,
		ModelVersion: "20260830T060000Z",
		GeneratedAt:  time.Now().UTC(),
	}
	if explain {
		f.TopFeatures = map[string]float64{"hrv_delta": -0.3}
	}
	return f, nil
}

func (s *stubForecaster) Info(_ context.Context) (*models.ModelInfo, error) {
	if s.fail {
		return nil, errors.New("no trained model")
	}
	return &models.ModelInfo{Version: "20260830T060000Z", Samples: 400, Alpha: 0.5}, nil
}

func TestPredictReturnsForecast(t *testing.T) {
	fc := &stubForecaster{}
	h := NewHRVHandler(fc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/hrv/predict?explain=true", nil)
	rec := httptest.NewRecorder()
	h.Predict()(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.True(t, fc.explain)

	var got models.Forecast
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "20260830T060000Z", got.ModelVersion)
	assert.Equal(t, -0.42, got.ZScore)
	assert.Contains(t, got.TopFeatures, "hrv_delta")
}

func TestPredictServesFromCache(t *testing.T) {
	fc := &stubForecaster{}
	h := NewHRVHandler(fc)
	h.SetCache(icache.NewTTLCache())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/hrv/predict", nil)
		rec := httptest.NewRecorder()
		h.Predict()(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 1, fc.forecasts)
}

func TestPredictRateLimited(t *testing.T) {
	fc := &stubForecaster{}
	h := NewHRVHandler(fc)

	var last int
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/hrv/predict", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.Predict()(rec, req)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
	assert.Less(t, fc.forecasts, 10)
}

func TestPredictWithoutModel(t *testing.T) {
	fc := &stubForecaster{fail: true}
	h := NewHRVHandler(fc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/hrv/predict", nil)
	rec := httptest.NewRecorder()
	h.Predict()(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestModelInfo(t *testing.T) {
	h := NewHRVHandler(&stubForecaster{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/model", nil)
	rec := httptest.NewRecorder()
	h.Model()(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var info models.ModelInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, 400, info.Samples)
}

func TestModelInfoNotFound(t *testing.T) {
	h := NewHRVHandler(&stubForecaster{fail: true})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/model", nil)
	rec := httptest.NewRecorder()
	h.Model()(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParseBool(t *testing.T) {
	assert.True(t, parseBool("true", false))
	assert.True(t, parseBool("1", false))
	assert.False(t, parseBool("false", true))
	assert.True(t, parseBool("", true))
	assert.False(t, parseBool("garbage", false))
}
