package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	domsvc "PulseCast/internal/domain/service"
	icache "PulseCast/internal/service/cache"
	"PulseCast/internal/service/metrics"
	"PulseCast/internal/service/ratelimit"
	applogger "PulseCast/pkg/logger"
)

// HRVHandler serves the forecasting endpoints over plain net/http. Used
// by deployments that run without the Echo stack.
type HRVHandler struct {
	forecaster domsvc.Forecaster
	cache      icache.BytesCache
	rl         *ratelimit.Limiter
	l          *applogger.Logger
}

func NewHRVHandler(forecaster domsvc.Forecaster) *HRVHandler {
	metrics.Register()
	return &HRVHandler{forecaster: forecaster, rl: ratelimit.New()}
}

func (h *HRVHandler) SetCache(c icache.BytesCache) { h.cache = c }

// SetLogger injects a structured logger.
func (h *HRVHandler) SetLogger(l *applogger.Logger) { h.l = l }

func (h *HRVHandler) Predict() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := "predict"
		defer func() { metrics.ForecastLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

		explain := parseBool(r.URL.Query().Get("explain"), false)
		if !h.rl.Allow(r.RemoteAddr+":predict", 5, 2) {
			if h.l != nil {
				h.l.Warn("hrv.predict rate_limited", applogger.String("remote", r.RemoteAddr))
			}
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		cacheKey := "predict:" + strconv.FormatBool(explain)
		if h.cache != nil {
			if b, ok, err := h.cache.GetBytes(cacheKey); err != nil {
				if h.l != nil {
					h.l.Warn("hrv.predict cache_get_error", applogger.Error(err))
				}
			} else if ok {
				w.Header().Set("Content-Type", "application/json")
				if _, err := w.Write(b); err != nil && h.l != nil {
					h.l.Warn("hrv.predict write_error", applogger.Error(err))
				}
				return
			}
		}
		res, err := h.forecaster.Forecast(r.Context(), explain)
		if err != nil {
			metrics.ForecastErrors.WithLabelValues(endpoint).Inc()
			if h.l != nil {
				h.l.Error("hrv.predict error", applogger.Error(err))
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		b, err := json.Marshal(res)
		if err != nil {
			if h.l != nil {
				h.l.Error("hrv.predict marshal_error", applogger.Error(err))
			}
			http.Error(w, "encode error", http.StatusInternalServerError)
			return
		}
		if h.cache != nil {
			if err := h.cache.SetBytes(cacheKey, b, 60*time.Second); err != nil && h.l != nil {
				h.l.Warn("hrv.predict cache_set_error", applogger.Error(err))
			}
		}
		if _, err := w.Write(b); err != nil && h.l != nil {
			h.l.Warn("hrv.predict write_error", applogger.Error(err))
		}
	}
}

func (h *HRVHandler) Model() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := "model"
		defer func() { metrics.ForecastLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

		info, err := h.forecaster.Info(r.Context())
		if err != nil {
			metrics.ForecastErrors.WithLabelValues(endpoint).Inc()
			if h.l != nil {
				h.l.Error("hrv.model error", applogger.Error(err))
			}
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(info); err != nil && h.l != nil {
			h.l.Warn("hrv.model write_error", applogger.Error(err))
		}
	}
}

func parseBool(s string, def bool) bool {
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return v
}
