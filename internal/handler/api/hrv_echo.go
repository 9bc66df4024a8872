package api

import (
	"net/http"

	models "PulseCast/internal/domain/models"
	domrepo "PulseCast/internal/domain/repository"
	domsvc "PulseCast/internal/domain/service"
	"PulseCast/internal/usecase"
	xhttp "PulseCast/pkg/http"
	xlogger "PulseCast/pkg/logger"
	"PulseCast/pkg/queue"

	"github.com/labstack/echo/v4"
)

// HRVEchoHandler implements Echo-based HTTP handlers following Clean Architecture.
type HRVEchoHandler struct {
	logger     *xlogger.Logger
	forecaster domsvc.Forecaster
	trainer    domsvc.Trainer
	jobs       queue.QueueService // optional; nil trains synchronously
}

func NewHRVEchoHandler(logger *xlogger.Logger, forecaster domsvc.Forecaster, trainer domsvc.Trainer, jobs queue.QueueService) *HRVEchoHandler {
	return &HRVEchoHandler{logger: logger, forecaster: forecaster, trainer: trainer, jobs: jobs}
}

func (h *HRVEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/hrv/predict", h.Predict)
	g.POST("/train", h.Train)
	g.GET("/model", h.Model)
}

func (h *HRVEchoHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.forecaster.Forecast(c.Request().Context(), req.Explain)
	if err != nil {
		h.logger.Error("predict usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

func (h *HRVEchoHandler) Train(c echo.Context) error {
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	mode := domrepo.NormalizeSearchMode(req.Strategy)

	if h.jobs != nil {
		payload := usecase.TrainJobPayload{Mode: string(mode), Trials: req.Trials}
		if err := h.jobs.PublishMessage(c.Request().Context(), usecase.TrainJobType, payload); err != nil {
			h.logger.Error("train enqueue error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		return xhttp.DataResponse(c, http.StatusAccepted, map[string]string{
			"status": "queued",
			"mode":   string(mode),
		})
	}

	report, err := h.trainer.Train(c.Request().Context(), mode, req.Trials)
	if err != nil {
		h.logger.Error("train usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *HRVEchoHandler) Model(c echo.Context) error {
	info, err := h.forecaster.Info(c.Request().Context())
	if err != nil {
		h.logger.Error("model info error", xlogger.Error(err))
		return xhttp.NotFoundResponse(c, "no trained model")
	}
	return xhttp.SuccessResponse(c, info)
}
