package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"trendcast-api/internal/models"
	"trendcast-api/internal/recorder"
	"trendcast-api/internal/services"
	"trendcast-api/pkg/errors"
)

type ForecastHandler struct {
	orchestrator *services.ForecastOrchestrator
}

func NewForecastHandler(orchestrator *services.ForecastOrchestrator) *ForecastHandler {
	return &ForecastHandler{
		orchestrator: orchestrator,
	}
}

// Register mounts the v1 routes.
func (h *ForecastHandler) Register(v1 fiber.Router) {
	v1.Get("/tickers", h.ListTickers)
	v1.Get("/tickers/:symbol/prices", h.GetPrices)
	v1.Get("/tickers/:symbol/chart.png", h.GetPriceChart)
	v1.Post("/forecast", h.GetForecast)
	v1.Get("/forecast/:symbol/chart.png", h.GetForecastChart)
	v1.Get("/forecast/:symbol/components.png", h.GetComponentsChart)
	v1.Get("/history/:symbol", h.GetHistory)
	v1.Post("/admin/refresh", h.RefreshCache)
}

// ListTickers handles GET /v1/tickers
func (h *ForecastHandler) ListTickers(c *fiber.Ctx) error {
	return c.JSON(models.TickersResponse{Tickers: h.orchestrator.Tickers()})
}

// GetForecast handles POST /v1/forecast
func (h *ForecastHandler) GetForecast(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 60*time.Second)
	defer cancel()

	var req models.ForecastRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
			Code:    fiber.StatusBadRequest,
		})
	}

	forecast, err := h.orchestrator.GenerateForecast(ctx, req)
	if err != nil {
		return respondError(c, "Failed to generate forecast", err)
	}

	return c.JSON(forecast)
}

// GetPrices handles GET /v1/tickers/:symbol/prices
func (h *ForecastHandler) GetPrices(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 30*time.Second)
	defer cancel()

	prices, err := h.orchestrator.GetPrices(ctx, c.Params("symbol"))
	if err != nil {
		return respondError(c, "Failed to load prices", err)
	}
	return c.JSON(prices)
}

// GetPriceChart handles GET /v1/tickers/:symbol/chart.png
func (h *ForecastHandler) GetPriceChart(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 30*time.Second)
	defer cancel()

	img, err := h.orchestrator.PriceChart(ctx, c.Params("symbol"))
	if err != nil {
		return respondError(c, "Failed to render chart", err)
	}
	return sendPNG(c, img)
}

// GetForecastChart handles GET /v1/forecast/:symbol/chart.png?years=N
func (h *ForecastHandler) GetForecastChart(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 60*time.Second)
	defer cancel()

	img, err := h.orchestrator.ForecastChart(ctx, chartRequest(c))
	if err != nil {
		return respondError(c, "Failed to render forecast chart", err)
	}
	return sendPNG(c, img)
}

// GetComponentsChart handles GET /v1/forecast/:symbol/components.png?years=N
func (h *ForecastHandler) GetComponentsChart(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 60*time.Second)
	defer cancel()

	img, err := h.orchestrator.ComponentsChart(ctx, chartRequest(c))
	if err != nil {
		return respondError(c, "Failed to render components chart", err)
	}
	return sendPNG(c, img)
}

// GetHistory handles GET /v1/history/:symbol?limit=N
func (h *ForecastHandler) GetHistory(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 10*time.Second)
	defer cancel()

	history, err := h.orchestrator.History(ctx, c.Params("symbol"), c.QueryInt("limit", recorder.DefaultListLimit))
	if err != nil {
		return respondError(c, "Failed to load history", err)
	}
	return c.JSON(history)
}

// RefreshCache handles POST /v1/admin/refresh
func (h *ForecastHandler) RefreshCache(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 60*time.Second)
	defer cancel()

	err := h.orchestrator.RefreshCache(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:   "Failed to refresh cache",
			Message: err.Error(),
			Code:    fiber.StatusInternalServerError,
		})
	}

	return c.JSON(fiber.Map{
		"message": "Cache refreshed successfully",
		"time":    time.Now(),
	})
}

func chartRequest(c *fiber.Ctx) models.ForecastRequest {
	return models.ForecastRequest{
		Ticker: c.Params("symbol"),
		Years:  c.QueryInt("years", 1),
	}
}

func sendPNG(c *fiber.Ctx, img []byte) error {
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(img)
}

// StatusFor maps an error code onto an HTTP status.
func StatusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidParameter:
		return fiber.StatusBadRequest
	case errors.ErrCodeEmptyData:
		return fiber.StatusNotFound
	case errors.ErrCodeSchemaAmbiguity, errors.ErrCodeInsufficientHistory:
		return fiber.StatusUnprocessableEntity
	case errors.ErrCodeTransport, errors.ErrCodeForecastFailed:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, title string, err error) error {
	code := StatusFor(err)
	return c.Status(code).JSON(models.ErrorResponse{
		Error:   title,
		Message: err.Error(),
		Code:    code,
	})
}

// CustomErrorHandler handles Fiber errors
func CustomErrorHandler(c *fiber.Ctx, err error) error {
	code := StatusFor(err)

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(models.ErrorResponse{
		Error:   "Request failed",
		Message: err.Error(),
		Code:    code,
	})
}
