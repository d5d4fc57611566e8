package handler

import (
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"storefront-backend/internal/dto"
	"storefront-backend/internal/service"
)

type PaymentHandler struct {
	paymentService service.PaymentService
}

func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// ProviderCallback is the hot path for provider webhooks. Every failure
// collapses into the same 400 envelope so the response leaks nothing
// about why a forged or broken callback was rejected.
func (h *PaymentHandler) ProviderCallback(c echo.Context) error {
	ctx := c.Request().Context()
	providerName := c.Param("provider")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return webhookError(c)
	}

	if err := h.paymentService.HandleWebhook(ctx, providerName, c.Request().Header, body); err != nil {
		log.Printf("webhook from %s rejected: %v", providerName, err)
		return webhookError(c)
	}

	return c.NoContent(http.StatusOK)
}

func (h *PaymentHandler) RegisterWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.RegisterWebhookRequest
	if err := c.Bind(&req); err != nil || req.CallbackURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "callback_url required")
	}

	webhookID, err := h.paymentService.RegisterWebhook(ctx, c.Param("provider"), req.CallbackURL)
	if err != nil {
		return webhookError(c)
	}

	return c.JSON(http.StatusOK, &dto.RegisterWebhookResponse{WebhookID: webhookID})
}

func (h *PaymentHandler) DeleteWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.paymentService.DeleteWebhook(ctx, c.Param("provider"), c.Param("webhookID")); err != nil {
		return webhookError(c)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

func webhookError(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, &dto.WebhookErrorResponse{
		Status: "error",
		Error:  dto.ErrorBody{Code: "WEBHOOK_ERROR"},
	})
}
