package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"storefront-backend/internal/dto"
	"storefront-backend/internal/model"
	"storefront-backend/internal/service"
)

type OrderHandler struct {
	orderService   service.OrderService
	paymentService service.PaymentService
}

func NewOrderHandler(orderService service.OrderService, paymentService service.PaymentService) *OrderHandler {
	return &OrderHandler{
		orderService:   orderService,
		paymentService: paymentService,
	}
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	order, err := h.orderService.CreateOrder(ctx, &req)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, orderResponse(order))
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()

	order, err := h.orderService.GetOrder(ctx, c.Param("orderID"))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, orderResponse(order))
}

func (h *OrderHandler) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.orderService.CancelOrder(ctx, c.Param("orderID")); err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *OrderHandler) ShipOrder(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.orderService.MarkShipped(ctx, c.Param("orderID")); err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "shipped"})
}

func (h *OrderHandler) OrderEvents(c echo.Context) error {
	ctx := c.Request().Context()

	events, err := h.orderService.OrderEvents(ctx, c.Param("orderID"))
	if err != nil {
		return toHTTPError(err)
	}

	views := make([]dto.OrderEventView, len(events))
	for i, e := range events {
		views[i] = dto.OrderEventView{
			EventID:    e.EventID(),
			EventType:  e.EventType(),
			OccurredAt: e.OccurredAt(),
			Payload:    e,
		}
	}
	return c.JSON(http.StatusOK, views)
}

func (h *OrderHandler) InitiatePayment(c echo.Context) error {
	ctx := c.Request().Context()

	providerName := c.QueryParam("provider")
	if providerName == "" {
		providerName = "vipps"
	}

	payment, err := h.paymentService.InitiatePayment(ctx, c.Param("orderID"), providerName)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, &dto.PaymentResponse{
		PaymentID:         payment.PaymentID,
		OrderID:           payment.OrderID,
		Status:            string(payment.Status),
		ProviderReference: payment.ProviderReference,
	})
}

func orderResponse(order *model.Order) *dto.OrderResponse {
	return &dto.OrderResponse{
		OrderID:  order.OrderID,
		Status:   string(order.Status),
		Total:    order.TotalAmount.StringFixed(2),
		Currency: order.Currency,
	}
}

func toHTTPError(err error) error {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]interface{}{
			"violations": verr.Violations,
		})
	}
	var terr *model.InvalidStateTransitionError
	if errors.As(err, &terr) {
		return echo.NewHTTPError(http.StatusConflict, terr.Error())
	}
	if errors.Is(err, model.ErrOrderNotFound) || errors.Is(err, model.ErrPaymentNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return err
}
