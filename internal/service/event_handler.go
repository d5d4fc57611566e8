package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"storefront-backend/internal/client"
	"storefront-backend/internal/event"
	"storefront-backend/internal/model"
	"storefront-backend/internal/notification"
	"storefront-backend/internal/repository"
)

// The handlers below keep Order and Payment eventually consistent.
// Each subscribes to exactly one event type and runs in its own unit of
// work: when the order update fails, the payment state already
// persisted stays as it is and the error surfaces through the publisher
// for operational alerting. A status the order already holds is a
// success no-op, which makes redelivery safe.

// RegisterEventHandlers wires every cross-aggregate reactor into the
// publisher. Call once at startup, before the server accepts traffic.
func RegisterEventHandlers(
	publisher *event.Publisher,
	orders OrderService,
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	providers *client.ProviderRegistry,
	db *gorm.DB,
	worker *notification.Worker,
) {
	publisher.Subscribe(NewPaymentReservedHandler(orders))
	publisher.Subscribe(NewPaymentCapturedHandler(orders))
	publisher.Subscribe(NewPaymentCancelledHandler(orders))
	publisher.Subscribe(NewPaymentFailedHandler(orders))
	publisher.Subscribe(NewOrderCancellationHandler(db, paymentRepo, providers, publisher))
	publisher.Subscribe(NewOrderNotificationHandler(orderRepo, worker))
}

// PaymentReservedHandler marks the order paid once the provider has
// reserved the amount.
type PaymentReservedHandler struct {
	orders OrderService
}

func NewPaymentReservedHandler(orders OrderService) *PaymentReservedHandler {
	return &PaymentReservedHandler{orders: orders}
}

func (h *PaymentReservedHandler) EventType() string {
	return model.EventTypePaymentReserved
}

func (h *PaymentReservedHandler) Handle(ctx context.Context, e model.DomainEvent) error {
	ev, ok := e.(*model.PaymentReserved)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}
	return h.orders.UpdateStatus(ctx, ev.OrderID, model.OrderStatusPaid)
}

// PaymentCapturedHandler completes the order once the amount has been
// captured.
type PaymentCapturedHandler struct {
	orders OrderService
}

func NewPaymentCapturedHandler(orders OrderService) *PaymentCapturedHandler {
	return &PaymentCapturedHandler{orders: orders}
}

func (h *PaymentCapturedHandler) EventType() string {
	return model.EventTypePaymentCaptured
}

func (h *PaymentCapturedHandler) Handle(ctx context.Context, e model.DomainEvent) error {
	ev, ok := e.(*model.PaymentCaptured)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}
	return h.orders.UpdateStatus(ctx, ev.OrderID, model.OrderStatusCompleted)
}

type PaymentCancelledHandler struct {
	orders OrderService
}

func NewPaymentCancelledHandler(orders OrderService) *PaymentCancelledHandler {
	return &PaymentCancelledHandler{orders: orders}
}

func (h *PaymentCancelledHandler) EventType() string {
	return model.EventTypePaymentCancelled
}

func (h *PaymentCancelledHandler) Handle(ctx context.Context, e model.DomainEvent) error {
	ev, ok := e.(*model.PaymentCancelled)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}
	return h.orders.UpdateStatus(ctx, ev.OrderID, model.OrderStatusCancelled)
}

// PaymentFailedHandler files the order by failure class: hard failures
// fail it, an expired or terminated attempt abandons it, and an unknown
// reason is logged without touching the order.
type PaymentFailedHandler struct {
	orders OrderService
}

func NewPaymentFailedHandler(orders OrderService) *PaymentFailedHandler {
	return &PaymentFailedHandler{orders: orders}
}

func (h *PaymentFailedHandler) EventType() string {
	return model.EventTypePaymentFailed
}

func (h *PaymentFailedHandler) Handle(ctx context.Context, e model.DomainEvent) error {
	ev, ok := e.(*model.PaymentFailed)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}

	var target model.OrderStatus
	switch ev.Reason {
	case model.FailureReasonFunds, model.FailureReasonMethod,
		model.FailureReasonProcessing, model.FailureReasonProvider:
		target = model.OrderStatusFailed
	case model.FailureReasonExpired, model.FailureReasonTerminated:
		target = model.OrderStatusAbandoned
	default:
		log.Printf("payment %s failed with unknown reason %q, leaving order %s untouched",
			ev.PaymentID, ev.Reason, ev.OrderID)
		return nil
	}
	return h.orders.UpdateStatus(ctx, ev.OrderID, target)
}

// OrderCancellationHandler requests cancellation of the active payment
// attempt when its order is cancelled. The local payment is only
// cancelled after the provider accepted the request.
type OrderCancellationHandler struct {
	db          *gorm.DB
	paymentRepo repository.PaymentRepository
	providers   *client.ProviderRegistry
	publisher   *event.Publisher
}

func NewOrderCancellationHandler(
	db *gorm.DB,
	paymentRepo repository.PaymentRepository,
	providers *client.ProviderRegistry,
	publisher *event.Publisher,
) *OrderCancellationHandler {
	return &OrderCancellationHandler{
		db:          db,
		paymentRepo: paymentRepo,
		providers:   providers,
		publisher:   publisher,
	}
}

func (h *OrderCancellationHandler) EventType() string {
	return model.EventTypeOrderStatusChanged
}

func (h *OrderCancellationHandler) Handle(ctx context.Context, e model.DomainEvent) error {
	ev, ok := e.(*model.OrderStatusChanged)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}
	if ev.NewStatus != model.OrderStatusCancelled {
		return nil
	}

	payment, err := h.paymentRepo.FindActiveByOrderID(ctx, ev.OrderID)
	if errors.Is(err, model.ErrPaymentNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if payment.Status == model.PaymentStatusCancelled || payment.Status.IsTerminal() {
		return nil
	}

	if payment.ProviderReference != "" {
		provider, err := h.providers.Get(payment.Provider)
		if err != nil {
			return err
		}
		if err := provider.CancelPayment(ctx, payment.ProviderReference); err != nil {
			return fmt.Errorf("cancel payment %s at provider: %w", payment.PaymentID, err)
		}
	}

	if err := payment.Cancel(); err != nil {
		return err
	}
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return h.paymentRepo.Update(ctx, tx, payment)
	})
	if err != nil {
		return fmt.Errorf("store payment cancellation: %w", err)
	}
	return h.publisher.PublishAll(ctx, payment.PullEvents())
}

// OrderNotificationHandler defers notification I/O to the async worker;
// the request that changed the order never waits on it.
type OrderNotificationHandler struct {
	orderRepo repository.OrderRepository
	worker    *notification.Worker
}

func NewOrderNotificationHandler(orderRepo repository.OrderRepository, worker *notification.Worker) *OrderNotificationHandler {
	return &OrderNotificationHandler{orderRepo: orderRepo, worker: worker}
}

func (h *OrderNotificationHandler) EventType() string {
	return model.EventTypeOrderStatusChanged
}

func (h *OrderNotificationHandler) Handle(ctx context.Context, e model.DomainEvent) error {
	ev, ok := e.(*model.OrderStatusChanged)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}

	order, err := h.orderRepo.FindByOrderID(ctx, ev.OrderID)
	if err != nil {
		return err
	}

	switch ev.NewStatus {
	case model.OrderStatusPaid:
		h.worker.Enqueue(notification.Task{Kind: notification.KindOrderConfirmation, Order: order})
		h.worker.Enqueue(notification.Task{Kind: notification.KindAdminNewOrder, Order: order})
	case model.OrderStatusShipped:
		h.worker.Enqueue(notification.Task{Kind: notification.KindShippingConfirmation, Order: order})
	default:
		h.worker.Enqueue(notification.Task{Kind: notification.KindStatusUpdate, Order: order})
	}
	return nil
}
