package notification

import (
	"context"
	"log"

	"storefront-backend/internal/model"
)

// Notifier sends customer and operator notifications. Calls are
// fire-and-forget from the async worker; a failure is logged, never
// retried, and never affects the state transition that triggered it.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, order *model.Order) error
	SendShippingConfirmation(ctx context.Context, order *model.Order) error
	SendOrderStatusUpdate(ctx context.Context, order *model.Order) error
	NotifyAdminNewOrder(ctx context.Context, order *model.Order) error
}

type logNotifier struct{}

// NewLogNotifier returns a Notifier that only logs. Mail delivery is an
// external collaborator swapped in at wiring time.
func NewLogNotifier() Notifier {
	return &logNotifier{}
}

func (n *logNotifier) SendOrderConfirmation(ctx context.Context, order *model.Order) error {
	log.Printf("notify %s: order %s confirmed, total %s", order.CustomerEmail, order.OrderID, order.Total())
	return nil
}

func (n *logNotifier) SendShippingConfirmation(ctx context.Context, order *model.Order) error {
	log.Printf("notify %s: order %s shipped", order.CustomerEmail, order.OrderID)
	return nil
}

func (n *logNotifier) SendOrderStatusUpdate(ctx context.Context, order *model.Order) error {
	log.Printf("notify %s: order %s is now %s", order.CustomerEmail, order.OrderID, order.Status)
	return nil
}

func (n *logNotifier) NotifyAdminNewOrder(ctx context.Context, order *model.Order) error {
	log.Printf("notify admin: new paid order %s, total %s", order.OrderID, order.Total())
	return nil
}
