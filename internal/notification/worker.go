package notification

import (
	"context"
	"fmt"
	"log"

	"storefront-backend/internal/model"
)

type Kind string

const (
	KindOrderConfirmation    Kind = "order_confirmation"
	KindShippingConfirmation Kind = "shipping_confirmation"
	KindStatusUpdate         Kind = "status_update"
	KindAdminNewOrder        Kind = "admin_new_order"
)

// Task is one deferred notification.
type Task struct {
	Kind  Kind
	Order *model.Order
}

// Worker runs notification I/O outside the request path. Event handlers
// enqueue tasks; the worker goroutine drains them after the originating
// use case has already committed and returned.
type Worker struct {
	notifier Notifier
	tasks    chan Task
}

func NewWorker(notifier Notifier, buffer int) *Worker {
	return &Worker{
		notifier: notifier,
		tasks:    make(chan Task, buffer),
	}
}

// Enqueue never blocks the caller. A full queue drops the task with a
// log line; notifications are best-effort by contract.
func (w *Worker) Enqueue(t Task) {
	select {
	case w.tasks <- t:
	default:
		log.Printf("notification queue full, dropping %s for order %s", t.Kind, t.Order.OrderID)
	}
}

func (w *Worker) Run(ctx context.Context) {
	log.Println("notification worker started")

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-w.tasks:
			if err := w.dispatch(ctx, t); err != nil {
				log.Printf("notification %s for order %s failed: %v", t.Kind, t.Order.OrderID, err)
			}
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, t Task) error {
	switch t.Kind {
	case KindOrderConfirmation:
		return w.notifier.SendOrderConfirmation(ctx, t.Order)
	case KindShippingConfirmation:
		return w.notifier.SendShippingConfirmation(ctx, t.Order)
	case KindStatusUpdate:
		return w.notifier.SendOrderStatusUpdate(ctx, t.Order)
	case KindAdminNewOrder:
		return w.notifier.NotifyAdminNewOrder(ctx, t.Order)
	default:
		return fmt.Errorf("unknown notification kind %q", t.Kind)
	}
}
