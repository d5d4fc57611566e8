package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AggregateTypeOrder   = "Order"
	AggregateTypePayment = "Payment"
)

const (
	EventTypeOrderCreated         = "OrderCreated"
	EventTypeOrderStatusChanged   = "OrderStatusChanged"
	EventTypePaymentCreated       = "PaymentCreated"
	EventTypePaymentStatusChanged = "PaymentStatusChanged"
	EventTypePaymentReserved      = "PaymentReserved"
	EventTypePaymentCaptured      = "PaymentCaptured"
	EventTypePaymentCancelled     = "PaymentCancelled"
	EventTypePaymentFailed        = "PaymentFailed"
)

// DomainEvent is an immutable fact recorded by an aggregate. Every event
// names its owning aggregate itself; nothing is inferred from payload
// field names.
type DomainEvent interface {
	EventID() string
	EventType() string
	OccurredAt() time.Time
	Version() int
	AggregateID() string
	AggregateType() string
}

type BaseEvent struct {
	ID           string    `json:"event_id"`
	Occurred     time.Time `json:"occurred_at"`
	EventVersion int       `json:"version"`
}

func newBaseEvent() BaseEvent {
	return BaseEvent{
		ID:           uuid.NewString(),
		Occurred:     time.Now().UTC(),
		EventVersion: 1,
	}
}

func (e BaseEvent) EventID() string       { return e.ID }
func (e BaseEvent) OccurredAt() time.Time { return e.Occurred }
func (e BaseEvent) Version() int          { return e.EventVersion }

type OrderCreated struct {
	BaseEvent
	OrderID  string          `json:"order_id"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

func (e *OrderCreated) EventType() string     { return EventTypeOrderCreated }
func (e *OrderCreated) AggregateID() string   { return e.OrderID }
func (e *OrderCreated) AggregateType() string { return AggregateTypeOrder }

type OrderStatusChanged struct {
	BaseEvent
	OrderID   string      `json:"order_id"`
	OldStatus OrderStatus `json:"old_status"`
	NewStatus OrderStatus `json:"new_status"`
	ChangedAt time.Time   `json:"changed_at"`
}

func (e *OrderStatusChanged) EventType() string     { return EventTypeOrderStatusChanged }
func (e *OrderStatusChanged) AggregateID() string   { return e.OrderID }
func (e *OrderStatusChanged) AggregateType() string { return AggregateTypeOrder }

type PaymentCreated struct {
	BaseEvent
	PaymentID string          `json:"payment_id"`
	OrderID   string          `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

func (e *PaymentCreated) EventType() string     { return EventTypePaymentCreated }
func (e *PaymentCreated) AggregateID() string   { return e.PaymentID }
func (e *PaymentCreated) AggregateType() string { return AggregateTypePayment }

type PaymentStatusChanged struct {
	BaseEvent
	PaymentID string        `json:"payment_id"`
	OrderID   string        `json:"order_id"`
	OldStatus PaymentStatus `json:"old_status"`
	NewStatus PaymentStatus `json:"new_status"`
	ChangedAt time.Time     `json:"changed_at"`
}

func (e *PaymentStatusChanged) EventType() string     { return EventTypePaymentStatusChanged }
func (e *PaymentStatusChanged) AggregateID() string   { return e.PaymentID }
func (e *PaymentStatusChanged) AggregateType() string { return AggregateTypePayment }

type PaymentReserved struct {
	BaseEvent
	PaymentID         string `json:"payment_id"`
	OrderID           string `json:"order_id"`
	ProviderReference string `json:"provider_reference"`
}

func (e *PaymentReserved) EventType() string     { return EventTypePaymentReserved }
func (e *PaymentReserved) AggregateID() string   { return e.PaymentID }
func (e *PaymentReserved) AggregateType() string { return AggregateTypePayment }

type PaymentCaptured struct {
	BaseEvent
	PaymentID     string `json:"payment_id"`
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
}

func (e *PaymentCaptured) EventType() string     { return EventTypePaymentCaptured }
func (e *PaymentCaptured) AggregateID() string   { return e.PaymentID }
func (e *PaymentCaptured) AggregateType() string { return AggregateTypePayment }

type PaymentCancelled struct {
	BaseEvent
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
}

func (e *PaymentCancelled) EventType() string     { return EventTypePaymentCancelled }
func (e *PaymentCancelled) AggregateID() string   { return e.PaymentID }
func (e *PaymentCancelled) AggregateType() string { return AggregateTypePayment }

type PaymentFailed struct {
	BaseEvent
	PaymentID string        `json:"payment_id"`
	OrderID   string        `json:"order_id"`
	Reason    FailureReason `json:"reason"`
}

func (e *PaymentFailed) EventType() string     { return EventTypePaymentFailed }
func (e *PaymentFailed) AggregateID() string   { return e.PaymentID }
func (e *PaymentFailed) AggregateType() string { return AggregateTypePayment }
