package model

import "fmt"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusFailed    OrderStatus = "FAILED"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
	OrderStatusReturned  OrderStatus = "RETURNED"
	OrderStatusAbandoned OrderStatus = "ABANDONED"
)

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "PENDING"
	PaymentStatusReserved          PaymentStatus = "RESERVED"
	PaymentStatusCaptured          PaymentStatus = "CAPTURED"
	PaymentStatusFailed            PaymentStatus = "FAILED"
	PaymentStatusCancelled         PaymentStatus = "CANCELLED"
	PaymentStatusRefunded          PaymentStatus = "REFUNDED"
	PaymentStatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
	PaymentStatusExpired           PaymentStatus = "EXPIRED"
	PaymentStatusTerminated        PaymentStatus = "TERMINATED"
)

var allOrderStatuses = []OrderStatus{
	OrderStatusPending, OrderStatusPaid, OrderStatusShipped,
	OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed,
	OrderStatusRefunded, OrderStatusReturned, OrderStatusAbandoned,
}

var allPaymentStatuses = []PaymentStatus{
	PaymentStatusPending, PaymentStatusReserved, PaymentStatusCaptured,
	PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded,
	PaymentStatusPartiallyRefunded, PaymentStatusExpired, PaymentStatusTerminated,
}

// orderTransitions is the authoritative order lifecycle. Every status of
// the closed set must have an entry; an empty entry marks a terminal
// status.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPaid, OrderStatusCancelled, OrderStatusFailed, OrderStatusAbandoned},
	OrderStatusPaid:      {OrderStatusShipped, OrderStatusCancelled, OrderStatusCompleted, OrderStatusRefunded},
	OrderStatusShipped:   {OrderStatusCompleted, OrderStatusReturned},
	OrderStatusCompleted: {},
	OrderStatusCancelled: {},
	OrderStatusFailed:    {},
	OrderStatusRefunded:  {},
	OrderStatusReturned:  {},
	OrderStatusAbandoned: {},
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:           {PaymentStatusReserved, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusExpired},
	PaymentStatusReserved:          {PaymentStatusCaptured, PaymentStatusCancelled, PaymentStatusFailed},
	PaymentStatusCaptured:          {PaymentStatusRefunded, PaymentStatusPartiallyRefunded},
	PaymentStatusPartiallyRefunded: {PaymentStatusRefunded},
	PaymentStatusFailed:            {},
	PaymentStatusCancelled:         {},
	PaymentStatusRefunded:          {},
	PaymentStatusExpired:           {},
	PaymentStatusTerminated:        {},
}

// A status missing from its table is a programming error, caught at
// process start rather than on first lookup.
func init() {
	for _, s := range allOrderStatuses {
		if _, ok := orderTransitions[s]; !ok {
			panic(fmt.Sprintf("order status %s missing from transition table", s))
		}
	}
	for _, s := range allPaymentStatuses {
		if _, ok := paymentTransitions[s]; !ok {
			panic(fmt.Sprintf("payment status %s missing from transition table", s))
		}
	}
}

func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

func (s OrderStatus) ValidTransitions() []OrderStatus {
	return orderTransitions[s]
}

func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	for _, next := range paymentTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

func (s PaymentStatus) ValidTransitions() []PaymentStatus {
	return paymentTransitions[s]
}

func (s PaymentStatus) IsTerminal() bool {
	return len(paymentTransitions[s]) == 0
}
