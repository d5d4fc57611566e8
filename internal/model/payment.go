package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FailureReason classifies why a payment attempt failed. The order
// reaction differs per class: hard failures fail the order, while an
// expired or terminated attempt means the customer walked away.
type FailureReason string

const (
	FailureReasonFunds      FailureReason = "insufficient_funds"
	FailureReasonMethod     FailureReason = "payment_method"
	FailureReasonProcessing FailureReason = "processing_error"
	FailureReasonProvider   FailureReason = "provider_error"
	FailureReasonExpired    FailureReason = "expired"
	FailureReasonTerminated FailureReason = "terminated"
	FailureReasonUnknown    FailureReason = "unknown"
)

// Payment is one payment attempt against an order. The provider
// reference correlates inbound webhooks back to this row; the
// transaction id is set once the provider captured the amount.
type Payment struct {
	PaymentID         string          `gorm:"primaryKey;size:64;not null"`
	OrderID           string          `gorm:"size:64;index;not null"`
	Status            PaymentStatus   `gorm:"size:32;index;not null"`
	Amount            decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency          string          `gorm:"size:8;not null"`
	Provider          string          `gorm:"size:32;not null"`
	ProviderReference string          `gorm:"size:128;index"`
	TransactionID     string          `gorm:"size:128"`
	CreatedAt         time.Time
	UpdatedAt         time.Time

	pendingEvents []DomainEvent
}

func NewPayment(order *Order, provider string) *Payment {
	now := time.Now().UTC()
	p := &Payment{
		PaymentID: uuid.NewString(),
		OrderID:   order.OrderID,
		Status:    PaymentStatusPending,
		Amount:    order.TotalAmount,
		Currency:  order.Currency,
		Provider:  provider,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.recordEvent(&PaymentCreated{
		BaseEvent: newBaseEvent(),
		PaymentID: p.PaymentID,
		OrderID:   p.OrderID,
		Amount:    p.Amount,
		Currency:  p.Currency,
	})
	return p
}

func (p *Payment) Total() Money {
	return NewMoney(p.Amount, p.Currency)
}

// SetProviderReference records the provider's identifier for this
// attempt, assigned once the provider accepted the initiation request.
func (p *Payment) SetProviderReference(reference string) {
	p.ProviderReference = reference
	p.UpdatedAt = time.Now().UTC()
}

// UpdateStatus applies a transition from the payment state machine.
// A payment that the provider never acknowledged cannot be reserved or
// captured.
func (p *Payment) UpdateStatus(target PaymentStatus) error {
	if (target == PaymentStatusReserved || target == PaymentStatusCaptured) && p.ProviderReference == "" {
		return fmt.Errorf("payment %s has no provider reference, cannot transition to %s", p.PaymentID, target)
	}
	if !p.Status.CanTransitionTo(target) {
		return &InvalidStateTransitionError{
			AggregateType: AggregateTypePayment,
			AggregateID:   p.PaymentID,
			Current:       string(p.Status),
			Target:        string(target),
		}
	}
	old := p.Status
	now := time.Now().UTC()
	p.Status = target
	p.UpdatedAt = now
	p.recordEvent(&PaymentStatusChanged{
		BaseEvent: newBaseEvent(),
		PaymentID: p.PaymentID,
		OrderID:   p.OrderID,
		OldStatus: old,
		NewStatus: target,
		ChangedAt: now,
	})
	return nil
}

func (p *Payment) Reserve() error {
	if err := p.UpdateStatus(PaymentStatusReserved); err != nil {
		return err
	}
	p.recordEvent(&PaymentReserved{
		BaseEvent:         newBaseEvent(),
		PaymentID:         p.PaymentID,
		OrderID:           p.OrderID,
		ProviderReference: p.ProviderReference,
	})
	return nil
}

func (p *Payment) Capture(transactionID string) error {
	if err := p.UpdateStatus(PaymentStatusCaptured); err != nil {
		return err
	}
	p.TransactionID = transactionID
	p.recordEvent(&PaymentCaptured{
		BaseEvent:     newBaseEvent(),
		PaymentID:     p.PaymentID,
		OrderID:       p.OrderID,
		TransactionID: transactionID,
	})
	return nil
}

func (p *Payment) Cancel() error {
	if err := p.UpdateStatus(PaymentStatusCancelled); err != nil {
		return err
	}
	p.recordEvent(&PaymentCancelled{
		BaseEvent: newBaseEvent(),
		PaymentID: p.PaymentID,
		OrderID:   p.OrderID,
	})
	return nil
}

func (p *Payment) Fail(reason FailureReason) error {
	if err := p.UpdateStatus(PaymentStatusFailed); err != nil {
		return err
	}
	p.recordEvent(&PaymentFailed{
		BaseEvent: newBaseEvent(),
		PaymentID: p.PaymentID,
		OrderID:   p.OrderID,
		Reason:    reason,
	})
	return nil
}

// Expire marks an attempt the customer never completed. It carries the
// expired failure reason so the order side can file it as abandoned.
func (p *Payment) Expire() error {
	if err := p.UpdateStatus(PaymentStatusExpired); err != nil {
		return err
	}
	p.recordEvent(&PaymentFailed{
		BaseEvent: newBaseEvent(),
		PaymentID: p.PaymentID,
		OrderID:   p.OrderID,
		Reason:    FailureReasonExpired,
	})
	return nil
}

func (p *Payment) recordEvent(e DomainEvent) {
	p.pendingEvents = append(p.pendingEvents, e)
}

// PullEvents drains the not-yet-published events in generation order.
func (p *Payment) PullEvents() []DomainEvent {
	events := p.pendingEvents
	p.pendingEvents = nil
	return events
}
