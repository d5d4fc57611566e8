package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is the customer-facing aggregate. The customer and address
// fields are a snapshot taken at creation and never refreshed from the
// account that placed the order.
type Order struct {
	OrderID         string          `gorm:"primaryKey;size:64;not null"`
	Status          OrderStatus     `gorm:"size:32;index;not null"`
	CustomerName    string          `gorm:"size:128;not null"`
	CustomerEmail   string          `gorm:"size:128;not null"`
	ShippingAddress string          `gorm:"size:255"`
	BillingAddress  string          `gorm:"size:255"`
	Currency        string          `gorm:"size:8;not null"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Lines           []OrderLine     `gorm:"foreignKey:OrderID"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	pendingEvents []DomainEvent
}

type OrderLine struct {
	ID        uint            `gorm:"primaryKey"`
	OrderID   string          `gorm:"size:64;index;not null"`
	ProductID string          `gorm:"size:64;not null"`
	VariantID string          `gorm:"size:64"`
	Quantity  int32           `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency  string          `gorm:"size:8;not null"`
	CreatedAt time.Time
}

// Total is the line total: unit price times quantity.
func (l *OrderLine) Total() Money {
	return NewMoney(l.UnitPrice, l.Currency).MulInt(l.Quantity)
}

// NewOrder validates the command and builds a PENDING order whose total
// is the sum of its line totals. All violations are reported together.
func NewOrder(customerName, customerEmail, shippingAddress, billingAddress, currency string, lines []OrderLine) (*Order, error) {
	verr := &ValidationError{}
	if customerName == "" {
		verr.Add("customer_name", "required")
	}
	if customerEmail == "" {
		verr.Add("customer_email", "required")
	}
	if currency == "" {
		verr.Add("currency", "required")
	}
	if len(lines) == 0 {
		verr.Add("lines", "at least one order line required")
	}

	total := decimal.Zero
	for i := range lines {
		field := fmt.Sprintf("lines[%d]", i)
		if lines[i].ProductID == "" {
			verr.Add(field+".product_id", "required")
		}
		if lines[i].Quantity <= 0 {
			verr.Add(field+".quantity", "must be positive")
		}
		if lines[i].UnitPrice.IsNegative() {
			verr.Add(field+".unit_price", "must not be negative")
		}
		if lines[i].Currency != currency {
			verr.Add(field+".currency", "does not match order currency")
		}
		total = total.Add(lines[i].Total().Amount)
	}
	if verr.HasViolations() {
		return nil, verr
	}

	now := time.Now().UTC()
	o := &Order{
		OrderID:         uuid.NewString(),
		Status:          OrderStatusPending,
		CustomerName:    customerName,
		CustomerEmail:   customerEmail,
		ShippingAddress: shippingAddress,
		BillingAddress:  billingAddress,
		Currency:        currency,
		TotalAmount:     total,
		Lines:           lines,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for i := range o.Lines {
		o.Lines[i].OrderID = o.OrderID
	}
	o.recordEvent(&OrderCreated{
		BaseEvent: newBaseEvent(),
		OrderID:   o.OrderID,
		Total:     total,
		Currency:  currency,
	})
	return o, nil
}

func (o *Order) Total() Money {
	return NewMoney(o.TotalAmount, o.Currency)
}

// UpdateStatus applies a transition from the order state machine. An
// illegal transition leaves the status untouched and reports the
// attempted change.
func (o *Order) UpdateStatus(target OrderStatus) error {
	if !o.Status.CanTransitionTo(target) {
		return &InvalidStateTransitionError{
			AggregateType: AggregateTypeOrder,
			AggregateID:   o.OrderID,
			Current:       string(o.Status),
			Target:        string(target),
		}
	}
	old := o.Status
	now := time.Now().UTC()
	o.Status = target
	o.UpdatedAt = now
	o.recordEvent(&OrderStatusChanged{
		BaseEvent: newBaseEvent(),
		OrderID:   o.OrderID,
		OldStatus: old,
		NewStatus: target,
		ChangedAt: now,
	})
	return nil
}

func (o *Order) recordEvent(e DomainEvent) {
	o.pendingEvents = append(o.pendingEvents, e)
}

// PullEvents drains the not-yet-published events in generation order.
func (o *Order) PullEvents() []DomainEvent {
	events := o.pendingEvents
	o.pendingEvents = nil
	return events
}
