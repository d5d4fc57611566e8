package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storefront-backend/internal/dto"
	"storefront-backend/internal/event"
	"storefront-backend/internal/model"
	"storefront-backend/internal/repository"
)

type OrderService interface {
	CreateOrder(ctx context.Context, req *dto.CreateOrderRequest) (*model.Order, error)
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	// UpdateStatus moves the order to target via the state machine. A
	// redelivered change whose target equals the current status is a
	// success no-op, which keeps the cross-aggregate handlers
	// idempotent.
	UpdateStatus(ctx context.Context, orderID string, target model.OrderStatus) error
	CancelOrder(ctx context.Context, orderID string) error
	MarkShipped(ctx context.Context, orderID string) error
	OrderEvents(ctx context.Context, orderID string) ([]model.DomainEvent, error)
}

type orderServiceImpl struct {
	db        *gorm.DB
	orderRepo repository.OrderRepository
	publisher *event.Publisher
}

func NewOrderService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	publisher *event.Publisher,
) OrderService {
	return &orderServiceImpl{
		db:        db,
		orderRepo: orderRepo,
		publisher: publisher,
	}
}

func (s *orderServiceImpl) CreateOrder(ctx context.Context, req *dto.CreateOrderRequest) (*model.Order, error) {
	verr := &model.ValidationError{}
	lines := make([]model.OrderLine, 0, len(req.Lines))
	for i, l := range req.Lines {
		unitPrice, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			verr.Add(fmt.Sprintf("lines[%d].unit_price", i), "not a valid amount")
			unitPrice = decimal.Zero
		}
		lines = append(lines, model.OrderLine{
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Quantity:  l.Quantity,
			UnitPrice: unitPrice,
			Currency:  req.Currency,
		})
	}
	if verr.HasViolations() {
		return nil, verr
	}

	order, err := model.NewOrder(
		req.CustomerName,
		req.CustomerEmail,
		req.ShippingAddress,
		req.BillingAddress,
		req.Currency,
		lines,
	)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.orderRepo.Create(ctx, tx, order)
	})
	if err != nil {
		return nil, fmt.Errorf("store order: %w", err)
	}

	if err := s.publisher.PublishAll(ctx, order.PullEvents()); err != nil {
		return order, err
	}
	return order, nil
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	return s.orderRepo.FindByOrderID(ctx, orderID)
}

func (s *orderServiceImpl) UpdateStatus(ctx context.Context, orderID string, target model.OrderStatus) error {
	order, err := s.orderRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == target {
		return nil
	}
	if err := order.UpdateStatus(target); err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.orderRepo.UpdateStatus(ctx, tx, order)
	})
	if err != nil {
		return fmt.Errorf("store order status: %w", err)
	}

	return s.publisher.PublishAll(ctx, order.PullEvents())
}

func (s *orderServiceImpl) CancelOrder(ctx context.Context, orderID string) error {
	return s.UpdateStatus(ctx, orderID, model.OrderStatusCancelled)
}

func (s *orderServiceImpl) MarkShipped(ctx context.Context, orderID string) error {
	return s.UpdateStatus(ctx, orderID, model.OrderStatusShipped)
}

func (s *orderServiceImpl) OrderEvents(ctx context.Context, orderID string) ([]model.DomainEvent, error) {
	if _, err := s.orderRepo.FindByOrderID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.publisher.Store().EventsFor(ctx, orderID, model.AggregateTypeOrder)
}
