package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"storefront-backend/internal/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error
	FindByPaymentID(ctx context.Context, paymentID string) (*model.Payment, error)
	FindByProviderReference(ctx context.Context, reference string) (*model.Payment, error)
	FindActiveByOrderID(ctx context.Context, orderID string) (*model.Payment, error)
	Update(ctx context.Context, tx *gorm.DB, payment *model.Payment) error
}

type paymentRepoImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepoImpl{db: db}
}

func (r *paymentRepoImpl) Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	return tx.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepoImpl) FindByPaymentID(ctx context.Context, paymentID string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepoImpl) FindByProviderReference(ctx context.Context, reference string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("provider_reference = ?", reference).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindActiveByOrderID returns the one non-terminal payment attempt for
// an order, if any. The single-active-attempt rule is enforced by the
// payment service, not by the schema.
func (r *paymentRepoImpl) FindActiveByOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	active := []model.PaymentStatus{
		model.PaymentStatusPending,
		model.PaymentStatusReserved,
		model.PaymentStatusCaptured,
		model.PaymentStatusPartiallyRefunded,
	}

	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID, active).
		Order("created_at desc").
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// Update persists the mutable payment fields. A write that matches no
// row (deleted or concurrently replaced) is surfaced as not found so the
// caller never assumes the save succeeded.
func (r *paymentRepoImpl) Update(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	result := tx.WithContext(ctx).Model(&model.Payment{}).
		Where("payment_id = ?", payment.PaymentID).
		Updates(map[string]interface{}{
			"status":             payment.Status,
			"provider_reference": payment.ProviderReference,
			"transaction_id":     payment.TransactionID,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.ErrPaymentNotFound
	}
	return nil
}
