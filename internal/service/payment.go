package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"storefront-backend/internal/client"
	"storefront-backend/internal/event"
	"storefront-backend/internal/model"
	"storefront-backend/internal/repository"
)

type PaymentService interface {
	// InitiatePayment creates the single active payment attempt for an
	// order and asks the provider to start it. If the provider call
	// fails the payment stays PENDING without a reference and can be
	// retried or expired later.
	InitiatePayment(ctx context.Context, orderID, providerName string) (*model.Payment, error)
	HandleWebhook(ctx context.Context, providerName string, headers http.Header, body []byte) error
	RegisterWebhook(ctx context.Context, providerName, callbackURL string) (string, error)
	DeleteWebhook(ctx context.Context, providerName, webhookID string) error
}

type paymentServiceImpl struct {
	db          *gorm.DB
	providers   *client.ProviderRegistry
	orderRepo   repository.OrderRepository
	paymentRepo repository.PaymentRepository
	publisher   *event.Publisher
}

func NewPaymentService(
	db *gorm.DB,
	providers *client.ProviderRegistry,
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	publisher *event.Publisher,
) PaymentService {
	return &paymentServiceImpl{
		db:          db,
		providers:   providers,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		publisher:   publisher,
	}
}

func (s *paymentServiceImpl) InitiatePayment(ctx context.Context, orderID, providerName string) (*model.Payment, error) {
	provider, err := s.providers.Get(providerName)
	if err != nil {
		return nil, err
	}

	order, err := s.orderRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusPending {
		return nil, fmt.Errorf("order %s is %s, not open for payment", orderID, order.Status)
	}

	if existing, err := s.paymentRepo.FindActiveByOrderID(ctx, orderID); err == nil {
		return nil, fmt.Errorf("order %s already has active payment %s", orderID, existing.PaymentID)
	} else if !errors.Is(err, model.ErrPaymentNotFound) {
		return nil, err
	}

	payment := model.NewPayment(order, provider.Name())
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.paymentRepo.Create(ctx, tx, payment)
	})
	if err != nil {
		return nil, fmt.Errorf("store payment: %w", err)
	}
	if err := s.publisher.PublishAll(ctx, payment.PullEvents()); err != nil {
		return nil, err
	}

	reference, err := provider.CreatePayment(ctx, payment)
	if err != nil {
		// payment stays PENDING and retriable; a provider failure is
		// not a declined payment
		return payment, fmt.Errorf("initiate payment with %s: %w", provider.Name(), err)
	}

	payment.SetProviderReference(reference)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.paymentRepo.Update(ctx, tx, payment)
	})
	if err != nil {
		return nil, fmt.Errorf("store provider reference: %w", err)
	}
	return payment, nil
}

// HandleWebhook authenticates and parses an inbound provider callback,
// then applies the reported state to the matching payment. Replays of a
// callback already applied are success no-ops.
func (s *paymentServiceImpl) HandleWebhook(ctx context.Context, providerName string, headers http.Header, body []byte) error {
	provider, err := s.providers.Get(providerName)
	if err != nil {
		return err
	}

	if err := provider.AuthenticateWebhook(headers, body); err != nil {
		return fmt.Errorf("authenticate webhook: %w", err)
	}

	payload, err := provider.ParseWebhook(body)
	if err != nil {
		return fmt.Errorf("parse webhook: %w", err)
	}
	if !payload.IsValid() {
		return fmt.Errorf("invalid webhook payload from %s", providerName)
	}

	payment, err := s.paymentRepo.FindByProviderReference(ctx, payload.Reference)
	if err != nil {
		return fmt.Errorf("resolve webhook reference %s: %w", payload.Reference, err)
	}

	target, apply, ok := mapWebhookEvent(payment, payload)
	if !ok {
		log.Printf("ignoring unhandled %s webhook event %q for payment %s", providerName, payload.EventType, payment.PaymentID)
		return nil
	}

	if payment.Status == target {
		return nil
	}
	if payment.Status.IsTerminal() {
		log.Printf("payment %s already terminal (%s), ignoring %s webhook", payment.PaymentID, payment.Status, payload.EventType)
		return nil
	}

	if err := apply(); err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.paymentRepo.Update(ctx, tx, payment)
	})
	if err != nil {
		return fmt.Errorf("store payment status: %w", err)
	}

	return s.publisher.PublishAll(ctx, payment.PullEvents())
}

// mapWebhookEvent translates a provider event name into the target
// payment status and the aggregate operation that applies it.
func mapWebhookEvent(payment *model.Payment, payload *client.WebhookPayload) (model.PaymentStatus, func() error, bool) {
	switch payload.EventType {
	case "AUTHORIZED":
		return model.PaymentStatusReserved, payment.Reserve, true
	case "CAPTURED":
		return model.PaymentStatusCaptured, func() error {
			return payment.Capture(payload.TransactionID)
		}, true
	case "CANCELLED", "ABORTED":
		return model.PaymentStatusCancelled, payment.Cancel, true
	case "EXPIRED":
		return model.PaymentStatusExpired, payment.Expire, true
	case "TERMINATED":
		return model.PaymentStatusFailed, func() error {
			return payment.Fail(model.FailureReasonTerminated)
		}, true
	case "FAILED":
		reason := normalizeFailureReason(payload.Reason)
		return model.PaymentStatusFailed, func() error {
			return payment.Fail(reason)
		}, true
	default:
		return "", nil, false
	}
}

func normalizeFailureReason(reason string) model.FailureReason {
	r := strings.ToLower(reason)
	switch {
	case strings.Contains(r, "fund"):
		return model.FailureReasonFunds
	case strings.Contains(r, "method") || strings.Contains(r, "card"):
		return model.FailureReasonMethod
	case strings.Contains(r, "process"):
		return model.FailureReasonProcessing
	case strings.Contains(r, "provider") || strings.Contains(r, "gateway"):
		return model.FailureReasonProvider
	case strings.Contains(r, "expire"):
		return model.FailureReasonExpired
	case strings.Contains(r, "terminat"):
		return model.FailureReasonTerminated
	default:
		return model.FailureReasonUnknown
	}
}

func (s *paymentServiceImpl) RegisterWebhook(ctx context.Context, providerName, callbackURL string) (string, error) {
	provider, err := s.providers.Get(providerName)
	if err != nil {
		return "", err
	}
	id, err := provider.RegisterWebhook(ctx, callbackURL)
	if err != nil {
		return "", fmt.Errorf("register webhook with %s: %w", providerName, err)
	}
	return id, nil
}

func (s *paymentServiceImpl) DeleteWebhook(ctx context.Context, providerName, webhookID string) error {
	provider, err := s.providers.Get(providerName)
	if err != nil {
		return err
	}
	if err := provider.DeleteWebhook(ctx, webhookID); err != nil {
		return fmt.Errorf("delete webhook with %s: %w", providerName, err)
	}
	return nil
}
