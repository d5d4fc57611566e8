package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"storefront-backend/internal/model"
)

var ErrProviderNotFound = errors.New("payment provider not registered")

// PaymentProcessingError wraps a failure while talking to a payment
// provider. It is never converted into a domain state change and never
// retried by the client itself; the caller decides what to do.
type PaymentProcessingError struct {
	Provider string
	Op       string
	Err      error
}

func (e *PaymentProcessingError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *PaymentProcessingError) Unwrap() error {
	return e.Err
}

// WebhookPayload is the normalized form of an inbound provider callback.
// It is built fresh per callback and never persisted; only the state
// transition it causes is.
type WebhookPayload struct {
	EventType     string
	Reference     string
	TransactionID string
	Timestamp     time.Time
	Success       bool
	Reason        string
	Valid         bool
}

func (p *WebhookPayload) IsValid() bool {
	return p != nil && p.Valid
}

// PaymentProvider is the capability contract one concrete provider
// integration has to satisfy.
type PaymentProvider interface {
	Name() string
	// CreatePayment asks the provider to start a payment attempt and
	// returns the provider's reference for it.
	CreatePayment(ctx context.Context, payment *model.Payment) (string, error)
	CancelPayment(ctx context.Context, providerReference string) error
	// AuthenticateWebhook verifies the signature headers of an inbound
	// callback before anything else looks at it.
	AuthenticateWebhook(headers http.Header, body []byte) error
	ParseWebhook(body []byte) (*WebhookPayload, error)
	RegisterWebhook(ctx context.Context, callbackURL string) (string, error)
	DeleteWebhook(ctx context.Context, webhookID string) error
}

// ProviderRegistry resolves a provider-name tag to its integration.
type ProviderRegistry struct {
	providers map[string]PaymentProvider
}

func NewProviderRegistry(providers ...PaymentProvider) *ProviderRegistry {
	r := &ProviderRegistry{providers: make(map[string]PaymentProvider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *ProviderRegistry) Get(name string) (PaymentProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return p, nil
}
