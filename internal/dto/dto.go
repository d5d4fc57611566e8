package dto

import "time"

type OrderLineRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type CreateOrderRequest struct {
	CustomerName    string             `json:"customer_name"`
	CustomerEmail   string             `json:"customer_email"`
	ShippingAddress string             `json:"shipping_address"`
	BillingAddress  string             `json:"billing_address"`
	Currency        string             `json:"currency"`
	Lines           []OrderLineRequest `json:"lines"`
}

type OrderResponse struct {
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

type PaymentResponse struct {
	PaymentID         string `json:"payment_id"`
	OrderID           string `json:"order_id"`
	Status            string `json:"status"`
	ProviderReference string `json:"provider_reference,omitempty"`
}

type OrderEventView struct {
	EventID    string      `json:"event_id"`
	EventType  string      `json:"event_type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

type RegisterWebhookRequest struct {
	CallbackURL string `json:"callback_url"`
}

type RegisterWebhookResponse struct {
	WebhookID string `json:"webhook_id"`
}

type ErrorBody struct {
	Code string `json:"code"`
}

// WebhookErrorResponse is the fixed envelope returned for any webhook
// failure, regardless of cause.
type WebhookErrorResponse struct {
	Status string    `json:"status"`
	Error  ErrorBody `json:"error"`
}
