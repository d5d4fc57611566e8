package client

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"storefront-backend/internal/config"
	"storefront-backend/internal/model"
)

const ProviderVipps = "vipps"

const (
	// tokens within this margin of expiry are treated as stale so a
	// request never goes out with a token about to die mid-flight
	tokenExpiryMargin = 60 * time.Second
	// used when the provider returns an unparseable expires_on
	fallbackTokenTTL = 15 * time.Minute
)

// accessToken is an immutable snapshot, replaced atomically on refresh
// and never mutated in place.
type accessToken struct {
	token     string
	expiresAt time.Time
}

type VippsClient struct {
	httpClient           *http.Client
	baseApiURL           string
	clientID             string
	clientSecret         string
	subscriptionKey      string
	merchantSerialNumber string
	webhookSecret        string

	token   atomic.Pointer[accessToken]
	refresh singleflight.Group
}

func NewVippsClient(vippsCfg *config.Vipps) *VippsClient {
	return &VippsClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL:           vippsCfg.BaseApiURL,
		clientID:             vippsCfg.ClientID,
		clientSecret:         vippsCfg.ClientSecret,
		subscriptionKey:      vippsCfg.SubscriptionKey,
		merchantSerialNumber: vippsCfg.MerchantSerialNumber,
		webhookSecret:        vippsCfg.WebhookSecret,
	}
}

func (c *VippsClient) Name() string {
	return ProviderVipps
}

// GetAccessToken returns the cached bearer token, refreshing it when
// absent or within the expiry safety margin. Reads are lock-free; at
// most one refresh request is in flight regardless of caller count.
func (c *VippsClient) GetAccessToken(ctx context.Context) (string, error) {
	if t := c.token.Load(); t != nil && time.Until(t.expiresAt) > tokenExpiryMargin {
		return t.token, nil
	}

	v, err, _ := c.refresh.Do("access-token", func() (interface{}, error) {
		// re-check: a concurrent caller may have refreshed while we
		// waited on the flight
		if t := c.token.Load(); t != nil && time.Until(t.expiresAt) > tokenExpiryMargin {
			return t.token, nil
		}
		t, err := c.fetchAccessToken(ctx)
		if err != nil {
			return nil, err
		}
		c.token.Store(t)
		return t.token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// RunTokenRefresher refreshes the token on a fixed interval so callers
// on the request path rarely observe a cold cache.
func (c *VippsClient) RunTokenRefresher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Println("vipps token refresher started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.GetAccessToken(ctx); err != nil {
				log.Printf("background token refresh failed: %v", err)
			}
		}
	}
}

func (c *VippsClient) fetchAccessToken(ctx context.Context) (*accessToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+"/accesstoken/get", nil)
	if err != nil {
		return nil, &PaymentProcessingError{Provider: ProviderVipps, Op: "token request", Err: err}
	}
	req.Header.Set("client_id", c.clientID)
	req.Header.Set("client_secret", c.clientSecret)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)
	req.Header.Set("Merchant-Serial-Number", c.merchantSerialNumber)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &PaymentProcessingError{Provider: ProviderVipps, Op: "token request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, &PaymentProcessingError{
			Provider: ProviderVipps,
			Op:       "token request",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(b)),
		}
	}

	var res struct {
		AccessToken string `json:"access_token"`
		ExpiresOn   string `json:"expires_on"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, &PaymentProcessingError{Provider: ProviderVipps, Op: "decode token response", Err: err}
	}
	if res.AccessToken == "" {
		return nil, &PaymentProcessingError{
			Provider: ProviderVipps,
			Op:       "decode token response",
			Err:      fmt.Errorf("empty access_token"),
		}
	}

	return &accessToken{
		token:     res.AccessToken,
		expiresAt: parseExpiresOn(res.ExpiresOn),
	}, nil
}

// expires_on is a unix-epoch-seconds string. A malformed value falls
// back to a conservative fixed TTL instead of failing the fetch.
func parseExpiresOn(s string) time.Time {
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil || secs <= 0 {
		return time.Now().Add(fallbackTokenTTL)
	}
	return time.Unix(secs, 0)
}

func (c *VippsClient) CreatePayment(ctx context.Context, payment *model.Payment) (string, error) {
	token, err := c.GetAccessToken(ctx)
	if err != nil {
		return "", err
	}

	reference := payment.PaymentID
	payload := map[string]interface{}{
		"amount": map[string]interface{}{
			"currency": payment.Currency,
			"value":    minorUnits(payment.Amount),
		},
		"paymentMethod": map[string]string{
			"type": "WALLET",
		},
		"reference": reference,
		"userFlow":  "WEB_REDIRECT",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payment payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/epayment/v1/payments", bytes.NewBuffer(body))
	if err != nil {
		return "", &PaymentProcessingError{Provider: ProviderVipps, Op: "create payment", Err: err}
	}
	c.setAuthHeaders(req, token)
	req.Header.Set("Idempotency-Key", payment.PaymentID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &PaymentProcessingError{Provider: ProviderVipps, Op: "create payment", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", &PaymentProcessingError{
			Provider: ProviderVipps,
			Op:       "create payment",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(b)),
		}
	}

	var res struct {
		Reference   string `json:"reference"`
		RedirectURL string `json:"redirectUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", &PaymentProcessingError{Provider: ProviderVipps, Op: "decode payment response", Err: err}
	}
	if res.Reference == "" {
		res.Reference = reference
	}
	return res.Reference, nil
}

func (c *VippsClient) CancelPayment(ctx context.Context, providerReference string) error {
	token, err := c.GetAccessToken(ctx)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/epayment/v1/payments/%s/cancel", c.baseApiURL, providerReference)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return &PaymentProcessingError{Provider: ProviderVipps, Op: "cancel payment", Err: err}
	}
	c.setAuthHeaders(req, token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &PaymentProcessingError{Provider: ProviderVipps, Op: "cancel payment", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &PaymentProcessingError{
			Provider: ProviderVipps,
			Op:       "cancel payment",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(b)),
		}
	}
	return nil
}

// AuthenticateWebhook verifies the HMAC scheme the provider signs
// callbacks with: the body hash travels in x-ms-content-sha256 and the
// authorization header carries an HMAC-SHA256 over the date and that
// hash. Any mismatch is a terminal rejection.
func (c *VippsClient) AuthenticateWebhook(headers http.Header, body []byte) error {
	contentHash := headers.Get("x-ms-content-sha256")
	date := headers.Get("x-ms-date")
	auth := headers.Get("authorization")
	if contentHash == "" || date == "" || auth == "" {
		return fmt.Errorf("missing webhook authentication headers")
	}

	sum := sha256.Sum256(body)
	expectedHash := base64.StdEncoding.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(expectedHash), []byte(contentHash)) != 1 {
		return fmt.Errorf("webhook content hash mismatch")
	}

	expectedAuth := signWebhook(c.webhookSecret, date, contentHash)
	if !hmac.Equal([]byte(expectedAuth), []byte(auth)) {
		return fmt.Errorf("webhook signature mismatch")
	}
	return nil
}

func signWebhook(secret, date, contentHash string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(date + "\n" + contentHash))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return "HMAC-SHA256 SignedHeaders=x-ms-date;x-ms-content-sha256&Signature=" + signature
}

type vippsWebhookEvent struct {
	MSN          string    `json:"msn"`
	Reference    string    `json:"reference"`
	PspReference string    `json:"pspReference"`
	Name         string    `json:"name"`
	Success      bool      `json:"success"`
	Reason       string    `json:"reason"`
	Timestamp    time.Time `json:"timestamp"`
}

func (c *VippsClient) ParseWebhook(body []byte) (*WebhookPayload, error) {
	var ev vippsWebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}
	return &WebhookPayload{
		EventType:     ev.Name,
		Reference:     ev.Reference,
		TransactionID: ev.PspReference,
		Timestamp:     ev.Timestamp,
		Success:       ev.Success,
		Reason:        ev.Reason,
		Valid:         ev.Name != "" && ev.Reference != "",
	}, nil
}

func (c *VippsClient) RegisterWebhook(ctx context.Context, callbackURL string) (string, error) {
	token, err := c.GetAccessToken(ctx)
	if err != nil {
		return "", err
	}

	payload := map[string]interface{}{
		"url": callbackURL,
		"events": []string{
			"epayments.payment.authorized.v1",
			"epayments.payment.captured.v1",
			"epayments.payment.cancelled.v1",
			"epayments.payment.expired.v1",
			"epayments.payment.terminated.v1",
			"epayments.payment.failed.v1",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal webhook registration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/webhooks/v1/webhooks", bytes.NewBuffer(body))
	if err != nil {
		return "", &PaymentProcessingError{Provider: ProviderVipps, Op: "register webhook", Err: err}
	}
	c.setAuthHeaders(req, token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &PaymentProcessingError{Provider: ProviderVipps, Op: "register webhook", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", &PaymentProcessingError{
			Provider: ProviderVipps,
			Op:       "register webhook",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(b)),
		}
	}

	var res struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", &PaymentProcessingError{Provider: ProviderVipps, Op: "decode webhook registration", Err: err}
	}
	return res.ID, nil
}

func (c *VippsClient) DeleteWebhook(ctx context.Context, webhookID string) error {
	token, err := c.GetAccessToken(ctx)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/webhooks/v1/webhooks/%s", c.baseApiURL, webhookID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return &PaymentProcessingError{Provider: ProviderVipps, Op: "delete webhook", Err: err}
	}
	c.setAuthHeaders(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &PaymentProcessingError{Provider: ProviderVipps, Op: "delete webhook", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &PaymentProcessingError{
			Provider: ProviderVipps,
			Op:       "delete webhook",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(b)),
		}
	}
	return nil
}

func (c *VippsClient) setAuthHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)
	req.Header.Set("Merchant-Serial-Number", c.merchantSerialNumber)
}

func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).IntPart()
}
