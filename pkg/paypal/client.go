package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/config"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://api-m.sandbox.paypal.com"
	requestBodyReadLimit  int64 = 2048
	tokenExpirySafetyMargin       = 30 * time.Second
)

var (
	errCredentialsRequired = errors.New("paypal client id and secret are required")
	errWebhookIDRequired   = errors.New("paypal webhook id is required")
)

// Client wraps the PayPal REST APIs used for subscription checkout and webhook verification.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
	webhookID  string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured PayPal base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the PayPal client from the configured credentials.
func NewClient(cfg config.PayPalConfig, opts ...Option) (*Client, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	secret := strings.TrimSpace(cfg.Secret)
	if clientID == "" || secret == "" {
		return nil, errCredentialsRequired
	}

	client := &Client{
		clientID:   clientID,
		secret:     secret,
		webhookID:  strings.TrimSpace(cfg.WebhookID),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	if trimmed := strings.TrimSpace(cfg.BaseURL); trimmed != "" {
		client.baseURL = trimmed
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	return client, nil
}

// Order is the subset of PayPal's order resource the reconciler consumes.
type Order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []Link `json:"links"`
}

// Link is a HATEOAS link returned on PayPal resources.
type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

// ApproveURL returns the buyer approval link on the order, if present.
func (o *Order) ApproveURL() string {
	if o == nil {
		return ""
	}
	for _, link := range o.Links {
		if strings.EqualFold(link.Rel, "approve") || strings.EqualFold(link.Rel, "payer-action") {
			return link.Href
		}
	}
	return ""
}

// CreateOrderRequest describes the order sent to PayPal at checkout.
type CreateOrderRequest struct {
	AmountCents int64
	Currency    string
	ReferenceID string
	Description string
	ReturnURL   string
	CancelURL   string
}

// CreateOrder creates a one-time capture order for a subscription purchase.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paypal client not configured")
	}
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order currency is required")
	}

	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{
			{
				"reference_id": req.ReferenceID,
				"description":  req.Description,
				"amount": map[string]any{
					"currency_code": currency,
					"value":         formatAmount(req.AmountCents),
				},
			},
		},
	}
	if req.ReturnURL != "" || req.CancelURL != "" {
		payload["payment_source"] = map[string]any{
			"paypal": map[string]any{
				"experience_context": map[string]any{
					"return_url": req.ReturnURL,
					"cancel_url": req.CancelURL,
				},
			},
		}
	}

	var order Order
	if err := c.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", payload, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrder fetches the current state of an order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paypal client not configured")
	}
	trimmed := strings.TrimSpace(orderID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order ID is required")
	}

	var order Order
	path := "/v2/checkout/orders/" + url.PathEscape(trimmed)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CaptureOrder captures an approved order and returns its final state.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Order, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paypal client not configured")
	}
	trimmed := strings.TrimSpace(orderID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order ID is required")
	}

	var order Order
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", url.PathEscape(trimmed))
	if err := c.doJSON(ctx, http.MethodPost, path, struct{}{}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// WebhookSignature carries the headers PayPal attaches to webhook deliveries.
type WebhookSignature struct {
	TransmissionID   string
	TransmissionTime string
	TransmissionSig  string
	CertURL          string
	AuthAlgo         string
}

// SignatureFromHeader extracts the verification headers from a webhook request.
func SignatureFromHeader(h http.Header) WebhookSignature {
	return WebhookSignature{
		TransmissionID:   h.Get("Paypal-Transmission-Id"),
		TransmissionTime: h.Get("Paypal-Transmission-Time"),
		TransmissionSig:  h.Get("Paypal-Transmission-Sig"),
		CertURL:          h.Get("Paypal-Cert-Url"),
		AuthAlgo:         h.Get("Paypal-Auth-Algo"),
	}
}

// VerifyWebhookSignature calls PayPal's verification API for the raw webhook body.
// It returns an error with CodeSignature when PayPal reports the signature invalid.
func (c *Client) VerifyWebhookSignature(ctx context.Context, sig WebhookSignature, rawBody []byte) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "paypal client not configured")
	}
	if c.webhookID == "" {
		return errWebhookIDRequired
	}
	if sig.TransmissionID == "" || sig.TransmissionSig == "" {
		return pkgerrors.New(pkgerrors.CodeSignature, "missing paypal transmission headers")
	}

	payload := map[string]any{
		"transmission_id":   sig.TransmissionID,
		"transmission_time": sig.TransmissionTime,
		"transmission_sig":  sig.TransmissionSig,
		"cert_url":          sig.CertURL,
		"auth_algo":         sig.AuthAlgo,
		"webhook_id":        c.webhookID,
		"webhook_event":     json.RawMessage(rawBody),
	}

	var result struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", payload, &result); err != nil {
		return err
	}
	if !strings.EqualFold(result.VerificationStatus, "SUCCESS") {
		return pkgerrors.New(pkgerrors.CodeSignature, "paypal webhook signature verification failed")
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	token, err := c.accessTokenLocked(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal paypal request")
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build paypal request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute paypal request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "paypal request failed")
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paypal response")
	}
	return nil
}

func (c *Client) accessTokenLocked(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := strings.NewReader("grant_type=client_credentials")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("/v1/oauth2/token"), form)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build paypal token request")
	}
	httpReq.SetBasicAuth(c.clientID, c.secret)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute paypal token request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "paypal token request failed")
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paypal token response")
	}
	if tokenResp.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "paypal token response missing access token")
	}

	c.accessToken = tokenResp.AccessToken
	ttl := time.Duration(tokenResp.ExpiresIn) * time.Second
	if ttl > tokenExpirySafetyMargin {
		ttl -= tokenExpirySafetyMargin
	}
	c.tokenExpiry = time.Now().Add(ttl)

	return c.accessToken, nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = "/" + strings.TrimLeft(path, "/")
	return trimmed + path
}

func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
