package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/learnfox/LearnFox/internal/pkg/env"
)

const defaultGatewayBaseURL = "https://api.paylearn.example/v1"

const (
	CheckoutModeSubscription = "subscription"
	CheckoutModePayment      = "payment"
)

// GatewayClient talks to the payment gateway's REST API. Calls are bounded
// by the HTTP client timeout and retried with exponential backoff on network
// errors and 5xx responses; an exhausted retry budget surfaces as
// ErrGatewayUnavailable so callers can report "pending" instead of failure.
type GatewayClient struct {
	SecretKey string
	BaseURL   string

	HTTPClient *http.Client
	MaxRetries int
	RetryDelay time.Duration
}

func NewGatewayClientFromEnv() *GatewayClient {
	return &GatewayClient{
		SecretKey: strings.TrimSpace(env.GetEnv("GATEWAY_SECRET_KEY", "")),
		BaseURL:   strings.TrimRight(env.GetEnv("GATEWAY_API_BASE_URL", defaultGatewayBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		MaxRetries: 3,
		RetryDelay: 200 * time.Millisecond,
	}
}

// CheckoutSessionParams describes a hosted checkout to create. Mode is
// "subscription" for recurring plans and "payment" for one-off purchases.
type CheckoutSessionParams struct {
	CustomerID        string `json:"customer,omitempty"`
	CustomerEmail     string `json:"customer_email,omitempty"`
	PriceRef          string `json:"price"`
	Mode              string `json:"mode"`
	SuccessURL        string `json:"success_url"`
	CancelURL         string `json:"cancel_url"`
	ClientReferenceID string `json:"client_reference_id,omitempty"`
}

// CheckoutSession is the gateway-hosted checkout the user is redirected to.
type CheckoutSession struct {
	SessionID string `json:"id"`
	URL       string `json:"url"`
}

func (c *GatewayClient) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (*CheckoutSession, error) {
	if strings.TrimSpace(p.PriceRef) == "" {
		return nil, fmt.Errorf("%w: price ref is required", ErrValidation)
	}
	if strings.TrimSpace(p.SuccessURL) == "" || strings.TrimSpace(p.CancelURL) == "" {
		return nil, fmt.Errorf("%w: success and cancel URLs are required", ErrValidation)
	}
	var out CheckoutSession
	if err := c.doJSON(ctx, http.MethodPost, "/checkout/sessions", p, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.URL) == "" {
		return nil, fmt.Errorf("gateway returned checkout session without redirect url")
	}
	return &out, nil
}

// CreatePortalSession returns the billing portal URL for a linked customer.
func (c *GatewayClient) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if strings.TrimSpace(customerID) == "" {
		return "", fmt.Errorf("%w: gateway customer id is required", ErrValidation)
	}
	body := map[string]string{
		"customer":   customerID,
		"return_url": returnURL,
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/billing_portal/sessions", body, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// SetCancelAtPeriodEnd schedules or releases a deferred cancellation on the
// gateway side.
func (c *GatewayClient) SetCancelAtPeriodEnd(ctx context.Context, gatewaySubscriptionID string, cancel bool) error {
	if strings.TrimSpace(gatewaySubscriptionID) == "" {
		return fmt.Errorf("%w: gateway subscription id is required", ErrValidation)
	}
	body := map[string]bool{"cancel_at_period_end": cancel}
	return c.doJSON(ctx, http.MethodPost, "/subscriptions/"+gatewaySubscriptionID, body, nil)
}

// CancelSubscriptionNow deletes the subscription immediately. The
// authoritative confirmation arrives later as a subscription-deleted event.
func (c *GatewayClient) CancelSubscriptionNow(ctx context.Context, gatewaySubscriptionID string) error {
	if strings.TrimSpace(gatewaySubscriptionID) == "" {
		return fmt.Errorf("%w: gateway subscription id is required", ErrValidation)
	}
	return c.doJSON(ctx, http.MethodDelete, "/subscriptions/"+gatewaySubscriptionID, nil, nil)
}

// UpdateSubscriptionPlan swaps the subscription to a new price with prorated
// billing handled by the gateway.
func (c *GatewayClient) UpdateSubscriptionPlan(ctx context.Context, gatewaySubscriptionID, priceRef string) error {
	if strings.TrimSpace(gatewaySubscriptionID) == "" || strings.TrimSpace(priceRef) == "" {
		return fmt.Errorf("%w: gateway subscription id and price ref are required", ErrValidation)
	}
	body := map[string]string{
		"price":              priceRef,
		"proration_behavior": "create_prorations",
	}
	return c.doJSON(ctx, http.MethodPost, "/subscriptions/"+gatewaySubscriptionID, body, nil)
}

func (c *GatewayClient) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	retries := c.MaxRetries
	if retries < 1 {
		retries = 1
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrGatewayUnavailable, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.SecretKey)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("gateway responded %d: %s", resp.StatusCode, string(respBody))
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("gateway request %s %s failed: status=%d body=%s", method, path, resp.StatusCode, string(respBody))
		}
		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("gateway response decode failed: %w", err)
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, lastErr)
}
