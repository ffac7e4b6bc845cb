package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"verbapost/internal/config"
	"verbapost/internal/model"
)

type SessionStatus string

const (
	SessionPaid   SessionStatus = "PAID"
	SessionUnpaid SessionStatus = "UNPAID"
)

// CheckoutClient talks to the hosted checkout provider. The return URL passed
// to CreateSession should carry only the order id; the provider appends its
// own session id on redirect.
type CheckoutClient interface {
	CreateSession(ctx context.Context, description string, amountCents int64, returnURL, cancelURL string) (*CreateSessionResponse, error)
	CheckStatus(ctx context.Context, sessionID string) (SessionStatus, error)
}

type CreateSessionResponse struct {
	SessionID   string
	RedirectURL string
}

type checkoutClientImpl struct {
	httpClient *http.Client
	baseApiURL string
	secretKey  string
}

func NewCheckoutClient(cfg *config.Checkout) CheckoutClient {
	return &checkoutClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL: cfg.BaseApiURL,
		secretKey:  cfg.SecretKey,
	}
}

type checkoutSessionResult struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
}

func (c *checkoutClientImpl) CreateSession(ctx context.Context, description string, amountCents int64, returnURL, cancelURL string) (*CreateSessionResponse, error) {
	// The provider substitutes its session id into the success URL template.
	join := "?"
	if strings.Contains(returnURL, "?") {
		join = "&"
	}
	successURL := returnURL + join + "session_id={CHECKOUT_SESSION_ID}"

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][price_data][currency]", "usd")
	form.Set("line_items[0][price_data][product_data][name]", description)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(amountCents, 10))
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/v1/checkout/sessions",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w: %v", model.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("create checkout session: %w: status=%d body=%s", model.ErrProviderUnavailable, resp.StatusCode, string(b))
	}

	var result checkoutSessionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode checkout response: %w", err)
	}

	return &CreateSessionResponse{
		SessionID:   result.ID,
		RedirectURL: result.URL,
	}, nil
}

func (c *checkoutClientImpl) CheckStatus(ctx context.Context, sessionID string) (SessionStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/checkout/sessions/%s", c.baseApiURL, url.PathEscape(sessionID)),
		nil)
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("check session status: %w: %v", model.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("check session status: %w: status=%d body=%s", model.ErrProviderUnavailable, resp.StatusCode, string(b))
	}

	var result checkoutSessionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode session status: %w", err)
	}

	if result.PaymentStatus == "paid" {
		return SessionPaid, nil
	}
	return SessionUnpaid, nil
}
