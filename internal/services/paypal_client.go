package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PayPalConfig carries the provider endpoint and client credentials.
type PayPalConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// PayPalClient performs single round trips against the PayPal REST API.
// It never retries; every non-2xx answer becomes a *ProviderError and every
// transport failure wraps ErrConnection.
type PayPalClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// NewPayPalClient builds a client with the configured timeout.
func NewPayPalClient(cfg PayPalConfig) *PayPalClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PayPalClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// AccessToken is a bearer token and the lifetime the provider declared for it.
type AccessToken struct {
	Value     string
	ExpiresIn time.Duration
}

// FetchAccessToken exchanges the client credentials for a bearer token.
func (c *PayPalClient) FetchAccessToken(ctx context.Context) (AccessToken, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return AccessToken{}, fmt.Errorf("create paypal token request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+basicCredentials(c.clientID, c.clientSecret))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var tokenResp paypalTokenResponse
	if err := c.do(req, "token", &tokenResp); err != nil {
		return AccessToken{}, err
	}
	if tokenResp.AccessToken == "" {
		return AccessToken{}, errors.New("paypal token response missing access_token")
	}

	return AccessToken{
		Value:     tokenResp.AccessToken,
		ExpiresIn: time.Duration(tokenResp.ExpiresIn) * time.Second,
	}, nil
}

// CreateOrder submits a new checkout order.
func (c *PayPalClient) CreateOrder(ctx context.Context, token string, order PayPalOrderRequest) (*PayPalOrder, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/v2/checkout/orders", token, order)
	if err != nil {
		return nil, err
	}

	var created PayPalOrder
	if err := c.do(req, "create order", &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, errors.New("paypal create order response missing id")
	}
	return &created, nil
}

// CaptureOrder finalises a previously approved order. A non-COMPLETED status in a
// 2xx response is returned as data, not as an error.
func (c *PayPalClient) CaptureOrder(ctx context.Context, token, providerOrderID string) (*PayPalCaptureResponse, error) {
	path := "/v2/checkout/orders/" + url.PathEscape(providerOrderID) + "/capture"
	req, err := c.newJSONRequest(ctx, http.MethodPost, path, token, nil)
	if err != nil {
		return nil, err
	}

	var captured PayPalCaptureResponse
	if err := c.do(req, "capture order", &captured); err != nil {
		return nil, err
	}
	return &captured, nil
}

// GetOrderDetails reads the provider's current view of an order.
func (c *PayPalClient) GetOrderDetails(ctx context.Context, token, providerOrderID string) (*PayPalOrder, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(providerOrderID), token, nil)
	if err != nil {
		return nil, err
	}

	var order PayPalOrder
	if err := c.do(req, "get order", &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *PayPalClient) newJSONRequest(ctx context.Context, method, path, token string, body any) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal paypal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create paypal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

func (c *PayPalClient) do(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paypal %s: %w: %w", op, ErrConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("paypal %s read response: %w: %w", op, ErrConnection, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ProviderError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal paypal %s response: %w", op, err)
	}
	return nil
}

func basicCredentials(clientID, secret string) string {
	return base64.StdEncoding.EncodeToString([]byte(clientID + ":" + secret))
}
