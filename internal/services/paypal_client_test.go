package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPayPalClient(t *testing.T, handler http.HandlerFunc) *PayPalClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewPayPalClient(PayPalConfig{
		BaseURL:      srv.URL + "/",
		ClientID:     "client",
		ClientSecret: "secret",
		Timeout:      5 * time.Second,
	})
}

func TestPayPalClient_FetchAccessToken(t *testing.T) {
	client := newTestPayPalClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/oauth2/token", r.URL.Path)

		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("client:secret"))
		assert.Equal(t, want, r.Header.Get("Authorization"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"A21AA","token_type":"Bearer","expires_in":32400}`)
	})

	token, err := client.FetchAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A21AA", token.Value)
	assert.Equal(t, 9*time.Hour, token.ExpiresIn)
}

func TestPayPalClient_FetchAccessTokenRejected(t *testing.T) {
	client := newTestPayPalClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"invalid_client"}`)
	})

	_, err := client.FetchAccessToken(context.Background())
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusUnauthorized, perr.StatusCode)
	assert.Equal(t, "Not authorized", perr.Message())
	assert.Contains(t, perr.Body, "invalid_client")
}

func TestPayPalClient_CreateOrder(t *testing.T) {
	client := newTestPayPalClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/checkout/orders", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body PayPalOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CAPTURE", body.Intent)
		require.Len(t, body.PurchaseUnits, 1)
		assert.Equal(t, "20.00", body.PurchaseUnits[0].Amount.Value)
		assert.Equal(t, "USD", body.PurchaseUnits[0].Amount.CurrencyCode)

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{
			"id":"5O190127TN364715T",
			"status":"CREATED",
			"links":[
				{"href":"https://api.sandbox.paypal.com/v2/checkout/orders/5O190127TN364715T","rel":"self","method":"GET"},
				{"href":"https://www.sandbox.paypal.com/checkoutnow?token=5O190127TN364715T","rel":"approve","method":"GET"}
			]
		}`)
	})

	order, err := client.CreateOrder(context.Background(), "tok", PayPalOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []PayPalPurchaseUnit{
			{Amount: PayPalAmount{CurrencyCode: "USD", Value: "20.00"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "5O190127TN364715T", order.ID)
	assert.Equal(t, "CREATED", order.Status)
	assert.Len(t, order.Links, 2)
	assert.Equal(t, "https://www.sandbox.paypal.com/checkoutnow?token=5O190127TN364715T", order.ApprovalURL())
}

func TestPayPalClient_CaptureOrder(t *testing.T) {
	client := newTestPayPalClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/checkout/orders/ORDER-1/capture", r.URL.Path)
		_, _ = io.WriteString(w, `{
			"id":"ORDER-1",
			"status":"COMPLETED",
			"payer":{"payer_id":"PAYER42","email_address":"buyer@example.com"},
			"purchase_units":[{"reference_id":"r","payments":{"captures":[
				{"id":"CAP-1","status":"COMPLETED","amount":{"currency_code":"USD","value":"20.00"}}
			]}}]
		}`)
	})

	captured, err := client.CaptureOrder(context.Background(), "tok", "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", captured.Status)
	assert.Equal(t, "PAYER42", captured.PayerID())
	assert.Equal(t, "20.00", captured.CapturedAmount())
}

func TestPayPalClient_CaptureOrderNotCompletedIsData(t *testing.T) {
	client := newTestPayPalClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"ORDER-1","status":"PAYER_ACTION_REQUIRED"}`)
	})

	captured, err := client.CaptureOrder(context.Background(), "tok", "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, "PAYER_ACTION_REQUIRED", captured.Status)
	assert.Empty(t, captured.PayerID())
	assert.Empty(t, captured.CapturedAmount())
}

func TestPayPalClient_GetOrderDetails(t *testing.T) {
	client := newTestPayPalClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v2/checkout/orders/ORDER-9", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":"ORDER-9","status":"VOIDED"}`)
	})

	order, err := client.GetOrderDetails(context.Background(), "tok", "ORDER-9")
	require.NoError(t, err)
	assert.Equal(t, "VOIDED", order.Status)
}

func TestPayPalClient_NonSuccessStatus(t *testing.T) {
	cases := []struct {
		status  int
		message string
	}{
		{http.StatusBadRequest, "Invalid payment request"},
		{http.StatusNotFound, "Payment order not found"},
		{http.StatusUnprocessableEntity, "Payment could not be processed"},
		{http.StatusInternalServerError, "Payment provider unavailable"},
		{http.StatusServiceUnavailable, "Payment provider unavailable"},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			client := newTestPayPalClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, `{"name":"ERR"}`)
			})

			_, err := client.CaptureOrder(context.Background(), "tok", "ORDER-1")
			var perr *ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tc.status, perr.StatusCode)
			assert.Equal(t, tc.message, perr.Message())
			assert.False(t, errors.Is(err, ErrConnection))
		})
	}
}

func TestPayPalClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	client := NewPayPalClient(PayPalConfig{BaseURL: baseURL, Timeout: time.Second})

	_, err := client.FetchAccessToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)

	var perr *ProviderError
	assert.False(t, errors.As(err, &perr))
}

func TestStatusMessage(t *testing.T) {
	assert.Equal(t, "Too many requests, try again later", StatusMessage(http.StatusTooManyRequests))
	assert.Equal(t, "Operation not permitted", StatusMessage(http.StatusForbidden))
	assert.Equal(t, "Network error", StatusMessage(http.StatusTeapot))
}
