package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePayPal stands in for the sandbox API. Each endpoint checks that the
// caller authenticated the way the real API requires.
type fakePayPal struct {
	t              *testing.T
	captureBody    string
	captureStatus  int
	orderStatus    int
	tokenRequests  int
	createRequests int
}

func (f *fakePayPal) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		f.tokenRequests++
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 32400})
	})

	mux.HandleFunc("/v1/identity/generate-token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"client_token": "ct-1"})
	})

	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		f.createRequests++
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var payload struct {
			Intent        string `json:"intent"`
			PurchaseUnits []struct {
				Amount struct {
					CurrencyCode string `json:"currency_code"`
					Value        string `json:"value"`
				} `json:"amount"`
			} `json:"purchase_units"`
		}
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(f.t, "CAPTURE", payload.Intent)
		if assert.Len(f.t, payload.PurchaseUnits, 1) {
			assert.Equal(f.t, "USD", payload.PurchaseUnits[0].Amount.CurrencyCode)
			assert.Equal(f.t, "19.99", payload.PurchaseUnits[0].Amount.Value)
		}

		status := f.orderStatus
		if status == 0 {
			status = http.StatusCreated
		}
		w.WriteHeader(status)
		if status >= 400 {
			_, _ = w.Write([]byte(`{"name":"INVALID_REQUEST"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"O-1","status":"CREATED"}`))
	})

	mux.HandleFunc("/v2/checkout/orders/O-1/capture", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		status := f.captureStatus
		if status == 0 {
			status = http.StatusCreated
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(f.captureBody))
	})

	return mux
}

func newTestClient(t *testing.T, fake *fakePayPal) *PayPalClient {
	t.Helper()
	fake.t = t
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)
	return NewPayPalClient("client-id", "client-secret", server.URL)
}

func TestCreateOrder(t *testing.T) {
	fake := &fakePayPal{}
	client := newTestClient(t, fake)

	result, err := client.CreateOrder(context.Background(), 19.99)
	require.NoError(t, err)
	assert.Equal(t, "O-1", result.OrderID)
	assert.Equal(t, "CREATED", result.Status)
	assert.Equal(t, http.StatusCreated, result.HTTPStatus)
	assert.JSONEq(t, `{"id":"O-1","status":"CREATED"}`, string(result.Raw))

	// Every outer call performs its own token exchange.
	_, err = client.CreateOrder(context.Background(), 19.99)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.tokenRequests)
}

func TestCreateOrderRejected(t *testing.T) {
	fake := &fakePayPal{orderStatus: http.StatusUnprocessableEntity}
	client := newTestClient(t, fake)

	_, err := client.CreateOrder(context.Background(), 19.99)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Contains(t, string(apiErr.Body), "INVALID_REQUEST")
}

func TestCaptureOrderCompleted(t *testing.T) {
	fake := &fakePayPal{
		captureBody: `{
			"id": "O-1",
			"status": "COMPLETED",
			"purchase_units": [{
				"payments": {"captures": [{"id": "T-1", "status": "COMPLETED"}]}
			}]
		}`,
	}
	client := newTestClient(t, fake)

	result, err := client.CaptureOrder(context.Background(), "O-1")
	require.NoError(t, err)
	assert.Equal(t, "T-1", result.TransactionID)
	assert.Equal(t, CaptureStatusCompleted, result.Status)
	assert.Equal(t, http.StatusCreated, result.HTTPStatus)
}

func TestCaptureOrderDeclinedIsDataNotError(t *testing.T) {
	fake := &fakePayPal{
		captureBody: `{
			"id": "O-1",
			"status": "COMPLETED",
			"purchase_units": [{
				"payments": {"captures": [{"id": "T-2", "status": "DECLINED"}]}
			}]
		}`,
	}
	client := newTestClient(t, fake)

	result, err := client.CaptureOrder(context.Background(), "O-1")
	require.NoError(t, err)
	assert.Equal(t, CaptureStatusDeclined, result.Status)
	assert.Equal(t, "T-2", result.TransactionID)
}

func TestCaptureOrderFallsBackToAuthorizations(t *testing.T) {
	fake := &fakePayPal{
		captureBody: `{
			"id": "O-1",
			"purchase_units": [{
				"payments": {"authorizations": [{"id": "A-1", "status": "CREATED"}]}
			}]
		}`,
	}
	client := newTestClient(t, fake)

	result, err := client.CaptureOrder(context.Background(), "O-1")
	require.NoError(t, err)
	assert.Equal(t, "A-1", result.TransactionID)
	assert.Equal(t, "CREATED", result.Status)
}

func TestCaptureOrderWithoutTransactionIsInconclusive(t *testing.T) {
	fake := &fakePayPal{captureBody: `{"id": "O-1", "purchase_units": [{"payments": {}}]}`}
	client := newTestClient(t, fake)

	result, err := client.CaptureOrder(context.Background(), "O-1")
	require.NoError(t, err)
	assert.Equal(t, CaptureStatusInconclusive, result.Status)
	assert.Empty(t, result.TransactionID)
}

func TestGenerateClientToken(t *testing.T) {
	fake := &fakePayPal{}
	client := newTestClient(t, fake)

	token, err := client.GenerateClientToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ct-1", token)
}

func TestAccessTokenFailure(t *testing.T) {
	client := NewPayPalClient("", "", "http://127.0.0.1:0")

	_, err := client.CreateOrder(context.Background(), 19.99)
	assert.Error(t, err)
}
