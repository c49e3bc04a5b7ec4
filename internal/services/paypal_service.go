package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Capture outcome values. COMPLETED, DECLINED and PENDING come from the
// processor; INCONCLUSIVE is synthesized when a capture response carries no
// capture or authorization object at all.
const (
	CaptureStatusCompleted    = "COMPLETED"
	CaptureStatusDeclined     = "DECLINED"
	CaptureStatusPending      = "PENDING"
	CaptureStatusInconclusive = "INCONCLUSIVE"
)

// APIError carries the processor's HTTP status and raw error body for calls
// the processor rejected. Business declines are not APIErrors.
type APIError struct {
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal api error: status %d, body: %s", e.Status, string(e.Body))
}

// OrderResult is the normalized outcome of an order-create call.
type OrderResult struct {
	OrderID    string
	Status     string
	HTTPStatus int
	Raw        json.RawMessage
}

// CaptureResult is the normalized outcome of an order-capture call. Status is
// taken from the first capture (or authorization) object in the response, not
// from the HTTP status code.
type CaptureResult struct {
	TransactionID string
	Status        string
	HTTPStatus    int
	Raw           json.RawMessage
}

// PayPalClient wraps the PayPal Orders v2 REST API. Each exported call obtains
// a fresh bearer token via the client-credential exchange; tokens are never
// cached across requests.
type PayPalClient struct {
	clientID string
	secret   string
	baseURL  string
	http     *http.Client
}

// NewPayPalClient constructs a PayPalClient for the given API base URL
// (sandbox or live).
func NewPayPalClient(clientID, secret, baseURL string) *PayPalClient {
	return &PayPalClient{
		clientID: clientID,
		secret:   secret,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *PayPalClient) accessToken(ctx context.Context) (string, error) {
	if c.clientID == "" || c.secret == "" {
		return "", errors.New("paypal credentials are not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{Status: resp.StatusCode, Body: body}
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", errors.New("paypal token response missing access_token")
	}

	return parsed.AccessToken, nil
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateOrder starts a transaction for the given USD amount and returns the
// processor's order id along with the raw response payload.
func (c *PayPalClient) CreateOrder(ctx context.Context, amount float64) (*OrderResult, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{
			{
				"amount": map[string]string{
					"currency_code": "USD",
					"value":         strconv.FormatFloat(amount, 'f', 2, 64),
				},
			},
		},
	}

	status, body, err := c.post(ctx, "/v2/checkout/orders", token, payload)
	if err != nil {
		return nil, err
	}

	var parsed orderResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal order response: %w", err)
	}

	return &OrderResult{
		OrderID:    parsed.ID,
		Status:     parsed.Status,
		HTTPStatus: status,
		Raw:        body,
	}, nil
}

type capturePayment struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type captureResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures       []capturePayment `json:"captures"`
			Authorizations []capturePayment `json:"authorizations"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// CaptureOrder finalizes a previously created order. A response without any
// capture or authorization object yields StatusInconclusive rather than an
// error; a DECLINED capture is likewise data, not an error.
func (c *PayPalClient) CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	status, body, err := c.post(ctx, "/v2/checkout/orders/"+orderID+"/capture", token, nil)
	if err != nil {
		return nil, err
	}

	var parsed captureResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal capture response: %w", err)
	}

	result := &CaptureResult{
		Status:     CaptureStatusInconclusive,
		HTTPStatus: status,
		Raw:        body,
	}

	if txn, ok := firstTransaction(parsed); ok {
		result.TransactionID = txn.ID
		result.Status = txn.Status
	}

	return result, nil
}

func firstTransaction(resp captureResponse) (capturePayment, bool) {
	for _, unit := range resp.PurchaseUnits {
		if len(unit.Payments.Captures) > 0 {
			return unit.Payments.Captures[0], true
		}
		if len(unit.Payments.Authorizations) > 0 {
			return unit.Payments.Authorizations[0], true
		}
	}
	return capturePayment{}, false
}

type clientTokenResponse struct {
	ClientToken string `json:"client_token"`
}

// GenerateClientToken returns a short-lived token for rendering the hosted
// card fields on the checkout page.
func (c *PayPalClient) GenerateClientToken(ctx context.Context) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/identity/generate-token", nil)
	if err != nil {
		return "", fmt.Errorf("build client token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept-Language", "en_US")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute client token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read client token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{Status: resp.StatusCode, Body: body}
	}

	var parsed clientTokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal client token response: %w", err)
	}
	if parsed.ClientToken == "" {
		return "", errors.New("paypal response missing client_token")
	}

	return parsed.ClientToken, nil
}

// post issues an authenticated JSON POST and returns the HTTP status with the
// raw response body. Non-2xx responses become APIErrors.
func (c *PayPalClient) post(ctx context.Context, path, token string, payload any) (int, []byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, body, &APIError{Status: resp.StatusCode, Body: body}
	}

	return resp.StatusCode, body, nil
}
