/**
 * @description
 * This package provides a client for the Flutterwave payments API. It
 * encapsulates the logic for making authenticated HTTP requests to Flutterwave's
 * endpoints, handling request body construction, and parsing responses.
 *
 * Two operations matter to the registration funnel: creating a hosted payment
 * link for one attempt, and verifying a transaction after the gateway redirects
 * back with a success status.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package flutterwave

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// DefaultBaseURL is the production Flutterwave API host.
const DefaultBaseURL = "https://api.flutterwave.com"

// Client is a client for the Flutterwave API.
type Client struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewClient creates a new Flutterwave API client.
func NewClient(baseURL, secretKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:   baseURL,
		SecretKey: secretKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CustomerPayload is the customer sub-object of a payment request.
type CustomerPayload struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phonenumber"`
	Name        string `json:"name"`
}

// CustomizationsPayload controls the hosted page's presentation.
type CustomizationsPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Logo        string `json:"logo,omitempty"`
}

// PaymentRequest is the payload for creating a hosted payment link.
type PaymentRequest struct {
	TxRef          string                 `json:"tx_ref"`
	Amount         int64                  `json:"amount"`
	Currency       string                 `json:"currency"`
	PaymentOptions string                 `json:"payment_options"`
	RedirectURL    string                 `json:"redirect_url"`
	Customer       CustomerPayload        `json:"customer"`
	Customizations CustomizationsPayload  `json:"customizations"`
	Meta           map[string]interface{} `json:"meta,omitempty"`
}

// PaymentResponse is the expected response from the payments endpoint.
type PaymentResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

// VerifyResponse is the expected response from the transaction verify endpoint.
type VerifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID       int64   `json:"id"`
		TxRef    string  `json:"tx_ref"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
		Status   string  `json:"status"`
	} `json:"data"`
}

// ErrorResponse represents an error from the Flutterwave API.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("flutterwave api error: %s", e.Message)
	}
	return "unknown flutterwave api error"
}

// CreatePayment asks Flutterwave for a hosted payment link for one attempt.
func (c *Client) CreatePayment(ctx context.Context, payload PaymentRequest) (*PaymentResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v3/payments", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create payment request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute payment request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read payment response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=flutterwave_client op=create_payment status=%d msg=\"non-2xx response (unparsable error body)\"", resp.StatusCode)
			return nil, fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=flutterwave_client op=create_payment status=%d message=%q", resp.StatusCode, errResp.Message)
		return nil, &errResp
	}

	var successResp PaymentResponse
	if err := json.Unmarshal(bodyBytes, &successResp); err != nil {
		return nil, fmt.Errorf("failed to decode payment response: %w", err)
	}

	return &successResp, nil
}

// VerifyTransaction fetches the server-side truth for a transaction the gateway
// redirect reported as paid.
func (c *Client) VerifyTransaction(ctx context.Context, transactionID string) (*VerifyResponse, error) {
	url := c.BaseURL + "/v3/transactions/" + transactionID + "/verify"

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create verify request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute verify request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read verify response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=flutterwave_client op=verify transaction_id=%s status=%d msg=\"non-2xx response (unparsable error body)\"", transactionID, resp.StatusCode)
			return nil, fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=flutterwave_client op=verify transaction_id=%s status=%d message=%q", transactionID, resp.StatusCode, errResp.Message)
		return nil, &errResp
	}

	var verifyResp VerifyResponse
	if err := json.Unmarshal(bodyBytes, &verifyResp); err != nil {
		return nil, fmt.Errorf("failed to decode verify response: %w", err)
	}

	return &verifyResp, nil
}

// Ping is a lightweight reachability check used as the connectivity pre-check
// before a payment attempt. Any HTTP response counts as reachable; only a
// transport failure is an error.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/v3/ping", nil)
	if err != nil {
		return fmt.Errorf("failed to create ping request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return nil
}
