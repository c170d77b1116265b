package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// statusPayload mirrors the payment status endpoint's response body.
type statusPayload struct {
	Success              bool   `json:"success"`
	PhonePePaymentStatus string `json:"phonePePaymentStatus"`
	PhonePeCode          string `json:"phonePeCode"`
	Message              string `json:"message"`
}

// HTTPStatusClient checks payment status against the backend's
// GET /api/v1/payments/status endpoint.
type HTTPStatusClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStatusClient creates a status client for the given backend base URL,
// e.g. "https://api.islandhop.lk".
func NewHTTPStatusClient(baseURL string) *HTTPStatusClient {
	return &HTTPStatusClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Check fetches the reconciled status for a merchant transaction. A non-2xx
// answer other than 200 is an error: the poller treats it as unverifiable
// rather than as a payment failure.
func (c *HTTPStatusClient) Check(ctx context.Context, merchantTransactionID string) (*CheckResult, error) {
	endpoint := fmt.Sprintf("%s/api/v1/payments/status?merchantTransactionId=%s",
		c.baseURL, url.QueryEscape(merchantTransactionID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read status response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var payload statusPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse status response: %w", err)
	}

	return &CheckResult{
		Settled: payload.Success && payload.PhonePePaymentStatus == "SUCCESS",
		Pending: payload.Success && payload.PhonePePaymentStatus == "PENDING",
		Code:    payload.PhonePeCode,
		Message: payload.Message,
	}, nil
}
