package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// GatewayError is a typed non-2xx or malformed response from PayAdmit.
// Code "TRANSPORT" marks network-level failures (timeout, refused); those
// are the only errors a caller may treat as retryable for reads.
type GatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error %s: %s", e.Code, e.Message)
}

const (
	queryMaxAttempts = 3
	queryBackoffBase = 200 * time.Millisecond
)

type Customer struct {
	ReferenceID string `json:"referenceId,omitempty"`
	Email       string `json:"email,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
}

// SubmitRequest is the creation payload for payments, payouts and refunds.
// ReferenceID doubles as the gateway-side idempotency key, so a lost
// response can be safely resolved by the webhook or a later status query.
type SubmitRequest struct {
	ReferenceID     string    `json:"referenceId"`
	PaymentType     string    `json:"paymentType"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	Customer        *Customer `json:"customer,omitempty"`
	ParentPaymentID string    `json:"parentPaymentId,omitempty"`
}

// GatewayResult is the normalized result object PayAdmit returns under
// "result" for both creations and status queries.
type GatewayResult struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	ErrorCode string `json:"errorCode"`
}

type gatewayResponse struct {
	Result GatewayResult `json:"result"`
	Error  *GatewayError `json:"error"`
}

// PayAdmitClient is the stateless HTTP adapter to the gateway. All calls
// attach the bearer credential and honor the context deadline.
type PayAdmitClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewPayAdmitClient(baseURL, apiKey string, timeout time.Duration) *PayAdmitClient {
	return &PayAdmitClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Submit creates a payment, payout or refund. It is never retried here:
// the gateway may have durably applied the request even if the response
// was lost, and the reference id in the payload carries retry safety.
func (p *PayAdmitClient) Submit(ctx context.Context, req SubmitRequest) (*GatewayResult, error) {
	return p.do(ctx, http.MethodPost, p.BaseURL+"/payments", req)
}

// ConfirmPayout approves a payout awaiting merchant confirmation.
func (p *PayAdmitClient) ConfirmPayout(ctx context.Context, gatewayID string) (*GatewayResult, error) {
	payload := map[string]string{"id": gatewayID, "action": "CONFIRM"}
	url := fmt.Sprintf("%s/payouts/%s/confirm", p.BaseURL, gatewayID)
	return p.do(ctx, http.MethodPost, url, payload)
}

// Query reads the current gateway state of a payment. Reads are idempotent,
// so transient failures and 5xx are retried with exponential backoff.
func (p *PayAdmitClient) Query(ctx context.Context, gatewayID string) (*GatewayResult, error) {
	url := fmt.Sprintf("%s/payments/%s/status", p.BaseURL, gatewayID)

	var lastErr error
	for attempt := 0; attempt < queryMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &GatewayError{Code: "TRANSPORT", Message: ctx.Err().Error()}
			case <-time.After(queryBackoffBase << (attempt - 1)):
			}
		}

		result, err := p.do(ctx, http.MethodGet, url, nil)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if gerr, ok := err.(*GatewayError); !ok || !retryable(gerr) {
			return nil, err
		}
	}
	return nil, lastErr
}

func retryable(e *GatewayError) bool {
	return e.Code == "TRANSPORT" || e.Code == "HTTP_500" || e.Code == "HTTP_502" ||
		e.Code == "HTTP_503" || e.Code == "HTTP_504"
}

func (p *PayAdmitClient) do(ctx context.Context, method, url string, payload any) (*GatewayResult, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, &GatewayError{Code: "ENCODE", Message: err.Error()}
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &GatewayError{Code: "TRANSPORT", Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return nil, &GatewayError{Code: "TRANSPORT", Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GatewayError{Code: "TRANSPORT", Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var decoded gatewayResponse
		if json.Unmarshal(raw, &decoded) == nil && decoded.Error != nil && decoded.Error.Code != "" {
			return nil, decoded.Error
		}
		return nil, &GatewayError{
			Code:    fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message: string(raw),
		}
	}

	var decoded gatewayResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &GatewayError{Code: "DECODE", Message: err.Error()}
	}
	if decoded.Result.ID == "" {
		return nil, &GatewayError{Code: "DECODE", Message: "response missing result.id"}
	}

	return &decoded.Result, nil
}
