package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"dispatch/internal/domain"
)

// CaptureResult is the outcome of a payment capture attempt.
type CaptureResult struct {
	Captured bool
	Reason   domain.PaymentFailureReason // set when Captured is false
}

// PaymentGateway is the interface to the remote payment capture service.
// Implementations must distinguish an explicit decline from a gateway
// error: declines are final, gateway errors are retry-eligible.
type PaymentGateway interface {
	Capture(ctx context.Context, tripID string) (*CaptureResult, error)
}

const (
	defaultCaptureTimeout = 8 * time.Second
	// One automatic retry on transport failure, never on declines.
	captureTransportRetries = 1
)

// HTTPPaymentGateway captures payments over HTTP with a bounded timeout.
type HTTPPaymentGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPPaymentGateway creates a gateway client. A zero timeout uses the
// default.
func NewHTTPPaymentGateway(baseURL string, timeout time.Duration) *HTTPPaymentGateway {
	if timeout <= 0 {
		timeout = defaultCaptureTimeout
	}
	return &HTTPPaymentGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// captureRequest is the wire format of a capture call.
type captureRequest struct {
	TripID string `json:"tripId"`
}

// captureResponse is the wire format of a capture result.
type captureResponse struct {
	Captured bool   `json:"captured"`
	Reason   string `json:"reason,omitempty"`
}

// Capture charges the payment method attached to the trip. Timeouts and
// unreachable gateways come back as a gateway_error result rather than an
// error so callers can park the trip as retry-eligible.
func (g *HTTPPaymentGateway) Capture(ctx context.Context, tripID string) (*CaptureResult, error) {
	body, err := json.Marshal(captureRequest{TripID: tripID})
	if err != nil {
		return nil, fmt.Errorf("marshal capture request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= captureTransportRetries; attempt++ {
		result, err := g.post(ctx, body)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	// Transport failure after retry: gateway error, retry-eligible.
	log.Printf("payment: capture for trip %s: %v", tripID, lastErr)
	return &CaptureResult{Captured: false, Reason: domain.PaymentFailureGatewayError}, nil
}

func (g *HTTPPaymentGateway) post(ctx context.Context, body []byte) (*CaptureResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/capture", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// A 5xx or unexpected status is a gateway fault, not a decline.
		return &CaptureResult{Captured: false, Reason: domain.PaymentFailureGatewayError}, nil
	}

	var decoded captureResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return &CaptureResult{Captured: false, Reason: domain.PaymentFailureGatewayError}, nil
	}

	if decoded.Captured {
		return &CaptureResult{Captured: true}, nil
	}

	// The gateway reports lowercase reasons on the wire.
	reason := domain.PaymentFailureDeclined
	if decoded.Reason == "gateway_error" {
		reason = domain.PaymentFailureGatewayError
	}
	return &CaptureResult{Captured: false, Reason: reason}, nil
}

// Ensure HTTPPaymentGateway implements PaymentGateway.
var _ PaymentGateway = (*HTTPPaymentGateway)(nil)
