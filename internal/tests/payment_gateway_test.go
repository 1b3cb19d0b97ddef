package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

func TestHTTPPaymentGateway_SuccessfulCapture(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TripID string `json:"tripId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TripID != "trip-1" {
			t.Errorf("unexpected capture request body")
		}
		json.NewEncoder(w).Encode(map[string]any{"captured": true})
	}))
	defer server.Close()

	gateway := service.NewHTTPPaymentGateway(server.URL, 0)
	result, err := gateway.Capture(context.Background(), "trip-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Captured {
		t.Error("expected captured result")
	}
}

func TestHTTPPaymentGateway_DeclineIsFinal(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]any{"captured": false, "reason": "declined"})
	}))
	defer server.Close()

	gateway := service.NewHTTPPaymentGateway(server.URL, 0)
	result, err := gateway.Capture(context.Background(), "trip-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Captured {
		t.Error("expected decline")
	}
	if result.Reason != domain.PaymentFailureDeclined {
		t.Errorf("expected reason %s, got %s", domain.PaymentFailureDeclined, result.Reason)
	}
	// A decline is an answer, not a failure: no retry.
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected 1 gateway call, got %d", n)
	}
}

func TestHTTPPaymentGateway_ServerErrorIsGatewayError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	gateway := service.NewHTTPPaymentGateway(server.URL, 0)
	result, err := gateway.Capture(context.Background(), "trip-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Captured {
		t.Error("expected failed capture")
	}
	if result.Reason != domain.PaymentFailureGatewayError {
		t.Errorf("expected reason %s, got %s", domain.PaymentFailureGatewayError, result.Reason)
	}
}

func TestHTTPPaymentGateway_TransportFailureRetriesOnce(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		// Abort the connection so the client sees a transport error.
		panic(http.ErrAbortHandler)
	}))
	defer server.Close()

	gateway := service.NewHTTPPaymentGateway(server.URL, 0)
	result, err := gateway.Capture(context.Background(), "trip-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Captured {
		t.Error("expected failed capture")
	}
	if result.Reason != domain.PaymentFailureGatewayError {
		t.Errorf("expected reason %s, got %s", domain.PaymentFailureGatewayError, result.Reason)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("expected initial attempt plus one retry, got %d calls", n)
	}
}

func TestHTTPPaymentGateway_TimeoutIsGatewayError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]any{"captured": true})
	}))
	defer server.Close()

	gateway := service.NewHTTPPaymentGateway(server.URL, 20*time.Millisecond)
	result, err := gateway.Capture(context.Background(), "trip-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Captured {
		t.Error("a capture that timed out must not count as captured")
	}
	if result.Reason != domain.PaymentFailureGatewayError {
		t.Errorf("expected reason %s, got %s", domain.PaymentFailureGatewayError, result.Reason)
	}
}
