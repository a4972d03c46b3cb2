package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPGateway_CreateCheckoutSession(t *testing.T) {
	var got sessionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk_test" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Idempotency-Key") != "appt-1" {
			t.Errorf("unexpected idempotency key %q", r.Header.Get("Idempotency-Key"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_123","url":"https://pay.example/cs_123","expires_at":1893456000}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL+"/", "sk_test", "USD", 5*time.Second)
	session, err := g.CreateCheckoutSession(context.Background(), CheckoutRequest{
		Reference:   "appt-1",
		Description: "Dr. Ada Wells's Appointment",
		Amount:      9900,
		SuccessURL:  "https://clinic.example/?appointmentId=appt-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.ID != "cs_123" || session.URL != "https://pay.example/cs_123" {
		t.Errorf("unexpected session %+v", session)
	}
	if session.Currency != "usd" || session.Amount != 9900 {
		t.Errorf("unexpected amount/currency %+v", session)
	}
	if !session.ExpiresAt.Equal(time.Unix(1893456000, 0)) {
		t.Errorf("unexpected expiry %v", session.ExpiresAt)
	}
	if got.Mode != "payment" || got.ClientReferenceID != "appt-1" || len(got.LineItems) != 1 {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.LineItems[0].Amount != 9900 || got.LineItems[0].Quantity != 1 {
		t.Errorf("unexpected line item %+v", got.LineItems[0])
	}
}

func TestHTTPGateway_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"No such price"}}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "sk_test", "usd", time.Second)
	_, err := g.CreateCheckoutSession(context.Background(), CheckoutRequest{Reference: "a", Amount: 100})
	if err == nil || !strings.Contains(err.Error(), "No such price") {
		t.Errorf("expected provider message, got %v", err)
	}
}

func TestHTTPGateway_RejectsZeroAmount(t *testing.T) {
	g := NewHTTPGateway("http://unused", "k", "usd", time.Second)
	if _, err := g.CreateCheckoutSession(context.Background(), CheckoutRequest{Reference: "a"}); err == nil {
		t.Error("expected error for zero amount")
	}
}

func TestDisabledGateway(t *testing.T) {
	_, err := DisabledGateway{}.CreateCheckoutSession(context.Background(), CheckoutRequest{})
	if !errors.Is(err, ErrGatewayDisabled) {
		t.Errorf("expected ErrGatewayDisabled, got %v", err)
	}
}
