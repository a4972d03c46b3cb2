package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrGatewayDisabled = errors.New("payment gateway is not configured")

type CheckoutRequest struct {
	// Reference is echoed back by the provider as client_reference_id.
	Reference     string
	Description   string
	CustomerEmail string
	Amount        int64
	Currency      string
	SuccessURL    string
	CancelURL     string
}

type CheckoutSession struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// Gateway creates hosted checkout sessions at an external provider.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

type DisabledGateway struct{}

func (DisabledGateway) CreateCheckoutSession(context.Context, CheckoutRequest) (*CheckoutSession, error) {
	return nil, ErrGatewayDisabled
}

type HTTPGateway struct {
	baseURL  string
	apiKey   string
	currency string
	client   *http.Client
}

func NewHTTPGateway(baseURL, apiKey, currency string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		currency: strings.ToLower(currency),
		client:   &http.Client{Timeout: timeout},
	}
}

type lineItem struct {
	Name     string `json:"name"`
	Amount   int64  `json:"unit_amount"`
	Currency string `json:"currency"`
	Quantity int    `json:"quantity"`
}

type sessionRequest struct {
	Mode              string     `json:"mode"`
	ClientReferenceID string     `json:"client_reference_id"`
	CustomerEmail     string     `json:"customer_email,omitempty"`
	SuccessURL        string     `json:"success_url"`
	CancelURL         string     `json:"cancel_url,omitempty"`
	LineItems         []lineItem `json:"line_items"`
}

type sessionResponse struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expires_at"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *HTTPGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("checkout amount must be positive, got %d", req.Amount)
	}
	currency := g.currency
	if req.Currency != "" {
		currency = strings.ToLower(req.Currency)
	}

	body, err := json.Marshal(sessionRequest{
		Mode:              "payment",
		ClientReferenceID: req.Reference,
		CustomerEmail:     req.CustomerEmail,
		SuccessURL:        req.SuccessURL,
		CancelURL:         req.CancelURL,
		LineItems: []lineItem{{
			Name:     req.Description,
			Amount:   req.Amount,
			Currency: currency,
			Quantity: 1,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal checkout request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build checkout request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.Reference)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("POST checkout session: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read checkout response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		if json.Unmarshal(raw, &e) == nil && e.Error.Message != "" {
			return nil, fmt.Errorf("checkout provider returned %d: %s", resp.StatusCode, e.Error.Message)
		}
		return nil, fmt.Errorf("checkout provider returned %d", resp.StatusCode)
	}

	var sr sessionResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, fmt.Errorf("decode checkout response: %w", err)
	}
	session := &CheckoutSession{ID: sr.ID, URL: sr.URL, Amount: req.Amount, Currency: currency}
	if sr.ExpiresAt > 0 {
		session.ExpiresAt = time.Unix(sr.ExpiresAt, 0).UTC()
	}
	return session, nil
}
