package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"ticket-wallet-service/internal/core/domain"
	"ticket-wallet-service/internal/core/ports"

	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.GatewayClient against the payment gateway's
// checkout API. Requests are signed with the shared secret so the
// gateway can authenticate the platform.
type Client struct {
	baseURL    string
	secret     string
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewClient creates a gateway client.
func NewClient(baseURL, secret string, sigSvc ports.SignatureService, httpClient HTTPClient, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		secret:     secret,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		log:        log,
	}
}

type checkoutRequest struct {
	OrderCode   string `json:"order_code"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

type checkoutResponse struct {
	OrderCode   string `json:"order_code"`
	CheckoutURL string `json:"checkout_url"`
	QRCode      string `json:"qr_code"`
}

// CreateCheckout registers an order with the gateway and returns the
// checkout session to redirect the user to.
func (c *Client) CreateCheckout(ctx context.Context, orderCode string, amount domain.Money, description string) (*domain.CheckoutSession, error) {
	body, err := json.Marshal(checkoutRequest{
		OrderCode:   orderCode,
		Amount:      amount.Int64(),
		Description: description,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal checkout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build checkout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", c.sigSvc.Sign(c.secret, string(body)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("order_code", orderCode).
			Str("body", string(respBody)).
			Msg("gateway checkout returned non-2xx")
		return nil, fmt.Errorf("gateway checkout: unexpected status %d", resp.StatusCode)
	}

	var out checkoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode checkout response: %w", err)
	}

	return &domain.CheckoutSession{
		OrderCode:   out.OrderCode,
		CheckoutURL: out.CheckoutURL,
		QRCode:      out.QRCode,
	}, nil
}
