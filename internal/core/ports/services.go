package ports

import (
	"context"
	"time"

	"ticket-wallet-service/internal/core/domain"

	"github.com/google/uuid"
)

// SignatureService handles HMAC-SHA256 signing and verification of
// gateway payloads.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// TokenService validates bearer tokens issued by the platform's auth
// service. This service never issues end-user tokens itself.
type TokenService interface {
	Generate(userID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
}

// ResponseCache is the Redis-layer replay fast path: resolved webhook
// responses cached by order code.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// GatewayClient talks to the external payment gateway.
type GatewayClient interface {
	// CreateCheckout registers an order with the gateway and returns the
	// checkout session the user is redirected to.
	CreateCheckout(ctx context.Context, orderCode string, amount domain.Money, description string) (*domain.CheckoutSession, error)
}

// --- Service Ports (Business Logic) ---

// WalletService exposes read operations and wallet provisioning.
type WalletService interface {
	CreateWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	ListEntries(ctx context.Context, userID uuid.UUID, params EntryListQuery) ([]domain.LedgerEntry, int64, error)
	GetSummary(ctx context.Context, userID uuid.UUID) (*LedgerSummary, error)
}

// EntryListQuery is the caller-facing filter for transaction history.
type EntryListQuery struct {
	Status   *domain.EntryStatus
	Type     *domain.EntryType
	Page     int
	PageSize int
}

// TopupService drives the top-up request lifecycle.
type TopupService interface {
	RequestTopup(ctx context.Context, userID uuid.UUID, amount domain.Money) (*domain.TopupRequest, error)
	// ExpireStaleTopups fails PENDING requests past their expiry window.
	// Returns the number of requests expired.
	ExpireStaleTopups(ctx context.Context) (int, error)
}

// PaymentService charges and refunds bookings against a wallet.
type PaymentService interface {
	ChargePayment(ctx context.Context, req ChargeRequest) (*domain.LedgerEntry, error)
	RefundPayment(ctx context.Context, req RefundRequest) (*domain.LedgerEntry, error)
}

// ChargeRequest holds validated input for a booking charge.
type ChargeRequest struct {
	UserID      uuid.UUID
	BookingRef  string
	Amount      domain.Money
	Description string
}

// RefundRequest holds validated input for a booking refund.
type RefundRequest struct {
	UserID     uuid.UUID
	BookingRef string
	Amount     *domain.Money // nil = full refund
	Reason     string
}

// WebhookService is the idempotent consumer of gateway callbacks.
type WebhookService interface {
	// HandleGatewayEvent verifies, parses and reconciles one delivery.
	// Replays of already-resolved events return the resolved entry.
	HandleGatewayEvent(ctx context.Context, rawBody []byte, signature string) (*domain.LedgerEntry, error)
}
