package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Wallet & Ledger Business Logic (WAL) ----

func ErrNotFound(entity string) *AppError {
	return New("WAL_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrWalletFrozen() *AppError {
	return New("WAL_002", "Wallet is not active", http.StatusForbidden)
}

func ErrInvalidAmount() *AppError {
	return New("WAL_003", "Invalid amount", http.StatusBadRequest)
}

func ErrAmountTooSmall(minimum int64) *AppError {
	return New("WAL_004", fmt.Sprintf("Amount is below the minimum top-up of %d", minimum), http.StatusBadRequest)
}

func ErrDuplicateReference() *AppError {
	return New("WAL_005", "External reference already used", http.StatusConflict)
}

func ErrInsufficientBalance() *AppError {
	return New("WAL_006", "Insufficient wallet balance", http.StatusPaymentRequired)
}

func ErrInvalidStateTransition() *AppError {
	return New("WAL_007", "Ledger entry is already in a terminal state", http.StatusConflict)
}

func ErrConcurrentUpdateConflict() *AppError {
	return New("WAL_008", "Wallet was modified concurrently, retry the request", http.StatusConflict)
}

func ErrRefundNotAllowed() *AppError {
	return New("WAL_009", "Original entry is not eligible for refund", http.StatusBadRequest)
}

func ErrRefundAmountExceedsOriginal() *AppError {
	return New("WAL_010", "Refund amount exceeds the original payment", http.StatusBadRequest)
}

// ---- Security (SEC) ----

func ErrUntrustedWebhook() *AppError {
	return New("SEC_001", "Webhook signature verification failed", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("SEC_002", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

func ErrGatewayUnavailable(err error) *AppError {
	return Wrap("SYS_002", "Payment gateway unavailable", http.StatusBadGateway, err)
}

// Validation returns a WAL_003-style validation error with a custom message.
func Validation(message string) *AppError {
	return New("WAL_003", message, http.StatusBadRequest)
}
