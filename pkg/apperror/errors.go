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

// ---- Ledger (PAY) ----

func ErrInsufficientFunds() *AppError {
	return New("PAY_001", "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New("PAY_002", "Invalid amount", http.StatusBadRequest)
}

// ErrDuplicateReference is returned only when a reference collides with an
// entry of a different shape. A straight retry with the same reference is a
// success path and returns the stored entry instead.
func ErrDuplicateReference() *AppError {
	return New("PAY_003", "Reference already used by another operation", http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrWalletInactive() *AppError {
	return New("PAY_005", "Wallet is not active", http.StatusUnprocessableEntity)
}

// ---- Limits (LIM) ----

func ErrDailyLimitExceeded() *AppError {
	return New("LIM_001", "Daily transaction limit exceeded", http.StatusUnprocessableEntity)
}

func ErrMonthlyLimitExceeded() *AppError {
	return New("LIM_002", "Monthly transaction limit exceeded", http.StatusUnprocessableEntity)
}

// ---- Settlement (SET) ----

func ErrInvalidState() *AppError {
	return New("SET_001", "Settlement is not in a state that allows this transition", http.StatusConflict)
}

// ---- Gateway (GW) ----

// ErrGatewayUnavailable marks a transient gateway failure. The payment stays
// PENDING and the caller may retry reconciliation later.
func ErrGatewayUnavailable(err error) *AppError {
	return Wrap("GW_001", "Payment gateway unavailable", http.StatusServiceUnavailable, err)
}

// ErrGatewayRejected marks a terminal gateway-side rejection of a payment.
func ErrGatewayRejected() *AppError {
	return New("GW_002", "Payment rejected by gateway", http.StatusUnprocessableEntity)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New("PAY_002", message, http.StatusBadRequest)
}
