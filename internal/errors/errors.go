// Package errors provides the error taxonomy of the coffee shop API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import (
	"fmt"
	"net/http"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
// The lock and password kinds carry the extra fields their clients need;
// the other kinds leave them zero.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`

	RemainingAttempts int    `json:"remaining_attempts,omitempty"`
	RemainingMinutes  int    `json:"remaining_min,omitempty"`
	LockReason        string `json:"lock_reason,omitempty"`
	Permanent         bool   `json:"is_permanent,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is matches AppErrors by code so sentinels compare equal to their copies.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func (e *AppError) clone() *AppError {
	c := *e
	return &c
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	c := sentinel.clone()
	c.Internal = internal
	return c
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	c := sentinel.clone()
	c.Message = message
	return c
}

// Authentication errors.
var (
	ErrInvalidCredentials       = &AppError{Code: "INVALID_CREDENTIALS", Message: "Credenciales inválidas", StatusCode: http.StatusUnauthorized}
	ErrInvalidPassword          = &AppError{Code: "INVALID_PASSWORD", Message: "Credenciales inválidas", StatusCode: http.StatusUnauthorized}
	ErrAccountLocked            = &AppError{Code: "ACCOUNT_LOCKED", Message: "Cuenta bloqueada temporalmente", StatusCode: http.StatusLocked}
	ErrAccountPermanentlyLocked = &AppError{Code: "ACCOUNT_PERMANENTLY_LOCKED", Message: "Cuenta bloqueada permanentemente. Contacte a un administrador", StatusCode: http.StatusLocked, Permanent: true}
)

// Session errors raised by the request gate.
var (
	ErrUnauthenticated = &AppError{Code: "UNAUTHENTICATED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrSessionExpired  = &AppError{Code: "SESSION_EXPIRED", Message: "Session expired, please log in again", StatusCode: http.StatusUnauthorized}
	ErrTokenInvalid    = &AppError{Code: "TOKEN_INVALID", Message: "Invalid session token", StatusCode: http.StatusForbidden}
	ErrForbidden       = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound     = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail   = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
	ErrCannotDeleteSelf = &AppError{Code: "CANNOT_DELETE_SELF", Message: "You cannot delete your own account", StatusCode: http.StatusBadRequest}
	ErrLastAdmin        = &AppError{Code: "LAST_ADMIN", Message: "The last administrator cannot be removed", StatusCode: http.StatusConflict}
)

// InvalidPassword reports a wrong password together with the attempts left
// before the account locks.
func InvalidPassword(remaining int) *AppError {
	c := ErrInvalidPassword.clone()
	c.RemainingAttempts = remaining
	if remaining == 1 {
		c.Message = "Credenciales inválidas. Queda 1 intento"
	} else {
		c.Message = fmt.Sprintf("Credenciales inválidas. Quedan %d intentos", remaining)
	}
	return c
}

// AccountLocked reports a temporary lock that clears in remainingMin minutes.
func AccountLocked(remainingMin int) *AppError {
	c := ErrAccountLocked.clone()
	c.RemainingMinutes = remainingMin
	c.Message = fmt.Sprintf("Cuenta bloqueada temporalmente. Intente de nuevo en %d minutos", remainingMin)
	return c
}

// TooManyAttempts reports the lock imposed by the failure that reached the threshold.
func TooManyAttempts(remainingMin int) *AppError {
	c := AccountLocked(remainingMin)
	c.Message = fmt.Sprintf("Demasiados intentos fallidos. Cuenta bloqueada por %d minutos", remainingMin)
	return c
}

// AccountPermanentlyLocked reports an administrator-imposed lock.
func AccountPermanentlyLocked(reason string) *AppError {
	c := ErrAccountPermanentlyLocked.clone()
	c.LockReason = reason
	return c
}
