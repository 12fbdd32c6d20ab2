package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "coffeeshop/internal/errors"
	"coffeeshop/internal/middleware"
)

// getPrincipal returns the principal attached by the gate.
// Returns ErrUnauthenticated if not present.
func getPrincipal(c *gin.Context) (*middleware.Principal, error) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		return nil, apperrors.ErrUnauthenticated
	}
	return p, nil
}

// parsePathID reads a UUID path parameter.
// Returns ErrInvalidInput if the parameter is not a valid UUID.
func parsePathID(c *gin.Context, param string) (string, error) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	return id.String(), nil
}

// respondWithError writes a consistent JSON error response.
func respondWithError(c *gin.Context, err error) {
	middleware.RespondError(c, err)
}

// bindError maps a binding failure to INVALID_INPUT.
func bindError(err error) error {
	return apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
}

// ErrorDetail represents the inner error object in an error response.
type ErrorDetail struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	RemainingAttempts int    `json:"remaining_attempts,omitempty"`
	RemainingMinutes  int    `json:"remaining_min,omitempty"`
	LockReason        string `json:"lock_reason,omitempty"`
	Permanent         bool   `json:"is_permanent,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// SuccessResponse is returned by the admin security actions.
type SuccessResponse struct {
	Success   bool  `json:"success"`
	Permanent *bool `json:"permanent,omitempty"`
}
