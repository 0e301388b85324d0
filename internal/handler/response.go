package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
// Unmapped errors are attached to the context for the access log and answered
// with a generic message.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal server error"
	}
	c.JSON(code, ErrorResponse{Error: msg})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidAgentID),
		errors.Is(err, service.ErrInvalidOrderID),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidZone),
		errors.Is(err, service.ErrInvalidPriority),
		errors.Is(err, service.ErrInvalidRating),
		errors.Is(err, service.ErrInvalidWithdrawalMethod),
		errors.Is(err, service.ErrInvalidDestination),
		errors.Is(err, service.ErrInvalidTransactionType),
		errors.Is(err, service.ErrInvalidRateConfig),
		errors.Is(err, service.ErrUnknownState):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, repository.ErrAlreadyExists),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrDuplicateSettlement),
		errors.Is(err, service.ErrTransactionFinalized):
		return http.StatusConflict

	// Business rule errors
	case errors.Is(err, service.ErrInsufficientFunds),
		errors.Is(err, service.ErrWalletInactive),
		errors.Is(err, service.ErrAmountOutOfRange):
		return http.StatusUnprocessableEntity

	// Service unavailable
	case errors.Is(err, service.ErrNoCandidateAvailable),
		errors.Is(err, service.ErrConfigMissing):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
