package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
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
	case errors.Is(err, service.ErrInvalidTripID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidInvoiceID),
		errors.Is(err, service.ErrInvalidAction),
		errors.Is(err, service.ErrReminderNotApplicable),
		errors.Is(err, service.ErrNothingToInvoice),
		errors.Is(err, domain.ErrDualLinkedTrip),
		errors.Is(err, domain.ErrUnlinkedTrip),
		errors.Is(err, domain.ErrNegativePrice):
		return http.StatusBadRequest

	// Conflict errors: illegal or lost transitions, exhausted budgets
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrConflictingTransition),
		errors.Is(err, service.ErrDriverAssignmentBusy),
		errors.Is(err, service.ErrDriverAlreadyRegistered),
		errors.Is(err, service.ErrDriverInactive),
		errors.Is(err, service.ErrInvoiceFinalized),
		errors.Is(err, service.ErrInvoiceExists),
		errors.Is(err, service.ErrPaymentRetryLimit),
		errors.Is(err, service.ErrReminderLimit):
		return http.StatusConflict

	// Forbidden
	case errors.Is(err, service.ErrRoleNotAllowed):
		return http.StatusForbidden

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
