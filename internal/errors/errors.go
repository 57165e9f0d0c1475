package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource conflict")
	ErrBadRequest     = errors.New("bad request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternalServer = errors.New("internal server error")

	// Business errors
	ErrNoDriversAvailable = errors.New("no drivers available")
	ErrRideNotCancelable  = errors.New("ride cannot be canceled in current status")
	ErrOfferNotPending    = errors.New("offer already resolved")
	ErrOfferMismatch      = errors.New("offer is not for this driver")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrRiderHasActiveRide = errors.New("rider already has an active ride")
	ErrDriverBusy         = errors.New("driver is busy")
	ErrPaymentFailed      = errors.New("payment failed")
)

// APIError represents a structured API error
type APIError struct {
	Code       string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new API error
func NewAPIError(code, message string, statusCode int) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Common API errors
func NotFound(resource string) *APIError {
	return NewAPIError("not_found", fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func BadRequest(message string) *APIError {
	return NewAPIError("bad_request", message, http.StatusBadRequest)
}

func Conflict(message string) *APIError {
	return NewAPIError("conflict", message, http.StatusConflict)
}

func InternalError(message string) *APIError {
	return NewAPIError("internal_error", message, http.StatusInternalServerError)
}

func Unauthorized(message string) *APIError {
	return NewAPIError("unauthorized", message, http.StatusUnauthorized)
}

func Forbidden(message string) *APIError {
	return NewAPIError("forbidden", message, http.StatusForbidden)
}

func NoDriversAvailable() *APIError {
	return NewAPIError("no_drivers_available", "no drivers available in your area", http.StatusServiceUnavailable)
}

func RideNotCancelable(status string) *APIError {
	return NewAPIError("ride_not_cancelable", fmt.Sprintf("ride cannot be canceled while %s", status), http.StatusConflict)
}

func OfferNotPending() *APIError {
	return NewAPIError("offer_not_pending", "this ride offer has already been resolved", http.StatusGone)
}

func InvalidTransition(from, to string) *APIError {
	return NewAPIError("invalid_transition", fmt.Sprintf("cannot transition from %s to %s", from, to), http.StatusBadRequest)
}

func RiderHasActiveRide() *APIError {
	return NewAPIError("active_ride_exists", "you already have an active ride", http.StatusConflict)
}

func PaymentFailed(message string) *APIError {
	return NewAPIError("payment_failed", message, http.StatusPaymentRequired)
}
