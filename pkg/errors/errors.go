package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Standard error codes
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNotFound           = "RESOURCE_NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeBadRequest         = "BAD_REQUEST"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeTimeout            = "TIMEOUT"
)

// Delivery-domain error codes
const (
	CodeMissingCustomer      = "MISSING_CUSTOMER"
	CodeCoordinateMissing    = "COORDINATE_MISSING"
	CodeCoordinateZero       = "COORDINATE_ZERO"
	CodeCoordinateOutOfRange = "COORDINATE_OUT_OF_RANGE"
	CodeGeocodingFailed      = "GEOCODING_FAILED"
	CodeDistanceExceeded     = "DISTANCE_EXCEEDED"
	CodePriceLocked          = "PRICE_LOCKED"
	CodeNonPositiveDistance  = "NON_POSITIVE_DISTANCE"
)

// AppError represents an application error with HTTP status and error code
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	HTTPStatus int               `json:"-"`
	Err        error             `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// WithDetail adds a single detail to the error
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Wrap wraps an existing error
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

// NewAppError creates a new AppError
func NewAppError(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// ErrValidation creates a validation error
func ErrValidation(message string) *AppError {
	return NewAppError(CodeValidationError, message, http.StatusBadRequest)
}

// ErrValidationWithFields creates a validation error with field details
func ErrValidationWithFields(message string, fields map[string]string) *AppError {
	return ErrValidation(message).WithDetails(fields)
}

// ErrNotFound creates a not found error
func ErrNotFound(resource string) *AppError {
	return NewAppError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// ErrNotFoundWithID creates a not found error with ID
func ErrNotFoundWithID(resource, id string) *AppError {
	return ErrNotFound(resource).WithDetail("id", id)
}

// ErrConflict creates a conflict error
func ErrConflict(message string) *AppError {
	return NewAppError(CodeConflict, message, http.StatusConflict)
}

// ErrInternal creates an internal error
func ErrInternal(message string) *AppError {
	if message == "" {
		message = "an internal error occurred"
	}
	return NewAppError(CodeInternalError, message, http.StatusInternalServerError)
}

// ErrBadRequest creates a bad request error
func ErrBadRequest(message string) *AppError {
	return NewAppError(CodeBadRequest, message, http.StatusBadRequest)
}

// ErrServiceUnavailable creates a service unavailable error
func ErrServiceUnavailable(service string) *AppError {
	return NewAppError(CodeServiceUnavailable, fmt.Sprintf("%s is temporarily unavailable", service), http.StatusServiceUnavailable)
}

// ErrTimeout creates a timeout error
func ErrTimeout(operation string) *AppError {
	return NewAppError(CodeTimeout, fmt.Sprintf("%s timed out", operation), http.StatusGatewayTimeout)
}

// Delivery-domain errors

// ErrMissingCustomer signals a quote attempt with no resolved customer
func ErrMissingCustomer() *AppError {
	return NewAppError(CodeMissingCustomer,
		"no customer selected: the delivery cost is calculated from the customer's location, select a customer first",
		http.StatusUnprocessableEntity)
}

// ErrCoordinateMissing signals an address without resolvable coordinates
func ErrCoordinateMissing(message string) *AppError {
	if message == "" {
		message = "the address could not be geocoded; verify street, city, state, postal code and country"
	}
	return NewAppError(CodeCoordinateMissing, message, http.StatusUnprocessableEntity)
}

// ErrCoordinateZero signals the (0,0) geocoding-failure sentinel
func ErrCoordinateZero() *AppError {
	return NewAppError(CodeCoordinateZero,
		"coordinates (0,0) indicate a failed geocoding result and cannot be used",
		http.StatusUnprocessableEntity)
}

// ErrCoordinateOutOfRange signals corrupt or out-of-range coordinates
func ErrCoordinateOutOfRange(lat, lon float64) *AppError {
	return NewAppError(CodeCoordinateOutOfRange,
		fmt.Sprintf("coordinates (%f, %f) are outside the valid latitude/longitude range", lat, lon),
		http.StatusUnprocessableEntity)
}

// ErrGeocodingFailed signals that the geocoding provider could not
// resolve the address
func ErrGeocodingFailed(address string) *AppError {
	return NewAppError(CodeGeocodingFailed,
		fmt.Sprintf("the address %q could not be resolved to coordinates; verify it and try again", address),
		http.StatusUnprocessableEntity)
}

// ErrDistanceExceeded signals a delivery beyond the configured maximum
func ErrDistanceExceeded(distance, max float64) *AppError {
	return NewAppError(CodeDistanceExceeded,
		fmt.Sprintf("delivery distance %.2f miles exceeds the configured maximum of %.2f miles", distance, max),
		http.StatusUnprocessableEntity)
}

// ErrPriceLocked signals a locked line that will not be recomputed implicitly
func ErrPriceLocked(lineID string) *AppError {
	return NewAppError(CodePriceLocked,
		"delivery price is locked and will not be recalculated automatically; use the recalculate action",
		http.StatusConflict).WithDetail("lineId", lineID)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// FromError converts a standard error to an AppError
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return ErrInternal("").Wrap(err)
}

// MapDomainError maps common domain error messages to AppErrors
func MapDomainError(err error) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := AsAppError(err); ok {
		return appErr
	}

	msg := err.Error()

	switch {
	case contains(msg, "not found"):
		return ErrNotFound("resource").Wrap(err)
	case contains(msg, "already exists"):
		return ErrConflict(msg).Wrap(err)
	case contains(msg, "locked"):
		return NewAppError(CodePriceLocked, msg, http.StatusConflict).Wrap(err)
	case contains(msg, "invalid"), contains(msg, "required"):
		return ErrValidation(msg).Wrap(err)
	case contains(msg, "timeout"):
		return ErrTimeout("operation").Wrap(err)
	default:
		return ErrInternal("").Wrap(err)
	}
}

func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
