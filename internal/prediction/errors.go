package prediction

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"forecastd/internal/admission"
	"forecastd/internal/manager"
	"forecastd/internal/quotes"
)

// InvalidRequestError rejects a malformed request before any work.
type InvalidRequestError struct{ Msg string }

func (e *InvalidRequestError) Error() string   { return "invalid request: " + e.Msg }
func (e *InvalidRequestError) StatusCode() int { return http.StatusBadRequest }
func (e *InvalidRequestError) Temporary() bool { return false }

func invalidf(format string, args ...any) error {
	return &InvalidRequestError{Msg: fmt.Sprintf(format, args...)}
}

// InsufficientHistoryError is returned when too few bars precede the
// forecast start.
type InsufficientHistoryError struct {
	Code string
	Have int
	Need int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s: have %d bars, need %d", e.Code, e.Have, e.Need)
}
func (e *InsufficientHistoryError) StatusCode() int { return http.StatusUnprocessableEntity }
func (e *InsufficientHistoryError) Temporary() bool { return false }

// InputTooLongError is returned when the series exceeds the variant's
// context length.
type InputTooLongError struct {
	Variant string
	Length  int
	Max     int
}

func (e *InputTooLongError) Error() string {
	return fmt.Sprintf("input of %d bars exceeds %s context length %d", e.Length, e.Variant, e.Max)
}
func (e *InputTooLongError) StatusCode() int { return http.StatusUnprocessableEntity }
func (e *InputTooLongError) Temporary() bool { return false }

// ServiceUnavailableError is returned when the model could not be borrowed
// inside admitted work. It is never retried here.
type ServiceUnavailableError struct{ Err error }

func (e *ServiceUnavailableError) Error() string   { return "service unavailable: " + e.Err.Error() }
func (e *ServiceUnavailableError) Unwrap() error   { return e.Err }
func (e *ServiceUnavailableError) StatusCode() int { return http.StatusServiceUnavailable }
func (e *ServiceUnavailableError) Temporary() bool { return true }

func IsInvalidRequest(err error) bool {
	var e *InvalidRequestError
	return errors.As(err, &e)
}

func IsInsufficientHistory(err error) bool {
	var e *InsufficientHistoryError
	return errors.As(err, &e)
}

func IsInputTooLong(err error) bool {
	var e *InputTooLongError
	return errors.As(err, &e)
}

func IsServiceUnavailable(err error) bool {
	var e *ServiceUnavailableError
	return errors.As(err, &e)
}

// Kind returns a stable machine-readable name for err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsServiceUnavailable(err):
		return "service_unavailable"
	case IsInvalidRequest(err), quotes.IsInvalidQuery(err):
		return "invalid_request"
	case IsInsufficientHistory(err):
		return "insufficient_history"
	case IsInputTooLong(err):
		return "input_too_long"
	case manager.IsInvalidVariant(err):
		return "invalid_variant"
	case manager.IsBusy(err):
		return "busy"
	case manager.IsLoadFailed(err):
		return "load_failed"
	case manager.IsModelUnavailable(err):
		return "model_unavailable"
	case admission.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case quotes.IsNotFound(err):
		return "not_found"
	case quotes.IsSourceUnavailable(err):
		return "source_unavailable"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}
