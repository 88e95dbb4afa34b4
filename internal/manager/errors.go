package manager

import (
	"errors"
	"net/http"
)

// InvalidVariantError is returned when a variant id is not in the catalog.
type InvalidVariantError struct{ ID string }

func (e *InvalidVariantError) Error() string   { return "invalid variant: " + e.ID }
func (e *InvalidVariantError) StatusCode() int { return http.StatusBadRequest }
func (e *InvalidVariantError) Temporary() bool { return false }

// IsInvalidVariant reports whether err is an InvalidVariantError.
func IsInvalidVariant(err error) bool {
	var e *InvalidVariantError
	return errors.As(err, &e)
}

// BusyError signals that another transition holds the transition lock.
type BusyError struct{ Current State }

func (e *BusyError) Error() string   { return "model transition in progress (" + string(e.Current) + ")" }
func (e *BusyError) StatusCode() int { return http.StatusConflict }
func (e *BusyError) Temporary() bool { return true }

// IsBusy reports whether err is a BusyError.
func IsBusy(err error) bool {
	var e *BusyError
	return errors.As(err, &e)
}

// LoadFailedError wraps the cause of a failed load.
type LoadFailedError struct {
	Variant string
	Err     error
}

func (e *LoadFailedError) Error() string   { return "load " + e.Variant + ": " + e.Err.Error() }
func (e *LoadFailedError) Unwrap() error   { return e.Err }
func (e *LoadFailedError) StatusCode() int { return http.StatusInternalServerError }
func (e *LoadFailedError) Temporary() bool { return false }

// IsLoadFailed reports whether err is a LoadFailedError.
func IsLoadFailed(err error) bool {
	var e *LoadFailedError
	return errors.As(err, &e)
}

// ModelUnavailableError is returned by BorrowCurrent outside Ready.
type ModelUnavailableError struct{ State State }

func (e *ModelUnavailableError) Error() string {
	return "model unavailable (" + string(e.State) + ")"
}
func (e *ModelUnavailableError) StatusCode() int { return http.StatusServiceUnavailable }
func (e *ModelUnavailableError) Temporary() bool { return true }

// IsModelUnavailable reports whether err is a ModelUnavailableError.
func IsModelUnavailable(err error) bool {
	var e *ModelUnavailableError
	return errors.As(err, &e)
}
