// Package quotes supplies historical daily bars for an instrument.
package quotes

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"sort"
	"time"

	"forecastd/pkg/types"
)

// DateLayout is the layout of every date string exchanged with providers.
const DateLayout = "2006-01-02"

// Provider fetches the most recent days bars for code, ordered by date.
type Provider interface {
	FetchHistory(ctx context.Context, code string, days int) ([]types.Bar, error)
}

// BeforeProvider is implemented by providers that can serve history ending
// strictly before a date. Callers fall back to FetchHistory otherwise.
type BeforeProvider interface {
	FetchHistoryBefore(ctx context.Context, code, before string, days int) ([]types.Bar, error)
}

// NotFoundError is returned for an unknown instrument.
type NotFoundError struct{ Code string }

func (e *NotFoundError) Error() string   { return "instrument not found: " + e.Code }
func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }
func (e *NotFoundError) Temporary() bool { return false }

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// SourceUnavailableError wraps a failure of the underlying data source.
type SourceUnavailableError struct{ Err error }

func (e *SourceUnavailableError) Error() string   { return "quote source unavailable: " + e.Err.Error() }
func (e *SourceUnavailableError) Unwrap() error   { return e.Err }
func (e *SourceUnavailableError) StatusCode() int { return http.StatusBadGateway }
func (e *SourceUnavailableError) Temporary() bool { return false }

// IsSourceUnavailable reports whether err is a SourceUnavailableError.
func IsSourceUnavailable(err error) bool {
	var e *SourceUnavailableError
	return errors.As(err, &e)
}

var codePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,32}$`)

// ValidCode reports whether code is a well-formed instrument code.
func ValidCode(code string) bool { return codePattern.MatchString(code) && code != "." && code != ".." }

// window returns the last days bars dated before before (all when empty).
func window(bars []types.Bar, before string, days int) []types.Bar {
	end := len(bars)
	if before != "" {
		end = sort.Search(len(bars), func(i int) bool { return bars[i].Date >= before })
	}
	start := 0
	if days > 0 && end-days > 0 {
		start = end - days
	}
	out := make([]types.Bar, end-start)
	copy(out, bars[start:end])
	return out
}

// Static serves fixed in-memory series; useful for tests and demos.
type Static struct {
	series map[string][]types.Bar
}

// NewStatic copies and sorts the given series.
func NewStatic(series map[string][]types.Bar) *Static {
	s := &Static{series: make(map[string][]types.Bar, len(series))}
	for code, bars := range series {
		cp := append([]types.Bar(nil), bars...)
		sort.Slice(cp, func(i, j int) bool { return cp[i].Date < cp[j].Date })
		s.series[code] = cp
	}
	return s
}

func (s *Static) FetchHistory(ctx context.Context, code string, days int) ([]types.Bar, error) {
	return s.FetchHistoryBefore(ctx, code, "", days)
}

func (s *Static) FetchHistoryBefore(ctx context.Context, code, before string, days int) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bars, ok := s.series[code]
	if !ok {
		return nil, &NotFoundError{Code: code}
	}
	return window(bars, before, days), nil
}

// NextBusinessDay returns the first Monday-to-Friday date after d.
func NextBusinessDay(d time.Time) time.Time {
	d = d.AddDate(0, 0, 1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
