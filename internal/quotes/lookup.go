package quotes

import (
	"context"
	"errors"
	"net/http"
	"time"

	"forecastd/pkg/types"
)

const (
	DefaultHistoryDays = 30
	MaxHistoryDays     = 365
)

// InvalidQueryError rejects malformed quote lookups.
type InvalidQueryError struct{ Msg string }

func (e *InvalidQueryError) Error() string   { return e.Msg }
func (e *InvalidQueryError) StatusCode() int { return http.StatusBadRequest }
func (e *InvalidQueryError) Temporary() bool { return false }

// IsInvalidQuery reports whether err is an InvalidQueryError.
func IsInvalidQuery(err error) bool {
	var e *InvalidQueryError
	return errors.As(err, &e)
}

// Summary reports the latest session of code against the one before it.
func Summary(ctx context.Context, p Provider, code string) (types.QuoteSummary, error) {
	if !ValidCode(code) {
		return types.QuoteSummary{}, &InvalidQueryError{Msg: "invalid instrument code"}
	}
	bars, err := p.FetchHistory(ctx, code, 2)
	if err != nil {
		return types.QuoteSummary{}, err
	}
	if len(bars) == 0 {
		return types.QuoteSummary{}, &NotFoundError{Code: code}
	}
	last := bars[len(bars)-1]
	out := types.QuoteSummary{
		Code:   code,
		Date:   last.Date,
		Open:   last.Open,
		High:   last.High,
		Low:    last.Low,
		Close:  last.Close,
		Volume: last.Volume,
	}
	if len(bars) > 1 {
		prev := bars[len(bars)-2].Close
		out.PrevClose = prev
		out.Change = round2(last.Close - prev)
		if prev != 0 {
			out.ChangePct = round2((last.Close - prev) / prev * 100)
		}
	}
	return out, nil
}

// History returns the most recent days bars (DefaultHistoryDays when 0).
// An instrument without bars is reported as not found.
func History(ctx context.Context, p Provider, code string, days int) ([]types.Bar, error) {
	if !ValidCode(code) {
		return nil, &InvalidQueryError{Msg: "invalid instrument code"}
	}
	if days == 0 {
		days = DefaultHistoryDays
	}
	if days < 1 || days > MaxHistoryDays {
		return nil, &InvalidQueryError{Msg: "days must be between 1 and 365"}
	}
	bars, err := p.FetchHistory(ctx, code, days)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, &NotFoundError{Code: code}
	}
	return bars, nil
}

// Range returns the bars dated within [start, end], both inclusive. It is
// used to compare a forecast against what actually happened, so an empty
// result is not an error.
func Range(ctx context.Context, p Provider, code, start, end string, now time.Time) ([]types.Bar, error) {
	if !ValidCode(code) {
		return nil, &InvalidQueryError{Msg: "invalid instrument code"}
	}
	from, err := time.Parse(DateLayout, start)
	if err != nil {
		return nil, &InvalidQueryError{Msg: "start_date must be YYYY-MM-DD"}
	}
	to, err := time.Parse(DateLayout, end)
	if err != nil {
		return nil, &InvalidQueryError{Msg: "end_date must be YYYY-MM-DD"}
	}
	if to.Before(from) {
		return nil, &InvalidQueryError{Msg: "end_date is before start_date"}
	}
	span := int(to.Sub(from).Hours()/24) + 1
	if span > MaxHistoryDays+1 {
		return nil, &InvalidQueryError{Msg: "date range exceeds 365 days"}
	}

	var bars []types.Bar
	if bp, ok := p.(BeforeProvider); ok {
		bars, err = bp.FetchHistoryBefore(ctx, code, to.AddDate(0, 0, 1).Format(DateLayout), span)
	} else {
		// Calendar days since start bound the number of bars to ask for.
		back := int(now.Sub(from).Hours()/24) + 1
		if back < 1 {
			return []types.Bar{}, nil
		}
		bars, err = p.FetchHistory(ctx, code, back)
	}
	if err != nil {
		return nil, err
	}
	out := []types.Bar{}
	for _, b := range bars {
		if b.Date >= start && b.Date <= end {
			out = append(out, b)
		}
	}
	return out, nil
}
