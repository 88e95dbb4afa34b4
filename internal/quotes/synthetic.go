package quotes

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/cespare/xxhash/v2"

	"forecastd/pkg/types"
)

// basePrices seeds well-known codes near their real price level.
var basePrices = map[string]float64{
	"600519": 1500.0,
	"000858": 150.0,
	"600036": 40.0,
	"000001": 15.0,
	"600000": 10.0,
	"000002": 20.0,
}

// Synthetic generates deterministic business-day bars per code. It lets the
// daemon run without a market data feed; the same code and end date always
// produce the same series.
type Synthetic struct {
	now func() time.Time
}

// NewSynthetic returns a provider whose series end on today's date.
func NewSynthetic() *Synthetic { return &Synthetic{now: time.Now} }

func (s *Synthetic) FetchHistory(ctx context.Context, code string, days int) ([]types.Bar, error) {
	return s.FetchHistoryBefore(ctx, code, "", days)
}

func (s *Synthetic) FetchHistoryBefore(ctx context.Context, code, before string, days int) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidCode(code) {
		return nil, &NotFoundError{Code: code}
	}
	end := s.now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	if before != "" {
		t, err := time.Parse(DateLayout, before)
		if err != nil {
			return nil, err
		}
		end = t
	}
	if days <= 0 {
		days = 60
	}
	// Walk back to find the first date, then generate forward.
	dates := make([]time.Time, 0, days)
	for d := end.AddDate(0, 0, -1); len(dates) < days; d = d.AddDate(0, 0, -1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			dates = append(dates, d)
		}
	}
	seed := xxhash.Sum64String(code + "|" + dates[len(dates)-1].Format(DateLayout))
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))

	price, ok := basePrices[code]
	if !ok {
		price = 10.0
	}
	bars := make([]types.Bar, days)
	for i := range bars {
		d := dates[days-1-i]
		change := float64(i%7-3)*0.005 + 0.001
		open := price * (1 + change)
		cl := open * (1 + rng.NormFloat64()*0.01)
		high := math.Max(open, cl) * (1 + math.Abs(rng.NormFloat64()*0.005))
		low := math.Min(open, cl) * (1 - math.Abs(rng.NormFloat64()*0.005))
		bars[i] = types.Bar{
			Date:   d.Format(DateLayout),
			Open:   round2(open),
			High:   round2(high),
			Low:    round2(low),
			Close:  round2(cl),
			Volume: float64(1_000_000 + rng.IntN(9_000_000)),
		}
		price = cl
	}
	return bars, nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
