package quotes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"forecastd/pkg/types"
)

// historyOnly hides FetchHistoryBefore so Range takes the FetchHistory path.
type historyOnly struct{ p *Static }

func (h historyOnly) FetchHistory(ctx context.Context, code string, days int) ([]types.Bar, error) {
	return h.p.FetchHistory(ctx, code, days)
}

type failing struct{}

func (failing) FetchHistory(context.Context, string, int) ([]types.Bar, error) {
	return nil, &SourceUnavailableError{Err: errors.New("feed down")}
}

func weekBars() *Static {
	return NewStatic(map[string][]types.Bar{
		"600000": {
			{Date: "2024-01-02", Close: 10.0},
			{Date: "2024-01-03", Close: 10.2},
			{Date: "2024-01-04", Close: 10.1},
			{Date: "2024-01-05", Open: 10.1, High: 10.6, Low: 10.0, Close: 10.5, Volume: 900},
			{Date: "2024-01-08", Close: 10.4},
		},
		"empty": {},
	})
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	sum, err := Summary(ctx, weekBars(), "600000")
	require.NoError(t, err)
	require.Equal(t, "2024-01-08", sum.Date)
	require.Equal(t, 10.5, sum.PrevClose)
	require.Equal(t, -0.1, sum.Change)
	require.Equal(t, -0.95, sum.ChangePct)

	_, err = Summary(ctx, weekBars(), "empty")
	require.True(t, IsNotFound(err), "got %v", err)
	_, err = Summary(ctx, weekBars(), "../x")
	require.True(t, IsInvalidQuery(err), "got %v", err)
	_, err = Summary(ctx, failing{}, "600000")
	require.True(t, IsSourceUnavailable(err), "got %v", err)
}

func TestHistory_DaysBounds(t *testing.T) {
	ctx := context.Background()
	bars, err := History(ctx, weekBars(), "600000", 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	require.Equal(t, "2024-01-08", bars[1].Date)

	bars, err = History(ctx, weekBars(), "600000", 0)
	require.NoError(t, err)
	require.Len(t, bars, 5)

	for _, days := range []int{-1, MaxHistoryDays + 1} {
		_, err = History(ctx, weekBars(), "600000", days)
		require.True(t, IsInvalidQuery(err), "days=%d got %v", days, err)
	}
	_, err = History(ctx, weekBars(), "nope", 5)
	require.True(t, IsNotFound(err), "got %v", err)
	_, err = History(ctx, weekBars(), "empty", 5)
	require.True(t, IsNotFound(err), "got %v", err)
}

func TestRange_InclusiveBothPaths(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)
	for name, p := range map[string]Provider{"before": weekBars(), "history": historyOnly{weekBars()}} {
		bars, err := Range(ctx, p, "600000", "2024-01-03", "2024-01-05", now)
		require.NoError(t, err, name)
		require.Len(t, bars, 3, name)
		require.Equal(t, "2024-01-03", bars[0].Date, name)
		require.Equal(t, "2024-01-05", bars[2].Date, name)

		// A weekend-only range is empty, not an error.
		bars, err = Range(ctx, p, "600000", "2024-01-06", "2024-01-07", now)
		require.NoError(t, err, name)
		require.Empty(t, bars, name)
	}

	bars, err := Range(ctx, historyOnly{weekBars()}, "600000", "2024-02-01", "2024-02-02", now)
	require.NoError(t, err)
	require.Empty(t, bars)
}

func TestRange_Validation(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	cases := [][2]string{
		{"2024-1-3", "2024-01-05"},
		{"2024-01-03", ""},
		{"2024-01-05", "2024-01-03"},
		{"2022-01-01", "2024-01-01"},
	}
	for _, c := range cases {
		_, err := Range(ctx, weekBars(), "600000", c[0], c[1], now)
		require.True(t, IsInvalidQuery(err), "%v got %v", c, err)
	}
	_, err := Range(ctx, weekBars(), "missing", "2024-01-03", "2024-01-05", now)
	require.True(t, IsNotFound(err), "got %v", err)
}
