package quotes

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"forecastd/pkg/types"
)

// CSVDir reads <dir>/<code>.csv files with a header row naming at least
// date, open, high, low and close columns (volume optional).
type CSVDir struct {
	dir string
}

// NewCSVDir checks that dir exists.
func NewCSVDir(dir string) (*CSVDir, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("quotes dir: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("quotes dir %s is not a directory", dir)
	}
	return &CSVDir{dir: dir}, nil
}

func (c *CSVDir) FetchHistory(ctx context.Context, code string, days int) ([]types.Bar, error) {
	return c.FetchHistoryBefore(ctx, code, "", days)
}

func (c *CSVDir) FetchHistoryBefore(ctx context.Context, code, before string, days int) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidCode(code) {
		return nil, &NotFoundError{Code: code}
	}
	f, err := os.Open(filepath.Join(c.dir, code+".csv"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, &NotFoundError{Code: code}
	}
	if err != nil {
		return nil, &SourceUnavailableError{Err: err}
	}
	defer f.Close()
	bars, err := parseBars(f)
	if err != nil {
		return nil, &SourceUnavailableError{Err: fmt.Errorf("%s.csv: %w", code, err)}
	}
	return window(bars, before, days), nil
}

func parseBars(r io.Reader) ([]types.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, need := range []string{"date", "open", "high", "low", "close"} {
		if _, ok := col[need]; !ok {
			return nil, fmt.Errorf("missing column %q", need)
		}
	}
	var bars []types.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		d, err := time.Parse(DateLayout, strings.TrimSpace(rec[col["date"]]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		b := types.Bar{Date: d.Format(DateLayout)}
		fields := []struct {
			name string
			dst  *float64
		}{{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low}, {"close", &b.Close}, {"volume", &b.Volume}}
		for _, fld := range fields {
			i, ok := col[fld.name]
			if !ok {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d %s: %w", line, fld.name, err)
			}
			*fld.dst = v
		}
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date < bars[j].Date })
	return bars, nil
}
