package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"

	"forecastd/pkg/types"
)

func TestE2E_LoadPredictSwitchUnload(t *testing.T) {
	s := newStack(t, 4)
	ctx := context.Background()

	resp, _ := httpDo(t, http.MethodGet, s.srv.URL+"/readyz", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before load, got %d", resp.StatusCode)
	}
	if err := s.mgr.EnsureLoaded(ctx, "kronos-small"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if resp, _ := httpDo(t, http.MethodGet, s.srv.URL+"/readyz", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected ready, got %d", resp.StatusCode)
	}
	if s.fetches.Load() == 0 {
		t.Fatalf("expected artifacts to be fetched from the hub on first load")
	}

	_, body := httpDo(t, http.MethodGet, s.srv.URL+"/model/status", nil)
	var st types.StatusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("status json: %v", err)
	}
	if st.State != "ready" || st.VariantID != "kronos-small" || st.DownloadOccurred == nil || !*st.DownloadOccurred {
		t.Fatalf("unexpected status: %s", body)
	}
	if st.Admission.Capacity != 4 {
		t.Fatalf("admission capacity=%d", st.Admission.Capacity)
	}

	// First predict computes, second is served from cache.
	req := []byte(`{"code":"600000","horizon":3}`)
	resp, body = httpDo(t, http.MethodPost, s.srv.URL+"/predict", req)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("X-Cache") != "miss" {
		t.Fatalf("predict: %d %q %s", resp.StatusCode, resp.Header.Get("X-Cache"), body)
	}
	var f types.Forecast
	if err := json.Unmarshal(body, &f); err != nil {
		t.Fatalf("forecast json: %v", err)
	}
	if f.Variant != "kronos-small" || len(f.Points) != 3 {
		t.Fatalf("unexpected forecast: %s", body)
	}
	for i := 1; i < len(f.Points); i++ {
		if f.Points[i].Date <= f.Points[i-1].Date {
			t.Fatalf("dates not increasing: %s", body)
		}
	}
	resp, _ = httpDo(t, http.MethodPost, s.srv.URL+"/predict", req)
	if resp.Header.Get("X-Cache") != "hit" {
		t.Fatalf("expected cache hit, got %q", resp.Header.Get("X-Cache"))
	}

	// Switching changes the variant; the cached small forecast is not reused.
	resp, body = httpDo(t, http.MethodPost, s.srv.URL+"/model/switch", []byte(`{"variant":"kronos-mini"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("switch: %d %s", resp.StatusCode, body)
	}
	var sw types.SwitchResponse
	_ = json.Unmarshal(body, &sw)
	if sw.PreviousVariant != "kronos-small" || sw.Variant != "kronos-mini" || !sw.DownloadOccurred {
		t.Fatalf("unexpected switch: %s", body)
	}
	if s.backend.Live() != 1 {
		t.Fatalf("expected exactly one live predictor, got %d", s.backend.Live())
	}
	resp, body = httpDo(t, http.MethodPost, s.srv.URL+"/predict", req)
	if resp.Header.Get("X-Cache") != "miss" {
		t.Fatalf("expected miss after switch, got %q", resp.Header.Get("X-Cache"))
	}
	_ = json.Unmarshal(body, &f)
	if f.Variant != "kronos-mini" {
		t.Fatalf("forecast variant=%s", f.Variant)
	}

	_, body = httpDo(t, http.MethodGet, s.srv.URL+"/forecasts/600000/history?limit=10", nil)
	var hist types.HistoryResponse
	if err := json.Unmarshal(body, &hist); err != nil {
		t.Fatalf("history json: %v", err)
	}
	if len(hist.Records) != 2 || hist.Records[0].Variant != "kronos-mini" {
		t.Fatalf("unexpected history: %s", body)
	}

	_, body = httpDo(t, http.MethodGet, s.srv.URL+"/model/events", nil)
	var evs types.EventsResponse
	_ = json.Unmarshal(body, &evs)
	if len(evs.Events) == 0 || evs.Events[0].Name != "load_ready" || evs.Events[0].VariantID != "kronos-mini" {
		t.Fatalf("unexpected events: %s", body)
	}

	if resp, _ := httpDo(t, http.MethodDelete, s.srv.URL+"/cache", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("clear cache: %d", resp.StatusCode)
	}
	if resp, _ := httpDo(t, http.MethodPost, s.srv.URL+"/model/unload", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("unload: %d", resp.StatusCode)
	}
	resp, body = httpDo(t, http.MethodPost, s.srv.URL+"/predict", req)
	if resp.StatusCode != http.StatusServiceUnavailable || resp.Header.Get("Retry-After") == "" {
		t.Fatalf("expected 503 with Retry-After after unload, got %d %s", resp.StatusCode, body)
	}
	var e types.ErrorResponse
	_ = json.Unmarshal(body, &e)
	if e.Kind != "model_unavailable" || !e.Retryable {
		t.Fatalf("unexpected error body: %s", body)
	}
	if s.backend.Live() != 0 {
		t.Fatalf("expected no live predictors, got %d", s.backend.Live())
	}
}

func TestE2E_InvalidVariantKeepsModel(t *testing.T) {
	s := newStack(t, 2)
	if err := s.mgr.EnsureLoaded(context.Background(), "kronos-small"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	resp, body := httpDo(t, http.MethodPost, s.srv.URL+"/model/switch", []byte(`{"variant":"kronos-huge"}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", resp.StatusCode, body)
	}
	if v, ok := s.mgr.CurrentVariant(); !ok || v.ID != "kronos-small" {
		t.Fatalf("resident variant changed: %+v %v", v, ok)
	}
}

func TestE2E_BatchAndConcurrentPredicts(t *testing.T) {
	s := newStack(t, 2)
	if err := s.mgr.EnsureLoaded(context.Background(), "kronos-small"); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	resp, body := httpDo(t, http.MethodPost, s.srv.URL+"/predict/batch", []byte(`{"codes":["600000","000001","../etc"],"horizon":2}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("batch: %d %s", resp.StatusCode, body)
	}
	var br types.BatchPredictResponse
	if err := json.Unmarshal(body, &br); err != nil {
		t.Fatalf("batch json: %v", err)
	}
	if len(br.Results) != 3 || !br.Results[0].Success || !br.Results[1].Success || br.Results[2].Success {
		t.Fatalf("unexpected batch: %s", body)
	}
	if br.Results[0].Code != "600000" || len(br.Results[1].Forecast.Points) != 2 {
		t.Fatalf("batch order or shape wrong: %s", body)
	}

	var wg sync.WaitGroup
	codes := []string{"600519", "000858", "600036", "000002", "600000", "000001"}
	statuses := make([]int, len(codes))
	for i, c := range codes {
		wg.Add(1)
		go func(i int, c string) {
			defer wg.Done()
			resp, err := http.Post(s.srv.URL+"/predict", "application/json", strings.NewReader(`{"code":"`+c+`","horizon":5}`))
			if err != nil {
				return
			}
			_ = resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i, c)
	}
	wg.Wait()
	for i, st := range statuses {
		if st != http.StatusOK {
			t.Fatalf("%s: status=%d", codes[i], st)
		}
	}
	if peak := s.adm.Stats().Peak; peak > 2 {
		t.Fatalf("admission exceeded capacity: peak=%d", peak)
	}
}

func TestE2E_QuotesForComparison(t *testing.T) {
	s := newStack(t, 2)

	resp, body := httpDo(t, http.MethodGet, s.srv.URL+"/quotes/600000/history?days=10", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history: %d %s", resp.StatusCode, body)
	}
	var hist types.QuoteHistoryResponse
	if err := json.Unmarshal(body, &hist); err != nil {
		t.Fatalf("history json: %v", err)
	}
	if len(hist.Bars) != 10 {
		t.Fatalf("expected 10 bars, got %d", len(hist.Bars))
	}

	start, end := hist.Bars[2].Date, hist.Bars[6].Date
	resp, body = httpDo(t, http.MethodGet, s.srv.URL+"/quotes/600000/actual?start_date="+start+"&end_date="+end, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("actual: %d %s", resp.StatusCode, body)
	}
	var act types.ActualQuotesResponse
	if err := json.Unmarshal(body, &act); err != nil {
		t.Fatalf("actual json: %v", err)
	}
	if len(act.Bars) != 5 || act.Bars[0].Date != start || act.Bars[4].Date != end {
		t.Fatalf("unexpected actual bars: %s", body)
	}

	resp, body = httpDo(t, http.MethodGet, s.srv.URL+"/quotes/600000", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"date":"`+hist.Bars[9].Date+`"`) {
		t.Fatalf("summary: %d %s", resp.StatusCode, body)
	}
}
