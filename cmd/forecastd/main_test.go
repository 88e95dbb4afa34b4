package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"forecastd/pkg/types"
)

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := splitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestBuildConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	body := "addr: :7000\ndefault_variant: kronos-base\nmax_concurrent: 3\nquotes_dir: /from/file\n"
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cmd := newServeCmd()
	if err := cmd.Flags().Parse([]string{"--addr", ":9000"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	f := serveFlags{configPath: p, addr: ":9000"}
	env := envMap(map[string]string{
		"FORECASTD_ADDR":           ":8000",
		"FORECASTD_QUOTES_DIR":     "/from/env",
		"FORECASTD_CORS_ORIGINS":   "http://a, http://b",
		"FORECASTD_MAX_CONCURRENT": "not-a-number",
	})
	cfg, err := buildConfig(cmd, f, env)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("flag should win, got %q", cfg.Addr)
	}
	if cfg.QuotesDir != "/from/env" {
		t.Fatalf("env should override file, got %q", cfg.QuotesDir)
	}
	if cfg.DefaultVariant != "kronos-base" || cfg.MaxConcurrent != 3 {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if !cfg.CORSEnabled || len(cfg.CORSOrigins) != 2 {
		t.Fatalf("cors from env: %v %v", cfg.CORSEnabled, cfg.CORSOrigins)
	}
	if cfg.Workers != 3 || cfg.Backend != "simulated" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestBuildConfig_ValidationAndLoadErrors(t *testing.T) {
	cmd := newServeCmd()
	if _, err := buildConfig(cmd, serveFlags{}, envMap(map[string]string{"FORECASTD_BACKEND": "sidecar"})); err == nil {
		t.Fatalf("expected sidecar_url validation error")
	}
	if _, err := buildConfig(cmd, serveFlags{configPath: "/no/such/file.yaml"}, envMap(nil)); err == nil {
		t.Fatalf("expected load error")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger("warn", "json", &buf)
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output: %s", buf.String())
	}
	buf.Reset()
	console := newLogger("bogus", "console", &buf)
	console.Info().Msg("console line")
	if !strings.Contains(buf.String(), "console line") || strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("expected console output: %s", buf.String())
	}
}

func TestFetchAndRenderStatus(t *testing.T) {
	dl := true
	want := types.StatusResponse{
		State:            "ready",
		VariantID:        "kronos-small",
		DownloadOccurred: &dl,
		Borrows:          1,
		LoadsTotal:       2,
		Admission:        types.AdmissionStatus{Capacity: 10, InUse: 1},
		CacheEntries:     4,
		LastError:        "load kronos-base: boom",
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/model/status" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	st, err := fetchStatus(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if st.VariantID != "kronos-small" || st.Admission.Capacity != 10 {
		t.Fatalf("unexpected status: %+v", st)
	}
	out := renderStatus(st)
	for _, s := range []string{"forecastd", "ready", "kronos-small", "1/10 in use", "4 entries", "boom"} {
		if !strings.Contains(out, s) {
			t.Fatalf("missing %q in:\n%s", s, out)
		}
	}
}

func TestFetchStatus_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()
	if _, err := fetchStatus(context.Background(), srv.URL); err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected 500 error, got %v", err)
	}
}

func TestStatusCommandJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(types.StatusResponse{State: "loading", VariantID: "kronos-mini"})
	}))
	defer srv.Close()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"status", "--url", srv.URL, "--json"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), `"state": "loading"`) {
		t.Fatalf("unexpected output: %s", out.String())
	}
}
