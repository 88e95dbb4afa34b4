package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"forecastd/pkg/types"
)

const (
	colorText   = "#E5E7EB"
	colorDim    = "#9CA3AF"
	colorReady  = "#22C55E"
	colorBusy   = "#EAB308"
	colorFailed = "#EF4444"
)

type statusFlags struct {
	url     string
	timeout time.Duration
	json    bool
}

func newStatusCmd() *cobra.Command {
	var f statusFlags
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the model status of a running forecastd",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
			defer cancel()
			st, err := fetchStatus(ctx, f.url)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if f.json {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			_, err = fmt.Fprintln(out, renderStatus(st))
			return err
		},
	}
	defURL := "http://127.0.0.1:8080"
	if v := os.Getenv("FORECASTD_URL"); v != "" {
		defURL = v
	}
	cmd.Flags().StringVar(&f.url, "url", defURL, "forecastd base URL (env FORECASTD_URL)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 3*time.Second, "HTTP timeout")
	cmd.Flags().BoolVar(&f.json, "json", false, "print raw JSON")
	return cmd
}

func fetchStatus(ctx context.Context, baseURL string) (types.StatusResponse, error) {
	var st types.StatusResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/model/status", nil)
	if err != nil {
		return st, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return st, fmt.Errorf("get status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return st, fmt.Errorf("get status: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("decode status: %w", err)
	}
	return st, nil
}

func stateColor(state string) string {
	switch state {
	case "ready":
		return colorReady
	case "failed":
		return colorFailed
	case "unloaded":
		return colorDim
	default:
		return colorBusy
	}
}

// renderStatus formats a status snapshot as a bordered panel.
func renderStatus(st types.StatusResponse) string {
	label := lipgloss.NewStyle().Foreground(lipgloss.Color(colorDim)).Width(14)
	value := lipgloss.NewStyle().Foreground(lipgloss.Color(colorText))
	state := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(stateColor(st.State)))

	var rows []string
	row := func(k, v string) {
		rows = append(rows, label.Render(k)+value.Render(v))
	}
	rows = append(rows, label.Render("state")+state.Render(st.State))
	if st.VariantID != "" {
		row("variant", st.VariantID)
	}
	if st.FromVariant != "" {
		row("from", st.FromVariant)
	}
	if st.Reason != "" {
		row("reason", st.Reason)
	}
	if st.LoadedAt > 0 {
		row("loaded at", time.Unix(st.LoadedAt, 0).UTC().Format(time.RFC3339))
	}
	if st.DownloadOccurred != nil {
		row("downloaded", fmt.Sprintf("%t", *st.DownloadOccurred))
	}
	row("borrows", fmt.Sprintf("%d", st.Borrows))
	row("loads", fmt.Sprintf("%d", st.LoadsTotal))
	a := st.Admission
	row("admission", fmt.Sprintf("%d/%d in use, %d waiting, peak %d, %d timeouts", a.InUse, a.Capacity, a.Waiting, a.Peak, a.Timeouts))
	row("cache", fmt.Sprintf("%d entries", st.CacheEntries))
	row("uptime", (time.Duration(st.UptimeSeconds) * time.Second).String())
	if st.LastError != "" {
		rows = append(rows, label.Render("last error")+lipgloss.NewStyle().Foreground(lipgloss.Color(colorFailed)).Render(st.LastError))
	}

	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorText)).Render("forecastd")
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(stateColor(st.State))).
		Padding(0, 1).
		Render(header + "\n" + strings.Join(rows, "\n"))
}
