package e2e

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"syscall"
	"testing"
	"time"

	"forecastd/pkg/types"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func projectRoot(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file: <root>/internal/e2e/blackbox_test.go
	return filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
}

func buildBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("builds the daemon binary")
	}
	bin := filepath.Join(t.TempDir(), "forecastd")
	cmd := exec.Command("go", "build", "-o", bin, "./cmd/forecastd")
	cmd.Dir = projectRoot(t)
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(out))
	}
	return bin
}

// seedModelCache lays out cached snapshots for every builtin variant so the
// daemon never needs the network.
func seedModelCache(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repos := []string{
		"Kronos-mini", "Kronos-small", "Kronos-base",
		"Kronos-Tokenizer-2k", "Kronos-Tokenizer-base", "Kronos-Tokenizer-large",
	}
	for _, r := range repos {
		snap := filepath.Join(dir, "models--NeoQuasar--"+r, "snapshots", "rev1")
		if err := os.MkdirAll(snap, 0o755); err != nil {
			t.Fatal(err)
		}
		for _, f := range []string{"config.json", "model.safetensors"} {
			if err := os.WriteFile(filepath.Join(snap, f), []byte("x"), 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}
	return dir
}

type serverProc struct {
	cmd  *exec.Cmd
	base string
}

func startServer(t *testing.T, bin, cacheDir, stateFile string) *serverProc {
	t.Helper()
	port := findFreePort(t)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	cmd := exec.Command(bin, "serve",
		"--addr", fmt.Sprintf("127.0.0.1:%d", port),
		"--state-file", stateFile,
		"--log-format", "console",
	)
	cmd.Env = append(os.Environ(),
		"FORECASTD_MODEL_CACHE_DIR="+cacheDir,
		"FORECASTD_CONFIG=",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { _ = cmd.Process.Kill() })
	waitStatus(t, base+"/readyz", http.StatusOK, 10*time.Second)
	return &serverProc{cmd: cmd, base: base}
}

func waitStatus(t *testing.T, url string, want int, within time.Duration) {
	t.Helper()
	deadline := time.Now().Add(within)
	for {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == want {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s did not return %d in time", url, want)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (p *serverProc) stop(t *testing.T) {
	t.Helper()
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("signal: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("server exited with error: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatalf("server did not shut down")
	}
}

func TestBlackbox_ServeSwitchRestart(t *testing.T) {
	bin := buildBinary(t)
	cacheDir := seedModelCache(t)
	stateFile := filepath.Join(t.TempDir(), "state.json")

	sp := startServer(t, bin, cacheDir, stateFile)
	resp, body := httpDo(t, http.MethodPost, sp.base+"/predict", []byte(`{"code":"600036","horizon":4}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/predict %d %s", resp.StatusCode, body)
	}
	resp, body = httpDo(t, http.MethodPost, sp.base+"/model/switch", []byte(`{"variant":"kronos-base"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/model/switch %d %s", resp.StatusCode, body)
	}
	var sw types.SwitchResponse
	_ = json.Unmarshal(body, &sw)
	if sw.DownloadOccurred {
		t.Fatalf("seeded cache should not download: %s", body)
	}

	out, err := exec.Command(bin, "status", "--url", sp.base, "--json").Output()
	if err != nil {
		t.Fatalf("status command: %v", err)
	}
	var st types.StatusResponse
	if err := json.Unmarshal(out, &st); err != nil {
		t.Fatalf("status json: %v %s", err, out)
	}
	if st.State != "ready" || st.VariantID != "kronos-base" {
		t.Fatalf("unexpected status: %s", out)
	}
	sp.stop(t)

	sp = startServer(t, bin, cacheDir, stateFile)
	_, body = httpDo(t, http.MethodGet, sp.base+"/model/status", nil)
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("status json: %v", err)
	}
	if st.VariantID != "kronos-base" {
		t.Fatalf("expected persisted kronos-base after restart, got %s", body)
	}
	sp.stop(t)
}
