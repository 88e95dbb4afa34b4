package httpapi

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is the structured logger for the HTTP layer. Nop until SetLogger.
var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// global default, read once
var defaultLogLevel = parseLevel(os.Getenv("FORECASTD_HTTP_LOG_LEVEL"))

// SetDefaultLogLevel overrides the level used when a request carries none.
func SetDefaultLogLevel(s string) { defaultLogLevel = parseLevel(s) }

func requestLogLevel(r *http.Request) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// reqLog is the per-request logging scope of one handler invocation.
type reqLog struct {
	r     *http.Request
	lvl   LogLevel
	op    string
	start time.Time
}

func startLog(r *http.Request, op string) reqLog {
	rl := reqLog{r: r, lvl: requestLogLevel(r), op: op, start: time.Now()}
	if rl.lvl >= LevelInfo {
		rl.event(zlog.Info()).Msg(op + " start")
	}
	return rl
}

func (rl reqLog) event(e *zerolog.Event) *zerolog.Event {
	e = e.Str("path", rl.r.URL.Path)
	if rid := middleware.GetReqID(rl.r.Context()); rid != "" {
		e = e.Str("request_id", rid)
	}
	return e
}

// debug logs only when the request asked for debug detail.
func (rl reqLog) debug() *zerolog.Event {
	if rl.lvl < LevelDebug {
		return nil
	}
	return rl.event(zlog.Debug())
}

func (rl reqLog) end(status int, err error) {
	switch {
	case rl.lvl >= LevelInfo:
	case rl.lvl >= LevelError && err != nil:
	default:
		return
	}
	e := zlog.Info()
	if err != nil && status >= http.StatusInternalServerError {
		e = zlog.Error()
	}
	rl.event(e).Int("status", status).Dur("dur", time.Since(rl.start)).Err(err).Msg(rl.op + " end")
}
