// Package logger is a thin printf facade over slog. Call sites tag their
// messages with a "[component]" prefix instead of structured attributes; the
// run log stays grep-friendly both on the console and in the tee'd log file.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"log/slog"
)

var (
	levelVar slog.LevelVar
	active   atomic.Pointer[slog.Logger]
)

func init() {
	levelVar.Set(slog.LevelInfo)
	active.Store(newLogger(os.Stdout))
}

func newLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{
		Level: &levelVar,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Compact local timestamps; RFC3339 with zone is noise here.
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String(slog.TimeKey, a.Value.Time().Format("2006-01-02 15:04:05"))
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetOutput redirects all subsequent log output, e.g. to a MultiWriter that
// also appends to the per-run log file.
func SetOutput(w io.Writer) {
	active.Store(newLogger(w))
}

// SetLevel sets the minimum level by name; unknown names fall back to info.
func SetLevel(level string) {
	levelVar.Set(parseLevel(level))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func logf(level slog.Level, format string, v ...any) {
	l := active.Load()
	if l == nil || !l.Enabled(context.Background(), level) {
		return
	}
	l.Log(context.Background(), level, fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...any) { logf(slog.LevelDebug, format, v...) }
func Infof(format string, v ...any)  { logf(slog.LevelInfo, format, v...) }
func Warnf(format string, v ...any)  { logf(slog.LevelWarn, format, v...) }
func Errorf(format string, v ...any) { logf(slog.LevelError, format, v...) }
