// Package logger is the process-wide structured log. Level and destination
// are runtime-tunable so the admin surface and config reloads can adjust
// them without rebuilding the handler chain by hand.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	level slog.LevelVar

	mu   sync.RWMutex
	base = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
)

// SetOutput redirects the log. With more than one writer every record goes
// to all of them, which is how a log file is teed alongside stdout.
func SetOutput(ws ...io.Writer) {
	var w io.Writer
	switch len(ws) {
	case 0:
		w = os.Stdout
	case 1:
		w = ws[0]
	default:
		w = io.MultiWriter(ws...)
	}
	l := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &level}))
	mu.Lock()
	base = l
	mu.Unlock()
}

// SetLevel adjusts the minimum level. Unknown names fall back to info.
func SetLevel(name string) {
	level.Set(parseLevel(name))
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func Debugf(format string, v ...any) { current().Debug(fmt.Sprintf(format, v...)) }

func Infof(format string, v ...any) { current().Info(fmt.Sprintf(format, v...)) }

func Warnf(format string, v ...any) { current().Warn(fmt.Sprintf(format, v...)) }

func Errorf(format string, v ...any) { current().Error(fmt.Sprintf(format, v...)) }
