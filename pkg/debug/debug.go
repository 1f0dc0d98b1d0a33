// Package debug provides category-based debug logging for httpd.
//
// Categories pick the subsystems that log (HTTPD_DEBUG or the debug config
// key, comma separated, "all" for everything). The level picks how much of
// it reaches the handler (HTTPD_LOG_LEVEL or log_level). Environment values
// win over config values.
//
//	debug.Log(debug.Scheduler, "timer armed", "delay", d)
//
// Levels: ERROR, WARN, INFO, DEBUG, TRACE.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Known categories.
const (
	Transport = "transport"
	Dispatch  = "dispatch"
	Scheduler = "scheduler"
	Storage   = "storage"
	Retention = "retention"
	Auth      = "auth"
	Config    = "config"

	all = "all"
)

// Environment variables read by Init.
const (
	EnvCategories = "HTTPD_DEBUG"
	EnvLevel      = "HTTPD_LOG_LEVEL"
)

// LevelTrace sits below slog.LevelDebug. Writer state transitions are only
// logged at this level.
const LevelTrace = slog.LevelDebug - 4

type categorySet map[string]bool

var enabled atomic.Pointer[categorySet]

func init() {
	setCategories(os.Getenv(EnvCategories))
}

func setCategories(s string) {
	set := parseCategories(s)
	enabled.Store(&set)
}

// Init enables the categories and level, installs a text logger on
// stderr as the slog default and returns it.
func Init(configCategories, configLevel string) *slog.Logger {
	return Setup(os.Stderr, configCategories, configLevel)
}

// Setup is Init with an explicit output.
func Setup(w io.Writer, configCategories, configLevel string) *slog.Logger {
	setCategories(envOr(EnvCategories, configCategories))

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(envOr(EnvLevel, configLevel)),
	}))
	slog.SetDefault(logger)
	return logger
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Enabled reports whether category logs.
func Enabled(category string) bool {
	set := *enabled.Load()
	return set[all] || set[category]
}

// Log emits a DEBUG record tagged with category when it is enabled.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a TRACE record tagged with category when it is enabled.
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceIsEnabled reports whether a Trace call for category would reach
// the default handler.
func TraceIsEnabled(category string) bool {
	return Enabled(category) && slog.Default().Enabled(context.Background(), LevelTrace)
}

// ParseLevel converts a level name to a slog.Level. Unknown names read as
// INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseCategories(s string) categorySet {
	set := make(categorySet)
	for cat := range strings.SplitSeq(s, ",") {
		if cat = strings.ToLower(strings.TrimSpace(cat)); cat != "" {
			set[cat] = true
		}
	}
	return set
}
