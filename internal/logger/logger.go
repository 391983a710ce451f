// Package logger provides tagged console logging for the optifolio server.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log zerolog.Logger
	out io.Writer
)

func init() {
	SetOutput(os.Stdout)
}

// SetOutput redirects all logger output to w. Tests use this to capture lines.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	log = zerolog.New(console).With().Timestamp().Logger()
}

func logger() *zerolog.Logger {
	mu.RLock()
	l := log
	mu.RUnlock()
	return &l
}

// Info logs an informational message under a component tag.
func Info(tag, msg string) {
	logger().Info().Str("tag", tag).Msg(msg)
}

// Success logs a completed operation under a component tag.
func Success(tag, msg string) {
	logger().Info().Str("tag", tag).Str("status", "ok").Msg(msg)
}

// Warn logs a recoverable problem under a component tag.
func Warn(tag, msg string) {
	logger().Warn().Str("tag", tag).Msg(msg)
}

// Error logs a failure under a component tag.
func Error(tag, msg string) {
	logger().Error().Str("tag", tag).Msg(msg)
}

// Section prints a visual divider before a new phase of work.
func Section(title string) {
	mu.RLock()
	w := out
	mu.RUnlock()
	fmt.Fprintf(w, "\n=== %s ===\n", title)
}

// Stats logs a single named figure, such as a count or a duration.
func Stats(key string, value any) {
	logger().Info().Str("tag", "Stats").Msgf("%s: %v", key, value)
}

// Banner prints the startup banner with the build version.
func Banner(version string) {
	mu.RLock()
	w := out
	mu.RUnlock()
	if version == "" {
		version = "dev"
	}
	fmt.Fprintf(w, "optifolio %s (constrained mean-variance portfolio optimizer)\n", version)
}

// Server logs the listen address once the HTTP server is about to start.
func Server(addr string) {
	logger().Info().Str("tag", "Server").Msgf("Listening on http://%s", addr)
}
