package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lessonloop/lessonloop/internal/logging"
)

// signalContext returns a context cancelled on SIGINT or SIGTERM, so a lesson
// interrupted at the terminal still closes its session cleanly.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// createLogger configures the runner logger. Debug output goes to stderr so
// it never interleaves with the lesson flow on stdout.
func createLogger(debug bool) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug)
	}
	return logging.NewNop()
}
