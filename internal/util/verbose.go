package util

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	logger   *slog.Logger
	loggerMu sync.Mutex
)

// InitLogger installs the global slog logger. Logs go to stderr so that
// command output on stdout stays machine readable.
func InitLogger(verbose bool) {
	InitLoggerTo(os.Stderr, verbose)
}

// InitLoggerTo installs the global slog logger writing to w.
func InitLoggerTo(w io.Writer, verbose bool) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}

	loggerMu.Lock()
	logger = slog.New(slog.NewTextHandler(w, opts))
	loggerMu.Unlock()
	slog.SetDefault(logger)
}

// GetLogger returns the global logger, initializing it at info level on first use.
func GetLogger() *slog.Logger {
	loggerMu.Lock()
	l := logger
	loggerMu.Unlock()
	if l == nil {
		InitLogger(false)
		return GetLogger()
	}
	return l
}

// IsVerbose reports whether --verbose was passed on the command line.
func IsVerbose() bool {
	for _, arg := range os.Args {
		if arg == "--verbose" {
			return true
		}
	}
	return false
}
