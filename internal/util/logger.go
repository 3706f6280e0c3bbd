package util

import (
	"fmt"
	"log"
	"log/slog"
)

// Logger wraps slog with printf style helpers for code that formats its own messages.
type Logger struct {
	slogLogger *slog.Logger
}

// ComponentLogger returns a printf style logger tagged with component.
func ComponentLogger(component string) *Logger {
	return &Logger{slogLogger: GetLogger().With("component", component)}
}

// Debugf only emits when --verbose is set.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if IsVerbose() {
		l.slogLogger.Debug(fmt.Sprintf(format, v...))
	}
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.slogLogger.Error(fmt.Sprintf(format, v...))
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	l.slogLogger.Warn(fmt.Sprintf(format, v...))
}

func (l *Logger) Infof(format string, v ...interface{}) {
	l.slogLogger.Info(fmt.Sprintf(format, v...))
}

// SetupGlobalLogger routes the standard log package through slog.
func SetupGlobalLogger() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{logger: GetLogger()})
}

type logWriter struct {
	logger *slog.Logger
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	msg := string(p)
	if len(msg) > 0 && msg[len(msg)-1] == '\n' {
		msg = msg[:len(msg)-1]
	}
	w.logger.Info(msg)
	return len(p), nil
}
