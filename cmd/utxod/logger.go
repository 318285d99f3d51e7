// logger.go - Structured logging for the ledger node
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger writes to the console and, optionally, a log file. State
// transitions additionally go to an audit log.
type Logger struct {
	zerolog.Logger

	file  *os.File
	audit *os.File
	trail zerolog.Logger
}

// NewLogger creates a new logger instance
func NewLogger(level string, logFile string, auditFile string) (*Logger, error) {
	return newLogger(os.Stderr, level, logFile, auditFile)
}

func newLogger(console io.Writer, level string, logFile string, auditFile string) (*Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	l := &Logger{trail: zerolog.Nop()}
	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, TimeFormat: time.DateTime}}

	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.file = file
		writers = append(writers, file)
	}

	if auditFile != "" {
		file, err := os.OpenFile(auditFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to open audit file: %w", err)
		}
		l.audit = file
		l.trail = zerolog.New(file).With().Timestamp().Str("log", "audit").Logger()
	}

	l.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().Timestamp().Logger()
	return l, nil
}

// Close closes the logger and its files
func (l *Logger) Close() error {
	var first error
	for _, f := range []*os.File{l.file, l.audit} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Audit records a state-changing event.
func (l *Logger) Audit(event string, fields map[string]any) {
	l.trail.Log().Str("event", event).Fields(fields).Send()
}
