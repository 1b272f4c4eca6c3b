// logger.go - Structured logging for the vault daemon
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Loggers bundles the daemon's main and audit loggers.
//
// The audit logger records accepted transitions and rejected authorization
// attempts; rejection entries never carry the failure variant, only the fact
// of a rejection, so the log cannot act as a password oracle.
type Loggers struct {
	Main  zerolog.Logger
	Audit zerolog.Logger

	files []*os.File
}

// NewLoggers creates the daemon loggers from the configuration.
func NewLoggers(cfg *Config) (*Loggers, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	l := &Loggers{}
	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stdout}}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.files = append(l.files, f)
		writers = append(writers, f)
	}
	l.Main = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Logger()

	if cfg.EnableAudit && cfg.AuditLogPath != "" {
		f, err := os.OpenFile(cfg.AuditLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to open audit file: %w", err)
		}
		l.files = append(l.files, f)
		l.Audit = zerolog.New(f).With().Timestamp().Logger()
	} else {
		l.Audit = zerolog.Nop()
	}
	return l, nil
}

// Close closes the loggers' files.
func (l *Loggers) Close() error {
	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
