// Package actionlog is the append-only bank.log sink. It is write-only and
// never fatal: if the file cannot be opened, actions are discarded.
package actionlog

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

type Log struct {
	logger  *log.Logger
	closer  io.Closer
	session string
}

// Open appends to path. Failures are reported on diag and yield a discarding log.
func Open(path string, diag *log.Logger) *Log {
	session := uuid.NewString()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		if diag != nil {
			diag.Warn("action log disabled", "path", path, "err", err)
		}
		return New(io.Discard, session)
	}

	l := New(f, session)
	l.closer = f
	return l
}

// New writes actions to w, tagging every line with session
func New(w io.Writer, session string) *Log {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       log.LogfmtFormatter,
		Level:           log.InfoLevel,
	})
	return &Log{
		logger:  logger.With("session", session),
		session: session,
	}
}

func (l *Log) Session() string { return l.session }

// Record appends one action. keyvals must never carry PINs or passwords.
func (l *Log) Record(action string, keyvals ...any) {
	l.logger.Info(action, keyvals...)
}

func (l *Log) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
