// Package logadapter bridges a structured slog logger into the
// *log.Logger shape the rest of the service consumes.
package logadapter

import (
	"log"
	"log/slog"
)

// New returns a *log.Logger whose output is forwarded to base at Info
// level, one line per message.
func New(base *slog.Logger) *log.Logger {
	return log.New(&writer{logger: base}, "", 0)
}

type writer struct {
	logger *slog.Logger
}

func (w *writer) Write(p []byte) (int, error) {
	msg := string(p)
	if len(msg) > 0 && msg[len(msg)-1] == '\n' {
		msg = msg[:len(msg)-1]
	}
	w.logger.Info(msg)
	return len(p), nil
}
