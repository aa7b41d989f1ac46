// Package zerolog adapts a zerolog.Logger to the quotareset.Logger contract.
package zerolog

import (
	"github.com/rs/zerolog"

	"github.com/luminalens/quotareset/pkg/quotareset"
)

// Logger forwards structured messages to an underlying zerolog.Logger.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger wraps the given zerolog.Logger. Level filtering and output
// configuration stay on the wrapped logger.
func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (l *Logger) Debug(msg string, fields ...quotareset.Field) {
	l.log(l.logger.Debug(), msg, fields)
}

func (l *Logger) Info(msg string, fields ...quotareset.Field) {
	l.log(l.logger.Info(), msg, fields)
}

func (l *Logger) Warn(msg string, fields ...quotareset.Field) {
	l.log(l.logger.Warn(), msg, fields)
}

func (l *Logger) Error(msg string, fields ...quotareset.Field) {
	l.log(l.logger.Error(), msg, fields)
}

func (l *Logger) log(event *zerolog.Event, msg string, fields []quotareset.Field) {
	if event == nil {
		return
	}
	for _, f := range fields {
		event = event.Interface(f.Key, f.Value)
	}
	event.Msg(msg)
}
