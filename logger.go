package mongolog

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/go-lynx/lynx-mongolog/event"
	"github.com/go-lynx/lynx-mongolog/sink"
)

// Logger is a Kratos log.Logger that writes to MongoDB.
//
// Recognized keys: "msg" is the message, "ts" a time.Time or RFC 3339 string,
// "err"/"error" an error value and the configured logger key the logger
// name. Every other pair is an event property.
type Logger struct {
	sink      *sink.Sink
	batcher   *sink.Batcher
	min       log.Level
	loggerKey string
}

var _ log.Logger = (*Logger)(nil)

// LoggerOption configures a Logger.
type LoggerOption func(*Logger)

// WithMinLevel drops events below l.
func WithMinLevel(l log.Level) LoggerOption {
	return func(lg *Logger) { lg.min = l }
}

// WithLoggerKey sets the keyval carrying the logger name.
func WithLoggerKey(key string) LoggerOption {
	return func(lg *Logger) { lg.loggerKey = key }
}

// WithBatcher routes events through b instead of writing them one by one.
func WithBatcher(b *sink.Batcher) LoggerOption {
	return func(lg *Logger) { lg.batcher = b }
}

// NewLogger creates a Logger over s.
func NewLogger(s *sink.Sink, opts ...LoggerOption) *Logger {
	l := &Logger{sink: s, min: log.LevelDebug, loggerKey: "module"}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log implements log.Logger.
func (l *Logger) Log(level log.Level, keyvals ...any) error {
	if level < l.min {
		return nil
	}
	return l.write(context.Background(), event.FromKeyvals(level, l.loggerKey, keyvals...))
}

func (l *Logger) write(ctx context.Context, e *event.Event) error {
	if l.batcher != nil {
		return l.batcher.Add(ctx, sink.Entry{Event: e})
	}
	err := l.sink.Write(ctx, e)
	if l.sink.Policy().ShouldPropagate(err) {
		return err
	}
	return nil
}
