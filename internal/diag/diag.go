// Package diag builds the diagnostic logger of the Mongo log target: the
// channel its own failures are reported on. It never writes to MongoDB.
package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the diagnostic output.
type Options struct {
	Level      string
	File       string // empty means stderr
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	// Writer overrides File and stderr.
	Writer io.Writer
}

// Logger is a zerolog logger exposed as a Kratos log.Logger.
type Logger struct {
	zl     zerolog.Logger
	closer io.Closer
}

var _ log.Logger = (*Logger)(nil)

// New creates the diagnostic logger.
func New(o Options) (*Logger, error) {
	var (
		w      io.Writer
		closer io.Closer
	)
	switch {
	case o.Writer != nil:
		w = o.Writer
	case o.File != "":
		if err := os.MkdirAll(filepath.Dir(o.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create diagnostics directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    o.MaxSizeMB,
			MaxBackups: o.MaxBackups,
			MaxAge:     o.MaxAgeDays,
			Compress:   o.Compress,
		}
		w, closer = lj, lj
	default:
		w = os.Stderr
	}

	zl := zerolog.New(w).
		Level(ParseLevel(o.Level)).
		With().
		Timestamp().
		Str("component", "mongolog").
		Logger()
	return &Logger{zl: zl, closer: closer}, nil
}

// ParseLevel maps a level name to zerolog. Unknown names yield warn.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "off", "disabled":
		return zerolog.Disabled
	default:
		return zerolog.WarnLevel
	}
}

// Zerolog returns the underlying logger.
func (l *Logger) Zerolog() *zerolog.Logger { return &l.zl }

// Log implements log.Logger.
func (l *Logger) Log(level log.Level, keyvals ...any) error {
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals[:len(keyvals):len(keyvals)], "BAD_VALUE")
	}

	var ev *zerolog.Event
	switch level {
	case log.LevelDebug:
		ev = l.zl.Debug()
	case log.LevelInfo:
		ev = l.zl.Info()
	case log.LevelWarn:
		ev = l.zl.Warn()
	case log.LevelError:
		ev = l.zl.Error()
	case log.LevelFatal:
		// Diagnostics must never terminate the host.
		ev = l.zl.WithLevel(zerolog.FatalLevel)
	default:
		ev = l.zl.Warn().Interface("original_level", level)
	}

	var msg string
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprintf("BAD_KEY_%d", i)
		}
		val := keyvals[i+1]

		switch key {
		case log.DefaultMessageKey:
			msg = fmt.Sprint(val)
			continue
		case "err", "error":
			if e, ok := val.(error); ok {
				ev = ev.Err(e)
				continue
			}
		}
		ev = ev.Interface(key, val)
	}
	ev.Msg(msg)
	return nil
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
