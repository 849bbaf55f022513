package mongolog

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/go-lynx/lynx-mongolog/event"
)

// LevelWriter lets a zerolog logger write to MongoDB:
//
//	zl := zerolog.New(mongolog.NewLevelWriter(target.Logger()))
//
// Each JSON line is decoded back into an event. The zerolog message, time and
// error fields are lifted out; the remaining fields become properties in the
// order zerolog wrote them.
type LevelWriter struct {
	logger *Logger
}

var _ zerolog.LevelWriter = (*LevelWriter)(nil)

// NewLevelWriter creates a LevelWriter that shares l's sink, batcher and
// minimum level.
func NewLevelWriter(l *Logger) *LevelWriter {
	return &LevelWriter{logger: l}
}

// Write implements io.Writer. The level is read from the line.
func (w *LevelWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel implements zerolog.LevelWriter.
func (w *LevelWriter) WriteLevel(zl zerolog.Level, p []byte) (int, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON(bytes.TrimSpace(p), false, &doc); err != nil {
		return 0, err
	}
	e := w.decode(zl, doc)
	if e.Level < w.logger.min {
		return len(p), nil
	}
	if err := w.logger.write(context.Background(), e); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *LevelWriter) decode(zl zerolog.Level, doc bson.D) *event.Event {
	e := &event.Event{}
	for _, el := range doc {
		switch el.Key {
		case zerolog.LevelFieldName:
			if zl == zerolog.NoLevel {
				if s, ok := el.Value.(string); ok {
					if parsed, err := zerolog.ParseLevel(s); err == nil {
						zl = parsed
					}
				}
			}
		case zerolog.MessageFieldName:
			e.Message = event.FormatValue(el.Value)
		case zerolog.TimestampFieldName:
			if t, ok := zerologTime(el.Value); ok {
				e.Time = t
				continue
			}
			e.Properties = append(e.Properties, event.Property{Key: el.Key, Value: el.Value})
		case zerolog.ErrorFieldName:
			if s, ok := el.Value.(string); ok && e.Err == nil {
				e.Err = errors.New(s)
				continue
			}
			e.Properties = append(e.Properties, event.Property{Key: el.Key, Value: el.Value})
		case w.logger.loggerKey:
			e.Logger = event.FormatValue(el.Value)
		default:
			e.Properties = append(e.Properties, event.Property{Key: el.Key, Value: el.Value})
		}
	}
	e.Level = kratosLevel(zl)
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	return e
}

// zerologTime accepts the string and unix forms zerolog can emit.
func zerologTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case string:
		if t, err := time.Parse(zerolog.TimeFieldFormat, x); err == nil {
			return t, true
		}
		if t, err := time.Parse(time.RFC3339Nano, x); err == nil {
			return t, true
		}
	case int32:
		return unixTime(int64(x)), true
	case int64:
		return unixTime(x), true
	case float64:
		return time.Unix(0, int64(x*float64(time.Second))), true
	}
	return time.Time{}, false
}

func unixTime(n int64) time.Time {
	switch zerolog.TimeFieldFormat {
	case zerolog.TimeFormatUnixMs:
		return time.UnixMilli(n)
	case zerolog.TimeFormatUnixMicro:
		return time.UnixMicro(n)
	case zerolog.TimeFormatUnixNano:
		return time.Unix(0, n)
	default:
		return time.Unix(n, 0)
	}
}

func kratosLevel(l zerolog.Level) log.Level {
	switch l {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		return log.LevelDebug
	case zerolog.WarnLevel:
		return log.LevelWarn
	case zerolog.ErrorLevel:
		return log.LevelError
	case zerolog.FatalLevel, zerolog.PanicLevel:
		return log.LevelFatal
	default:
		return log.LevelInfo
	}
}
