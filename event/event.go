// Package event defines the log record consumed by the mongolog target.
package event

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// Keys the Kratos adapter recognizes in a keyvals list.
const (
	MessageKey   = "msg"
	TimestampKey = "ts"
	ErrorKey     = "err"
	ErrorKeyAlt  = "error"
)

// Property is one ambient key/value pair carried by an event. Keys are kept
// as supplied by the caller and rendered to strings when the document is built.
type Property struct {
	Key   any
	Value any
}

// Event is a single log record. It is read-only once handed to the target.
type Event struct {
	Time       time.Time
	Level      log.Level
	Logger     string
	Message    string
	Err        error
	Properties []Property
}

// LevelName returns the document representation of a Kratos level.
func LevelName(l log.Level) string {
	switch l {
	case log.LevelDebug:
		return "Debug"
	case log.LevelInfo:
		return "Info"
	case log.LevelWarn:
		return "Warn"
	case log.LevelError:
		return "Error"
	case log.LevelFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// HasError reports whether e carries an error worth describing.
func (e *Event) HasError() bool { return !IsNilError(e.Err) }

// IsNilError reports whether err is nil or a nil pointer (or other nil
// reference) stored in a non-nil error interface.
func IsNilError(err error) bool {
	if err == nil {
		return true
	}
	v := reflect.ValueOf(err)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// LevelName returns the name of the event's level.
func (e *Event) LevelName() string { return LevelName(e.Level) }

// Property returns the value of the first property whose key renders to key.
func (e *Event) Property(key string) (any, bool) {
	for _, p := range e.Properties {
		if p.Key == nil {
			continue
		}
		if k, ok := p.Key.(string); ok && k == key {
			return p.Value, true
		}
		if fmt.Sprint(p.Key) == key {
			return p.Value, true
		}
	}
	return nil, false
}

// WithTime returns a shallow copy of e carrying t as its timestamp.
func (e *Event) WithTime(t time.Time) *Event {
	cp := *e
	cp.Time = t
	return &cp
}

// FromKeyvals converts a Kratos log call into an Event. The message, the error
// and the logger name are lifted out of keyvals; every other pair becomes a
// property in call order. An odd trailing key gets a nil value and is later
// dropped by the document builder.
func FromKeyvals(level log.Level, loggerKey string, keyvals ...any) *Event {
	e := &Event{Level: level}
	for i := 0; i < len(keyvals); i += 2 {
		key := keyvals[i]
		var val any
		if i+1 < len(keyvals) {
			val = keyvals[i+1]
		}
		name, isString := key.(string)
		if !isString {
			e.Properties = append(e.Properties, Property{Key: key, Value: val})
			continue
		}
		switch {
		case name == MessageKey:
			e.Message = stringify(val)
			continue
		case name == TimestampKey:
			if t, ok := toTime(val); ok {
				e.Time = t
				continue
			}
		case name == ErrorKey || name == ErrorKeyAlt:
			if err, ok := val.(error); ok && e.Err == nil && !IsNilError(err) {
				e.Err = err
				continue
			}
		case loggerKey != "" && name == loggerKey:
			e.Logger = stringify(val)
			continue
		}
		e.Properties = append(e.Properties, Property{Key: name, Value: val})
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	return e
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		if t, err := time.Parse(time.RFC3339Nano, x); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
