// Package errx holds the error kinds shared by the mongolog packages and a few
// small helpers for composing errors.
package errx

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Kind classifies an error for the rethrow policy.
type Kind int

const (
	// KindWrite covers everything that is not a configuration problem:
	// connectivity, server rejections, encoding failures.
	KindWrite Kind = iota
	// KindConfiguration marks deployment misconfiguration, such as an
	// unresolvable connection string or an invalid field descriptor.
	KindConfiguration
)

// String returns the metric/log label of the kind.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	default:
		return "write"
	}
}

// ConfigurationError reports a misconfiguration detected while initializing
// the target or while resolving a destination for a write.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Configuration builds a ConfigurationError from a format string.
func Configuration(format string, a ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, a...)}
}

// AsConfiguration wraps err as a ConfigurationError. Nil stays nil; an error
// that already carries a ConfigurationError only gets msg prepended.
func AsConfiguration(err error, msg string) error {
	if err == nil {
		return nil
	}
	if IsConfiguration(err) {
		return Wrap(err, msg)
	}
	return &ConfigurationError{Msg: msg, Err: err}
}

// IsConfiguration reports whether err or anything it wraps is a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// KindOf returns the policy kind of err.
func KindOf(err error) Kind {
	if IsConfiguration(err) {
		return KindConfiguration
	}
	return KindWrite
}

// All combines the non-nil errors, in order, into one error.
func All(errs ...error) error {
	return multierr.Combine(errs...)
}

// Wrap prefixes err with msg and keeps it unwrappable. Empty msg is a no-op.
func Wrap(err error, msg string) error {
	if err == nil || msg == "" {
		return err
	}
	return pkgerrors.WithMessage(err, msg)
}
