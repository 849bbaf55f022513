package sink

import "github.com/go-lynx/lynx-mongolog/pkg/errx"

// Policy decides whether a failed batch is reported to the caller after the
// per-entry callbacks have run.
type Policy struct {
	RethrowConfigErrors bool
	RethrowWriteErrors  bool
}

// DefaultPolicy propagates configuration errors and swallows write errors.
func DefaultPolicy() Policy {
	return Policy{RethrowConfigErrors: true}
}

// ShouldPropagate reports whether err must be returned from WriteBatch.
func (p Policy) ShouldPropagate(err error) bool {
	if err == nil {
		return false
	}
	switch errx.KindOf(err) {
	case errx.KindConfiguration:
		return p.RethrowConfigErrors
	default:
		return p.RethrowWriteErrors
	}
}
