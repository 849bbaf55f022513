package errx

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationKind(t *testing.T) {
	base := Configuration("no connection string for %q", "audit")
	wrapped := fmt.Errorf("resolve: %w", base)

	assert.True(t, IsConfiguration(base))
	assert.True(t, IsConfiguration(wrapped))
	assert.Equal(t, KindConfiguration, KindOf(wrapped))
	assert.Equal(t, `no connection string for "audit"`, base.Error())

	plain := errors.New("connection refused")
	assert.False(t, IsConfiguration(plain))
	assert.Equal(t, KindWrite, KindOf(plain))
	assert.Equal(t, "write", KindOf(plain).String())
}

func TestAsConfiguration(t *testing.T) {
	assert.Nil(t, AsConfiguration(nil, "ignored"))

	cause := errors.New("bad template")
	err := AsConfiguration(cause, "field Host")
	assert.True(t, IsConfiguration(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "field Host: bad template", err.Error())
}

func TestAllAndWrap(t *testing.T) {
	assert.Nil(t, All(nil, nil))
	e1, e2 := errors.New("a"), errors.New("b")
	joined := All(nil, e1, e2)
	assert.ErrorIs(t, joined, e1)
	assert.ErrorIs(t, joined, e2)

	assert.Nil(t, Wrap(nil, "ctx"))
	assert.Equal(t, e1, Wrap(e1, ""))
	assert.Equal(t, "ctx: a", Wrap(e1, "ctx").Error())
}

func TestAsConfigurationOnConfigurationError(t *testing.T) {
	inner := Configuration("connection string is empty")
	err := AsConfiguration(inner, "resolve")
	assert.True(t, IsConfiguration(err))
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "resolve: connection string is empty", err.Error())

	var ce *ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Same(t, inner, ce)
}

func TestAllSkipsNil(t *testing.T) {
	e1 := errors.New("a")
	assert.Same(t, e1, All(nil, e1, nil))
	assert.Equal(t, "a; b", All(e1, errors.New("b")).Error())
}
