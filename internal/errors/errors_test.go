package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundfWrapsSentinel(t *testing.T) {
	err := NotFoundf("object %s", "mem://a")
	require.Error(t, err)
	assert.True(t, Is(err, ErrNotFound))
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "mem://a")
}

func TestIsNotFoundNil(t *testing.T) {
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(New("other")))
}

func TestWrapPreservesSentinel(t *testing.T) {
	err := Wrap(InvalidArgumentf("bad uri %q", ""), "open array")
	assert.True(t, Is(err, ErrInvalidArgument))
	assert.False(t, Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "open array")
}

func TestMarkKeepsBothIdentities(t *testing.T) {
	local := New("member missing")
	err := Mark(local, ErrNotFound)
	assert.True(t, Is(err, ErrNotFound))
	assert.True(t, Is(err, local))
}
