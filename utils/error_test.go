package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "never"))
	assert.Nil(t, WrapErrorf(nil, "never %d", 1))

	base := errors.New("base")
	wrapped := WrapErrorf(WrapError(base, "inner"), "outer[%d]", 3)
	assert.True(t, errors.Is(wrapped, base))
	assert.Equal(t, "outer[3]: inner: base", wrapped.Error())
}
