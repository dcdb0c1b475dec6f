package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashText_StableAndDistinct(t *testing.T) {
	a := HashText("some action text")
	b := HashText("some action text")
	c := HashText("other action text")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 32)
}
