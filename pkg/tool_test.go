package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContains(t *testing.T) {
	assert.True(t, Contains([]string{"a", "b"}, "b"))
	assert.False(t, Contains([]string{"a", "b"}, "c"))
	assert.False(t, Contains(nil, "a"))
}

func TestAppendUnique(t *testing.T) {
	got := AppendUnique([]string{"u2"}, "u1", "u2", "", "u3", "u1")
	assert.Equal(t, []string{"u2", "u1", "u3"}, got)
}
