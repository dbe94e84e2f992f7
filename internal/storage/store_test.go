package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrNotFound(t *testing.T) {
	err := ErrNotFound{Resource: "show", ID: "123"}

	assert.Equal(t, "show not found: 123", err.Error())
	assert.True(t, IsNotFound(err))
}

func TestIsNotFoundFalse(t *testing.T) {
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(assert.AnError))
}
