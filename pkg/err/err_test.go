package errprocess

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode_Category(t *testing.T) {
	assert.Equal(t, CategoryValidation, CiphertextOrIVMissing.Category())
	assert.Equal(t, CategoryPersistence, SaveFailed.Category())
	assert.Equal(t, CategoryCrypto, DecryptFailed.Category())
	assert.Equal(t, CategoryExhausted, RetryExhausted.Category())
	assert.Equal(t, CategoryTransport, TransportFailed.Category())

	for code := range categories {
		assert.NotEmpty(t, code.Category(), code)
	}
}

func TestCodeOf(t *testing.T) {
	cause := errors.New("mongo down")
	err := fmt.Errorf("wrap: %w", New(SaveFailed, cause))

	code, ok := CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, SaveFailed, code)
	assert.True(t, Is(err, SaveFailed))
	assert.False(t, Is(err, NotFound))
	assert.ErrorIs(t, err, cause)

	_, ok = CodeOf(cause)
	assert.False(t, ok)

	assert.Equal(t, "not_found", New(NotFound, nil).Error())
	assert.Equal(t, "save_failed: mongo down", New(SaveFailed, cause).Error())
}
