package reservation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAvailable(t *testing.T) {
	assert.True(t, Available(3, 3))
	assert.True(t, Available(3, 1))
	assert.False(t, Available(3, 4))
	assert.False(t, Available(0, 1))
}

func TestValidateQuantity(t *testing.T) {
	assert.NoError(t, validateQuantity(1))

	err := validateQuantity(0)
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	assert.Error(t, validateQuantity(-5))
}
