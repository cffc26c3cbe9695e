package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSecret(t *testing.T) {
	a, err := NewSecret()
	assert.NoError(t, err)
	assert.Len(t, a, 96) // 48 random bytes, hex encoded

	b, err := NewSecret()
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashSecret(t *testing.T) {
	h := HashSecret("secret")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashSecret("secret"))
	assert.NotEqual(t, h, HashSecret("secret2"))
	assert.NotContains(t, h, "secret")
}
