package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_FixedLengthURLSafe(t *testing.T) {
	for _, length := range []int{1, 8, 16, 32} {
		code, err := Generate(length)
		require.NoError(t, err)
		assert.Len(t, code, length)
		assert.True(t, IsWellFormed(code, length), code)
	}
}

func TestGenerate_RejectsNonPositiveLength(t *testing.T) {
	_, err := Generate(0)
	assert.Error(t, err)
}

func TestGenerate_Distinct(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		code, err := Generate(16)
		require.NoError(t, err)
		_, dup := seen[code]
		assert.False(t, dup)
		seen[code] = struct{}{}
	}
}

func TestIsWellFormed(t *testing.T) {
	assert.False(t, IsWellFormed("abc", 4))
	assert.False(t, IsWellFormed("ab/c", 4))
	assert.False(t, IsWellFormed("ab c", 4))
	assert.True(t, IsWellFormed("a-_Z", 4))
}

func TestExtractPrefix(t *testing.T) {
	assert.Equal(t, "abcd", ExtractPrefix("abcdefgh", 4))
	assert.Equal(t, "ab", ExtractPrefix("ab", 4))
}
