package generator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"workshop/pkg/generator"
)

func TestGenerateRandomID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id, err := generator.GenerateRandomID(43)
		require.NoError(t, err)
		assert.Len(t, id, 43)
		assert.True(t, generator.IsRandomID(id, 43))

		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestIsRandomID(t *testing.T) {
	assert.False(t, generator.IsRandomID("", 43))
	assert.False(t, generator.IsRandomID("abc", 43))
	assert.False(t, generator.IsRandomID("abc-def", 7))
	assert.False(t, generator.IsRandomID("abc def", 7))
	assert.True(t, generator.IsRandomID("abcDEF1", 7))
}
