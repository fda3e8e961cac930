package keyboardlayout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	t.Parallel()

	us := Get("us")
	assert.True(t, us.ValidKeys["KeyA"])
	assert.True(t, us.ValidKeys["a"])
	assert.True(t, us.ValidKeys["A"])
	assert.True(t, us.ValidKeys["Enter"])
	assert.True(t, us.ValidKeys["@"])
	assert.False(t, us.ValidKeys["NoSuchKey"])

	// Unknown locales fall back to us.
	assert.Equal(t, us.Keys, Get("xx").Keys)
}

func TestKeyDefinition(t *testing.T) {
	t.Parallel()

	us := Get("us")

	t.Run("by code", func(t *testing.T) {
		t.Parallel()
		def, ok := us.Keys["KeyA"]
		require.True(t, ok)
		assert.Equal(t, "a", def.Key)
		assert.Equal(t, int64('A'), def.KeyCode)
		assert.Equal(t, "A", def.ShiftKey)
	})

	t.Run("by key value", func(t *testing.T) {
		t.Parallel()
		def, ok := us.KeyDefinition("a")
		require.True(t, ok)
		assert.Equal(t, "KeyA", def.Code)

		_, ok = us.KeyDefinition("@")
		assert.False(t, ok)
	})

	t.Run("by shift value", func(t *testing.T) {
		t.Parallel()
		def := us.ShiftKeyDefinition("@")
		assert.Equal(t, "Digit2", def.Code)

		assert.Empty(t, us.ShiftKeyDefinition("€").Code)
	})

	t.Run("modifier locations", func(t *testing.T) {
		t.Parallel()
		left := us.Keys["ShiftLeft"]
		right := us.Keys["ShiftRight"]
		assert.Equal(t, "Shift", left.Key)
		assert.Equal(t, int64(1), left.Location)
		assert.Equal(t, int64(2), right.Location)
	})
}
