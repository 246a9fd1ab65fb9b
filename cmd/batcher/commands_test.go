package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeploySalt(t *testing.T) {
	t.Run("explicit salt", func(t *testing.T) {
		salt, err := deploySalt("0xc0ffee")
		require.NoError(t, err)
		assert.Equal(t, []byte{0xc0, 0xff, 0xee}, salt)
	})

	t.Run("unset salt is random", func(t *testing.T) {
		first, err := deploySalt("")
		require.NoError(t, err)
		second, err := deploySalt("")
		require.NoError(t, err)

		assert.Len(t, first, saltSize)
		assert.Len(t, second, saltSize)
		assert.NotEqual(t, first, second)
	})

	t.Run("invalid salt", func(t *testing.T) {
		_, err := deploySalt("c0ffee")
		assert.Error(t, err)
		_, err = deploySalt("0xzz")
		assert.Error(t, err)
	})
}
