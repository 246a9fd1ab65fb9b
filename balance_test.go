package batcher

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBalance(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want uint64
	}{
		{"decimal", "1000000000000", 1_000_000_000_000},
		{"hex", "0x10", 16},
		{"zero", "0", 0},
		{"whitespace", " 42 ", 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBalance(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Uint64())
		})
	}

	t.Run("u128 max", func(t *testing.T) {
		got, err := ParseBalance("340282366920938463463374607431768211455")
		require.NoError(t, err)
		assert.True(t, got.Eq(maxBalance))
	})

	invalid := []string{"", "-1", "1.5", "ten", "340282366920938463463374607431768211456"}
	for _, in := range invalid {
		t.Run("rejects "+in, func(t *testing.T) {
			_, err := ParseBalance(in)
			assert.Error(t, err)
		})
	}
}

func TestFormatBalance(t *testing.T) {
	tests := []struct {
		v        *uint256.Int
		decimals uint8
		want     string
	}{
		{uint256.NewInt(1_500_000_000_000), 12, "1.5"},
		{uint256.NewInt(1_000_000_000_000), 12, "1"},
		{uint256.NewInt(1), 12, "0.000000000001"},
		{uint256.NewInt(0), 12, "0"},
		{uint256.NewInt(123), 0, "123"},
		{nil, 12, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatBalance(tt.v, tt.decimals))
		})
	}
}
