package batcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wasmStub = []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}

func TestValidateCode(t *testing.T) {
	assert.NoError(t, ValidateCode(wasmStub))
	assert.NoError(t, ValidateCode([]byte{'P', 'V', 'M', 0x00, 0x01}))
	assert.ErrorIs(t, ValidateCode([]byte("#!/bin/sh")), ErrInvalidCode)
	assert.ErrorIs(t, ValidateCode(nil), ErrInvalidCode)
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadCode(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		code, err := LoadCode(writeFile(t, "flipper.wasm", wasmStub))
		require.NoError(t, err)
		assert.Equal(t, wasmStub, code)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := LoadCode(writeFile(t, "flipper.wasm", []byte("nope")))
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := LoadCode(filepath.Join(t.TempDir(), "missing.wasm"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLoadABI(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		parsed, err := LoadABI(writeFile(t, "token.json", []byte(tokenTestABI)))
		require.NoError(t, err)
		assert.Contains(t, parsed.Methods, "transfer")
	})

	t.Run("artifact", func(t *testing.T) {
		artifact := `{"contractName": "Token", "abi": ` + tokenTestABI + `}`
		parsed, err := LoadABI(writeFile(t, "token.json", []byte(artifact)))
		require.NoError(t, err)
		assert.Contains(t, parsed.Methods, "balance_of")
	})

	t.Run("artifact without abi", func(t *testing.T) {
		_, err := LoadABI(writeFile(t, "token.json", []byte(`{"contractName": "Token"}`)))
		assert.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := LoadABI(writeFile(t, "token.json", []byte(`[{`)))
		assert.Error(t, err)
	})
}
