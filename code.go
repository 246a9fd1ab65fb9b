package batcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var (
	wasmMagic = []byte{0x00, 'a', 's', 'm'}
	pvmMagic  = []byte{'P', 'V', 'M', 0x00}
)

// ValidateCode checks that code is a WASM or PolkaVM blob.
func ValidateCode(code []byte) error {
	if bytes.HasPrefix(code, wasmMagic) || bytes.HasPrefix(code, pvmMagic) {
		return nil
	}
	return fmt.Errorf("%w: unrecognized header", ErrInvalidCode)
}

// LoadCode reads and validates contract code from path.
func LoadCode(path string) ([]byte, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("batcher: read code: %w", err)
	}
	if err := ValidateCode(code); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return code, nil
}

// LoadABI reads a JSON ABI from path. Both a bare ABI array and a build
// artifact with an "abi" field are accepted.
func LoadABI(path string) (abi.ABI, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("batcher: read abi: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal(raw, &artifact); err != nil {
			return abi.ABI{}, fmt.Errorf("batcher: parse artifact %s: %w", path, err)
		}
		if len(artifact.ABI) == 0 {
			return abi.ABI{}, fmt.Errorf("batcher: artifact %s has no abi field", path)
		}
		raw = artifact.ABI
	}
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("batcher: parse abi %s: %w", path, err)
	}
	return parsed, nil
}
