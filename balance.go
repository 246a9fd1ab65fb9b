package batcher

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// maxBalance is the largest on-chain balance (u128).
var maxBalance = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))

// ParseBalance parses a decimal or 0x-hex balance in plancks.
// Balances are u128 on chain; larger values are rejected.
func ParseBalance(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	var (
		v   *uint256.Int
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = uint256.FromHex(s)
	} else {
		v, err = uint256.FromDecimal(s)
	}
	if err != nil {
		return nil, fmt.Errorf("batcher: invalid balance %q: %w", s, err)
	}
	if v.Gt(maxBalance) {
		return nil, fmt.Errorf("batcher: balance %q exceeds u128", s)
	}
	return v, nil
}

// FormatBalance renders v with decimals fractional digits, trimming
// trailing zeros, e.g. 1500000000000 with 12 decimals is "1.5".
func FormatBalance(v *uint256.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	digits := v.Dec()
	if decimals == 0 {
		return digits
	}
	d := int(decimals)
	if len(digits) <= d {
		digits = strings.Repeat("0", d-len(digits)+1) + digits
	}
	whole, frac := digits[:len(digits)-d], strings.TrimRight(digits[len(digits)-d:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
