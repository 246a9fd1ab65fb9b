package batcher

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// DefaultSS58Prefix is the generic Substrate address format.
const DefaultSS58Prefix uint16 = 42

// AccountIDLength is the size of an account public key in bytes.
const AccountIDLength = 32

var ss58Pre = []byte("SS58PRE")

var errInvalidAddress = errors.New("batcher: invalid account address")

// AccountID is a 32-byte Substrate account (or contract) identifier.
type AccountID [AccountIDLength]byte

// BytesToAccountID returns the AccountID of b, left-truncating longer input.
func BytesToAccountID(b []byte) AccountID {
	var a AccountID
	if len(b) > len(a) {
		b = b[len(b)-AccountIDLength:]
	}
	copy(a[AccountIDLength-len(b):], b)
	return a
}

// ParseAccountID accepts an SS58 address or a 0x-prefixed 32-byte hex string.
func ParseAccountID(s string) (AccountID, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		raw, err := hexutil.Decode(s)
		if err != nil {
			return AccountID{}, fmt.Errorf("%w: %v", errInvalidAddress, err)
		}
		if len(raw) != AccountIDLength {
			return AccountID{}, fmt.Errorf("%w: want %d bytes, got %d", errInvalidAddress, AccountIDLength, len(raw))
		}
		return BytesToAccountID(raw), nil
	}
	id, _, err := DecodeSS58(s)
	return id, err
}

// MustParseAccountID is like ParseAccountID but panics on error.
func MustParseAccountID(s string) AccountID {
	id, err := ParseAccountID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Bytes returns a copy of the raw public key.
func (a AccountID) Bytes() []byte {
	return append([]byte(nil), a[:]...)
}

// Hex returns the 0x-prefixed hex form.
func (a AccountID) Hex() string {
	return hexutil.Encode(a[:])
}

// IsZero reports whether the account is all zeroes.
func (a AccountID) IsZero() bool {
	return a == AccountID{}
}

// String returns the SS58 address with the generic prefix.
func (a AccountID) String() string {
	return a.SS58(DefaultSS58Prefix)
}

// SS58 encodes the account for the given network prefix.
func (a AccountID) SS58(prefix uint16) string {
	var payload []byte
	if prefix < 64 {
		payload = []byte{byte(prefix)}
	} else {
		first := byte((prefix&0xFC)>>2) | 0x40
		second := byte(prefix>>8) | byte(prefix&0x03)<<6
		payload = []byte{first, second}
	}
	payload = append(payload, a[:]...)
	sum := ss58Checksum(payload)
	return base58.Encode(append(payload, sum[:2]...))
}

// MarshalText implements encoding.TextMarshaler.
func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AccountID) UnmarshalText(text []byte) error {
	id, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*a = id
	return nil
}

// DecodeSS58 decodes an SS58 address into the account and its network prefix.
func DecodeSS58(addr string) (AccountID, uint16, error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return AccountID{}, 0, fmt.Errorf("%w: %v", errInvalidAddress, err)
	}
	if len(raw) < 1 {
		return AccountID{}, 0, errInvalidAddress
	}

	var prefixLen int
	var prefix uint16
	switch {
	case raw[0] < 64:
		prefixLen, prefix = 1, uint16(raw[0])
	case raw[0] < 128:
		if len(raw) < 2 {
			return AccountID{}, 0, errInvalidAddress
		}
		lower := (raw[0] << 2) | (raw[1] >> 6)
		upper := raw[1] & 0x3F
		prefixLen, prefix = 2, uint16(lower)|uint16(upper)<<8
	default:
		return AccountID{}, 0, fmt.Errorf("%w: reserved prefix byte %d", errInvalidAddress, raw[0])
	}

	if len(raw) != prefixLen+AccountIDLength+2 {
		return AccountID{}, 0, fmt.Errorf("%w: unexpected length %d", errInvalidAddress, len(raw))
	}
	body := raw[:prefixLen+AccountIDLength]
	sum := ss58Checksum(body)
	if !bytes.Equal(sum[:2], raw[len(body):]) {
		return AccountID{}, 0, fmt.Errorf("%w: checksum mismatch", errInvalidAddress)
	}
	return BytesToAccountID(body[prefixLen:]), prefix, nil
}

func ss58Checksum(payload []byte) [blake2b.Size]byte {
	return blake2b.Sum512(append(append([]byte(nil), ss58Pre...), payload...))
}
