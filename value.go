package batcher

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// convertToABIType handles common Go type conversions for ABI encoding.
func convertToABIType(value any, abiType abi.Type) any {
	switch v := value.(type) {
	case int:
		value = big.NewInt(int64(v))
	case int64:
		value = big.NewInt(v)
	case uint64:
		value = new(big.Int).SetUint64(v)
	case int32:
		value = big.NewInt(int64(v))
	case uint32:
		value = new(big.Int).SetUint64(uint64(v))
	case *uint256.Int:
		if v == nil {
			value = new(big.Int)
		} else {
			value = v.ToBig()
		}
	case AccountID:
		if abiType.T == abi.AddressTy {
			return common.BytesToAddress(v[:])
		}
		return [AccountIDLength]byte(v)
	}

	if n, ok := value.(*big.Int); ok && n != nil && abiType.Size <= 64 {
		switch abiType.T {
		case abi.UintTy, abi.IntTy:
			return fitInteger(n, abiType)
		}
	}
	return value
}

// fitInteger narrows n to the Go type abi packs for integers of 64 bits or
// fewer. Out-of-range values are returned unchanged so Pack reports them.
func fitInteger(n *big.Int, t abi.Type) any {
	rt := t.GetType()
	if t.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return n
		}
		return reflect.ValueOf(n.Uint64()).Convert(rt).Interface()
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
	if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
		return n
	}
	return reflect.ValueOf(n.Int64()).Convert(rt).Interface()
}

// packArg ABI-encodes a single value against abiType.
func packArg(abiType abi.Type, value any) ([]byte, error) {
	args := abi.Arguments{{Type: abiType}}
	return args.Pack(convertToABIType(value, abiType))
}

// ParseArg converts a command-line string into a Go value for abiType.
// Integers accept decimal or 0x-hex, bytes accept 0x-hex, and bytes32
// additionally accepts an SS58 account.
func ParseArg(abiType abi.Type, s string) (any, error) {
	switch abiType.T {
	case abi.UintTy, abi.IntTy:
		n, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return nil, fmt.Errorf("batcher: %q is not an integer", s)
		}
		return n, nil
	case abi.BoolTy:
		return strconv.ParseBool(s)
	case abi.StringTy:
		return s, nil
	case abi.AddressTy:
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("batcher: %q is not an address", s)
		}
		return common.HexToAddress(s), nil
	case abi.BytesTy:
		return decodeHex(s)
	case abi.FixedBytesTy:
		if abiType.Size == AccountIDLength && !strings.HasPrefix(s, "0x") {
			id, err := ParseAccountID(s)
			if err != nil {
				return nil, err
			}
			return [AccountIDLength]byte(id), nil
		}
		raw, err := decodeHex(s)
		if err != nil {
			return nil, err
		}
		if len(raw) != abiType.Size {
			return nil, fmt.Errorf("batcher: want %d bytes, got %d", abiType.Size, len(raw))
		}
		return reflectFixedBytes(abiType.Size, raw), nil
	default:
		return nil, fmt.Errorf("batcher: cannot parse %s from the command line", abiType.String())
	}
}

// ParseArgs converts command-line strings for every input of method.
func ParseArgs(method abi.Method, raw []string) ([]any, error) {
	if len(raw) != len(method.Inputs) {
		return nil, &EncodingError{Method: method.Name, Index: len(raw), Err: ErrArgumentCount}
	}
	out := make([]any, len(raw))
	for i, s := range raw {
		v, err := ParseArg(method.Inputs[i].Type, s)
		if err != nil {
			return nil, &EncodingError{Method: method.Name, Index: i, Value: s, Err: err}
		}
		out[i] = v
	}
	return out, nil
}

// decodeHex accepts hex with or without the 0x prefix.
func decodeHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("batcher: invalid hex: %w", err)
	}
	return raw, nil
}

// reflectFixedBytes returns raw as a [size]byte array value for abi packing.
func reflectFixedBytes(size int, raw []byte) any {
	arr := reflect.New(reflect.ArrayOf(size, reflect.TypeOf(byte(0)))).Elem()
	reflect.Copy(arr, reflect.ValueOf(raw))
	return arr.Interface()
}
