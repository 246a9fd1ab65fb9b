package batcher

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// SelectorSize is the message selector size in bytes.
const SelectorSize = 4

// Selector is the 4-byte message identifier that prefixes call data.
type Selector [SelectorSize]byte

// SelectorOf returns the selector of method.
func SelectorOf(method abi.Method) Selector {
	var sel Selector
	copy(sel[:], method.ID)
	return sel
}

func (s Selector) String() string {
	return fmt.Sprintf("0x%x", s[:])
}

// CallDataEncoder encodes contract call data.
type CallDataEncoder struct{}

// NewCallDataEncoder creates a new call data encoder.
func NewCallDataEncoder() *CallDataEncoder {
	return &CallDataEncoder{}
}

// EncodeArgs encodes each argument separately against its ABI input,
// in declaration order. The count must match exactly.
func (e *CallDataEncoder) EncodeArgs(method abi.Method, args []any) ([][]byte, error) {
	if len(args) != len(method.Inputs) {
		return nil, &EncodingError{
			Method: method.Name,
			Index:  len(args),
			Err:    fmt.Errorf("%w: want %d, got %d", ErrArgumentCount, len(method.Inputs), len(args)),
		}
	}

	encoded := make([][]byte, len(args))
	for i, arg := range args {
		enc, err := packArg(method.Inputs[i].Type, arg)
		if err != nil {
			return nil, &EncodingError{Method: method.Name, Index: i, Value: arg, Err: err}
		}
		encoded[i] = enc
	}
	return encoded, nil
}

// Encode produces the full message input.
// Format: [selector:4][abi-encoded args]
func (e *CallDataEncoder) Encode(method abi.Method, args []any) ([]byte, error) {
	packed, err := e.pack(method, args)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, SelectorSize+len(packed))
	data = append(data, method.ID[:SelectorSize]...)
	return append(data, packed...), nil
}

// EncodeConstructor produces constructor data. Constructors carry no selector.
func (e *CallDataEncoder) EncodeConstructor(ctor abi.Method, args []any) ([]byte, error) {
	return e.pack(ctor, args)
}

func (e *CallDataEncoder) pack(method abi.Method, args []any) ([]byte, error) {
	if _, err := e.EncodeArgs(method, args); err != nil {
		return nil, err
	}
	converted := make([]any, len(args))
	for i, arg := range args {
		converted[i] = convertToABIType(arg, method.Inputs[i].Type)
	}
	packed, err := method.Inputs.Pack(converted...)
	if err != nil {
		return nil, &EncodingError{Method: method.Name, Index: -1, Err: err}
	}
	return packed, nil
}

// DecodeCallData splits call data into its method and arguments.
// Useful for debugging and testing.
func DecodeCallData(contractABI abi.ABI, data []byte) (method *abi.Method, args []any, err error) {
	if len(data) < SelectorSize {
		return nil, nil, fmt.Errorf("batcher: call data too short: %d bytes", len(data))
	}
	method, err = contractABI.MethodById(data[:SelectorSize])
	if err != nil {
		return nil, nil, fmt.Errorf("batcher: %w", err)
	}
	args, err = method.Inputs.Unpack(data[SelectorSize:])
	if err != nil {
		return nil, nil, &EncodingError{Method: method.Name, Index: -1, Err: err}
	}
	return method, args, nil
}
