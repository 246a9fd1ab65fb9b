package batcher

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func testDescriptor() *CallDescriptor {
	return &CallDescriptor{
		kind:     KindCall,
		method:   "flip",
		selector: Selector{0xde, 0xad, 0xbe, 0xef},
		args:     [][]byte{{0x01}, {0x02, 0x03}},
		input:    []byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02, 0x03},
		dest:     BytesToAccountID([]byte{0xc0, 0xff, 0xee}),
		opts: CallOptions{
			GasLimit:            NewWeight(1_010_000_000, 50_500),
			StorageDepositLimit: uint256.NewInt(1_010_000),
			Value:               uint256.NewInt(7),
		},
	}
}

func TestCallDescriptorAccessors(t *testing.T) {
	call := testDescriptor()

	assert.Equal(t, KindCall, call.Kind())
	assert.Equal(t, "flip", call.Method())
	assert.Equal(t, "0xdeadbeef", call.Selector().String())
	assert.Equal(t, [][]byte{{0x01}, {0x02, 0x03}}, call.Args())
	assert.Equal(t, NewWeight(1_010_000_000, 50_500), call.GasLimit())
	assert.Equal(t, uint64(1_010_000), call.StorageDepositLimit().Uint64())
	assert.Equal(t, uint64(7), call.Value().Uint64())
	assert.Equal(t, []*CallDescriptor{call}, call.Calls())
}

func TestCallDescriptorImmutability(t *testing.T) {
	t.Run("args", func(t *testing.T) {
		call := testDescriptor()
		args := call.Args()
		args[0][0] = 0xff
		args[1] = nil
		assert.Equal(t, [][]byte{{0x01}, {0x02, 0x03}}, call.Args())
	})

	t.Run("input", func(t *testing.T) {
		call := testDescriptor()
		call.Input()[0] = 0x00
		assert.Equal(t, byte(0xde), call.Input()[0])
	})

	t.Run("balances", func(t *testing.T) {
		call := testDescriptor()
		call.StorageDepositLimit().SetUint64(0)
		call.Value().SetUint64(0)
		opts := call.Options()
		opts.Value.SetUint64(0)
		assert.Equal(t, uint64(1_010_000), call.StorageDepositLimit().Uint64())
		assert.Equal(t, uint64(7), call.Value().Uint64())
	})

	t.Run("with options copies", func(t *testing.T) {
		call := testDescriptor()
		limit := uint256.NewInt(5)
		updated := call.WithOptions(CallOptions{GasLimit: NewWeight(1, 1), StorageDepositLimit: limit})
		limit.SetUint64(6)

		assert.NotSame(t, call, updated)
		assert.Equal(t, NewWeight(1_010_000_000, 50_500), call.GasLimit())
		assert.Equal(t, NewWeight(1, 1), updated.GasLimit())
		assert.Equal(t, uint64(5), updated.StorageDepositLimit().Uint64())
		assert.Nil(t, updated.Value())
		assert.Equal(t, call.Input(), updated.Input())
	})

	t.Run("nil balances", func(t *testing.T) {
		call := &CallDescriptor{}
		assert.Nil(t, call.StorageDepositLimit())
		assert.Nil(t, call.Value())
		assert.Nil(t, call.Code())
		assert.Nil(t, call.Salt())
	})
}

func TestCallKindString(t *testing.T) {
	assert.Equal(t, "call", KindCall.String())
	assert.Equal(t, "instantiate", KindInstantiate.String())
}
