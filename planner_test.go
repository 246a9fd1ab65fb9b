package batcher

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchPlan(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := NewBatch().Plan()
		assert.ErrorIs(t, err, ErrEmptyBatch)
	})

	t.Run("too many calls", func(t *testing.T) {
		b := NewBatch(WithMaxCalls(2)).Add(testDescriptor(), testDescriptor(), testDescriptor())
		_, err := b.Plan()
		assert.ErrorIs(t, err, ErrTooManyCalls)
	})

	t.Run("at the limit", func(t *testing.T) {
		b := NewBatch(WithMaxCalls(2)).Add(testDescriptor(), testDescriptor())
		bc, err := b.Plan()
		require.NoError(t, err)
		assert.Equal(t, 2, bc.Len())
	})

	t.Run("nil call", func(t *testing.T) {
		_, err := NewBatch().Add(testDescriptor(), nil).Plan()
		var planErr *PlanError
		require.True(t, errors.As(err, &planErr))
		assert.Equal(t, 1, planErr.CallIndex)
		assert.ErrorIs(t, err, ErrNilCall)
	})

	t.Run("preserves order", func(t *testing.T) {
		first, second := testDescriptor(), testDescriptor()
		second.method = "get"
		bc, err := NewBatch().Add(first, second).Plan()
		require.NoError(t, err)
		calls := bc.Calls()
		assert.Equal(t, "flip", calls[0].Method())
		assert.Equal(t, "get", calls[1].Method())
	})

	t.Run("planned calls are detached from the batch", func(t *testing.T) {
		call := testDescriptor()
		bc, err := NewBatch().Add(call).Plan()
		require.NoError(t, err)
		call.opts.GasLimit = Weight{}
		assert.Equal(t, NewWeight(1_010_000_000, 50_500), bc.Calls()[0].GasLimit())
	})
}

func TestBatchAccessors(t *testing.T) {
	first, second := testDescriptor(), testDescriptor()
	b := NewBatch().Add(first).Add(second)

	assert.Equal(t, 2, b.Len())
	assert.Same(t, second, b.CallAt(1))
	assert.Nil(t, b.CallAt(2))
	assert.Nil(t, b.CallAt(-1))

	var seen []int
	b.ForEachCall(func(i int, _ *CallDescriptor) bool {
		seen = append(seen, i)
		return false
	})
	assert.Equal(t, []int{0}, seen)
}

func TestBatchCallTotals(t *testing.T) {
	first := testDescriptor()
	second := testDescriptor().WithOptions(CallOptions{GasLimit: NewWeight(^uint64(0), 1)})
	bc, err := NewBatch().Add(first, second).Plan()
	require.NoError(t, err)

	total := bc.TotalWeight()
	assert.Equal(t, ^uint64(0), total.RefTime)
	assert.Equal(t, uint64(50_501), total.ProofSize)
	assert.True(t, bc.TotalValue().Eq(uint256.NewInt(7)))
}
