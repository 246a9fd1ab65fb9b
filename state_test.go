package batcher_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	batcher "github.com/branched-services/go-batcher"
	"github.com/branched-services/go-batcher/batchertest"
)

func TestFetchSubmissionOptions(t *testing.T) {
	t.Run("snapshot", func(t *testing.T) {
		chain := batchertest.NewMockChain()
		chain.AccountNextIndexFn = func(_ context.Context, account batcher.AccountID) (uint64, error) {
			assert.Equal(t, batchertest.Alice, account)
			return 7, nil
		}
		var versionAt common.Hash
		chain.RuntimeVersionFn = func(_ context.Context, hash common.Hash) (batcher.RuntimeVersion, error) {
			versionAt = hash
			return batcher.RuntimeVersion{SpecName: "dev", SpecVersion: 9, TransactionVersion: 2}, nil
		}

		opts, err := batcher.FetchSubmissionOptions(context.Background(), chain, batchertest.Alice)
		require.NoError(t, err)

		assert.Equal(t, uint64(7), opts.Nonce)
		assert.Equal(t, batchertest.GenesisHash, opts.GenesisHash)
		assert.Equal(t, batchertest.BestHash, opts.BlockHash)
		assert.Equal(t, batchertest.BestHash, versionAt)
		assert.Equal(t, uint32(9), opts.RuntimeVersion.SpecVersion)
		assert.True(t, opts.Tip.IsZero())
	})

	t.Run("nonce error", func(t *testing.T) {
		boom := errors.New("pool unavailable")
		chain := batchertest.NewMockChain()
		chain.AccountNextIndexFn = func(context.Context, batcher.AccountID) (uint64, error) {
			return 0, boom
		}

		_, err := batcher.FetchSubmissionOptions(context.Background(), chain, batchertest.Alice)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "fetch nonce")
	})

	t.Run("block hash error", func(t *testing.T) {
		boom := errors.New("unknown block")
		chain := batchertest.NewMockChain()
		chain.BlockHashFn = func(_ context.Context, number *uint64) (common.Hash, error) {
			if number == nil {
				return common.Hash{}, boom
			}
			return batchertest.GenesisHash, nil
		}

		_, err := batcher.FetchSubmissionOptions(context.Background(), chain, batchertest.Alice)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("runtime version error", func(t *testing.T) {
		boom := errors.New("state pruned")
		chain := batchertest.NewMockChain()
		chain.RuntimeVersionFn = func(context.Context, common.Hash) (batcher.RuntimeVersion, error) {
			return batcher.RuntimeVersion{}, boom
		}

		_, err := batcher.FetchSubmissionOptions(context.Background(), chain, batchertest.Alice)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "runtime version")
	})

	t.Run("every call takes a fresh nonce", func(t *testing.T) {
		chain := batchertest.NewMockChain()
		for i := 0; i < 3; i++ {
			_, err := batcher.FetchSubmissionOptions(context.Background(), chain, batchertest.Alice)
			require.NoError(t, err)
		}
		assert.Equal(t, int64(3), chain.AccountNextIndexCalls.Load())
	})
}
