package batcher

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"
)

// SubmissionOptions is the per-attempt snapshot a transaction is signed
// against. A snapshot is single-use: every submission fetches a new one.
type SubmissionOptions struct {
	Nonce          uint64
	Tip            *uint256.Int
	GenesisHash    common.Hash
	BlockHash      common.Hash
	RuntimeVersion RuntimeVersion
}

// FetchSubmissionOptions reads a fresh snapshot for account. The nonce,
// genesis hash and best block hash are fetched concurrently; the runtime
// version is then read at that best block.
func FetchSubmissionOptions(ctx context.Context, client ChainClient, account AccountID) (*SubmissionOptions, error) {
	opts := &SubmissionOptions{Tip: new(uint256.Int)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		nonce, err := client.AccountNextIndex(gctx, account)
		if err != nil {
			return fmt.Errorf("batcher: fetch nonce: %w", err)
		}
		opts.Nonce = nonce
		return nil
	})
	g.Go(func() error {
		genesis := uint64(0)
		hash, err := client.BlockHash(gctx, &genesis)
		if err != nil {
			return fmt.Errorf("batcher: fetch genesis hash: %w", err)
		}
		opts.GenesisHash = hash
		return nil
	})
	g.Go(func() error {
		hash, err := client.BlockHash(gctx, nil)
		if err != nil {
			return fmt.Errorf("batcher: fetch block hash: %w", err)
		}
		opts.BlockHash = hash
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	version, err := client.RuntimeVersion(ctx, opts.BlockHash)
	if err != nil {
		return nil, fmt.Errorf("batcher: fetch runtime version: %w", err)
	}
	opts.RuntimeVersion = version
	return opts, nil
}
