// Package batcher deploys and invokes smart contracts on Substrate-style
// chains with the contracts pallet, estimating cost up front and submitting
// calls singly or as one atomic utility.batch extrinsic.
//
// Every live call goes through the same protocol:
//   - Estimate a per-call weight ceiling from the chain's block weight budget
//   - Dry-run the call under that ceiling and stop on a predicted failure
//   - Inflate the measured weight and storage deposit by a safety factor
//   - Query payment info and use its weight as the authoritative budget
//   - Submit against a fresh nonce and block snapshot, then watch the
//     status stream until inclusion or a classified failure
//
// # Basic Usage
//
//	flipper := batcher.NewContract(client, addr, flipperABI, signer.Account(),
//	    batcher.WithLogger(logger))
//
//	call, err := flipper.Build(ctx, "flip")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	submitter := batcher.NewSubmitter(client, signer)
//	receipt, err := submitter.Submit(ctx, call, call2, call3)
//	if b, ok := batcher.IsBatchInterrupted(err); ok {
//	    // calls before b.Index were applied
//	}
//
// # Chain Access
//
// The package talks to the chain only through ChainClient. The substrate
// subpackage implements it over JSON-RPC and delegates SCALE encoding and
// signing to a registered Codec; batchertest provides a scripted mock.
//
// # Failures
//
// Dispatch errors are resolved against runtime metadata by Classify.
// Storage deposit failures classify as insufficient funds and match
// ErrInsufficientFunds with errors.Is. Nothing in this package retries:
// use IsRetryable to decide whether to rebuild and resubmit.
package batcher
