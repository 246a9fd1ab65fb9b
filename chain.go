package batcher

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ChainClient is the RPC capability the builders and submitters consume.
// Wire encoding and signing live behind it.
type ChainClient interface {
	// AccountNextIndex returns the next nonce for account, including pool transactions.
	AccountNextIndex(ctx context.Context, account AccountID) (uint64, error)

	// BlockHash returns the hash of block number, or of the best block when number is nil.
	BlockHash(ctx context.Context, number *uint64) (common.Hash, error)

	RuntimeVersion(ctx context.Context, blockHash common.Hash) (RuntimeVersion, error)

	// Constants returns consensus and weight constants from runtime metadata.
	Constants(ctx context.Context) (ConsensusConstants, error)

	// ErrorLookup returns the metadata used to resolve module errors.
	ErrorLookup(ctx context.Context) (ErrorLookup, error)

	DryRunCall(ctx context.Context, req CallRequest) (*DryRunResult, error)
	DryRunInstantiate(ctx context.Context, req InstantiateRequest) (*DryRunResult, error)

	// PaymentInfo returns the weight and partial fee the runtime charges for xt.
	PaymentInfo(ctx context.Context, xt Extrinsic, account AccountID) (*PaymentInfo, error)

	// Submit signs and broadcasts xt and returns its status stream.
	Submit(ctx context.Context, xt Extrinsic, signer Signer, opts *SubmissionOptions) (Subscription, error)
}

// Subscription is a live transaction status stream. Unsubscribe must be
// called once a terminal status is reached; it is safe to call more than once.
type Subscription interface {
	Updates() <-chan TxUpdate
	Err() <-chan error
	Unsubscribe()
}

// Signer signs payloads for an account. Keypair derivation is out of scope.
type Signer interface {
	Account() AccountID
	Sign(payload []byte) ([]byte, error)
}

// Extrinsic is anything the chain client can encode and submit.
// This is a sealed interface: *CallDescriptor and *BatchCall implement it.
type Extrinsic interface {
	isExtrinsic()

	// Calls returns the contract calls carried by the extrinsic, in order.
	Calls() []*CallDescriptor
}

// RuntimeVersion identifies the runtime a transaction is signed against.
type RuntimeVersion struct {
	SpecName           string `json:"specName"`
	ImplName           string `json:"implName"`
	SpecVersion        uint32 `json:"specVersion"`
	ImplVersion        uint32 `json:"implVersion"`
	TransactionVersion uint32 `json:"transactionVersion"`
}

// StorageDepositKind tags a StorageDeposit.
type StorageDepositKind uint8

const (
	DepositNone StorageDepositKind = iota
	DepositCharge
	DepositRefund
)

func (k StorageDepositKind) String() string {
	switch k {
	case DepositCharge:
		return "Charge"
	case DepositRefund:
		return "Refund"
	default:
		return "None"
	}
}

// StorageDeposit is the storage deposit reported by a dry run.
type StorageDeposit struct {
	Kind   StorageDepositKind
	Amount *uint256.Int
}

// Charge returns a deposit the caller pays.
func Charge(amount *uint256.Int) StorageDeposit {
	return StorageDeposit{Kind: DepositCharge, Amount: amount}
}

// Refund returns a deposit the caller gets back.
func Refund(amount *uint256.Int) StorageDeposit {
	return StorageDeposit{Kind: DepositRefund, Amount: amount}
}

// Limit returns the storage deposit limit for submission: a charge is
// inflated by f, a refund is passed through, and None yields nil (no limit).
func (d StorageDeposit) Limit(f SafetyFactor) *uint256.Int {
	if d.Amount == nil {
		return nil
	}
	switch d.Kind {
	case DepositCharge:
		return f.Apply(d.Amount)
	case DepositRefund:
		return d.Amount.Clone()
	default:
		return nil
	}
}

func (d StorageDeposit) String() string {
	if d.Kind == DepositNone || d.Amount == nil {
		return "None"
	}
	return d.Kind.String() + "(" + d.Amount.Dec() + ")"
}

// CallRequest is a read-only contract message dry run.
type CallRequest struct {
	Origin              AccountID
	Dest                AccountID
	Value               *uint256.Int
	GasLimit            Weight
	StorageDepositLimit *uint256.Int
	Input               []byte
}

// InstantiateRequest is a read-only instantiation dry run that uploads Code.
type InstantiateRequest struct {
	Origin              AccountID
	Value               *uint256.Int
	GasLimit            Weight
	StorageDepositLimit *uint256.Int
	Code                []byte
	Data                []byte
	Salt                []byte
}

// DryRunResult is the outcome of a simulated dispatch.
type DryRunResult struct {
	GasConsumed    Weight
	GasRequired    Weight
	StorageDeposit StorageDeposit

	// Err is set when the simulated dispatch failed.
	Err *DispatchError

	// Data is the message return data.
	Data []byte

	// Account is the would-be contract address of an instantiation.
	Account AccountID

	DebugMessage string
}

// PaymentInfo is the fee breakdown reported by payment_queryInfo.
type PaymentInfo struct {
	Weight     Weight
	Class      string
	PartialFee *uint256.Int
}
