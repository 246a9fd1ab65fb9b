// Package batchertest provides test utilities for code built on batcher,
// including a configurable mock chain and scripted status streams.
package batchertest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	batcher "github.com/branched-services/go-batcher"
)

// Compile-time check that the mocks satisfy the batcher interfaces.
var (
	_ batcher.ChainClient  = (*MockChain)(nil)
	_ batcher.Subscription = (*Subscription)(nil)
	_ batcher.Signer       = (*Signer)(nil)
)

// Well-known accounts and hashes used by the defaults.
var (
	// Alice is the //Alice development account.
	Alice = batcher.MustParseAccountID("5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY")

	// DeployedAddress is the contract address reported by default instantiations.
	DeployedAddress = batcher.BytesToAccountID(common.FromHex("0xc0ffee"))

	GenesisHash = common.HexToHash("0x01")
	BestHash    = common.HexToHash("0x02")
	InBlockHash = common.HexToHash("0x03")
)

// Default dry-run figures.
var (
	DefaultGasRequired = batcher.NewWeight(1_000_000_000, 50_000)
	DefaultDeposit     = batcher.Charge(uint256.NewInt(1_000_000))
	DefaultPartialFee  = uint256.NewInt(125_000_000)
)

// Contracts pallet errors in DefaultErrors.
var (
	ErrStorageDepositLimitExhausted = batcher.ModuleError{Index: 8, Error: 24}
	ErrStorageDepositNotEnoughFunds = batcher.ModuleError{Index: 8, Error: 23}
	ErrContractTrapped              = batcher.ModuleError{Index: 8, Error: 11}
)

// DefaultErrors returns the error metadata served by an unconfigured MockChain.
func DefaultErrors() batcher.ErrorTable {
	return batcher.ErrorTable{
		ErrStorageDepositLimitExhausted: {Section: "contracts", Name: "StorageDepositLimitExhausted", Docs: []string{"More storage was created than allowed by the storage deposit limit."}},
		ErrStorageDepositNotEnoughFunds: {Section: "contracts", Name: "StorageDepositNotEnoughFunds", Docs: []string{"Origin doesn't have enough balance to pay the required storage deposits."}},
		ErrContractTrapped:              {Section: "contracts", Name: "ContractTrapped", Docs: []string{"Contract trapped during execution."}},
	}
}

// DefaultConstants returns a weight-v2 chain with six second Babe blocks.
func DefaultConstants() batcher.ConsensusConstants {
	blockTime := uint64(6000)
	maxBlock := batcher.NewWeight(2_000_000_000_000, 5_242_880)
	maxExtrinsic := batcher.NewWeight(1_479_873_955_000, 5_242_880)
	return batcher.ConsensusConstants{
		BabeExpectedBlockTime: &blockTime,
		MaxBlockWeight:        &maxBlock,
		MaxExtrinsicWeight:    &maxExtrinsic,
		IsWeightV2:            true,
	}
}

// Submission is a recorded Submit call.
type Submission struct {
	Extrinsic batcher.Extrinsic
	Signer    batcher.AccountID
	Options   *batcher.SubmissionOptions
}

// MockChain is a configurable batcher.ChainClient for tests.
// All methods are configurable via function fields. Unconfigured
// methods return a healthy chain: dry runs succeed, payment info echoes
// the call weights and every submission lands InBlock.
type MockChain struct {
	mu          sync.Mutex
	submissions []Submission

	AccountNextIndexFn  func(context.Context, batcher.AccountID) (uint64, error)
	BlockHashFn         func(context.Context, *uint64) (common.Hash, error)
	RuntimeVersionFn    func(context.Context, common.Hash) (batcher.RuntimeVersion, error)
	ConstantsFn         func(context.Context) (batcher.ConsensusConstants, error)
	ErrorLookupFn       func(context.Context) (batcher.ErrorLookup, error)
	DryRunCallFn        func(context.Context, batcher.CallRequest) (*batcher.DryRunResult, error)
	DryRunInstantiateFn func(context.Context, batcher.InstantiateRequest) (*batcher.DryRunResult, error)
	PaymentInfoFn       func(context.Context, batcher.Extrinsic, batcher.AccountID) (*batcher.PaymentInfo, error)
	SubmitFn            func(context.Context, batcher.Extrinsic, batcher.Signer, *batcher.SubmissionOptions) (batcher.Subscription, error)

	// Call counters (atomic for concurrent access).
	AccountNextIndexCalls atomic.Int64
	DryRunCalls           atomic.Int64
	PaymentInfoCalls      atomic.Int64
	SubmitCalls           atomic.Int64
}

// NewMockChain returns a MockChain with default behavior.
func NewMockChain() *MockChain {
	return &MockChain{}
}

func (m *MockChain) AccountNextIndex(ctx context.Context, account batcher.AccountID) (uint64, error) {
	m.AccountNextIndexCalls.Add(1)
	if m.AccountNextIndexFn != nil {
		return m.AccountNextIndexFn(ctx, account)
	}
	return uint64(len(m.Submissions())), nil
}

func (m *MockChain) BlockHash(ctx context.Context, number *uint64) (common.Hash, error) {
	if m.BlockHashFn != nil {
		return m.BlockHashFn(ctx, number)
	}
	if number != nil && *number == 0 {
		return GenesisHash, nil
	}
	return BestHash, nil
}

func (m *MockChain) RuntimeVersion(ctx context.Context, blockHash common.Hash) (batcher.RuntimeVersion, error) {
	if m.RuntimeVersionFn != nil {
		return m.RuntimeVersionFn(ctx, blockHash)
	}
	return batcher.RuntimeVersion{SpecName: "mock", ImplName: "mock", SpecVersion: 100, TransactionVersion: 1}, nil
}

func (m *MockChain) Constants(ctx context.Context) (batcher.ConsensusConstants, error) {
	if m.ConstantsFn != nil {
		return m.ConstantsFn(ctx)
	}
	return DefaultConstants(), nil
}

func (m *MockChain) ErrorLookup(ctx context.Context) (batcher.ErrorLookup, error) {
	if m.ErrorLookupFn != nil {
		return m.ErrorLookupFn(ctx)
	}
	return DefaultErrors(), nil
}

func (m *MockChain) DryRunCall(ctx context.Context, req batcher.CallRequest) (*batcher.DryRunResult, error) {
	m.DryRunCalls.Add(1)
	if m.DryRunCallFn != nil {
		return m.DryRunCallFn(ctx, req)
	}
	return &batcher.DryRunResult{
		GasConsumed:    DefaultGasRequired,
		GasRequired:    DefaultGasRequired,
		StorageDeposit: DefaultDeposit,
	}, nil
}

func (m *MockChain) DryRunInstantiate(ctx context.Context, req batcher.InstantiateRequest) (*batcher.DryRunResult, error) {
	m.DryRunCalls.Add(1)
	if m.DryRunInstantiateFn != nil {
		return m.DryRunInstantiateFn(ctx, req)
	}
	return &batcher.DryRunResult{
		GasConsumed:    DefaultGasRequired,
		GasRequired:    DefaultGasRequired,
		StorageDeposit: DefaultDeposit,
		Account:        DeployedAddress,
	}, nil
}

func (m *MockChain) PaymentInfo(ctx context.Context, xt batcher.Extrinsic, account batcher.AccountID) (*batcher.PaymentInfo, error) {
	m.PaymentInfoCalls.Add(1)
	if m.PaymentInfoFn != nil {
		return m.PaymentInfoFn(ctx, xt, account)
	}
	var w batcher.Weight
	for _, call := range xt.Calls() {
		w.RefTime += call.GasLimit().RefTime
		w.ProofSize += call.GasLimit().ProofSize
	}
	return &batcher.PaymentInfo{Weight: w, Class: "normal", PartialFee: DefaultPartialFee.Clone()}, nil
}

func (m *MockChain) Submit(ctx context.Context, xt batcher.Extrinsic, signer batcher.Signer, opts *batcher.SubmissionOptions) (batcher.Subscription, error) {
	m.SubmitCalls.Add(1)
	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, xt, signer, opts)
	}
	m.mu.Lock()
	m.submissions = append(m.submissions, Submission{Extrinsic: xt, Signer: signer.Account(), Options: opts})
	m.mu.Unlock()

	return NewSubscription(
		Status(batcher.StatusReady),
		InBlock(InBlockHash, SuccessEvents(xt, signer.Account())...),
	), nil
}

// Submissions returns the submissions recorded by the default Submit.
func (m *MockChain) Submissions() []Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Submission, len(m.submissions))
	copy(out, m.submissions)
	return out
}

// SuccessEvents returns the events a successful xt emits: an Instantiated
// event per instantiation and a final system.ExtrinsicSuccess.
func SuccessEvents(xt batcher.Extrinsic, deployer batcher.AccountID) []batcher.Event {
	var events []batcher.Event
	for _, call := range xt.Calls() {
		if call.Kind() == batcher.KindInstantiate {
			events = append(events, batcher.Event{
				Section:  batcher.SectionContracts,
				Method:   batcher.MethodInstantiated,
				Contract: DeployedAddress,
				Deployer: deployer,
			})
		}
	}
	if len(xt.Calls()) > 1 {
		events = append(events, batcher.Event{Section: batcher.SectionUtility, Method: batcher.MethodBatchCompleted})
	}
	return append(events, batcher.Event{Section: batcher.SectionSystem, Method: batcher.MethodExtrinsicSuccess})
}

// Status returns an update carrying only a status.
func Status(kind batcher.StatusKind) batcher.TxUpdate {
	return batcher.TxUpdate{Status: batcher.TxStatus{Kind: kind}}
}

// InBlock returns an InBlock update with events.
func InBlock(hash common.Hash, events ...batcher.Event) batcher.TxUpdate {
	return batcher.TxUpdate{
		Status:      batcher.TxStatus{Kind: batcher.StatusInBlock, BlockHash: hash},
		Events:      events,
		BlockNumber: 42,
	}
}

// Finalized returns a Finalized update with events.
func Finalized(hash common.Hash, events ...batcher.Event) batcher.TxUpdate {
	u := InBlock(hash, events...)
	u.Status.Kind = batcher.StatusFinalized
	return u
}

// BatchInterrupted returns a utility.BatchInterrupted event.
func BatchInterrupted(index uint32, err *batcher.DispatchError) batcher.Event {
	return batcher.Event{Section: batcher.SectionUtility, Method: batcher.MethodBatchInterrupted, Index: index, Error: err}
}

// ExtrinsicFailed returns a system.ExtrinsicFailed event.
func ExtrinsicFailed(err *batcher.DispatchError) batcher.Event {
	return batcher.Event{Section: batcher.SectionSystem, Method: batcher.MethodExtrinsicFailed, Error: err}
}

// TooManyCalls returns a utility.TooManyCalls event.
func TooManyCalls() batcher.Event {
	return batcher.Event{Section: batcher.SectionUtility, Method: batcher.MethodTooManyCalls}
}

// Subscription is a scripted status stream.
type Subscription struct {
	updates      chan batcher.TxUpdate
	errs         chan error
	closeOnce    sync.Once
	unsubscribes atomic.Int64
}

// NewSubscription returns a stream that yields updates in order and then
// stays open.
func NewSubscription(updates ...batcher.TxUpdate) *Subscription {
	s := &Subscription{
		updates: make(chan batcher.TxUpdate, len(updates)),
		errs:    make(chan error, 1),
	}
	for _, u := range updates {
		s.updates <- u
	}
	return s
}

// Fail queues a stream error.
func (s *Subscription) Fail(err error) *Subscription {
	s.errs <- err
	return s
}

// Close ends the update stream.
func (s *Subscription) Close() *Subscription {
	s.closeOnce.Do(func() { close(s.updates) })
	return s
}

func (s *Subscription) Updates() <-chan batcher.TxUpdate { return s.updates }
func (s *Subscription) Err() <-chan error                { return s.errs }

func (s *Subscription) Unsubscribe() {
	s.unsubscribes.Add(1)
}

// Unsubscribes returns how many times Unsubscribe was called.
func (s *Subscription) Unsubscribes() int {
	return int(s.unsubscribes.Load())
}

// Signer is a fake signer that returns a fixed signature.
type Signer struct {
	ID batcher.AccountID
}

// NewSigner returns a Signer for id.
func NewSigner(id batcher.AccountID) *Signer {
	return &Signer{ID: id}
}

func (s *Signer) Account() batcher.AccountID { return s.ID }

func (s *Signer) Sign(payload []byte) ([]byte, error) {
	sig := make([]byte, 64)
	copy(sig, payload)
	return sig, nil
}
