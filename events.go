package batcher

import (
	"github.com/ethereum/go-ethereum/common"
)

// Event sections and methods the submitters inspect.
const (
	SectionSystem    = "system"
	SectionUtility   = "utility"
	SectionContracts = "contracts"

	MethodExtrinsicFailed  = "ExtrinsicFailed"
	MethodExtrinsicSuccess = "ExtrinsicSuccess"
	MethodBatchInterrupted = "BatchInterrupted"
	MethodBatchCompleted   = "BatchCompleted"
	MethodTooManyCalls     = "TooManyCalls"
	MethodInstantiated     = "Instantiated"
	MethodContractEmitted  = "ContractEmitted"
)

// StatusKind is the lifecycle stage of a submitted transaction.
type StatusKind uint8

const (
	StatusFuture StatusKind = iota
	StatusReady
	StatusBroadcast
	StatusInBlock
	StatusRetracted
	StatusFinalityTimeout
	StatusFinalized
	StatusUsurped
	StatusDropped
	StatusInvalid
)

var statusNames = [...]string{
	StatusFuture:          "Future",
	StatusReady:           "Ready",
	StatusBroadcast:       "Broadcast",
	StatusInBlock:         "InBlock",
	StatusRetracted:       "Retracted",
	StatusFinalityTimeout: "FinalityTimeout",
	StatusFinalized:       "Finalized",
	StatusUsurped:         "Usurped",
	StatusDropped:         "Dropped",
	StatusInvalid:         "Invalid",
}

func (k StatusKind) String() string {
	if int(k) < len(statusNames) {
		return statusNames[k]
	}
	return "Unknown"
}

// IsIncluded reports whether the transaction is in a block.
func (k StatusKind) IsIncluded() bool {
	return k == StatusInBlock || k == StatusFinalized
}

// IsError reports whether the node gave up on the transaction.
func (k StatusKind) IsError() bool {
	switch k {
	case StatusDropped, StatusInvalid, StatusUsurped, StatusFinalityTimeout:
		return true
	default:
		return false
	}
}

// TxStatus is a status update. BlockHash is set for InBlock, Finalized,
// Retracted, FinalityTimeout and Usurped.
type TxStatus struct {
	Kind      StatusKind
	BlockHash common.Hash
}

// TxUpdate pairs a status with the events emitted by the extrinsic in the
// including block. Events are empty before inclusion.
type TxUpdate struct {
	Status      TxStatus
	Events      []Event
	BlockNumber uint64
}

// Event is a decoded runtime event record for the submitted extrinsic.
type Event struct {
	Section string
	Method  string

	// Index is the failing call for utility.BatchInterrupted.
	Index uint32

	// Error is set for system.ExtrinsicFailed and utility.BatchInterrupted.
	Error *DispatchError

	// Contract is set for contracts.Instantiated and contracts.ContractEmitted.
	Contract AccountID
	Deployer AccountID

	// Data is the contract-emitted payload.
	Data []byte

	Docs []string
}

// Name returns "section.Method".
func (e Event) Name() string {
	return e.Section + "." + e.Method
}

func (e Event) is(section, method string) bool {
	return e.Section == section && e.Method == method
}

func (e Event) IsExtrinsicFailed() bool  { return e.is(SectionSystem, MethodExtrinsicFailed) }
func (e Event) IsBatchInterrupted() bool { return e.is(SectionUtility, MethodBatchInterrupted) }
func (e Event) IsTooManyCalls() bool     { return e.is(SectionUtility, MethodTooManyCalls) }
func (e Event) IsInstantiated() bool     { return e.is(SectionContracts, MethodInstantiated) }
func (e Event) IsContractEmitted() bool  { return e.is(SectionContracts, MethodContractEmitted) }

func findEvent(events []Event, match func(Event) bool) (Event, bool) {
	for _, ev := range events {
		if match(ev) {
			return ev, true
		}
	}
	return Event{}, false
}
