package batcher

import (
	"github.com/holiman/uint256"
)

// Batch collects call descriptors for atomic submission as one
// utility.batch extrinsic. Calls are dispatched in the order they were added.
type Batch struct {
	calls []*CallDescriptor
	cfg   *batchConfig
}

// NewBatch creates a new Batch with the given options.
func NewBatch(opts ...BatchOption) *Batch {
	cfg := defaultBatchConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Batch{
		calls: make([]*CallDescriptor, 0, 16),
		cfg:   cfg,
	}
}

// Add appends calls to the batch and returns the batch for chaining.
func (b *Batch) Add(calls ...*CallDescriptor) *Batch {
	b.calls = append(b.calls, calls...)
	return b
}

// Len returns the number of calls in the batch.
func (b *Batch) Len() int {
	return len(b.calls)
}

// CallAt returns the call at the given index.
func (b *Batch) CallAt(i int) *CallDescriptor {
	if i < 0 || i >= len(b.calls) {
		return nil
	}
	return b.calls[i]
}

// ForEachCall iterates over all calls in the batch.
// The callback receives the index and call. Return false to stop iteration.
func (b *Batch) ForEachCall(fn func(int, *CallDescriptor) bool) {
	for i, call := range b.calls {
		if !fn(i, call) {
			return
		}
	}
}

// Plan validates the batch and freezes it into a submittable extrinsic.
func (b *Batch) Plan() (*BatchCall, error) {
	if len(b.calls) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(b.calls) > b.cfg.maxCalls {
		return nil, ErrTooManyCalls
	}

	calls := make([]*CallDescriptor, len(b.calls))
	for i, call := range b.calls {
		if call == nil {
			return nil, &PlanError{CallIndex: i, Err: ErrNilCall}
		}
		calls[i] = call.clone()
	}
	return &BatchCall{calls: calls}, nil
}

// BatchCall is a planned utility.batch extrinsic. If any inner call fails,
// the chain stops at that call and emits utility.BatchInterrupted; calls
// before it stay applied.
type BatchCall struct {
	calls []*CallDescriptor
}

// Calls implements Extrinsic.
func (bc *BatchCall) Calls() []*CallDescriptor {
	out := make([]*CallDescriptor, len(bc.calls))
	copy(out, bc.calls)
	return out
}

// Len returns the number of inner calls.
func (bc *BatchCall) Len() int {
	return len(bc.calls)
}

// TotalWeight returns the summed gas limits of the inner calls.
func (bc *BatchCall) TotalWeight() Weight {
	var total Weight
	for i, call := range bc.calls {
		w := call.opts.GasLimit
		if i == 0 {
			total.Legacy = w.Legacy
		}
		total.RefTime = saturatingAdd(total.RefTime, w.RefTime)
		total.ProofSize = saturatingAdd(total.ProofSize, w.ProofSize)
	}
	return total
}

// TotalValue returns the summed value transferred by the inner calls.
func (bc *BatchCall) TotalValue() *uint256.Int {
	total := new(uint256.Int)
	for _, call := range bc.calls {
		if call.opts.Value != nil {
			total.Add(total, call.opts.Value)
		}
	}
	return total
}

func (*BatchCall) isExtrinsic() {}

func saturatingAdd(a, b uint64) uint64 {
	if s := a + b; s >= a {
		return s
	}
	return ^uint64(0)
}
