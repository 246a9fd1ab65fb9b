package batcher

import (
	"github.com/holiman/uint256"
)

// CallKind distinguishes message calls from instantiations.
type CallKind uint8

const (
	// KindCall invokes a message on a deployed contract.
	KindCall CallKind = iota

	// KindInstantiate uploads code and runs a constructor.
	KindInstantiate
)

func (k CallKind) String() string {
	if k == KindInstantiate {
		return "instantiate"
	}
	return "call"
}

// CallOptions are the submission limits attached to a descriptor.
type CallOptions struct {
	GasLimit Weight

	// StorageDepositLimit is nil when no limit applies.
	StorageDepositLimit *uint256.Int

	Value *uint256.Int
}

func (o CallOptions) clone() CallOptions {
	o.StorageDepositLimit = cloneBalance(o.StorageDepositLimit)
	o.Value = cloneBalance(o.Value)
	return o
}

// CallDescriptor is a finalized call ready for submission.
// CallDescriptor is immutable - accessors return copies.
// Descriptors embed weights measured against a specific chain state and
// should be rebuilt rather than resubmitted after a failure.
type CallDescriptor struct {
	kind     CallKind
	method   string
	selector Selector
	args     [][]byte
	input    []byte
	dest     AccountID
	code     []byte
	salt     []byte
	opts     CallOptions
}

// Kind returns whether this is a message call or an instantiation.
func (c *CallDescriptor) Kind() CallKind {
	return c.kind
}

// Method returns the message or constructor name.
func (c *CallDescriptor) Method() string {
	return c.method
}

// Selector returns the message selector. It is zero for instantiations.
func (c *CallDescriptor) Selector() Selector {
	return c.selector
}

// Args returns the encoded arguments in declaration order.
func (c *CallDescriptor) Args() [][]byte {
	out := make([][]byte, len(c.args))
	for i, a := range c.args {
		out[i] = cloneBytes(a)
	}
	return out
}

// Input returns the full call data (selector followed by arguments), or
// the constructor data for an instantiation.
func (c *CallDescriptor) Input() []byte {
	return cloneBytes(c.input)
}

// Dest returns the target contract of a message call.
func (c *CallDescriptor) Dest() AccountID {
	return c.dest
}

// Code returns the uploaded code of an instantiation.
func (c *CallDescriptor) Code() []byte {
	return cloneBytes(c.code)
}

// Salt returns the instantiation salt.
func (c *CallDescriptor) Salt() []byte {
	return cloneBytes(c.salt)
}

// Options returns the submission limits.
func (c *CallDescriptor) Options() CallOptions {
	return c.opts.clone()
}

// GasLimit returns the weight limit used for submission.
func (c *CallDescriptor) GasLimit() Weight {
	return c.opts.GasLimit
}

// StorageDepositLimit returns the deposit limit, or nil when unlimited.
func (c *CallDescriptor) StorageDepositLimit() *uint256.Int {
	return cloneBalance(c.opts.StorageDepositLimit)
}

// Value returns the transferred balance, or nil.
func (c *CallDescriptor) Value() *uint256.Int {
	return cloneBalance(c.opts.Value)
}

// WithOptions returns a new descriptor with opts applied.
func (c *CallDescriptor) WithOptions(opts CallOptions) *CallDescriptor {
	clone := c.clone()
	clone.opts = opts.clone()
	return clone
}

// Calls implements Extrinsic.
func (c *CallDescriptor) Calls() []*CallDescriptor {
	return []*CallDescriptor{c}
}

func (*CallDescriptor) isExtrinsic() {}

// clone creates a deep copy of the descriptor.
func (c *CallDescriptor) clone() *CallDescriptor {
	clone := *c
	clone.args = c.Args()
	clone.input = cloneBytes(c.input)
	clone.code = cloneBytes(c.code)
	clone.salt = cloneBytes(c.salt)
	clone.opts = c.opts.clone()
	return &clone
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneBalance(v *uint256.Int) *uint256.Int {
	if v == nil {
		return nil
	}
	return v.Clone()
}
