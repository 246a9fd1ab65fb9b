package batcher

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
)

// Contract wraps a deployed contract for building calls against it.
type Contract struct {
	client  ChainClient
	address AccountID
	abi     abi.ABI
	caller  AccountID
	encoder *CallDataEncoder
	cfg     *config
	logger  zerolog.Logger
}

// NewContract creates a Contract wrapper. Dry runs and payment-info queries
// are made on behalf of caller.
func NewContract(client ChainClient, address AccountID, contractABI abi.ABI, caller AccountID, opts ...Option) *Contract {
	cfg := newConfig(opts)
	return &Contract{
		client:  client,
		address: address,
		abi:     contractABI,
		caller:  caller,
		encoder: NewCallDataEncoder(),
		cfg:     cfg,
		logger:  cfg.logger.With().Str("component", "contract").Stringer("address", address).Logger(),
	}
}

// Address returns the contract address.
func (c *Contract) Address() AccountID {
	return c.address
}

// ABI returns the contract ABI.
func (c *Contract) ABI() abi.ABI {
	return c.abi
}

// HasMethod returns true if the contract has a method with the given name.
func (c *Contract) HasMethod(methodName string) bool {
	_, ok := c.abi.Methods[methodName]
	return ok
}

// MethodNames returns all method names in the contract ABI, sorted.
func (c *Contract) MethodNames() []string {
	names := make([]string, 0, len(c.abi.Methods))
	for name := range c.abi.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build dry-runs methodName with args and returns a finalized descriptor.
// A dry run that reports a dispatch error yields a *DryRunRejectedError and
// no descriptor.
func (c *Contract) Build(ctx context.Context, methodName string, args ...any) (*CallDescriptor, error) {
	return c.BuildWithValue(ctx, methodName, nil, args...)
}

// BuildWithValue is like Build but transfers value with the call.
// A non-zero value on a non-payable method fails before any RPC.
func (c *Contract) BuildWithValue(ctx context.Context, methodName string, value *uint256.Int, args ...any) (*CallDescriptor, error) {
	method, err := c.method(methodName)
	if err != nil {
		return nil, err
	}
	if err := checkPayable(method, value); err != nil {
		return nil, err
	}

	encodedArgs, err := c.encoder.EncodeArgs(method, args)
	if err != nil {
		return nil, err
	}
	input, err := c.encoder.Encode(method, args)
	if err != nil {
		return nil, err
	}

	res, err := c.dryRun(ctx, methodName, value, input)
	if err != nil {
		return nil, err
	}

	desc := &CallDescriptor{
		kind:     KindCall,
		method:   methodName,
		selector: SelectorOf(method),
		args:     encodedArgs,
		input:    input,
		dest:     c.address,
		opts:     CallOptions{Value: cloneBalance(value)},
	}
	return finalize(ctx, c.client, c.cfg, c.logger, c.caller, desc, res)
}

// Query dry-runs methodName and decodes its return values. Nothing is submitted.
func (c *Contract) Query(ctx context.Context, methodName string, args ...any) ([]any, error) {
	method, err := c.method(methodName)
	if err != nil {
		return nil, err
	}
	input, err := c.encoder.Encode(method, args)
	if err != nil {
		return nil, err
	}

	res, err := c.dryRun(ctx, methodName, nil, input)
	if err != nil {
		return nil, err
	}
	if len(method.Outputs) == 0 {
		return nil, nil
	}
	out, err := method.Outputs.Unpack(res.Data)
	if err != nil {
		return nil, fmt.Errorf("batcher: decode %q output: %w", methodName, err)
	}
	return out, nil
}

func (c *Contract) dryRun(ctx context.Context, methodName string, value *uint256.Int, input []byte) (*DryRunResult, error) {
	gasLimit, err := gasLimitFor(ctx, c.client, c.cfg, c.logger)
	if err != nil {
		return nil, err
	}

	res, err := c.client.DryRunCall(ctx, CallRequest{
		Origin:   c.caller,
		Dest:     c.address,
		Value:    value,
		GasLimit: gasLimit,
		Input:    input,
	})
	if err != nil {
		return nil, fmt.Errorf("batcher: dry run %q: %w", methodName, err)
	}
	if res.Err != nil {
		return nil, rejectDryRun(ctx, c.client, c.cfg, c.logger, methodName, *res.Err)
	}
	return res, nil
}

func (c *Contract) method(name string) (abi.Method, error) {
	method, ok := c.abi.Methods[name]
	if !ok {
		return abi.Method{}, &MethodNotFoundError{Contract: c.address, Method: name}
	}
	return method, nil
}

// DecodedEvent is a ContractEmitted event decoded against the contract ABI.
type DecodedEvent struct {
	Name string
	Args map[string]any
}

// DecodeEvents decodes the ContractEmitted events this contract produced.
// The first 32 bytes of the payload select the ABI event. Events that don't
// decode are logged and skipped.
func (c *Contract) DecodeEvents(events []Event) []DecodedEvent {
	var out []DecodedEvent
	for _, ev := range events {
		if !ev.IsContractEmitted() || ev.Contract != c.address {
			continue
		}
		if len(ev.Data) < common.HashLength {
			c.logger.Warn().Int("len", len(ev.Data)).Msg("contract event too short")
			continue
		}
		abiEvent, err := c.abi.EventByID(common.BytesToHash(ev.Data[:common.HashLength]))
		if err != nil {
			c.logger.Warn().Err(err).Msg("unknown contract event")
			continue
		}
		args := make(map[string]any)
		if err := abiEvent.Inputs.UnpackIntoMap(args, ev.Data[common.HashLength:]); err != nil {
			c.logger.Warn().Err(err).Str("event", abiEvent.Name).Msg("failed to decode contract event")
			continue
		}
		out = append(out, DecodedEvent{Name: abiEvent.Name, Args: args})
	}
	return out
}

// checkPayable rejects a non-zero value for a non-payable method.
func checkPayable(method abi.Method, value *uint256.Int) error {
	if value == nil || value.IsZero() || method.IsPayable() {
		return nil
	}
	name := method.Name
	if name == "" {
		name = "constructor"
	}
	return &NonPayableError{Method: name}
}

// gasLimitFor returns the dry-run weight budget: the per-call ceiling when
// the chain reports weight metadata, MaxCallWeight otherwise.
func gasLimitFor(ctx context.Context, client ChainClient, cfg *config, logger zerolog.Logger) (Weight, error) {
	consts, err := client.Constants(ctx)
	if err != nil {
		return Weight{}, fmt.Errorf("batcher: read chain constants: %w", err)
	}
	interval, source := resolveBlockInterval(consts)
	est := WeightFromConstants(consts, interval, cfg.toleranceBlocks)
	if est.IsEmpty {
		logger.Debug().Msg("no weight metadata, using maximum call weight")
		return MaxCallWeight, nil
	}
	if !est.IsValid {
		logger.Warn().
			Stringer("weight", est.Weight).
			Float64("percentage", est.Percentage).
			Msg("weight ceiling outside the valid range")
	}
	logger.Debug().
		Dur("block_interval", interval).
		Str("interval_source", source).
		Stringer("ceiling", est.Weight).
		Msg("estimated weight ceiling")
	return est.GasLimit(), nil
}

// rejectDryRun classifies a dry-run dispatch error. A failing metadata
// lookup degrades to an unresolved classification.
func rejectDryRun(ctx context.Context, client ChainClient, cfg *config, logger zerolog.Logger, method string, d DispatchError) error {
	cfg.metrics.DryRunRejections.Add(1)
	classified := Classify(d, errorLookup(ctx, client, logger))
	err := &DryRunRejectedError{Method: method, Err: classified}
	cfg.metrics.recordFailure(err)
	logger.Info().Str("method", method).Str("error", classified.Error()).Msg("dry run rejected")
	return err
}

func errorLookup(ctx context.Context, client ChainClient, logger zerolog.Logger) ErrorLookup {
	lookup, err := client.ErrorLookup(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load error metadata")
		return nil
	}
	return lookup
}

// finalize turns a successful dry run into submission limits. The draft
// carries the inflated dry-run weight and deposit limit and is only used to
// query payment info. The final weight is the inflated payment-info weight,
// never lower than the weight the dry run required.
func finalize(ctx context.Context, client ChainClient, cfg *config, logger zerolog.Logger, origin AccountID, desc *CallDescriptor, res *DryRunResult) (*CallDescriptor, error) {
	f := cfg.safetyFactor
	draftOpts := desc.opts.clone()
	draftOpts.GasLimit = res.GasRequired.Inflate(f)
	draftOpts.StorageDepositLimit = res.StorageDeposit.Limit(f)
	draft := desc.WithOptions(draftOpts)

	info, err := client.PaymentInfo(ctx, draft, origin)
	if err != nil {
		return nil, fmt.Errorf("batcher: payment info for %q: %w", desc.method, err)
	}

	gas := info.Weight.Inflate(f)
	if gas.Legacy && !res.GasRequired.Legacy {
		gas = Weight{RefTime: gas.RefTime, ProofSize: draftOpts.GasLimit.ProofSize}
	}
	finalOpts := draftOpts
	finalOpts.GasLimit = gas.AtLeast(res.GasRequired)
	cfg.metrics.GasLimit.Observe(float64(finalOpts.GasLimit.RefTime / megaUnit))

	logger.Debug().
		Str("method", desc.method).
		Stringer("gas_required", res.GasRequired).
		Stringer("payment_weight", info.Weight).
		Stringer("gas_limit", finalOpts.GasLimit).
		Stringer("storage_deposit", res.StorageDeposit).
		Str("partial_fee", balanceString(info.PartialFee)).
		Msg("finalized call")

	return draft.WithOptions(finalOpts), nil
}

func balanceString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

// ParseABI parses a JSON ABI string into an abi.ABI.
// This is a convenience function for creating contracts from ABI JSON.
func ParseABI(abiJSON string) (abi.ABI, error) {
	return abi.JSON(strings.NewReader(abiJSON))
}

// MustParseABI is like ParseABI but panics on error.
func MustParseABI(abiJSON string) abi.ABI {
	parsed, err := ParseABI(abiJSON)
	if err != nil {
		panic(err)
	}
	return parsed
}
