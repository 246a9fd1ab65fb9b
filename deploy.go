package batcher

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
)

// DeployParams selects the constructor and its inputs.
type DeployParams struct {
	Args  []any
	Value *uint256.Int

	// ConstructorIndex selects the constructor. Only index 0 exists for
	// a JSON ABI.
	ConstructorIndex int

	Salt []byte
}

// Deployment is the result of a successful instantiation.
type Deployment struct {
	Address AccountID
	Receipt *Receipt
}

// Deployer instantiates contracts from code.
type Deployer struct {
	client    ChainClient
	abi       abi.ABI
	code      []byte
	signer    Signer
	encoder   *CallDataEncoder
	submitter *Submitter
	cfg       *config
	logger    zerolog.Logger
}

// NewDeployer creates a Deployer. code must be a WASM or PolkaVM blob.
func NewDeployer(client ChainClient, contractABI abi.ABI, code []byte, signer Signer, opts ...Option) (*Deployer, error) {
	if err := ValidateCode(code); err != nil {
		return nil, err
	}
	cfg := newConfig(opts)
	return &Deployer{
		client:    client,
		abi:       contractABI,
		code:      cloneBytes(code),
		signer:    signer,
		encoder:   NewCallDataEncoder(),
		submitter: NewSubmitter(client, signer, opts...),
		cfg:       cfg,
		logger:    cfg.logger.With().Str("component", "deployer").Logger(),
	}, nil
}

// Build dry-runs the instantiation and returns a finalized descriptor
// without submitting it.
func (d *Deployer) Build(ctx context.Context, params DeployParams) (*CallDescriptor, error) {
	ctor, err := d.constructor(params.ConstructorIndex)
	if err != nil {
		return nil, err
	}
	if err := checkPayable(ctor, params.Value); err != nil {
		return nil, err
	}
	data, err := d.encoder.EncodeConstructor(ctor, params.Args)
	if err != nil {
		return nil, err
	}
	encodedArgs, err := d.encoder.EncodeArgs(ctor, params.Args)
	if err != nil {
		return nil, err
	}

	gasLimit, err := gasLimitFor(ctx, d.client, d.cfg, d.logger)
	if err != nil {
		return nil, err
	}
	origin := d.signer.Account()
	res, err := d.client.DryRunInstantiate(ctx, InstantiateRequest{
		Origin:   origin,
		Value:    params.Value,
		GasLimit: gasLimit,
		Code:     d.code,
		Data:     data,
		Salt:     params.Salt,
	})
	if err != nil {
		return nil, fmt.Errorf("batcher: dry run constructor: %w", err)
	}
	if res.Err != nil {
		return nil, rejectDryRun(ctx, d.client, d.cfg, d.logger, "constructor", *res.Err)
	}
	d.logger.Debug().Stringer("address", res.Account).Msg("dry-run instantiation")

	desc := &CallDescriptor{
		kind:   KindInstantiate,
		method: "constructor",
		args:   encodedArgs,
		input:  data,
		code:   d.code,
		salt:   cloneBytes(params.Salt),
		opts:   CallOptions{Value: cloneBalance(params.Value)},
	}
	return finalize(ctx, d.client, d.cfg, d.logger, origin, desc, res)
}

// Deploy builds, submits and waits for the instantiation. The address is
// read from the contracts.Instantiated event of the including block.
func (d *Deployer) Deploy(ctx context.Context, params DeployParams) (*Deployment, error) {
	desc, err := d.Build(ctx, params)
	if err != nil {
		return nil, err
	}
	receipt, err := d.submitter.Submit(ctx, desc)
	if err != nil {
		return nil, err
	}

	ev, ok := findEvent(receipt.Events, func(ev Event) bool {
		return ev.IsInstantiated() && (ev.Deployer.IsZero() || ev.Deployer == d.signer.Account())
	})
	if !ok {
		return nil, ErrInstantiatedEventMissing
	}
	d.logger.Info().
		Stringer("address", ev.Contract).
		Stringer("block", receipt.BlockHash).
		Msg("contract deployed")
	return &Deployment{Address: ev.Contract, Receipt: receipt}, nil
}

// Contract returns a Contract bound to a deployed address with this
// deployer's ABI, signer account and options.
func (d *Deployer) Contract(address AccountID, opts ...Option) *Contract {
	all := append([]Option{WithLogger(d.cfg.logger), WithMetrics(d.cfg.metrics), WithSafetyFactor(d.cfg.safetyFactor), WithToleranceBlocks(d.cfg.toleranceBlocks)}, opts...)
	return NewContract(d.client, address, d.abi, d.signer.Account(), all...)
}

func (d *Deployer) constructor(index int) (abi.Method, error) {
	if index != 0 {
		return abi.Method{}, fmt.Errorf("%w: index %d", ErrConstructorNotFound, index)
	}
	return d.abi.Constructor, nil
}
