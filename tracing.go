package batcher

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ ChainClient = (*tracedClient)(nil)

// tracedClient decorates a ChainClient with OpenTelemetry spans.
type tracedClient struct {
	inner  ChainClient
	tracer trace.Tracer
}

// WithTracing decorates the provided client with tracing spans.
func WithTracing(inner ChainClient) ChainClient {
	return &tracedClient{inner: inner, tracer: otel.Tracer("go-batcher")}
}

func (t *tracedClient) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "ChainClient."+name, trace.WithAttributes(attrs...))
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func (t *tracedClient) AccountNextIndex(ctx context.Context, account AccountID) (uint64, error) {
	ctx, span := t.start(ctx, "AccountNextIndex", attribute.String("account", account.String()))
	defer span.End()

	nonce, err := t.inner.AccountNextIndex(ctx, account)
	if err != nil {
		fail(span, err)
		return 0, err
	}
	span.SetAttributes(attribute.Int64("nonce", int64(nonce)))
	return nonce, nil
}

func (t *tracedClient) BlockHash(ctx context.Context, number *uint64) (common.Hash, error) {
	var attrs []attribute.KeyValue
	if number != nil {
		attrs = append(attrs, attribute.Int64("block.number", int64(*number)))
	}
	ctx, span := t.start(ctx, "BlockHash", attrs...)
	defer span.End()

	hash, err := t.inner.BlockHash(ctx, number)
	if err != nil {
		fail(span, err)
		return common.Hash{}, err
	}
	span.SetAttributes(attribute.String("block.hash", hash.Hex()))
	return hash, nil
}

func (t *tracedClient) RuntimeVersion(ctx context.Context, blockHash common.Hash) (RuntimeVersion, error) {
	ctx, span := t.start(ctx, "RuntimeVersion", attribute.String("block.hash", blockHash.Hex()))
	defer span.End()

	v, err := t.inner.RuntimeVersion(ctx, blockHash)
	if err != nil {
		fail(span, err)
		return RuntimeVersion{}, err
	}
	span.SetAttributes(attribute.Int64("spec_version", int64(v.SpecVersion)))
	return v, nil
}

func (t *tracedClient) Constants(ctx context.Context) (ConsensusConstants, error) {
	ctx, span := t.start(ctx, "Constants")
	defer span.End()

	c, err := t.inner.Constants(ctx)
	if err != nil {
		fail(span, err)
		return ConsensusConstants{}, err
	}
	span.SetAttributes(attribute.Bool("weight_v2", c.IsWeightV2))
	return c, nil
}

func (t *tracedClient) ErrorLookup(ctx context.Context) (ErrorLookup, error) {
	ctx, span := t.start(ctx, "ErrorLookup")
	defer span.End()

	lookup, err := t.inner.ErrorLookup(ctx)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	return lookup, nil
}

func (t *tracedClient) DryRunCall(ctx context.Context, req CallRequest) (*DryRunResult, error) {
	ctx, span := t.start(ctx, "DryRunCall",
		attribute.String("dest", req.Dest.String()),
		attribute.Int("input.size", len(req.Input)),
	)
	defer span.End()

	res, err := t.inner.DryRunCall(ctx, req)
	return res, t.endDryRun(span, res, err)
}

func (t *tracedClient) DryRunInstantiate(ctx context.Context, req InstantiateRequest) (*DryRunResult, error) {
	ctx, span := t.start(ctx, "DryRunInstantiate",
		attribute.Int("code.size", len(req.Code)),
		attribute.Int("data.size", len(req.Data)),
	)
	defer span.End()

	res, err := t.inner.DryRunInstantiate(ctx, req)
	return res, t.endDryRun(span, res, err)
}

func (t *tracedClient) endDryRun(span trace.Span, res *DryRunResult, err error) error {
	if err != nil {
		fail(span, err)
		return err
	}
	span.SetAttributes(
		attribute.Int64("gas_required.ref_time", int64(res.GasRequired.RefTime)),
		attribute.Int64("gas_required.proof_size", int64(res.GasRequired.ProofSize)),
		attribute.String("storage_deposit", res.StorageDeposit.String()),
	)
	if res.Err != nil {
		span.SetStatus(codes.Error, res.Err.Type())
	}
	return nil
}

func (t *tracedClient) PaymentInfo(ctx context.Context, xt Extrinsic, account AccountID) (*PaymentInfo, error) {
	ctx, span := t.start(ctx, "PaymentInfo", attribute.Int("calls", len(xt.Calls())))
	defer span.End()

	info, err := t.inner.PaymentInfo(ctx, xt, account)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64("weight.ref_time", int64(info.Weight.RefTime)),
		attribute.String("partial_fee", balanceString(info.PartialFee)),
	)
	return info, nil
}

func (t *tracedClient) Submit(ctx context.Context, xt Extrinsic, signer Signer, opts *SubmissionOptions) (Subscription, error) {
	attrs := []attribute.KeyValue{attribute.Int("calls", len(xt.Calls()))}
	if opts != nil {
		attrs = append(attrs, attribute.Int64("nonce", int64(opts.Nonce)))
	}
	ctx, span := t.start(ctx, "Submit", attrs...)
	defer span.End()

	sub, err := t.inner.Submit(ctx, xt, signer, opts)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	return sub, nil
}
