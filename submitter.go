package batcher

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Receipt is the settled outcome of a successful submission.
type Receipt struct {
	// ID correlates log lines for one submission.
	ID          string
	Status      TxStatus
	BlockHash   common.Hash
	BlockNumber uint64
	Events      []Event
	Nonce       uint64
}

// Submitter signs and submits finalized calls, then waits for inclusion.
// A Submitter holds no per-submission state, but callers must not run two
// submissions for the same signer concurrently: both would take the same nonce.
type Submitter struct {
	client ChainClient
	signer Signer
	cfg    *config
	logger zerolog.Logger
}

// NewSubmitter creates a Submitter for signer.
func NewSubmitter(client ChainClient, signer Signer, opts ...Option) *Submitter {
	cfg := newConfig(opts)
	return &Submitter{
		client: client,
		signer: signer,
		cfg:    cfg,
		logger: cfg.logger.With().Str("component", "submitter").Stringer("signer", signer.Account()).Logger(),
	}
}

// Submit submits calls. A single call is submitted directly; more than one
// is wrapped in an atomic batch.
func (s *Submitter) Submit(ctx context.Context, calls ...*CallDescriptor) (*Receipt, error) {
	switch len(calls) {
	case 0:
		return nil, ErrEmptyBatch
	case 1:
		if calls[0] == nil {
			return nil, &PlanError{CallIndex: 0, Err: ErrNilCall}
		}
		id, logger := s.begin(calls[0])
		return s.submit(ctx, id, logger, calls[0])
	default:
		return s.SubmitBatch(ctx, NewBatch(WithMaxCalls(s.cfg.maxBatchCalls)).Add(calls...))
	}
}

// SubmitBatch plans b and submits it as one utility.batch extrinsic. The
// batch fee is queried and logged first; a failing query aborts submission.
func (s *Submitter) SubmitBatch(ctx context.Context, b *Batch) (*Receipt, error) {
	bc, err := b.Plan()
	if err != nil {
		return nil, err
	}
	id, logger := s.begin(bc)

	info, err := s.client.PaymentInfo(ctx, bc, s.signer.Account())
	if err != nil {
		return nil, fmt.Errorf("batcher: batch payment info: %w", err)
	}
	logger.Info().
		Stringer("weight", info.Weight).
		Stringer("total_gas_limit", bc.TotalWeight()).
		Str("partial_fee", balanceString(info.PartialFee)).
		Msg("batch payment info")

	return s.submit(ctx, id, logger, bc)
}

func (s *Submitter) begin(xt Extrinsic) (string, zerolog.Logger) {
	id := uuid.NewString()
	return id, s.logger.With().Str("submission", id).Int("calls", len(xt.Calls())).Logger()
}

func (s *Submitter) submit(ctx context.Context, id string, logger zerolog.Logger, xt Extrinsic) (*Receipt, error) {
	opts, err := FetchSubmissionOptions(ctx, s.client, s.signer.Account())
	if err != nil {
		return nil, err
	}

	sub, err := s.client.Submit(ctx, xt, s.signer, opts)
	if err != nil {
		s.cfg.metrics.recordFailure(err)
		return nil, fmt.Errorf("batcher: submit: %w", err)
	}
	s.cfg.metrics.Submissions.Add(1)
	s.cfg.metrics.BatchSize.Observe(float64(len(xt.Calls())))
	logger.Debug().Uint64("nonce", opts.Nonce).Stringer("block", opts.BlockHash).Msg("submitted")

	w := &watcher{
		sub:           sub,
		lookup:        func() ErrorLookup { return errorLookup(ctx, s.client, logger) },
		waitFinalized: s.cfg.waitFinalized,
		logger:        logger,
	}
	update, err := w.run(ctx)
	if err != nil {
		s.cfg.metrics.recordFailure(err)
		logger.Warn().Err(err).Msg("submission failed")
		return nil, err
	}

	s.cfg.metrics.Included.Add(1)
	logger.Info().
		Stringer("status", update.Status.Kind).
		Stringer("block", update.Status.BlockHash).
		Msg("submission included")

	return &Receipt{
		ID:          id,
		Status:      update.Status,
		BlockHash:   update.Status.BlockHash,
		BlockNumber: update.BlockNumber,
		Events:      update.Events,
		Nonce:       opts.Nonce,
	}, nil
}
