package batcher_test

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	batcher "github.com/branched-services/go-batcher"
	"github.com/branched-services/go-batcher/batchertest"
)

var flipperCode = []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}

func newFlipperDeployer(t *testing.T, chain *batchertest.MockChain, opts ...batcher.Option) *batcher.Deployer {
	t.Helper()
	d, err := batcher.NewDeployer(chain, batcher.MustParseABI(flipperABI), flipperCode, batchertest.NewSigner(batchertest.Alice), opts...)
	require.NoError(t, err)
	return d
}

func TestNewDeployer(t *testing.T) {
	_, err := batcher.NewDeployer(batchertest.NewMockChain(), batcher.MustParseABI(flipperABI), []byte("not code"), batchertest.NewSigner(batchertest.Alice))
	assert.ErrorIs(t, err, batcher.ErrInvalidCode)
}

func TestDeployerBuild(t *testing.T) {
	ctx := context.Background()

	t.Run("instantiate descriptor", func(t *testing.T) {
		chain := batchertest.NewMockChain()
		var req batcher.InstantiateRequest
		chain.DryRunInstantiateFn = func(_ context.Context, r batcher.InstantiateRequest) (*batcher.DryRunResult, error) {
			req = r
			return &batcher.DryRunResult{
				GasRequired:    batchertest.DefaultGasRequired,
				StorageDeposit: batchertest.DefaultDeposit,
				Account:        batchertest.DeployedAddress,
			}, nil
		}

		call, err := newFlipperDeployer(t, chain).Build(ctx, batcher.DeployParams{Args: []any{true}, Salt: []byte{0x01}})
		require.NoError(t, err)

		assert.Equal(t, batcher.KindInstantiate, call.Kind())
		assert.Equal(t, "constructor", call.Method())
		assert.Equal(t, batcher.Selector{}, call.Selector())
		assert.Equal(t, flipperCode, call.Code())
		assert.Equal(t, []byte{0x01}, call.Salt())
		assert.Len(t, call.Input(), 32)
		assert.Equal(t, uint64(1_010_000), call.StorageDepositLimit().Uint64())
		assert.True(t, call.GasLimit().Covers(batchertest.DefaultGasRequired))

		assert.Equal(t, batchertest.Alice, req.Origin)
		assert.Equal(t, flipperCode, req.Code)
		assert.Equal(t, call.Input(), req.Data)
		assert.Equal(t, []byte{0x01}, req.Salt)
	})

	t.Run("constructor index", func(t *testing.T) {
		chain := batchertest.NewMockChain()
		_, err := newFlipperDeployer(t, chain).Build(ctx, batcher.DeployParams{Args: []any{true}, ConstructorIndex: 1})
		assert.ErrorIs(t, err, batcher.ErrConstructorNotFound)
		assert.Zero(t, chain.DryRunCalls.Load())
	})

	t.Run("non payable constructor", func(t *testing.T) {
		chain := batchertest.NewMockChain()
		_, err := newFlipperDeployer(t, chain).Build(ctx, batcher.DeployParams{Args: []any{true}, Value: uint256.NewInt(5)})

		var nonPayable *batcher.NonPayableError
		require.ErrorAs(t, err, &nonPayable)
		assert.Equal(t, "constructor", nonPayable.Method)
		assert.Zero(t, chain.DryRunCalls.Load())
	})

	t.Run("argument count", func(t *testing.T) {
		_, err := newFlipperDeployer(t, batchertest.NewMockChain()).Build(ctx, batcher.DeployParams{})
		assert.ErrorIs(t, err, batcher.ErrArgumentCount)
	})

	t.Run("dry run rejected", func(t *testing.T) {
		chain := batchertest.NewMockChain()
		chain.DryRunInstantiateFn = func(context.Context, batcher.InstantiateRequest) (*batcher.DryRunResult, error) {
			e := batchertest.ErrStorageDepositNotEnoughFunds
			return &batcher.DryRunResult{Err: batcher.NewModuleError(e.Index, e.Error)}, nil
		}
		call, err := newFlipperDeployer(t, chain).Build(ctx, batcher.DeployParams{Args: []any{true}})
		assert.Nil(t, call)
		assert.True(t, batcher.IsInsufficientFunds(err))

		var rejected *batcher.DryRunRejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, "constructor", rejected.Method)
		assert.Zero(t, chain.PaymentInfoCalls.Load())
	})
}

func TestDeployerDeploy(t *testing.T) {
	ctx := context.Background()

	t.Run("address from instantiated event", func(t *testing.T) {
		chain := batchertest.NewMockChain()
		dep, err := newFlipperDeployer(t, chain).Deploy(ctx, batcher.DeployParams{Args: []any{true}})
		require.NoError(t, err)

		assert.Equal(t, batchertest.DeployedAddress, dep.Address)
		assert.Equal(t, batcher.StatusInBlock, dep.Receipt.Status.Kind)
		assert.Len(t, chain.Submissions(), 1)
	})

	t.Run("ignores instantiations by other deployers", func(t *testing.T) {
		other := batcher.BytesToAccountID([]byte{0xbe, 0xef})
		ours := batcher.BytesToAccountID([]byte{0xf0, 0x0d})
		chain := batchertest.NewMockChain()
		chain.SubmitFn = func(context.Context, batcher.Extrinsic, batcher.Signer, *batcher.SubmissionOptions) (batcher.Subscription, error) {
			return batchertest.NewSubscription(batchertest.InBlock(batchertest.InBlockHash,
				batcher.Event{Section: batcher.SectionContracts, Method: batcher.MethodInstantiated, Contract: other, Deployer: batchertest.DeployedAddress},
				batcher.Event{Section: batcher.SectionContracts, Method: batcher.MethodInstantiated, Contract: ours, Deployer: batchertest.Alice},
			)), nil
		}

		dep, err := newFlipperDeployer(t, chain).Deploy(ctx, batcher.DeployParams{Args: []any{true}})
		require.NoError(t, err)
		assert.Equal(t, ours, dep.Address)
	})

	t.Run("missing instantiated event", func(t *testing.T) {
		chain := batchertest.NewMockChain()
		chain.SubmitFn = func(context.Context, batcher.Extrinsic, batcher.Signer, *batcher.SubmissionOptions) (batcher.Subscription, error) {
			return batchertest.NewSubscription(batchertest.InBlock(batchertest.InBlockHash)), nil
		}
		_, err := newFlipperDeployer(t, chain).Deploy(ctx, batcher.DeployParams{Args: []any{true}})
		assert.ErrorIs(t, err, batcher.ErrInstantiatedEventMissing)
	})

	t.Run("bound contract", func(t *testing.T) {
		chain := batchertest.NewMockChain()
		d := newFlipperDeployer(t, chain)
		dep, err := d.Deploy(ctx, batcher.DeployParams{Args: []any{true}})
		require.NoError(t, err)

		c := d.Contract(dep.Address)
		assert.Equal(t, batchertest.DeployedAddress, c.Address())
		call, err := c.Build(ctx, "flip")
		require.NoError(t, err)
		assert.Equal(t, batchertest.DeployedAddress, call.Dest())
	})
}
