package substrate

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	batcher "github.com/branched-services/go-batcher"
	"github.com/branched-services/go-batcher/batchertest"
)

var signedExtrinsic = []byte("signed-extrinsic")

type fakeMetadata struct {
	batcher.ErrorTable
	consts batcher.ConsensusConstants
}

func (m *fakeMetadata) Constants() batcher.ConsensusConstants { return m.consts }

// fakeCodec stands in for the SCALE layer. Requests pass through as raw
// bytes and every signed extrinsic encodes to signedExtrinsic.
type fakeCodec struct {
	decodeErr error
	records   []EventRecord
}

func (c *fakeCodec) DecodeMetadata(raw []byte) (Metadata, error) {
	if c.decodeErr != nil {
		return nil, c.decodeErr
	}
	return &fakeMetadata{ErrorTable: batchertest.DefaultErrors(), consts: batchertest.DefaultConstants()}, nil
}

func (c *fakeCodec) EncodeCallRequest(_ Metadata, req batcher.CallRequest) ([]byte, error) {
	return req.Input, nil
}

func (c *fakeCodec) EncodeInstantiateRequest(_ Metadata, req batcher.InstantiateRequest) ([]byte, error) {
	return append(append([]byte(nil), req.Code...), req.Data...), nil
}

func (c *fakeCodec) DecodeDryRunResult(_ Metadata, raw []byte) (*batcher.DryRunResult, error) {
	return &batcher.DryRunResult{
		GasRequired:    batchertest.DefaultGasRequired,
		StorageDeposit: batchertest.DefaultDeposit,
		Data:           raw,
	}, nil
}

func (c *fakeCodec) EncodeForFee(_ Metadata, xt batcher.Extrinsic, _ batcher.AccountID) ([]byte, error) {
	return []byte{byte(len(xt.Calls()))}, nil
}

func (c *fakeCodec) EncodeSigned(Metadata, batcher.Extrinsic, batcher.Signer, *batcher.SubmissionOptions) ([]byte, error) {
	return signedExtrinsic, nil
}

func (c *fakeCodec) DecodeEvents(Metadata, []byte) ([]EventRecord, error) {
	return c.records, nil
}

func (c *fakeCodec) Signer(uri string) (batcher.Signer, error) {
	if uri != "//Alice" {
		return nil, errors.New("unknown uri")
	}
	return batchertest.NewSigner(batchertest.Alice), nil
}

type chainAPI struct{}

func (chainAPI) GetBlockHash(number *uint64) (*common.Hash, error) {
	if number == nil {
		return &batchertest.BestHash, nil
	}
	switch *number {
	case 0:
		return &batchertest.GenesisHash, nil
	case 1:
		return nil, nil
	}
	return nil, errors.New("unknown block")
}

func (chainAPI) GetBlock(hash common.Hash) (json.RawMessage, error) {
	block := map[string]any{
		"block": map[string]any{
			"header":     map[string]any{"number": "0x2a"},
			"extrinsics": []hexutil.Bytes{{0x00}, signedExtrinsic},
		},
	}
	return json.Marshal(block)
}

type stateAPI struct {
	metadataCalls atomic.Int64
	lastCall      atomic.Value
}

func (s *stateAPI) GetMetadata() (hexutil.Bytes, error) {
	s.metadataCalls.Add(1)
	return hexutil.Bytes{0x6d, 0x65, 0x74, 0x61}, nil
}

func (s *stateAPI) GetRuntimeVersion(hash common.Hash) (batcher.RuntimeVersion, error) {
	if hash != batchertest.BestHash {
		return batcher.RuntimeVersion{}, errors.New("unexpected block")
	}
	return batcher.RuntimeVersion{SpecName: "dev", SpecVersion: 100, TransactionVersion: 1}, nil
}

func (s *stateAPI) Call(method string, data hexutil.Bytes) (hexutil.Bytes, error) {
	s.lastCall.Store(method)
	return data, nil
}

func (s *stateAPI) GetStorage(key hexutil.Bytes, _ common.Hash) (hexutil.Bytes, error) {
	if !isSystemEventsKey(key) {
		return nil, errors.New("unexpected storage key")
	}
	return hexutil.Bytes{0x00}, nil
}

func isSystemEventsKey(key []byte) bool {
	return common.Bytes2Hex(key) == common.Bytes2Hex(SystemEventsKey)
}

type systemAPI struct{}

func (systemAPI) AccountNextIndex(account string) (uint64, error) {
	if account != batchertest.Alice.String() {
		return 0, errors.New("unknown account")
	}
	return 5, nil
}

type paymentAPI struct {
	resp json.RawMessage
}

func (p *paymentAPI) QueryInfo(hexutil.Bytes) (json.RawMessage, error) {
	return p.resp, nil
}

type fakeNode struct {
	state   *stateAPI
	payment *paymentAPI
	rpc     *rpc.Client
}

func newFakeNode(t *testing.T) *fakeNode {
	t.Helper()
	n := &fakeNode{
		state:   &stateAPI{},
		payment: &paymentAPI{resp: json.RawMessage(`{"weight":{"refTime":1010000000,"proofSize":50500},"class":"normal","partialFee":"125000000"}`)},
	}
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("chain", chainAPI{}))
	require.NoError(t, server.RegisterName("state", n.state))
	require.NoError(t, server.RegisterName("system", systemAPI{}))
	require.NoError(t, server.RegisterName("payment", n.payment))
	n.rpc = rpc.DialInProc(server)
	t.Cleanup(func() {
		n.rpc.Close()
		server.Stop()
	})
	return n
}

func TestClientSnapshotCalls(t *testing.T) {
	node := newFakeNode(t)
	client := NewClient(node.rpc, nil)
	ctx := context.Background()

	opts, err := batcher.FetchSubmissionOptions(ctx, client, batchertest.Alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), opts.Nonce)
	assert.Equal(t, batchertest.GenesisHash, opts.GenesisHash)
	assert.Equal(t, batchertest.BestHash, opts.BlockHash)
	assert.Equal(t, "dev", opts.RuntimeVersion.SpecName)

	t.Run("missing block", func(t *testing.T) {
		one := uint64(1)
		_, err := client.BlockHash(ctx, &one)
		assert.ErrorContains(t, err, "block not found")
	})

	t.Run("rpc error", func(t *testing.T) {
		two := uint64(2)
		_, err := client.BlockHash(ctx, &two)
		assert.ErrorContains(t, err, "unknown block")
	})

	t.Run("no codec", func(t *testing.T) {
		_, err := client.Constants(ctx)
		assert.ErrorIs(t, err, ErrNoCodec)
		_, err = client.DryRunCall(ctx, batcher.CallRequest{})
		assert.ErrorIs(t, err, ErrNoCodec)
	})
}

func TestClientMetadata(t *testing.T) {
	ctx := context.Background()

	t.Run("cached", func(t *testing.T) {
		node := newFakeNode(t)
		client := NewClient(node.rpc, &fakeCodec{})

		consts, err := client.Constants(ctx)
		require.NoError(t, err)
		assert.True(t, consts.IsWeightV2)

		lookup, err := client.ErrorLookup(ctx)
		require.NoError(t, err)
		meta, err := lookup.FindError(batchertest.ErrContractTrapped.Index, batchertest.ErrContractTrapped.Error)
		require.NoError(t, err)
		assert.Equal(t, "ContractTrapped", meta.Name)

		assert.Equal(t, int64(1), node.state.metadataCalls.Load())
	})

	t.Run("decode error is not cached", func(t *testing.T) {
		node := newFakeNode(t)
		codec := &fakeCodec{decodeErr: errors.New("unsupported metadata version")}
		client := NewClient(node.rpc, codec)

		_, err := client.Metadata(ctx)
		assert.ErrorIs(t, err, codec.decodeErr)

		codec.decodeErr = nil
		_, err = client.Metadata(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), node.state.metadataCalls.Load())
	})
}

func TestClientDryRun(t *testing.T) {
	node := newFakeNode(t)
	client := NewClient(node.rpc, &fakeCodec{})
	ctx := context.Background()

	res, err := client.DryRunCall(ctx, batcher.CallRequest{Input: []byte{0xde, 0xad}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad}, res.Data)
	assert.Equal(t, "ContractsApi_call", node.state.lastCall.Load())

	res, err = client.DryRunInstantiate(ctx, batcher.InstantiateRequest{Code: []byte{0x01}, Data: []byte{0x02}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, res.Data)
	assert.Equal(t, "ContractsApi_instantiate", node.state.lastCall.Load())
}

func TestClientPaymentInfo(t *testing.T) {
	node := newFakeNode(t)
	client := NewClient(node.rpc, &fakeCodec{})
	ctx := context.Background()

	c := batcher.NewContract(client, batchertest.DeployedAddress, batcher.MustParseABI(`[{"name":"flip","type":"function","inputs":[],"outputs":[]}]`), batchertest.Alice)
	call, err := c.Build(ctx, "flip")
	require.NoError(t, err)
	assert.Equal(t, batcher.NewWeight(1_020_100_000, 51_005), call.GasLimit())

	info, err := client.PaymentInfo(ctx, call, batchertest.Alice)
	require.NoError(t, err)
	assert.Equal(t, "normal", info.Class)
	assert.Equal(t, uint64(125_000_000), info.PartialFee.Uint64())

	node.payment.resp = json.RawMessage(`{"weight":12345,"class":"normal","partialFee":"0x10"}`)
	info, err = client.PaymentInfo(ctx, call, batchertest.Alice)
	require.NoError(t, err)
	assert.Equal(t, batcher.LegacyWeight(12345), info.Weight)
	assert.Equal(t, uint64(16), info.PartialFee.Uint64())
}

func TestParseWeight(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want batcher.Weight
	}{
		{"camel case", `{"refTime": 10, "proofSize": 20}`, batcher.NewWeight(10, 20)},
		{"snake case", `{"ref_time": 10, "proof_size": 20}`, batcher.NewWeight(10, 20)},
		{"legacy", `10`, batcher.LegacyWeight(10)},
		{"padded", "  {\"refTime\": 1}  ", batcher.NewWeight(1, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseWeight(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseWeight(json.RawMessage(`"heavy"`))
	assert.Error(t, err)
}

func TestParseBalance(t *testing.T) {
	tests := []struct {
		raw  string
		want *uint256.Int
	}{
		{`"125000000"`, uint256.NewInt(125_000_000)},
		{`125000000`, uint256.NewInt(125_000_000)},
		{`"0x10"`, uint256.NewInt(16)},
		{`null`, new(uint256.Int)},
		{``, new(uint256.Int)},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseBalance(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.True(t, tt.want.Eq(got))
		})
	}

	_, err := parseBalance(json.RawMessage(`"lots"`))
	assert.Error(t, err)
}

func TestToWebsocketURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://127.0.0.1:9944", "ws://127.0.0.1:9944"},
		{"https://rpc.example.org/ws", "wss://rpc.example.org/ws"},
		{"ws://127.0.0.1:9944", "ws://127.0.0.1:9944"},
		{"wss://rpc.example.org", "wss://rpc.example.org"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := toWebsocketURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := toWebsocketURL("ipc:///tmp/node.sock")
	assert.Error(t, err)
}
