// Package substrate implements batcher.ChainClient over a node's JSON-RPC
// interface. Request/response calls use the go-ethereum RPC client; the
// submit-and-watch stream uses a dedicated WebSocket per submission.
package substrate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gorilla/websocket"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"

	batcher "github.com/branched-services/go-batcher"
)

// SystemEventsKey is the storage key of System.Events.
var SystemEventsKey = common.FromHex("0x26aa394eea5630e07c48ae0c9558cef780d41e5e16056765bc8461851072c9d7")

var _ batcher.ChainClient = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger. Default is zerolog.Nop().
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithWatchURL sets the WebSocket endpoint used for submit-and-watch.
// By default it is derived from the RPC URL.
func WithWatchURL(u string) Option {
	return func(c *Client) {
		c.watchURL = u
	}
}

// WithDialer sets the WebSocket dialer used for submit-and-watch.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// Client is a batcher.ChainClient backed by a node's JSON-RPC API.
// Runtime metadata is fetched once and cached for the life of the client;
// create a new client after a runtime upgrade.
type Client struct {
	rpc      *rpc.Client
	codec    Codec
	watchURL string
	dialer   *websocket.Dialer
	logger   zerolog.Logger

	mu       sync.Mutex
	metadata Metadata
}

// Dial connects to the node at rawURL (http, https, ws or wss).
// See NewClient for a nil codec.
func Dial(ctx context.Context, rawURL string, codec Codec, opts ...Option) (*Client, error) {
	rc, err := rpc.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("substrate: dial %s: %w", rawURL, err)
	}
	watchURL, err := toWebsocketURL(rawURL)
	if err != nil {
		rc.Close()
		return nil, err
	}
	return NewClient(rc, codec, append([]Option{WithWatchURL(watchURL)}, opts...)...), nil
}

// NewClient wraps an existing RPC client. A nil codec limits the client to
// calls that need no SCALE work: nonces, block hashes and runtime versions.
func NewClient(rc *rpc.Client, codec Codec, opts ...Option) *Client {
	c := &Client{
		rpc:    rc,
		codec:  codec,
		dialer: websocket.DefaultDialer,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "substrate").Logger()
	return c
}

// Close closes the underlying RPC connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// AccountNextIndex implements batcher.ChainClient.
func (c *Client) AccountNextIndex(ctx context.Context, account batcher.AccountID) (uint64, error) {
	var nonce uint64
	if err := c.rpc.CallContext(ctx, &nonce, "system_accountNextIndex", account.String()); err != nil {
		return 0, fmt.Errorf("substrate: system_accountNextIndex: %w", err)
	}
	return nonce, nil
}

// BlockHash implements batcher.ChainClient.
func (c *Client) BlockHash(ctx context.Context, number *uint64) (common.Hash, error) {
	var (
		hash *common.Hash
		err  error
	)
	if number == nil {
		err = c.rpc.CallContext(ctx, &hash, "chain_getBlockHash")
	} else {
		err = c.rpc.CallContext(ctx, &hash, "chain_getBlockHash", *number)
	}
	if err != nil {
		return common.Hash{}, fmt.Errorf("substrate: chain_getBlockHash: %w", err)
	}
	if hash == nil {
		return common.Hash{}, fmt.Errorf("substrate: chain_getBlockHash: block not found")
	}
	return *hash, nil
}

// RuntimeVersion implements batcher.ChainClient.
func (c *Client) RuntimeVersion(ctx context.Context, blockHash common.Hash) (batcher.RuntimeVersion, error) {
	var v batcher.RuntimeVersion
	if err := c.rpc.CallContext(ctx, &v, "state_getRuntimeVersion", blockHash); err != nil {
		return v, fmt.Errorf("substrate: state_getRuntimeVersion: %w", err)
	}
	return v, nil
}

// Metadata returns the decoded runtime metadata, fetching it on first use.
func (c *Client) Metadata(ctx context.Context) (Metadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.metadata != nil {
		return c.metadata, nil
	}
	if c.codec == nil {
		return nil, ErrNoCodec
	}

	var raw hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &raw, "state_getMetadata"); err != nil {
		return nil, fmt.Errorf("substrate: state_getMetadata: %w", err)
	}
	md, err := c.codec.DecodeMetadata(raw)
	if err != nil {
		return nil, fmt.Errorf("substrate: decode metadata: %w", err)
	}
	c.metadata = md
	c.logger.Debug().Int("size", len(raw)).Msg("loaded runtime metadata")
	return md, nil
}

// Constants implements batcher.ChainClient.
func (c *Client) Constants(ctx context.Context) (batcher.ConsensusConstants, error) {
	md, err := c.Metadata(ctx)
	if err != nil {
		return batcher.ConsensusConstants{}, err
	}
	return md.Constants(), nil
}

// ErrorLookup implements batcher.ChainClient.
func (c *Client) ErrorLookup(ctx context.Context) (batcher.ErrorLookup, error) {
	return c.Metadata(ctx)
}

// DryRunCall implements batcher.ChainClient.
func (c *Client) DryRunCall(ctx context.Context, req batcher.CallRequest) (*batcher.DryRunResult, error) {
	md, err := c.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	params, err := c.codec.EncodeCallRequest(md, req)
	if err != nil {
		return nil, fmt.Errorf("substrate: encode call request: %w", err)
	}
	return c.stateCall(ctx, md, "ContractsApi_call", params)
}

// DryRunInstantiate implements batcher.ChainClient.
func (c *Client) DryRunInstantiate(ctx context.Context, req batcher.InstantiateRequest) (*batcher.DryRunResult, error) {
	md, err := c.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	params, err := c.codec.EncodeInstantiateRequest(md, req)
	if err != nil {
		return nil, fmt.Errorf("substrate: encode instantiate request: %w", err)
	}
	return c.stateCall(ctx, md, "ContractsApi_instantiate", params)
}

func (c *Client) stateCall(ctx context.Context, md Metadata, method string, params []byte) (*batcher.DryRunResult, error) {
	var raw hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &raw, "state_call", method, hexutil.Bytes(params)); err != nil {
		return nil, fmt.Errorf("substrate: state_call %s: %w", method, err)
	}
	res, err := c.codec.DecodeDryRunResult(md, raw)
	if err != nil {
		return nil, fmt.Errorf("substrate: decode %s result: %w", method, err)
	}
	return res, nil
}

// paymentInfo is the payment_queryInfo response. Weight is an object on
// weight-v2 runtimes and a plain integer before.
type paymentInfo struct {
	Weight     json.RawMessage `json:"weight"`
	Class      string          `json:"class"`
	PartialFee json.RawMessage `json:"partialFee"`
}

// PaymentInfo implements batcher.ChainClient.
func (c *Client) PaymentInfo(ctx context.Context, xt batcher.Extrinsic, account batcher.AccountID) (*batcher.PaymentInfo, error) {
	md, err := c.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	encoded, err := c.codec.EncodeForFee(md, xt, account)
	if err != nil {
		return nil, fmt.Errorf("substrate: encode extrinsic: %w", err)
	}

	var resp paymentInfo
	if err := c.rpc.CallContext(ctx, &resp, "payment_queryInfo", hexutil.Bytes(encoded)); err != nil {
		return nil, fmt.Errorf("substrate: payment_queryInfo: %w", err)
	}
	weight, err := parseWeight(resp.Weight)
	if err != nil {
		return nil, err
	}
	fee, err := parseBalance(resp.PartialFee)
	if err != nil {
		return nil, err
	}
	return &batcher.PaymentInfo{Weight: weight, Class: resp.Class, PartialFee: fee}, nil
}

func parseWeight(raw json.RawMessage) (batcher.Weight, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var w struct {
			RefTime        uint64 `json:"refTime"`
			ProofSize      uint64 `json:"proofSize"`
			SnakeRefTime   uint64 `json:"ref_time"`
			SnakeProofSize uint64 `json:"proof_size"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return batcher.Weight{}, fmt.Errorf("substrate: parse weight: %w", err)
		}
		return batcher.NewWeight(max(w.RefTime, w.SnakeRefTime), max(w.ProofSize, w.SnakeProofSize)), nil
	}
	var legacy uint64
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return batcher.Weight{}, fmt.Errorf("substrate: parse weight: %w", err)
	}
	return batcher.LegacyWeight(legacy), nil
}

// parseBalance accepts a balance as a JSON number, a decimal string or a hex string.
func parseBalance(raw json.RawMessage) (*uint256.Int, error) {
	s := strings.Trim(string(bytes.TrimSpace(raw)), `"`)
	if s == "" || s == "null" {
		return new(uint256.Int), nil
	}
	v, err := batcher.ParseBalance(s)
	if err != nil {
		return nil, fmt.Errorf("substrate: parse fee: %w", err)
	}
	return v, nil
}

// Submit implements batcher.ChainClient.
func (c *Client) Submit(ctx context.Context, xt batcher.Extrinsic, signer batcher.Signer, opts *batcher.SubmissionOptions) (batcher.Subscription, error) {
	md, err := c.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	encoded, err := c.codec.EncodeSigned(md, xt, signer, opts)
	if err != nil {
		return nil, fmt.Errorf("substrate: sign extrinsic: %w", err)
	}
	if c.watchURL == "" {
		return nil, fmt.Errorf("substrate: no watch URL configured")
	}
	sub, err := c.watch(ctx, encoded)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

type blockResponse struct {
	Block struct {
		Header struct {
			Number hexutil.Uint64 `json:"number"`
		} `json:"header"`
		Extrinsics []hexutil.Bytes `json:"extrinsics"`
	} `json:"block"`
}

// extrinsicEvents returns the block number and the events emitted by the
// extrinsic with the given hash in block blockHash.
func (c *Client) extrinsicEvents(ctx context.Context, blockHash common.Hash, xtHash common.Hash) (uint64, []batcher.Event, error) {
	var block blockResponse
	if err := c.rpc.CallContext(ctx, &block, "chain_getBlock", blockHash); err != nil {
		return 0, nil, fmt.Errorf("substrate: chain_getBlock: %w", err)
	}
	number := uint64(block.Block.Header.Number)

	index := -1
	for i, ext := range block.Block.Extrinsics {
		if blake2b.Sum256(ext) == xtHash {
			index = i
			break
		}
	}
	if index < 0 {
		c.logger.Warn().Stringer("block", blockHash).Msg("extrinsic not found in block")
		return number, nil, nil
	}

	var raw hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &raw, "state_getStorage", hexutil.Bytes(SystemEventsKey), blockHash); err != nil {
		return number, nil, fmt.Errorf("substrate: state_getStorage: %w", err)
	}
	md, err := c.Metadata(ctx)
	if err != nil {
		return number, nil, err
	}
	records, err := c.codec.DecodeEvents(md, raw)
	if err != nil {
		return number, nil, fmt.Errorf("substrate: decode events: %w", err)
	}

	var events []batcher.Event
	for _, rec := range records {
		if rec.Phase.ApplyExtrinsic && rec.Phase.Index == uint32(index) {
			events = append(events, rec.Event)
		}
	}
	return number, events, nil
}

// toWebsocketURL maps http(s) endpoints onto ws(s).
func toWebsocketURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("substrate: parse url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("substrate: unsupported url scheme %q", u.Scheme)
	}
	return u.String(), nil
}
