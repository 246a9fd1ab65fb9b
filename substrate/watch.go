package substrate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"

	batcher "github.com/branched-services/go-batcher"
)

const (
	submitAndWatchMethod = "author_submitAndWatchExtrinsic"
	unwatchMethod        = "author_unwatchExtrinsic"
	updateMethod         = "author_extrinsicUpdate"

	writeTimeout = 5 * time.Second
)

type jsonrpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *jsonrpcError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s: %v", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type jsonrpcMessage struct {
	ID     *uint64         `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *jsonrpcError   `json:"error,omitempty"`
	Params *struct {
		Subscription json.RawMessage `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params,omitempty"`
}

// subscription is a submit-and-watch stream over its own WebSocket.
type subscription struct {
	client  *Client
	conn    *websocket.Conn
	id      json.RawMessage
	xtHash  common.Hash
	updates chan batcher.TxUpdate
	errs    chan error
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
	logger  zerolog.Logger
}

// watch submits encoded and returns its status stream.
func (c *Client) watch(ctx context.Context, encoded []byte) (*subscription, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.watchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("substrate: dial %s: %w", c.watchURL, err)
	}

	req := jsonrpcRequest{JSONRPC: "2.0", ID: 1, Method: submitAndWatchMethod, Params: []any{hexutil.Bytes(encoded)}}
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("substrate: %s: %w", submitAndWatchMethod, err)
	}

	// The subscription id arrives before any notification.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	var resp jsonrpcMessage
	err = conn.ReadJSON(&resp)
	if !stop() && err == nil {
		// Cancelled right after the reply arrived.
		err = ctx.Err()
	}
	if err != nil {
		conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("substrate: %s: %w", submitAndWatchMethod, ctxErr)
		}
		return nil, fmt.Errorf("substrate: %s: %w", submitAndWatchMethod, err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	if resp.Error != nil {
		conn.Close()
		return nil, fmt.Errorf("substrate: %s: %w", submitAndWatchMethod, resp.Error)
	}

	xtHash := common.Hash(blake2b.Sum256(encoded))
	subCtx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		client:  c,
		conn:    conn,
		id:      resp.Result,
		xtHash:  xtHash,
		updates: make(chan batcher.TxUpdate),
		errs:    make(chan error, 1),
		ctx:     subCtx,
		cancel:  cancel,
		logger:  c.logger.With().Stringer("extrinsic", xtHash).Logger(),
	}
	go sub.readLoop()
	return sub, nil
}

func (s *subscription) Updates() <-chan batcher.TxUpdate { return s.updates }
func (s *subscription) Err() <-chan error                { return s.errs }

// Unsubscribe stops the stream and closes the connection. Safe to call more than once.
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		req := jsonrpcRequest{JSONRPC: "2.0", ID: 2, Method: unwatchMethod, Params: []any{s.id}}
		if err := s.conn.WriteJSON(req); err != nil {
			s.logger.Debug().Err(err).Msg("unwatch failed")
		}
		s.conn.Close()
	})
}

func (s *subscription) readLoop() {
	for {
		var msg jsonrpcMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			s.fail(err)
			return
		}
		if msg.Method != updateMethod || msg.Params == nil {
			continue
		}

		status, err := parseStatus(msg.Params.Result)
		if err != nil {
			s.fail(err)
			return
		}
		update := batcher.TxUpdate{Status: status}
		if status.Kind.IsIncluded() {
			number, events, err := s.client.extrinsicEvents(s.ctx, status.BlockHash, s.xtHash)
			if err != nil {
				s.fail(err)
				return
			}
			update.BlockNumber, update.Events = number, events
		}

		select {
		case s.updates <- update:
		case <-s.ctx.Done():
			return
		}
	}
}

// fail reports err unless the stream was torn down deliberately.
func (s *subscription) fail(err error) {
	if s.ctx.Err() != nil {
		return
	}
	select {
	case s.errs <- fmt.Errorf("substrate: watch: %w", err):
	default:
	}
}

// parseStatus decodes an author_extrinsicUpdate result. Unit variants are
// strings; variants with data are single-key objects.
func parseStatus(raw json.RawMessage) (batcher.TxStatus, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		switch name {
		case "future":
			return batcher.TxStatus{Kind: batcher.StatusFuture}, nil
		case "ready":
			return batcher.TxStatus{Kind: batcher.StatusReady}, nil
		case "dropped":
			return batcher.TxStatus{Kind: batcher.StatusDropped}, nil
		case "invalid":
			return batcher.TxStatus{Kind: batcher.StatusInvalid}, nil
		}
		return batcher.TxStatus{}, fmt.Errorf("substrate: unknown status %q", name)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || len(obj) != 1 {
		return batcher.TxStatus{}, fmt.Errorf("substrate: malformed status %s", string(raw))
	}
	var (
		key   string
		value json.RawMessage
	)
	for key, value = range obj {
	}
	kind, ok := statusKinds[key]
	if !ok {
		return batcher.TxStatus{}, fmt.Errorf("substrate: unknown status %q", key)
	}
	if kind == batcher.StatusBroadcast {
		return batcher.TxStatus{Kind: kind}, nil
	}
	var hash common.Hash
	if err := json.Unmarshal(value, &hash); err != nil {
		return batcher.TxStatus{}, fmt.Errorf("substrate: status %s: %w", key, err)
	}
	return batcher.TxStatus{Kind: kind, BlockHash: hash}, nil
}

var statusKinds = map[string]batcher.StatusKind{
	"broadcast":       batcher.StatusBroadcast,
	"inBlock":         batcher.StatusInBlock,
	"retracted":       batcher.StatusRetracted,
	"finalityTimeout": batcher.StatusFinalityTimeout,
	"finalized":       batcher.StatusFinalized,
	"usurped":         batcher.StatusUsurped,
}
