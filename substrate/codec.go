package substrate

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	batcher "github.com/branched-services/go-batcher"
)

// ErrNoCodec indicates no codec is registered under the requested name.
var ErrNoCodec = errors.New("substrate: codec not registered")

// Metadata is decoded runtime metadata.
type Metadata interface {
	batcher.ErrorLookup

	// Constants returns the consensus and weight constants the estimator reads.
	Constants() batcher.ConsensusConstants
}

// Phase is the phase of block execution an event was emitted in.
type Phase struct {
	ApplyExtrinsic bool
	Index          uint32
}

// EventRecord is a decoded System.Events entry.
type EventRecord struct {
	Phase Phase
	Event batcher.Event
}

// Codec performs the SCALE work the client delegates: metadata and event
// decoding, runtime API payloads, and extrinsic construction and signing.
type Codec interface {
	DecodeMetadata(raw []byte) (Metadata, error)

	// EncodeCallRequest returns the ContractsApi_call argument bytes.
	EncodeCallRequest(md Metadata, req batcher.CallRequest) ([]byte, error)

	// EncodeInstantiateRequest returns the ContractsApi_instantiate argument bytes.
	EncodeInstantiateRequest(md Metadata, req batcher.InstantiateRequest) ([]byte, error)

	// DecodeDryRunResult decodes a ContractsApi_call or ContractsApi_instantiate result.
	DecodeDryRunResult(md Metadata, raw []byte) (*batcher.DryRunResult, error)

	// EncodeForFee returns xt with a placeholder signature for account,
	// suitable for payment_queryInfo.
	EncodeForFee(md Metadata, xt batcher.Extrinsic, account batcher.AccountID) ([]byte, error)

	// EncodeSigned returns xt signed by signer against opts.
	EncodeSigned(md Metadata, xt batcher.Extrinsic, signer batcher.Signer, opts *batcher.SubmissionOptions) ([]byte, error)

	DecodeEvents(md Metadata, raw []byte) ([]EventRecord, error)

	// Signer derives a keypair from a secret URI such as "//Alice".
	Signer(uri string) (batcher.Signer, error)
}

var (
	codecsMu sync.RWMutex
	codecs   = make(map[string]Codec)
)

// Register makes a codec available by name. It panics if codec is nil or
// name is registered twice.
func Register(name string, codec Codec) {
	codecsMu.Lock()
	defer codecsMu.Unlock()
	if codec == nil {
		panic("substrate: Register codec is nil")
	}
	if _, dup := codecs[name]; dup {
		panic("substrate: Register called twice for codec " + name)
	}
	codecs[name] = codec
}

// LookupCodec returns the codec registered under name.
func LookupCodec(name string) (Codec, error) {
	codecsMu.RLock()
	defer codecsMu.RUnlock()
	codec, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoCodec, name)
	}
	return codec, nil
}

// Codecs returns a sorted list of the names of the registered codecs.
func Codecs() []string {
	codecsMu.RLock()
	defer codecsMu.RUnlock()
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
