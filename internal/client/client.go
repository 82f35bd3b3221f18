package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

const (
	TransportAuto = "auto"
	TransportHTTP = "http"
	TransportGeth = "geth"
)

const (
	blockNumberMethod      = "eth_blockNumber"
	getBlockByNumberMethod = "eth_getBlockByNumber"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrBlockNotFound is returned when the node answers null for a block height.
var ErrBlockNotFound = errors.New("block not found")

// ErrInvalidTransport is returned by Dial when the transport cannot serve the endpoint.
var ErrInvalidTransport = errors.New("invalid transport")

// NodeClient is a connection to a node's JSON-RPC query interface.
type NodeClient interface {
	// BlockNumber returns the highest block height known to the node.
	BlockNumber(ctx context.Context) (uint64, error)

	// BlockTransactionCount returns the number of transactions in the block at the given height.
	BlockTransactionCount(ctx context.Context, height uint64) (uint64, error)

	// Close releases the connection.
	Close() error
}

type Options struct {
	Transport string
	Timeout   time.Duration
}

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Dial opens a client for the endpoint using the requested transport.
func Dial(ctx context.Context, endpoint string, opts Options) (NodeClient, error) {
	transport, err := resolveTransport(endpoint, opts.Transport)
	if err != nil {
		return nil, err
	}

	switch transport {
	case TransportHTTP:
		return NewHTTPClient(endpoint, opts.Timeout), nil
	default:
		return DialGeth(ctx, endpoint, opts.Timeout)
	}
}

// resolveTransport picks the transport for an endpoint.
// HTTP endpoints default to the resty client, everything else goes through go-ethereum's rpc package.
func resolveTransport(endpoint, transport string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("%w: endpoint is empty", ErrInvalidTransport)
	}
	isHTTP := isHTTPEndpoint(endpoint)

	switch transport {
	case "", TransportAuto:
		if isHTTP {
			return TransportHTTP, nil
		}
		return TransportGeth, nil
	case TransportHTTP:
		if !isHTTP {
			return "", fmt.Errorf("%w: transport %q requires an http(s) endpoint, got %q", ErrInvalidTransport, TransportHTTP, endpoint)
		}
		return TransportHTTP, nil
	case TransportGeth:
		return TransportGeth, nil
	default:
		return "", fmt.Errorf("%w: unsupported transport %q", ErrInvalidTransport, transport)
	}
}

func isHTTPEndpoint(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

type rpcBlock struct {
	Transactions []jsoniter.RawMessage `json:"transactions"`
}

// decodeBlockTxCount counts the transactions of an eth_getBlockByNumber result.
func decodeBlockTxCount(raw []byte) (uint64, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return 0, ErrBlockNotFound
	}

	var block rpcBlock
	if err := json.Unmarshal(raw, &block); err != nil {
		return 0, fmt.Errorf("failed to unmarshal block: %w", err)
	}
	return uint64(len(block.Transactions)), nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
