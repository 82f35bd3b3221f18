package client

import (
	"context"
	stdjson "encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// GethClient uses go-ethereum's rpc package and supports HTTP, WebSocket and IPC endpoints.
type GethClient struct {
	rpc     *rpc.Client
	eth     *ethclient.Client
	timeout time.Duration
}

var _ NodeClient = (*GethClient)(nil)

// DialGeth connects to the endpoint. For HTTP endpoints no request is made until the first call.
func DialGeth(ctx context.Context, endpoint string, timeout time.Duration) (*GethClient, error) {
	dialCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	rc, err := rpc.DialContext(dialCtx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}

	return &GethClient{
		rpc:     rc,
		eth:     ethclient.NewClient(rc),
		timeout: timeout,
	}, nil
}

func (c *GethClient) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	height, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s request failed: %w", blockNumberMethod, err)
	}
	return height, nil
}

func (c *GethClient) BlockTransactionCount(ctx context.Context, height uint64) (uint64, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	// go-ethereum decodes results with encoding/json.
	var raw stdjson.RawMessage
	if err := c.rpc.CallContext(ctx, &raw, getBlockByNumberMethod, hexutil.EncodeUint64(height), false); err != nil {
		return 0, fmt.Errorf("%s request failed: %w", getBlockByNumberMethod, err)
	}
	return decodeBlockTxCount(raw)
}

func (c *GethClient) Close() error {
	c.eth.Close()
	return nil
}
