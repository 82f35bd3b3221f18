package client

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// HTTPClient speaks JSON-RPC 2.0 over HTTP(S).
type HTTPClient struct {
	endpoint string
	rc       *resty.Client
	nextID   atomic.Uint64
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      uint64              `json:"id"`
	Result  jsoniter.RawMessage `json:"result"`
	Error   *RPCError           `json:"error"`
}

var _ NodeClient = (*HTTPClient)(nil)

func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	rc := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	return &HTTPClient{
		endpoint: endpoint,
		rc:       rc,
	}
}

func (c *HTTPClient) BlockNumber(ctx context.Context) (uint64, error) {
	raw, err := c.call(ctx, blockNumberMethod)
	if err != nil {
		return 0, err
	}

	var height hexutil.Uint64
	if err := json.Unmarshal(raw, &height); err != nil {
		return 0, errors.WithMessage(err, "error parsing block number")
	}
	return uint64(height), nil
}

func (c *HTTPClient) BlockTransactionCount(ctx context.Context, height uint64) (uint64, error) {
	raw, err := c.call(ctx, getBlockByNumberMethod, hexutil.EncodeUint64(height), false)
	if err != nil {
		return 0, err
	}
	return decodeBlockTxCount(raw)
}

func (c *HTTPClient) Close() error {
	c.rc.GetClient().CloseIdleConnections()
	return nil
}

func (c *HTTPClient) call(ctx context.Context, method string, params ...interface{}) (jsoniter.RawMessage, error) {
	if params == nil {
		params = []interface{}{}
	}
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	var resp rpcResponse
	r, err := c.rc.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		ForceContentType("application/json").
		Post(c.endpoint)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s request failed", method)
	}
	if r.IsError() {
		return nil, fmt.Errorf("%s request failed: unexpected HTTP status %s", method, r.Status())
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if len(resp.Result) == 0 {
		return jsoniter.RawMessage("null"), nil
	}
	return resp.Result, nil
}
