package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("filepay/chain")

// RPCClient is a JSON-RPC 1.0 client for BSV nodes.
// All node methods are built on top of Call.
type RPCClient struct {
	url        string
	user       string
	pass       string
	maxRetries uint64
	client     *http.Client
	nextID     atomic.Int64
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcCodeNoSuchTx is returned by getrawtransaction for unknown txids.
const rpcCodeNoSuchTx = -5

// NewRPCClient creates a JSON-RPC client. Basic Auth is used when User is set.
func NewRPCClient(cfg RPCConfig) *RPCClient {
	return &RPCClient{
		url:        cfg.URL,
		user:       cfg.User,
		pass:       cfg.Password,
		maxRetries: cfg.MaxRetries,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

// Call invokes a JSON-RPC method and decodes the result into result (which
// may be nil). Transport failures are retried with exponential backoff up to
// the configured MaxRetries; RPC-level errors are returned immediately.
func (c *RPCClient) Call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	var b backoff.BackOff = backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(100*time.Millisecond),
		backoff.WithMaxElapsedTime(10*time.Second),
	)
	b = backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)

	return backoff.RetryNotify(func() error {
		err := c.call(ctx, method, params, result)
		if err != nil && !errors.Is(err, ErrConnectionFailed) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		log.Debugw("rpc call failed, retrying", "method", method, "wait", wait, "err", err)
	})
}

func (c *RPCClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	reqBody := rpcRequest{
		JSONRPC: "1.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("chain: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chain: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrConnectionFailed, err)
	}
	var rpcResp rpcResponse
	decodeErr := json.Unmarshal(raw, &rpcResp)

	// Nodes answer RPC errors with HTTP 500 and a JSON body.
	if decodeErr == nil && rpcResp.Error != nil {
		if rpcResp.Error.Code == rpcCodeNoSuchTx {
			return fmt.Errorf("%w: %s", ErrTxNotFound, rpcResp.Error.Message)
		}
		return fmt.Errorf("chain: rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(raw) > 1024 {
			raw = raw[:1024]
		}
		return fmt.Errorf("%w: HTTP %d: %s", ErrConnectionFailed, resp.StatusCode, string(raw))
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: decode response: %w", ErrInvalidResponse, decodeErr)
	}
	if rpcResp.ID != reqBody.ID {
		return fmt.Errorf("%w: response ID mismatch: expected %d, got %d",
			ErrInvalidResponse, reqBody.ID, rpcResp.ID)
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("%w: unmarshal result: %w", ErrInvalidResponse, err)
		}
	}
	return nil
}
