package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcTestServer creates a JSON-RPC server whose handlers map method names to
// functions returning either a result or an rpcError.
func rpcTestServer(t *testing.T, handlers map[string]func(params []interface{}) (interface{}, *rpcError)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handler, ok := handlers[req.Method]
		if !ok {
			t.Errorf("unexpected RPC method: %s", req.Method)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		result, rpcErr := handler(req.Params)
		resp := rpcResponse{ID: req.ID}
		if rpcErr != nil {
			resp.Error = rpcErr
			w.WriteHeader(http.StatusInternalServerError)
		} else {
			resp.Result, _ = json.Marshal(result)
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// ---------------------------------------------------------------------------
// Call
// ---------------------------------------------------------------------------

func TestRPCClientCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "testuser", user)
		assert.Equal(t, "testpass", pass)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getblockcount", req.Method)
		assert.Equal(t, []interface{}{}, req.Params)

		json.NewEncoder(w).Encode(rpcResponse{ID: req.ID, Result: json.RawMessage(`100`)})
	}))
	defer server.Close()

	client := NewRPCClient(RPCConfig{URL: server.URL, User: "testuser", Password: "testpass"})
	var height int
	require.NoError(t, client.Call(context.Background(), "getblockcount", nil, &height))
	assert.Equal(t, 100, height)
}

func TestRPCClientRPCError(t *testing.T) {
	server := rpcTestServer(t, map[string]func([]interface{}) (interface{}, *rpcError){
		"getrawtransaction": func([]interface{}) (interface{}, *rpcError) {
			return nil, &rpcError{Code: -5, Message: "No such mempool or blockchain transaction"}
		},
		"sendrawtransaction": func([]interface{}) (interface{}, *rpcError) {
			return nil, &rpcError{Code: -26, Message: "mandatory-script-verify-flag-failed"}
		},
	})

	client := NewRPCClient(RPCConfig{URL: server.URL, MaxRetries: 3})

	_, err := client.GetTxStatus(context.Background(), "badtxid")
	assert.ErrorIs(t, err, ErrTxNotFound)
	assert.Contains(t, err.Error(), "No such mempool")

	_, err = client.BroadcastTx(context.Background(), "00")
	assert.ErrorIs(t, err, ErrBroadcastRejected)
	assert.Contains(t, err.Error(), "script-verify")
}

func TestRPCClientConnectionError(t *testing.T) {
	client := NewRPCClient(RPCConfig{URL: "http://localhost:1"})
	var result int
	err := client.Call(context.Background(), "getblockcount", nil, &result)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestRPCClientRetriesTransportFailures(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(rpcResponse{ID: req.ID, Result: json.RawMessage(`7`)})
	}))
	defer server.Close()

	client := NewRPCClient(RPCConfig{URL: server.URL, MaxRetries: 3})
	height, err := client.GetBestBlockHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), height)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRPCClientNoRetryByDefault(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewRPCClient(RPCConfig{URL: server.URL})
	_, err := client.GetBestBlockHeight(context.Background())
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestRPCClientContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewRPCClient(RPCConfig{URL: server.URL, MaxRetries: 5})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var result int
	assert.Error(t, client.Call(ctx, "getblockcount", nil, &result))
}

func TestRPCClientIDMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(rpcResponse{ID: 999, Result: json.RawMessage(`1`)})
	}))
	defer server.Close()

	client := NewRPCClient(RPCConfig{URL: server.URL})
	var n int
	err := client.Call(context.Background(), "getblockcount", nil, &n)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

// ---------------------------------------------------------------------------
// Node methods
// ---------------------------------------------------------------------------

func TestGetTxStatus(t *testing.T) {
	server := rpcTestServer(t, map[string]func([]interface{}) (interface{}, *rpcError){
		"getrawtransaction": func(params []interface{}) (interface{}, *rpcError) {
			require.Len(t, params, 2)
			assert.Equal(t, true, params[1])
			if params[0] == "mempool" {
				return map[string]interface{}{"confirmations": 0}, nil
			}
			return map[string]interface{}{
				"confirmations": 3,
				"blockhash":     "00000000abc",
				"blockheight":   812000,
			}, nil
		},
	})
	client := NewRPCClient(RPCConfig{URL: server.URL})

	st, err := client.GetTxStatus(context.Background(), "mined")
	require.NoError(t, err)
	assert.True(t, st.Confirmed)
	assert.Equal(t, int64(3), st.Confirmations)
	assert.Equal(t, "00000000abc", st.BlockHash)
	assert.Equal(t, uint64(812000), st.BlockHeight)

	st, err = client.GetTxStatus(context.Background(), "mempool")
	require.NoError(t, err)
	assert.False(t, st.Confirmed)
}

func TestBroadcastTx(t *testing.T) {
	server := rpcTestServer(t, map[string]func([]interface{}) (interface{}, *rpcError){
		"sendrawtransaction": func(params []interface{}) (interface{}, *rpcError) {
			require.Len(t, params, 1)
			assert.Equal(t, "0100", params[0])
			return "txid123", nil
		},
	})
	client := NewRPCClient(RPCConfig{URL: server.URL})

	txid, err := client.BroadcastTx(context.Background(), "0100")
	require.NoError(t, err)
	assert.Equal(t, "txid123", txid)
}

func TestMock(t *testing.T) {
	m := &Mock{
		GetTxStatusFn: func(_ context.Context, txid string) (*TxStatus, error) {
			return &TxStatus{Confirmed: txid == "ok"}, nil
		},
	}
	st, err := m.GetTxStatus(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, st.Confirmed)
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

func TestResolveConfig(t *testing.T) {
	cfg, err := ResolveConfig(nil, nil, "regtest")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:18332", cfg.URL)
	assert.Equal(t, "regtest", cfg.Network)

	cfg, err = ResolveConfig(nil, map[string]string{"FILEPAY_RPC_URL": "http://env:1", "FILEPAY_RPC_USER": "u"}, "testnet")
	require.NoError(t, err)
	assert.Equal(t, "http://env:1", cfg.URL)
	assert.Equal(t, "u", cfg.User)
	assert.Equal(t, "filepay", cfg.Password)

	cfg, err = ResolveConfig(&RPCConfig{URL: "http://flag:2", MaxRetries: 4}, map[string]string{"FILEPAY_RPC_URL": "http://env:1"}, "regtest")
	require.NoError(t, err)
	assert.Equal(t, "http://flag:2", cfg.URL)
	assert.Equal(t, uint64(4), cfg.MaxRetries)

	_, err = ResolveConfig(nil, nil, "mainnet")
	assert.Error(t, err)
}
