package chain

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gorilla/websocket"
)

// fakeNode serves a chain of head+1 blocks where block n has timestamp
// genesis + n*spacing.
type fakeNode struct {
	head    int64
	genesis int64
	spacing int64
	calls   atomic.Int64
}

func (n *fakeNode) timestamp(b int64) int64 {
	return n.genesis + b*n.spacing
}

func (n *fakeNode) handle(req rpcRequest) rpcResponse {
	n.calls.Add(1)
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	var result any
	switch req.Method {
	case "eth_blockNumber":
		result = toHex(n.head)
	case "eth_getBlockByNumber":
		num, err := parseHex(req.Params[0].(string))
		if err != nil || num > n.head {
			result = nil
			break
		}
		result = blockHeader{Number: toHex(num), Timestamp: toHex(n.timestamp(num))}
	default:
		resp.Error = &RPCError{Code: -32601, Message: "method not found"}
		return resp
	}
	resp.Result, _ = json.Marshal(result)
	return resp
}

func (n *fakeNode) httpServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(n.handle(req))
	}))
	t.Cleanup(srv.Close)
	return srv
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (n *fakeNode) wsServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			var req rpcRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if err := conn.WriteJSON(n.handle(req)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}
