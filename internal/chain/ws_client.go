package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// HandshakeTimeout bounds the dial.
	HandshakeTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// CallTimeout bounds a single request/response round trip.
	CallTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		CallTimeout:      30 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// ErrClientClosed is returned by calls on a closed client.
var ErrClientClosed = errors.New("client closed")

// WSClient implements Caller over a single JSON-RPC WebSocket connection.
// Responses are matched to requests by id; a dropped connection fails every
// pending call and is redialed on the next call.
type WSClient struct {
	endpoint string
	config   WSClientConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	writeMu   sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// pending maps request ID to the channel waiting for its response
	pending   map[uint64]chan rpcResponse
	pendingMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &WSClient{
		endpoint: endpoint,
		config:   cfg,
		pending:  make(map[uint64]chan rpcResponse),
		done:     make(chan struct{}),
	}

	if _, err := c.connection(ctx); err != nil {
		return nil, err
	}

	// Start ping goroutine
	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// connection returns the live connection, dialing a new one if needed.
func (c *WSClient) connection(ctx context.Context) (*websocket.Conn, error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		return c.conn, nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn

	c.wg.Add(1)
	go c.readLoop(conn)
	return conn, nil
}

// Call sends a request and waits for the matching response.
func (c *WSClient) Call(ctx context.Context, method string, params []any, result any) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	conn, err := c.connection(ctx)
	if err != nil {
		return err
	}

	if params == nil {
		params = []any{}
	}
	reqID := c.requestID.Add(1)
	respCh := make(chan rpcResponse, 1)
	c.pendingMu.Lock()
	c.pending[reqID] = respCh
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}()

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err = conn.WriteJSON(rpcRequest{JSONRPC: "2.0", ID: reqID, Method: method, Params: params})
	c.writeMu.Unlock()
	if err != nil {
		c.dropConnection(conn, err)
		return fmt.Errorf("write %s: %w", method, err)
	}

	timer := time.NewTimer(c.config.CallTimeout)
	defer timer.Stop()

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return resp.Error
		}
		return decodeResult(resp.Result, result)
	case <-timer.C:
		return fmt.Errorf("%s: timeout after %s", method, c.config.CallTimeout)
	case <-c.done:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readLoop dispatches responses until the connection fails.
func (c *WSClient) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.dropConnection(conn, err)
			return
		}

		var resp rpcResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[resp.ID]
		c.pendingMu.Unlock()
		if ok {
			select {
			case ch <- resp:
			default:
			}
		}
	}
}

// dropConnection closes conn and fails all pending calls, once per connection.
func (c *WSClient) dropConnection(conn *websocket.Conn, cause error) {
	c.connMu.Lock()
	if c.conn != conn {
		c.connMu.Unlock()
		return
	}
	c.conn = nil
	c.connMu.Unlock()
	conn.Close()

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		select {
		case ch <- rpcResponse{ID: id, Error: &RPCError{Code: -32000, Message: "connection lost: " + cause.Error()}}:
		default:
		}
	}
	c.pendingMu.Unlock()
}

// pingLoop sends periodic ping frames on the live connection.
func (c *WSClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			conn := c.conn
			c.connMu.Unlock()
			if conn == nil {
				continue
			}
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.dropConnection(conn, err)
			}
		}
	}
}

// Close closes the connection and stops background goroutines.
func (c *WSClient) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	var err error
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = conn.Close()
	}
	c.wg.Wait()
	return err
}
