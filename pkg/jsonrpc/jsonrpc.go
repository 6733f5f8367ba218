// Package jsonrpc implements the LSP/MCP-compatible JSON-RPC client: a
// pending-request table correlated by ID, per-request timeout, and a
// bounded-capacity notification broadcaster. The transport itself (the
// bidirectional framed byte stream) is an external collaborator; this
// package owns only the correlation and dispatch logic above it.
package jsonrpc

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kadirpekel/coderkernel/pkg/kernelerr"
)

// Request is an outbound JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// RPCError is the JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Response is an inbound JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// Notification is an inbound or outbound JSON-RPC 2.0 notification (no ID).
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Notification methods the client must be able to accept from an LSP/MCP
// server.
const (
	NotifyPublishDiagnostics = "textDocument/publishDiagnostics"
	NotifyLogMessage         = "window/logMessage"
	NotifyShowMessage        = "window/showMessage"
)

// Notification methods the client may send to the server.
const (
	NotifyDidOpen   = "textDocument/didOpen"
	NotifyDidChange = "textDocument/didChange"
	NotifyDidClose  = "textDocument/didClose"
	NotifyDidSave   = "textDocument/didSave"
)

// pendingRequest tracks one outstanding request awaiting correlation.
type pendingRequest struct {
	id       int64
	method   string
	sentAt   time.Time
	timeout  time.Duration
	resultCh chan Reply
}

type Reply struct {
	value interface{}
	err   error
}

// Notify is what's broadcast to notification subscribers.
type Notify struct {
	Method string
	Params interface{}
}

const notificationBufferCapacity = 100

// Client is a single-connection JSON-RPC correlation layer. It is safe
// for concurrent use.
type Client struct {
	mu      sync.Mutex
	pending map[int64]*pendingRequest
	nextID  int64

	subMu   sync.Mutex
	subs    map[int]chan Notify
	nextSub int
}

// NewClient returns a Client with no pending requests and no subscribers.
func NewClient() *Client {
	return &Client{
		pending: make(map[int64]*pendingRequest),
		subs:    make(map[int]chan Notify),
	}
}

// CreateTrackedRequest builds a new Request with a fresh monotonic ID,
// registers it in the pending table, and returns a channel that resolves
// exactly once: either via HandleResponse, via CleanupTimedOutRequests, or
// left unresolved if the caller abandons it (in which case the buffered
// channel is simply garbage collected).
func (c *Client) CreateTrackedRequest(method string, params interface{}, timeout time.Duration) (Request, <-chan Reply) {
	id := atomic.AddInt64(&c.nextID, 1)
	req := Request{JSONRPC: "2.0", ID: id, Method: method, Params: params}

	ch := make(chan Reply, 1)
	c.mu.Lock()
	c.pending[id] = &pendingRequest{
		id:       id,
		method:   method,
		sentAt:   time.Now(),
		timeout:  timeout,
		resultCh: ch,
	}
	c.mu.Unlock()

	return req, ch
}

// Await returns (value, error) from the resolution channel, blocking
// until the request completes. It exists purely as a convenience wrapper
// for tests and simple callers; production code should select on the
// channel alongside a context.Context.
func Await(ch <-chan Reply) (interface{}, error) {
	r := <-ch
	return r.value, r.err
}

// HandleResponse correlates an inbound Response to its pending request.
// If resp.ID is unknown, returns a Protocol error. If the request had
// already exceeded its timeout by the time the response arrived, the
// waiting receiver is resolved with a Timeout error instead of the
// response payload. Otherwise the receiver is resolved with resp.Result
// (or nil) on success, or a Protocol error built from resp.Error.
func (c *Client) HandleResponse(resp Response) error {
	const op = "jsonrpc.HandleResponse"
	c.mu.Lock()
	pr, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()

	if !ok {
		return kernelerr.Wrap(op, kernelerr.Protocol, fmt.Errorf("response for unknown request id %d", resp.ID))
	}

	if time.Since(pr.sentAt) > pr.timeout {
		err := kernelerr.New(op, kernelerr.Timeout)
		pr.resultCh <- Reply{err: err}
		return err
	}

	if resp.Error != nil {
		err := kernelerr.Wrap(op, kernelerr.Protocol, fmt.Errorf("%d: %s", resp.Error.Code, resp.Error.Message))
		pr.resultCh <- Reply{err: err}
		return nil
	}

	pr.resultCh <- Reply{value: resp.Result}
	return nil
}

// CleanupTimedOutRequests sweeps the pending table for entries whose
// timeout has elapsed, resolves each with a Timeout error, removes them,
// and returns their IDs.
func (c *Client) CleanupTimedOutRequests() []int64 {
	now := time.Now()
	var timedOut []*pendingRequest
	var ids []int64

	c.mu.Lock()
	for id, pr := range c.pending {
		if now.Sub(pr.sentAt) > pr.timeout {
			timedOut = append(timedOut, pr)
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	for _, pr := range timedOut {
		pr.resultCh <- Reply{err: kernelerr.New("jsonrpc.CleanupTimedOutRequests", kernelerr.Timeout)}
	}
	return ids
}

// PendingRequestCount returns the number of outstanding requests.
func (c *Client) PendingRequestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// PendingRequestIDs returns the IDs of every outstanding request.
func (c *Client) PendingRequestIDs() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int64, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	return ids
}

// ClearPendingRequests discards every pending request without resolving
// their channels (used on hard disconnect/reset).
func (c *Client) ClearPendingRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = make(map[int64]*pendingRequest)
}

// Subscribe registers a new notification subscriber with a bounded
// buffer; if the subscriber lags and the buffer fills, the oldest
// buffered notification is dropped to make room for the newest (lagging
// subscribers observe lag but always receive the newest messages).
func (c *Client) Subscribe() (<-chan Notify, func()) {
	ch := make(chan Notify, notificationBufferCapacity)
	c.subMu.Lock()
	subID := c.nextSub
	c.nextSub++
	c.subs[subID] = ch
	c.subMu.Unlock()

	cancel := func() {
		c.subMu.Lock()
		delete(c.subs, subID)
		c.subMu.Unlock()
	}
	return ch, cancel
}

// HandleNotification broadcasts (method, params) to every subscriber.
// Overflowing a subscriber's buffer drops the oldest buffered message for
// that subscriber, then delivers the new one.
func (c *Client) HandleNotification(n Notification) error {
	msg := Notify{Method: n.Method, Params: n.Params}

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- msg:
		default:
			// Buffer full: drop the oldest, then deliver the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- msg:
			default:
			}
		}
	}
	return nil
}

// MarshalIndent is a convenience used by transports serializing Request/
// Response/Notification values to the wire; kept here so every caller
// uses the same encoding discipline.
func MarshalIndent(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
