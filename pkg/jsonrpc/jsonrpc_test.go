package jsonrpc_test

import (
	"testing"
	"time"

	"github.com/kadirpekel/coderkernel/pkg/jsonrpc"
	"github.com/kadirpekel/coderkernel/pkg/kernelerr"
)

// TestS6CorrelationAndTimeout mirrors spec scenario S6.
func TestS6CorrelationAndTimeout(t *testing.T) {
	c := jsonrpc.NewClient()

	req, ch := c.CreateTrackedRequest("textDocument/hover", nil, time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	timedOut := c.CleanupTimedOutRequests()
	if len(timedOut) != 1 || timedOut[0] != req.ID {
		t.Fatalf("expected [%d] timed out, got %v", req.ID, timedOut)
	}
	_, err := jsonrpc.Await(ch)
	if !kernelerr.Is(err, kernelerr.Timeout) {
		t.Fatalf("expected Timeout error, got %v", err)
	}

	req2, ch2 := c.CreateTrackedRequest("textDocument/definition", nil, time.Second)
	if err := c.HandleResponse(jsonrpc.Response{ID: req2.ID, Result: "ok"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	val, err := jsonrpc.Await(ch2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "ok" {
		t.Fatalf("expected result 'ok', got %v", val)
	}

	if err := c.HandleResponse(jsonrpc.Response{ID: 999999}); !kernelerr.Is(err, kernelerr.Protocol) {
		t.Fatalf("expected Protocol error for unknown id, got %v", err)
	}
}

func TestHandleResponseWithError(t *testing.T) {
	c := jsonrpc.NewClient()
	req, ch := c.CreateTrackedRequest("m", nil, time.Second)
	_ = c.HandleResponse(jsonrpc.Response{ID: req.ID, Error: &jsonrpc.RPCError{Code: -32601, Message: "method not found"}})
	_, err := jsonrpc.Await(ch)
	if !kernelerr.Is(err, kernelerr.Protocol) {
		t.Fatalf("expected Protocol error, got %v", err)
	}
}

func TestNotificationBroadcastToMultipleSubscribers(t *testing.T) {
	c := jsonrpc.NewClient()
	ch1, cancel1 := c.Subscribe()
	ch2, cancel2 := c.Subscribe()
	defer cancel1()
	defer cancel2()

	if err := c.HandleNotification(jsonrpc.Notification{Method: jsonrpc.NotifyLogMessage}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case n := <-ch1:
		if n.Method != jsonrpc.NotifyLogMessage {
			t.Fatalf("unexpected method on ch1: %s", n.Method)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting on ch1")
	}
	select {
	case n := <-ch2:
		if n.Method != jsonrpc.NotifyLogMessage {
			t.Fatalf("unexpected method on ch2: %s", n.Method)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting on ch2")
	}
}

func TestPendingRequestCount(t *testing.T) {
	c := jsonrpc.NewClient()
	if c.PendingRequestCount() != 0 {
		t.Fatalf("expected 0 pending requests initially")
	}
	_, _ = c.CreateTrackedRequest("m", nil, time.Second)
	if c.PendingRequestCount() != 1 {
		t.Fatalf("expected 1 pending request")
	}
	c.ClearPendingRequests()
	if c.PendingRequestCount() != 0 {
		t.Fatalf("expected 0 pending requests after clear")
	}
}
