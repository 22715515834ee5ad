package evm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newHeadsServer answers the eth_subscribe handshake and then feeds the
// given block numbers as newHeads notifications. With dropAfter set the
// server closes the connection once the blocks are sent; the upgraded
// conn is hijacked, so the server must drop it itself rather than rely
// on httptest teardown.
func newHeadsServer(t *testing.T, blocks []uint64, dropAfter bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}
		if req.Method != "eth_subscribe" {
			t.Errorf("expected eth_subscribe, got %s", req.Method)
		}

		reply := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  "0xcd0c3e8af590364c09d0fa6a1210faf5",
		}
		if err := conn.WriteJSON(reply); err != nil {
			return
		}

		for _, n := range blocks {
			notif := map[string]interface{}{
				"jsonrpc": "2.0",
				"method":  "eth_subscription",
				"params": map[string]interface{}{
					"subscription": "0xcd0c3e8af590364c09d0fa6a1210faf5",
					"result": map[string]interface{}{
						"number": "0x" + strconv.FormatUint(n, 16),
					},
				},
			}
			if err := conn.WriteJSON(notif); err != nil {
				return
			}
		}

		if dropAfter {
			return
		}

		// Keep connection open
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestHeadSubscriber_ReceivesHeads(t *testing.T) {
	server := newHeadsServer(t, []uint64{100, 101, 102}, false)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	sub, err := NewHeadSubscriber(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("NewHeadSubscriber: %v", err)
	}
	defer sub.Close()

	var got []uint64
	timeout := time.After(2 * time.Second)
	for len(got) < 3 {
		select {
		case head, ok := <-sub.Heads():
			if !ok {
				t.Fatalf("heads closed after %d heads", len(got))
			}
			got = append(got, head)
		case <-timeout:
			t.Fatalf("timeout after %d heads", len(got))
		}
	}

	for i, want := range []uint64{100, 101, 102} {
		if got[i] != want {
			t.Errorf("head %d = %d, want %d", i, got[i], want)
		}
	}
}

func TestHeadSubscriber_HeadsCloseOnConnectionLoss(t *testing.T) {
	// The server hangs up after delivering one head; the heads channel
	// must close rather than hang.
	server := newHeadsServer(t, []uint64{100}, true)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	sub, err := NewHeadSubscriber(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("NewHeadSubscriber: %v", err)
	}
	defer sub.Close()

	var got []uint64
	timeout := time.After(2 * time.Second)
	for {
		select {
		case head, ok := <-sub.Heads():
			if !ok {
				if len(got) != 1 || got[0] != 100 {
					t.Errorf("heads before close = %v, want [100]", got)
				}
				return
			}
			got = append(got, head)
		case <-timeout:
			t.Fatal("heads channel did not close after connection loss")
		}
	}
}

func TestHeadSubscriber_Close(t *testing.T) {
	server := newHeadsServer(t, nil, false)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	sub, err := NewHeadSubscriber(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("NewHeadSubscriber: %v", err)
	}

	if err := sub.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	// Double close is safe.
	if err := sub.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}

	select {
	case _, ok := <-sub.Heads():
		if ok {
			t.Error("unexpected head after close")
		}
	case <-time.After(time.Second):
		t.Error("heads channel did not close")
	}
}

func TestHeadSubscriber_SubscribeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		json.Unmarshal(msg, &req)

		reply := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": -32601, "message": "notifications not supported"},
		}
		conn.WriteJSON(reply)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	if _, err := NewHeadSubscriber(context.Background(), wsURL, nil); err == nil {
		t.Fatal("expected subscribe error, got nil")
	}
}
