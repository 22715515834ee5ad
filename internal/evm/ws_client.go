package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
)

// HeadSubscriberConfig configures the WebSocket head subscription.
type HeadSubscriberConfig struct {
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
	// Buffer is the capacity of the heads channel. New heads are dropped
	// when the consumer lags behind; heads are a wake-up signal, not data.
	Buffer int
}

// DefaultHeadSubscriberConfig returns default subscription configuration.
func DefaultHeadSubscriberConfig() HeadSubscriberConfig {
	return HeadSubscriberConfig{
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		Buffer:       16,
	}
}

// HeadSubscriber delivers new block numbers from an eth_subscribe
// "newHeads" WebSocket subscription. Used by head-triggered confirmation
// waiting to poll for receipts only when a new block arrives.
type HeadSubscriber struct {
	endpoint string
	config   HeadSubscriberConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	heads chan uint64
	done  chan struct{}
	wg    sync.WaitGroup
}

// wsRequest is a JSON-RPC 2.0 request over the WebSocket transport.
type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// wsMessage is either a request reply or a subscription notification.
type wsMessage struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Method string          `json:"method"`
	Error  *rpcError       `json:"error"`
	Params *struct {
		Subscription string `json:"subscription"`
		Result       struct {
			Number hexutil.Uint64 `json:"number"`
		} `json:"result"`
	} `json:"params"`
}

// NewHeadSubscriber connects to the endpoint and subscribes to newHeads.
func NewHeadSubscriber(ctx context.Context, endpoint string, config *HeadSubscriberConfig) (*HeadSubscriber, error) {
	cfg := DefaultHeadSubscriberConfig()
	if config != nil {
		cfg = *config
	}

	s := &HeadSubscriber{
		endpoint: endpoint,
		config:   cfg,
		heads:    make(chan uint64, cfg.Buffer),
		done:     make(chan struct{}),
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	s.conn = conn

	if err := s.subscribe(); err != nil {
		conn.Close()
		return nil, err
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.pingLoop()

	return s, nil
}

// subscribe sends the eth_subscribe request and waits for its reply.
func (s *HeadSubscriber) subscribe() error {
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      s.requestID.Add(1),
		Method:  "eth_subscribe",
		Params:  []interface{}{"newHeads"},
	}

	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("subscribe newHeads: %w", err)
	}

	s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	var reply wsMessage
	if err := s.conn.ReadJSON(&reply); err != nil {
		return fmt.Errorf("read subscribe reply: %w", err)
	}
	if reply.Error != nil {
		return fmt.Errorf("subscribe newHeads: %w", reply.Error)
	}
	return nil
}

// Heads returns the channel of new block numbers. The channel closes when
// the subscriber shuts down or the connection drops.
func (s *HeadSubscriber) Heads() <-chan uint64 {
	return s.heads
}

// readLoop reads notifications until shutdown or a read error.
func (s *HeadSubscriber) readLoop() {
	defer s.wg.Done()
	defer close(s.heads)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		var msg wsMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return
		}

		if msg.Method != "eth_subscription" || msg.Params == nil {
			continue
		}

		select {
		case s.heads <- uint64(msg.Params.Result.Number):
		default:
			// Consumer is behind; the next head supersedes this one.
		}
	}
}

// pingLoop keeps the connection alive.
func (s *HeadSubscriber) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.connMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Close shuts down the subscription and closes the connection.
func (s *HeadSubscriber) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.done)
	err := s.conn.Close()
	s.wg.Wait()
	return err
}
