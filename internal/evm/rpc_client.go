package evm

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// ErrNoSigner is returned by SignAndSubmit when the client was built
// without a signing key.
var ErrNoSigner = errors.New("ledger client has no signing key")

// HTTPClient implements LedgerClient over HTTP JSON-RPC 2.0.
//
// Transport failures (connection errors, 429, non-200 statuses) are retried
// up to maxRetries with exponential backoff. Errors returned by the node
// itself (reverts, bad params) are never retried.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	key         *ecdsa.PrivateKey
	sender      common.Address
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	observer    func(method string, duration time.Duration, err error)
	requestID   atomic.Uint64

	chainOnce sync.Once
	chainID   *big.Int
	chainErr  error
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum transport retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithCallObserver registers a hook invoked after every JSON-RPC call with
// the method name, total duration (including transport retries) and the
// final error. Used for metrics.
func WithCallObserver(fn func(method string, duration time.Duration, err error)) ClientOption {
	return func(c *HTTPClient) {
		c.observer = fn
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates an EVM JSON-RPC client. key may be nil for a
// read-only client; SignAndSubmit then fails with ErrNoSigner.
func NewHTTPClient(endpoint string, key *ecdsa.PrivateKey, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		key:         key,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	if key != nil {
		c.sender = crypto.PubkeyToAddress(key.PublicKey)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ LedgerClient = (*HTTPClient)(nil)

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with bounded transport retries.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) (err error) {
	if c.observer != nil {
		started := time.Now()
		defer func() { c.observer(method, time.Since(started), err) }()
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		raw, retriable, err := c.post(ctx, body)
		if err != nil {
			if !retriable {
				return err
			}
			lastErr = err
			continue
		}

		if result != nil && raw != nil {
			if err := json.Unmarshal(raw, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// post performs a single HTTP round trip. The second return value reports
// whether a failure is a transport problem worth retrying.
func (c *HTTPClient) post(ctx context.Context, body []byte) (json.RawMessage, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("http request: %w", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, fmt.Errorf("rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, true, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, true, fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		// Node-level errors are not retried.
		return nil, false, rpcResp.Error
	}
	return rpcResp.Result, false, nil
}

// callMsg is the transaction-shaped argument of eth_call and
// eth_estimateGas.
type callMsg struct {
	From  string `json:"from,omitempty"`
	To    string `json:"to"`
	Data  string `json:"data,omitempty"`
	Value string `json:"value,omitempty"`
}

func newCallMsg(from *common.Address, to common.Address, data []byte, value *big.Int) callMsg {
	msg := callMsg{To: to.Hex()}
	if from != nil {
		msg.From = from.Hex()
	}
	if len(data) > 0 {
		msg.Data = hexutil.Encode(data)
	}
	if value != nil && value.Sign() > 0 {
		msg.Value = hexutil.EncodeBig(value)
	}
	return msg
}

// CallReadFunction executes a read-only contract function via eth_call and
// returns its decoded outputs.
func (c *HTTPClient) CallReadFunction(ctx context.Context, contract common.Address, fn string, args ...interface{}) ([]interface{}, error) {
	data, err := packCall(fn, args...)
	if err != nil {
		return nil, err
	}

	var raw hexutil.Bytes
	params := []interface{}{newCallMsg(nil, contract, data, nil), "latest"}
	if err := c.call(ctx, "eth_call", params, &raw); err != nil {
		return nil, fmt.Errorf("eth_call %s: %w", fn, err)
	}
	return unpackResult(fn, raw)
}

// EstimateFee asks the node for a gas estimate via eth_estimateGas for the
// exact call that would be submitted.
func (c *HTTPClient) EstimateFee(ctx context.Context, from, contract common.Address, fn string, args []interface{}, value *big.Int) (uint64, error) {
	data, err := packCall(fn, args...)
	if err != nil {
		return 0, err
	}

	var gas hexutil.Uint64
	params := []interface{}{newCallMsg(&from, contract, data, value)}
	if err := c.call(ctx, "eth_estimateGas", params, &gas); err != nil {
		return 0, fmt.Errorf("eth_estimateGas %s: %w", fn, err)
	}
	return uint64(gas), nil
}

// UnitPrice returns the current gas price in wei via eth_gasPrice.
func (c *HTTPClient) UnitPrice(ctx context.Context) (*big.Int, error) {
	var price hexutil.Big
	if err := c.call(ctx, "eth_gasPrice", nil, &price); err != nil {
		return nil, fmt.Errorf("eth_gasPrice: %w", err)
	}
	return price.ToInt(), nil
}

// NativeBalance returns the wei balance of an address via eth_getBalance.
func (c *HTTPClient) NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var balance hexutil.Big
	params := []interface{}{addr.Hex(), "latest"}
	if err := c.call(ctx, "eth_getBalance", params, &balance); err != nil {
		return nil, fmt.Errorf("eth_getBalance: %w", err)
	}
	return balance.ToInt(), nil
}

// pendingNonce returns the next nonce for the sender, counting pending
// transactions.
func (c *HTTPClient) pendingNonce(ctx context.Context) (uint64, error) {
	var nonce hexutil.Uint64
	params := []interface{}{c.sender.Hex(), "pending"}
	if err := c.call(ctx, "eth_getTransactionCount", params, &nonce); err != nil {
		return 0, fmt.Errorf("eth_getTransactionCount: %w", err)
	}
	return uint64(nonce), nil
}

// networkChainID fetches and caches the chain ID.
func (c *HTTPClient) networkChainID(ctx context.Context) (*big.Int, error) {
	c.chainOnce.Do(func() {
		var id hexutil.Big
		if err := c.call(ctx, "eth_chainId", nil, &id); err != nil {
			c.chainErr = fmt.Errorf("eth_chainId: %w", err)
			return
		}
		c.chainID = id.ToInt()
	})
	return c.chainID, c.chainErr
}

// SignAndSubmit signs a contract call with the client's key (EIP-155) and
// broadcasts it via eth_sendRawTransaction.
func (c *HTTPClient) SignAndSubmit(ctx context.Context, contract common.Address, fn string, args []interface{}, gasLimit uint64, gasPrice, value *big.Int) (common.Hash, error) {
	if c.key == nil {
		return common.Hash{}, ErrNoSigner
	}

	data, err := packCall(fn, args...)
	if err != nil {
		return common.Hash{}, err
	}

	chainID, err := c.networkChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	nonce, err := c.pendingNonce(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &contract,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}

	rawTx, err := signed.MarshalBinary()
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode transaction: %w", err)
	}

	var hash common.Hash
	params := []interface{}{hexutil.Encode(rawTx)}
	if err := c.call(ctx, "eth_sendRawTransaction", params, &hash); err != nil {
		return common.Hash{}, fmt.Errorf("eth_sendRawTransaction: %w", err)
	}
	return hash, nil
}

// receiptResult is the raw RPC response for eth_getTransactionReceipt.
type receiptResult struct {
	TransactionHash common.Hash    `json:"transactionHash"`
	BlockNumber     hexutil.Uint64 `json:"blockNumber"`
	GasUsed         hexutil.Uint64 `json:"gasUsed"`
	Status          hexutil.Uint64 `json:"status"`
}

// TransactionReceipt returns the receipt for a transaction, or nil if the
// transaction is not yet mined.
func (c *HTTPClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	var result *receiptResult
	params := []interface{}{txHash.Hex()}
	if err := c.call(ctx, "eth_getTransactionReceipt", params, &result); err != nil {
		return nil, fmt.Errorf("eth_getTransactionReceipt: %w", err)
	}
	if result == nil {
		return nil, nil
	}
	return &Receipt{
		TxHash:      result.TransactionHash,
		BlockNumber: uint64(result.BlockNumber),
		GasUsed:     uint64(result.GasUsed),
		Status:      uint64(result.Status),
	}, nil
}

// Sender returns the address of the client's signing key, or the zero
// address for a read-only client.
func (c *HTTPClient) Sender() common.Address {
	return c.sender
}
