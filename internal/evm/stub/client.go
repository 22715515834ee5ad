// Package stub provides a scripted evm.LedgerClient for tests.
package stub

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"evm-token-engine/internal/evm"
)

// ErrNotConfigured is returned when a call has no scripted result.
var ErrNotConfigured = errors.New("stub: not configured")

// LedgerClient implements evm.LedgerClient for testing. All fields are
// read under a single mutex; configure before use and inspect call
// counters after.
type LedgerClient struct {
	mu sync.Mutex

	SenderAddr common.Address

	// Read-only contract calls, keyed by function name.
	ReadResults map[string][]interface{}
	ReadErrs    map[string]error
	ReadDelay   time.Duration // optional latency per read call

	GasEstimate uint64
	EstimateErr error

	GasPrice *big.Int
	PriceErr error

	Balances   map[common.Address]*big.Int
	BalanceErr error

	SubmitHash common.Hash
	SubmitErr  error

	Receipt      *evm.Receipt
	ReceiptErr   error
	ReceiptAfter int // receipt stays absent until this many lookups

	// Call counters.
	ReadCalls     map[string]int
	EstimateCalls int
	PriceCalls    int
	BalanceCalls  int
	SubmitCalls   int
	ReceiptCalls  int

	// Last submission, for assertions.
	LastSubmitFn       string
	LastSubmitArgs     []interface{}
	LastSubmitGasLimit uint64
	LastSubmitGasPrice *big.Int
}

// NewLedgerClient creates a stub client.
func NewLedgerClient() *LedgerClient {
	return &LedgerClient{
		ReadResults: make(map[string][]interface{}),
		ReadErrs:    make(map[string]error),
		Balances:    make(map[common.Address]*big.Int),
		ReadCalls:   make(map[string]int),
	}
}

var _ evm.LedgerClient = (*LedgerClient)(nil)

// CallReadFunction returns the scripted result for fn.
func (c *LedgerClient) CallReadFunction(_ context.Context, _ common.Address, fn string, _ ...interface{}) ([]interface{}, error) {
	c.mu.Lock()
	c.ReadCalls[fn]++
	delay := c.ReadDelay
	err := c.ReadErrs[fn]
	result, ok := c.ReadResults[fn]
	c.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotConfigured
	}
	return result, nil
}

// EstimateFee returns the scripted gas estimate.
func (c *LedgerClient) EstimateFee(_ context.Context, _, _ common.Address, _ string, _ []interface{}, _ *big.Int) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.EstimateCalls++
	if c.EstimateErr != nil {
		return 0, c.EstimateErr
	}
	return c.GasEstimate, nil
}

// UnitPrice returns the scripted gas price.
func (c *LedgerClient) UnitPrice(_ context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PriceCalls++
	if c.PriceErr != nil {
		return nil, c.PriceErr
	}
	if c.GasPrice == nil {
		return nil, ErrNotConfigured
	}
	return new(big.Int).Set(c.GasPrice), nil
}

// NativeBalance returns the scripted balance for addr, zero if unset.
func (c *LedgerClient) NativeBalance(_ context.Context, addr common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.BalanceCalls++
	if c.BalanceErr != nil {
		return nil, c.BalanceErr
	}
	if b, ok := c.Balances[addr]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

// SignAndSubmit records the submission and returns the scripted hash.
func (c *LedgerClient) SignAndSubmit(_ context.Context, _ common.Address, fn string, args []interface{}, gasLimit uint64, gasPrice, _ *big.Int) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SubmitCalls++
	c.LastSubmitFn = fn
	c.LastSubmitArgs = args
	c.LastSubmitGasLimit = gasLimit
	c.LastSubmitGasPrice = gasPrice
	if c.SubmitErr != nil {
		return common.Hash{}, c.SubmitErr
	}
	return c.SubmitHash, nil
}

// TransactionReceipt returns the scripted receipt once ReceiptAfter
// lookups have happened, nil before that.
func (c *LedgerClient) TransactionReceipt(_ context.Context, _ common.Hash) (*evm.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ReceiptCalls++
	if c.ReceiptErr != nil {
		return nil, c.ReceiptErr
	}
	if c.ReceiptCalls < c.ReceiptAfter {
		return nil, nil
	}
	return c.Receipt, nil
}

// Sender returns the configured sender address.
func (c *LedgerClient) Sender() common.Address {
	return c.SenderAddr
}
