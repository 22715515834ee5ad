// Package evm provides the ledger client capability: JSON-RPC access to an
// EVM node plus the ERC20 calldata and signing plumbing the engine depends
// on. The engine only ever sees the LedgerClient interface.
package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LedgerClient is the minimal node capability consumed by the engine.
type LedgerClient interface {
	// CallReadFunction executes a read-only contract function and returns
	// its decoded outputs. No fee is spent.
	CallReadFunction(ctx context.Context, contract common.Address, fn string, args ...interface{}) ([]interface{}, error)

	// EstimateFee asks the node for a gas estimate for the exact call that
	// would be submitted.
	EstimateFee(ctx context.Context, from, contract common.Address, fn string, args []interface{}, value *big.Int) (uint64, error)

	// UnitPrice returns the current gas price in wei.
	UnitPrice(ctx context.Context) (*big.Int, error)

	// NativeBalance returns the native-currency balance of an address in wei.
	NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error)

	// SignAndSubmit signs a contract call with the client's key and
	// broadcasts it, returning the transaction hash.
	SignAndSubmit(ctx context.Context, contract common.Address, fn string, args []interface{}, gasLimit uint64, gasPrice, value *big.Int) (common.Hash, error)

	// TransactionReceipt returns the receipt for a transaction, or nil if
	// the transaction is not yet mined.
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error)

	// Sender returns the address of the client's signing key.
	Sender() common.Address
}

// Receipt is the mined-transaction summary used by confirmation tracking.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Status      uint64 // 1 success, 0 reverted
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool { return r != nil && r.Status == 1 }
