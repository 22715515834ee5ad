package token

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"evm-token-engine/internal/amount"
	"evm-token-engine/internal/evm"
)

// Balance query errors.
var (
	// ErrInvalidAddress is returned when an address is not syntactically
	// valid.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrQueryFailed is returned when the balance read fails at the node
	// or contract.
	ErrQueryFailed = errors.New("balance query failed")
)

// BalanceQuery reads and formats token balances for one contract.
type BalanceQuery struct {
	client   evm.LedgerClient
	cache    *MetadataCache
	contract common.Address
}

// NewBalanceQuery creates a balance query bound to a token contract.
func NewBalanceQuery(client evm.LedgerClient, cache *MetadataCache, contract common.Address) *BalanceQuery {
	return &BalanceQuery{client: client, cache: cache, contract: contract}
}

// Formatted returns the holder's token balance as a human-readable decimal
// string, scaled by the token's decimals.
func (q *BalanceQuery) Formatted(ctx context.Context, holder string) (string, error) {
	if !common.IsHexAddress(holder) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, holder)
	}

	meta, err := q.cache.Get(ctx, q.contract)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	raw, err := q.Raw(ctx, common.HexToAddress(holder))
	if err != nil {
		return "", err
	}
	return amount.ToHumanUnits(raw, meta.Decimals), nil
}

// Raw returns the holder's balance in base units.
func (q *BalanceQuery) Raw(ctx context.Context, holder common.Address) (*big.Int, error) {
	out, err := q.client.CallReadFunction(ctx, q.contract, "balanceOf", holder)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	balance, ok := first(out).(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: balanceOf returned %T", ErrQueryFailed, first(out))
	}
	return balance, nil
}
