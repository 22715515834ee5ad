// Package engine implements the transfer orchestration and fee-safety
// pipeline: validation, amount scaling, buffered fee estimation,
// affordability checking, submission and optional confirmation tracking.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"evm-token-engine/internal/domain"
	"evm-token-engine/internal/evm"
)

// ErrEstimationFailed is returned when the node cannot produce a fee
// estimate. Estimation failures usually mean the transfer itself would
// fail on-chain (e.g. insufficient token balance), so they are never
// retried; the attempt terminates.
var ErrEstimationFailed = errors.New("fee estimation failed")

// FeeEstimator produces buffered fee quotes for token transfers.
type FeeEstimator struct {
	client        evm.LedgerClient
	bufferPercent uint64
}

// NewFeeEstimator creates a fee estimator. bufferPercent of 0 selects the
// default safety margin.
func NewFeeEstimator(client evm.LedgerClient, bufferPercent uint64) *FeeEstimator {
	if bufferPercent == 0 {
		bufferPercent = domain.DefaultBufferPercent
	}
	return &FeeEstimator{client: client, bufferPercent: bufferPercent}
}

// Estimate requests a gas estimate for the exact transfer call that would
// be submitted, applies the safety buffer and fetches the current gas
// price. All buffer arithmetic is integer-only; gas magnitudes never pass
// through floating point. The estimate and the price are fetched
// back-to-back but the fee market can move between them and submission;
// the quote is best-effort by design.
func (e *FeeEstimator) Estimate(ctx context.Context, contract, recipient common.Address, amountBase *big.Int) (*domain.FeeQuote, error) {
	args := []interface{}{recipient, amountBase}
	gas, err := e.client.EstimateFee(ctx, e.client.Sender(), contract, "transfer", args, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEstimationFailed, err)
	}

	price, err := e.client.UnitPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: gas price: %v", ErrEstimationFailed, err)
	}

	buffered := gas + gas*e.bufferPercent/100
	total := new(big.Int).Mul(new(big.Int).SetUint64(buffered), price)

	return &domain.FeeQuote{
		GasEstimate: gas,
		BufferedGas: buffered,
		GasPrice:    price,
		TotalCost:   total,
	}, nil
}
