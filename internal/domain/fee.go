package domain

import "math/big"

// DefaultBufferPercent is the safety margin added to gas estimates.
const DefaultBufferPercent = 30

// FeeQuote is the fee picture for one prospective transfer attempt.
// GasEstimate and GasPrice are fetched in the same orchestration step but
// the fee market can still move between quoting and submission; a quote is
// best-effort and must never be reused across attempts.
type FeeQuote struct {
	GasEstimate uint64   // node's base gas estimate for the exact call
	BufferedGas uint64   // GasEstimate + GasEstimate*bufferPercent/100
	GasPrice    *big.Int // current unit price in wei
	TotalCost   *big.Int // BufferedGas * GasPrice, in wei
}

// FeeObservation is a recorded FeeQuote for fee-market analytics.
type FeeObservation struct {
	Contract     string // token contract address
	GasEstimate  uint64
	BufferedGas  uint64
	GasPriceWei  string // wei as decimal string
	TotalCostWei string // wei as decimal string
	ObservedAt   int64  // ms
}
