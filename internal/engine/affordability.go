package engine

import (
	"math/big"

	"evm-token-engine/internal/domain"
)

// Affordability is the result of comparing a native-currency balance
// against the total cost of a buffered fee quote.
type Affordability struct {
	Affordable bool
	Shortfall  *big.Int // missing wei; nil when affordable
}

// CheckAffordability reports whether nativeBalance covers the quote's
// total cost. Pure comparison; no network access.
func CheckAffordability(nativeBalance *big.Int, quote *domain.FeeQuote) Affordability {
	if nativeBalance.Cmp(quote.TotalCost) >= 0 {
		return Affordability{Affordable: true}
	}
	return Affordability{
		Shortfall: new(big.Int).Sub(quote.TotalCost, nativeBalance),
	}
}
