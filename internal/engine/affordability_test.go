package engine

import (
	"math/big"
	"testing"

	"evm-token-engine/internal/domain"
)

func TestCheckAffordability(t *testing.T) {
	quote := &domain.FeeQuote{
		GasEstimate: 60000,
		BufferedGas: 78000,
		GasPrice:    big.NewInt(1000),
		TotalCost:   big.NewInt(78000000),
	}

	cases := []struct {
		name          string
		balance       int64
		affordable    bool
		wantShortfall int64
	}{
		{"exact cost", 78000000, true, 0},
		{"above cost", 78000001, true, 0},
		{"one wei short", 77999999, false, 1},
		{"zero balance", 0, false, 78000000},
	}

	for _, tc := range cases {
		got := CheckAffordability(big.NewInt(tc.balance), quote)
		if got.Affordable != tc.affordable {
			t.Errorf("%s: Affordable = %v, want %v", tc.name, got.Affordable, tc.affordable)
		}
		if !tc.affordable && got.Shortfall.Int64() != tc.wantShortfall {
			t.Errorf("%s: Shortfall = %s, want %d", tc.name, got.Shortfall, tc.wantShortfall)
		}
	}
}

func TestCheckAffordability_Deterministic(t *testing.T) {
	quote := &domain.FeeQuote{
		BufferedGas: 78000,
		GasPrice:    big.NewInt(1000),
		TotalCost:   big.NewInt(78000000),
	}
	balance := big.NewInt(50000000)

	first := CheckAffordability(balance, quote)
	second := CheckAffordability(balance, quote)

	if first.Affordable != second.Affordable {
		t.Error("repeated checks disagree on affordability")
	}
	if first.Shortfall.Cmp(second.Shortfall) != 0 {
		t.Errorf("repeated checks disagree on shortfall: %s vs %s", first.Shortfall, second.Shortfall)
	}
}
