package engine

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"evm-token-engine/internal/evm/stub"
)

var (
	testContract  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testRecipient = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func TestFeeEstimator_Buffer(t *testing.T) {
	cases := []struct {
		gas           uint64
		bufferPercent uint64
		wantBuffered  uint64
	}{
		{60000, 30, 78000},
		{21000, 30, 27300},
		{100, 30, 130},
		{1, 30, 1},     // 1*30/100 floors to 0
		{7, 30, 9},     // 7*30/100 floors to 2
		{60000, 0, 78000}, // 0 selects the default 30
		{60000, 50, 90000},
	}

	for _, tc := range cases {
		client := stub.NewLedgerClient()
		client.GasEstimate = tc.gas
		client.GasPrice = big.NewInt(1000)

		quote, err := NewFeeEstimator(client, tc.bufferPercent).
			Estimate(context.Background(), testContract, testRecipient, big.NewInt(1))
		if err != nil {
			t.Fatalf("Estimate(gas=%d): %v", tc.gas, err)
		}

		if quote.GasEstimate != tc.gas {
			t.Errorf("GasEstimate = %d, want %d", quote.GasEstimate, tc.gas)
		}
		if quote.BufferedGas != tc.wantBuffered {
			t.Errorf("BufferedGas(gas=%d, pct=%d) = %d, want %d",
				tc.gas, tc.bufferPercent, quote.BufferedGas, tc.wantBuffered)
		}
		if quote.BufferedGas < quote.GasEstimate {
			t.Errorf("BufferedGas %d < GasEstimate %d", quote.BufferedGas, quote.GasEstimate)
		}

		wantTotal := new(big.Int).Mul(new(big.Int).SetUint64(tc.wantBuffered), big.NewInt(1000))
		if quote.TotalCost.Cmp(wantTotal) != 0 {
			t.Errorf("TotalCost = %s, want %s", quote.TotalCost, wantTotal)
		}
	}
}

func TestFeeEstimator_EstimateError(t *testing.T) {
	client := stub.NewLedgerClient()
	client.EstimateErr = errors.New("execution reverted")

	_, err := NewFeeEstimator(client, 0).
		Estimate(context.Background(), testContract, testRecipient, big.NewInt(1))
	if !errors.Is(err, ErrEstimationFailed) {
		t.Fatalf("error = %v, want ErrEstimationFailed", err)
	}
	if client.EstimateCalls != 1 {
		t.Errorf("estimate calls = %d, want exactly 1 (no retry)", client.EstimateCalls)
	}
}

func TestFeeEstimator_PriceError(t *testing.T) {
	client := stub.NewLedgerClient()
	client.GasEstimate = 60000
	client.PriceErr = errors.New("node unreachable")

	_, err := NewFeeEstimator(client, 0).
		Estimate(context.Background(), testContract, testRecipient, big.NewInt(1))
	if !errors.Is(err, ErrEstimationFailed) {
		t.Fatalf("error = %v, want ErrEstimationFailed", err)
	}
	if client.PriceCalls != 1 {
		t.Errorf("price calls = %d, want exactly 1 (no retry)", client.PriceCalls)
	}
}
