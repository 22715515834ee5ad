package memory

import (
	"context"
	"errors"
	"testing"

	"evm-token-engine/internal/domain"
	"evm-token-engine/internal/storage"
)

func TestTokenMetadataStore_InsertAndGet(t *testing.T) {
	store := NewTokenMetadataStore()
	ctx := context.Background()

	meta := &domain.TokenMetadata{
		Contract:  "0xAbCd000000000000000000000000000000000001",
		Symbol:    "TKN",
		Decimals:  18,
		FetchedAt: 1700000000000,
	}
	if err := store.Insert(ctx, meta); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Lookups are case-insensitive on the contract address.
	got, err := store.GetByContract(ctx, "0xabcd000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("GetByContract: %v", err)
	}
	if got.Symbol != "TKN" || got.Decimals != 18 {
		t.Errorf("got %q/%d, want TKN/18", got.Symbol, got.Decimals)
	}

	// The stored value must be a copy.
	meta.Symbol = "MUTATED"
	got, _ = store.GetByContract(ctx, meta.Contract)
	if got.Symbol != "TKN" {
		t.Errorf("stored symbol = %q, caller mutation leaked in", got.Symbol)
	}
}

func TestTokenMetadataStore_Duplicate(t *testing.T) {
	store := NewTokenMetadataStore()
	ctx := context.Background()

	meta := &domain.TokenMetadata{Contract: "0xabcd000000000000000000000000000000000001", Symbol: "TKN", Decimals: 18}
	if err := store.Insert(ctx, meta); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	dup := &domain.TokenMetadata{Contract: "0xABCD000000000000000000000000000000000001", Symbol: "OTHER", Decimals: 6}
	if err := store.Insert(ctx, dup); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Insert duplicate error = %v, want ErrDuplicateKey", err)
	}
}

func TestTokenMetadataStore_NotFound(t *testing.T) {
	store := NewTokenMetadataStore()

	if _, err := store.GetByContract(context.Background(), "0x0000000000000000000000000000000000000099"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetByContract error = %v, want ErrNotFound", err)
	}
}

func TestTokenMetadataStore_InvalidInput(t *testing.T) {
	store := NewTokenMetadataStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Insert(nil) error = %v, want ErrInvalidInput", err)
	}
	if err := store.Insert(ctx, &domain.TokenMetadata{Symbol: "TKN"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Insert without contract error = %v, want ErrInvalidInput", err)
	}
}
