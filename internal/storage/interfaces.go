// Package storage defines the persistence interfaces of the transfer
// engine. Implementations live in the memory, postgres and clickhouse
// sub-packages; all stores are append-only.
package storage

import (
	"context"

	"evm-token-engine/internal/domain"
)

// TokenMetadataStore persists fetched token metadata. Used to warm-start
// the in-process metadata cache across restarts.
type TokenMetadataStore interface {
	// Insert adds metadata. Returns ErrDuplicateKey if the contract
	// address already has a record.
	Insert(ctx context.Context, m *domain.TokenMetadata) error

	// GetByContract retrieves metadata by contract address. Returns
	// ErrNotFound if not exists.
	GetByContract(ctx context.Context, contract string) (*domain.TokenMetadata, error)
}

// TransferRecordStore persists terminal transfer outcomes.
type TransferRecordStore interface {
	// Insert adds a record. Returns ErrDuplicateKey if the transaction
	// hash already exists (submitted transfers only; rejected and failed
	// attempts carry no hash and are never deduplicated).
	Insert(ctx context.Context, r *domain.TransferRecord) error

	// GetByTxHash retrieves a submitted transfer by its transaction hash.
	// Returns ErrNotFound if not exists.
	GetByTxHash(ctx context.Context, txHash string) (*domain.TransferRecord, error)

	// GetBySender retrieves all records for a sender, newest first.
	GetBySender(ctx context.Context, sender string) ([]*domain.TransferRecord, error)
}

// FeeObservationStore persists fee quotes as a timeseries for fee-market
// analytics.
type FeeObservationStore interface {
	// InsertBulk adds multiple observations.
	InsertBulk(ctx context.Context, obs []*domain.FeeObservation) error

	// GetByContract retrieves all observations for a token contract,
	// ordered by observation time ASC.
	GetByContract(ctx context.Context, contract string) ([]*domain.FeeObservation, error)

	// GetByTimeRange retrieves observations for a contract within
	// [start, end] ms (inclusive).
	GetByTimeRange(ctx context.Context, contract string, start, end int64) ([]*domain.FeeObservation, error)
}
