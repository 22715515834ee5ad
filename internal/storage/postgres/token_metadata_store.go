package postgres

import (
	"context"
	"fmt"

	"evm-token-engine/internal/domain"
	"evm-token-engine/internal/storage"
)

// TokenMetadataStore implements storage.TokenMetadataStore using PostgreSQL.
type TokenMetadataStore struct {
	pool *Pool
}

// NewTokenMetadataStore creates a new TokenMetadataStore.
func NewTokenMetadataStore(pool *Pool) *TokenMetadataStore {
	return &TokenMetadataStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenMetadataStore = (*TokenMetadataStore)(nil)

// Insert adds metadata. Returns ErrDuplicateKey if the contract exists.
func (s *TokenMetadataStore) Insert(ctx context.Context, m *domain.TokenMetadata) error {
	if m == nil || m.Contract == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_metadata (
			contract, symbol, decimals, fetched_at
		) VALUES (lower($1), $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query,
		m.Contract,
		m.Symbol,
		int16(m.Decimals),
		m.FetchedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token metadata: %w", err)
	}
	return nil
}

// GetByContract retrieves metadata by contract address. Returns ErrNotFound
// if not exists.
func (s *TokenMetadataStore) GetByContract(ctx context.Context, contract string) (*domain.TokenMetadata, error) {
	query := `
		SELECT contract, symbol, decimals, fetched_at
		FROM token_metadata
		WHERE contract = lower($1)
	`

	var m domain.TokenMetadata
	var decimals int16
	err := s.pool.QueryRow(ctx, query, contract).Scan(
		&m.Contract,
		&m.Symbol,
		&decimals,
		&m.FetchedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token metadata by contract: %w", err)
	}
	m.Decimals = uint8(decimals)
	return &m, nil
}
