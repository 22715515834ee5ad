package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"evm-token-engine/internal/domain"
	"evm-token-engine/internal/storage"
)

// TransferRecordStore implements storage.TransferRecordStore using
// PostgreSQL.
type TransferRecordStore struct {
	pool *Pool
}

// NewTransferRecordStore creates a new TransferRecordStore.
func NewTransferRecordStore(pool *Pool) *TransferRecordStore {
	return &TransferRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransferRecordStore = (*TransferRecordStore)(nil)

// Insert adds a record. Returns ErrDuplicateKey if the tx hash exists.
func (s *TransferRecordStore) Insert(ctx context.Context, r *domain.TransferRecord) error {
	if r == nil || r.Sender == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO transfer_records (
			tx_hash, contract, sender, recipient, amount_base,
			gas_limit, gas_price_wei, status, detail, created_at
		) VALUES (nullif(lower($1), ''), lower($2), lower($3), lower($4), $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		r.TxHash,
		r.Contract,
		r.Sender,
		r.Recipient,
		r.AmountBase,
		int64(r.GasLimit),
		r.GasPriceWei,
		r.Status,
		r.Detail,
		r.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transfer record: %w", err)
	}
	return nil
}

// GetByTxHash retrieves a submitted transfer by transaction hash. Returns
// ErrNotFound if not exists.
func (s *TransferRecordStore) GetByTxHash(ctx context.Context, txHash string) (*domain.TransferRecord, error) {
	query := `
		SELECT coalesce(tx_hash, ''), contract, sender, recipient, amount_base,
		       gas_limit, gas_price_wei, status, detail, created_at
		FROM transfer_records
		WHERE tx_hash = lower($1)
	`

	r, err := scanTransferRecord(s.pool.QueryRow(ctx, query, txHash))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transfer record by tx hash: %w", err)
	}
	return r, nil
}

// GetBySender retrieves all records for a sender, newest first.
func (s *TransferRecordStore) GetBySender(ctx context.Context, sender string) ([]*domain.TransferRecord, error) {
	query := `
		SELECT coalesce(tx_hash, ''), contract, sender, recipient, amount_base,
		       gas_limit, gas_price_wei, status, detail, created_at
		FROM transfer_records
		WHERE sender = lower($1)
		ORDER BY created_at DESC
	`

	rows, err := s.pool.Query(ctx, query, sender)
	if err != nil {
		return nil, fmt.Errorf("get transfer records by sender: %w", err)
	}
	defer rows.Close()

	var result []*domain.TransferRecord
	for rows.Next() {
		r, err := scanTransferRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer record: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer records: %w", err)
	}
	return result, nil
}

// scanTransferRecord scans a single row into a TransferRecord.
func scanTransferRecord(row pgx.Row) (*domain.TransferRecord, error) {
	var r domain.TransferRecord
	var gasLimit int64

	err := row.Scan(
		&r.TxHash,
		&r.Contract,
		&r.Sender,
		&r.Recipient,
		&r.AmountBase,
		&gasLimit,
		&r.GasPriceWei,
		&r.Status,
		&r.Detail,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.GasLimit = uint64(gasLimit)
	return &r, nil
}
