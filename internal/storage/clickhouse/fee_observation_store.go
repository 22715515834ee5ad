package clickhouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"evm-token-engine/internal/domain"
	"evm-token-engine/internal/storage"
)

// FeeObservationStore implements storage.FeeObservationStore using
// ClickHouse. Observations are an append-only timeseries; duplicates are
// tolerated (the fee market produces identical quotes legitimately).
type FeeObservationStore struct {
	conn *Conn
}

// NewFeeObservationStore creates a new FeeObservationStore.
func NewFeeObservationStore(conn *Conn) *FeeObservationStore {
	return &FeeObservationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FeeObservationStore = (*FeeObservationStore)(nil)

// InsertBulk adds multiple observations.
func (s *FeeObservationStore) InsertBulk(ctx context.Context, obs []*domain.FeeObservation) error {
	if len(obs) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO fee_observations (
			contract, gas_estimate, buffered_gas, gas_price_wei, total_cost_wei, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, o := range obs {
		if o == nil || o.Contract == "" {
			return storage.ErrInvalidInput
		}
		err = batch.Append(
			strings.ToLower(o.Contract), o.GasEstimate, o.BufferedGas,
			o.GasPriceWei, o.TotalCostWei, uint64(o.ObservedAt),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByContract retrieves all observations for a contract, ordered by
// observation time ASC.
func (s *FeeObservationStore) GetByContract(ctx context.Context, contract string) ([]*domain.FeeObservation, error) {
	query := `
		SELECT contract, gas_estimate, buffered_gas, gas_price_wei, total_cost_wei, observed_at
		FROM fee_observations
		WHERE contract = ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, strings.ToLower(contract))
	if err != nil {
		return nil, fmt.Errorf("query by contract: %w", err)
	}
	defer rows.Close()

	return scanFeeObservations(rows)
}

// GetByTimeRange retrieves observations for a contract within [start, end]
// ms (inclusive).
func (s *FeeObservationStore) GetByTimeRange(ctx context.Context, contract string, start, end int64) ([]*domain.FeeObservation, error) {
	query := `
		SELECT contract, gas_estimate, buffered_gas, gas_price_wei, total_cost_wei, observed_at
		FROM fee_observations
		WHERE contract = ? AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, strings.ToLower(contract), uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanFeeObservations(rows)
}

// scanFeeObservations scans multiple rows.
func scanFeeObservations(rows driver.Rows) ([]*domain.FeeObservation, error) {
	var obs []*domain.FeeObservation

	for rows.Next() {
		var o domain.FeeObservation
		var observedAt uint64

		err := rows.Scan(
			&o.Contract, &o.GasEstimate, &o.BufferedGas,
			&o.GasPriceWei, &o.TotalCostWei, &observedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fee observation row: %w", err)
		}

		o.ObservedAt = int64(observedAt)
		obs = append(obs, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fee observation rows: %w", err)
	}

	return obs, nil
}
