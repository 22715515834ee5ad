package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"evm-token-engine/internal/evm"
)

// Confirmation defaults: poll every 5 seconds, up to 12 attempts.
const (
	DefaultConfirmInterval = 5 * time.Second
	DefaultConfirmAttempts = 12
)

// ErrConfirmationTimeout is returned when a transaction is still unmined
// after the attempt budget is spent. The transaction itself remains on the
// network; only the local wait stops.
var ErrConfirmationTimeout = errors.New("confirmation timed out")

// AwaitConfirmation polls for a transaction receipt at a fixed interval
// with a bounded attempt count. It is an opt-in follow-up to a submitted
// transfer, never part of the submission path. Cancelling the context
// stops the wait without affecting the broadcast transaction.
func AwaitConfirmation(ctx context.Context, client evm.LedgerClient, txHash common.Hash, maxAttempts int, interval time.Duration) (*evm.Receipt, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultConfirmAttempts
	}
	if interval <= 0 {
		interval = DefaultConfirmInterval
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interval):
			}
		}

		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err != nil {
			// Transient node trouble burns an attempt; the budget
			// still bounds the wait.
			lastErr = err
			continue
		}
		if receipt != nil {
			return receipt, nil
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w after %d attempts (last error: %v)", ErrConfirmationTimeout, maxAttempts, lastErr)
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrConfirmationTimeout, maxAttempts)
}

// AwaitConfirmationOnHeads polls for a receipt each time a new block
// arrives on heads, up to maxAttempts polls. Compared to fixed-interval
// polling this checks exactly when a receipt could first exist. The heads
// channel closing (connection loss) ends the wait with
// ErrConfirmationTimeout.
func AwaitConfirmationOnHeads(ctx context.Context, client evm.LedgerClient, heads <-chan uint64, txHash common.Hash, maxAttempts int) (*evm.Receipt, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultConfirmAttempts
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case _, ok := <-heads:
			if !ok {
				return nil, fmt.Errorf("%w: head subscription closed", ErrConfirmationTimeout)
			}
		}

		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err != nil {
			continue
		}
		if receipt != nil {
			return receipt, nil
		}
	}

	return nil, fmt.Errorf("%w after %d new blocks", ErrConfirmationTimeout, maxAttempts)
}
