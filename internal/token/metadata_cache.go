// Package token provides token metadata caching and the balance read path.
package token

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"evm-token-engine/internal/domain"
	"evm-token-engine/internal/evm"
	"evm-token-engine/internal/storage"
)

// ErrMetadataUnavailable is returned when token metadata cannot be fetched
// or fails validation.
var ErrMetadataUnavailable = errors.New("token metadata unavailable")

// MetadataCache memoizes token symbol/decimals per contract address.
// Metadata is immutable for a contract's lifetime, so a successful fetch is
// kept for the life of the cache. Fetches are single-flight: concurrent
// first callers for the same contract share one pair of read calls. Failed
// fetches are not cached; a later caller triggers a fresh attempt.
type MetadataCache struct {
	client evm.LedgerClient
	store  storage.TokenMetadataStore // optional persistence, may be nil
	logger *log.Logger

	mu      sync.Mutex
	entries map[common.Address]*fetchEntry
}

// fetchEntry is one in-flight or completed fetch. done is closed when the
// fetch finishes; meta and err are valid only after that.
type fetchEntry struct {
	done chan struct{}
	meta *domain.TokenMetadata
	err  error
}

// NewMetadataCache creates a metadata cache. store may be nil; when set,
// fetched metadata is persisted and used to warm-start later processes.
func NewMetadataCache(client evm.LedgerClient, store storage.TokenMetadataStore, logger *log.Logger) *MetadataCache {
	return &MetadataCache{
		client:  client,
		store:   store,
		logger:  logger,
		entries: make(map[common.Address]*fetchEntry),
	}
}

// Get returns the metadata for a token contract, fetching it on first use.
// Waiters on an in-flight fetch observe its result; if the fetch fails
// (including cancellation by the caller that started it), the failure is
// reported to all waiters and the next Get starts over.
func (c *MetadataCache) Get(ctx context.Context, contract common.Address) (*domain.TokenMetadata, error) {
	c.mu.Lock()
	if e, ok := c.entries[contract]; ok {
		c.mu.Unlock()
		select {
		case <-e.done:
			return e.meta, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e := &fetchEntry{done: make(chan struct{})}
	c.entries[contract] = e
	c.mu.Unlock()

	e.meta, e.err = c.fetch(ctx, contract)
	if e.err != nil {
		c.mu.Lock()
		delete(c.entries, contract)
		c.mu.Unlock()
	}
	close(e.done)

	return e.meta, e.err
}

// fetch loads metadata from the store when possible, otherwise issues the
// symbol and decimals read calls and persists the result.
func (c *MetadataCache) fetch(ctx context.Context, contract common.Address) (*domain.TokenMetadata, error) {
	if c.store != nil {
		m, err := c.store.GetByContract(ctx, contract.Hex())
		if err == nil {
			if m.Decimals <= domain.MaxTokenDecimals {
				return m, nil
			}
		} else if !errors.Is(err, storage.ErrNotFound) {
			c.logf("metadata store read %s: %v", contract.Hex(), err)
		}
	}

	symbolOut, err := c.client.CallReadFunction(ctx, contract, "symbol")
	if err != nil {
		return nil, fmt.Errorf("%w: symbol: %v", ErrMetadataUnavailable, err)
	}
	decimalsOut, err := c.client.CallReadFunction(ctx, contract, "decimals")
	if err != nil {
		return nil, fmt.Errorf("%w: decimals: %v", ErrMetadataUnavailable, err)
	}

	symbol, ok := first(symbolOut).(string)
	if !ok {
		return nil, fmt.Errorf("%w: symbol returned %T", ErrMetadataUnavailable, first(symbolOut))
	}
	decimals, ok := first(decimalsOut).(uint8)
	if !ok {
		return nil, fmt.Errorf("%w: decimals returned %T", ErrMetadataUnavailable, first(decimalsOut))
	}
	if decimals > domain.MaxTokenDecimals {
		return nil, fmt.Errorf("%w: implausible decimals %d", ErrMetadataUnavailable, decimals)
	}

	m := &domain.TokenMetadata{
		Contract:  contract.Hex(),
		Symbol:    symbol,
		Decimals:  decimals,
		FetchedAt: time.Now().UnixMilli(),
	}

	if c.store != nil {
		if err := c.store.Insert(ctx, m); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			c.logf("metadata store insert %s: %v", contract.Hex(), err)
		}
	}

	return m, nil
}

func (c *MetadataCache) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// first returns the first output of a contract call, nil when absent.
func first(out []interface{}) interface{} {
	if len(out) == 0 {
		return nil
	}
	return out[0]
}
