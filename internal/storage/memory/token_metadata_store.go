// Package memory provides in-memory store implementations, used by tests
// and by deployments that run without a database.
package memory

import (
	"context"
	"strings"
	"sync"

	"evm-token-engine/internal/domain"
	"evm-token-engine/internal/storage"
)

// TokenMetadataStore is an in-memory implementation of
// storage.TokenMetadataStore. Contract addresses are compared
// case-insensitively (hex case carries no meaning).
type TokenMetadataStore struct {
	mu         sync.RWMutex
	byContract map[string]*domain.TokenMetadata
}

// NewTokenMetadataStore creates a new in-memory token metadata store.
func NewTokenMetadataStore() *TokenMetadataStore {
	return &TokenMetadataStore{
		byContract: make(map[string]*domain.TokenMetadata),
	}
}

var _ storage.TokenMetadataStore = (*TokenMetadataStore)(nil)

// Insert adds metadata. Returns ErrDuplicateKey if the contract exists.
func (s *TokenMetadataStore) Insert(_ context.Context, m *domain.TokenMetadata) error {
	if m == nil || m.Contract == "" {
		return storage.ErrInvalidInput
	}

	key := strings.ToLower(m.Contract)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byContract[key]; exists {
		return storage.ErrDuplicateKey
	}

	metaCopy := *m
	s.byContract[key] = &metaCopy
	return nil
}

// GetByContract retrieves metadata by contract address. Returns ErrNotFound
// if not exists.
func (s *TokenMetadataStore) GetByContract(_ context.Context, contract string) (*domain.TokenMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.byContract[strings.ToLower(contract)]
	if !exists {
		return nil, storage.ErrNotFound
	}

	metaCopy := *m
	return &metaCopy, nil
}
