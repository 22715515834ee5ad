package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"evm-token-engine/internal/domain"
	"evm-token-engine/internal/storage"
)

// TransferRecordStore is an in-memory implementation of
// storage.TransferRecordStore.
type TransferRecordStore struct {
	mu       sync.RWMutex
	byTxHash map[string]*domain.TransferRecord
	all      []*domain.TransferRecord
}

// NewTransferRecordStore creates a new in-memory transfer record store.
func NewTransferRecordStore() *TransferRecordStore {
	return &TransferRecordStore{
		byTxHash: make(map[string]*domain.TransferRecord),
	}
}

var _ storage.TransferRecordStore = (*TransferRecordStore)(nil)

// Insert adds a record. Returns ErrDuplicateKey if the tx hash exists.
func (s *TransferRecordStore) Insert(_ context.Context, r *domain.TransferRecord) error {
	if r == nil || r.Sender == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(r.TxHash)
	if key != "" {
		if _, exists := s.byTxHash[key]; exists {
			return storage.ErrDuplicateKey
		}
	}

	recCopy := *r
	if key != "" {
		s.byTxHash[key] = &recCopy
	}
	s.all = append(s.all, &recCopy)
	return nil
}

// GetByTxHash retrieves a record by transaction hash. Returns ErrNotFound
// if not exists.
func (s *TransferRecordStore) GetByTxHash(_ context.Context, txHash string) (*domain.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.byTxHash[strings.ToLower(txHash)]
	if !exists {
		return nil, storage.ErrNotFound
	}

	recCopy := *r
	return &recCopy, nil
}

// GetBySender retrieves all records for a sender, newest first.
func (s *TransferRecordStore) GetBySender(_ context.Context, sender string) ([]*domain.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransferRecord
	for _, r := range s.all {
		if strings.EqualFold(r.Sender, sender) {
			recCopy := *r
			result = append(result, &recCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt > result[j].CreatedAt
	})
	return result, nil
}
