package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"evm-token-engine/internal/domain"
	"evm-token-engine/internal/storage"
)

// FeeObservationStore is an in-memory implementation of
// storage.FeeObservationStore.
type FeeObservationStore struct {
	mu         sync.RWMutex
	byContract map[string][]*domain.FeeObservation
}

// NewFeeObservationStore creates a new in-memory fee observation store.
func NewFeeObservationStore() *FeeObservationStore {
	return &FeeObservationStore{
		byContract: make(map[string][]*domain.FeeObservation),
	}
}

var _ storage.FeeObservationStore = (*FeeObservationStore)(nil)

// InsertBulk adds multiple observations.
func (s *FeeObservationStore) InsertBulk(_ context.Context, obs []*domain.FeeObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range obs {
		if o == nil || o.Contract == "" {
			return storage.ErrInvalidInput
		}
		key := strings.ToLower(o.Contract)
		obCopy := *o
		s.byContract[key] = append(s.byContract[key], &obCopy)
	}
	return nil
}

// GetByContract retrieves all observations for a contract, ordered by
// observation time ASC.
func (s *FeeObservationStore) GetByContract(_ context.Context, contract string) ([]*domain.FeeObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.copySorted(s.byContract[strings.ToLower(contract)], 0, 1<<62), nil
}

// GetByTimeRange retrieves observations for a contract within [start, end]
// ms (inclusive).
func (s *FeeObservationStore) GetByTimeRange(_ context.Context, contract string, start, end int64) ([]*domain.FeeObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.copySorted(s.byContract[strings.ToLower(contract)], start, end), nil
}

func (s *FeeObservationStore) copySorted(obs []*domain.FeeObservation, start, end int64) []*domain.FeeObservation {
	var result []*domain.FeeObservation
	for _, o := range obs {
		if o.ObservedAt < start || o.ObservedAt > end {
			continue
		}
		obCopy := *o
		result = append(result, &obCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ObservedAt < result[j].ObservedAt
	})
	return result
}
