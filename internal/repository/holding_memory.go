package repository

import (
	"context"
	"sort"
	"sync"

	"MoexPull/internal/domain/models"
	domrepo "MoexPull/internal/domain/repository"
)

// MemoryHoldingStore keeps holdings in process. Used by the memory backend
// and by tests.
type MemoryHoldingStore struct {
	mu     sync.RWMutex
	byUser map[string]map[string]models.Holding
}

func NewMemoryHoldingStore() *MemoryHoldingStore {
	return &MemoryHoldingStore{byUser: make(map[string]map[string]models.Holding)}
}

func (s *MemoryHoldingStore) Init(context.Context) error { return nil }

// List returns the user's holdings ordered by purchase date, then id.
func (s *MemoryHoldingStore) List(_ context.Context, userID string) ([]models.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Holding, 0, len(s.byUser[userID]))
	for _, h := range s.byUser[userID] {
		out = append(out, copyHolding(h))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PurchaseDate.Equal(out[j].PurchaseDate) {
			return out[i].PurchaseDate.Before(out[j].PurchaseDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryHoldingStore) Get(_ context.Context, userID, id string) (*models.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.byUser[userID][id]
	if !ok {
		return nil, domrepo.ErrHoldingNotFound
	}
	c := copyHolding(h)
	return &c, nil
}

func (s *MemoryHoldingStore) Save(_ context.Context, h *models.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byUser[h.UserID]
	if !ok {
		m = make(map[string]models.Holding)
		s.byUser[h.UserID] = m
	}
	m[h.ID] = copyHolding(*h)
	return nil
}

func (s *MemoryHoldingStore) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUser[userID][id]; !ok {
		return domrepo.ErrHoldingNotFound
	}
	delete(s.byUser[userID], id)
	return nil
}

func (s *MemoryHoldingStore) Health(context.Context) error { return nil }

func (s *MemoryHoldingStore) Close() error { return nil }

// copyHolding detaches the optional sale fields from the caller's memory.
func copyHolding(h models.Holding) models.Holding {
	if h.SalePrice != nil {
		v := *h.SalePrice
		h.SalePrice = &v
	}
	if h.SaleDate != nil {
		v := *h.SaleDate
		h.SaleDate = &v
	}
	return h
}

var _ domrepo.HoldingStore = (*MemoryHoldingStore)(nil)
