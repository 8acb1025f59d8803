package parcel

import (
	"context"
	"sync"

	id "landledger/pkg/domain"
	"landledger/pkg/platform/sentinel"
)

// InMemoryStore keeps parcels in a map. It backs development mode and unit
// tests; production uses PostgresStore.
type InMemoryStore struct {
	mu          sync.RWMutex
	parcels     map[id.ParcelID]*Parcel
	settlements map[id.ParcelID]map[string]bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		parcels:     make(map[id.ParcelID]*Parcel),
		settlements: make(map[id.ParcelID]map[string]bool),
	}
}

func (s *InMemoryStore) Create(_ context.Context, p *Parcel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.parcels[p.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *p
	s.parcels[p.ID] = &cp
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, parcelID id.ParcelID) (*Parcel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parcels[parcelID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemoryStore) ListByOwner(_ context.Context, owner id.UserID) ([]*Parcel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Parcel
	for _, p := range s.parcels {
		if p.Owner == owner {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, p *Parcel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.parcels[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *p
	s.parcels[p.ID] = &cp
	return nil
}

func (s *InMemoryStore) RecordSettlement(_ context.Context, parcelID id.ParcelID, settlementRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.parcels[parcelID]; !ok {
		return sentinel.ErrNotFound
	}
	refs := s.settlements[parcelID]
	if refs == nil {
		refs = make(map[string]bool)
		s.settlements[parcelID] = refs
	}
	if refs[settlementRef] {
		return sentinel.ErrConflict
	}
	refs[settlementRef] = true
	return nil
}
