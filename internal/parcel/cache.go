package parcel

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	platformredis "landledger/internal/platform/redis"
	id "landledger/pkg/domain"
)

// CachedStore is a read-through cache over another Store. Every mutation
// writes through and invalidates, so reads only ever observe committed state;
// the TTL is a backstop, not the consistency mechanism. The engines still
// re-fetch parcels on every precondition check rather than holding them.
type CachedStore struct {
	inner  Store
	client *platformredis.Client
	ttl    time.Duration
}

func NewCachedStore(inner Store, client *platformredis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{inner: inner, client: client, ttl: ttl}
}

func cacheKey(parcelID id.ParcelID) string {
	return "parcel:" + string(parcelID)
}

func (s *CachedStore) Get(ctx context.Context, parcelID id.ParcelID) (*Parcel, error) {
	raw, err := s.client.Client.Get(ctx, cacheKey(parcelID)).Bytes()
	if err == nil {
		var p Parcel
		if unmarshalErr := json.Unmarshal(raw, &p); unmarshalErr == nil {
			return &p, nil
		}
		// Corrupt cache entry: fall through to the store and rewrite.
	} else if err != redis.Nil {
		// Redis being down must not take reads down with it.
		return s.inner.Get(ctx, parcelID)
	}

	p, err := s.inner.Get(ctx, parcelID)
	if err != nil {
		return nil, err
	}
	if encoded, marshalErr := json.Marshal(p); marshalErr == nil {
		s.client.Client.Set(ctx, cacheKey(parcelID), encoded, s.ttl)
	}
	return p, nil
}

func (s *CachedStore) Create(ctx context.Context, p *Parcel) error {
	if err := s.inner.Create(ctx, p); err != nil {
		return err
	}
	s.client.Client.Del(ctx, cacheKey(p.ID))
	return nil
}

func (s *CachedStore) Update(ctx context.Context, p *Parcel) error {
	if err := s.inner.Update(ctx, p); err != nil {
		return err
	}
	s.client.Client.Del(ctx, cacheKey(p.ID))
	return nil
}

func (s *CachedStore) ListByOwner(ctx context.Context, owner id.UserID) ([]*Parcel, error) {
	return s.inner.ListByOwner(ctx, owner)
}

func (s *CachedStore) RecordSettlement(ctx context.Context, parcelID id.ParcelID, settlementRef string) error {
	return s.inner.RecordSettlement(ctx, parcelID, settlementRef)
}
