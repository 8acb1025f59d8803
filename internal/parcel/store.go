package parcel

import (
	"context"

	id "landledger/pkg/domain"
)

// Store persists parcel records. Implementations return
// sentinel.ErrNotFound for missing parcels and sentinel.ErrConflict for
// duplicate registrations or replayed settlement references.
type Store interface {
	Create(ctx context.Context, p *Parcel) error
	Get(ctx context.Context, parcelID id.ParcelID) (*Parcel, error)
	ListByOwner(ctx context.Context, owner id.UserID) ([]*Parcel, error)
	Update(ctx context.Context, p *Parcel) error

	// RecordSettlement marks a settlement reference as consumed for the
	// parcel. A second call with the same reference fails with
	// sentinel.ErrConflict, which is what makes a replayed ownership
	// transfer fail loudly.
	RecordSettlement(ctx context.Context, parcelID id.ParcelID, settlementRef string) error
}
