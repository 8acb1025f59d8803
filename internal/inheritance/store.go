package inheritance

import (
	"context"

	id "landledger/pkg/domain"
)

// Store persists inheritance plans. Create assigns the next handle; handles
// are monotonically increasing and never reused. Implementations return
// sentinel.ErrNotFound for missing handles.
type Store interface {
	Create(ctx context.Context, p *Plan) (id.PlanID, error)
	Get(ctx context.Context, planID id.PlanID) (*Plan, error)
	Update(ctx context.Context, p *Plan) error
	ListByOwner(ctx context.Context, owner id.UserID) ([]*Plan, error)
	// OwnerHasPlanInForce reports whether the owner holds any plan in a
	// non-terminal state (ACTIVE, TRIGGERED, or EXECUTING).
	OwnerHasPlanInForce(ctx context.Context, owner id.UserID) (bool, error)
	// ParcelInPlanInForce reports whether the parcel belongs to any plan in
	// a non-terminal state.
	ParcelInPlanInForce(ctx context.Context, parcelID id.ParcelID) (bool, error)
}
