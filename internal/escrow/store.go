package escrow

import (
	"context"

	id "landledger/pkg/domain"
)

// Store persists escrow records. Create assigns the next handle; handles are
// monotonically increasing and never reused. Implementations return
// sentinel.ErrNotFound for missing handles.
type Store interface {
	Create(ctx context.Context, e *Escrow) (id.EscrowID, error)
	Get(ctx context.Context, escrowID id.EscrowID) (*Escrow, error)
	Update(ctx context.Context, e *Escrow) error
	ListByParty(ctx context.Context, party id.UserID) ([]*Escrow, error)
}
