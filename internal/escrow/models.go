// Package escrow orchestrates a single parcel transfer for a fixed amount:
// the buyer deposits funds, three parties approve independently, and money
// and title move as one atomic settlement.
package escrow

import (
	"errors"
	"fmt"
	"time"

	id "landledger/pkg/domain"
)

// Status is the escrow lifecycle state.
type Status string

const (
	// StatusPending: created, awaiting buyer deposit.
	StatusPending Status = "PENDING"
	// StatusFunded: deposit held, awaiting approvals.
	StatusFunded Status = "FUNDED"
	// StatusVerified: government approval recorded.
	StatusVerified Status = "VERIFIED"
	// StatusCompleted: settlement executed; terminal.
	StatusCompleted Status = "COMPLETED"
	// StatusRefunded: deposit returned to buyer; terminal.
	StatusRefunded Status = "REFUNDED"
	// StatusCancelled: withdrawn before any funds moved; terminal.
	StatusCancelled Status = "CANCELLED"
	// StatusFailed: non-recoverable error sink; terminal.
	StatusFailed Status = "FAILED"
)

// IsValid reports whether the status is one of the supported enum values.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusFunded, StatusVerified, StatusCompleted,
		StatusRefunded, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further mutation is permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRefunded, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// Party tags one of the three independent approvals.
type Party string

const (
	PartyBuyer      Party = "buyer"
	PartySeller     Party = "seller"
	PartyGovernment Party = "government"
)

// ApprovalSet is the tagged set of recorded approvals. Representing the three
// sign-offs as one set keeps the settlement trigger condition a pure,
// independently testable function.
type ApprovalSet uint8

const (
	approvalBuyer ApprovalSet = 1 << iota
	approvalSeller
	approvalGovernment
)

func flagFor(p Party) ApprovalSet {
	switch p {
	case PartyBuyer:
		return approvalBuyer
	case PartySeller:
		return approvalSeller
	case PartyGovernment:
		return approvalGovernment
	}
	return 0
}

// Has reports whether the party has approved.
func (a ApprovalSet) Has(p Party) bool { return a&flagFor(p) != 0 }

// Grant returns the set with the party's approval recorded.
func (a ApprovalSet) Grant(p Party) ApprovalSet { return a | flagFor(p) }

// Complete reports whether buyer, seller, and government have all approved.
func (a ApprovalSet) Complete() bool {
	return a.Has(PartyBuyer) && a.Has(PartySeller) && a.Has(PartyGovernment)
}

// Escrow is a held-funds record mediating one parcel sale. Parcel state is
// referenced by id and always re-fetched from the ledger; it is never cached
// here.
type Escrow struct {
	ID       id.EscrowID `json:"id"`
	ParcelID id.ParcelID `json:"parcel_id"`
	Seller   id.UserID   `json:"seller"`
	Buyer    id.UserID   `json:"buyer"`
	// Amount is the sale price in the smallest currency unit.
	Amount uint64 `json:"amount"`
	// Fee is the platform fee, fixed at creation from the configured basis
	// points.
	Fee uint64 `json:"fee"`
	// Deposited is what the buyer actually paid in; at least Amount+Fee.
	Deposited   uint64      `json:"deposited"`
	Status      Status      `json:"status"`
	Approvals   ApprovalSet `json:"-"`
	DocumentRef string      `json:"document_ref,omitempty"`
	// CancelReason is recorded when the escrow is cancelled.
	CancelReason string     `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	Deadline     time.Time  `json:"deadline"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// SettlementRef is the idempotency reference handed to the parcel ledger.
func (e *Escrow) SettlementRef() string {
	return fmt.Sprintf("escrow-%d", e.ID)
}

// Domain sentinel errors. The service wraps these with a code at the
// boundary; tests and callers route on the specific fact via errors.Is.
var (
	ErrNotForSale        = errors.New("parcel is not for sale")
	ErrOwnerMismatch     = errors.New("seller does not own the parcel")
	ErrAmountTooLow      = errors.New("amount is below the listed price")
	ErrNotBuyer          = errors.New("caller is not the escrow buyer")
	ErrNotSeller         = errors.New("caller is not the escrow seller")
	ErrWrongState        = errors.New("escrow is in the wrong state")
	ErrInsufficientFunds = errors.New("deposit below amount plus fee")
	ErrDeadlinePassed    = errors.New("escrow deadline has passed")
	ErrAlreadyApproved   = errors.New("party has already approved")
	ErrRefundNotAllowed  = errors.New("caller may not refund this escrow")
)
