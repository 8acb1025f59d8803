// Package parcel owns the authoritative mapping of parcel identity to owner,
// status, and listing state. Both settlement engines verify preconditions
// against this ledger and commit ownership changes through it; they never
// cache parcel state in their own records.
package parcel

import (
	"errors"
	"time"

	id "landledger/pkg/domain"
)

// Status is the lifecycle state of a parcel.
type Status string

const (
	// StatusActive: parcel is registered and transactable.
	StatusActive Status = "ACTIVE"
	// StatusDisputed: a boundary or ownership dispute is open; the parcel
	// cannot be listed or transferred until resolved.
	StatusDisputed Status = "DISPUTED"
	// StatusTransferred: ownership moved through a settlement; the record
	// remains for audit and re-activates under the new owner.
	StatusTransferred Status = "TRANSFERRED"
	// StatusInactive: retired by the registrar (merged or re-platted).
	StatusInactive Status = "INACTIVE"
)

// IsValid reports whether the status is one of the supported enum values.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusDisputed, StatusTransferred, StatusInactive:
		return true
	}
	return false
}

// Parcel is a single land-registry record. Boundary and document data live in
// the content store; the ledger keeps only opaque content-addressed
// references.
type Parcel struct {
	ID      id.ParcelID `json:"id"`
	Owner   id.UserID   `json:"owner"`
	Status  Status      `json:"status"`
	ForSale bool        `json:"for_sale"`
	// Price is the listed price in the smallest currency unit. Zero when the
	// parcel is not listed.
	Price       uint64    `json:"price"`
	BoundaryRef string    `json:"boundary_ref,omitempty"`
	DocumentRef string    `json:"document_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Transactable reports whether the parcel can participate in a sale or
// inheritance plan.
func (p *Parcel) Transactable() bool {
	return p.Status == StatusActive
}

// Domain sentinel errors. Services wrap these with a code at the boundary so
// callers can route on the specific fact.
var (
	ErrNotForSale    = errors.New("parcel is not listed for sale")
	ErrOwnerMismatch = errors.New("caller is not the parcel owner")
	ErrDisputed      = errors.New("parcel is under dispute")
	ErrNotDisputed   = errors.New("parcel has no open dispute")
	ErrNotActive     = errors.New("parcel is not active")
)
