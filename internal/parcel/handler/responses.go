package handler

import (
	"time"

	"landledger/internal/audit"
	"landledger/internal/parcel"
)

// ParcelResponse is the HTTP representation of a parcel record.
type ParcelResponse struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	Status      string    `json:"status"`
	ForSale     bool      `json:"for_sale"`
	Price       uint64    `json:"price"`
	BoundaryRef string    `json:"boundary_ref,omitempty"`
	DocumentRef string    `json:"document_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FromParcel converts a domain parcel to an HTTP response.
func FromParcel(p *parcel.Parcel) *ParcelResponse {
	return &ParcelResponse{
		ID:          string(p.ID),
		Owner:       p.Owner.String(),
		Status:      string(p.Status),
		ForSale:     p.ForSale,
		Price:       p.Price,
		BoundaryRef: p.BoundaryRef,
		DocumentRef: p.DocumentRef,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// FromParcels converts a parcel list, keeping an empty JSON array when empty.
func FromParcels(parcels []*parcel.Parcel) []*ParcelResponse {
	out := make([]*ParcelResponse, 0, len(parcels))
	for _, p := range parcels {
		out = append(out, FromParcel(p))
	}
	return out
}

// AuditEntryResponse is one row of a parcel's audit trail.
type AuditEntryResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Role      string    `json:"role,omitempty"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
}

// FromAuditEvents converts an audit trail, keeping an empty JSON array when
// empty.
func FromAuditEvents(events []audit.Event) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(events))
	for _, e := range events {
		out = append(out, AuditEntryResponse{
			Timestamp: e.Timestamp,
			Actor:     e.Actor.String(),
			Role:      e.Role,
			Action:    e.Action,
			Detail:    e.Detail,
		})
	}
	return out
}
