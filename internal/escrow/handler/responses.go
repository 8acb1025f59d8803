package handler

import (
	"time"

	"landledger/internal/audit"
	"landledger/internal/escrow"
)

// EscrowResponse is the HTTP representation of an escrow record.
type EscrowResponse struct {
	ID           uint64            `json:"id"`
	ParcelID     string            `json:"parcel_id"`
	Seller       string            `json:"seller"`
	Buyer        string            `json:"buyer"`
	Amount       uint64            `json:"amount"`
	Fee          uint64            `json:"fee"`
	Deposited    uint64            `json:"deposited"`
	Status       string            `json:"status"`
	Approvals    ApprovalsResponse `json:"approvals"`
	DocumentRef  string            `json:"document_ref,omitempty"`
	CancelReason string            `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	Deadline     time.Time         `json:"deadline"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// ApprovalsResponse is the per-party approval portion of the response.
type ApprovalsResponse struct {
	Buyer      bool `json:"buyer"`
	Seller     bool `json:"seller"`
	Government bool `json:"government"`
	Complete   bool `json:"complete"`
}

// FromEscrow converts a domain escrow to an HTTP response.
func FromEscrow(e *escrow.Escrow) *EscrowResponse {
	return &EscrowResponse{
		ID:           uint64(e.ID),
		ParcelID:     string(e.ParcelID),
		Seller:       e.Seller.String(),
		Buyer:        e.Buyer.String(),
		Amount:       e.Amount,
		Fee:          e.Fee,
		Deposited:    e.Deposited,
		Status:       string(e.Status),
		Approvals:    approvalsFrom(e.Approvals),
		DocumentRef:  e.DocumentRef,
		CancelReason: e.CancelReason,
		CreatedAt:    e.CreatedAt,
		Deadline:     e.Deadline,
		CompletedAt:  e.CompletedAt,
	}
}

func approvalsFrom(a escrow.ApprovalSet) ApprovalsResponse {
	return ApprovalsResponse{
		Buyer:      a.Has(escrow.PartyBuyer),
		Seller:     a.Has(escrow.PartySeller),
		Government: a.Has(escrow.PartyGovernment),
		Complete:   a.Complete(),
	}
}

// FromEscrows converts a list of escrows, keeping an empty JSON array when
// the list is empty.
func FromEscrows(escrows []*escrow.Escrow) []*EscrowResponse {
	out := make([]*EscrowResponse, 0, len(escrows))
	for _, e := range escrows {
		out = append(out, FromEscrow(e))
	}
	return out
}

// AuditEntryResponse is one row of an escrow's audit trail.
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
