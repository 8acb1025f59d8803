package audit

import (
	"time"

	id "landledger/pkg/domain"
)

// Event is emitted from domain logic for every state transition. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     id.UserID `json:"actor"`
	Role      string    `json:"role,omitempty"`
	// Action names the transition, e.g. "escrow_funded", "plan_triggered".
	Action string `json:"action"`
	// RecordKind is "parcel", "escrow", or "plan".
	RecordKind string `json:"record_kind"`
	RecordID   string `json:"record_id"`
	Detail     string `json:"detail,omitempty"`
	Device     string `json:"device,omitempty"`
}

// Action names for ledger and engine transitions.
const (
	ActionParcelRegistered  = "parcel_registered"
	ActionParcelListed      = "parcel_listed"
	ActionParcelUnlisted    = "parcel_unlisted"
	ActionParcelTransferred = "parcel_transferred"
	ActionDisputeFlagged    = "dispute_flagged"
	ActionDisputeResolved   = "dispute_resolved"

	ActionEscrowCreated      = "escrow_created"
	ActionEscrowFunded       = "escrow_funded"
	ActionSellerApproved     = "seller_approved"
	ActionGovernmentApproved = "government_approved"
	ActionEscrowSettled      = "escrow_settled"
	ActionEscrowRefunded     = "escrow_refunded"
	ActionEscrowCancelled    = "escrow_cancelled"

	ActionPlanCreated    = "plan_created"
	ActionHeirAdded      = "heir_added"
	ActionHeirRemoved    = "heir_removed"
	ActionMilestoneAdded = "milestone_added"
	ActionPlanTriggered  = "plan_triggered"
	ActionShareClaimed   = "share_claimed"
	ActionPlanCompleted  = "plan_completed"
	ActionPlanCancelled  = "plan_cancelled"
)
