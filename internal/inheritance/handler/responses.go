package handler

import (
	"time"

	"landledger/internal/audit"
	"landledger/internal/inheritance"
)

// PlanResponse is the HTTP representation of an inheritance plan.
type PlanResponse struct {
	ID               uint64              `json:"id"`
	Owner            string              `json:"owner"`
	ParcelIDs        []string            `json:"parcel_ids"`
	Status           string              `json:"status"`
	UseAgeMilestones bool                `json:"use_age_milestones"`
	Heirs            []HeirResponse      `json:"heirs"`
	Milestones       []MilestoneResponse `json:"milestones"`
	WillRef          string              `json:"will_ref,omitempty"`
	DeathCertRef     string              `json:"death_cert_ref,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	TriggeredAt      *time.Time          `json:"triggered_at,omitempty"`
	CompletedAt      *time.Time          `json:"completed_at,omitempty"`
}

// HeirResponse is the heir portion of a plan response.
type HeirResponse struct {
	Identity     string     `json:"identity"`
	Percentage   uint8      `json:"percentage"`
	ReleaseAge   uint8      `json:"release_age"`
	BirthDate    *time.Time `json:"birth_date,omitempty"`
	Claimed      bool       `json:"claimed"`
	ClaimedAt    *time.Time `json:"claimed_at,omitempty"`
	ClaimedShare uint8      `json:"claimed_share"`
}

// MilestoneResponse is the milestone portion of a plan response.
type MilestoneResponse struct {
	Age        uint8 `json:"age"`
	Percentage uint8 `json:"percentage"`
}

// ClaimResponse is the HTTP response for POST /plans/{planID}/claim.
type ClaimResponse struct {
	ClaimedPercent uint8         `json:"claimed_percent"`
	Plan           *PlanResponse `json:"plan"`
}

// EligibilityResponse is the HTTP response for GET /plans/{planID}/eligibility.
type EligibilityResponse struct {
	ClaimablePercent uint8 `json:"claimable_percent"`
	Eligible         bool  `json:"eligible"`
}

// FromPlan converts a domain plan to an HTTP response.
func FromPlan(p *inheritance.Plan) *PlanResponse {
	parcels := make([]string, len(p.ParcelIDs))
	for i, parcelID := range p.ParcelIDs {
		parcels[i] = string(parcelID)
	}
	return &PlanResponse{
		ID:               uint64(p.ID),
		Owner:            p.Owner.String(),
		ParcelIDs:        parcels,
		Status:           string(p.Status),
		UseAgeMilestones: p.UseAgeMilestones,
		Heirs:            FromHeirs(p.Heirs),
		Milestones:       FromMilestones(p.Milestones),
		WillRef:          p.WillRef,
		DeathCertRef:     p.DeathCertRef,
		CreatedAt:        p.CreatedAt,
		TriggeredAt:      p.TriggeredAt,
		CompletedAt:      p.CompletedAt,
	}
}

// FromHeirs converts a heir list, keeping an empty JSON array when empty.
func FromHeirs(heirs []inheritance.Heir) []HeirResponse {
	out := make([]HeirResponse, 0, len(heirs))
	for _, h := range heirs {
		out = append(out, HeirResponse{
			Identity:     h.Identity.String(),
			Percentage:   h.Percentage,
			ReleaseAge:   h.ReleaseAge,
			BirthDate:    h.BirthDate,
			Claimed:      h.Claimed,
			ClaimedAt:    h.ClaimedAt,
			ClaimedShare: h.ClaimedShare,
		})
	}
	return out
}

// FromMilestones converts a milestone list, keeping an empty JSON array when
// empty.
func FromMilestones(milestones []inheritance.Milestone) []MilestoneResponse {
	out := make([]MilestoneResponse, 0, len(milestones))
	for _, m := range milestones {
		out = append(out, MilestoneResponse{Age: m.Age, Percentage: m.Percentage})
	}
	return out
}

// FromPlans converts a plan list, keeping an empty JSON array when empty.
func FromPlans(plans []*inheritance.Plan) []*PlanResponse {
	out := make([]*PlanResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, FromPlan(p))
	}
	return out
}

// AuditEntryResponse is one row of a plan's audit trail.
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
