// Package inheritance orchestrates the distribution of a deceased owner's
// parcels across a fixed set of heirs, optionally staggered by age
// milestones. A plan is dormant while the owner is alive, becomes claimable
// when a government authority triggers it with a death certificate, and
// completes when every heir has claimed.
package inheritance

import (
	"errors"
	"fmt"
	"time"

	id "landledger/pkg/domain"
	"landledger/pkg/fixedpoint"
)

// YearLength converts an age in years to a duration. 8766 hours is 365.25
// days, which keeps the age computation stable across leap years.
const YearLength = 8766 * time.Hour

// Status is the plan lifecycle state.
type Status string

const (
	// StatusActive: dormant, owner may still edit heirs and milestones.
	StatusActive Status = "ACTIVE"
	// StatusTriggered: death certified, claim window open, no claims yet.
	StatusTriggered Status = "TRIGGERED"
	// StatusExecuting: at least one heir has claimed.
	StatusExecuting Status = "EXECUTING"
	// StatusCompleted: every heir has claimed; terminal.
	StatusCompleted Status = "COMPLETED"
	// StatusCancelled: withdrawn by the owner before triggering; terminal.
	StatusCancelled Status = "CANCELLED"
)

// IsValid reports whether the status is one of the supported enum values.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusTriggered, StatusExecuting, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further mutation is permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Claimable reports whether heirs may claim in this state.
func (s Status) Claimable() bool {
	return s == StatusTriggered || s == StatusExecuting
}

// Heir is one beneficiary of a plan. Once claimed, the record is immutable.
type Heir struct {
	Identity id.UserID `json:"identity"`
	// Percentage is the heir's share of the estate, 1-100.
	Percentage uint8 `json:"percentage"`
	// ReleaseAge gates the share behind age milestones; 0 releases
	// immediately.
	ReleaseAge uint8      `json:"release_age"`
	BirthDate  *time.Time `json:"birth_date,omitempty"`
	Claimed    bool       `json:"claimed"`
	ClaimedAt  *time.Time `json:"claimed_at,omitempty"`
	// ClaimedShare is the percentage actually claimed, which may be below
	// Percentage when milestones have not all vested.
	ClaimedShare uint8 `json:"claimed_share"`
}

// Milestone releases an additional percentage of each age-gated heir's share
// at an age threshold. Milestone percentages are cumulative: an heir whose
// current age meets several thresholds vests the sum of their percentages.
type Milestone struct {
	Age        uint8 `json:"age"`
	Percentage uint8 `json:"percentage"`
}

// Plan is an inheritance declaration over a set of parcels. Parcel state is
// referenced by id and always re-fetched from the ledger; it is never cached
// here.
type Plan struct {
	ID               id.PlanID     `json:"id"`
	Owner            id.UserID     `json:"owner"`
	ParcelIDs        []id.ParcelID `json:"parcel_ids"`
	Status           Status        `json:"status"`
	UseAgeMilestones bool          `json:"use_age_milestones"`
	Heirs            []Heir        `json:"heirs"`
	Milestones       []Milestone   `json:"milestones"`
	WillRef          string        `json:"will_ref,omitempty"`
	DeathCertRef     string        `json:"death_cert_ref,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	TriggeredAt      *time.Time    `json:"triggered_at,omitempty"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
}

// HeirPercentageSum returns the running sum of heir shares.
func (p *Plan) HeirPercentageSum() uint32 {
	var sum uint32
	for _, h := range p.Heirs {
		sum += uint32(h.Percentage)
	}
	return sum
}

// MilestonePercentageSum returns the running sum of milestone releases.
func (p *Plan) MilestonePercentageSum() uint32 {
	var sum uint32
	for _, m := range p.Milestones {
		sum += uint32(m.Percentage)
	}
	return sum
}

// HeirIndex returns the position of the heir with the given identity, or -1.
func (p *Plan) HeirIndex(identity id.UserID) int {
	for i, h := range p.Heirs {
		if h.Identity == identity {
			return i
		}
	}
	return -1
}

// AllClaimed reports whether every heir has claimed.
func (p *Plan) AllClaimed() bool {
	for _, h := range p.Heirs {
		if !h.Claimed {
			return false
		}
	}
	return len(p.Heirs) > 0
}

// DistributionRef is the idempotency reference handed to the parcel ledger
// when the plan completes.
func (p *Plan) DistributionRef() string {
	return fmt.Sprintf("plan-%d", p.ID)
}

// AgeAt returns the heir's age in whole years at the given instant, or 0
// when no birth date is recorded.
func (h Heir) AgeAt(now time.Time) uint8 {
	if h.BirthDate == nil || now.Before(*h.BirthDate) {
		return 0
	}
	years := now.Sub(*h.BirthDate) / YearLength
	if years > 255 {
		return 255
	}
	return uint8(years)
}

// ClaimablePercent computes the share the heir may claim at the given
// instant. Without age gating the full share vests immediately; otherwise
// the cumulative percentage of all milestones the heir's age has met scales
// the share, truncating.
func (p *Plan) ClaimablePercent(h Heir, now time.Time) uint8 {
	if !p.UseAgeMilestones || h.ReleaseAge == 0 {
		return h.Percentage
	}
	age := h.AgeAt(now)
	var vested uint32
	for _, m := range p.Milestones {
		if m.Age <= age {
			vested += uint32(m.Percentage)
		}
	}
	if vested > fixedpoint.PercentDenominator {
		vested = fixedpoint.PercentDenominator
	}
	return fixedpoint.ScalePercent(h.Percentage, uint8(vested))
}

// Domain sentinel errors. The service wraps these with a code at the
// boundary; tests and callers route on the specific fact via errors.Is.
var (
	ErrPlanExists           = errors.New("owner already has a plan in force")
	ErrParcelInPlan         = errors.New("parcel already belongs to another plan")
	ErrParcelNotHeld        = errors.New("plan parcel is no longer held by the owner")
	ErrNotPlanOwner         = errors.New("caller does not own the plan")
	ErrWrongState           = errors.New("plan is in the wrong state")
	ErrPercentageExceeded   = errors.New("percentages would exceed 100")
	ErrIncompleteAllocation = errors.New("heir percentages do not sum to 100")
	ErrBirthDateRequired    = errors.New("release age requires a birth date")
	ErrNotHeir              = errors.New("caller is not a registered heir")
	ErrAlreadyClaimed       = errors.New("heir has already claimed")
	ErrClaimExpired         = errors.New("claim window has closed")
	ErrNotEligibleYet       = errors.New("no share has vested at the current age")
	ErrHeirIndexOutOfRange  = errors.New("heir index out of range")
)
