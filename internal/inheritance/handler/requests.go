package handler

import (
	"strings"
	"time"

	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
)

// CreatePlanRequest is the HTTP request body for POST /plans.
type CreatePlanRequest struct {
	ParcelIDs        []string `json:"parcel_ids"`
	UseAgeMilestones bool     `json:"use_age_milestones"`
	WillRef          string   `json:"will_ref"`

	parsedParcelIDs []id.ParcelID
}

// Validate validates and parses the request.
func (r *CreatePlanRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.ParcelIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "parcel_ids is required")
	}
	if len(r.ParcelIDs) > 100 {
		return dErrors.New(dErrors.CodeValidation, "parcel_ids must hold at most 100 entries")
	}

	seen := make(map[id.ParcelID]struct{}, len(r.ParcelIDs))
	r.parsedParcelIDs = make([]id.ParcelID, 0, len(r.ParcelIDs))
	for _, raw := range r.ParcelIDs {
		parcelID, err := id.ParseParcelID(raw)
		if err != nil {
			return err
		}
		if _, dup := seen[parcelID]; dup {
			return dErrors.New(dErrors.CodeValidation, "duplicate parcel id: "+raw)
		}
		seen[parcelID] = struct{}{}
		r.parsedParcelIDs = append(r.parsedParcelIDs, parcelID)
	}

	if len(r.WillRef) > 256 {
		return dErrors.New(dErrors.CodeValidation, "will_ref must be at most 256 characters")
	}
	return nil
}

// ParsedParcelIDs returns the validated parcel identifiers.
func (r *CreatePlanRequest) ParsedParcelIDs() []id.ParcelID { return r.parsedParcelIDs }

// AddHeirRequest is the HTTP request body for POST /plans/{planID}/heirs.
type AddHeirRequest struct {
	Identity   string `json:"identity"`
	Percentage uint8  `json:"percentage"`
	ReleaseAge uint8  `json:"release_age"`
	// BirthDate is RFC 3339; required when release_age > 0.
	BirthDate string `json:"birth_date,omitempty"`

	parsedIdentity  id.UserID
	parsedBirthDate *time.Time
}

// Validate validates and parses the request.
func (r *AddHeirRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	identity, err := id.ParseUserID(strings.TrimSpace(r.Identity))
	if err != nil {
		return err
	}
	r.parsedIdentity = identity

	if r.Percentage == 0 || r.Percentage > 100 {
		return dErrors.New(dErrors.CodeValidation, "percentage must be between 1 and 100")
	}
	if r.BirthDate != "" {
		t, err := time.Parse(time.RFC3339, r.BirthDate)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "birth_date must be RFC 3339")
		}
		r.parsedBirthDate = &t
	}
	return nil
}

// ParsedIdentity returns the validated heir identity.
func (r *AddHeirRequest) ParsedIdentity() id.UserID { return r.parsedIdentity }

// ParsedBirthDate returns the validated birth date, or nil.
func (r *AddHeirRequest) ParsedBirthDate() *time.Time { return r.parsedBirthDate }

// AddMilestoneRequest is the HTTP request body for POST /plans/{planID}/milestones.
type AddMilestoneRequest struct {
	Age        uint8 `json:"age"`
	Percentage uint8 `json:"percentage"`
}

// Validate validates the request.
func (r *AddMilestoneRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Percentage == 0 || r.Percentage > 100 {
		return dErrors.New(dErrors.CodeValidation, "percentage must be between 1 and 100")
	}
	return nil
}

// RemoveHeirRequest is the HTTP request body for DELETE /plans/{planID}/heirs.
type RemoveHeirRequest struct {
	Index int `json:"index"`
}

// Validate validates the request.
func (r *RemoveHeirRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Index < 0 {
		return dErrors.New(dErrors.CodeValidation, "index must not be negative")
	}
	return nil
}

// TriggerPlanRequest is the HTTP request body for POST /plans/{planID}/trigger.
type TriggerPlanRequest struct {
	DeathCertRef string `json:"death_cert_ref"`
}

// Validate validates the request.
func (r *TriggerPlanRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.DeathCertRef = strings.TrimSpace(r.DeathCertRef)
	if r.DeathCertRef == "" {
		return dErrors.New(dErrors.CodeValidation, "death_cert_ref is required")
	}
	if len(r.DeathCertRef) > 256 {
		return dErrors.New(dErrors.CodeValidation, "death_cert_ref must be at most 256 characters")
	}
	return nil
}
