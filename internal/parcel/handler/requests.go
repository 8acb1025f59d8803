package handler

import (
	"strings"

	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
)

// RegisterParcelRequest is the HTTP request body for POST /parcels.
type RegisterParcelRequest struct {
	ParcelID    string `json:"parcel_id"`
	Owner       string `json:"owner"`
	BoundaryRef string `json:"boundary_ref"`
	DocumentRef string `json:"document_ref"`

	parsedParcelID id.ParcelID
	parsedOwner    id.UserID
}

// Validate validates and parses the request.
func (r *RegisterParcelRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	parcelID, err := id.ParseParcelID(r.ParcelID)
	if err != nil {
		return err
	}
	r.parsedParcelID = parcelID

	owner, err := id.ParseUserID(strings.TrimSpace(r.Owner))
	if err != nil {
		return err
	}
	r.parsedOwner = owner

	if len(r.BoundaryRef) > 256 || len(r.DocumentRef) > 256 {
		return dErrors.New(dErrors.CodeValidation, "content references must be at most 256 characters")
	}
	return nil
}

// ParsedParcelID returns the validated parcel identifier.
func (r *RegisterParcelRequest) ParsedParcelID() id.ParcelID { return r.parsedParcelID }

// ParsedOwner returns the validated owner identity.
func (r *RegisterParcelRequest) ParsedOwner() id.UserID { return r.parsedOwner }

// ListParcelRequest is the HTTP request body for POST /parcels/{parcelID}/list.
type ListParcelRequest struct {
	Price uint64 `json:"price"`
}

// Validate validates the request.
func (r *ListParcelRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Price == 0 {
		return dErrors.New(dErrors.CodeValidation, "price must be positive")
	}
	return nil
}

// FlagDisputeRequest is the HTTP request body for POST /parcels/{parcelID}/dispute.
type FlagDisputeRequest struct {
	Reason string `json:"reason"`
}

// Validate validates the request.
func (r *FlagDisputeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	if len(r.Reason) > 512 {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 512 characters")
	}
	return nil
}
