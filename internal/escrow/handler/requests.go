package handler

import (
	"strings"

	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
)

// CreateEscrowRequest is the HTTP request body for POST /escrows.
type CreateEscrowRequest struct {
	ParcelID    string `json:"parcel_id"`
	Seller      string `json:"seller"`
	Amount      uint64 `json:"amount"`
	DocumentRef string `json:"document_ref"`

	parsedParcelID id.ParcelID
	parsedSeller   id.UserID
}

// Validate validates and parses the request.
func (r *CreateEscrowRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	parcelID, err := id.ParseParcelID(r.ParcelID)
	if err != nil {
		return err
	}
	r.parsedParcelID = parcelID

	seller, err := id.ParseUserID(strings.TrimSpace(r.Seller))
	if err != nil {
		return err
	}
	r.parsedSeller = seller

	if r.Amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if len(r.DocumentRef) > 256 {
		return dErrors.New(dErrors.CodeValidation, "document_ref must be at most 256 characters")
	}
	return nil
}

// ParsedParcelID returns the validated parcel identifier.
func (r *CreateEscrowRequest) ParsedParcelID() id.ParcelID { return r.parsedParcelID }

// ParsedSeller returns the validated seller identity.
func (r *CreateEscrowRequest) ParsedSeller() id.UserID { return r.parsedSeller }

// FundEscrowRequest is the HTTP request body for POST /escrows/{escrowID}/fund.
type FundEscrowRequest struct {
	Deposited uint64 `json:"deposited"`
}

// Validate validates the request.
func (r *FundEscrowRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Deposited == 0 {
		return dErrors.New(dErrors.CodeValidation, "deposited must be positive")
	}
	return nil
}

// CancelEscrowRequest is the HTTP request body for POST /escrows/{escrowID}/cancel.
type CancelEscrowRequest struct {
	Reason string `json:"reason"`
}

// Validate validates the request.
func (r *CancelEscrowRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if len(r.Reason) > 512 {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 512 characters")
	}
	return nil
}
