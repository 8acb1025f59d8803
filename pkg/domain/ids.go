// Package domain defines typed identifiers shared across the ledger and both
// settlement engines. Typed IDs prevent cross-type assignment at compile time:
// an heir identity can never be passed where an escrow handle is expected.
package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "landledger/pkg/domain-errors"
)

// UserID identifies an authenticated caller (owner, buyer, heir, official).
// Identity resolution happens upstream; the core only carries the reference.
type UserID uuid.UUID

// AccountID identifies a fund account in the payment collaborator.
type AccountID uuid.UUID

// ParcelID is the globally unique cadastral identifier of a land parcel.
// It is assigned by the registrar and never reused.
type ParcelID string

// EscrowID is the monotonically increasing handle of an escrow record.
type EscrowID uint64

// PlanID is the monotonically increasing handle of an inheritance plan.
type PlanID uint64

var parcelIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{2,63}$`)

func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+": "+raw)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be the nil UUID")
	}
	return parsed, nil
}

// ParseUserID validates and converts a string into a UserID.
func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID(raw, "user id")
	if err != nil {
		return UserID(uuid.Nil), err
	}
	return UserID(parsed), nil
}

// ParseAccountID validates and converts a string into an AccountID.
func ParseAccountID(raw string) (AccountID, error) {
	parsed, err := parseUUID(raw, "account id")
	if err != nil {
		return AccountID(uuid.Nil), err
	}
	return AccountID(parsed), nil
}

// ParseParcelID validates a cadastral identifier. Parcel IDs come from the
// registrar and must be stable strings: alphanumeric with dots, dashes and
// underscores, 3-64 characters.
func ParseParcelID(raw string) (ParcelID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "parcel id must not be empty")
	}
	if !parcelIDPattern.MatchString(trimmed) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid parcel id: "+raw)
	}
	return ParcelID(trimmed), nil
}

func (u UserID) IsNil() bool    { return uuid.UUID(u) == uuid.Nil }
func (u UserID) String() string { return uuid.UUID(u).String() }

// MarshalText renders the canonical UUID form so user IDs serialize as
// strings in JSON bodies and stored documents.
func (u UserID) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

func (u *UserID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*u = UserID(parsed)
	return nil
}

func (a AccountID) IsNil() bool    { return uuid.UUID(a) == uuid.Nil }
func (a AccountID) String() string { return uuid.UUID(a).String() }

func (a AccountID) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *AccountID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*a = AccountID(parsed)
	return nil
}

func (p ParcelID) String() string { return string(p) }

// AccountFor derives the fund account for a user. The payment collaborator
// keys accounts by the same UUID as the identity subsystem.
func AccountFor(u UserID) AccountID { return AccountID(u) }
