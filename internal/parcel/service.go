package parcel

import (
	"context"
	"errors"
	"log/slog"

	"landledger/internal/audit"
	"landledger/internal/platform/locks"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/requestcontext"
)

// Ledger is the contract the settlement engines consume. Engines re-fetch
// parcel state through it on every precondition check and commit ownership
// changes through it during settlement.
type Ledger interface {
	GetParcel(ctx context.Context, parcelID id.ParcelID) (*Parcel, error)
	// TransferOwnership moves the parcel from its expected current holder to
	// the new owner and clears the listing. The transfer fails with
	// CodeInvariantViolation when the parcel is no longer held by from, so a
	// settlement agreed against a stale owner can never move the title.
	// settlementRef identifies the settlement; a replay of the same ref fails
	// loudly with CodeConflict.
	TransferOwnership(ctx context.Context, parcelID id.ParcelID, from, to id.UserID, amount uint64, settlementRef string) error
	// MarkDistributed retires a decedent's parcel record once an
	// inheritance plan finishes distributing it; fractional heir ownership
	// is bookkept off-core.
	MarkDistributed(ctx context.Context, parcelID id.ParcelID, settlementRef string) error
}

// AuditPublisher records ledger transitions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service enforces the parcel ledger's invariants: a DISPUTED parcel cannot
// be listed or transferred, and every mutation runs under the parcel's lock.
type Service struct {
	store   Store
	locks   *locks.Keyed
	logger  *slog.Logger
	auditor AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditor = publisher }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		locks:  locks.NewKeyed(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func lockKey(parcelID id.ParcelID) string { return "parcel:" + string(parcelID) }

// Register creates a parcel record. Registrar role is enforced at the route;
// the service validates the record itself.
func (s *Service) Register(ctx context.Context, registrar id.UserID, parcelID id.ParcelID, owner id.UserID, boundaryRef, documentRef string) (*Parcel, error) {
	if owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "parcel owner is required")
	}
	now := requestcontext.Now(ctx)
	p := &Parcel{
		ID:          parcelID,
		Owner:       owner,
		Status:      StatusActive,
		BoundaryRef: boundaryRef,
		DocumentRef: documentRef,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "parcel %s already registered", parcelID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register parcel")
	}
	s.emit(ctx, registrar, audit.ActionParcelRegistered, p.ID, "owner "+owner.String())
	return p, nil
}

// GetParcel returns the current committed state of a parcel.
func (s *Service) GetParcel(ctx context.Context, parcelID id.ParcelID) (*Parcel, error) {
	p, err := s.store.Get(ctx, parcelID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "parcel %s not found", parcelID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load parcel")
	}
	return p, nil
}

// ListByOwner returns all parcels currently held by an owner.
func (s *Service) ListByOwner(ctx context.Context, owner id.UserID) ([]*Parcel, error) {
	parcels, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list parcels")
	}
	return parcels, nil
}

// SetForSale lists a parcel at the given price. Only the owner may list, and
// a disputed parcel cannot be listed.
func (s *Service) SetForSale(ctx context.Context, caller id.UserID, parcelID id.ParcelID, price uint64) (*Parcel, error) {
	if price == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "listed price must be positive")
	}
	unlock := s.locks.Lock(lockKey(parcelID))
	defer unlock()

	p, err := s.GetParcel(ctx, parcelID)
	if err != nil {
		return nil, err
	}
	if p.Owner != caller {
		return nil, dErrors.Wrap(ErrOwnerMismatch, dErrors.CodeForbidden, "caller does not own parcel "+string(parcelID))
	}
	if p.Status == StatusDisputed {
		return nil, dErrors.Wrap(ErrDisputed, dErrors.CodeInvariantViolation, "disputed parcel cannot be listed")
	}
	if !p.Transactable() {
		return nil, dErrors.Wrap(ErrNotActive, dErrors.CodeWrongState, "parcel "+string(parcelID)+" is not active")
	}

	p.ForSale = true
	p.Price = price
	p.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list parcel")
	}
	s.emit(ctx, caller, audit.ActionParcelListed, p.ID, "")
	return p, nil
}

// Unlist withdraws a parcel from sale.
func (s *Service) Unlist(ctx context.Context, caller id.UserID, parcelID id.ParcelID) (*Parcel, error) {
	unlock := s.locks.Lock(lockKey(parcelID))
	defer unlock()

	p, err := s.GetParcel(ctx, parcelID)
	if err != nil {
		return nil, err
	}
	if p.Owner != caller {
		return nil, dErrors.Wrap(ErrOwnerMismatch, dErrors.CodeForbidden, "caller does not own parcel "+string(parcelID))
	}
	p.ForSale = false
	p.Price = 0
	p.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to unlist parcel")
	}
	s.emit(ctx, caller, audit.ActionParcelUnlisted, p.ID, "")
	return p, nil
}

// TransferOwnership commits a settlement's ownership change: the buyer becomes
// owner and the listing is cleared. The settlement reference is recorded
// before the owner check, so a retry of a settlement whose title leg already
// committed surfaces as CodeConflict rather than a spurious owner mismatch.
func (s *Service) TransferOwnership(ctx context.Context, parcelID id.ParcelID, from, to id.UserID, amount uint64, settlementRef string) error {
	unlock := s.locks.Lock(lockKey(parcelID))
	defer unlock()

	p, err := s.GetParcel(ctx, parcelID)
	if err != nil {
		return err
	}
	if p.Status == StatusDisputed {
		return dErrors.Wrap(ErrDisputed, dErrors.CodeInvariantViolation, "disputed parcel cannot be transferred")
	}
	if !p.Transactable() {
		return dErrors.Wrap(ErrNotActive, dErrors.CodeWrongState, "parcel "+string(parcelID)+" is not active")
	}

	if err := s.store.RecordSettlement(ctx, parcelID, settlementRef); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Newf(dErrors.CodeConflict, "settlement %s already applied to parcel %s", settlementRef, parcelID)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record settlement")
	}
	if p.Owner != from {
		return dErrors.Wrap(ErrOwnerMismatch, dErrors.CodeInvariantViolation, "parcel "+string(parcelID)+" is no longer held by the settling owner")
	}

	p.Owner = to
	p.ForSale = false
	p.Price = 0
	p.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, p); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to transfer parcel")
	}
	s.logger.InfoContext(ctx, "parcel ownership transferred",
		"parcel_id", string(parcelID),
		"from", from.String(),
		"to", to.String(),
		"amount", amount,
		"settlement_ref", settlementRef,
	)
	s.emit(ctx, to, audit.ActionParcelTransferred, p.ID, "settlement "+settlementRef)
	return nil
}

// MarkDistributed retires a parcel record after inheritance distribution. The
// decedent's title is superseded by the heirs' fractional records, which the
// off-core bookkeeping owns.
func (s *Service) MarkDistributed(ctx context.Context, parcelID id.ParcelID, settlementRef string) error {
	unlock := s.locks.Lock(lockKey(parcelID))
	defer unlock()

	p, err := s.GetParcel(ctx, parcelID)
	if err != nil {
		return err
	}
	if err := s.store.RecordSettlement(ctx, parcelID, settlementRef); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Newf(dErrors.CodeConflict, "distribution %s already applied to parcel %s", settlementRef, parcelID)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record distribution")
	}
	p.Status = StatusTransferred
	p.ForSale = false
	p.Price = 0
	p.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, p); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to retire parcel")
	}
	return nil
}

// FlagDispute opens a dispute on a parcel. Surveyors and government officials
// may flag; the route enforces the role, the service records who did it.
func (s *Service) FlagDispute(ctx context.Context, caller id.UserID, parcelID id.ParcelID, reason string) error {
	unlock := s.locks.Lock(lockKey(parcelID))
	defer unlock()

	p, err := s.GetParcel(ctx, parcelID)
	if err != nil {
		return err
	}
	if p.Status == StatusDisputed {
		return dErrors.Newf(dErrors.CodeWrongState, "parcel %s is already disputed", parcelID)
	}
	p.Status = StatusDisputed
	p.ForSale = false
	p.Price = 0
	p.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, p); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to flag dispute")
	}
	s.emit(ctx, caller, audit.ActionDisputeFlagged, p.ID, reason)
	return nil
}

// ResolveDispute closes an open dispute and returns the parcel to ACTIVE.
func (s *Service) ResolveDispute(ctx context.Context, caller id.UserID, parcelID id.ParcelID) error {
	unlock := s.locks.Lock(lockKey(parcelID))
	defer unlock()

	p, err := s.GetParcel(ctx, parcelID)
	if err != nil {
		return err
	}
	if p.Status != StatusDisputed {
		return dErrors.Wrap(ErrNotDisputed, dErrors.CodeWrongState, "parcel "+string(parcelID)+" has no open dispute")
	}
	p.Status = StatusActive
	p.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, p); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve dispute")
	}
	s.emit(ctx, caller, audit.ActionDisputeResolved, p.ID, "")
	return nil
}

func (s *Service) emit(ctx context.Context, actor id.UserID, action string, parcelID id.ParcelID, detail string) {
	if s.auditor == nil {
		return
	}
	event := audit.Event{
		Actor:      actor,
		Role:       string(requestcontext.CallerRole(ctx)),
		Action:     action,
		RecordKind: "parcel",
		RecordID:   string(parcelID),
		Detail:     detail,
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}
