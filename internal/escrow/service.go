package escrow

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"landledger/internal/audit"
	"landledger/internal/escrow/metrics"
	"landledger/internal/funds"
	"landledger/internal/parcel"
	"landledger/internal/platform/locks"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/fixedpoint"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/requestcontext"
)

// AuditPublisher records escrow transitions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config fixes the engine's monetary and temporal parameters at construction.
type Config struct {
	// FeeBps is the platform fee in basis points, capped at MaxFeeBps.
	FeeBps uint32
	// MaxFeeBps is the hard fee cap.
	MaxFeeBps uint32
	// Timeout is the funding/approval window.
	Timeout time.Duration
	// EscrowAccount holds deposits between funding and settlement.
	EscrowAccount id.AccountID
	// FeeAccount receives the platform fee at settlement.
	FeeAccount id.AccountID
}

// Service is the escrow settlement engine. Every mutating operation runs
// under the escrow's record lock, so concurrent approvals cannot race into a
// double settlement; reads go straight to the store and see only committed
// state.
type Service struct {
	store   Store
	parcels parcel.Ledger
	funds   funds.Ledger
	cfg     Config

	locks   *locks.Keyed
	logger  *slog.Logger
	auditor AuditPublisher
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditor = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, parcels parcel.Ledger, fundLedger funds.Ledger, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("escrow store is required")
	}
	if parcels == nil {
		return nil, errors.New("parcel ledger is required")
	}
	if fundLedger == nil {
		return nil, errors.New("fund ledger is required")
	}
	if cfg.MaxFeeBps == 0 || cfg.MaxFeeBps > fixedpoint.BpsDenominator {
		return nil, errors.New("max fee basis points out of range")
	}
	if cfg.FeeBps > cfg.MaxFeeBps {
		return nil, errors.New("fee basis points exceed the configured cap")
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("escrow timeout must be positive")
	}
	if cfg.EscrowAccount.IsNil() || cfg.FeeAccount.IsNil() {
		return nil, errors.New("escrow and fee accounts are required")
	}

	s := &Service{
		store:   store,
		parcels: parcels,
		funds:   fundLedger,
		cfg:     cfg,
		locks:   locks.NewKeyed(),
		logger:  slog.Default(),
		tracer:  otel.Tracer("landledger/escrow"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func lockKey(escrowID id.EscrowID) string {
	return "escrow:" + escrowRecordID(escrowID)
}

func escrowRecordID(escrowID id.EscrowID) string {
	return strconv.FormatUint(uint64(escrowID), 10)
}

// CalculateFee computes the platform fee for an amount under the configured
// basis points, truncating.
func (s *Service) CalculateFee(amount uint64) (uint64, error) {
	return fixedpoint.BasisPointsOf(amount, s.cfg.FeeBps)
}

// Create opens an escrow in PENDING. The caller is the buyer. Parcel state is
// fetched fresh from the ledger: the parcel must exist, be for sale, and be
// owned by the named seller, and the offer must meet the listed price.
func (s *Service) Create(ctx context.Context, buyer id.UserID, parcelID id.ParcelID, seller id.UserID, amount uint64, documentRef string) (*Escrow, error) {
	if buyer.IsNil() || seller.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "buyer and seller are required")
	}
	if buyer == seller {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "buyer and seller must differ")
	}

	p, err := s.parcels.GetParcel(ctx, parcelID)
	if err != nil {
		return nil, err
	}
	if !p.ForSale {
		return nil, dErrors.Wrap(ErrNotForSale, dErrors.CodeWrongState, "parcel "+string(parcelID)+" is not for sale")
	}
	if p.Owner != seller {
		return nil, dErrors.Wrap(ErrOwnerMismatch, dErrors.CodeValidation, "seller does not own parcel "+string(parcelID))
	}
	if amount < p.Price {
		return nil, dErrors.Wrap(ErrAmountTooLow, dErrors.CodeInvariantViolation, "offer below listed price")
	}

	fee, err := s.CalculateFee(amount)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	e := &Escrow{
		ParcelID:    parcelID,
		Seller:      seller,
		Buyer:       buyer,
		Amount:      amount,
		Fee:         fee,
		Status:      StatusPending,
		DocumentRef: documentRef,
		CreatedAt:   now,
		Deadline:    now.Add(s.cfg.Timeout),
	}
	handle, err := s.store.Create(ctx, e)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create escrow")
	}
	e.ID = handle

	if s.metrics != nil {
		s.metrics.Created.Inc()
	}
	s.emit(ctx, buyer, audit.ActionEscrowCreated, e, "parcel "+string(parcelID))
	return e, nil
}

// Fund deposits the buyer's payment. The deposit must cover amount plus fee
// and arrive before the deadline; funding also records the buyer's approval.
func (s *Service) Fund(ctx context.Context, caller id.UserID, escrowID id.EscrowID, deposited uint64) (*Escrow, error) {
	unlock := s.locks.Lock(lockKey(escrowID))
	defer unlock()

	e, err := s.Get(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if e.Buyer != caller {
		return nil, dErrors.Wrap(ErrNotBuyer, dErrors.CodeForbidden, "only the buyer may fund escrow")
	}
	if e.Status != StatusPending {
		return nil, dErrors.Wrap(ErrWrongState, dErrors.CodeWrongState, "escrow "+escrowRecordID(escrowID)+" is not pending")
	}
	now := requestcontext.Now(ctx)
	if now.After(e.Deadline) {
		return nil, dErrors.Wrap(ErrDeadlinePassed, dErrors.CodeDeadlineExceeded, "funding deadline has passed")
	}
	required, err := fixedpoint.AddChecked(e.Amount, e.Fee)
	if err != nil {
		return nil, err
	}
	if deposited < required {
		return nil, dErrors.Wrap(ErrInsufficientFunds, dErrors.CodeInsufficientFunds, "deposit must cover amount plus fee")
	}

	// Funds move into custody before the state flips; if the transfer fails
	// nothing was written.
	if err := s.funds.Transfer(ctx, id.AccountFor(e.Buyer), s.cfg.EscrowAccount, deposited); err != nil {
		return nil, err
	}

	e.Deposited = deposited
	e.Status = StatusFunded
	e.Approvals = e.Approvals.Grant(PartyBuyer)
	if err := s.store.Update(ctx, e); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record funding")
	}
	s.emit(ctx, caller, audit.ActionEscrowFunded, e, "")
	return e, nil
}

// SellerApprove records the seller's sign-off exactly once and runs the
// all-approvals check.
func (s *Service) SellerApprove(ctx context.Context, caller id.UserID, escrowID id.EscrowID) (*Escrow, error) {
	unlock := s.locks.Lock(lockKey(escrowID))
	defer unlock()

	e, err := s.Get(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if e.Seller != caller {
		return nil, dErrors.Wrap(ErrNotSeller, dErrors.CodeForbidden, "only the seller may approve")
	}
	if e.Status != StatusFunded && e.Status != StatusVerified {
		return nil, dErrors.Wrap(ErrWrongState, dErrors.CodeWrongState, "escrow "+escrowRecordID(escrowID)+" is not awaiting approval")
	}
	if e.Approvals.Has(PartySeller) {
		return nil, dErrors.Wrap(ErrAlreadyApproved, dErrors.CodeConflict, "seller has already approved")
	}

	e.Approvals = e.Approvals.Grant(PartySeller)
	if err := s.store.Update(ctx, e); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record approval")
	}
	s.emit(ctx, caller, audit.ActionSellerApproved, e, "")

	if err := s.maybeSettle(ctx, e); err != nil {
		return e, err
	}
	return e, nil
}

// GovernmentApprove records the authority's sign-off, advances the escrow to
// VERIFIED, and runs the all-approvals check.
func (s *Service) GovernmentApprove(ctx context.Context, caller id.UserID, role requestcontext.Role, escrowID id.EscrowID) (*Escrow, error) {
	if role != requestcontext.RoleGovernment && role != requestcontext.RoleAdmin {
		return nil, dErrors.New(dErrors.CodeForbidden, "government authority role required")
	}

	unlock := s.locks.Lock(lockKey(escrowID))
	defer unlock()

	e, err := s.Get(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if e.Status != StatusFunded {
		return nil, dErrors.Wrap(ErrWrongState, dErrors.CodeWrongState, "escrow "+escrowRecordID(escrowID)+" is not funded")
	}
	if e.Approvals.Has(PartyGovernment) {
		return nil, dErrors.Wrap(ErrAlreadyApproved, dErrors.CodeConflict, "government has already approved")
	}

	e.Approvals = e.Approvals.Grant(PartyGovernment)
	e.Status = StatusVerified
	if err := s.store.Update(ctx, e); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record approval")
	}
	s.emit(ctx, caller, audit.ActionGovernmentApproved, e, "")

	if err := s.maybeSettle(ctx, e); err != nil {
		return e, err
	}
	return e, nil
}

// RetrySettlement re-runs a settlement that failed after approvals were
// complete (e.g. the payment collaborator was down). Government or admin
// only; the escrow must still be VERIFIED with all approvals present.
func (s *Service) RetrySettlement(ctx context.Context, caller id.UserID, role requestcontext.Role, escrowID id.EscrowID) (*Escrow, error) {
	if role != requestcontext.RoleGovernment && role != requestcontext.RoleAdmin {
		return nil, dErrors.New(dErrors.CodeForbidden, "government authority role required")
	}

	unlock := s.locks.Lock(lockKey(escrowID))
	defer unlock()

	e, err := s.Get(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if e.Status != StatusVerified || !e.Approvals.Complete() {
		return nil, dErrors.Wrap(ErrWrongState, dErrors.CodeWrongState, "escrow "+escrowRecordID(escrowID)+" is not awaiting settlement")
	}
	if err := s.maybeSettle(ctx, e); err != nil {
		return e, err
	}
	return e, nil
}

// Refund returns the full deposit to the buyer. Permitted when the deadline
// has passed, or for government/admin callers, or for the seller while the
// escrow is FUNDED (seller-initiated withdrawal).
func (s *Service) Refund(ctx context.Context, caller id.UserID, role requestcontext.Role, escrowID id.EscrowID) (*Escrow, error) {
	unlock := s.locks.Lock(lockKey(escrowID))
	defer unlock()

	e, err := s.Get(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if e.Status != StatusFunded && e.Status != StatusVerified {
		return nil, dErrors.Wrap(ErrWrongState, dErrors.CodeWrongState, "escrow "+escrowRecordID(escrowID)+" holds no refundable funds")
	}

	now := requestcontext.Now(ctx)
	permitted := now.After(e.Deadline) ||
		role == requestcontext.RoleGovernment || role == requestcontext.RoleAdmin ||
		(caller == e.Seller && e.Status == StatusFunded)
	if !permitted {
		return nil, dErrors.Wrap(ErrRefundNotAllowed, dErrors.CodeForbidden, "refund conditions not met")
	}

	if err := s.refundDeposit(ctx, e); err != nil {
		return nil, err
	}
	e.Status = StatusRefunded
	if err := s.store.Update(ctx, e); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record refund")
	}
	if s.metrics != nil {
		s.metrics.Refunded.Inc()
	}
	s.emit(ctx, caller, audit.ActionEscrowRefunded, e, "")
	return e, nil
}

// Cancel withdraws a PENDING escrow before any funds moved. Buyer, seller, or
// admin may cancel.
func (s *Service) Cancel(ctx context.Context, caller id.UserID, role requestcontext.Role, escrowID id.EscrowID, reason string) (*Escrow, error) {
	unlock := s.locks.Lock(lockKey(escrowID))
	defer unlock()

	e, err := s.Get(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if caller != e.Buyer && caller != e.Seller && role != requestcontext.RoleAdmin {
		return nil, dErrors.New(dErrors.CodeForbidden, "only buyer, seller, or admin may cancel")
	}
	if e.Status != StatusPending {
		return nil, dErrors.Wrap(ErrWrongState, dErrors.CodeWrongState, "escrow "+escrowRecordID(escrowID)+" is not pending")
	}

	e.Status = StatusCancelled
	e.CancelReason = reason
	if err := s.store.Update(ctx, e); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record cancellation")
	}
	if s.metrics != nil {
		s.metrics.Cancelled.Inc()
	}
	s.emit(ctx, caller, audit.ActionEscrowCancelled, e, reason)
	return e, nil
}

// Get returns the committed state of an escrow.
func (s *Service) Get(ctx context.Context, escrowID id.EscrowID) (*Escrow, error) {
	e, err := s.store.Get(ctx, escrowID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "escrow "+escrowRecordID(escrowID)+" not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load escrow")
	}
	return e, nil
}

// ListByParty returns escrows where the user is buyer or seller.
func (s *Service) ListByParty(ctx context.Context, party id.UserID) ([]*Escrow, error) {
	escrows, err := s.store.ListByParty(ctx, party)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list escrows")
	}
	return escrows, nil
}

// HasAllApprovals reports whether buyer, seller, and government have all
// signed off.
func (s *Service) HasAllApprovals(ctx context.Context, escrowID id.EscrowID) (bool, error) {
	e, err := s.Get(ctx, escrowID)
	if err != nil {
		return false, err
	}
	return e.Approvals.Complete(), nil
}

// maybeSettle executes the atomic settlement when all three approvals are
// present. The ledger transfer runs first and the fund legs second; the
// escrow is only marked COMPLETED after both legs succeed, so a failure
// leaves it in VERIFIED for a corrective retry. Caller holds the record lock.
func (s *Service) maybeSettle(ctx context.Context, e *Escrow) error {
	if !e.Approvals.Complete() {
		return nil
	}
	if e.Status != StatusFunded && e.Status != StatusVerified {
		return nil
	}

	ctx, span := s.tracer.Start(ctx, "escrow.settle", trace.WithAttributes(
		attribute.String("escrow.ref", e.SettlementRef()),
		attribute.String("parcel.id", string(e.ParcelID)),
	))
	defer span.End()
	start := time.Now()

	// Leg 1: title, moving from the escrow's seller specifically. A competing
	// settlement that already handed the parcel to someone else makes this an
	// owner mismatch, not a double payout. A conflict means a previous attempt
	// of this escrow already moved the title before the fund legs failed;
	// treat it as done and resume.
	err := s.parcels.TransferOwnership(ctx, e.ParcelID, e.Seller, e.Buyer, e.Amount, e.SettlementRef())
	if err != nil && !dErrors.HasCode(err, dErrors.CodeConflict) {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) || dErrors.HasCode(err, dErrors.CodeWrongState) {
			// The parcel can never transfer under this escrow (disputed after
			// funding, or no longer the seller's to sell). Return the deposit
			// and park the escrow in the error sink.
			return s.failPermanently(ctx, e, err)
		}
		span.RecordError(err)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "ledger transfer failed; escrow remains verified")
	}

	// Leg 2: money. Principal to the seller, fee to the platform, any excess
	// deposit back to the buyer.
	if err := s.funds.Transfer(ctx, s.cfg.EscrowAccount, id.AccountFor(e.Seller), e.Amount); err != nil {
		span.RecordError(err)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "seller payout failed; escrow remains verified")
	}
	if e.Fee > 0 {
		if err := s.funds.Transfer(ctx, s.cfg.EscrowAccount, s.cfg.FeeAccount, e.Fee); err != nil {
			span.RecordError(err)
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "fee payout failed; escrow remains verified")
		}
	}
	if excess := e.Deposited - e.Amount - e.Fee; excess > 0 {
		if err := s.funds.Transfer(ctx, s.cfg.EscrowAccount, id.AccountFor(e.Buyer), excess); err != nil {
			span.RecordError(err)
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "excess return failed; escrow remains verified")
		}
	}

	now := requestcontext.Now(ctx)
	e.Status = StatusCompleted
	e.CompletedAt = &now
	if err := s.store.Update(ctx, e); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record settlement")
	}

	if s.metrics != nil {
		s.metrics.Settled.Inc()
		s.metrics.SettlementDuration.Observe(time.Since(start).Seconds())
	}
	s.logger.InfoContext(ctx, "escrow settled",
		"escrow_id", escrowRecordID(e.ID),
		"parcel_id", string(e.ParcelID),
		"amount", e.Amount,
		"fee", e.Fee,
	)
	s.emit(ctx, e.Buyer, audit.ActionEscrowSettled, e, "")
	return nil
}

// failPermanently returns the deposit and parks the escrow in FAILED. Funds
// must never strand in a non-recoverable sink.
func (s *Service) failPermanently(ctx context.Context, e *Escrow, cause error) error {
	if err := s.refundDeposit(ctx, e); err != nil {
		return err
	}
	e.Status = StatusFailed
	e.CancelReason = cause.Error()
	if err := s.store.Update(ctx, e); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record failure")
	}
	s.logger.ErrorContext(ctx, "escrow settlement failed permanently",
		"escrow_id", escrowRecordID(e.ID),
		"error", cause,
	)
	return dErrors.Wrap(cause, dErrors.CodeInvariantViolation, "settlement cannot complete; deposit returned")
}

func (s *Service) refundDeposit(ctx context.Context, e *Escrow) error {
	if e.Deposited == 0 {
		return nil
	}
	if err := s.funds.Transfer(ctx, s.cfg.EscrowAccount, id.AccountFor(e.Buyer), e.Deposited); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "refund transfer failed")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, actor id.UserID, action string, e *Escrow, detail string) {
	if s.auditor == nil {
		return
	}
	event := audit.Event{
		Actor:      actor,
		Role:       string(requestcontext.CallerRole(ctx)),
		Action:     action,
		RecordKind: "escrow",
		RecordID:   escrowRecordID(e.ID),
		Detail:     detail,
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}
