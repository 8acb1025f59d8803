package inheritance

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"landledger/internal/audit"
	"landledger/internal/inheritance/metrics"
	"landledger/internal/parcel"
	"landledger/internal/platform/locks"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/fixedpoint"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/requestcontext"
)

// AuditPublisher records plan transitions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config fixes the engine's temporal parameters at construction.
type Config struct {
	// ClaimPeriod is the window after triggering in which heirs may claim.
	ClaimPeriod time.Duration
}

// Service is the inheritance distribution engine. Every mutating operation
// runs under the plan's record lock, so two heirs claiming concurrently
// cannot race into a double claim.
type Service struct {
	store   Store
	parcels parcel.Ledger
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

func NewService(store Store, parcels parcel.Ledger, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("plan store is required")
	}
	if parcels == nil {
		return nil, errors.New("parcel ledger is required")
	}
	if cfg.ClaimPeriod <= 0 {
		return nil, errors.New("claim period must be positive")
	}

	s := &Service{
		store:   store,
		parcels: parcels,
		cfg:     cfg,
		locks:   locks.NewKeyed(),
		logger:  slog.Default(),
		tracer:  otel.Tracer("landledger/inheritance"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func lockKey(planID id.PlanID) string {
	return "plan:" + planRecordID(planID)
}

func ownerLockKey(owner id.UserID) string {
	return "owner:" + owner.String()
}

func parcelLockKey(parcelID id.ParcelID) string {
	return "parcel:" + string(parcelID)
}

func planRecordID(planID id.PlanID) string {
	return strconv.FormatUint(uint64(planID), 10)
}

// CreatePlan declares a new plan over the owner's parcels. The owner may
// hold at most one plan in force, each parcel may belong to at most one plan
// in force, and the owner must currently hold title to every listed parcel.
func (s *Service) CreatePlan(ctx context.Context, owner id.UserID, parcelIDs []id.ParcelID, useAgeMilestones bool, willRef string) (*Plan, error) {
	if owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "plan owner is required")
	}
	if len(parcelIDs) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "plan must cover at least one parcel")
	}
	sorted := slices.Clone(parcelIDs)
	slices.Sort(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "parcel %s listed twice", sorted[i])
		}
	}

	// The existence checks and the insert run as one step under the owner's
	// and every listed parcel's lock, so two concurrent creations cannot both
	// pass the checks. Sorted acquisition keeps overlapping plans
	// deadlock-free.
	unlock := s.locks.Lock(ownerLockKey(owner))
	defer unlock()
	for _, parcelID := range sorted {
		unlockParcel := s.locks.Lock(parcelLockKey(parcelID))
		defer unlockParcel()
	}

	held, err := s.store.OwnerHasPlanInForce(ctx, owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing plans")
	}
	if held {
		return nil, dErrors.Wrap(ErrPlanExists, dErrors.CodeConflict, "owner already has a plan in force")
	}

	for _, parcelID := range parcelIDs {
		p, err := s.parcels.GetParcel(ctx, parcelID)
		if err != nil {
			return nil, err
		}
		if p.Owner != owner {
			return nil, dErrors.Newf(dErrors.CodeValidation, "owner does not hold parcel %s", parcelID)
		}
		inPlan, err := s.store.ParcelInPlanInForce(ctx, parcelID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check parcel plans")
		}
		if inPlan {
			return nil, dErrors.Wrap(ErrParcelInPlan, dErrors.CodeConflict, "parcel "+string(parcelID)+" already belongs to a plan")
		}
	}

	plan := &Plan{
		Owner:            owner,
		ParcelIDs:        parcelIDs,
		Status:           StatusActive,
		UseAgeMilestones: useAgeMilestones,
		WillRef:          willRef,
		CreatedAt:        requestcontext.Now(ctx),
	}
	handle, err := s.store.Create(ctx, plan)
	if err != nil {
		// The store's own in-force constraint backstops the checks above when
		// another instance won the race.
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(ErrPlanExists, dErrors.CodeConflict, "owner already has a plan in force")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create plan")
	}
	plan.ID = handle

	if s.metrics != nil {
		s.metrics.PlansCreated.Inc()
	}
	s.emit(ctx, owner, audit.ActionPlanCreated, plan, "")
	return plan, nil
}

// AddHeir registers a beneficiary on an ACTIVE plan. The running sum of heir
// percentages may never exceed 100, and an age-gated heir needs a birth date
// for the later age computation.
func (s *Service) AddHeir(ctx context.Context, caller id.UserID, planID id.PlanID, identity id.UserID, percentage, releaseAge uint8, birthDate *time.Time) (*Plan, error) {
	if identity.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "heir identity is required")
	}
	if percentage == 0 || percentage > fixedpoint.PercentDenominator {
		return nil, dErrors.New(dErrors.CodeValidation, "heir percentage must be between 1 and 100")
	}
	if releaseAge > 0 && birthDate == nil {
		return nil, dErrors.Wrap(ErrBirthDateRequired, dErrors.CodeValidation, "release age requires a birth date")
	}

	unlock := s.locks.Lock(lockKey(planID))
	defer unlock()

	plan, err := s.ownedActivePlan(ctx, caller, planID)
	if err != nil {
		return nil, err
	}
	if plan.HeirIndex(identity) >= 0 {
		return nil, dErrors.Newf(dErrors.CodeConflict, "heir already registered on plan %d", planID)
	}
	if plan.HeirPercentageSum()+uint32(percentage) > fixedpoint.PercentDenominator {
		return nil, dErrors.Wrap(ErrPercentageExceeded, dErrors.CodeInvariantViolation, "heir percentages would exceed 100")
	}

	plan.Heirs = append(plan.Heirs, Heir{
		Identity:   identity,
		Percentage: percentage,
		ReleaseAge: releaseAge,
		BirthDate:  birthDate,
	})
	if err := s.store.Update(ctx, plan); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to add heir")
	}
	s.emit(ctx, caller, audit.ActionHeirAdded, plan, "heir "+identity.String())
	return plan, nil
}

// AddMilestone registers an age threshold on an ACTIVE plan. The running sum
// of milestone percentages may never exceed 100.
func (s *Service) AddMilestone(ctx context.Context, caller id.UserID, planID id.PlanID, age, percentage uint8) (*Plan, error) {
	if percentage == 0 || percentage > fixedpoint.PercentDenominator {
		return nil, dErrors.New(dErrors.CodeValidation, "milestone percentage must be between 1 and 100")
	}

	unlock := s.locks.Lock(lockKey(planID))
	defer unlock()

	plan, err := s.ownedActivePlan(ctx, caller, planID)
	if err != nil {
		return nil, err
	}
	if plan.MilestonePercentageSum()+uint32(percentage) > fixedpoint.PercentDenominator {
		return nil, dErrors.Wrap(ErrPercentageExceeded, dErrors.CodeInvariantViolation, "milestone percentages would exceed 100")
	}

	plan.Milestones = append(plan.Milestones, Milestone{Age: age, Percentage: percentage})
	if err := s.store.Update(ctx, plan); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to add milestone")
	}
	s.emit(ctx, caller, audit.ActionMilestoneAdded, plan, "")
	return plan, nil
}

// RemoveHeir drops the heir at the given index from an ACTIVE plan.
func (s *Service) RemoveHeir(ctx context.Context, caller id.UserID, planID id.PlanID, index int) (*Plan, error) {
	unlock := s.locks.Lock(lockKey(planID))
	defer unlock()

	plan, err := s.ownedActivePlan(ctx, caller, planID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(plan.Heirs) {
		return nil, dErrors.Wrap(ErrHeirIndexOutOfRange, dErrors.CodeInvalidInput, "heir index out of range")
	}

	removed := plan.Heirs[index].Identity
	plan.Heirs = append(plan.Heirs[:index], plan.Heirs[index+1:]...)
	if err := s.store.Update(ctx, plan); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove heir")
	}
	s.emit(ctx, caller, audit.ActionHeirRemoved, plan, "heir "+removed.String())
	return plan, nil
}

// Trigger converts the plan from dormant to claimable. Government authority
// only, and the heir shares must account for the whole estate before any
// claim can open.
func (s *Service) Trigger(ctx context.Context, caller id.UserID, role requestcontext.Role, planID id.PlanID, deathCertRef string) (*Plan, error) {
	if role != requestcontext.RoleGovernment && role != requestcontext.RoleAdmin {
		return nil, dErrors.New(dErrors.CodeForbidden, "government authority role required")
	}
	if deathCertRef == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "death certificate reference is required")
	}

	unlock := s.locks.Lock(lockKey(planID))
	defer unlock()

	plan, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status != StatusActive {
		return nil, dErrors.Wrap(ErrWrongState, dErrors.CodeWrongState, "plan "+planRecordID(planID)+" is not active")
	}
	if plan.HeirPercentageSum() != fixedpoint.PercentDenominator {
		return nil, dErrors.Wrap(ErrIncompleteAllocation, dErrors.CodeInvariantViolation, "heir percentages must sum to exactly 100")
	}

	// Parcel state is never cached here: the owner may have sold a parcel
	// after declaring the plan, and a plan may only distribute what the
	// estate still holds at certification time.
	for _, parcelID := range plan.ParcelIDs {
		p, err := s.parcels.GetParcel(ctx, parcelID)
		if err != nil {
			return nil, err
		}
		if p.Owner != plan.Owner {
			return nil, dErrors.Wrap(ErrParcelNotHeld, dErrors.CodeInvariantViolation, "parcel "+string(parcelID)+" has left the estate")
		}
	}

	now := requestcontext.Now(ctx)
	plan.Status = StatusTriggered
	plan.TriggeredAt = &now
	plan.DeathCertRef = deathCertRef
	if err := s.store.Update(ctx, plan); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to trigger plan")
	}

	if s.metrics != nil {
		s.metrics.PlansTriggered.Inc()
	}
	s.logger.InfoContext(ctx, "inheritance plan triggered",
		"plan_id", planRecordID(planID),
		"heirs", len(plan.Heirs),
		"parcels", len(plan.ParcelIDs),
	)
	s.emit(ctx, caller, audit.ActionPlanTriggered, plan, "death certificate "+deathCertRef)
	return plan, nil
}

// Claim vests the caller's share. The share is gated by the claim window and,
// when the plan uses milestones, by the heir's current age; a zero vested
// share fails loudly instead of silently recording an empty claim. The last
// heir's claim completes the plan and retires its parcels in the ledger.
func (s *Service) Claim(ctx context.Context, caller id.UserID, planID id.PlanID) (*Plan, uint8, error) {
	unlock := s.locks.Lock(lockKey(planID))
	defer unlock()

	plan, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, 0, err
	}
	if !plan.Status.Claimable() {
		return nil, 0, dErrors.Wrap(ErrWrongState, dErrors.CodeWrongState, "plan "+planRecordID(planID)+" is not claimable")
	}

	now := requestcontext.Now(ctx)
	if plan.TriggeredAt == nil || now.After(plan.TriggeredAt.Add(s.cfg.ClaimPeriod)) {
		return nil, 0, dErrors.Wrap(ErrClaimExpired, dErrors.CodeDeadlineExceeded, "claim window has closed")
	}

	idx := plan.HeirIndex(caller)
	if idx < 0 {
		return nil, 0, dErrors.Wrap(ErrNotHeir, dErrors.CodeForbidden, "caller is not a registered heir")
	}
	heir := plan.Heirs[idx]
	if heir.Claimed {
		return nil, 0, dErrors.Wrap(ErrAlreadyClaimed, dErrors.CodeConflict, "heir has already claimed")
	}

	claimable := plan.ClaimablePercent(heir, now)
	if claimable == 0 {
		return nil, 0, dErrors.Wrap(ErrNotEligibleYet, dErrors.CodeWrongState, "no share has vested at the current age")
	}

	ctx, span := s.tracer.Start(ctx, "inheritance.claim", trace.WithAttributes(
		attribute.String("plan.id", planRecordID(planID)),
		attribute.Int("claimable_percent", int(claimable)),
	))
	defer span.End()

	plan.Heirs[idx].Claimed = true
	plan.Heirs[idx].ClaimedAt = &now
	plan.Heirs[idx].ClaimedShare = claimable

	completed := plan.AllClaimed()
	if completed {
		plan.Status = StatusCompleted
		plan.CompletedAt = &now
	} else {
		plan.Status = StatusExecuting
	}
	if err := s.store.Update(ctx, plan); err != nil {
		span.RecordError(err)
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record claim")
	}

	if completed {
		s.retireParcels(ctx, plan)
		if s.metrics != nil {
			s.metrics.PlansCompleted.Inc()
		}
	}
	if s.metrics != nil {
		s.metrics.Claims.Inc()
		s.metrics.ClaimLag.Observe(now.Sub(*plan.TriggeredAt).Hours() / 24)
	}
	s.logger.InfoContext(ctx, "inheritance share claimed",
		"plan_id", planRecordID(planID),
		"heir", caller.String(),
		"claimed_percent", claimable,
		"plan_status", string(plan.Status),
	)
	s.emit(ctx, caller, audit.ActionShareClaimed, plan, "claimed "+strconv.Itoa(int(claimable))+"%")
	return plan, claimable, nil
}

// retireParcels marks every plan parcel distributed in the ledger. A conflict
// means a previous completion already retired the parcel; anything else is
// logged for manual follow-up since the claim itself is already committed.
func (s *Service) retireParcels(ctx context.Context, plan *Plan) {
	for _, parcelID := range plan.ParcelIDs {
		err := s.parcels.MarkDistributed(ctx, parcelID, plan.DistributionRef())
		if err != nil && !dErrors.HasCode(err, dErrors.CodeConflict) {
			s.logger.ErrorContext(ctx, "failed to retire distributed parcel",
				"plan_id", planRecordID(plan.ID),
				"parcel_id", string(parcelID),
				"error", err,
			)
		}
	}
}

// CancelPlan withdraws an ACTIVE plan, releasing its parcels for other plans.
func (s *Service) CancelPlan(ctx context.Context, caller id.UserID, planID id.PlanID) (*Plan, error) {
	unlock := s.locks.Lock(lockKey(planID))
	defer unlock()

	plan, err := s.ownedActivePlan(ctx, caller, planID)
	if err != nil {
		return nil, err
	}
	plan.Status = StatusCancelled
	if err := s.store.Update(ctx, plan); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to cancel plan")
	}
	s.emit(ctx, caller, audit.ActionPlanCancelled, plan, "")
	return plan, nil
}

// GetPlan returns the committed state of a plan.
func (s *Service) GetPlan(ctx context.Context, planID id.PlanID) (*Plan, error) {
	plan, err := s.store.Get(ctx, planID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "plan "+planRecordID(planID)+" not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load plan")
	}
	return plan, nil
}

// ListByOwner returns all plans declared by an owner.
func (s *Service) ListByOwner(ctx context.Context, owner id.UserID) ([]*Plan, error) {
	plans, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list plans")
	}
	return plans, nil
}

// GetPlanHeirs returns the plan's heir list.
func (s *Service) GetPlanHeirs(ctx context.Context, planID id.PlanID) ([]Heir, error) {
	plan, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	return plan.Heirs, nil
}

// GetPlanMilestones returns the plan's milestone list.
func (s *Service) GetPlanMilestones(ctx context.Context, planID id.PlanID) ([]Milestone, error) {
	plan, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	return plan.Milestones, nil
}

// CheckClaimEligibility reports the share the heir could claim right now
// without mutating anything. A zero share with a nil error means the heir is
// registered but nothing has vested yet.
func (s *Service) CheckClaimEligibility(ctx context.Context, caller id.UserID, planID id.PlanID) (uint8, error) {
	plan, err := s.GetPlan(ctx, planID)
	if err != nil {
		return 0, err
	}
	if !plan.Status.Claimable() {
		return 0, dErrors.Wrap(ErrWrongState, dErrors.CodeWrongState, "plan "+planRecordID(planID)+" is not claimable")
	}
	now := requestcontext.Now(ctx)
	if plan.TriggeredAt == nil || now.After(plan.TriggeredAt.Add(s.cfg.ClaimPeriod)) {
		return 0, dErrors.Wrap(ErrClaimExpired, dErrors.CodeDeadlineExceeded, "claim window has closed")
	}
	idx := plan.HeirIndex(caller)
	if idx < 0 {
		return 0, dErrors.Wrap(ErrNotHeir, dErrors.CodeForbidden, "caller is not a registered heir")
	}
	heir := plan.Heirs[idx]
	if heir.Claimed {
		return 0, dErrors.Wrap(ErrAlreadyClaimed, dErrors.CodeConflict, "heir has already claimed")
	}
	return plan.ClaimablePercent(heir, now), nil
}

// ownedActivePlan loads the plan and checks the caller owns it and it is
// still editable.
func (s *Service) ownedActivePlan(ctx context.Context, caller id.UserID, planID id.PlanID) (*Plan, error) {
	plan, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.Owner != caller {
		return nil, dErrors.Wrap(ErrNotPlanOwner, dErrors.CodeForbidden, "caller does not own plan "+planRecordID(planID))
	}
	if plan.Status != StatusActive {
		return nil, dErrors.Wrap(ErrWrongState, dErrors.CodeWrongState, "plan "+planRecordID(planID)+" is not active")
	}
	return plan, nil
}

func (s *Service) emit(ctx context.Context, actor id.UserID, action string, plan *Plan, detail string) {
	if s.auditor == nil {
		return
	}
	event := audit.Event{
		Actor:      actor,
		Role:       string(requestcontext.CallerRole(ctx)),
		Action:     action,
		RecordKind: "plan",
		RecordID:   planRecordID(plan.ID),
		Detail:     detail,
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}
