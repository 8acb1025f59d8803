package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"landledger/internal/audit"
	"landledger/internal/inheritance"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/platform/httputil"
	"landledger/pkg/requestcontext"
)

// Service defines the interface for inheritance plan operations.
type Service interface {
	CreatePlan(ctx context.Context, owner id.UserID, parcelIDs []id.ParcelID, useAgeMilestones bool, willRef string) (*inheritance.Plan, error)
	AddHeir(ctx context.Context, caller id.UserID, planID id.PlanID, identity id.UserID, percentage, releaseAge uint8, birthDate *time.Time) (*inheritance.Plan, error)
	AddMilestone(ctx context.Context, caller id.UserID, planID id.PlanID, age, percentage uint8) (*inheritance.Plan, error)
	RemoveHeir(ctx context.Context, caller id.UserID, planID id.PlanID, index int) (*inheritance.Plan, error)
	Trigger(ctx context.Context, caller id.UserID, role requestcontext.Role, planID id.PlanID, deathCertRef string) (*inheritance.Plan, error)
	Claim(ctx context.Context, caller id.UserID, planID id.PlanID) (*inheritance.Plan, uint8, error)
	CancelPlan(ctx context.Context, caller id.UserID, planID id.PlanID) (*inheritance.Plan, error)
	GetPlan(ctx context.Context, planID id.PlanID) (*inheritance.Plan, error)
	ListByOwner(ctx context.Context, owner id.UserID) ([]*inheritance.Plan, error)
	GetPlanHeirs(ctx context.Context, planID id.PlanID) ([]inheritance.Heir, error)
	GetPlanMilestones(ctx context.Context, planID id.PlanID) ([]inheritance.Milestone, error)
	CheckClaimEligibility(ctx context.Context, caller id.UserID, planID id.PlanID) (uint8, error)
}

// Handler wires inheritance endpoints to the distribution engine.
type Handler struct {
	service    Service
	auditStore audit.Store
	logger     *slog.Logger
}

// New constructs an inheritance handler. auditStore may be nil when no
// queryable audit trail is configured; the audit endpoint then returns empty
// trails.
func New(service Service, auditStore audit.Store, logger *slog.Logger) *Handler {
	return &Handler{service: service, auditStore: auditStore, logger: logger}
}

// Register mounts inheritance endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/plans", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Route("/{planID}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Get("/heirs", h.HandleHeirs)
			r.Get("/milestones", h.HandleMilestones)
			r.Get("/eligibility", h.HandleEligibility)
			r.Get("/audit", h.HandleAuditTrail)
			r.Post("/heirs", h.HandleAddHeir)
			r.Delete("/heirs", h.HandleRemoveHeir)
			r.Post("/milestones", h.HandleAddMilestone)
			r.Post("/trigger", h.HandleTrigger)
			r.Post("/claim", h.HandleClaim)
			r.Post("/cancel", h.HandleCancel)
		})
	})
}

func planIDParam(r *http.Request) (id.PlanID, error) {
	raw := chi.URLParam(r, "planID")
	handle, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || handle == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid plan id: "+raw)
	}
	return id.PlanID(handle), nil
}

func caller(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}

// HandleAuditTrail handles GET /plans/{planID}/audit requests.
func (h *Handler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := caller(w, r); !ok {
		return
	}
	planID, err := planIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// Confirm the plan exists before exposing its trail.
	if _, err := h.service.GetPlan(ctx, planID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var events []audit.Event
	if h.auditStore != nil {
		events, err = h.auditStore.ListByRecord(ctx, "plan", strconv.FormatUint(uint64(planID), 10))
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit trail"))
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, FromAuditEvents(events))
}

// HandleCreate handles POST /plans requests. The caller becomes the plan
// owner.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	owner, ok := caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreatePlanRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	plan, err := h.service.CreatePlan(ctx, owner, req.ParsedParcelIDs(), req.UseAgeMilestones, req.WillRef)
	if err != nil {
		h.logger.WarnContext(ctx, "plan creation failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "inheritance plan created",
		"request_id", requestID,
		"plan_id", uint64(plan.ID),
		"parcels", len(plan.ParcelIDs),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromPlan(plan))
}

// HandleList handles GET /plans requests, listing the caller's plans.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := caller(w, r)
	if !ok {
		return
	}

	plans, err := h.service.ListByOwner(ctx, owner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPlans(plans))
}

// HandleGet handles GET /plans/{planID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := caller(w, r); !ok {
		return
	}
	planID, err := planIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	plan, err := h.service.GetPlan(ctx, planID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPlan(plan))
}

// HandleHeirs handles GET /plans/{planID}/heirs requests.
func (h *Handler) HandleHeirs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := caller(w, r); !ok {
		return
	}
	planID, err := planIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	heirs, err := h.service.GetPlanHeirs(ctx, planID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromHeirs(heirs))
}

// HandleMilestones handles GET /plans/{planID}/milestones requests.
func (h *Handler) HandleMilestones(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := caller(w, r); !ok {
		return
	}
	planID, err := planIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	milestones, err := h.service.GetPlanMilestones(ctx, planID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromMilestones(milestones))
}

// HandleEligibility handles GET /plans/{planID}/eligibility requests.
func (h *Handler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	planID, err := planIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	claimable, err := h.service.CheckClaimEligibility(ctx, userID, planID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, EligibilityResponse{
		ClaimablePercent: claimable,
		Eligible:         claimable > 0,
	})
}

// HandleAddHeir handles POST /plans/{planID}/heirs requests.
func (h *Handler) HandleAddHeir(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, ok := caller(w, r)
	if !ok {
		return
	}
	planID, err := planIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AddHeirRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	plan, err := h.service.AddHeir(ctx, userID, planID, req.ParsedIdentity(), req.Percentage, req.ReleaseAge, req.ParsedBirthDate())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPlan(plan))
}

// HandleRemoveHeir handles DELETE /plans/{planID}/heirs requests.
func (h *Handler) HandleRemoveHeir(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, ok := caller(w, r)
	if !ok {
		return
	}
	planID, err := planIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[RemoveHeirRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	plan, err := h.service.RemoveHeir(ctx, userID, planID, req.Index)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPlan(plan))
}

// HandleAddMilestone handles POST /plans/{planID}/milestones requests.
func (h *Handler) HandleAddMilestone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, ok := caller(w, r)
	if !ok {
		return
	}
	planID, err := planIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AddMilestoneRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	plan, err := h.service.AddMilestone(ctx, userID, planID, req.Age, req.Percentage)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPlan(plan))
}

// HandleTrigger handles POST /plans/{planID}/trigger requests.
func (h *Handler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, ok := caller(w, r)
	if !ok {
		return
	}
	planID, err := planIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[TriggerPlanRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	plan, err := h.service.Trigger(ctx, userID, requestcontext.CallerRole(ctx), planID, req.DeathCertRef)
	if err != nil {
		h.logger.WarnContext(ctx, "plan trigger failed",
			"request_id", requestID,
			"plan_id", uint64(planID),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "inheritance plan triggered",
		"request_id", requestID,
		"plan_id", uint64(planID),
	)
	httputil.WriteJSON(w, http.StatusOK, FromPlan(plan))
}

// HandleClaim handles POST /plans/{planID}/claim requests.
func (h *Handler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, ok := caller(w, r)
	if !ok {
		return
	}
	planID, err := planIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	plan, claimed, err := h.service.Claim(ctx, userID, planID)
	if err != nil {
		h.logger.WarnContext(ctx, "inheritance claim failed",
			"request_id", requestID,
			"plan_id", uint64(planID),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "inheritance share claimed",
		"request_id", requestID,
		"plan_id", uint64(planID),
		"claimed_percent", claimed,
	)
	httputil.WriteJSON(w, http.StatusOK, ClaimResponse{
		ClaimedPercent: claimed,
		Plan:           FromPlan(plan),
	})
}

// HandleCancel handles POST /plans/{planID}/cancel requests.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	planID, err := planIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	plan, err := h.service.CancelPlan(ctx, userID, planID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPlan(plan))
}
