package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"landledger/internal/audit"
	"landledger/internal/parcel"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/platform/httputil"
	"landledger/pkg/requestcontext"
)

// Service defines the interface for parcel ledger operations.
type Service interface {
	Register(ctx context.Context, registrar id.UserID, parcelID id.ParcelID, owner id.UserID, boundaryRef, documentRef string) (*parcel.Parcel, error)
	GetParcel(ctx context.Context, parcelID id.ParcelID) (*parcel.Parcel, error)
	ListByOwner(ctx context.Context, owner id.UserID) ([]*parcel.Parcel, error)
	SetForSale(ctx context.Context, caller id.UserID, parcelID id.ParcelID, price uint64) (*parcel.Parcel, error)
	Unlist(ctx context.Context, caller id.UserID, parcelID id.ParcelID) (*parcel.Parcel, error)
	FlagDispute(ctx context.Context, caller id.UserID, parcelID id.ParcelID, reason string) error
	ResolveDispute(ctx context.Context, caller id.UserID, parcelID id.ParcelID) error
}

// Handler wires parcel ledger endpoints to the parcel service. Role gates:
// registration needs the registrar role, flagging a dispute needs surveyor or
// government, resolving one needs government.
type Handler struct {
	service    Service
	auditStore audit.Store
	logger     *slog.Logger
}

// New constructs a parcel handler. auditStore may be nil when no queryable
// audit trail is configured; the audit endpoint then returns empty trails.
func New(service Service, auditStore audit.Store, logger *slog.Logger) *Handler {
	return &Handler{service: service, auditStore: auditStore, logger: logger}
}

// Register mounts parcel endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/parcels", func(r chi.Router) {
		r.Post("/", h.HandleRegister)
		r.Get("/", h.HandleListOwn)
		r.Route("/{parcelID}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Get("/audit", h.HandleAuditTrail)
			r.Post("/list", h.HandleSetForSale)
			r.Post("/unlist", h.HandleUnlist)
			r.Post("/dispute", h.HandleFlagDispute)
			r.Post("/dispute/resolve", h.HandleResolveDispute)
		})
	})
}

func parcelIDParam(r *http.Request) (id.ParcelID, error) {
	return id.ParseParcelID(chi.URLParam(r, "parcelID"))
}

func caller(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}

func requireRole(w http.ResponseWriter, r *http.Request, roles ...requestcontext.Role) bool {
	role := requestcontext.CallerRole(r.Context())
	if role == requestcontext.RoleAdmin {
		return true
	}
	for _, allowed := range roles {
		if role == allowed {
			return true
		}
	}
	httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "caller role is not permitted"))
	return false
}

// HandleRegister handles POST /parcels requests.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, ok := caller(w, r)
	if !ok {
		return
	}
	if !requireRole(w, r, requestcontext.RoleRegistrar) {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RegisterParcelRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	p, err := h.service.Register(ctx, userID, req.ParsedParcelID(), req.ParsedOwner(), req.BoundaryRef, req.DocumentRef)
	if err != nil {
		h.logger.WarnContext(ctx, "parcel registration failed",
			"request_id", requestID,
			"parcel_id", req.ParcelID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "parcel registered",
		"request_id", requestID,
		"parcel_id", req.ParcelID,
		"owner", req.Owner,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromParcel(p))
}

// HandleListOwn handles GET /parcels requests, listing the caller's parcels.
func (h *Handler) HandleListOwn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	parcels, err := h.service.ListByOwner(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromParcels(parcels))
}

// HandleGet handles GET /parcels/{parcelID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := caller(w, r); !ok {
		return
	}
	parcelID, err := parcelIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	p, err := h.service.GetParcel(ctx, parcelID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromParcel(p))
}

// HandleAuditTrail handles GET /parcels/{parcelID}/audit requests.
func (h *Handler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := caller(w, r); !ok {
		return
	}
	parcelID, err := parcelIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// Confirm the parcel exists before exposing its trail.
	if _, err := h.service.GetParcel(ctx, parcelID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var events []audit.Event
	if h.auditStore != nil {
		events, err = h.auditStore.ListByRecord(ctx, "parcel", string(parcelID))
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit trail"))
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, FromAuditEvents(events))
}

// HandleSetForSale handles POST /parcels/{parcelID}/list requests.
func (h *Handler) HandleSetForSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, ok := caller(w, r)
	if !ok {
		return
	}
	parcelID, err := parcelIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ListParcelRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	p, err := h.service.SetForSale(ctx, userID, parcelID, req.Price)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "parcel listed for sale",
		"request_id", requestID,
		"parcel_id", string(parcelID),
		"price", req.Price,
	)
	httputil.WriteJSON(w, http.StatusOK, FromParcel(p))
}

// HandleUnlist handles POST /parcels/{parcelID}/unlist requests.
func (h *Handler) HandleUnlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	parcelID, err := parcelIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	p, err := h.service.Unlist(ctx, userID, parcelID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromParcel(p))
}

// HandleFlagDispute handles POST /parcels/{parcelID}/dispute requests.
func (h *Handler) HandleFlagDispute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, ok := caller(w, r)
	if !ok {
		return
	}
	if !requireRole(w, r, requestcontext.RoleSurveyor, requestcontext.RoleGovernment) {
		return
	}
	parcelID, err := parcelIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[FlagDisputeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.FlagDispute(ctx, userID, parcelID, req.Reason); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "parcel dispute flagged",
		"request_id", requestID,
		"parcel_id", string(parcelID),
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleResolveDispute handles POST /parcels/{parcelID}/dispute/resolve requests.
func (h *Handler) HandleResolveDispute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, ok := caller(w, r)
	if !ok {
		return
	}
	if !requireRole(w, r, requestcontext.RoleGovernment) {
		return
	}
	parcelID, err := parcelIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.ResolveDispute(ctx, userID, parcelID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "parcel dispute resolved",
		"request_id", requestID,
		"parcel_id", string(parcelID),
	)
	w.WriteHeader(http.StatusNoContent)
}
