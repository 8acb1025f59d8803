package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"landledger/internal/audit"
	"landledger/internal/escrow"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/platform/httputil"
	"landledger/pkg/requestcontext"
)

// Service defines the interface for escrow operations.
type Service interface {
	Create(ctx context.Context, buyer id.UserID, parcelID id.ParcelID, seller id.UserID, amount uint64, documentRef string) (*escrow.Escrow, error)
	Fund(ctx context.Context, caller id.UserID, escrowID id.EscrowID, deposited uint64) (*escrow.Escrow, error)
	SellerApprove(ctx context.Context, caller id.UserID, escrowID id.EscrowID) (*escrow.Escrow, error)
	GovernmentApprove(ctx context.Context, caller id.UserID, role requestcontext.Role, escrowID id.EscrowID) (*escrow.Escrow, error)
	RetrySettlement(ctx context.Context, caller id.UserID, role requestcontext.Role, escrowID id.EscrowID) (*escrow.Escrow, error)
	Refund(ctx context.Context, caller id.UserID, role requestcontext.Role, escrowID id.EscrowID) (*escrow.Escrow, error)
	Cancel(ctx context.Context, caller id.UserID, role requestcontext.Role, escrowID id.EscrowID, reason string) (*escrow.Escrow, error)
	Get(ctx context.Context, escrowID id.EscrowID) (*escrow.Escrow, error)
	ListByParty(ctx context.Context, party id.UserID) ([]*escrow.Escrow, error)
	HasAllApprovals(ctx context.Context, escrowID id.EscrowID) (bool, error)
}

// Handler wires escrow endpoints to the settlement engine.
type Handler struct {
	service    Service
	auditStore audit.Store
	logger     *slog.Logger
}

// New constructs an escrow handler. auditStore may be nil when no queryable
// audit trail is configured; the audit endpoint then returns empty trails.
func New(service Service, auditStore audit.Store, logger *slog.Logger) *Handler {
	return &Handler{service: service, auditStore: auditStore, logger: logger}
}

// Register mounts escrow endpoints on the router. Authentication is enforced
// by route middleware; the government approval route additionally carries a
// role check inside the service.
func (h *Handler) Register(r chi.Router) {
	r.Route("/escrows", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Route("/{escrowID}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Get("/approvals", h.HandleApprovals)
			r.Get("/audit", h.HandleAuditTrail)
			r.Post("/fund", h.HandleFund)
			r.Post("/approve/seller", h.HandleSellerApprove)
			r.Post("/approve/government", h.HandleGovernmentApprove)
			r.Post("/settle", h.HandleRetrySettlement)
			r.Post("/refund", h.HandleRefund)
			r.Post("/cancel", h.HandleCancel)
		})
	})
}

func escrowIDParam(r *http.Request) (id.EscrowID, error) {
	raw := chi.URLParam(r, "escrowID")
	handle, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || handle == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid escrow id: "+raw)
	}
	return id.EscrowID(handle), nil
}

func caller(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}

// HandleCreate handles POST /escrows requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	buyer, ok := caller(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateEscrowRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	e, err := h.service.Create(ctx, buyer, req.ParsedParcelID(), req.ParsedSeller(), req.Amount, req.DocumentRef)
	if err != nil {
		h.logger.ErrorContext(ctx, "escrow creation failed",
			"request_id", requestID,
			"parcel_id", req.ParcelID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "escrow created",
		"request_id", requestID,
		"escrow_id", uint64(e.ID),
		"parcel_id", req.ParcelID,
		"amount", req.Amount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromEscrow(e))
}

// HandleList handles GET /escrows requests, listing the caller's escrows.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	escrows, err := h.service.ListByParty(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEscrows(escrows))
}

// HandleGet handles GET /escrows/{escrowID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := caller(w, r); !ok {
		return
	}
	escrowID, err := escrowIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	e, err := h.service.Get(ctx, escrowID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEscrow(e))
}

// HandleApprovals handles GET /escrows/{escrowID}/approvals requests.
func (h *Handler) HandleApprovals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := caller(w, r); !ok {
		return
	}
	escrowID, err := escrowIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	e, err := h.service.Get(ctx, escrowID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, approvalsFrom(e.Approvals))
}

// HandleAuditTrail handles GET /escrows/{escrowID}/audit requests.
func (h *Handler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := caller(w, r); !ok {
		return
	}
	escrowID, err := escrowIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// Confirm the escrow exists before exposing its trail.
	if _, err := h.service.Get(ctx, escrowID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var events []audit.Event
	if h.auditStore != nil {
		events, err = h.auditStore.ListByRecord(ctx, "escrow", strconv.FormatUint(uint64(escrowID), 10))
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit trail"))
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, FromAuditEvents(events))
}

// HandleFund handles POST /escrows/{escrowID}/fund requests.
func (h *Handler) HandleFund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, ok := caller(w, r)
	if !ok {
		return
	}
	escrowID, err := escrowIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[FundEscrowRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	e, err := h.service.Fund(ctx, userID, escrowID, req.Deposited)
	if err != nil {
		h.logger.WarnContext(ctx, "escrow funding failed",
			"request_id", requestID,
			"escrow_id", uint64(escrowID),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "escrow funded",
		"request_id", requestID,
		"escrow_id", uint64(escrowID),
		"deposited", req.Deposited,
	)
	httputil.WriteJSON(w, http.StatusOK, FromEscrow(e))
}

// HandleSellerApprove handles POST /escrows/{escrowID}/approve/seller requests.
func (h *Handler) HandleSellerApprove(w http.ResponseWriter, r *http.Request) {
	h.approve(w, r, "seller", func(ctx context.Context, userID id.UserID, escrowID id.EscrowID) (*escrow.Escrow, error) {
		return h.service.SellerApprove(ctx, userID, escrowID)
	})
}

// HandleGovernmentApprove handles POST /escrows/{escrowID}/approve/government requests.
func (h *Handler) HandleGovernmentApprove(w http.ResponseWriter, r *http.Request) {
	h.approve(w, r, "government", func(ctx context.Context, userID id.UserID, escrowID id.EscrowID) (*escrow.Escrow, error) {
		return h.service.GovernmentApprove(ctx, userID, requestcontext.CallerRole(ctx), escrowID)
	})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request, party string, call func(context.Context, id.UserID, id.EscrowID) (*escrow.Escrow, error)) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, ok := caller(w, r)
	if !ok {
		return
	}
	escrowID, err := escrowIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	e, err := call(ctx, userID, escrowID)
	if err != nil {
		h.logger.WarnContext(ctx, "escrow approval failed",
			"request_id", requestID,
			"escrow_id", uint64(escrowID),
			"party", party,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "escrow approval recorded",
		"request_id", requestID,
		"escrow_id", uint64(escrowID),
		"party", party,
		"status", string(e.Status),
	)
	httputil.WriteJSON(w, http.StatusOK, FromEscrow(e))
}

// HandleRetrySettlement handles POST /escrows/{escrowID}/settle requests.
func (h *Handler) HandleRetrySettlement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, ok := caller(w, r)
	if !ok {
		return
	}
	escrowID, err := escrowIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	e, err := h.service.RetrySettlement(ctx, userID, requestcontext.CallerRole(ctx), escrowID)
	if err != nil {
		h.logger.ErrorContext(ctx, "settlement retry failed",
			"request_id", requestID,
			"escrow_id", uint64(escrowID),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEscrow(e))
}

// HandleRefund handles POST /escrows/{escrowID}/refund requests.
func (h *Handler) HandleRefund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, ok := caller(w, r)
	if !ok {
		return
	}
	escrowID, err := escrowIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	e, err := h.service.Refund(ctx, userID, requestcontext.CallerRole(ctx), escrowID)
	if err != nil {
		h.logger.WarnContext(ctx, "escrow refund failed",
			"request_id", requestID,
			"escrow_id", uint64(escrowID),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "escrow refunded",
		"request_id", requestID,
		"escrow_id", uint64(escrowID),
	)
	httputil.WriteJSON(w, http.StatusOK, FromEscrow(e))
}

// HandleCancel handles POST /escrows/{escrowID}/cancel requests.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, ok := caller(w, r)
	if !ok {
		return
	}
	escrowID, err := escrowIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[CancelEscrowRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	e, err := h.service.Cancel(ctx, userID, requestcontext.CallerRole(ctx), escrowID, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "escrow cancelled",
		"request_id", requestID,
		"escrow_id", uint64(escrowID),
	)
	httputil.WriteJSON(w, http.StatusOK, FromEscrow(e))
}
