package handler_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"landledger/internal/audit"
	"landledger/internal/escrow"
	"landledger/internal/escrow/handler"
	"landledger/internal/funds"
	"landledger/internal/parcel"
	id "landledger/pkg/domain"
	"landledger/pkg/requestcontext"
	"landledger/pkg/testutil"
)

type EscrowHandlerSuite struct {
	suite.Suite

	seller id.UserID
	buyer  id.UserID
	gov    id.UserID
	now    time.Time

	auditStore audit.Store
	router     *chi.Mux
}

func TestEscrowHandlerSuite(t *testing.T) {
	suite.Run(t, new(EscrowHandlerSuite))
}

func (s *EscrowHandlerSuite) SetupTest() {
	s.seller = id.UserID(uuid.New())
	s.buyer = id.UserID(uuid.New())
	s.gov = id.UserID(uuid.New())
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	parcels := parcel.NewService(parcel.NewInMemoryStore())
	ledger := funds.NewInMemoryLedger()
	s.auditStore = audit.NewInMemoryStore()

	service, err := s.newService(parcels, ledger)
	s.Require().NoError(err)

	ctx := requestcontext.WithTime(s.T().Context(), s.now)
	_, err = parcels.Register(ctx, id.UserID(uuid.New()), "KAD-2026-0001", s.seller, "", "")
	s.Require().NoError(err)
	_, err = parcels.SetForSale(ctx, s.seller, "KAD-2026-0001", 1000)
	s.Require().NoError(err)
	s.Require().NoError(ledger.Deposit(ctx, id.AccountFor(s.buyer), 5000))

	s.router = chi.NewRouter()
	handler.New(service, s.auditStore, slog.Default()).Register(s.router)
}

func (s *EscrowHandlerSuite) newService(parcels *parcel.Service, ledger funds.Ledger) (*escrow.Service, error) {
	return escrow.NewService(escrow.NewInMemoryStore(), parcels, ledger, escrow.Config{
		FeeBps:        50,
		MaxFeeBps:     500,
		Timeout:       30 * 24 * time.Hour,
		EscrowAccount: id.AccountID(uuid.New()),
		FeeAccount:    id.AccountID(uuid.New()),
	}, escrow.WithAuditPublisher(audit.NewPublisher(s.auditStore)))
}

func (s *EscrowHandlerSuite) do(req *http.Request, userID id.UserID, role requestcontext.Role) *httptest.ResponseRecorder {
	req = testutil.WithCaller(req, userID, role)
	req = testutil.WithRequestTime(req, s.now)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *EscrowHandlerSuite) createEscrow() uint64 {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/escrows", map[string]any{
		"parcel_id": "KAD-2026-0001",
		"seller":    s.seller.String(),
		"amount":    1000,
	})
	rec := s.do(req, s.buyer, requestcontext.RoleCitizen)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var resp handler.EscrowResponse
	testutil.DecodeJSON(s.T(), rec, &resp)
	return resp.ID
}

func (s *EscrowHandlerSuite) TestCreate() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/escrows", map[string]any{
		"parcel_id": "KAD-2026-0001",
		"seller":    s.seller.String(),
		"amount":    1000,
	})
	rec := s.do(req, s.buyer, requestcontext.RoleCitizen)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var resp handler.EscrowResponse
	testutil.DecodeJSON(s.T(), rec, &resp)
	s.Equal("PENDING", resp.Status)
	s.Equal(uint64(5), resp.Fee)
	s.Equal(s.buyer.String(), resp.Buyer)
}

func (s *EscrowHandlerSuite) TestCreateValidation() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/escrows", map[string]any{
		"parcel_id": "KAD-2026-0001",
		"seller":    "not-a-uuid",
		"amount":    1000,
	})
	rec := s.do(req, s.buyer, requestcontext.RoleCitizen)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *EscrowHandlerSuite) TestCreateRequiresAuth() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/escrows", map[string]any{
		"parcel_id": "KAD-2026-0001",
		"seller":    s.seller.String(),
		"amount":    1000,
	})
	req = testutil.WithRequestTime(req, s.now)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *EscrowHandlerSuite) TestFullLifecycleOverHTTP() {
	escrowID := s.createEscrow()

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, s.path(escrowID, "/fund"), map[string]any{
		"deposited": 1005,
	})
	rec := s.do(req, s.buyer, requestcontext.RoleCitizen)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(testutil.NewRequest(s.T(), http.MethodPost, s.path(escrowID, "/approve/seller")), s.seller, requestcontext.RoleCitizen)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(testutil.NewRequest(s.T(), http.MethodPost, s.path(escrowID, "/approve/government")), s.gov, requestcontext.RoleGovernment)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp handler.EscrowResponse
	testutil.DecodeJSON(s.T(), rec, &resp)
	s.Equal("COMPLETED", resp.Status)
	s.True(resp.Approvals.Complete)
}

func (s *EscrowHandlerSuite) TestDoubleApprovalConflicts() {
	escrowID := s.createEscrow()

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, s.path(escrowID, "/fund"), map[string]any{"deposited": 1005})
	rec := s.do(req, s.buyer, requestcontext.RoleCitizen)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(testutil.NewRequest(s.T(), http.MethodPost, s.path(escrowID, "/approve/seller")), s.seller, requestcontext.RoleCitizen)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(testutil.NewRequest(s.T(), http.MethodPost, s.path(escrowID, "/approve/seller")), s.seller, requestcontext.RoleCitizen)
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *EscrowHandlerSuite) TestGovernmentApprovalNeedsRole() {
	escrowID := s.createEscrow()

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, s.path(escrowID, "/fund"), map[string]any{"deposited": 1005})
	rec := s.do(req, s.buyer, requestcontext.RoleCitizen)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(testutil.NewRequest(s.T(), http.MethodPost, s.path(escrowID, "/approve/government")), s.buyer, requestcontext.RoleCitizen)
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *EscrowHandlerSuite) TestGetAndApprovals() {
	escrowID := s.createEscrow()

	rec := s.do(testutil.NewRequest(s.T(), http.MethodGet, s.path(escrowID, "")), s.buyer, requestcontext.RoleCitizen)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(testutil.NewRequest(s.T(), http.MethodGet, s.path(escrowID, "/approvals")), s.buyer, requestcontext.RoleCitizen)
	s.Require().Equal(http.StatusOK, rec.Code)

	var approvals handler.ApprovalsResponse
	testutil.DecodeJSON(s.T(), rec, &approvals)
	s.False(approvals.Complete)
}

func (s *EscrowHandlerSuite) TestGetUnknown() {
	rec := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/escrows/999"), s.buyer, requestcontext.RoleCitizen)
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/escrows/abc"), s.buyer, requestcontext.RoleCitizen)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *EscrowHandlerSuite) TestList() {
	s.createEscrow()

	rec := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/escrows"), s.buyer, requestcontext.RoleCitizen)
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp []handler.EscrowResponse
	testutil.DecodeJSON(s.T(), rec, &resp)
	s.Len(resp, 1)
}

func (s *EscrowHandlerSuite) TestCancel() {
	escrowID := s.createEscrow()

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, s.path(escrowID, "/cancel"), map[string]any{
		"reason": "withdrawn",
	})
	rec := s.do(req, s.buyer, requestcontext.RoleCitizen)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp handler.EscrowResponse
	testutil.DecodeJSON(s.T(), rec, &resp)
	s.Equal("CANCELLED", resp.Status)
}

func (s *EscrowHandlerSuite) TestAuditTrail() {
	escrowID := s.createEscrow()

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, s.path(escrowID, "/fund"), map[string]any{"deposited": 1005})
	rec := s.do(req, s.buyer, requestcontext.RoleCitizen)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(testutil.NewRequest(s.T(), http.MethodGet, s.path(escrowID, "/audit")), s.buyer, requestcontext.RoleCitizen)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var trail []handler.AuditEntryResponse
	testutil.DecodeJSON(s.T(), rec, &trail)
	s.Require().Len(trail, 2)
	s.Equal(audit.ActionEscrowCreated, trail[0].Action)
	s.Equal(audit.ActionEscrowFunded, trail[1].Action)
	s.Equal(s.buyer.String(), trail[1].Actor)
}

func (s *EscrowHandlerSuite) path(escrowID uint64, suffix string) string {
	return "/escrows/" + strconv.FormatUint(escrowID, 10) + suffix
}
