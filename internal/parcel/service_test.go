package parcel_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"landledger/internal/parcel"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/requestcontext"
)

type ParcelServiceSuite struct {
	suite.Suite

	owner     id.UserID
	registrar id.UserID
	now       time.Time
	ctx       context.Context

	service *parcel.Service
}

func TestParcelServiceSuite(t *testing.T) {
	suite.Run(t, new(ParcelServiceSuite))
}

func (s *ParcelServiceSuite) SetupTest() {
	s.owner = id.UserID(uuid.New())
	s.registrar = id.UserID(uuid.New())
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.service = parcel.NewService(parcel.NewInMemoryStore())
	_, err := s.service.Register(s.ctx, s.registrar, "KAD-2026-0001", s.owner, "bnd-1", "doc-1")
	s.Require().NoError(err)
}

func (s *ParcelServiceSuite) TestRegisterDuplicateRejected() {
	_, err := s.service.Register(s.ctx, s.registrar, "KAD-2026-0001", s.owner, "", "")
	s.Require().True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ParcelServiceSuite) TestOnlyOwnerLists() {
	_, err := s.service.SetForSale(s.ctx, id.UserID(uuid.New()), "KAD-2026-0001", 1000)
	s.Require().ErrorIs(err, parcel.ErrOwnerMismatch)

	p, err := s.service.SetForSale(s.ctx, s.owner, "KAD-2026-0001", 1000)
	s.Require().NoError(err)
	s.True(p.ForSale)
	s.Equal(uint64(1000), p.Price)
}

func (s *ParcelServiceSuite) TestDisputedParcelCannotBeListedOrTransferred() {
	surveyor := id.UserID(uuid.New())
	s.Require().NoError(s.service.FlagDispute(s.ctx, surveyor, "KAD-2026-0001", "boundary overlap"))

	_, err := s.service.SetForSale(s.ctx, s.owner, "KAD-2026-0001", 1000)
	s.Require().ErrorIs(err, parcel.ErrDisputed)

	err = s.service.TransferOwnership(s.ctx, "KAD-2026-0001", s.owner, id.UserID(uuid.New()), 1000, "sale-1")
	s.Require().ErrorIs(err, parcel.ErrDisputed)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	// Resolution returns the parcel to ACTIVE and it becomes listable again.
	s.Require().NoError(s.service.ResolveDispute(s.ctx, id.UserID(uuid.New()), "KAD-2026-0001"))
	_, err = s.service.SetForSale(s.ctx, s.owner, "KAD-2026-0001", 1000)
	s.Require().NoError(err)
}

func (s *ParcelServiceSuite) TestDoubleDisputeRejected() {
	surveyor := id.UserID(uuid.New())
	s.Require().NoError(s.service.FlagDispute(s.ctx, surveyor, "KAD-2026-0001", "overlap"))

	err := s.service.FlagDispute(s.ctx, surveyor, "KAD-2026-0001", "overlap again")
	s.Require().True(dErrors.HasCode(err, dErrors.CodeWrongState))

	err = s.service.ResolveDispute(s.ctx, surveyor, "KAD-2026-0001")
	s.Require().NoError(err)
	err = s.service.ResolveDispute(s.ctx, surveyor, "KAD-2026-0001")
	s.Require().ErrorIs(err, parcel.ErrNotDisputed)
}

func (s *ParcelServiceSuite) TestTransferOwnershipReplayFailsLoudly() {
	buyer := id.UserID(uuid.New())
	_, err := s.service.SetForSale(s.ctx, s.owner, "KAD-2026-0001", 1000)
	s.Require().NoError(err)

	s.Require().NoError(s.service.TransferOwnership(s.ctx, "KAD-2026-0001", s.owner, buyer, 1000, "escrow-1"))

	p, err := s.service.GetParcel(s.ctx, "KAD-2026-0001")
	s.Require().NoError(err)
	s.Equal(buyer, p.Owner)
	s.False(p.ForSale)
	s.Equal(uint64(0), p.Price)
	s.Equal(parcel.StatusActive, p.Status)

	err = s.service.TransferOwnership(s.ctx, "KAD-2026-0001", s.owner, buyer, 1000, "escrow-1")
	s.Require().True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ParcelServiceSuite) TestTransferFromStaleOwnerRejected() {
	buyerA := id.UserID(uuid.New())
	buyerB := id.UserID(uuid.New())
	_, err := s.service.SetForSale(s.ctx, s.owner, "KAD-2026-0001", 1000)
	s.Require().NoError(err)

	s.Require().NoError(s.service.TransferOwnership(s.ctx, "KAD-2026-0001", s.owner, buyerA, 1000, "escrow-1"))

	// A second settlement still naming the original owner must not move the
	// title away from buyer A.
	err = s.service.TransferOwnership(s.ctx, "KAD-2026-0001", s.owner, buyerB, 1000, "escrow-2")
	s.Require().ErrorIs(err, parcel.ErrOwnerMismatch)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	p, err := s.service.GetParcel(s.ctx, "KAD-2026-0001")
	s.Require().NoError(err)
	s.Equal(buyerA, p.Owner)
}

func (s *ParcelServiceSuite) TestMarkDistributedRetiresParcel() {
	s.Require().NoError(s.service.MarkDistributed(s.ctx, "KAD-2026-0001", "plan-1"))

	p, err := s.service.GetParcel(s.ctx, "KAD-2026-0001")
	s.Require().NoError(err)
	s.Equal(parcel.StatusTransferred, p.Status)

	err = s.service.MarkDistributed(s.ctx, "KAD-2026-0001", "plan-1")
	s.Require().True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ParcelServiceSuite) TestListByOwner() {
	_, err := s.service.Register(s.ctx, s.registrar, "KAD-2026-0002", s.owner, "", "")
	s.Require().NoError(err)

	parcels, err := s.service.ListByOwner(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Len(parcels, 2)

	parcels, err = s.service.ListByOwner(s.ctx, id.UserID(uuid.New()))
	s.Require().NoError(err)
	s.Empty(parcels)
}

func (s *ParcelServiceSuite) TestGetUnknown() {
	_, err := s.service.GetParcel(s.ctx, "KAD-9999-9999")
	s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
