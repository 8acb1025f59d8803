package inheritance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"landledger/internal/inheritance"
	"landledger/internal/parcel"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/requestcontext"
)

const claimPeriod = 365 * 24 * time.Hour

type InheritanceServiceSuite struct {
	suite.Suite

	owner id.UserID
	heirA id.UserID
	heirB id.UserID
	gov   id.UserID
	now   time.Time
	ctx   context.Context

	parcels   *parcel.Service
	parcelIDs []id.ParcelID
	service   *inheritance.Service
}

func TestInheritanceServiceSuite(t *testing.T) {
	suite.Run(t, new(InheritanceServiceSuite))
}

func (s *InheritanceServiceSuite) SetupTest() {
	s.owner = id.UserID(uuid.New())
	s.heirA = id.UserID(uuid.New())
	s.heirB = id.UserID(uuid.New())
	s.gov = id.UserID(uuid.New())

	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.parcels = parcel.NewService(parcel.NewInMemoryStore())
	s.parcelIDs = []id.ParcelID{"KAD-2026-0100", "KAD-2026-0101"}
	for _, parcelID := range s.parcelIDs {
		_, err := s.parcels.Register(s.ctx, id.UserID(uuid.New()), parcelID, s.owner, "", "")
		s.Require().NoError(err)
	}

	var err error
	s.service, err = inheritance.NewService(inheritance.NewInMemoryStore(), s.parcels, inheritance.Config{
		ClaimPeriod: claimPeriod,
	})
	s.Require().NoError(err)
}

// bornYearsAgo returns a birth date making the heir the given age at s.now.
func (s *InheritanceServiceSuite) bornYearsAgo(years int) *time.Time {
	// Half a year of margin keeps the floored age stable.
	t := s.now.Add(-time.Duration(years)*inheritance.YearLength - inheritance.YearLength/2)
	return &t
}

func (s *InheritanceServiceSuite) milestonePlan() *inheritance.Plan {
	plan, err := s.service.CreatePlan(s.ctx, s.owner, s.parcelIDs, true, "will-ref-1")
	s.Require().NoError(err)

	_, err = s.service.AddHeir(s.ctx, s.owner, plan.ID, s.heirA, 60, 18, s.bornYearsAgo(20))
	s.Require().NoError(err)
	_, err = s.service.AddHeir(s.ctx, s.owner, plan.ID, s.heirB, 40, 0, nil)
	s.Require().NoError(err)

	_, err = s.service.AddMilestone(s.ctx, s.owner, plan.ID, 18, 50)
	s.Require().NoError(err)
	_, err = s.service.AddMilestone(s.ctx, s.owner, plan.ID, 25, 50)
	s.Require().NoError(err)
	return plan
}

func (s *InheritanceServiceSuite) trigger(planID id.PlanID) {
	_, err := s.service.Trigger(s.ctx, s.gov, requestcontext.RoleGovernment, planID, "death-cert-1")
	s.Require().NoError(err)
}

func (s *InheritanceServiceSuite) TestMilestoneGatedClaim() {
	plan := s.milestonePlan()
	s.trigger(plan.ID)

	// Age 20 meets only the age-18 milestone: 60% scaled by 50% is 30%.
	claimable, err := s.service.CheckClaimEligibility(s.ctx, s.heirA, plan.ID)
	s.Require().NoError(err)
	s.Equal(uint8(30), claimable)

	got, claimed, err := s.service.Claim(s.ctx, s.heirA, plan.ID)
	s.Require().NoError(err)
	s.Equal(uint8(30), claimed)
	s.Equal(inheritance.StatusExecuting, got.Status)

	// Release age 0 vests the full share regardless of milestones.
	got, claimed, err = s.service.Claim(s.ctx, s.heirB, plan.ID)
	s.Require().NoError(err)
	s.Equal(uint8(40), claimed)
	s.Equal(inheritance.StatusCompleted, got.Status)
	s.Require().NotNil(got.CompletedAt)

	// Completion retires every plan parcel in the ledger.
	for _, parcelID := range s.parcelIDs {
		p, err := s.parcels.GetParcel(s.ctx, parcelID)
		s.Require().NoError(err)
		s.Equal(parcel.StatusTransferred, p.Status)
	}
}

func (s *InheritanceServiceSuite) TestTriggerRequiresFullAllocation() {
	plan, err := s.service.CreatePlan(s.ctx, s.owner, s.parcelIDs, false, "")
	s.Require().NoError(err)
	_, err = s.service.AddHeir(s.ctx, s.owner, plan.ID, s.heirA, 60, 0, nil)
	s.Require().NoError(err)
	_, err = s.service.AddHeir(s.ctx, s.owner, plan.ID, s.heirB, 30, 0, nil)
	s.Require().NoError(err)

	_, err = s.service.Trigger(s.ctx, s.gov, requestcontext.RoleGovernment, plan.ID, "death-cert-1")
	s.Require().ErrorIs(err, inheritance.ErrIncompleteAllocation)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	got, err := s.service.GetPlan(s.ctx, plan.ID)
	s.Require().NoError(err)
	s.Equal(inheritance.StatusActive, got.Status)
}

func (s *InheritanceServiceSuite) TestHeirPercentagesNeverExceed100() {
	plan, err := s.service.CreatePlan(s.ctx, s.owner, s.parcelIDs, false, "")
	s.Require().NoError(err)
	_, err = s.service.AddHeir(s.ctx, s.owner, plan.ID, s.heirA, 60, 0, nil)
	s.Require().NoError(err)

	_, err = s.service.AddHeir(s.ctx, s.owner, plan.ID, s.heirB, 41, 0, nil)
	s.Require().ErrorIs(err, inheritance.ErrPercentageExceeded)

	got, err := s.service.GetPlan(s.ctx, plan.ID)
	s.Require().NoError(err)
	s.Equal(uint32(60), got.HeirPercentageSum())
}

func (s *InheritanceServiceSuite) TestReleaseAgeRequiresBirthDate() {
	plan, err := s.service.CreatePlan(s.ctx, s.owner, s.parcelIDs, true, "")
	s.Require().NoError(err)

	_, err = s.service.AddHeir(s.ctx, s.owner, plan.ID, s.heirA, 60, 18, nil)
	s.Require().ErrorIs(err, inheritance.ErrBirthDateRequired)
}

func (s *InheritanceServiceSuite) TestOnePlanPerOwner() {
	_, err := s.service.CreatePlan(s.ctx, s.owner, s.parcelIDs[:1], false, "")
	s.Require().NoError(err)

	_, err = s.service.CreatePlan(s.ctx, s.owner, s.parcelIDs[1:], false, "")
	s.Require().ErrorIs(err, inheritance.ErrPlanExists)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *InheritanceServiceSuite) TestConcurrentPlanCreationSingleWinner() {
	const attempts = 16

	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.CreatePlan(s.ctx, s.owner, s.parcelIDs, false, "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var created int
	for err := range results {
		if err == nil {
			created++
			continue
		}
		s.Require().ErrorIs(err, inheritance.ErrPlanExists)
	}
	s.Equal(1, created)
}

// stalePlanStore reports no plans in force regardless of contents, simulating
// an existence check raced by another instance's insert.
type stalePlanStore struct {
	*inheritance.InMemoryStore
}

func (stalePlanStore) OwnerHasPlanInForce(context.Context, id.UserID) (bool, error) {
	return false, nil
}

func (s *InheritanceServiceSuite) TestStoreBackstopsOnePlanPerOwner() {
	service, err := inheritance.NewService(stalePlanStore{inheritance.NewInMemoryStore()}, s.parcels, inheritance.Config{
		ClaimPeriod: claimPeriod,
	})
	s.Require().NoError(err)

	_, err = service.CreatePlan(s.ctx, s.owner, s.parcelIDs[:1], false, "")
	s.Require().NoError(err)

	// The existence check sees nothing, so only the store's in-force
	// constraint stands between the owner and a second plan.
	_, err = service.CreatePlan(s.ctx, s.owner, s.parcelIDs[1:], false, "")
	s.Require().ErrorIs(err, inheritance.ErrPlanExists)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *InheritanceServiceSuite) TestDuplicateParcelInPlanRejected() {
	_, err := s.service.CreatePlan(s.ctx, s.owner, []id.ParcelID{s.parcelIDs[0], s.parcelIDs[0]}, false, "")
	s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *InheritanceServiceSuite) TestTriggerAfterParcelSaleRejected() {
	plan, err := s.service.CreatePlan(s.ctx, s.owner, s.parcelIDs, false, "")
	s.Require().NoError(err)
	_, err = s.service.AddHeir(s.ctx, s.owner, plan.ID, s.heirA, 100, 0, nil)
	s.Require().NoError(err)

	// The owner sells one of the plan parcels before the plan is triggered.
	buyer := id.UserID(uuid.New())
	s.Require().NoError(s.parcels.TransferOwnership(s.ctx, s.parcelIDs[1], s.owner, buyer, 1000, "sale-7"))

	_, err = s.service.Trigger(s.ctx, s.gov, requestcontext.RoleGovernment, plan.ID, "death-cert-1")
	s.Require().ErrorIs(err, inheritance.ErrParcelNotHeld)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	got, err := s.service.GetPlan(s.ctx, plan.ID)
	s.Require().NoError(err)
	s.Equal(inheritance.StatusActive, got.Status)
}

func (s *InheritanceServiceSuite) TestParcelInOnePlanOnly() {
	_, err := s.service.CreatePlan(s.ctx, s.owner, s.parcelIDs[:1], false, "")
	s.Require().NoError(err)

	other := id.UserID(uuid.New())
	_, err = s.parcels.Register(s.ctx, id.UserID(uuid.New()), "KAD-2026-0200", other, "", "")
	s.Require().NoError(err)

	// The other owner cannot wrap someone else's parcel into their plan.
	_, err = s.service.CreatePlan(s.ctx, other, []id.ParcelID{"KAD-2026-0200", s.parcelIDs[0]}, false, "")
	s.Require().True(dErrors.HasCode(err, dErrors.CodeValidation))

	// Even after the parcel changes hands, it stays bound to the plan it
	// already backs.
	err = s.parcels.TransferOwnership(s.ctx, s.parcelIDs[0], s.owner, other, 1, "sale-1")
	s.Require().NoError(err)
	_, err = s.service.CreatePlan(s.ctx, other, []id.ParcelID{"KAD-2026-0200", s.parcelIDs[0]}, false, "")
	s.Require().ErrorIs(err, inheritance.ErrParcelInPlan)
}

func (s *InheritanceServiceSuite) TestCancelReleasesParcels() {
	plan, err := s.service.CreatePlan(s.ctx, s.owner, s.parcelIDs, false, "")
	s.Require().NoError(err)

	got, err := s.service.CancelPlan(s.ctx, s.owner, plan.ID)
	s.Require().NoError(err)
	s.Equal(inheritance.StatusCancelled, got.Status)

	// The same parcels may back a fresh plan once the old one is cancelled.
	_, err = s.service.CreatePlan(s.ctx, s.owner, s.parcelIDs, false, "")
	s.Require().NoError(err)
}

func (s *InheritanceServiceSuite) TestRemoveHeir() {
	plan, err := s.service.CreatePlan(s.ctx, s.owner, s.parcelIDs, false, "")
	s.Require().NoError(err)
	_, err = s.service.AddHeir(s.ctx, s.owner, plan.ID, s.heirA, 60, 0, nil)
	s.Require().NoError(err)
	_, err = s.service.AddHeir(s.ctx, s.owner, plan.ID, s.heirB, 40, 0, nil)
	s.Require().NoError(err)

	got, err := s.service.RemoveHeir(s.ctx, s.owner, plan.ID, 0)
	s.Require().NoError(err)
	s.Len(got.Heirs, 1)
	s.Equal(s.heirB, got.Heirs[0].Identity)

	_, err = s.service.RemoveHeir(s.ctx, s.owner, plan.ID, 5)
	s.Require().ErrorIs(err, inheritance.ErrHeirIndexOutOfRange)
}

func (s *InheritanceServiceSuite) TestDoubleClaimRejected() {
	plan := s.milestonePlan()
	s.trigger(plan.ID)

	_, _, err := s.service.Claim(s.ctx, s.heirB, plan.ID)
	s.Require().NoError(err)

	_, _, err = s.service.Claim(s.ctx, s.heirB, plan.ID)
	s.Require().ErrorIs(err, inheritance.ErrAlreadyClaimed)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *InheritanceServiceSuite) TestClaimWindowCloses() {
	plan := s.milestonePlan()
	s.trigger(plan.ID)

	late := requestcontext.WithTime(context.Background(), s.now.Add(claimPeriod+time.Hour))
	_, _, err := s.service.Claim(late, s.heirB, plan.ID)
	s.Require().ErrorIs(err, inheritance.ErrClaimExpired)
	s.True(dErrors.HasCode(err, dErrors.CodeDeadlineExceeded))
}

func (s *InheritanceServiceSuite) TestClaimBelowAgeFloorRejected() {
	plan, err := s.service.CreatePlan(s.ctx, s.owner, s.parcelIDs, true, "")
	s.Require().NoError(err)
	_, err = s.service.AddHeir(s.ctx, s.owner, plan.ID, s.heirA, 100, 18, s.bornYearsAgo(10))
	s.Require().NoError(err)
	_, err = s.service.AddMilestone(s.ctx, s.owner, plan.ID, 18, 100)
	s.Require().NoError(err)
	s.trigger(plan.ID)

	_, _, err = s.service.Claim(s.ctx, s.heirA, plan.ID)
	s.Require().ErrorIs(err, inheritance.ErrNotEligibleYet)

	got, err := s.service.GetPlan(s.ctx, plan.ID)
	s.Require().NoError(err)
	s.Equal(inheritance.StatusTriggered, got.Status)
	s.False(got.Heirs[0].Claimed)
}

func (s *InheritanceServiceSuite) TestStrangerCannotClaim() {
	plan := s.milestonePlan()
	s.trigger(plan.ID)

	_, _, err := s.service.Claim(s.ctx, id.UserID(uuid.New()), plan.ID)
	s.Require().ErrorIs(err, inheritance.ErrNotHeir)
}

func (s *InheritanceServiceSuite) TestOnlyOwnerEditsPlan() {
	plan, err := s.service.CreatePlan(s.ctx, s.owner, s.parcelIDs, false, "")
	s.Require().NoError(err)

	_, err = s.service.AddHeir(s.ctx, s.heirA, plan.ID, s.heirA, 100, 0, nil)
	s.Require().ErrorIs(err, inheritance.ErrNotPlanOwner)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *InheritanceServiceSuite) TestTriggerRequiresGovernmentRole() {
	plan, err := s.service.CreatePlan(s.ctx, s.owner, s.parcelIDs, false, "")
	s.Require().NoError(err)
	_, err = s.service.AddHeir(s.ctx, s.owner, plan.ID, s.heirA, 100, 0, nil)
	s.Require().NoError(err)

	_, err = s.service.Trigger(s.ctx, s.owner, requestcontext.RoleCitizen, plan.ID, "death-cert-1")
	s.Require().True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

// Vested share never shrinks as the heir ages, and reaches the full share
// once every milestone age is met.
func TestClaimableMonotonicInAge(t *testing.T) {
	birth := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	plan := &inheritance.Plan{
		UseAgeMilestones: true,
		Milestones: []inheritance.Milestone{
			{Age: 18, Percentage: 30},
			{Age: 21, Percentage: 30},
			{Age: 25, Percentage: 40},
		},
	}
	heir := inheritance.Heir{Percentage: 80, ReleaseAge: 18, BirthDate: &birth}

	var prev uint8
	for age := 0; age <= 30; age++ {
		now := birth.Add(time.Duration(age) * inheritance.YearLength).Add(time.Hour)
		got := plan.ClaimablePercent(heir, now)
		require.GreaterOrEqual(t, got, prev, "age %d", age)
		prev = got
	}
	assert.Equal(t, heir.Percentage, prev)

	at20 := birth.Add(20*inheritance.YearLength + time.Hour)
	assert.Equal(t, uint8(24), plan.ClaimablePercent(heir, at20)) // 80 x 30 / 100
}
