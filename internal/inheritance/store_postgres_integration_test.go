//go:build integration

package inheritance_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landledger/internal/inheritance"
	id "landledger/pkg/domain"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/testutil/containers"
)

func TestPostgresPlanStore(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := inheritance.NewPostgres(pg.DB)
	ctx := context.Background()

	owner := id.UserID(uuid.New())
	heir := id.UserID(uuid.New())
	now := time.Now().UTC().Truncate(time.Microsecond)
	born := now.Add(-20 * inheritance.YearLength)

	plan := &inheritance.Plan{
		Owner:            owner,
		ParcelIDs:        []id.ParcelID{"KAD-2026-4001", "KAD-2026-4002"},
		Status:           inheritance.StatusActive,
		UseAgeMilestones: true,
		Heirs: []inheritance.Heir{
			{Identity: heir, Percentage: 100, ReleaseAge: 18, BirthDate: &born},
		},
		Milestones: []inheritance.Milestone{
			{Age: 18, Percentage: 50},
			{Age: 25, Percentage: 50},
		},
		WillRef:   "will/4001",
		CreatedAt: now,
	}

	handle, err := store.Create(ctx, plan)
	require.NoError(t, err)
	require.NotZero(t, handle)
	plan.ID = handle

	t.Run("nested documents round trip", func(t *testing.T) {
		got, err := store.Get(ctx, handle)
		require.NoError(t, err)
		assert.Equal(t, owner, got.Owner)
		assert.Equal(t, []id.ParcelID{"KAD-2026-4001", "KAD-2026-4002"}, got.ParcelIDs)
		assert.True(t, got.UseAgeMilestones)
		require.Len(t, got.Heirs, 1)
		assert.Equal(t, heir, got.Heirs[0].Identity)
		assert.EqualValues(t, 18, got.Heirs[0].ReleaseAge)
		require.NotNil(t, got.Heirs[0].BirthDate)
		assert.WithinDuration(t, born, *got.Heirs[0].BirthDate, time.Second)
		require.Len(t, got.Milestones, 2)
		assert.EqualValues(t, 25, got.Milestones[1].Age)
	})

	t.Run("owner and parcel guards see the active plan", func(t *testing.T) {
		has, err := store.OwnerHasPlanInForce(ctx, owner)
		require.NoError(t, err)
		assert.True(t, has)

		has, err = store.OwnerHasPlanInForce(ctx, id.UserID(uuid.New()))
		require.NoError(t, err)
		assert.False(t, has)

		inPlan, err := store.ParcelInPlanInForce(ctx, "KAD-2026-4002")
		require.NoError(t, err)
		assert.True(t, inPlan)

		inPlan, err = store.ParcelInPlanInForce(ctx, "KAD-2026-9999")
		require.NoError(t, err)
		assert.False(t, inPlan)
	})

	t.Run("second in-force plan for the owner conflicts", func(t *testing.T) {
		dup := &inheritance.Plan{
			Owner:     owner,
			ParcelIDs: []id.ParcelID{"KAD-2026-4003"},
			Status:    inheritance.StatusActive,
			CreatedAt: now,
		}
		_, err := store.Create(ctx, dup)
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("update persists trigger and claims", func(t *testing.T) {
		triggered := now.Add(time.Hour)
		plan.Status = inheritance.StatusTriggered
		plan.DeathCertRef = "cert/4001"
		plan.TriggeredAt = &triggered
		plan.Heirs[0].Claimed = true
		plan.Heirs[0].ClaimedShare = 50
		require.NoError(t, store.Update(ctx, plan))

		got, err := store.Get(ctx, handle)
		require.NoError(t, err)
		assert.Equal(t, inheritance.StatusTriggered, got.Status)
		assert.Equal(t, "cert/4001", got.DeathCertRef)
		require.NotNil(t, got.TriggeredAt)
		assert.True(t, got.Heirs[0].Claimed)
		assert.EqualValues(t, 50, got.Heirs[0].ClaimedShare)
	})

	t.Run("terminal plans release the guards", func(t *testing.T) {
		completed := now.Add(2 * time.Hour)
		plan.Status = inheritance.StatusCompleted
		plan.CompletedAt = &completed
		require.NoError(t, store.Update(ctx, plan))

		has, err := store.OwnerHasPlanInForce(ctx, owner)
		require.NoError(t, err)
		assert.False(t, has)

		inPlan, err := store.ParcelInPlanInForce(ctx, "KAD-2026-4001")
		require.NoError(t, err)
		assert.False(t, inPlan)
	})

	t.Run("list by owner", func(t *testing.T) {
		plans, err := store.ListByOwner(ctx, owner)
		require.NoError(t, err)
		require.Len(t, plans, 1)
		assert.Equal(t, handle, plans[0].ID)
	})

	t.Run("missing plan", func(t *testing.T) {
		_, err := store.Get(ctx, id.PlanID(99_999))
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
