package service

import (
	"context"
	"testing"

	"fleetbook/internal/db"
	apperrors "fleetbook/internal/errors"
	"fleetbook/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToGroupOrdersByCreation(t *testing.T) {
	f := newFixture(t)
	g := groupOfThree(t, f)

	assert.Equal(t, 3, g.Group.TotalQuantity)
	require.Len(t, g.Members, 3)
	for i, want := range []string{"a", "b", "c"} {
		m := g.Members[i]
		assert.Equal(t, want, m.ID)
		assert.Equal(t, i+1, m.GroupIndex)
		assert.Equal(t, i == 0, m.IsGroupPrimary)
	}
	assert.Equal(t, "Vespa 1", g.Members[0].DisplayID)

	got, err := f.svc.GetGroup(context.Background(), g.Group.ID)
	require.NoError(t, err)
	assert.Len(t, got.Members, 3)
}

func TestConvertToGroupValidation(t *testing.T) {
	f := newFixture(t)
	f.vehicle(t, "a", "shop-1", 30, testNow)
	f.vehicle(t, "b", "shop-1", 30, testNow)
	f.vehicle(t, "foreign", "shop-2", 30, testNow)
	require.NoError(t, f.store.Update(context.Background(), func(repo repository.Repository) error {
		return repo.InsertVehicle(context.Background(), &db.Vehicle{ID: "van", ShopID: "shop-1", Type: "van", IsAvailable: true})
	}))
	ctx := context.Background()
	req := func(ids ...string) ConvertGroupRequest {
		return ConvertGroupRequest{ShopID: "shop-1", Name: "Fleet", VehicleIDs: ids}
	}

	_, err := f.svc.ConvertToGroup(ctx, req("a"), shopUser)
	assert.True(t, apperrors.IsValidation(err))
	_, err = f.svc.ConvertToGroup(ctx, req("a", "a"), shopUser)
	assert.True(t, apperrors.IsValidation(err))
	_, err = f.svc.ConvertToGroup(ctx, req("a", "b"), otherShop)
	assert.True(t, apperrors.IsForbidden(err))
	_, err = f.svc.ConvertToGroup(ctx, req("a", "missing"), shopUser)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = f.svc.ConvertToGroup(ctx, req("a", "foreign"), adminUser)
	assert.True(t, apperrors.IsValidation(err))
	_, err = f.svc.ConvertToGroup(ctx, req("a", "van"), shopUser)
	assert.True(t, apperrors.IsValidation(err))

	// nothing was half-applied
	v, err := f.svc.GetVehicle(ctx, "a")
	require.NoError(t, err)
	assert.False(t, v.InGroup())

	_, err = f.svc.ConvertToGroup(ctx, req("a", "b"), shopUser)
	require.NoError(t, err)
	_, err = f.svc.ConvertToGroup(ctx, req("a", "b"), shopUser)
	assert.True(t, apperrors.IsValidation(err), "members cannot join a second group")
}

func TestDissolveGroup(t *testing.T) {
	f := newFixture(t)
	g := groupOfThree(t, f)
	ctx := context.Background()

	require.NoError(t, f.svc.DissolveGroup(ctx, g.Group.ID, shopUser))
	v, err := f.svc.GetVehicle(ctx, "a")
	require.NoError(t, err)
	assert.False(t, v.InGroup())
	assert.Zero(t, v.GroupIndex)

	_, err = f.svc.GetGroup(ctx, g.Group.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDissolveGroupWithReservationsIsConflict(t *testing.T) {
	f := newFixture(t)
	g := groupOfThree(t, f)
	f.book(t, "b", "2024-06-10", "2024-06-11")

	err := f.svc.DissolveGroup(context.Background(), g.Group.ID, adminUser)
	assert.True(t, apperrors.IsConflict(err))
}
