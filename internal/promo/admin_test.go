package promo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aura-bot/internal/apperrors"
	"aura-bot/internal/models"
	"aura-bot/internal/testutil"
)

func TestCreateValidates(t *testing.T) {
	ctx := context.Background()
	svc := NewService(testutil.NewDB(t))

	_, err := svc.Create(ctx, CreateInput{Code: "x"})
	assert.ErrorIs(t, err, apperrors.ErrPromoMalformed)

	_, err = svc.Create(ctx, CreateInput{Code: "ZERO", Type: models.PromoDiscount})
	assert.ErrorIs(t, err, apperrors.ErrPromoInvalid)

	_, err = svc.Create(ctx, CreateInput{Code: "GOLD", Type: models.PromoLevel, Level: "gold"})
	assert.ErrorIs(t, err, apperrors.ErrPromoInvalid)

	_, err = svc.Create(ctx, CreateInput{Code: "NEG", Discount: 5, MaxUses: intPtr(0)})
	assert.ErrorIs(t, err, apperrors.ErrPromoInvalid)

	created, err := svc.Create(ctx, CreateInput{Code: "welcome", Discount: 15})
	require.NoError(t, err)
	assert.Equal(t, "WELCOME", created.Code)
	assert.Equal(t, models.PromoDiscount, created.Type)
	assert.True(t, created.IsActive)

	_, err = svc.Create(ctx, CreateInput{Code: "WELCOME", Discount: 10})
	assert.ErrorIs(t, err, apperrors.ErrPromoExists)
}

func TestUpdateDeactivateAndClearLimits(t *testing.T) {
	ctx := context.Background()
	svc := NewService(testutil.NewDB(t))

	created, err := svc.Create(ctx, CreateInput{Code: "SPRING", Discount: 10, MaxUses: intPtr(5)})
	require.NoError(t, err)

	off := false
	updated, err := svc.Update(ctx, created.ID, UpdateInput{IsActive: &off, ClearMaxUses: true})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Nil(t, updated.MaxUses)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Nil(t, got.MaxUses)
	assert.Zero(t, got.Redemptions)

	bad := 0
	_, err = svc.Update(ctx, created.ID, UpdateInput{Discount: &bad})
	assert.ErrorIs(t, err, apperrors.ErrPromoInvalid)

	_, err = svc.Update(ctx, created.ID+10, UpdateInput{})
	assert.ErrorIs(t, err, apperrors.ErrPromoNotFound)
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc := NewService(db)
	user := testutil.CreateUser(t, db, 1, models.LevelFerrum)

	for _, code := range []string{"SUMMER10", "SUMMER20", "WINTER"} {
		_, err := svc.Create(ctx, CreateInput{Code: code, Discount: 10})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, 1, 10, "summer")
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Data, 2)

	_, err = svc.Redeem(ctx, "WINTER", user.ID)
	require.NoError(t, err)

	all, err := svc.List(ctx, 1, 10, "")
	require.NoError(t, err)
	require.Equal(t, int64(3), all.Total)

	var winter models.PromoCode
	require.NoError(t, db.Where("code = ?", "WINTER").Take(&winter).Error)
	details, err := svc.Get(ctx, winter.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), details.Redemptions)

	require.NoError(t, svc.Delete(ctx, winter.ID))
	assert.ErrorIs(t, svc.Delete(ctx, winter.ID), apperrors.ErrPromoNotFound)

	var left int64
	require.NoError(t, db.Model(&models.PromoRedemption{}).Count(&left).Error)
	assert.Zero(t, left)
}
