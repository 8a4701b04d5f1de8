package referral

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aura-bot/internal/apperrors"
	"aura-bot/internal/models"
	"aura-bot/internal/testutil"
)

func TestRecordIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	ledger := NewLedger(db)

	a := testutil.CreateUser(t, db, 100, models.LevelFerrum)
	b := testutil.CreateUser(t, db, 200, models.LevelFerrum)
	c := testutil.CreateUser(t, db, 300, models.LevelFerrum)

	created, err := ledger.Record(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = ledger.Record(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, created)

	created, err = ledger.Record(ctx, c.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, created)

	var edges []models.Referral
	require.NoError(t, db.Where("invited_id = ?", b.ID).Find(&edges).Error)
	require.Len(t, edges, 1)
	assert.Equal(t, a.ID, edges[0].InviterID)

	inviter, err := ledger.InviterOf(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, inviter)
	assert.Equal(t, int64(100), inviter.TelegramID)
}

func TestRecordRejectsSelfAndUnknownInviter(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	ledger := NewLedger(db)
	a := testutil.CreateUser(t, db, 100, models.LevelFerrum)

	_, err := ledger.Record(ctx, a.ID, a.ID)
	assert.ErrorIs(t, err, apperrors.ErrSelfReferral)

	_, err = ledger.Record(ctx, a.ID+42, a.ID)
	assert.ErrorIs(t, err, apperrors.ErrInviterNotFound)

	inviter, err := ledger.InviterOf(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, inviter)
}

func TestCountThisMonth(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	ledger := NewLedger(db)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.Local)
	ledger.now = func() time.Time { return now }

	inviter := testutil.CreateUser(t, db, 1, models.LevelFerrum)
	stamps := []time.Time{
		time.Date(2026, 2, 28, 23, 59, 0, 0, time.Local),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local),
		time.Date(2026, 3, 10, 9, 30, 0, 0, time.Local),
	}
	for i, at := range stamps {
		invited := testutil.CreateUser(t, db, int64(10+i), models.LevelFerrum)
		require.NoError(t, db.Create(&models.Referral{InviterID: inviter.ID, InvitedID: invited.ID, CreatedAt: at}).Error)
	}

	count, err := ledger.CountThisMonth(ctx, inviter.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	total, err := ledger.CountAll(ctx, inviter.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	now = time.Date(2026, 4, 1, 0, 0, 1, 0, time.Local)
	count, err = ledger.CountThisMonth(ctx, inviter.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestListAndEdge(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	ledger := NewLedger(db)

	inviter := testutil.CreateUser(t, db, 1, models.LevelAurum)
	first := testutil.CreateUser(t, db, 2, models.LevelFerrum)
	second := testutil.CreateUser(t, db, 3, models.LevelFerrum)
	stranger := testutil.CreateUser(t, db, 4, models.LevelFerrum)

	_, err := ledger.Record(ctx, inviter.ID, first.ID)
	require.NoError(t, err)
	_, err = ledger.Record(ctx, inviter.ID, second.ID)
	require.NoError(t, err)

	edges, err := ledger.List(ctx, inviter.ID, 10)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	require.NotNil(t, edges[0].Invited)

	edge, err := Edge(db, inviter.ID, first.ID)
	require.NoError(t, err)
	require.NotNil(t, edge)
	assert.Equal(t, first.ID, edge.InvitedID)
	assert.Nil(t, edge.GrantedLevel)

	edge, err = Edge(db, inviter.ID, stranger.ID)
	require.NoError(t, err)
	assert.Nil(t, edge)
}

func TestStartOfMonth(t *testing.T) {
	got := StartOfMonth(time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), got)
}
