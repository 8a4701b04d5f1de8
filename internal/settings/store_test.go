package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"aura-bot/internal/models"
	"aura-bot/internal/testutil"
)

func TestStoreGetMissing(t *testing.T) {
	store := NewStore(testutil.NewDB(t), time.Minute)

	_, found, err := store.Get(context.Background(), "BASE_PRICE")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreSetInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	store := NewStore(testutil.NewDB(t), time.Hour)

	_, found, err := store.Get(ctx, "base_price")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Set(ctx, "base_price", " 200 ", "monthly price", "admin"))

	value, found, err := store.Get(ctx, "BASE_PRICE")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "200", value)

	require.NoError(t, store.Set(ctx, "BASE_PRICE", "250", "", "admin"))
	value, _, err = store.Get(ctx, "BASE_PRICE")
	require.NoError(t, err)
	assert.Equal(t, "250", value)

	rows, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "monthly price", rows[0].Description)
}

func TestStoreCacheExpires(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	store := NewStore(db, time.Minute)
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	require.NoError(t, store.Set(ctx, "CLOSED_MODE_ENABLED", "false", "", "test"))
	value, _, err := store.Get(ctx, "CLOSED_MODE_ENABLED")
	require.NoError(t, err)
	require.Equal(t, "false", value)

	// Written behind the store's back, invisible until the entry expires.
	require.NoError(t, db.Model(&models.Setting{}).Where("key = ?", "CLOSED_MODE_ENABLED").Update("value", "true").Error)
	value, _, _ = store.Get(ctx, "CLOSED_MODE_ENABLED")
	assert.Equal(t, "false", value)

	clock = clock.Add(2 * time.Minute)
	value, _, err = store.Get(ctx, "CLOSED_MODE_ENABLED")
	require.NoError(t, err)
	assert.Equal(t, "true", value)
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStore(testutil.NewDB(t), time.Hour)

	require.NoError(t, store.Set(ctx, "REFERRAL_MAX_BONUS", "30", "", "admin"))
	require.NoError(t, store.Delete(ctx, "REFERRAL_MAX_BONUS"))

	_, found, err := store.Get(ctx, "REFERRAL_MAX_BONUS")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreSkipsCachingLoadOverlappingWrite(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	store := NewStore(db, time.Hour)
	require.NoError(t, store.Set(ctx, "BASE_PRICE", "180", "", "admin"))

	// The write lands while the read that saw the old row is still running.
	testutil.AfterQuery(t, db, "settings", func(*gorm.DB) {
		require.NoError(t, store.Set(ctx, "BASE_PRICE", "200", "", "admin"))
	})

	value, _, err := store.Get(ctx, "BASE_PRICE")
	require.NoError(t, err)
	assert.Equal(t, "180", value)

	value, _, err = store.Get(ctx, "BASE_PRICE")
	require.NoError(t, err)
	assert.Equal(t, "200", value)
}
