// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"aura-bot/internal/database"
	"aura-bot/internal/models"
)

// NewDB opens a private in-memory database with the full schema. A single
// connection keeps the in-memory database alive and serializes writers.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func CreateUser(t testing.TB, db *gorm.DB, telegramID int64, level models.Level) *models.User {
	t.Helper()
	user := &models.User{TelegramID: telegramID, Level: level, Username: "", FullName: "Test User"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func Link(t testing.TB, db *gorm.DB, inviter, invited *models.User) {
	t.Helper()
	require.NoError(t, db.Create(&models.Referral{InviterID: inviter.ID, InvitedID: invited.ID}).Error)
}

func Reload(t testing.TB, db *gorm.DB, user *models.User) *models.User {
	t.Helper()
	var fresh models.User
	require.NoError(t, db.First(&fresh, user.ID).Error)
	return &fresh
}
