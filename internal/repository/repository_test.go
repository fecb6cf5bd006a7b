package repository

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/lshigami/Marmoset/internal/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an in-memory database migrated with the full schema. A
// single connection keeps the concurrent tests free of sqlite lock errors
// while still exercising the real conditional-update SQL.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.PracticeSession{},
		&model.PracticeSubmission{},
		&model.UsageRecord{},
		&model.CreditBalance{},
		&model.Conversation{},
		&model.ChatMessage{},
	))
	return db
}
