package repo

import (
	"testing"

	"github.com/libequip/loans/internal/db"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *db.DB {
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// A single connection keeps every session on the same in-memory
	// database
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = gormDB.AutoMigrate(&db.Equipment{}, &db.Book{}, &db.Schedule{}, &db.Loan{})
	require.NoError(t, err)

	return &db.DB{DB: gormDB}
}
