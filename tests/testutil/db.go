package testutil

import (
	"fmt"
	"testing"

	"github.com/homeswift/homeswift-api/config"
	"github.com/homeswift/homeswift-api/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a migrated in-memory SQLite database. A single connection keeps
// every query on the same in-memory database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, config.AutoMigrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// CreateUser stores an account with subject "auth0|<name>" and email "<name>@test.com"
func CreateUser(t *testing.T, db *gorm.DB, name, role string) *models.User {
	t.Helper()

	user := &models.User{
		Auth0ID: "auth0|" + name,
		Name:    name,
		Email:   fmt.Sprintf("%s@test.com", name),
		Phone:   "+15550100",
		Role:    role,
	}
	require.NoError(t, db.Create(user).Error)

	if role == models.RoleProvider {
		require.NoError(t, db.Create(&models.ProviderProfile{
			UserID:             user.ID,
			VerificationStatus: models.VerificationPending,
		}).Error)
	}
	return user
}
