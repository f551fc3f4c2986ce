package database

import (
	"fmt"

	"github.com/lunaris-colony/nexus-api/internal/claims"
	"github.com/lunaris-colony/nexus-api/internal/database/migrations"
	"github.com/lunaris-colony/nexus-api/internal/economy"
	"github.com/lunaris-colony/nexus-api/internal/reputation"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection.
// TranslateError is on so unique-index violations surface as
// gorm.ErrDuplicatedKey, which the claim marker logic depends on.
// Transactions begin immediate so concurrent claim transactions queue on
// the write lock instead of deadlocking on a shared-to-reserved upgrade.
func NewDatabase(path string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddMarketplace(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.AddMarketPrices(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate other schemas
	err = db.AutoMigrate(
		&claims.DailyPool{},
		&claims.UserClaim{},
		&economy.Balance{},
		&reputation.Reputation{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
