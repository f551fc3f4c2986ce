package migrations

import (
	"github.com/lunaris-colony/nexus-api/internal/marketplace"
	"gorm.io/gorm"
)

// AddMarketplace creates the listing and trade tables and their indexes
func AddMarketplace(db *gorm.DB) error {
	if err := db.AutoMigrate(&marketplace.Listing{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&marketplace.Trade{}); err != nil {
		return err
	}

	// Raw SQL for composite indexes the automigration doesn't cover
	indexes := []string{
		// Active-listings scan: status filter plus expiry cutoff
		`CREATE INDEX IF NOT EXISTS idx_listings_status_expires
		 ON listings(status, expires_at)`,

		// Marketplace browse ordering
		`CREATE INDEX IF NOT EXISTS idx_listings_status_created
		 ON listings(status, created_at)`,

		// Trade history lookups per participant
		`CREATE INDEX IF NOT EXISTS idx_trades_buyer_created
		 ON trades(buyer_id, created_at)`,

		`CREATE INDEX IF NOT EXISTS idx_trades_seller_created
		 ON trades(seller_id, created_at)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
