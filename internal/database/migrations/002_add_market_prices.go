package migrations

import (
	"github.com/lunaris-colony/nexus-api/internal/pricing"
	"gorm.io/gorm"
)

// AddMarketPrices creates the market price table
func AddMarketPrices(db *gorm.DB) error {
	return db.AutoMigrate(&pricing.MarketPrice{})
}
