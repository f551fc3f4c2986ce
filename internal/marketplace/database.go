package marketplace

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateListing inserts a new listing inside tx.
func (d *Database) CreateListing(tx *gorm.DB, listing *Listing) error {
	if err := tx.Create(listing).Error; err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

// GetListing retrieves a listing by its public ID. Returns nil when absent.
func (d *Database) GetListing(listingID string) (*Listing, error) {
	var listing Listing
	if err := d.db.Where("listing_id = ?", listingID).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}
	return &listing, nil
}

// TransitionStatus atomically moves a listing out of the active state. The
// conditional update is what prevents two purchases (or a purchase and a
// cancel) racing the same listing; exactly one transition wins.
func (d *Database) TransitionStatus(tx *gorm.DB, listingID, toStatus string, updates map[string]interface{}) (bool, error) {
	fields := map[string]interface{}{"status": toStatus}
	for k, v := range updates {
		fields[k] = v
	}

	res := tx.Model(&Listing{}).
		Where("listing_id = ? AND status = ?", listingID, StatusActive).
		Updates(fields)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update listing status: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// GetActiveListings returns active, unexpired listings, newest first,
// optionally filtered by resource type.
func (d *Database) GetActiveListings(resourceType string, now time.Time) ([]Listing, error) {
	query := d.db.Where("status = ? AND expires_at > ?", StatusActive, now)
	if resourceType != "" {
		query = query.Where("resource_type = ?", resourceType)
	}

	var listings []Listing
	if err := query.Order("created_at DESC").Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}
	return listings, nil
}

// GetListingsBySeller returns the seller's active listings, newest first.
func (d *Database) GetListingsBySeller(sellerID string) ([]Listing, error) {
	var listings []Listing
	if err := d.db.Where("seller_id = ? AND status = ?", sellerID, StatusActive).
		Order("created_at DESC").
		Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch seller listings: %w", err)
	}
	return listings, nil
}

// GetExpiredActiveListings returns active listings whose expiry has passed.
func (d *Database) GetExpiredActiveListings(now time.Time) ([]Listing, error) {
	var listings []Listing
	if err := d.db.Where("status = ? AND expires_at <= ?", StatusActive, now).
		Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch expired listings: %w", err)
	}
	return listings, nil
}

// CreateTrade appends an immutable trade record inside tx.
func (d *Database) CreateTrade(tx *gorm.DB, trade *Trade) error {
	if err := tx.Create(trade).Error; err != nil {
		return fmt.Errorf("failed to record trade: %w", err)
	}
	return nil
}

// GetTradesByUser returns trades where the user was buyer or seller,
// newest first.
func (d *Database) GetTradesByUser(userID string) ([]Trade, error) {
	var trades []Trade
	if err := d.db.Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch trades: %w", err)
	}
	return trades, nil
}

// Transaction runs fn in a storage transaction.
func (d *Database) Transaction(fn func(tx *gorm.DB) error) error {
	return d.db.Transaction(fn)
}
