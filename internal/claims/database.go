package claims

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

// GetPool fetches the pool row for (date, resourceType), creating it inside
// tx with the configured capacity if it does not exist yet.
func (d *Database) GetPool(tx *gorm.DB, date, resourceType string, total int64, now time.Time) (*DailyPool, error) {
	var pool DailyPool
	err := tx.Where("pool_date = ? AND resource_type = ?", date, resourceType).First(&pool).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		pool = DailyPool{
			PoolDate:     date,
			ResourceType: resourceType,
			Total:        total,
			Claimed:      0,
			LastUpdate:   now,
		}
		if err := tx.Create(&pool).Error; err != nil {
			// A concurrent claim may have created the row first.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				if err := tx.Where("pool_date = ? AND resource_type = ?", date, resourceType).First(&pool).Error; err != nil {
					return nil, fmt.Errorf("failed to fetch pool: %w", err)
				}
				return &pool, nil
			}
			return nil, fmt.Errorf("failed to create pool: %w", err)
		}
		return &pool, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pool: %w", err)
	}
	return &pool, nil
}

// AdmitClaim performs the pool admission: claimed is incremented only while
// it is still below total. Returns false when the pool is sold out.
func (d *Database) AdmitClaim(tx *gorm.DB, date, resourceType string, now time.Time) (bool, error) {
	res := tx.Model(&DailyPool{}).
		Where("pool_date = ? AND resource_type = ? AND claimed < total", date, resourceType).
		UpdateColumns(map[string]interface{}{
			"claimed":     gorm.Expr("claimed + 1"),
			"last_update": now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update pool: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CreateClaimMarker inserts the write-once user claim record. A duplicate
// insert surfaces gorm.ErrDuplicatedKey via the unique index.
func (d *Database) CreateClaimMarker(tx *gorm.DB, claim *UserClaim) error {
	return tx.Create(claim).Error
}

// HasClaimed reports whether the user already holds a claim marker for the
// (date, resourceType) pair. Advisory: the unique index is the real guard.
func (d *Database) HasClaimed(userID, date, resourceType string) (bool, error) {
	var count int64
	if err := d.db.Model(&UserClaim{}).
		Where("user_id = ? AND claim_date = ? AND resource_type = ?", userID, date, resourceType).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check existing claim: %w", err)
	}
	return count > 0, nil
}

// GetPools returns all pool rows for a date.
func (d *Database) GetPools(date string) ([]DailyPool, error) {
	var pools []DailyPool
	if err := d.db.Where("pool_date = ?", date).Find(&pools).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch pools: %w", err)
	}
	return pools, nil
}

// GetUserClaims returns all of a user's claim markers, newest first.
func (d *Database) GetUserClaims(userID string) ([]UserClaim, error) {
	var userClaims []UserClaim
	if err := d.db.Where("user_id = ?", userID).
		Order("claim_date DESC").
		Find(&userClaims).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch user claims: %w", err)
	}
	return userClaims, nil
}

// Transaction runs fn in a storage transaction.
func (d *Database) Transaction(fn func(tx *gorm.DB) error) error {
	return d.db.Transaction(fn)
}
