package claims

import (
	"time"

	"gorm.io/gorm"
)

// DailyPool is the shared claim pool for one (date, resource type) pair.
// Created lazily on first access each day, mutated only by the claim
// transaction, never deleted. Invariant: 0 <= claimed <= total.
type DailyPool struct {
	gorm.Model   `json:"-"`
	PoolDate     string    `gorm:"uniqueIndex:idx_daily_pools_date_type" json:"pool_date"`
	ResourceType string    `gorm:"uniqueIndex:idx_daily_pools_date_type" json:"resource_type"`
	Total        int64     `json:"total"`
	Claimed      int64     `json:"claimed"`
	LastUpdate   time.Time `json:"last_update"`
}

// UserClaim marks one user's successful claim of one resource type on one
// date. The unique index makes the insert the once-per-day enforcement
// point; rows are write-once.
type UserClaim struct {
	gorm.Model   `json:"-"`
	UserID       string    `gorm:"uniqueIndex:idx_user_claims_user_date_type" json:"user_id"`
	ClaimDate    string    `gorm:"uniqueIndex:idx_user_claims_user_date_type" json:"claim_date"`
	ResourceType string    `gorm:"uniqueIndex:idx_user_claims_user_date_type" json:"resource_type"`
	Amount       int64     `json:"amount"`
	ClaimedAt    time.Time `json:"claimed_at"`
}

// ClaimResponse is the payload of an accepted claim.
type ClaimResponse struct {
	ResourceType string `json:"resource_type"`
	AssetKey     string `json:"asset_key"`
	Amount       int64  `json:"amount"`
	Remaining    int64  `json:"remaining"`
	ClaimStreak  int    `json:"claim_streak"`
}

// PoolStatus is the API view of one resource pool for today.
type PoolStatus struct {
	ResourceType string  `json:"resource_type"`
	Name         string  `json:"name"`
	Rarity       string  `json:"rarity"`
	ClaimAmount  int64   `json:"claim_amount"`
	Total        int64   `json:"total"`
	Claimed      int64   `json:"claimed"`
	Remaining    int64   `json:"remaining"`
	Percentage   float64 `json:"percentage"`
	SoldOut      bool    `json:"sold_out"`
}

// ClaimHistory summarizes a user's past claims: the days with at least one
// claim and the claims made on each.
type ClaimHistory struct {
	TotalDays int                    `json:"total_days"`
	Claims    map[string][]UserClaim `json:"claims"`
}
