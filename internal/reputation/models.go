package reputation

import (
	"gorm.io/gorm"
)

// Reputation is one colonist's standing: cumulative points, the tier derived
// from them, a completed-trades counter and the consecutive-day claim streak.
// Dates are stored as YYYY-MM-DD strings.
type Reputation struct {
	gorm.Model      `json:"-"`
	UserID          string `gorm:"uniqueIndex" json:"user_id"`
	TotalPoints     int64  `json:"total_points"`
	Tier            int    `json:"tier"`
	TradesCompleted int    `json:"trades_completed"`
	ClaimStreak     int    `json:"claim_streak"`
	LastClaimDate   string `json:"last_claim_date"`
	LastActiveDate  string `json:"last_active_date"`
}

// ReputationResponse is the API view of a reputation record, including the
// human-readable tier name and the zero state for users without a record.
type ReputationResponse struct {
	UserID          string `json:"user_id"`
	TotalPoints     int64  `json:"total_points"`
	Tier            int    `json:"tier"`
	TierName        string `json:"tier_name"`
	TradesCompleted int    `json:"trades_completed"`
	ClaimStreak     int    `json:"claim_streak"`
	LastActiveDate  string `json:"last_active_date,omitempty"`
}
