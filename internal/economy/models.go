package economy

import (
	"gorm.io/gorm"
)

// Balance holds one user's balance of one asset (a resource kind or the
// lunaris currency). Amounts are whole units and never negative.
type Balance struct {
	gorm.Model `json:"-"`
	UserID     string `gorm:"uniqueIndex:idx_balances_user_asset" json:"user_id"`
	Asset      string `gorm:"uniqueIndex:idx_balances_user_asset" json:"asset"`
	Amount     int64  `json:"amount"`
}
