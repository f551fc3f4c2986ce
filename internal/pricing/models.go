package pricing

import (
	"time"

	"gorm.io/gorm"
)

// Price bounds and step size for the fluctuation walk.
const (
	MinPrice     int64 = 5
	MaxPrice     int64 = 50
	MaxStep      int64 = 2
	DefaultPrice int64 = 10
)

// MarketPrice is the current market price of one tradable resource kind,
// moved by a bounded random walk.
type MarketPrice struct {
	gorm.Model   `json:"-"`
	ResourceKind string    `gorm:"uniqueIndex" json:"resource_kind"`
	Price        int64     `json:"price"`
	ChangePct    float64   `json:"change_pct"`
	LastUpdate   time.Time `json:"last_update"`
}
