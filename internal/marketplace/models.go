package marketplace

import (
	"time"

	"gorm.io/gorm"
)

const (
	StatusActive    = "active"
	StatusSold      = "sold"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

// Listing rules.
const (
	MinListingAmount = 10
	MinPricePerUnit  = 1
	ListingLifetime  = 7 * 24 * time.Hour
	FeePercent       = 5 // marketplace fee, floored to whole lunaris
)

// Listing is a sell order. The listed amount is debited from the seller at
// creation and held in escrow until the listing is sold, cancelled or
// expired.
type Listing struct {
	gorm.Model   `json:"-"`
	ListingID    string     `gorm:"uniqueIndex" json:"listing_id"`
	SellerID     string     `gorm:"index" json:"seller_id"`
	ResourceType string     `json:"resource_type"`
	Amount       int64      `json:"amount"`
	PricePerUnit int64      `json:"price_per_unit"`
	TotalPrice   int64      `json:"total_price"`
	Status       string     `gorm:"index" json:"status"`
	ExpiresAt    time.Time  `json:"expires_at"`
	BuyerID      *string    `json:"buyer_id,omitempty"`
	SoldAt       *time.Time `json:"sold_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Trade is the immutable record of a completed exchange.
type Trade struct {
	gorm.Model     `json:"-"`
	TradeID        string    `gorm:"uniqueIndex" json:"trade_id"`
	ListingID      string    `json:"listing_id"`
	BuyerID        string    `gorm:"index" json:"buyer_id"`
	SellerID       string    `gorm:"index" json:"seller_id"`
	ResourceType   string    `json:"resource_type"`
	Amount         int64     `json:"amount"`
	TotalPrice     int64     `json:"total_price"`
	Fee            int64     `json:"fee"`
	SellerEarnings int64     `json:"seller_earnings"`
	TradeType      string    `json:"trade_type"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateListingRequest is the body of a listing creation call.
type CreateListingRequest struct {
	ResourceType string `json:"resource_type" binding:"required"`
	Amount       int64  `json:"amount" binding:"required"`
	PricePerUnit int64  `json:"price_per_unit" binding:"required"`
}

// PurchaseResponse is the payload of a settled purchase.
type PurchaseResponse struct {
	TradeID        string `json:"trade_id"`
	ResourceType   string `json:"resource_type"`
	Amount         int64  `json:"amount"`
	TotalPrice     int64  `json:"total_price"`
	Fee            int64  `json:"fee"`
	SellerEarnings int64  `json:"seller_earnings"`
}

// SweepResult reports one expiry sweep pass.
type SweepResult struct {
	Expired  int64 `json:"expired"`
	Refunded int64 `json:"refunded"`
}
