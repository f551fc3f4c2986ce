package marketplace

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lunaris-colony/nexus-api/internal/economy"
	"github.com/lunaris-colony/nexus-api/internal/reputation"
	"github.com/lunaris-colony/nexus-api/internal/types"
	"github.com/lunaris-colony/nexus-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrInvalidListing    = errors.New("invalid listing parameters")
	ErrListingNotFound   = errors.New("listing not found")
	ErrListingNotActive  = errors.New("listing is no longer active")
	ErrSelfTrade         = errors.New("cannot buy your own listing")
	ErrNotOwner          = errors.New("not authorized to modify this listing")
	ErrInsufficientFunds = economy.ErrInsufficientBalance
)

// Service runs the marketplace: escrowed listings, all-or-nothing purchase
// settlement, cancellation refunds and trade history.
type Service struct {
	db         *Database
	reputation *reputation.Service
}

func NewService(gormDB *gorm.DB, reputationService *reputation.Service) *Service {
	return &Service{
		db:         NewDatabase(gormDB),
		reputation: reputationService,
	}
}

// CreateListing validates the sell order, escrows the listed amount out of
// the seller's balance and creates the listing in one transaction.
func (s *Service) CreateListing(sellerID string, req CreateListingRequest, now time.Time) (*Listing, error) {
	logger := log.With().
		Str("seller_id", sellerID).
		Str("resource_type", req.ResourceType).
		Str("service", "marketplace").
		Logger()

	if !types.IsTradableKind(req.ResourceType) ||
		req.Amount < MinListingAmount ||
		req.PricePerUnit < MinPricePerUnit {
		return nil, ErrInvalidListing
	}

	listing := &Listing{
		ListingID:    "LST_" + uuid.New().String(),
		SellerID:     sellerID,
		ResourceType: req.ResourceType,
		Amount:       req.Amount,
		PricePerUnit: req.PricePerUnit,
		TotalPrice:   req.Amount * req.PricePerUnit,
		Status:       StatusActive,
		ExpiresAt:    now.Add(ListingLifetime),
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Escrow: the listed resources leave the seller's balance now and
		// come back only on cancel or expiry.
		if err := economy.Debit(tx, sellerID, req.ResourceType, req.Amount); err != nil {
			return err
		}
		return s.db.CreateListing(tx, listing)
	})
	if err != nil {
		if errors.Is(err, economy.ErrInsufficientBalance) {
			logger.Info().Int64("amount", req.Amount).Msg("listing rejected, insufficient resources")
		} else {
			logger.Error().Err(err).Msg("failed to create listing")
		}
		return nil, err
	}

	logger.Info().
		Str("listing_id", listing.ListingID).
		Int64("amount", listing.Amount).
		Int64("total_price", listing.TotalPrice).
		Msg("listing created")

	return listing, nil
}

// Purchase settles a listing for the buyer. Listing transition, buyer
// debit, resource delivery, seller payout, trade record and reputation all
// commit together or not at all.
func (s *Service) Purchase(listingID, buyerID string, now time.Time) (*PurchaseResponse, error) {
	logger := log.With().
		Str("listing_id", listingID).
		Str("buyer_id", buyerID).
		Str("service", "marketplace").
		Logger()

	listing, err := s.db.GetListing(listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, ErrListingNotFound
	}
	if listing.Status != StatusActive || !listing.ExpiresAt.After(now) {
		return nil, ErrListingNotActive
	}
	if listing.SellerID == buyerID {
		return nil, ErrSelfTrade
	}

	fee := listing.TotalPrice * FeePercent / 100
	sellerEarnings := listing.TotalPrice - fee
	trade := &Trade{
		TradeID:        "TRD_" + uuid.New().String(),
		ListingID:      listing.ListingID,
		BuyerID:        buyerID,
		SellerID:       listing.SellerID,
		ResourceType:   listing.ResourceType,
		Amount:         listing.Amount,
		TotalPrice:     listing.TotalPrice,
		Fee:            fee,
		SellerEarnings: sellerEarnings,
		TradeType:      "marketplace",
	}

	today := now.UTC().Format("2006-01-02")
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// The conditional transition is the race guard: a second buyer, or
		// a concurrent cancel, finds the listing no longer active.
		sold, err := s.db.TransitionStatus(tx, listingID, StatusSold, map[string]interface{}{
			"buyer_id": buyerID,
			"sold_at":  now,
		})
		if err != nil {
			return err
		}
		if !sold {
			return ErrListingNotActive
		}

		if err := economy.Debit(tx, buyerID, types.AssetLunaris, listing.TotalPrice); err != nil {
			return err
		}
		if err := economy.Credit(tx, buyerID, listing.ResourceType, listing.Amount); err != nil {
			return err
		}
		if err := economy.Credit(tx, listing.SellerID, types.AssetLunaris, sellerEarnings); err != nil {
			return err
		}
		if err := s.db.CreateTrade(tx, trade); err != nil {
			return err
		}
		if err := s.reputation.Award(tx, buyerID, reputation.TradePoints, "completed purchase", today); err != nil {
			return err
		}
		return s.reputation.Award(tx, listing.SellerID, reputation.TradePoints, "completed sale", today)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrListingNotActive), errors.Is(err, economy.ErrInsufficientBalance):
			logger.Info().Err(err).Msg("purchase rejected")
		default:
			logger.Error().Err(err).Msg("purchase failed")
		}
		return nil, err
	}

	logger.Info().
		Str("trade_id", trade.TradeID).
		Str("seller_id", listing.SellerID).
		Int64("total_price", listing.TotalPrice).
		Int64("fee", fee).
		Msg("purchase settled")

	return &PurchaseResponse{
		TradeID:        trade.TradeID,
		ResourceType:   listing.ResourceType,
		Amount:         listing.Amount,
		TotalPrice:     listing.TotalPrice,
		Fee:            fee,
		SellerEarnings: sellerEarnings,
	}, nil
}

// Cancel takes an active listing down and returns the escrowed resources to
// the seller. Only the original seller may cancel.
func (s *Service) Cancel(listingID, userID string, now time.Time) error {
	listing, err := s.db.GetListing(listingID)
	if err != nil {
		return err
	}
	if listing == nil {
		return ErrListingNotFound
	}
	if listing.SellerID != userID {
		return ErrNotOwner
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		cancelled, err := s.db.TransitionStatus(tx, listingID, StatusCancelled, map[string]interface{}{
			"cancelled_at": now,
		})
		if err != nil {
			return err
		}
		if !cancelled {
			return ErrListingNotActive
		}
		return economy.Credit(tx, listing.SellerID, listing.ResourceType, listing.Amount)
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("listing_id", listingID).
		Str("seller_id", userID).
		Str("service", "marketplace").
		Msg("listing cancelled")
	return nil
}

// ActiveListings returns active, unexpired listings, optionally filtered by
// resource type, newest first.
func (s *Service) ActiveListings(resourceType string, now time.Time) ([]Listing, error) {
	return s.db.GetActiveListings(resourceType, now)
}

// ListingsBySeller returns the seller's own active listings.
func (s *Service) ListingsBySeller(sellerID string) ([]Listing, error) {
	return s.db.GetListingsBySeller(sellerID)
}

// TradeHistory returns trades the user took part in, newest first.
func (s *Service) TradeHistory(userID string) ([]Trade, error) {
	return s.db.GetTradesByUser(userID)
}

// SweepExpired transitions active listings past their expiry to the expired
// status and refunds the escrowed amount to the seller, each listing in its
// own transaction. Listings sold or cancelled between the scan and the
// transition are skipped by the conditional update, so the sweep is safe to
// run repeatedly.
func (s *Service) SweepExpired(now time.Time) (*SweepResult, error) {
	logger := log.With().Str("service", "marketplace").Logger()

	expired, err := s.db.GetExpiredActiveListings(now)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	for i := range expired {
		listing := expired[i]
		err := s.db.Transaction(func(tx *gorm.DB) error {
			done, err := s.db.TransitionStatus(tx, listing.ListingID, StatusExpired, nil)
			if err != nil {
				return err
			}
			if !done {
				return nil
			}
			result.Expired++
			result.Refunded += listing.Amount
			return economy.Credit(tx, listing.SellerID, listing.ResourceType, listing.Amount)
		})
		if err != nil {
			logger.Error().Err(err).
				Str("listing_id", listing.ListingID).
				Msg("failed to expire listing")
		}
	}

	if result.Expired > 0 {
		logger.Info().
			Int64("expired", result.Expired).
			Int64("refunded", result.Refunded).
			Msg("expiry sweep completed")
	}
	return result, nil
}

// GinHandlers contains HTTP handlers for marketplace endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateListingHandler handles POST requests to create listings
func (h *GinHandlers) CreateListingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user ID in token")
			return
		}

		var req CreateListingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		listing, err := h.service.CreateListing(userID, req, time.Now())
		switch {
		case errors.Is(err, ErrInvalidListing):
			response.ValidationFailed(c, "Invalid listing parameters")
		case errors.Is(err, economy.ErrInsufficientBalance):
			response.InsufficientBalance(c, "Insufficient resources to list")
		default:
			response.Handle(c, listing, err)
		}
	}
}

// ListActiveHandler handles GET requests for active listings
// Query parameter: resource_type (optional filter)
func (h *GinHandlers) ListActiveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		listings, err := h.service.ActiveListings(c.Query("resource_type"), time.Now())
		response.Handle(c, listings, err)
	}
}

// PurchaseHandler handles POST requests to purchase a listing
// URL parameter: listing_id
func (h *GinHandlers) PurchaseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user ID in token")
			return
		}

		result, err := h.service.Purchase(c.Param("listing_id"), userID, time.Now())
		switch {
		case errors.Is(err, ErrListingNotFound):
			response.NotFound(c, "Listing not found")
		case errors.Is(err, ErrListingNotActive):
			response.Conflict(c, response.ErrCodeConflict, "Listing is no longer active")
		case errors.Is(err, ErrSelfTrade):
			response.Conflict(c, response.ErrCodeConflict, "Cannot buy your own listing")
		case errors.Is(err, economy.ErrInsufficientBalance):
			response.InsufficientBalance(c, "Insufficient lunaris for this purchase")
		default:
			response.Handle(c, result, err)
		}
	}
}

// CancelHandler handles POST requests to cancel a listing
// URL parameter: listing_id
func (h *GinHandlers) CancelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user ID in token")
			return
		}

		err := h.service.Cancel(c.Param("listing_id"), userID, time.Now())
		switch {
		case errors.Is(err, ErrListingNotFound):
			response.NotFound(c, "Listing not found")
		case errors.Is(err, ErrNotOwner):
			response.Forbidden(c, "Only the seller may cancel this listing")
		case errors.Is(err, ErrListingNotActive):
			response.Conflict(c, response.ErrCodeConflict, "Listing is no longer active")
		default:
			response.Handle(c, gin.H{"message": "listing cancelled"}, err)
		}
	}
}

// MyListingsHandler handles GET requests for the user's own active listings
func (h *GinHandlers) MyListingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user ID in token")
			return
		}

		listings, err := h.service.ListingsBySeller(userID)
		response.Handle(c, listings, err)
	}
}

// TradeHistoryHandler handles GET requests for the user's trade history
func (h *GinHandlers) TradeHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user ID in token")
			return
		}

		trades, err := h.service.TradeHistory(userID)
		response.Handle(c, trades, err)
	}
}

// SweepHandler handles POST requests to run the expiry sweep on demand
func (h *GinHandlers) SweepHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := h.service.SweepExpired(time.Now())
		response.Handle(c, result, err)
	}
}
