package reputation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lunaris-colony/nexus-api/pkg/response"
	"gorm.io/gorm"
)

// Points awarded per rewarded action.
const (
	ClaimPoints = 2
	TradePoints = 5
)

// Tier thresholds on cumulative points. Tier is a pure, monotonic function
// of the total; thresholds are inclusive lower bounds.
var tierThresholds = []int64{0, 100, 500, 1000, 2500, 5000}

var tierNames = map[int]string{
	1: "Newcomer",
	2: "Colonist",
	3: "Trader",
	4: "Merchant",
	5: "Tycoon",
	6: "Legend",
}

// TierFor maps cumulative points to a tier in 1..6.
func TierFor(points int64) int {
	tier := 1
	for i, threshold := range tierThresholds {
		if points >= threshold {
			tier = i + 1
		}
	}
	return tier
}

// TierName returns the display name of a tier.
func TierName(tier int) string {
	if name, ok := tierNames[tier]; ok {
		return name
	}
	return tierNames[1]
}

// Service maintains reputation records. Mutating operations take the
// caller's transaction handle so awards commit or roll back together with
// the claim or trade that triggered them.
type Service struct {
	db *gorm.DB
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{db: gormDB}
}

// Award adds points to the user's reputation inside tx, recomputes the tier
// and stamps the last-active date. Reasons that describe a trade, purchase
// or sale also increment the completed-trades counter.
func (s *Service) Award(tx *gorm.DB, userID string, points int64, reason string, today string) error {
	record, err := getOrInit(tx, userID)
	if err != nil {
		return err
	}

	record.TotalPoints += points
	record.Tier = TierFor(record.TotalPoints)
	record.LastActiveDate = today
	if isTradeReason(reason) {
		record.TradesCompleted++
	}

	if err := tx.Save(record).Error; err != nil {
		return fmt.Errorf("failed to save reputation: %w", err)
	}
	return nil
}

// TouchStreak advances the claim streak for a claim made today: a claim the
// day after the previous one extends the streak, a repeat claim on the same
// day leaves it unchanged, anything else resets it to 1. The last-claim date
// is always moved to today.
func (s *Service) TouchStreak(tx *gorm.DB, userID string, today time.Time) error {
	todayStr := today.UTC().Format("2006-01-02")
	yesterdayStr := today.UTC().AddDate(0, 0, -1).Format("2006-01-02")

	record, err := getOrInit(tx, userID)
	if err != nil {
		return err
	}

	switch record.LastClaimDate {
	case yesterdayStr:
		record.ClaimStreak++
	case todayStr:
		if record.ClaimStreak == 0 {
			record.ClaimStreak = 1
		}
	default:
		record.ClaimStreak = 1
	}
	record.LastClaimDate = todayStr

	if err := tx.Save(record).Error; err != nil {
		return fmt.Errorf("failed to save claim streak: %w", err)
	}
	return nil
}

// Get returns the user's reputation, or the zero state if no record exists.
func (s *Service) Get(userID string) (*ReputationResponse, error) {
	var record Reputation
	if err := s.db.Where("user_id = ?", userID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ReputationResponse{
				UserID:   userID,
				Tier:     1,
				TierName: TierName(1),
			}, nil
		}
		return nil, fmt.Errorf("failed to fetch reputation: %w", err)
	}

	return &ReputationResponse{
		UserID:          record.UserID,
		TotalPoints:     record.TotalPoints,
		Tier:            record.Tier,
		TierName:        TierName(record.Tier),
		TradesCompleted: record.TradesCompleted,
		ClaimStreak:     record.ClaimStreak,
		LastActiveDate:  record.LastActiveDate,
	}, nil
}

func getOrInit(tx *gorm.DB, userID string) (*Reputation, error) {
	var record Reputation
	err := tx.Where("user_id = ?", userID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Reputation{UserID: userID, Tier: 1}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reputation: %w", err)
	}
	return &record, nil
}

func isTradeReason(reason string) bool {
	r := strings.ToLower(reason)
	return strings.Contains(r, "trade") || strings.Contains(r, "purchase") || strings.Contains(r, "sale")
}

// GinHandlers contains HTTP handlers for reputation endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetReputationHandler handles GET requests for the authenticated user's reputation
func (h *GinHandlers) GetReputationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user ID in token")
			return
		}

		record, err := h.service.Get(userID)
		response.Handle(c, record, err)
	}
}
