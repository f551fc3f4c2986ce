package claims

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lunaris-colony/nexus-api/internal/economy"
	"github.com/lunaris-colony/nexus-api/internal/reputation"
	"github.com/lunaris-colony/nexus-api/internal/stream"
	"github.com/lunaris-colony/nexus-api/internal/types"
	"github.com/lunaris-colony/nexus-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrInvalidResourceType = errors.New("invalid resource type")
	ErrAlreadyClaimed      = errors.New("resource already claimed today")
	ErrSoldOut             = errors.New("resource pool sold out")
)

// Service enforces the daily claim rules: a global per-resource daily cap
// and one claim per user per resource per day. The whole claim sequence
// (pool admission, claim marker, balance credit, streak and reputation)
// commits in a single transaction.
type Service struct {
	db         *Database
	reputation *reputation.Service
	hub        *stream.Hub
}

func NewService(gormDB *gorm.DB, reputationService *reputation.Service, hub *stream.Hub) *Service {
	return &Service{
		db:         NewDatabase(gormDB),
		reputation: reputationService,
		hub:        hub,
	}
}

// Claim attempts to claim one unit of resourceType for the user.
func (s *Service) Claim(userID, resourceType string, now time.Time) (*ClaimResponse, error) {
	logger := log.With().
		Str("user_id", userID).
		Str("resource_type", resourceType).
		Str("service", "claims").
		Logger()

	cfg, ok := types.DailyResources[resourceType]
	if !ok {
		return nil, ErrInvalidResourceType
	}

	date := now.UTC().Format("2006-01-02")

	// Advisory pre-check; the unique claim marker inside the transaction is
	// the real once-per-day guard.
	claimed, err := s.db.HasClaimed(userID, date, resourceType)
	if err != nil {
		return nil, err
	}
	if claimed {
		return nil, ErrAlreadyClaimed
	}

	var remaining int64
	err = s.db.Transaction(func(tx *gorm.DB) error {
		pool, err := s.db.GetPool(tx, date, resourceType, cfg.DailyLimit, now)
		if err != nil {
			return err
		}
		if pool.Claimed >= pool.Total {
			return ErrSoldOut
		}

		admitted, err := s.db.AdmitClaim(tx, date, resourceType, now)
		if err != nil {
			return err
		}
		if !admitted {
			return ErrSoldOut
		}
		remaining = pool.Total - pool.Claimed - 1

		marker := &UserClaim{
			UserID:       userID,
			ClaimDate:    date,
			ResourceType: resourceType,
			Amount:       cfg.ClaimAmount,
			ClaimedAt:    now,
		}
		if err := s.db.CreateClaimMarker(tx, marker); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyClaimed
			}
			return fmt.Errorf("failed to record claim: %w", err)
		}

		if err := economy.Credit(tx, userID, cfg.AssetKey, cfg.ClaimAmount); err != nil {
			return err
		}
		if err := s.reputation.TouchStreak(tx, userID, now); err != nil {
			return err
		}
		return s.reputation.Award(tx, userID, reputation.ClaimPoints,
			"claimed "+cfg.Name, date)
	})
	if err != nil {
		if errors.Is(err, ErrSoldOut) || errors.Is(err, ErrAlreadyClaimed) {
			logger.Info().Err(err).Msg("claim rejected")
		} else {
			logger.Error().Err(err).Msg("claim failed")
		}
		return nil, err
	}

	streak := 0
	if rep, err := s.reputation.Get(userID); err == nil {
		streak = rep.ClaimStreak
	}

	logger.Info().
		Int64("amount", cfg.ClaimAmount).
		Int64("remaining", remaining).
		Msg("claim accepted")

	s.publishPoolStatus(now)

	return &ClaimResponse{
		ResourceType: resourceType,
		AssetKey:     cfg.AssetKey,
		Amount:       cfg.ClaimAmount,
		Remaining:    remaining,
		ClaimStreak:  streak,
	}, nil
}

// PoolStatus returns today's pool state for every claimable resource type,
// lazily initializing rows that no claim has touched yet.
func (s *Service) PoolStatus(now time.Time) ([]PoolStatus, error) {
	date := now.UTC().Format("2006-01-02")

	pools, err := s.db.GetPools(date)
	if err != nil {
		return nil, err
	}
	byType := make(map[string]DailyPool, len(pools))
	for _, p := range pools {
		byType[p.ResourceType] = p
	}

	statuses := make([]PoolStatus, 0, len(types.DailyResources))
	for resourceType, cfg := range types.DailyResources {
		pool, ok := byType[resourceType]
		if !ok {
			pool = DailyPool{Total: cfg.DailyLimit}
		}
		remaining := pool.Total - pool.Claimed
		statuses = append(statuses, PoolStatus{
			ResourceType: resourceType,
			Name:         cfg.Name,
			Rarity:       cfg.Rarity,
			ClaimAmount:  cfg.ClaimAmount,
			Total:        pool.Total,
			Claimed:      pool.Claimed,
			Remaining:    remaining,
			Percentage:   float64(remaining) / float64(pool.Total) * 100,
			SoldOut:      pool.Claimed >= pool.Total,
		})
	}
	return statuses, nil
}

// History returns the user's claim markers grouped by date.
func (s *Service) History(userID string) (*ClaimHistory, error) {
	userClaims, err := s.db.GetUserClaims(userID)
	if err != nil {
		return nil, err
	}

	history := &ClaimHistory{Claims: make(map[string][]UserClaim)}
	for _, claim := range userClaims {
		if _, ok := history.Claims[claim.ClaimDate]; !ok {
			history.TotalDays++
		}
		history.Claims[claim.ClaimDate] = append(history.Claims[claim.ClaimDate], claim)
	}
	return history, nil
}

func (s *Service) publishPoolStatus(now time.Time) {
	statuses, err := s.PoolStatus(now)
	if err != nil {
		log.Error().Err(err).Str("service", "claims").Msg("failed to publish pool status")
		return
	}
	s.hub.Publish(stream.TopicDailyPools, statuses)
}

// GinHandlers contains HTTP handlers for daily claim endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ClaimHandler handles POST requests to claim a daily resource
// URL parameter: resource_type
func (h *GinHandlers) ClaimHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user ID in token")
			return
		}

		resourceType := c.Param("resource_type")
		result, err := h.service.Claim(userID, resourceType, time.Now())
		switch {
		case errors.Is(err, ErrInvalidResourceType):
			response.ValidationFailed(c, "Unknown resource type")
		case errors.Is(err, ErrAlreadyClaimed):
			response.Conflict(c, response.ErrCodeConflict, "You have already claimed this resource today")
		case errors.Is(err, ErrSoldOut):
			response.ResourceExhausted(c, "This resource is sold out. Try again tomorrow!")
		default:
			response.Handle(c, result, err)
		}
	}
}

// PoolStatusHandler handles GET requests for today's resource pools
func (h *GinHandlers) PoolStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		statuses, err := h.service.PoolStatus(time.Now())
		response.Handle(c, statuses, err)
	}
}

// ClaimHistoryHandler handles GET requests for the user's claim history
func (h *GinHandlers) ClaimHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user ID in token")
			return
		}

		history, err := h.service.History(userID)
		response.Handle(c, history, err)
	}
}

// StreamPoolsHandler streams pool status updates as server-sent events
func (h *GinHandlers) StreamPoolsHandler(hub *stream.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub := hub.Subscribe(stream.TopicDailyPools)
		defer sub.Cancel()

		// Seed the topic so new subscribers see the current state even
		// before the first claim of the day.
		if statuses, err := h.service.PoolStatus(time.Now()); err == nil {
			hub.Publish(stream.TopicDailyPools, statuses)
		}

		c.Stream(func(w io.Writer) bool {
			select {
			case value, ok := <-sub.C:
				if !ok {
					return false
				}
				c.SSEvent("pools", value)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}
