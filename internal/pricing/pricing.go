package pricing

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lunaris-colony/nexus-api/internal/stream"
	"github.com/lunaris-colony/nexus-api/internal/types"
	"github.com/lunaris-colony/nexus-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service maintains market prices for the tradable resource kinds. Prices
// move by a uniform step in [-MaxStep, +MaxStep] per update and are clamped
// to [MinPrice, MaxPrice].
type Service struct {
	db  *gorm.DB
	hub *stream.Hub
	rng *rand.Rand
}

// NewService creates a pricing service. rng may be nil, in which case a
// time-seeded source is used; tests inject a fixed seed.
func NewService(gormDB *gorm.DB, hub *stream.Hub, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{db: gormDB, hub: hub, rng: rng}
}

// Prices returns the current price table, initializing any missing kind at
// the default price.
func (s *Service) Prices(now time.Time) ([]MarketPrice, error) {
	prices := make([]MarketPrice, 0, len(types.TradableKinds))
	for _, kind := range types.TradableKinds {
		price, err := s.getOrInit(kind, now)
		if err != nil {
			return nil, err
		}
		prices = append(prices, *price)
	}
	return prices, nil
}

// UpdatePrices runs one fluctuation step over every tradable kind and
// publishes the new table.
func (s *Service) UpdatePrices(now time.Time) ([]MarketPrice, error) {
	logger := log.With().Str("service", "pricing").Logger()

	prices := make([]MarketPrice, 0, len(types.TradableKinds))
	for _, kind := range types.TradableKinds {
		current, err := s.getOrInit(kind, now)
		if err != nil {
			return nil, err
		}

		step := s.rng.Int63n(2*MaxStep+1) - MaxStep
		newPrice := clamp(current.Price+step, MinPrice, MaxPrice)
		changePct := float64(newPrice-current.Price) / float64(current.Price) * 100
		changePct = math.Round(changePct*10) / 10

		if err := s.db.Model(&MarketPrice{}).
			Where("resource_kind = ?", kind).
			Updates(map[string]interface{}{
				"price":       newPrice,
				"change_pct":  changePct,
				"last_update": now,
			}).Error; err != nil {
			return nil, fmt.Errorf("failed to update price: %w", err)
		}

		current.Price = newPrice
		current.ChangePct = changePct
		current.LastUpdate = now
		prices = append(prices, *current)

		logger.Debug().
			Str("resource_kind", kind).
			Int64("price", newPrice).
			Float64("change_pct", changePct).
			Msg("price updated")
	}

	s.hub.Publish(stream.TopicMarketPrices, prices)
	return prices, nil
}

func (s *Service) getOrInit(kind string, now time.Time) (*MarketPrice, error) {
	var price MarketPrice
	err := s.db.Where("resource_kind = ?", kind).First(&price).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		price = MarketPrice{
			ResourceKind: kind,
			Price:        DefaultPrice,
			LastUpdate:   now,
		}
		if err := s.db.Create(&price).Error; err != nil {
			return nil, fmt.Errorf("failed to initialize price: %w", err)
		}
		return &price, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price: %w", err)
	}
	return &price, nil
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// GinHandlers contains HTTP handlers for market price endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetPricesHandler handles GET requests for current market prices
func (h *GinHandlers) GetPricesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		prices, err := h.service.Prices(time.Now())
		response.Handle(c, prices, err)
	}
}

// UpdatePricesHandler handles POST requests to run a fluctuation step
func (h *GinHandlers) UpdatePricesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		prices, err := h.service.UpdatePrices(time.Now())
		response.Handle(c, prices, err)
	}
}

// StreamPricesHandler streams price updates as server-sent events
func (h *GinHandlers) StreamPricesHandler(hub *stream.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub := hub.Subscribe(stream.TopicMarketPrices)
		defer sub.Cancel()

		if prices, err := h.service.Prices(time.Now()); err == nil {
			hub.Publish(stream.TopicMarketPrices, prices)
		}

		c.Stream(func(w io.Writer) bool {
			select {
			case value, ok := <-sub.C:
				if !ok {
					return false
				}
				c.SSEvent("prices", value)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}
