package economy

import (
	"github.com/gin-gonic/gin"
	"github.com/lunaris-colony/nexus-api/pkg/response"
	"gorm.io/gorm"
)

// Service exposes read access to colonist balances. Mutations happen inside
// the claim and marketplace transactions via the package-level Credit/Debit
// helpers.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// Balances returns all asset balances for a user.
func (s *Service) Balances(userID string) (map[string]int64, error) {
	return s.db.GetAll(userID)
}

// Seed credits a starting balance, used by the simulation and tests.
func (s *Service) Seed(userID, asset string, amount int64) error {
	return s.db.Credit(userID, asset, amount)
}

// GinHandlers contains HTTP handlers for balance endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetBalancesHandler handles GET requests for the authenticated user's balances
func (h *GinHandlers) GetBalancesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user ID in token")
			return
		}

		balances, err := h.service.Balances(userID)
		response.Handle(c, balances, err)
	}
}
