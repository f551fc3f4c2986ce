package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lunaris-colony/nexus-api/internal/auth"
	"github.com/lunaris-colony/nexus-api/internal/claims"
	"github.com/lunaris-colony/nexus-api/internal/database"
	"github.com/lunaris-colony/nexus-api/internal/economy"
	"github.com/lunaris-colony/nexus-api/internal/marketplace"
	"github.com/lunaris-colony/nexus-api/internal/pricing"
	"github.com/lunaris-colony/nexus-api/internal/reputation"
	"github.com/lunaris-colony/nexus-api/internal/stream"
	"github.com/lunaris-colony/nexus-api/internal/types"
	"github.com/lunaris-colony/nexus-api/pkg/middleware"
)

const (
	numColonists  = 8
	cyclesPerUser = 10
	serverAddress = "http://localhost:8089"
	listenAddr    = ":8089"
	jwtSecret     = "simulation-secret"
	databasePath  = "simulation.db"

	startingLunaris  = 10000
	startingResource = 500
)

var claimables = []string{
	types.ResourcePremiumOxygen,
	types.ResourceHyperHydroponics,
	types.ResourceEnergyCrystal,
	types.ResourceLunarisBonus,
}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	mu         sync.Mutex
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

func (rs *routeStats) add(d time.Duration, failed bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
	if failed {
		rs.failures++
	}
}

// calculate computes min, max, mean, median, p95 and p99 latencies
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// colonist is one simulated player with an authenticated HTTP session
type colonist struct {
	id        string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
	rng       *rand.Rand
}

func (c *colonist) request(method, path, statKey string, body interface{}) (map[string]json.RawMessage, int, error) {
	start := time.Now()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequest(method, serverAddress+path, reader)
	if err != nil {
		return nil, 0, err
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	failed := err != nil
	defer c.stats[statKey].add(time.Since(start), failed)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return envelope, resp.StatusCode, nil
}

func (c *colonist) authenticate() error {
	envelope, status, err := c.request("POST", "/api/v1/auth/token", "auth", map[string]string{
		"api_key":    c.id,
		"api_secret": c.id + "-secret",
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("authentication failed with status %d", status)
	}

	var data struct {
		Token string `json:"jwt_token"`
	}
	if err := json.Unmarshal(envelope["data"], &data); err != nil {
		return err
	}
	c.authToken = data.Token
	return nil
}

// runCycle performs one claim / list / browse / purchase round
func (c *colonist) runCycle() {
	// Claim a random daily resource; conflicts are expected on repeats.
	resource := claimables[c.rng.Intn(len(claimables))]
	if _, status, err := c.request("POST", "/api/v1/resources/"+resource+"/claim", "claim", nil); err != nil {
		log.Debug().Err(err).Str("colonist", c.id).Msg("claim request failed")
	} else if status == http.StatusCreated {
		log.Debug().Str("colonist", c.id).Str("resource", resource).Msg("claimed resource")
	}

	// List some of a random tradable kind.
	kind := types.TradableKinds[c.rng.Intn(len(types.TradableKinds))]
	listBody := map[string]interface{}{
		"resource_type":  kind,
		"amount":         int64(10 + c.rng.Intn(40)),
		"price_per_unit": int64(1 + c.rng.Intn(9)),
	}
	envelope, _, err := c.request("POST", "/api/v1/marketplace/listings", "list", listBody)
	if err != nil {
		log.Debug().Err(err).Str("colonist", c.id).Msg("listing request failed")
	} else if c.rng.Intn(5) == 0 {
		// Occasionally take the listing straight back down to exercise the
		// refund path.
		var created marketplace.Listing
		if json.Unmarshal(envelope["data"], &created) == nil && created.ListingID != "" {
			if _, _, err := c.request("POST",
				"/api/v1/marketplace/listings/"+created.ListingID+"/cancel", "cancel", nil); err != nil {
				log.Debug().Err(err).Str("colonist", c.id).Msg("cancel request failed")
			}
		}
	}

	// Browse and try to buy the newest affordable listing from someone else.
	envelope, _, err = c.request("GET", "/api/v1/marketplace/listings", "browse", nil)
	if err != nil {
		log.Debug().Err(err).Str("colonist", c.id).Msg("browse request failed")
		return
	}

	var listings []marketplace.Listing
	if err := json.Unmarshal(envelope["data"], &listings); err != nil {
		return
	}
	for _, listing := range listings {
		if listing.SellerID == c.id {
			continue
		}
		_, status, err := c.request("POST",
			"/api/v1/marketplace/listings/"+listing.ListingID+"/purchase", "purchase", nil)
		if err == nil && status == http.StatusCreated {
			log.Debug().
				Str("colonist", c.id).
				Str("listing_id", listing.ListingID).
				Msg("purchased listing")
		}
		break
	}
}

// startServer wires up a complete server backed by a throwaway database and
// seeds balances for every simulated colonist.
func startServer() (*http.Server, error) {
	_ = os.Remove(databasePath)

	db, err := database.NewDatabase(databasePath)
	if err != nil {
		return nil, err
	}

	hub := stream.NewHub()
	authService := auth.NewService(jwtSecret)
	reputationService := reputation.NewService(db)
	economyService := economy.NewService(db)
	claimsService := claims.NewService(db, reputationService, hub)
	marketplaceService := marketplace.NewService(db, reputationService)
	pricingService := pricing.NewService(db, hub, nil)

	for i := 0; i < numColonists; i++ {
		id := fmt.Sprintf("colonist-%d", i+1)
		authService.RegisterAPICredentials(id, id+"-secret")
		if err := economyService.Seed(id, types.AssetLunaris, startingLunaris); err != nil {
			return nil, err
		}
		for _, kind := range types.TradableKinds {
			if err := economyService.Seed(id, kind, startingResource); err != nil {
				return nil, err
			}
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	v1 := router.Group("/api/v1")
	v1.POST("/auth/token", auth.NewGinHandlers(authService).GenerateTokenHandler())

	authed := v1.Group("")
	authed.Use(middleware.JWTAuth(jwtSecret))
	{
		claimsHandlers := claims.NewGinHandlers(claimsService)
		marketplaceHandlers := marketplace.NewGinHandlers(marketplaceService)
		pricingHandlers := pricing.NewGinHandlers(pricingService)

		authed.GET("/resources", claimsHandlers.PoolStatusHandler())
		authed.POST("/resources/:resource_type/claim", claimsHandlers.ClaimHandler())
		authed.GET("/marketplace/listings", marketplaceHandlers.ListActiveHandler())
		authed.POST("/marketplace/listings", marketplaceHandlers.CreateListingHandler())
		authed.POST("/marketplace/listings/:listing_id/purchase", marketplaceHandlers.PurchaseHandler())
		authed.POST("/marketplace/listings/:listing_id/cancel", marketplaceHandlers.CancelHandler())
		authed.GET("/market/prices", pricingHandlers.GetPricesHandler())
	}

	srv := &http.Server{Addr: listenAddr, Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("simulation server failed")
		}
	}()

	// Wait for the listener to come up
	for i := 0; i < 50; i++ {
		if resp, err := http.Get(serverAddress + "/api/v1/resources"); err == nil {
			resp.Body.Close()
			return srv, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil, fmt.Errorf("server did not become ready")
}

func main() {
	srv, err := startServer()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start simulation server")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	stats := map[string]*routeStats{
		"auth":     {name: "Authentication"},
		"claim":    {name: "Claim Resource"},
		"list":     {name: "Create Listing"},
		"cancel":   {name: "Cancel Listing"},
		"browse":   {name: "Browse Listings"},
		"purchase": {name: "Purchase Listing"},
	}

	log.Info().Int("colonists", numColonists).Int("cycles", cyclesPerUser).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < numColonists; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			c := &colonist{
				id:     fmt.Sprintf("colonist-%d", n+1),
				client: &http.Client{Timeout: 10 * time.Second},
				stats:  stats,
				rng:    rand.New(rand.NewSource(int64(n))),
			}
			if err := c.authenticate(); err != nil {
				log.Error().Err(err).Str("colonist", c.id).Msg("authentication failed")
				return
			}

			for cycle := 0; cycle < cyclesPerUser; cycle++ {
				c.runCycle()
			}
		}(i)
	}
	wg.Wait()

	printStats(stats)
}

func printStats(stats map[string]*routeStats) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println("\n=== Simulation Results ===")
	for _, k := range keys {
		rs := stats[k]
		min, max, mean, median, p95, p99 := rs.calculate()
		fmt.Printf("%-18s calls=%-4d failures=%-3d min=%-10s max=%-10s mean=%-10s median=%-10s p95=%-10s p99=%s\n",
			rs.name, rs.totalCalls, rs.failures, min, max, mean, median, p95, p99)
	}
}
