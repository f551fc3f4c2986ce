package marketplace

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lunaris-colony/nexus-api/internal/economy"
	"github.com/lunaris-colony/nexus-api/internal/reputation"
	"github.com/lunaris-colony/nexus-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	err = db.AutoMigrate(&Listing{}, &Trade{}, &economy.Balance{}, &reputation.Reputation{})
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewService(db, reputation.NewService(db)), db
}

var testNow = time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, db *gorm.DB, userID, asset string, amount int64) {
	t.Helper()
	if err := economy.Credit(db, userID, asset, amount); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func balance(t *testing.T, db *gorm.DB, userID, asset string) int64 {
	t.Helper()
	amount, err := economy.GetAmount(db, userID, asset)
	if err != nil {
		t.Fatalf("balance fetch failed: %v", err)
	}
	return amount
}

func TestCreateListing_Validation(t *testing.T) {
	svc, db := newTestService(t)
	seed(t, db, "seller", types.AssetOxygen, 1000)

	tests := []struct {
		name string
		req  CreateListingRequest
	}{
		{"amount below minimum", CreateListingRequest{ResourceType: types.AssetOxygen, Amount: 9, PricePerUnit: 5}},
		{"price below minimum", CreateListingRequest{ResourceType: types.AssetOxygen, Amount: 20, PricePerUnit: 0}},
		{"untradable kind", CreateListingRequest{ResourceType: types.AssetLunaris, Amount: 20, PricePerUnit: 5}},
		{"unknown kind", CreateListingRequest{ResourceType: "plasma", Amount: 20, PricePerUnit: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateListing("seller", tt.req, testNow)
			if !errors.Is(err, ErrInvalidListing) {
				t.Fatalf("expected ErrInvalidListing, got %v", err)
			}
		})
	}

	if got := balance(t, db, "seller", types.AssetOxygen); got != 1000 {
		t.Errorf("rejected listings mutated balance: %d", got)
	}
}

func TestCreateListing_EscrowsAndComputesTotal(t *testing.T) {
	svc, db := newTestService(t)
	seed(t, db, "seller", types.AssetOxygen, 100)

	listing, err := svc.CreateListing("seller", CreateListingRequest{
		ResourceType: types.AssetOxygen,
		Amount:       40,
		PricePerUnit: 7,
	}, testNow)
	if err != nil {
		t.Fatalf("create listing failed: %v", err)
	}

	if listing.TotalPrice != 280 {
		t.Errorf("expected total price 280, got %d", listing.TotalPrice)
	}
	if listing.Status != StatusActive {
		t.Errorf("expected active status, got %s", listing.Status)
	}
	if want := testNow.Add(ListingLifetime); !listing.ExpiresAt.Equal(want) {
		t.Errorf("expected expiry %v, got %v", want, listing.ExpiresAt)
	}
	if got := balance(t, db, "seller", types.AssetOxygen); got != 60 {
		t.Errorf("expected escrow to leave 60, got %d", got)
	}
}

func TestCreateListing_InsufficientResources(t *testing.T) {
	svc, db := newTestService(t)
	seed(t, db, "seller", types.AssetEnergy, 30)

	_, err := svc.CreateListing("seller", CreateListingRequest{
		ResourceType: types.AssetEnergy,
		Amount:       31,
		PricePerUnit: 2,
	}, testNow)
	if !errors.Is(err, economy.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	if got := balance(t, db, "seller", types.AssetEnergy); got != 30 {
		t.Errorf("failed listing mutated balance: %d", got)
	}
	var count int64
	db.Model(&Listing{}).Count(&count)
	if count != 0 {
		t.Errorf("failed listing was persisted")
	}
}

func TestCancel_RoundTripRestoresBalance(t *testing.T) {
	svc, db := newTestService(t)
	seed(t, db, "seller", types.AssetHydroponics, 75)

	listing, err := svc.CreateListing("seller", CreateListingRequest{
		ResourceType: types.AssetHydroponics,
		Amount:       75,
		PricePerUnit: 3,
	}, testNow)
	if err != nil {
		t.Fatalf("create listing failed: %v", err)
	}
	if got := balance(t, db, "seller", types.AssetHydroponics); got != 0 {
		t.Fatalf("expected full escrow, balance %d", got)
	}

	if err := svc.Cancel(listing.ListingID, "seller", testNow); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if got := balance(t, db, "seller", types.AssetHydroponics); got != 75 {
		t.Errorf("expected balance restored to 75, got %d", got)
	}

	stored, _ := svc.db.GetListing(listing.ListingID)
	if stored.Status != StatusCancelled {
		t.Errorf("expected cancelled status, got %s", stored.Status)
	}

	// A second cancel finds nothing active and must not double-refund.
	err = svc.Cancel(listing.ListingID, "seller", testNow)
	if !errors.Is(err, ErrListingNotActive) {
		t.Fatalf("expected ErrListingNotActive on repeat cancel, got %v", err)
	}
	if got := balance(t, db, "seller", types.AssetHydroponics); got != 75 {
		t.Errorf("repeat cancel double-refunded: %d", got)
	}
}

func TestCancel_OnlySellerMayCancel(t *testing.T) {
	svc, db := newTestService(t)
	seed(t, db, "seller", types.AssetOxygen, 50)

	listing, err := svc.CreateListing("seller", CreateListingRequest{
		ResourceType: types.AssetOxygen,
		Amount:       50,
		PricePerUnit: 2,
	}, testNow)
	if err != nil {
		t.Fatalf("create listing failed: %v", err)
	}

	err = svc.Cancel(listing.ListingID, "intruder", testNow)
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	err = svc.Cancel("LST_missing", "seller", testNow)
	if !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("expected ErrListingNotFound, got %v", err)
	}
}

func TestPurchase_SettlesAtomically(t *testing.T) {
	svc, db := newTestService(t)
	seed(t, db, "seller", types.AssetOxygen, 100)
	seed(t, db, "buyer", types.AssetLunaris, 1000)

	listing, err := svc.CreateListing("seller", CreateListingRequest{
		ResourceType: types.AssetOxygen,
		Amount:       100,
		PricePerUnit: 7,
	}, testNow)
	if err != nil {
		t.Fatalf("create listing failed: %v", err)
	}

	result, err := svc.Purchase(listing.ListingID, "buyer", testNow)
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}

	// fee = floor(700 * 0.05) = 35, earnings = 665
	if result.Fee != 35 {
		t.Errorf("expected fee 35, got %d", result.Fee)
	}
	if result.SellerEarnings != 665 {
		t.Errorf("expected earnings 665, got %d", result.SellerEarnings)
	}
	if result.Fee+result.SellerEarnings != result.TotalPrice {
		t.Errorf("fee %d + earnings %d != total %d", result.Fee, result.SellerEarnings, result.TotalPrice)
	}

	if got := balance(t, db, "buyer", types.AssetLunaris); got != 300 {
		t.Errorf("buyer lunaris: expected 300, got %d", got)
	}
	if got := balance(t, db, "buyer", types.AssetOxygen); got != 100 {
		t.Errorf("buyer oxygen: expected 100, got %d", got)
	}
	if got := balance(t, db, "seller", types.AssetLunaris); got != 665 {
		t.Errorf("seller lunaris: expected 665, got %d", got)
	}

	stored, _ := svc.db.GetListing(listing.ListingID)
	if stored.Status != StatusSold || stored.BuyerID == nil || *stored.BuyerID != "buyer" {
		t.Errorf("listing not marked sold to buyer: %+v", stored)
	}

	var trade Trade
	if err := db.Where("listing_id = ?", listing.ListingID).First(&trade).Error; err != nil {
		t.Fatalf("trade record missing: %v", err)
	}
	if trade.BuyerID != "buyer" || trade.SellerID != "seller" || trade.TradeType != "marketplace" {
		t.Errorf("unexpected trade record: %+v", trade)
	}

	rep := reputation.NewService(db)
	for _, user := range []string{"buyer", "seller"} {
		record, err := rep.Get(user)
		if err != nil {
			t.Fatalf("reputation fetch failed: %v", err)
		}
		if record.TotalPoints != reputation.TradePoints {
			t.Errorf("%s: expected %d points, got %d", user, reputation.TradePoints, record.TotalPoints)
		}
		if record.TradesCompleted != 1 {
			t.Errorf("%s: expected 1 trade completed, got %d", user, record.TradesCompleted)
		}
	}
}

func TestPurchase_Rejections(t *testing.T) {
	svc, db := newTestService(t)
	seed(t, db, "seller", types.AssetOxygen, 50)
	seed(t, db, "pauper", types.AssetLunaris, 10)

	listing, err := svc.CreateListing("seller", CreateListingRequest{
		ResourceType: types.AssetOxygen,
		Amount:       50,
		PricePerUnit: 4,
	}, testNow)
	if err != nil {
		t.Fatalf("create listing failed: %v", err)
	}

	if _, err := svc.Purchase("LST_missing", "buyer", testNow); !errors.Is(err, ErrListingNotFound) {
		t.Errorf("expected ErrListingNotFound, got %v", err)
	}
	if _, err := svc.Purchase(listing.ListingID, "seller", testNow); !errors.Is(err, ErrSelfTrade) {
		t.Errorf("expected ErrSelfTrade, got %v", err)
	}

	// Insufficient funds must leave the listing active and balances whole.
	if _, err := svc.Purchase(listing.ListingID, "pauper", testNow); !errors.Is(err, economy.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
	stored, _ := svc.db.GetListing(listing.ListingID)
	if stored.Status != StatusActive {
		t.Errorf("failed purchase changed listing status to %s", stored.Status)
	}
	if got := balance(t, db, "pauper", types.AssetLunaris); got != 10 {
		t.Errorf("failed purchase mutated pauper balance: %d", got)
	}
	if got := balance(t, db, "seller", types.AssetLunaris); got != 0 {
		t.Errorf("failed purchase credited seller: %d", got)
	}

	// Expired listings cannot be purchased even while still marked active.
	if _, err := svc.Purchase(listing.ListingID, "buyer", testNow.Add(ListingLifetime+time.Hour)); !errors.Is(err, ErrListingNotActive) {
		t.Errorf("expected ErrListingNotActive for expired listing, got %v", err)
	}
}

func TestPurchase_ConcurrentBuyersOneWins(t *testing.T) {
	svc, db := newTestService(t)
	seed(t, db, "seller", types.AssetOxygen, 20)
	seed(t, db, "buyer-1", types.AssetLunaris, 500)
	seed(t, db, "buyer-2", types.AssetLunaris, 500)

	listing, err := svc.CreateListing("seller", CreateListingRequest{
		ResourceType: types.AssetOxygen,
		Amount:       20,
		PricePerUnit: 5,
	}, testNow)
	if err != nil {
		t.Fatalf("create listing failed: %v", err)
	}

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, buyer := range []string{"buyer-1", "buyer-2"} {
		wg.Add(1)
		go func(n int, buyerID string) {
			defer wg.Done()
			_, errs[n] = svc.Purchase(listing.ListingID, buyerID, testNow)
		}(i, buyer)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else if !errors.Is(err, ErrListingNotActive) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one successful purchase, got %d", successes)
	}

	// Exactly one buyer paid and exactly one payout happened.
	paid := int64(0)
	paid += 500 - balance(t, db, "buyer-1", types.AssetLunaris)
	paid += 500 - balance(t, db, "buyer-2", types.AssetLunaris)
	if paid != 100 {
		t.Errorf("total debited across buyers %d, expected 100", paid)
	}
	if got := balance(t, db, "seller", types.AssetLunaris); got != 95 {
		t.Errorf("seller payout %d, expected 95", got)
	}
}

func TestActiveListings_FilterAndOrder(t *testing.T) {
	svc, db := newTestService(t)
	seed(t, db, "seller", types.AssetOxygen, 100)
	seed(t, db, "seller", types.AssetEnergy, 100)

	first, err := svc.CreateListing("seller", CreateListingRequest{
		ResourceType: types.AssetOxygen, Amount: 10, PricePerUnit: 2,
	}, testNow)
	if err != nil {
		t.Fatalf("create listing failed: %v", err)
	}
	second, err := svc.CreateListing("seller", CreateListingRequest{
		ResourceType: types.AssetEnergy, Amount: 10, PricePerUnit: 2,
	}, testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("create listing failed: %v", err)
	}

	all, err := svc.ActiveListings("", testNow.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("active listings failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 active listings, got %d", len(all))
	}

	filtered, err := svc.ActiveListings(types.AssetEnergy, testNow.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("filtered listings failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ListingID != second.ListingID {
		t.Errorf("filter returned wrong listings: %+v", filtered)
	}

	mine, err := svc.ListingsBySeller("seller")
	if err != nil {
		t.Fatalf("seller listings failed: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("expected 2 seller listings, got %d", len(mine))
	}

	if err := svc.Cancel(first.ListingID, "seller", testNow); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	mine, _ = svc.ListingsBySeller("seller")
	if len(mine) != 1 {
		t.Errorf("cancelled listing still reported as active: %d", len(mine))
	}
}

func TestSweepExpired_RefundsOnce(t *testing.T) {
	svc, db := newTestService(t)
	seed(t, db, "seller", types.AssetOxygen, 60)

	expired, err := svc.CreateListing("seller", CreateListingRequest{
		ResourceType: types.AssetOxygen, Amount: 40, PricePerUnit: 2,
	}, testNow.Add(-ListingLifetime-time.Hour))
	if err != nil {
		t.Fatalf("create listing failed: %v", err)
	}
	fresh, err := svc.CreateListing("seller", CreateListingRequest{
		ResourceType: types.AssetOxygen, Amount: 20, PricePerUnit: 2,
	}, testNow)
	if err != nil {
		t.Fatalf("create listing failed: %v", err)
	}

	result, err := svc.SweepExpired(testNow)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Expired != 1 || result.Refunded != 40 {
		t.Errorf("unexpected sweep result: %+v", result)
	}

	if got := balance(t, db, "seller", types.AssetOxygen); got != 40 {
		t.Errorf("expected refund to restore 40, got %d", got)
	}

	stored, _ := svc.db.GetListing(expired.ListingID)
	if stored.Status != StatusExpired {
		t.Errorf("expected expired status, got %s", stored.Status)
	}
	stillActive, _ := svc.db.GetListing(fresh.ListingID)
	if stillActive.Status != StatusActive {
		t.Errorf("sweep touched unexpired listing: %s", stillActive.Status)
	}

	// Sweeping again must be a no-op.
	again, err := svc.SweepExpired(testNow)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if again.Expired != 0 {
		t.Errorf("second sweep expired %d listings", again.Expired)
	}
	if got := balance(t, db, "seller", types.AssetOxygen); got != 40 {
		t.Errorf("second sweep double-refunded: %d", got)
	}
}

func TestTradeHistory_IncludesBothSides(t *testing.T) {
	svc, db := newTestService(t)
	seed(t, db, "seller", types.AssetOxygen, 10)
	seed(t, db, "buyer", types.AssetLunaris, 100)

	listing, err := svc.CreateListing("seller", CreateListingRequest{
		ResourceType: types.AssetOxygen, Amount: 10, PricePerUnit: 1,
	}, testNow)
	if err != nil {
		t.Fatalf("create listing failed: %v", err)
	}
	if _, err := svc.Purchase(listing.ListingID, "buyer", testNow); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}

	for _, user := range []string{"buyer", "seller"} {
		trades, err := svc.TradeHistory(user)
		if err != nil {
			t.Fatalf("trade history failed: %v", err)
		}
		if len(trades) != 1 {
			t.Errorf("%s: expected 1 trade, got %d", user, len(trades))
		}
	}
}
