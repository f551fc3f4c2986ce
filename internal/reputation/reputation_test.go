package reputation

import (
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.AutoMigrate(&Reputation{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestTierFor_AllBoundaries(t *testing.T) {
	tests := []struct {
		points int64
		tier   int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{499, 2},
		{500, 3},
		{999, 3},
		{1000, 4},
		{2499, 4},
		{2500, 5},
		{4999, 5},
		{5000, 6},
		{100000, 6},
	}
	for _, tt := range tests {
		if got := TierFor(tt.points); got != tt.tier {
			t.Errorf("points %d: expected tier %d, got %d", tt.points, tt.tier, got)
		}
	}
}

func TestAward_AccumulatesAndRecomputesTier(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)

	// 40 + 70 + 400 = 510 crosses the tier 3 threshold
	for _, points := range []int64{40, 70, 400} {
		if err := svc.Award(db, "user-1", points, "event reward", "2026-08-28"); err != nil {
			t.Fatalf("award failed: %v", err)
		}
	}

	rep, err := svc.Get("user-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if rep.TotalPoints != 510 {
		t.Errorf("expected 510 points, got %d", rep.TotalPoints)
	}
	if rep.Tier != 3 {
		t.Errorf("expected tier 3, got %d", rep.Tier)
	}
	if rep.TierName != "Trader" {
		t.Errorf("expected tier name Trader, got %s", rep.TierName)
	}
	if rep.TradesCompleted != 0 {
		t.Errorf("non-trade reason incremented trade counter: %d", rep.TradesCompleted)
	}
}

func TestAward_TradeReasonsIncrementCounter(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)

	for _, reason := range []string{"completed purchase", "completed sale", "direct trade"} {
		if err := svc.Award(db, "user-1", TradePoints, reason, "2026-08-28"); err != nil {
			t.Fatalf("award failed: %v", err)
		}
	}
	if err := svc.Award(db, "user-1", ClaimPoints, "claimed Premium Oxygen", "2026-08-28"); err != nil {
		t.Fatalf("award failed: %v", err)
	}

	rep, err := svc.Get("user-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if rep.TradesCompleted != 3 {
		t.Errorf("expected 3 trades completed, got %d", rep.TradesCompleted)
	}
	if rep.TotalPoints != 3*TradePoints+ClaimPoints {
		t.Errorf("unexpected point total: %d", rep.TotalPoints)
	}
}

func TestTouchStreak_Scenarios(t *testing.T) {
	today := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		lastClaimDate string
		streak        int
		expect        int
	}{
		{"continues from yesterday", "2026-08-27", 4, 5},
		{"unchanged same day", "2026-08-28", 5, 5},
		{"resets after gap", "2026-08-25", 9, 1},
		{"starts at one for new user", "", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openTestDB(t)
			svc := NewService(db)

			if tt.lastClaimDate != "" || tt.streak != 0 {
				record := &Reputation{
					UserID:        "user-1",
					Tier:          1,
					ClaimStreak:   tt.streak,
					LastClaimDate: tt.lastClaimDate,
				}
				if err := db.Create(record).Error; err != nil {
					t.Fatalf("seed failed: %v", err)
				}
			}

			if err := svc.TouchStreak(db, "user-1", today); err != nil {
				t.Fatalf("touch streak failed: %v", err)
			}

			var record Reputation
			if err := db.Where("user_id = ?", "user-1").First(&record).Error; err != nil {
				t.Fatalf("fetch failed: %v", err)
			}
			if record.ClaimStreak != tt.expect {
				t.Errorf("expected streak %d, got %d", tt.expect, record.ClaimStreak)
			}
			if record.LastClaimDate != "2026-08-28" {
				t.Errorf("last claim date not advanced: %s", record.LastClaimDate)
			}
		})
	}
}

func TestGet_ZeroStateForUnknownUser(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)

	rep, err := svc.Get("nobody")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if rep.Tier != 1 || rep.TierName != "Newcomer" || rep.TotalPoints != 0 {
		t.Errorf("unexpected zero state: %+v", rep)
	}
}
