package economy

import (
	"errors"
	"path/filepath"
	"testing"

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
	if err := db.AutoMigrate(&Balance{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestCreditCreatesAndAccumulates(t *testing.T) {
	db := openTestDB(t)

	if err := Credit(db, "user-1", "oxygen", 50); err != nil {
		t.Fatalf("first credit failed: %v", err)
	}
	if err := Credit(db, "user-1", "oxygen", 25); err != nil {
		t.Fatalf("second credit failed: %v", err)
	}

	amount, err := GetAmount(db, "user-1", "oxygen")
	if err != nil {
		t.Fatalf("get amount failed: %v", err)
	}
	if amount != 75 {
		t.Errorf("expected balance 75, got %d", amount)
	}
}

func TestDebitInsufficientLeavesBalanceUntouched(t *testing.T) {
	db := openTestDB(t)

	if err := Credit(db, "user-1", "lunaris", 100); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	err := Debit(db, "user-1", "lunaris", 101)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	amount, _ := GetAmount(db, "user-1", "lunaris")
	if amount != 100 {
		t.Errorf("balance mutated by failed debit: %d", amount)
	}
}

func TestDebitMissingBalance(t *testing.T) {
	db := openTestDB(t)

	err := Debit(db, "ghost", "energy", 1)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance for missing balance, got %v", err)
	}
}

func TestDebitExactAmount(t *testing.T) {
	db := openTestDB(t)

	if err := Credit(db, "user-1", "energy", 30); err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if err := Debit(db, "user-1", "energy", 30); err != nil {
		t.Fatalf("exact debit failed: %v", err)
	}

	amount, _ := GetAmount(db, "user-1", "energy")
	if amount != 0 {
		t.Errorf("expected zero balance, got %d", amount)
	}
}

func TestGetAllReturnsAssetMap(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)

	for asset, amount := range map[string]int64{"oxygen": 10, "lunaris": 500} {
		if err := svc.Seed("user-2", asset, amount); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	balances, err := svc.Balances("user-2")
	if err != nil {
		t.Fatalf("balances failed: %v", err)
	}
	if len(balances) != 2 || balances["oxygen"] != 10 || balances["lunaris"] != 500 {
		t.Errorf("unexpected balances: %v", balances)
	}
}

func TestGetAmountMissingIsZero(t *testing.T) {
	db := openTestDB(t)

	amount, err := GetAmount(db, "nobody", "oxygen")
	if err != nil {
		t.Fatalf("get amount failed: %v", err)
	}
	if amount != 0 {
		t.Errorf("expected 0 for missing balance, got %d", amount)
	}
}
