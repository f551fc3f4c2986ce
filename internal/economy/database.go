package economy

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrInsufficientBalance is returned when a debit would take a balance
// below zero. The debit leaves no mutation behind.
var ErrInsufficientBalance = errors.New("insufficient balance")

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// Credit adds amount to the user's balance of asset, creating the balance
// row on first use. Safe to call inside a caller-owned transaction by
// passing the transaction handle as tx.
func Credit(tx *gorm.DB, userID, asset string, amount int64) error {
	res := tx.Model(&Balance{}).
		Where("user_id = ? AND asset = ?", userID, asset).
		UpdateColumn("amount", gorm.Expr("amount + ?", amount))
	if res.Error != nil {
		return fmt.Errorf("failed to credit balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if err := tx.Create(&Balance{UserID: userID, Asset: asset, Amount: amount}).Error; err != nil {
			return fmt.Errorf("failed to create balance: %w", err)
		}
	}
	return nil
}

// Debit subtracts amount from the user's balance of asset. The update is
// conditional on the balance covering the amount; a shortfall returns
// ErrInsufficientBalance without touching the row.
func Debit(tx *gorm.DB, userID, asset string, amount int64) error {
	res := tx.Model(&Balance{}).
		Where("user_id = ? AND asset = ? AND amount >= ?", userID, asset, amount).
		UpdateColumn("amount", gorm.Expr("amount - ?", amount))
	if res.Error != nil {
		return fmt.Errorf("failed to debit balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// GetAmount returns the user's balance of a single asset, zero if the
// balance row does not exist yet.
func GetAmount(tx *gorm.DB, userID, asset string) (int64, error) {
	var balance Balance
	if err := tx.Where("user_id = ? AND asset = ?", userID, asset).First(&balance).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to fetch balance: %w", err)
	}
	return balance.Amount, nil
}

// Credit adds amount to a balance outside of any caller transaction.
func (d *Database) Credit(userID, asset string, amount int64) error {
	return Credit(d.db, userID, asset, amount)
}

// GetAmount returns a single asset balance.
func (d *Database) GetAmount(userID, asset string) (int64, error) {
	return GetAmount(d.db, userID, asset)
}

// GetAll returns all of the user's balances as an asset -> amount map.
func (d *Database) GetAll(userID string) (map[string]int64, error) {
	var balances []Balance
	if err := d.db.Where("user_id = ?", userID).Find(&balances).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch balances: %w", err)
	}

	out := make(map[string]int64, len(balances))
	for _, b := range balances {
		out[b.Asset] = b.Amount
	}
	return out, nil
}
