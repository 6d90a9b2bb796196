package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Whale represents a token holder at or above the configured whale threshold.
// Identity is the owner wallet address; whales are deactivated rather than
// deleted so the audit history survives exits.
type Whale struct {
	ID            string          `json:"id" db:"id"`
	WalletAddress string          `json:"walletAddress" db:"wallet_address"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	BalanceUSD    decimal.Decimal `json:"balanceUsd" db:"balance_usd"`
	Rank          int             `json:"rank" db:"rank"`
	FirstDetected time.Time       `json:"firstDetected" db:"first_detected"`
	LastActivity  time.Time       `json:"lastActivity" db:"last_activity"`
	IsActive      bool            `json:"isActive" db:"is_active"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

// ShortAddress returns the wallet address shortened to first-4...last-4
func (w *Whale) ShortAddress() string {
	return ShortenAddress(w.WalletAddress)
}

// ShortenAddress shortens a wallet address to first-4...last-4 for display
func ShortenAddress(address string) string {
	if len(address) <= 8 {
		return address
	}
	return fmt.Sprintf("%s...%s", address[:4], address[len(address)-4:])
}
