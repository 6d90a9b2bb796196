package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/whale-tracker/internal/types"
)

// WhaleTransaction represents a transaction inferred for a tracked whale.
// Identity is the on-chain transaction signature; rows are immutable once
// recorded and always belong to exactly one whale. The wallet address is
// denormalized so analytics queries never need to join back to Postgres.
type WhaleTransaction struct {
	ID            string                `json:"id" db:"id"`
	WhaleID       string                `json:"whaleId" db:"whale_id"`
	WalletAddress string                `json:"walletAddress" db:"wallet_address"`
	Signature     string                `json:"signature" db:"signature"`
	Type          types.TransactionType `json:"type" db:"type"`
	Amount        decimal.Decimal       `json:"amount" db:"amount"`
	AmountUSD     decimal.Decimal       `json:"amountUsd" db:"amount_usd"`
	PriceImpact   *decimal.Decimal      `json:"priceImpact,omitempty" db:"price_impact"`
	Timestamp     time.Time             `json:"timestamp" db:"timestamp"`
	CreatedAt     time.Time             `json:"createdAt" db:"created_at"`
}
