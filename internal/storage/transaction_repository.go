package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/whale-tracker/internal/models"
	"github.com/whale-tracker/internal/types"
)

// TransactionRepository handles whale transaction persistence in ClickHouse.
// Amounts are stored as Float64 so the aggregate queries stay cheap; exact
// balances live in Postgres on the whale rows.
type TransactionRepository struct {
	db *ClickHouseDB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *ClickHouseDB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// EnsureSchema creates the whale_transactions table if it does not exist
func (r *TransactionRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS whale_transactions (
			id String,
			whale_id String,
			wallet_address String,
			signature String,
			type LowCardinality(String),
			amount Float64,
			amount_usd Float64,
			price_impact Nullable(Float64),
			timestamp DateTime,
			created_at DateTime DEFAULT now()
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (wallet_address, timestamp)
		TTL timestamp + INTERVAL 90 DAY
	`
	if err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure whale_transactions schema: %w", err)
	}
	return nil
}

// Insert inserts a single whale transaction
func (r *TransactionRepository) Insert(ctx context.Context, tx *models.WhaleTransaction) error {
	if err := ValidateAddress(tx.WalletAddress); err != nil {
		return err
	}

	var priceImpact *float64
	if tx.PriceImpact != nil {
		v := tx.PriceImpact.InexactFloat64()
		priceImpact = &v
	}

	query := `
		INSERT INTO whale_transactions (
			id, whale_id, wallet_address, signature, type,
			amount, amount_usd, price_impact, timestamp, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := r.db.Conn().Exec(ctx, query,
		tx.ID,
		tx.WhaleID,
		tx.WalletAddress,
		tx.Signature,
		string(tx.Type),
		tx.Amount.InexactFloat64(),
		tx.AmountUSD.InexactFloat64(),
		priceImpact,
		tx.Timestamp,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert whale transaction: %w", err)
	}
	return nil
}

// BatchInsert inserts multiple whale transactions in a batch
func (r *TransactionRepository) BatchInsert(ctx context.Context, transactions []*models.WhaleTransaction) error {
	if len(transactions) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO whale_transactions (
			id, whale_id, wallet_address, signature, type,
			amount, amount_usd, price_impact, timestamp, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	now := time.Now()
	for _, tx := range transactions {
		if err := ValidateAddress(tx.WalletAddress); err != nil {
			return fmt.Errorf("invalid address %s: %w", tx.WalletAddress, err)
		}

		var priceImpact *float64
		if tx.PriceImpact != nil {
			v := tx.PriceImpact.InexactFloat64()
			priceImpact = &v
		}

		err = batch.Append(
			tx.ID,
			tx.WhaleID,
			tx.WalletAddress,
			tx.Signature,
			string(tx.Type),
			tx.Amount.InexactFloat64(),
			tx.AmountUSD.InexactFloat64(),
			priceImpact,
			tx.Timestamp,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to append transaction %s to batch: %w", tx.Signature, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// Recent retrieves the most recent whale transactions, newest first
func (r *TransactionRepository) Recent(ctx context.Context, limit int) ([]*models.WhaleTransaction, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, whale_id, wallet_address, signature, type,
			   amount, amount_usd, price_impact, timestamp, created_at
		FROM whale_transactions
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := r.db.Conn().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.WhaleTransaction
	for rows.Next() {
		var tx models.WhaleTransaction
		var txType string
		var amount, amountUSD float64
		var priceImpact *float64

		err := rows.Scan(
			&tx.ID,
			&tx.WhaleID,
			&tx.WalletAddress,
			&tx.Signature,
			&txType,
			&amount,
			&amountUSD,
			&priceImpact,
			&tx.Timestamp,
			&tx.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		tx.Type = types.TransactionType(txType)
		tx.Amount = decimal.NewFromFloat(amount)
		tx.AmountUSD = decimal.NewFromFloat(amountUSD)
		if priceImpact != nil {
			d := decimal.NewFromFloat(*priceImpact)
			tx.PriceImpact = &d
		}
		transactions = append(transactions, &tx)
	}
	return transactions, rows.Err()
}

// Analytics holds aggregate transaction metrics over a trailing window
type Analytics struct {
	Volume24h       decimal.Decimal `json:"volume24h"`
	TxCount24h      uint64          `json:"txCount24h"`
	AvgPriceImpact  decimal.Decimal `json:"avgPriceImpact"`
	LargestTransfer decimal.Decimal `json:"largestTransfer"`
}

// Analytics24h computes aggregate metrics over the trailing 24 hours
func (r *TransactionRepository) Analytics24h(ctx context.Context) (*Analytics, error) {
	query := `
		SELECT
			coalesce(sum(amount_usd), 0),
			count(),
			coalesce(avg(price_impact), 0),
			coalesce(max(amount_usd), 0)
		FROM whale_transactions
		WHERE timestamp >= now() - INTERVAL 24 HOUR
	`

	var volume, avgImpact, largest float64
	var count uint64

	row := r.db.Conn().QueryRow(ctx, query)
	if err := row.Scan(&volume, &count, &avgImpact, &largest); err != nil {
		return nil, fmt.Errorf("failed to compute transaction analytics: %w", err)
	}

	return &Analytics{
		Volume24h:       decimal.NewFromFloat(volume),
		TxCount24h:      count,
		AvgPriceImpact:  decimal.NewFromFloat(avgImpact),
		LargestTransfer: decimal.NewFromFloat(largest),
	}, nil
}
