package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/whale-tracker/internal/models"
	"github.com/whale-tracker/internal/types"
)

// Solana address regex pattern (base58, 32-44 characters)
var solanaAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// WhaleRepository handles whale data persistence
type WhaleRepository struct {
	db *PostgresDB
}

// NewWhaleRepository creates a new whale repository
func NewWhaleRepository(db *PostgresDB) *WhaleRepository {
	return &WhaleRepository{db: db}
}

// ValidateAddress validates a Solana wallet address format
func ValidateAddress(address string) error {
	if !solanaAddressRegex.MatchString(address) {
		return &types.ServiceError{
			Code:    "INVALID_ADDRESS_FORMAT",
			Message: fmt.Sprintf("invalid address format: %s (must be base58, 32-44 characters)", address),
			Details: map[string]any{
				"address": address,
				"format":  "[1-9A-HJ-NP-Za-km-z]{32,44}",
			},
		}
	}
	return nil
}

const whaleColumns = `id, wallet_address, balance, balance_usd, rank,
	   first_detected, last_activity, is_active, created_at, updated_at`

func scanWhale(row pgx.Row) (*models.Whale, error) {
	var w models.Whale
	err := row.Scan(
		&w.ID,
		&w.WalletAddress,
		&w.Balance,
		&w.BalanceUSD,
		&w.Rank,
		&w.FirstDetected,
		&w.LastActivity,
		&w.IsActive,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetByAddress retrieves a whale by wallet address. Returns nil without error
// when the address has never been tracked.
func (r *WhaleRepository) GetByAddress(ctx context.Context, address string) (*models.Whale, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + whaleColumns + `
		FROM whales
		WHERE wallet_address = $1
	`

	whale, err := scanWhale(r.db.Pool().QueryRow(ctx, query, address))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get whale: %w", err)
	}
	return whale, nil
}

// Upsert creates or updates a whale record keyed on the wallet address.
// A conflicting row keeps its id and first_detected and is reactivated.
func (r *WhaleRepository) Upsert(ctx context.Context, whale *models.Whale) error {
	if err := ValidateAddress(whale.WalletAddress); err != nil {
		return err
	}

	now := time.Now()
	if whale.ID == "" {
		whale.ID = uuid.NewString()
	}
	if whale.FirstDetected.IsZero() {
		whale.FirstDetected = now
	}
	if whale.LastActivity.IsZero() {
		whale.LastActivity = now
	}

	query := `
		INSERT INTO whales (
			id, wallet_address, balance, balance_usd, rank,
			first_detected, last_activity, is_active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (wallet_address)
		DO UPDATE SET
			balance = EXCLUDED.balance,
			balance_usd = EXCLUDED.balance_usd,
			last_activity = EXCLUDED.last_activity,
			is_active = true,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		whale.ID,
		whale.WalletAddress,
		whale.Balance,
		whale.BalanceUSD,
		whale.Rank,
		whale.FirstDetected,
		whale.LastActivity,
		whale.IsActive,
		now,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert whale: %w", err)
	}
	return nil
}

// ListActiveByRank retrieves active whales ordered by rank ascending.
// limit <= 0 returns all active whales.
func (r *WhaleRepository) ListActiveByRank(ctx context.Context, limit int) ([]*models.Whale, error) {
	query := `
		SELECT ` + whaleColumns + `
		FROM whales
		WHERE is_active = true
		ORDER BY rank ASC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list whales: %w", err)
	}
	defer rows.Close()

	var whales []*models.Whale
	for rows.Next() {
		whale, err := scanWhale(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan whale: %w", err)
		}
		whales = append(whales, whale)
	}
	return whales, rows.Err()
}

// RecomputeRanks reassigns dense ranks 1..N over active whales ordered by
// balance descending. Wallet address breaks ties so ranking is deterministic.
func (r *WhaleRepository) RecomputeRanks(ctx context.Context) error {
	query := `
		UPDATE whales w
		SET rank = ranked.new_rank, updated_at = NOW()
		FROM (
			SELECT id, ROW_NUMBER() OVER (ORDER BY balance DESC, wallet_address ASC) AS new_rank
			FROM whales
			WHERE is_active = true
		) ranked
		WHERE w.id = ranked.id
	`

	_, err := r.db.Pool().Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to recompute whale ranks: %w", err)
	}
	return nil
}

// MarkInactive deactivates a whale that left the holder set. The row is kept
// so history and alert references stay intact.
func (r *WhaleRepository) MarkInactive(ctx context.Context, address string) error {
	if err := ValidateAddress(address); err != nil {
		return err
	}

	query := `
		UPDATE whales
		SET is_active = false, rank = 0, last_activity = NOW(), updated_at = NOW()
		WHERE wallet_address = $1
	`
	result, err := r.db.Pool().Exec(ctx, query, address)
	if err != nil {
		return fmt.Errorf("failed to mark whale inactive: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("whale not found: %s", address)
	}
	return nil
}

// CountActive returns the number of active whales
func (r *WhaleRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM whales WHERE is_active = true`
	if err := r.db.Pool().QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active whales: %w", err)
	}
	return count, nil
}

// CountAll returns the total number of tracked whales, active or not
func (r *WhaleRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM whales`
	if err := r.db.Pool().QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count whales: %w", err)
	}
	return count, nil
}
