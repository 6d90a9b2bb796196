package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/whale-tracker/internal/models"
)

// AlertHistoryRepository handles append-only alert delivery records
type AlertHistoryRepository struct {
	db *PostgresDB
}

// NewAlertHistoryRepository creates a new alert history repository
func NewAlertHistoryRepository(db *PostgresDB) *AlertHistoryRepository {
	return &AlertHistoryRepository{db: db}
}

// Insert records one triggered alert evaluation
func (r *AlertHistoryRepository) Insert(ctx context.Context, entry *models.AlertHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	query := `
		INSERT INTO alert_history (id, alert_id, user_id, message, channels, success, error_message, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		entry.ID,
		entry.AlertID,
		entry.UserID,
		entry.Message,
		channelStrings(entry.Channels),
		entry.Success,
		entry.ErrorMessage,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert history: %w", err)
	}
	return nil
}

// ListByUser retrieves recent alert history for a user, newest first
func (r *AlertHistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.AlertHistory, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, alert_id, user_id, message, channels, success, error_message, timestamp
		FROM alert_history
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert history: %w", err)
	}
	defer rows.Close()

	var entries []*models.AlertHistory
	for rows.Next() {
		var entry models.AlertHistory
		var channels []string
		err := rows.Scan(
			&entry.ID,
			&entry.AlertID,
			&entry.UserID,
			&entry.Message,
			&channels,
			&entry.Success,
			&entry.ErrorMessage,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert history: %w", err)
		}
		entry.Channels = channelTypes(channels)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
