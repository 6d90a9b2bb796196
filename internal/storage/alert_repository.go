package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/whale-tracker/internal/models"
	"github.com/whale-tracker/internal/types"
)

// AlertRepository handles alert rule persistence
type AlertRepository struct {
	db *PostgresDB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *PostgresDB) *AlertRepository {
	return &AlertRepository{db: db}
}

func channelStrings(channels []types.ChannelType) []string {
	out := make([]string, len(channels))
	for i, ch := range channels {
		out[i] = string(ch)
	}
	return out
}

func channelTypes(channels []string) []types.ChannelType {
	out := make([]types.ChannelType, len(channels))
	for i, ch := range channels {
		out[i] = types.ChannelType(ch)
	}
	return out
}

func scanAlert(row pgx.Row) (*models.Alert, error) {
	var a models.Alert
	var conditionsJSON []byte
	var channels []string

	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Name,
		&conditionsJSON,
		&channels,
		&a.WebhookURL,
		&a.IsActive,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(conditionsJSON, &a.Conditions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert conditions: %w", err)
	}
	a.Channels = channelTypes(channels)
	return &a, nil
}

const alertColumns = `id, user_id, name, conditions, channels, webhook_url, is_active, created_at, updated_at`

// Create creates a new alert rule
func (r *AlertRepository) Create(ctx context.Context, alert *models.Alert) error {
	if err := alert.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	alert.CreatedAt = now
	alert.UpdatedAt = now

	conditionsJSON, err := json.Marshal(alert.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal alert conditions: %w", err)
	}

	query := `
		INSERT INTO alerts (id, user_id, name, conditions, channels, webhook_url, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.Pool().Exec(ctx, query,
		alert.ID,
		alert.UserID,
		alert.Name,
		conditionsJSON,
		channelStrings(alert.Channels),
		alert.WebhookURL,
		alert.IsActive,
		alert.CreatedAt,
		alert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// Get retrieves an alert by id. Returns nil without error when not found.
func (r *AlertRepository) Get(ctx context.Context, id string) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`

	alert, err := scanAlert(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return alert, nil
}

// ListByUser retrieves all alerts belonging to a user
func (r *AlertRepository) ListByUser(ctx context.Context, userID string) ([]*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// ListActive retrieves every active alert across all users. The alert engine
// evaluates this set against each domain event.
func (r *AlertRepository) ListActive(ctx context.Context) ([]*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE is_active = true`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// Update updates an existing alert rule
func (r *AlertRepository) Update(ctx context.Context, alert *models.Alert) error {
	if err := alert.Validate(); err != nil {
		return err
	}

	alert.UpdatedAt = time.Now()

	conditionsJSON, err := json.Marshal(alert.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal alert conditions: %w", err)
	}

	query := `
		UPDATE alerts
		SET name = $2, conditions = $3, channels = $4, webhook_url = $5, is_active = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query,
		alert.ID,
		alert.Name,
		conditionsJSON,
		channelStrings(alert.Channels),
		alert.WebhookURL,
		alert.IsActive,
		alert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("alert not found: %s", alert.ID)
	}
	return nil
}

// Delete deletes an alert rule
func (r *AlertRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM alerts WHERE id = $1`
	result, err := r.db.Pool().Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("alert not found: %s", id)
	}
	return nil
}
