package models

import (
	"time"

	"github.com/whale-tracker/internal/types"
)

// AlertHistory is an append-only record of one triggered alert evaluation.
// Success is true only when every attempted channel succeeded; ErrorMessage
// concatenates the failure reasons of the channels that did not.
type AlertHistory struct {
	ID           string              `json:"id" db:"id"`
	AlertID      string              `json:"alertId" db:"alert_id"`
	UserID       string              `json:"userId" db:"user_id"`
	Message      string              `json:"message" db:"message"`
	Channels     []types.ChannelType `json:"channels" db:"channels"`
	Success      bool                `json:"success" db:"success"`
	ErrorMessage string              `json:"errorMessage,omitempty" db:"error_message"`
	Timestamp    time.Time           `json:"timestamp" db:"timestamp"`
}
