package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/whale-tracker/internal/types"
)

// ScanStats summarizes one completed scan cycle
type ScanStats struct {
	TotalWhales   int `json:"totalWhales"`
	NewWhales     int `json:"newWhales"`
	UpdatedWhales int `json:"updatedWhales"`
	ExitedWhales  int `json:"exitedWhales"`
}

// Event is an in-memory domain event produced by a scan cycle. Events are
// handed to consumers by value and never mutated after emission. Whale and
// Transaction are nil for event types that do not carry them.
type Event struct {
	Type             types.EventType
	Timestamp        time.Time
	Whale            *Whale
	Transaction      *WhaleTransaction
	Message          string
	Change           decimal.Decimal
	PercentageChange float64
	Stats            *ScanStats
}

// wireEvent is the JSON envelope pushed to connected clients
type wireEvent struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// MarshalJSON serializes the event to the transport-neutral envelope
// {type, timestamp, data}.
func (e Event) MarshalJSON() ([]byte, error) {
	data := make(map[string]interface{})

	switch e.Type {
	case types.EventStatsUpdate:
		if e.Stats != nil {
			data["totalWhales"] = e.Stats.TotalWhales
			data["newWhales"] = e.Stats.NewWhales
			data["updatedWhales"] = e.Stats.UpdatedWhales
			data["exitedWhales"] = e.Stats.ExitedWhales
		}
	case types.EventWhaleMovement:
		data["whale"] = e.Whale
		data["change"] = e.Change
		data["percentageChange"] = e.PercentageChange
		data["message"] = e.Message
	default:
		data["whale"] = e.Whale
		data["message"] = e.Message
	}

	if e.Transaction != nil {
		data["transaction"] = e.Transaction
	}

	return json.Marshal(wireEvent{
		Type:      string(e.Type),
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
		Data:      data,
	})
}
