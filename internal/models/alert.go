package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/whale-tracker/internal/types"
)

// AlertCondition is one condition of an alert rule. The Type tag decides
// which fields are required: large_transfer and price_impact need Value,
// balance_change needs Operator and Value, new_whale and whale_exit need
// neither. Validate enforces the per-type requirements so a stored
// condition never has the "field present only for some variants" ambiguity.
type AlertCondition struct {
	Type     types.ConditionType `json:"type"`
	Operator types.Operator      `json:"operator,omitempty"`
	Value    *decimal.Decimal    `json:"value,omitempty"`
}

// Validate checks that the condition carries the fields its type requires
func (c *AlertCondition) Validate() error {
	switch c.Type {
	case types.ConditionNewWhale, types.ConditionWhaleExit:
		return nil
	case types.ConditionLargeTransfer, types.ConditionPriceImpact:
		if c.Value == nil {
			return fmt.Errorf("condition %q requires a value", c.Type)
		}
		return nil
	case types.ConditionBalanceChange:
		if c.Value == nil {
			return fmt.Errorf("condition %q requires a value", c.Type)
		}
		if !types.ValidOperator(c.Operator) {
			return fmt.Errorf("condition %q requires a valid operator, got %q", c.Type, c.Operator)
		}
		return nil
	default:
		return fmt.Errorf("unknown condition type %q", c.Type)
	}
}

// Alert represents a user-defined alert rule. An alert with zero conditions
// never matches; conditions combine with OR semantics.
type Alert struct {
	ID         string              `json:"id" db:"id"`
	UserID     string              `json:"userId" db:"user_id"`
	Name       string              `json:"name" db:"name"`
	Conditions []AlertCondition    `json:"conditions" db:"conditions"`
	Channels   []types.ChannelType `json:"channels" db:"channels"`
	WebhookURL string              `json:"webhookUrl,omitempty" db:"webhook_url"`
	IsActive   bool                `json:"isActive" db:"is_active"`
	CreatedAt  time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time           `json:"updatedAt" db:"updated_at"`
}

// Validate checks the alert rule for storage
func (a *Alert) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("alert name is required")
	}
	if a.UserID == "" {
		return fmt.Errorf("alert user id is required")
	}
	for i := range a.Conditions {
		if err := a.Conditions[i].Validate(); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
	}
	for _, ch := range a.Channels {
		if !types.ValidChannel(ch) {
			return fmt.Errorf("unknown channel %q", ch)
		}
	}
	return nil
}
