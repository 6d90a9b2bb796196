// Package types provides common type definitions for the whale tracking system.
package types

// EventType represents the kind of domain event produced by a scan cycle
type EventType string

const (
	// EventNewWhale represents an address observed above the whale threshold for the first time
	EventNewWhale EventType = "new_whale"
	// EventWhaleExit represents a tracked whale that disappeared from the holder set
	EventWhaleExit EventType = "whale_exit"
	// EventWhaleMovement represents a significant balance change on a tracked whale
	EventWhaleMovement EventType = "whale_movement"
	// EventStatsUpdate represents the end-of-cycle summary event
	EventStatsUpdate EventType = "stats_update"
)

// TransactionType represents the inferred direction of a whale transaction
type TransactionType string

const (
	// TransactionBuy represents a balance increase
	TransactionBuy TransactionType = "buy"
	// TransactionSell represents a balance decrease
	TransactionSell TransactionType = "sell"
	// TransactionTransfer represents a movement with no price-relevant direction
	TransactionTransfer TransactionType = "transfer"
)

// ChannelType represents a notification delivery channel
type ChannelType string

const (
	// ChannelDiscord delivers via a Discord webhook
	ChannelDiscord ChannelType = "discord"
	// ChannelSlack delivers via a Slack incoming webhook
	ChannelSlack ChannelType = "slack"
	// ChannelTelegram is recognized but not implemented
	ChannelTelegram ChannelType = "telegram"
	// ChannelEmail is recognized but not implemented
	ChannelEmail ChannelType = "email"
)

// ConditionType represents the kind of alert condition
type ConditionType string

const (
	// ConditionNewWhale matches new_whale events
	ConditionNewWhale ConditionType = "new_whale"
	// ConditionWhaleExit matches whale_exit events
	ConditionWhaleExit ConditionType = "whale_exit"
	// ConditionLargeTransfer matches events carrying a transaction whose token amount is at or above a threshold
	ConditionLargeTransfer ConditionType = "large_transfer"
	// ConditionPriceImpact matches events carrying a transaction with absolute price impact at or above a threshold
	ConditionPriceImpact ConditionType = "price_impact"
	// ConditionBalanceChange compares the whale's current balance against a threshold
	ConditionBalanceChange ConditionType = "balance_change"
)

// Operator represents a comparison operator for balance_change conditions
type Operator string

const (
	// OpGreater is strict greater-than
	OpGreater Operator = ">"
	// OpLess is strict less-than
	OpLess Operator = "<"
	// OpEqual is exact equality
	OpEqual Operator = "="
	// OpGreaterOrEqual is greater-than-or-equal
	OpGreaterOrEqual Operator = ">="
	// OpLessOrEqual is less-than-or-equal
	OpLessOrEqual Operator = "<="
)

// ValidOperator reports whether op is a recognized comparison operator
func ValidOperator(op Operator) bool {
	switch op {
	case OpGreater, OpLess, OpEqual, OpGreaterOrEqual, OpLessOrEqual:
		return true
	}
	return false
}

// ValidChannel reports whether ch is a recognized notification channel
func ValidChannel(ch ChannelType) bool {
	switch ch {
	case ChannelDiscord, ChannelSlack, ChannelTelegram, ChannelEmail:
		return true
	}
	return false
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
