package alert

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/whale-tracker/internal/logging"
	"github.com/whale-tracker/internal/models"
	"github.com/whale-tracker/internal/types"
)

// AlertStore provides the active alert rules to evaluate
type AlertStore interface {
	ListActive(ctx context.Context) ([]*models.Alert, error)
}

// HistoryStore records triggered alert evaluations
type HistoryStore interface {
	Insert(ctx context.Context, entry *models.AlertHistory) error
}

// eventQueueSize bounds the backlog between the scanner and webhook delivery
const eventQueueSize = 256

// Engine consumes scan events and dispatches notifications for matching
// alert rules. Delivery runs on the engine's own goroutine so slow webhooks
// never block the broadcaster or the scan cycle.
type Engine struct {
	alerts   AlertStore
	history  HistoryStore
	channels map[types.ChannelType]NotificationChannel
	queue    chan models.Event
}

// NewEngine creates an alert engine
func NewEngine(alerts AlertStore, history HistoryStore, channels map[types.ChannelType]NotificationChannel) *Engine {
	return &Engine{
		alerts:   alerts,
		history:  history,
		channels: channels,
		queue:    make(chan models.Event, eventQueueSize),
	}
}

// Enqueue hands an event to the engine without blocking. Events are dropped
// with a warning when the queue is full.
func (e *Engine) Enqueue(event models.Event) {
	select {
	case e.queue <- event:
	default:
		logging.WithField("eventType", event.Type).Warn("Alert queue full, dropping event")
	}
}

// Start runs the delivery loop until the context is cancelled
func (e *Engine) Start(ctx context.Context) {
	logging.Info("[AlertEngine] Started")
	for {
		select {
		case <-ctx.Done():
			logging.Info("[AlertEngine] Stopped")
			return
		case event := <-e.queue:
			e.HandleEvent(ctx, event)
		}
	}
}

// HandleEvent evaluates every active alert against one event and dispatches
// notifications for the alerts that match
func (e *Engine) HandleEvent(ctx context.Context, event models.Event) {
	// Summary events never trigger alerts
	if event.Type == types.EventStatsUpdate {
		return
	}

	alerts, err := e.alerts.ListActive(ctx)
	if err != nil {
		logging.WithError(err).Error("[AlertEngine] Failed to load active alerts")
		return
	}

	for _, a := range alerts {
		if !e.matches(a, event) {
			continue
		}
		e.dispatch(ctx, a, event)
	}
}

// matches reports whether any condition of the alert matches the event.
// Conditions combine with OR semantics and evaluation stops at the first hit.
func (e *Engine) matches(a *models.Alert, event models.Event) bool {
	for i := range a.Conditions {
		if conditionMatches(&a.Conditions[i], event) {
			return true
		}
	}
	return false
}

func conditionMatches(c *models.AlertCondition, event models.Event) bool {
	switch c.Type {
	case types.ConditionNewWhale:
		return event.Type == types.EventNewWhale

	case types.ConditionWhaleExit:
		return event.Type == types.EventWhaleExit

	case types.ConditionLargeTransfer:
		if event.Transaction == nil || c.Value == nil {
			return false
		}
		// Threshold is in tokens, not USD
		return event.Transaction.Amount.GreaterThanOrEqual(*c.Value)

	case types.ConditionPriceImpact:
		if event.Transaction == nil || event.Transaction.PriceImpact == nil || c.Value == nil {
			return false
		}
		return event.Transaction.PriceImpact.Abs().GreaterThanOrEqual(*c.Value)

	case types.ConditionBalanceChange:
		if event.Whale == nil || c.Value == nil {
			return false
		}
		cmp := event.Whale.Balance.Cmp(*c.Value)
		switch c.Operator {
		case types.OpGreater:
			return cmp > 0
		case types.OpLess:
			return cmp < 0
		case types.OpEqual:
			return cmp == 0
		case types.OpGreaterOrEqual:
			return cmp >= 0
		case types.OpLessOrEqual:
			return cmp <= 0
		}
		return false
	}
	return false
}

// dispatch sends the notification to every configured channel concurrently
// and records exactly one history row for the trigger
func (e *Engine) dispatch(ctx context.Context, a *models.Alert, event models.Event) {
	message := formatMessage(a, event)

	type result struct {
		channel types.ChannelType
		err     error
	}

	results := make([]result, len(a.Channels))
	var wg sync.WaitGroup

	for i, ch := range a.Channels {
		wg.Add(1)
		go func(i int, ch types.ChannelType) {
			defer wg.Done()

			channel, ok := e.channels[ch]
			if !ok {
				results[i] = result{channel: ch, err: fmt.Errorf("unknown channel %s", ch)}
				return
			}
			results[i] = result{channel: ch, err: channel.Send(ctx, a.WebhookURL, message)}
		}(i, ch)
	}
	wg.Wait()

	var failures []string
	for _, r := range results {
		if r.err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", r.channel, r.err))
		}
	}

	entry := &models.AlertHistory{
		AlertID:      a.ID,
		UserID:       a.UserID,
		Message:      message,
		Channels:     a.Channels,
		Success:      len(failures) == 0,
		ErrorMessage: strings.Join(failures, "; "),
		Timestamp:    event.Timestamp,
	}

	if err := e.history.Insert(ctx, entry); err != nil {
		logging.WithError(err).Error("[AlertEngine] Failed to record alert history")
	}

	logging.WithFields(map[string]interface{}{
		"alertId":   a.ID,
		"eventType": event.Type,
		"channels":  len(a.Channels),
		"success":   entry.Success,
	}).Info("[AlertEngine] Alert dispatched")
}
