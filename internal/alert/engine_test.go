package alert

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whale-tracker/internal/models"
	"github.com/whale-tracker/internal/types"
)

type fakeAlertStore struct {
	alerts []*models.Alert
	err    error
}

func (f *fakeAlertStore) ListActive(ctx context.Context) ([]*models.Alert, error) {
	return f.alerts, f.err
}

type fakeHistoryStore struct {
	mu      sync.Mutex
	entries []*models.AlertHistory
}

func (f *fakeHistoryStore) Insert(ctx context.Context, entry *models.AlertHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeHistoryStore) all() []*models.AlertHistory {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries
}

type fakeChannel struct {
	channel types.ChannelType
	err     error
	mu      sync.Mutex
	sent    []string
}

func (f *fakeChannel) Type() types.ChannelType { return f.channel }

func (f *fakeChannel) Send(ctx context.Context, webhookURL, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, message)
	return f.err
}

func decimalPtr(v decimal.Decimal) *decimal.Decimal { return &v }

func movementEvent(balance int64, txAmount float64) models.Event {
	amount := decimal.NewFromFloat(txAmount)
	return models.Event{
		Type:      types.EventWhaleMovement,
		Timestamp: time.Now(),
		Whale: &models.Whale{
			ID:            "w1",
			WalletAddress: "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
			Balance:       decimal.NewFromInt(balance),
			BalanceUSD:    decimal.NewFromInt(balance).Mul(decimal.NewFromFloat(0.0001)),
			IsActive:      true,
		},
		Transaction: &models.WhaleTransaction{
			ID:        "tx1",
			Type:      types.TransactionBuy,
			Amount:    amount,
			AmountUSD: amount.Mul(decimal.NewFromFloat(0.0001)),
		},
	}
}

func TestConditionMatches(t *testing.T) {
	tests := []struct {
		name      string
		condition models.AlertCondition
		event     models.Event
		want      bool
	}{
		{
			name:      "new whale condition matches new whale event",
			condition: models.AlertCondition{Type: types.ConditionNewWhale},
			event:     models.Event{Type: types.EventNewWhale},
			want:      true,
		},
		{
			name:      "new whale condition ignores movement",
			condition: models.AlertCondition{Type: types.ConditionNewWhale},
			event:     models.Event{Type: types.EventWhaleMovement},
			want:      false,
		},
		{
			name:      "whale exit condition matches exit event",
			condition: models.AlertCondition{Type: types.ConditionWhaleExit},
			event:     models.Event{Type: types.EventWhaleExit},
			want:      true,
		},
		{
			name: "large transfer at exact boundary matches",
			condition: models.AlertCondition{
				Type:  types.ConditionLargeTransfer,
				Value: decimalPtr(decimal.NewFromInt(1000)),
			},
			event: movementEvent(1000000, 1000),
			want:  true,
		},
		{
			name: "large transfer below boundary does not match",
			condition: models.AlertCondition{
				Type:  types.ConditionLargeTransfer,
				Value: decimalPtr(decimal.NewFromInt(1000)),
			},
			event: movementEvent(1000000, 999.99),
			want:  false,
		},
		{
			name: "large transfer compares token amount, not USD value",
			condition: models.AlertCondition{
				Type:  types.ConditionLargeTransfer,
				Value: decimalPtr(decimal.NewFromInt(100000)),
			},
			// 150,000 tokens is only ~$15 at the test price
			event: movementEvent(1000000, 150000),
			want:  true,
		},
		{
			name: "large transfer without transaction does not match",
			condition: models.AlertCondition{
				Type:  types.ConditionLargeTransfer,
				Value: decimalPtr(decimal.NewFromInt(1000)),
			},
			event: models.Event{Type: types.EventNewWhale, Whale: &models.Whale{}},
			want:  false,
		},
		{
			name: "price impact uses absolute value",
			condition: models.AlertCondition{
				Type:  types.ConditionPriceImpact,
				Value: decimalPtr(decimal.NewFromInt(2)),
			},
			event: func() models.Event {
				e := movementEvent(1000000, 500)
				e.Transaction.PriceImpact = decimalPtr(decimal.NewFromFloat(-3.5))
				return e
			}(),
			want: true,
		},
		{
			name: "price impact without impact field does not match",
			condition: models.AlertCondition{
				Type:  types.ConditionPriceImpact,
				Value: decimalPtr(decimal.NewFromInt(2)),
			},
			event: movementEvent(1000000, 500),
			want:  false,
		},
		{
			name: "balance change greater",
			condition: models.AlertCondition{
				Type:     types.ConditionBalanceChange,
				Operator: types.OpGreater,
				Value:    decimalPtr(decimal.NewFromInt(900000)),
			},
			event: movementEvent(1000000, 500),
			want:  true,
		},
		{
			name: "balance change less or equal at boundary",
			condition: models.AlertCondition{
				Type:     types.ConditionBalanceChange,
				Operator: types.OpLessOrEqual,
				Value:    decimalPtr(decimal.NewFromInt(1000000)),
			},
			event: movementEvent(1000000, 500),
			want:  true,
		},
		{
			name: "balance change equal mismatch",
			condition: models.AlertCondition{
				Type:     types.ConditionBalanceChange,
				Operator: types.OpEqual,
				Value:    decimalPtr(decimal.NewFromInt(999999)),
			},
			event: movementEvent(1000000, 500),
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := conditionMatches(&tt.condition, tt.event)
			if got != tt.want {
				t.Errorf("conditionMatches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandleEventRecordsHistoryPerTrigger(t *testing.T) {
	history := &fakeHistoryStore{}
	discord := &fakeChannel{channel: types.ChannelDiscord}

	alerts := &fakeAlertStore{alerts: []*models.Alert{
		{
			ID:     "a1",
			UserID: "u1",
			Name:   "Big Moves",
			Conditions: []models.AlertCondition{
				{Type: types.ConditionNewWhale},
				{Type: types.ConditionWhaleExit},
			},
			Channels: []types.ChannelType{types.ChannelDiscord},
			IsActive: true,
		},
	}}

	engine := NewEngine(alerts, history, map[types.ChannelType]NotificationChannel{
		types.ChannelDiscord: discord,
	})

	event := models.Event{
		Type:      types.EventNewWhale,
		Timestamp: time.Now(),
		Whale: &models.Whale{
			WalletAddress: "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
			Balance:       decimal.NewFromInt(500000),
			BalanceUSD:    decimal.NewFromInt(50),
		},
	}

	engine.HandleEvent(context.Background(), event)

	entries := history.all()
	require.Len(t, entries, 1, "one history row per trigger even with multiple matching conditions")
	assert.True(t, entries[0].Success)
	assert.Empty(t, entries[0].ErrorMessage)
	assert.Equal(t, "a1", entries[0].AlertID)
	require.Len(t, discord.sent, 1)
	assert.Contains(t, discord.sent[0], "🐋 **Big Moves** Alert!")
	assert.Contains(t, discord.sent[0], "7xKX...gAsU")
}

func TestHandleEventPartialChannelFailure(t *testing.T) {
	history := &fakeHistoryStore{}
	discord := &fakeChannel{channel: types.ChannelDiscord}
	slack := &fakeChannel{channel: types.ChannelSlack, err: errors.New("webhook returned status 500")}
	telegram := &fakeChannel{channel: types.ChannelTelegram, err: errors.New("telegram notifications not implemented")}

	alerts := &fakeAlertStore{alerts: []*models.Alert{
		{
			ID:         "a1",
			UserID:     "u1",
			Name:       "Everything",
			Conditions: []models.AlertCondition{{Type: types.ConditionNewWhale}},
			Channels:   []types.ChannelType{types.ChannelDiscord, types.ChannelSlack, types.ChannelTelegram},
			IsActive:   true,
		},
	}}

	engine := NewEngine(alerts, history, map[types.ChannelType]NotificationChannel{
		types.ChannelDiscord:  discord,
		types.ChannelSlack:    slack,
		types.ChannelTelegram: telegram,
	})

	engine.HandleEvent(context.Background(), models.Event{
		Type:      types.EventNewWhale,
		Timestamp: time.Now(),
		Whale:     &models.Whale{WalletAddress: "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"},
	})

	entries := history.all()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success, "any channel failure marks the trigger failed")
	assert.Contains(t, entries[0].ErrorMessage, "slack:")
	assert.Contains(t, entries[0].ErrorMessage, "telegram:")
	assert.NotContains(t, entries[0].ErrorMessage, "discord:")
}

func TestHandleEventIgnoresStatsUpdate(t *testing.T) {
	history := &fakeHistoryStore{}
	alerts := &fakeAlertStore{alerts: []*models.Alert{
		{
			ID:         "a1",
			UserID:     "u1",
			Name:       "Anything",
			Conditions: []models.AlertCondition{{Type: types.ConditionNewWhale}},
			Channels:   []types.ChannelType{types.ChannelDiscord},
			IsActive:   true,
		},
	}}

	engine := NewEngine(alerts, history, map[types.ChannelType]NotificationChannel{})
	engine.HandleEvent(context.Background(), models.Event{Type: types.EventStatsUpdate, Timestamp: time.Now()})

	assert.Empty(t, history.all())
}

func TestDiscordChannelPayload(t *testing.T) {
	var payload map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ch := &DiscordChannel{client: server.Client()}
	err := ch.Send(context.Background(), server.URL, "hello whales")
	require.NoError(t, err)

	assert.Equal(t, "hello whales", payload["content"])
	assert.Equal(t, "Whale Tracker", payload["username"])
	assert.NotEmpty(t, payload["avatar_url"])
}

func TestSlackChannelPayload(t *testing.T) {
	var payload map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
	}))
	defer server.Close()

	ch := &SlackChannel{client: server.Client()}
	err := ch.Send(context.Background(), server.URL, "hello whales")
	require.NoError(t, err)

	assert.Equal(t, "hello whales", payload["text"])
	assert.Equal(t, "Whale Tracker", payload["username"])
	assert.Equal(t, ":whale:", payload["icon_emoji"])
}

func TestWebhookErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	ch := &DiscordChannel{client: server.Client()}
	err := ch.Send(context.Background(), server.URL, "hello")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "403"))
}

func TestUnimplementedChannelFails(t *testing.T) {
	ch := &UnimplementedChannel{channel: types.ChannelEmail}
	err := ch.Send(context.Background(), "http://example.com", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not implemented")
}
