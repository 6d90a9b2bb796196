// Package scanner runs the periodic holder scan: it diffs the current
// on-chain holder set against tracked whales, emits domain events and keeps
// the dense ranking current.
package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/whale-tracker/internal/chain"
	"github.com/whale-tracker/internal/logging"
	"github.com/whale-tracker/internal/models"
	"github.com/whale-tracker/internal/types"
)

// HolderSource supplies holder balances, token price and signature lookups
type HolderSource interface {
	ListHolders(ctx context.Context, threshold decimal.Decimal) []chain.Holder
	GetTokenPrice(ctx context.Context) decimal.Decimal
	RecentSignature(ctx context.Context, wallet string) string
}

// WhaleStore persists whale state between scan cycles
type WhaleStore interface {
	GetByAddress(ctx context.Context, address string) (*models.Whale, error)
	Upsert(ctx context.Context, whale *models.Whale) error
	ListActiveByRank(ctx context.Context, limit int) ([]*models.Whale, error)
	RecomputeRanks(ctx context.Context) error
	MarkInactive(ctx context.Context, address string) error
}

// TransactionSink records transactions inferred from balance movements
type TransactionSink interface {
	BatchInsert(ctx context.Context, transactions []*models.WhaleTransaction) error
}

// Publisher receives every event a scan cycle emits
type Publisher interface {
	Broadcast(event models.Event)
}

// Snapshotter caches the post-cycle ranking for degraded reads
type Snapshotter interface {
	StoreTopWhales(ctx context.Context, whales []*models.Whale) error
}

// Config holds the scan thresholds
type Config struct {
	// WhaleThreshold is the minimum token balance to count as a whale
	WhaleThreshold decimal.Decimal
	// MovementThresholdPct is the absolute percentage change that emits a movement event
	MovementThresholdPct float64
}

// Engine executes scan cycles. Failures inside a cycle are logged and
// absorbed; the scheduler and callers never see an error cross the cycle
// boundary.
type Engine struct {
	cfg        Config
	source     HolderSource
	whales     WhaleStore
	txs        TransactionSink
	publishers []Publisher
	snapshot   Snapshotter
}

// NewEngine creates a scan engine. txs and snapshot may be nil; publishers
// may be empty.
func NewEngine(cfg Config, source HolderSource, whales WhaleStore, txs TransactionSink, snapshot Snapshotter, publishers ...Publisher) *Engine {
	return &Engine{
		cfg:        cfg,
		source:     source,
		whales:     whales,
		txs:        txs,
		snapshot:   snapshot,
		publishers: publishers,
	}
}

func (e *Engine) publish(event models.Event) {
	for _, p := range e.publishers {
		p.Broadcast(event)
	}
}

// RunScanCycle executes one full scan: fetch, diff, exit detection, rank
// recompute, summary event. Always returns the cycle stats.
func (e *Engine) RunScanCycle(ctx context.Context) *models.ScanStats {
	logger := logging.FromContext(ctx)
	start := time.Now()
	now := time.Now()
	stats := &models.ScanStats{}

	holders := e.source.ListHolders(ctx, e.cfg.WhaleThreshold)
	price := e.source.GetTokenPrice(ctx)

	seen := make(map[string]bool, len(holders))
	var inferredTxs []*models.WhaleTransaction

	for _, holder := range holders {
		seen[holder.WalletAddress] = true

		balanceUSD := holder.Balance.Mul(price)

		existing, err := e.whales.GetByAddress(ctx, holder.WalletAddress)
		if err != nil {
			logger.WithError(err).WithField("wallet", holder.WalletAddress).Error("[Scanner] Whale lookup failed")
			continue
		}

		if existing == nil {
			whale := &models.Whale{
				WalletAddress: holder.WalletAddress,
				Balance:       holder.Balance,
				BalanceUSD:    balanceUSD,
				FirstDetected: now,
				LastActivity:  now,
				IsActive:      true,
			}
			if err := e.whales.Upsert(ctx, whale); err != nil {
				logger.WithError(err).WithField("wallet", holder.WalletAddress).Error("[Scanner] Whale create failed")
				continue
			}

			stats.NewWhales++
			e.publish(models.Event{
				Type:      types.EventNewWhale,
				Timestamp: now,
				Whale:     whale,
				Message:   fmt.Sprintf("New whale detected: %s", whale.ShortAddress()),
			})
			continue
		}

		change := holder.Balance.Sub(existing.Balance)
		pctChange := percentageChange(existing.Balance, holder.Balance)

		existing.Balance = holder.Balance
		existing.BalanceUSD = balanceUSD
		existing.LastActivity = now
		existing.IsActive = true

		if err := e.whales.Upsert(ctx, existing); err != nil {
			logger.WithError(err).WithField("wallet", holder.WalletAddress).Error("[Scanner] Whale update failed")
			continue
		}
		stats.UpdatedWhales++

		if abs(pctChange) > e.cfg.MovementThresholdPct {
			tx := e.inferTransaction(ctx, existing, change, price, now)
			inferredTxs = append(inferredTxs, tx)

			e.publish(models.Event{
				Type:             types.EventWhaleMovement,
				Timestamp:        now,
				Whale:            existing,
				Transaction:      tx,
				Change:           change,
				PercentageChange: pctChange,
				Message: fmt.Sprintf("Whale %s moved %s tokens (%+.2f%%)",
					existing.ShortAddress(), change.Abs().StringFixed(0), pctChange),
			})
		}
	}

	// Tracked whales missing from the current fetch have exited
	previous, err := e.whales.ListActiveByRank(ctx, 0)
	if err != nil {
		logger.WithError(err).Error("[Scanner] Active whale listing failed, skipping exit detection")
	} else {
		for _, whale := range previous {
			if seen[whale.WalletAddress] {
				continue
			}
			if err := e.whales.MarkInactive(ctx, whale.WalletAddress); err != nil {
				logger.WithError(err).WithField("wallet", whale.WalletAddress).Error("[Scanner] Whale deactivation failed")
				continue
			}

			whale.IsActive = false
			stats.ExitedWhales++
			e.publish(models.Event{
				Type:      types.EventWhaleExit,
				Timestamp: now,
				Whale:     whale,
				Message:   fmt.Sprintf("Whale exited: %s", whale.ShortAddress()),
			})
		}
	}

	if err := e.whales.RecomputeRanks(ctx); err != nil {
		logger.WithError(err).Error("[Scanner] Rank recompute failed")
	}

	if e.txs != nil && len(inferredTxs) > 0 {
		if err := e.txs.BatchInsert(ctx, inferredTxs); err != nil {
			logger.WithError(err).Error("[Scanner] Transaction batch insert failed")
		}
	}

	if e.snapshot != nil {
		if top, err := e.whales.ListActiveByRank(ctx, 100); err == nil {
			if err := e.snapshot.StoreTopWhales(ctx, top); err != nil {
				logger.WithError(err).Warn("[Scanner] Ranking snapshot failed")
			}
		}
	}

	stats.TotalWhales = len(holders)
	e.publish(models.Event{
		Type:      types.EventStatsUpdate,
		Timestamp: now,
		Stats:     stats,
	})

	logger.WithFields(map[string]interface{}{
		"totalWhales":   stats.TotalWhales,
		"newWhales":     stats.NewWhales,
		"updatedWhales": stats.UpdatedWhales,
		"exitedWhales":  stats.ExitedWhales,
		"duration":      time.Since(start).String(),
	}).Info("[Scanner] Scan cycle complete")

	return stats
}

// inferTransaction builds the synthetic transaction record for a movement.
// Direction follows the balance delta; the signature falls back to a
// generated id when the chain lookup yields nothing.
func (e *Engine) inferTransaction(ctx context.Context, whale *models.Whale, change decimal.Decimal, price decimal.Decimal, now time.Time) *models.WhaleTransaction {
	txType := types.TransactionBuy
	if change.IsNegative() {
		txType = types.TransactionSell
	}

	signature := e.source.RecentSignature(ctx, whale.WalletAddress)
	if signature == "" {
		signature = "scan-" + uuid.NewString()
	}

	return &models.WhaleTransaction{
		ID:            uuid.NewString(),
		WhaleID:       whale.ID,
		WalletAddress: whale.WalletAddress,
		Signature:     signature,
		Type:          txType,
		Amount:        change.Abs(),
		AmountUSD:     change.Abs().Mul(price),
		Timestamp:     now,
	}
}

// percentageChange returns (current-old)/old*100, or 0 when old is zero
func percentageChange(old, current decimal.Decimal) float64 {
	if old.IsZero() {
		return 0
	}
	pct, _ := current.Sub(old).Div(old).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
