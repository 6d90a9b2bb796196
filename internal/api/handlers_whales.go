package api

import (
	"net/http"
	"strconv"

	"github.com/whale-tracker/internal/storage"
)

const (
	defaultWhaleLimit = 100
	defaultTxLimit    = 50
)

func parseLimit(r *http.Request, def, max int) int {
	limit := def
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

// handleTopWhales returns the current whale ranking. When the primary store
// is unreachable the last cached ranking is served instead.
func (s *Server) handleTopWhales(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := parseLimit(r, defaultWhaleLimit, 500)

	whales, err := s.whales.ListActiveByRank(ctx, limit)
	if err != nil {
		cached, cacheErr := s.stats.LoadTopWhales(ctx)
		if cacheErr != nil || cached == nil {
			status, code, message := mapServiceError(err)
			respondError(w, status, code, message, nil)
			return
		}
		if len(cached) > limit {
			cached = cached[:limit]
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"whales":   cached,
			"count":    len(cached),
			"degraded": true,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"whales": whales,
		"count":  len(whales),
	})
}

// handleWhaleTransactions returns the most recent inferred transactions
func (s *Server) handleWhaleTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := parseLimit(r, defaultTxLimit, 200)

	transactions, err := s.txs.Recent(ctx, limit)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// handleWhaleMetrics returns 24h aggregate metrics. Fresh figures are cached
// on every success; on failure the last cached snapshot is served.
func (s *Server) handleWhaleMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	analytics, err := s.txs.Analytics24h(ctx)
	if err == nil {
		count, countErr := s.whales.CountActive(ctx)
		if countErr == nil {
			snapshot := &storage.MetricsSnapshot{
				Analytics:  analytics,
				WhaleCount: count,
			}
			// Refresh the degraded-read snapshot; a cache failure is not fatal
			_ = s.stats.StoreMetrics(ctx, snapshot)

			respondJSON(w, http.StatusOK, map[string]interface{}{
				"metrics":    analytics,
				"whaleCount": count,
			})
			return
		}
		err = countErr
	}

	cached, cacheErr := s.stats.LoadMetrics(ctx)
	if cacheErr != nil || cached == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Metrics are temporarily unavailable", nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"metrics":    cached.Analytics,
		"whaleCount": cached.WhaleCount,
		"degraded":   true,
		"cachedAt":   cached.CachedAt,
	})
}
