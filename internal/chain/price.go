package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/whale-tracker/internal/logging"
)

// priceResponse mirrors the Jupiter price API payload
type priceResponse struct {
	Data map[string]struct {
		Price float64 `json:"price"`
	} `json:"data"`
}

// GetTokenPrice returns the current USD price of the tracked token. On any
// failure it falls back to the last successfully fetched price, then to the
// configured static fallback, and never returns an error.
func (c *Client) GetTokenPrice(ctx context.Context) decimal.Decimal {
	logger := logging.FromContext(ctx)

	price, err := c.fetchPrice(ctx)
	if err != nil {
		logger.WithError(err).Warn("Price fetch failed, using fallback price")

		c.mu.RLock()
		last := c.lastPrice
		c.mu.RUnlock()

		if last.IsPositive() {
			return last
		}
		return decimal.NewFromFloat(c.cfg.FallbackPrice)
	}

	c.mu.Lock()
	c.lastPrice = price
	c.mu.Unlock()

	return price
}

func (c *Client) fetchPrice(ctx context.Context) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s?ids=%s", c.cfg.PriceAPIURL, c.cfg.MintAddress)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to build price request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price API returned status %d", resp.StatusCode)
	}

	var parsed priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode price response: %w", err)
	}

	entry, ok := parsed.Data[c.cfg.MintAddress]
	if !ok || entry.Price <= 0 {
		return decimal.Zero, fmt.Errorf("price API response missing token %s", c.cfg.MintAddress)
	}

	return decimal.NewFromFloat(entry.Price), nil
}
