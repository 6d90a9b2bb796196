// Package chain provides the Solana RPC client used to fetch token holder
// balances and recent transaction signatures for the tracked mint.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"sort"
	"sync"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/whale-tracker/internal/circuitbreaker"
	"github.com/whale-tracker/internal/config"
	"github.com/whale-tracker/internal/logging"
	"github.com/whale-tracker/internal/retry"
)

// splTokenAccountSize is the serialized size of an SPL token account
const splTokenAccountSize = 165

// defaultDecimals is used when the mint supply lookup fails. Pump.fun mints
// use 6 decimals.
const defaultDecimals = 6

// Holder is one token account owner with its UI-normalized balance
type Holder struct {
	WalletAddress string
	Balance       decimal.Decimal
}

// Client talks to Solana RPC endpoints with rate limiting, retry and circuit
// breaking. Failures never surface raw to callers of ListHolders: the client
// degrades to the last successful holder set, then to sample data.
type Client struct {
	cfg       *config.ChainConfig
	primary   *rpc.Client
	secondary *rpc.Client
	limiter   *rate.Limiter
	breaker   *circuitbreaker.CircuitBreaker
	retryCfg  *retry.RetryConfig
	mint      solana.PublicKey
	http      *http.Client

	mu          sync.RWMutex
	decimals    uint8
	hasDecimals bool
	lastHolders []Holder
	lastPrice   decimal.Decimal
}

// NewClient creates a chain client from configuration. When no RPC endpoint
// is configured the client runs in sample mode and serves generated data.
func NewClient(cfg *config.ChainConfig) (*Client, error) {
	mint, err := solana.PublicKeyFromBase58(cfg.MintAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid token mint address %q: %w", cfg.MintAddress, err)
	}

	c := &Client{
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestsPerSecond),
		breaker:  circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("solana-rpc")),
		retryCfg: retry.DefaultRetryConfig(),
		mint:     mint,
		http:     &http.Client{Timeout: 10 * time.Second},
	}

	if cfg.RPCPrimary != "" {
		c.primary = rpc.New(cfg.RPCPrimary)
	}
	if cfg.RPCSecondary != "" {
		c.secondary = rpc.New(cfg.RPCSecondary)
	}

	return c, nil
}

// SampleMode reports whether the client has no RPC endpoint and serves
// generated holder data
func (c *Client) SampleMode() bool {
	return c.primary == nil
}

// ListHolders fetches every token account of the tracked mint, normalizes
// balances by the mint decimals and returns owners at or above threshold,
// sorted by balance descending. On RPC failure it returns the last
// successful holder set, or sample data when none exists yet.
func (c *Client) ListHolders(ctx context.Context, threshold decimal.Decimal) []Holder {
	logger := logging.FromContext(ctx)

	if c.SampleMode() {
		return sampleHolders(threshold)
	}

	var holders []Holder
	result := retry.WithExponentialBackoff(ctx, c.retryCfg, func(ctx context.Context, attempt int) error {
		return c.breaker.Execute(ctx, func() error {
			var fetchErr error
			holders, fetchErr = c.fetchHolders(ctx, threshold)
			return fetchErr
		})
	})

	if !result.Success {
		logger.WithError(result.LastError).Warn("Holder fetch failed, serving degraded data")

		c.mu.RLock()
		last := c.lastHolders
		c.mu.RUnlock()

		if last != nil {
			return last
		}
		return sampleHolders(threshold)
	}

	c.mu.Lock()
	c.lastHolders = holders
	c.mu.Unlock()

	return holders
}

// fetchHolders performs one getProgramAccounts scan over the token program
func (c *Client) fetchHolders(ctx context.Context, threshold decimal.Decimal) ([]Holder, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	decimals := c.mintDecimals(ctx)

	out, err := c.primary.GetProgramAccountsWithOpts(ctx, solana.TokenProgramID, &rpc.GetProgramAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
		Filters: []rpc.RPCFilter{
			{DataSize: splTokenAccountSize},
			{Memcmp: &rpc.RPCFilterMemcmp{
				Offset: 0,
				Bytes:  solana.Base58(c.mint.Bytes()),
			}},
		},
	})
	if err != nil {
		if c.secondary != nil {
			out, err = c.secondary.GetProgramAccountsWithOpts(ctx, solana.TokenProgramID, &rpc.GetProgramAccountsOpts{
				Commitment: rpc.CommitmentConfirmed,
				Encoding:   solana.EncodingBase64,
				Filters: []rpc.RPCFilter{
					{DataSize: splTokenAccountSize},
					{Memcmp: &rpc.RPCFilterMemcmp{
						Offset: 0,
						Bytes:  solana.Base58(c.mint.Bytes()),
					}},
				},
			})
		}
		if err != nil {
			return nil, fmt.Errorf("getProgramAccounts failed: %w", err)
		}
	}

	// Token accounts for the same owner are merged so the holder set is
	// keyed on wallets, not accounts
	balances := make(map[string]decimal.Decimal, len(out))
	for _, keyed := range out {
		if keyed.Account == nil {
			continue
		}
		data := keyed.Account.Data.GetBinary()
		if len(data) != splTokenAccountSize {
			continue
		}

		var acc token.Account
		if err := bin.NewBinDecoder(data).Decode(&acc); err != nil {
			continue
		}
		if acc.Amount == 0 {
			continue
		}

		amount := rawToUIAmount(acc.Amount, decimals)
		owner := acc.Owner.String()
		balances[owner] = balances[owner].Add(amount)
	}

	holders := make([]Holder, 0, len(balances))
	for owner, balance := range balances {
		if balance.GreaterThanOrEqual(threshold) {
			holders = append(holders, Holder{WalletAddress: owner, Balance: balance})
		}
	}

	sort.Slice(holders, func(i, j int) bool {
		return holders[i].Balance.GreaterThan(holders[j].Balance)
	})

	return holders, nil
}

// RecentSignature returns the newest transaction signature for a wallet.
// Returns an empty string without error when the wallet has no history or
// the lookup fails; callers fall back to a generated id.
func (c *Client) RecentSignature(ctx context.Context, wallet string) string {
	if c.SampleMode() {
		return ""
	}

	owner, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return ""
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return ""
	}

	limit := 1
	sigs, err := c.primary.GetSignaturesForAddressWithOpts(ctx, owner, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil || len(sigs) == 0 {
		return ""
	}
	return sigs[0].Signature.String()
}

// mintDecimals looks up the mint decimals once and caches the result
func (c *Client) mintDecimals(ctx context.Context) uint8 {
	c.mu.RLock()
	if c.hasDecimals {
		d := c.decimals
		c.mu.RUnlock()
		return d
	}
	c.mu.RUnlock()

	supply, err := c.primary.GetTokenSupply(ctx, c.mint, rpc.CommitmentConfirmed)
	if err != nil || supply == nil || supply.Value == nil {
		logging.FromContext(ctx).WithError(err).Warn("Mint decimals lookup failed, using default")
		return defaultDecimals
	}

	c.mu.Lock()
	c.decimals = supply.Value.Decimals
	c.hasDecimals = true
	c.mu.Unlock()

	return supply.Value.Decimals
}

// rawToUIAmount converts a raw token amount to its UI value using the mint decimals
func rawToUIAmount(raw uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), 0).Shift(-int32(decimals))
}

// BreakerStats exposes the RPC circuit breaker state for health reporting
func (c *Client) BreakerStats() *circuitbreaker.Stats {
	return c.breaker.GetStats()
}
