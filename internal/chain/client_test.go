package chain

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/whale-tracker/internal/config"
)

func testClient(t *testing.T, cfg *config.ChainConfig) *Client {
	t.Helper()

	if cfg.MintAddress == "" {
		cfg.MintAddress = config.DefaultMintAddress
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 10
	}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestGetTokenPrice(t *testing.T) {
	mint := config.DefaultMintAddress

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != mint {
			t.Errorf("ids query = %q, want %q", got, mint)
		}
		fmt.Fprintf(w, `{"data":{"%s":{"price":0.000073}}}`, mint)
	}))
	defer server.Close()

	client := testClient(t, &config.ChainConfig{
		PriceAPIURL:   server.URL,
		FallbackPrice: 0.000051,
	})

	price := client.GetTokenPrice(context.Background())
	want := decimal.NewFromFloat(0.000073)
	if !price.Equal(want) {
		t.Errorf("GetTokenPrice() = %v, want %v", price, want)
	}
}

func TestGetTokenPriceFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := testClient(t, &config.ChainConfig{
		PriceAPIURL:   server.URL,
		FallbackPrice: 0.000051,
	})

	price := client.GetTokenPrice(context.Background())
	want := decimal.NewFromFloat(0.000051)
	if !price.Equal(want) {
		t.Errorf("GetTokenPrice() = %v, want fallback %v", price, want)
	}
}

func TestGetTokenPriceLastKnownGood(t *testing.T) {
	mint := config.DefaultMintAddress
	fail := false

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprintf(w, `{"data":{"%s":{"price":0.0001}}}`, mint)
	}))
	defer server.Close()

	client := testClient(t, &config.ChainConfig{
		PriceAPIURL:   server.URL,
		FallbackPrice: 0.000051,
	})

	ctx := context.Background()
	first := client.GetTokenPrice(ctx)
	if !first.Equal(decimal.NewFromFloat(0.0001)) {
		t.Fatalf("first GetTokenPrice() = %v, want 0.0001", first)
	}

	fail = true
	second := client.GetTokenPrice(ctx)
	if !second.Equal(first) {
		t.Errorf("degraded GetTokenPrice() = %v, want last known good %v", second, first)
	}
}

func TestListHoldersSampleMode(t *testing.T) {
	client := testClient(t, &config.ChainConfig{})

	if !client.SampleMode() {
		t.Fatal("client without RPC endpoint should run in sample mode")
	}

	threshold := decimal.NewFromInt(500000)
	holders := client.ListHolders(context.Background(), threshold)

	if len(holders) == 0 {
		t.Fatal("ListHolders() returned no sample holders")
	}
	for i, h := range holders {
		if h.Balance.LessThan(threshold) {
			t.Errorf("holder %d balance %v below threshold %v", i, h.Balance, threshold)
		}
		if i > 0 && holders[i-1].Balance.LessThan(h.Balance) {
			t.Errorf("holders not sorted descending at index %d", i)
		}
	}
}

func TestRawToUIAmount(t *testing.T) {
	tests := []struct {
		name     string
		raw      uint64
		decimals uint8
		want     string
	}{
		{name: "six decimals", raw: 1_500_000_000, decimals: 6, want: "1500"},
		{name: "zero decimals", raw: 42, decimals: 0, want: "42"},
		{name: "fractional", raw: 1, decimals: 6, want: "0.000001"},
		{name: "nine decimals", raw: 2_000_000_000, decimals: 9, want: "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want, err := decimal.NewFromString(tt.want)
			if err != nil {
				t.Fatalf("bad want value: %v", err)
			}
			got := rawToUIAmount(tt.raw, tt.decimals)
			if !got.Equal(want) {
				t.Errorf("rawToUIAmount(%d, %d) = %v, want %v", tt.raw, tt.decimals, got, want)
			}
		})
	}
}
