package storage

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/whale-tracker/internal/config"
	"github.com/whale-tracker/internal/models"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{
			name:    "valid mainnet address",
			address: "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
			wantErr: false,
		},
		{
			name:    "valid token mint",
			address: config.DefaultMintAddress,
			wantErr: false,
		},
		{
			name:    "too short",
			address: "7xKXtg2CW87d97TXJSDpbD5",
			wantErr: true,
		},
		{
			name:    "contains base58-invalid characters",
			address: "0xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
			wantErr: true,
		},
		{
			name:    "empty",
			address: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.address)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAddress(%q) error = %v, wantErr %v", tt.address, err, tt.wantErr)
			}
		})
	}
}

// setupTestWhaleRepo connects to a local Postgres. Tests skip when the
// database is unavailable.
func setupTestWhaleRepo(t *testing.T) *WhaleRepository {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := &config.PostgresConfig{
		Host:           "localhost",
		Port:           "5432",
		Database:       "whale_tracker_test",
		User:           "tracker",
		Password:       "tracker",
		MaxConnections: 5,
	}

	db, err := NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	return NewWhaleRepository(db)
}

func TestWhaleRepository_UpsertAndGet(t *testing.T) {
	repo := setupTestWhaleRepo(t)
	ctx := testContext(t)

	address := "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

	whale := &models.Whale{
		WalletAddress: address,
		Balance:       decimal.NewFromInt(500000),
		BalanceUSD:    decimal.NewFromFloat(25.5),
		IsActive:      true,
		FirstDetected: time.Now(),
	}

	if err := repo.Upsert(ctx, whale); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := repo.GetByAddress(ctx, address)
	if err != nil {
		t.Fatalf("GetByAddress() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetByAddress() = nil, want whale")
	}
	if !got.Balance.Equal(whale.Balance) {
		t.Errorf("Balance = %v, want %v", got.Balance, whale.Balance)
	}

	// Upsert again with a new balance keeps id and first_detected
	whale.Balance = decimal.NewFromInt(600000)
	if err := repo.Upsert(ctx, whale); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	updated, err := repo.GetByAddress(ctx, address)
	if err != nil {
		t.Fatalf("GetByAddress() error = %v", err)
	}
	if updated.ID != got.ID {
		t.Errorf("ID changed on upsert: %s != %s", updated.ID, got.ID)
	}
	if !updated.Balance.Equal(decimal.NewFromInt(600000)) {
		t.Errorf("Balance = %v, want 600000", updated.Balance)
	}
}

func TestWhaleRepository_GetByAddressNotFound(t *testing.T) {
	repo := setupTestWhaleRepo(t)
	ctx := testContext(t)

	got, err := repo.GetByAddress(ctx, "1111111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("GetByAddress() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetByAddress() = %v, want nil for untracked address", got)
	}
}
