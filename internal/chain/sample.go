package chain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// sampleHolder entries stand in for live chain data during development and
// when every RPC endpoint is down before the first successful scan.
var sampleHolderSet = []Holder{
	{WalletAddress: "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU", Balance: decimal.NewFromInt(2500000)},
	{WalletAddress: "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM", Balance: decimal.NewFromInt(1800000)},
	{WalletAddress: "HN7cABqLq46Es1jh92dQQisAq662SmxELLLsHHe4YWrH", Balance: decimal.NewFromInt(1200000)},
	{WalletAddress: "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1", Balance: decimal.NewFromInt(950000)},
	{WalletAddress: "GDfnEsia2WLAW5t8yx2X5j2mkfA74i5kwGdDuZHt7XmG", Balance: decimal.NewFromInt(720000)},
	{WalletAddress: "2AQdpHJ2JpcEgPiATUXjQxA8QmafFegfQwSLWSprPicm", Balance: decimal.NewFromInt(480000)},
	{WalletAddress: "3emsAVdmGKERbHjmGfQ6oZ1e35dkf5iYcS6U4CPKFVaa", Balance: decimal.NewFromInt(260000)},
	{WalletAddress: "6VzWGL51jLevvXqWjVTrPvzNqQp3Bu3DGCnsvnd6qxZ6", Balance: decimal.NewFromInt(140000)},
}

// sampleHolders returns the sample holder set filtered by threshold and
// sorted by balance descending
func sampleHolders(threshold decimal.Decimal) []Holder {
	holders := make([]Holder, 0, len(sampleHolderSet))
	for _, h := range sampleHolderSet {
		if h.Balance.GreaterThanOrEqual(threshold) {
			holders = append(holders, h)
		}
	}
	sort.Slice(holders, func(i, j int) bool {
		return holders[i].Balance.GreaterThan(holders[j].Balance)
	})
	return holders
}
